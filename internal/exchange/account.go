package exchange

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/shopspring/decimal"

	"futures-trader/internal/order"
)

// OpAccount 为账户查询操作名。
const OpAccount = "account"

// Account 为 USDT 保证金账户快照。
type Account struct {
	Asset            string
	WalletBalance    decimal.Decimal
	AvailableBalance decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	Positions        []Position
	Timestamp        time.Time
}

// Position 描述单个合约的非零持仓。Size 恒为正，方向由 Side 表示。
type Position struct {
	Symbol        string
	Side          string
	Size          decimal.Decimal
	EntryPrice    decimal.Decimal
	MarkPrice     decimal.NullDecimal
	UnrealizedPnL decimal.Decimal
	Leverage      decimal.Decimal
}

const (
	PositionLong  = "LONG"
	PositionShort = "SHORT"
)

func sortPositions(positions []Position) {
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
}

// Account 读取余额与持仓。
func (g *CCXTGateway) Account(ctx context.Context) (Account, error) {
	var (
		balances ccxt.Balances
		raw      []ccxt.Position
	)
	err := g.retry.do(ctx, OpAccount, func() error {
		if err := g.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		var err error
		if balances, err = g.client.FetchBalance(); err != nil {
			return err
		}
		raw, err = g.client.FetchPositions()
		return err
	})
	if err != nil {
		return Account{}, err
	}
	return fromCCXTAccount(balances, raw), nil
}

func fromCCXTAccount(balances ccxt.Balances, raw []ccxt.Position) Account {
	acct := Account{
		Asset:     order.QuoteAsset,
		Timestamp: time.Now().UTC(),
	}
	if total, ok := balances.Total[order.QuoteAsset]; ok {
		acct.WalletBalance = floatDecimal(total)
	}
	if free, ok := balances.Free[order.QuoteAsset]; ok {
		acct.AvailableBalance = floatDecimal(free)
	}

	for _, rawPos := range raw {
		size := floatDecimal(rawPos.Contracts)
		if size.IsZero() {
			continue
		}
		side := strings.ToUpper(strings.TrimSpace(deref(rawPos.Side)))
		if side == "" {
			side = PositionLong
		}
		pos := Position{
			Symbol:        fromCCXTSymbol(deref(rawPos.Symbol)),
			Side:          side,
			Size:          size.Abs(),
			EntryPrice:    floatDecimal(rawPos.EntryPrice),
			UnrealizedPnL: floatDecimal(rawPos.UnrealizedPnl),
			Leverage:      floatDecimal(rawPos.Leverage),
		}
		if mark := floatDecimal(rawPos.MarkPrice); mark.IsPositive() {
			pos.MarkPrice = decimal.NewNullDecimal(mark)
		}
		acct.UnrealizedPnL = acct.UnrealizedPnL.Add(pos.UnrealizedPnL)
		acct.Positions = append(acct.Positions, pos)
	}
	sortPositions(acct.Positions)
	return acct
}

// Account 读取余额与持仓。
func (g *BinanceGateway) Account(ctx context.Context) (Account, error) {
	var raw *futures.Account
	err := g.retry.do(ctx, OpAccount, func() error {
		result, err := g.client.NewGetAccountService().Do(ctx)
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return fromBinanceAccount(raw), nil
}

func fromBinanceAccount(raw *futures.Account) Account {
	acct := Account{
		Asset:            order.QuoteAsset,
		WalletBalance:    parseDecimal(raw.TotalWalletBalance),
		AvailableBalance: parseDecimal(raw.AvailableBalance),
		UnrealizedPnL:    parseDecimal(raw.TotalUnrealizedProfit),
		Timestamp:        time.Now().UTC(),
	}
	for _, p := range raw.Positions {
		if p == nil {
			continue
		}
		amount := parseDecimal(p.PositionAmt)
		if amount.IsZero() {
			continue
		}
		side := PositionLong
		if amount.IsNegative() {
			side = PositionShort
		}
		acct.Positions = append(acct.Positions, Position{
			Symbol:        p.Symbol,
			Side:          side,
			Size:          amount.Abs(),
			EntryPrice:    parseDecimal(p.EntryPrice),
			UnrealizedPnL: parseDecimal(p.UnrealizedProfit),
			Leverage:      parseDecimal(p.Leverage),
		})
	}
	sortPositions(acct.Positions)
	return acct
}

func (r *rateLimited) Account(ctx context.Context) (Account, error) {
	if err := r.wait(ctx, OpAccount); err != nil {
		return Account{}, err
	}
	return r.next.Account(ctx)
}

func (m *instrumented) Account(ctx context.Context) (Account, error) {
	start := time.Now()
	acct, err := m.next.Account(ctx)
	m.observe(OpAccount, start, err)
	return acct, err
}
