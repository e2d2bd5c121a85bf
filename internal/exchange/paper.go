package exchange

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-trader/internal/config"
	"futures-trader/internal/order"
)

// PlaceHook 在模拟下单前调用，返回错误即视为交易所拒绝。
type PlaceHook func(req order.Request) error

// Paper 是内存中的模拟交易所：市价单按配置价格立即成交，限价与止损单挂单。
type Paper struct {
	mu         sync.Mutex
	prices     map[string]decimal.Decimal
	fillMarket bool
	seq        int64
	orders     map[string]*order.Result
	hook       PlaceHook
	logger     *zap.Logger

	balance   decimal.Decimal
	positions map[string]*paperPosition
}

// paperPosition 的 size 带符号，空头为负。
type paperPosition struct {
	size  decimal.Decimal
	entry decimal.Decimal
}

// NewPaper 根据 paper 配置构造模拟交易所。
func NewPaper(cfg config.PaperConfig, logger *zap.Logger) *Paper {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Paper{
		prices:     make(map[string]decimal.Decimal, len(cfg.Prices)),
		fillMarket: cfg.FillMarketOrders,
		orders:     make(map[string]*order.Result),
		logger:     logger,
		balance:    cfg.Balance,
		positions:  make(map[string]*paperPosition),
	}
	for symbol, price := range cfg.Prices {
		p.prices[order.NormalizeSymbol(symbol)] = price
	}
	return p
}

// SetPrice 更新交易对的模拟行情。
func (p *Paper) SetPrice(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[order.NormalizeSymbol(symbol)] = price
}

// SetPlaceHook 设置下单前的错误注入。
func (p *Paper) SetPlaceHook(hook PlaceHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hook = hook
}

func (p *Paper) PlaceOrder(ctx context.Context, req order.Request) (order.Result, error) {
	if err := ctx.Err(); err != nil {
		return order.Result{}, classify(OpPlaceOrder, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hook != nil {
		if err := p.hook(req); err != nil {
			return order.Result{}, classify(OpPlaceOrder, err)
		}
	}

	p.seq++
	res := order.Result{
		OrderID:       "paper-" + strconv.FormatInt(p.seq, 10),
		ClientOrderID: req.ClientOrderID,
		Request:       req,
		Status:        order.StatusNew,
		UpdatedAt:     time.Now().UTC(),
	}

	if req.Kind == order.KindMarket && p.fillMarket {
		price, ok := p.prices[order.NormalizeSymbol(req.Symbol)]
		if !ok {
			p.seq--
			return order.Result{}, &GatewayError{
				Op:      OpPlaceOrder,
				Code:    "-1121",
				Message: fmt.Sprintf("%s 无模拟行情", req.Symbol),
				Err:     ErrNoPrice,
			}
		}
		res.Status = order.StatusFilled
		res.ExecutedQty = req.Quantity
		res.AvgPrice = decimal.NewNullDecimal(price)
		p.applyFill(order.NormalizeSymbol(req.Symbol), req.Side, req.Quantity, price)
	}

	stored := res
	p.orders[res.OrderID] = &stored

	p.logger.Debug("模拟下单",
		zap.String("order_id", res.OrderID),
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("kind", string(req.Kind)),
		zap.String("status", string(res.Status)),
	)
	return res, nil
}

func (p *Paper) CancelOrder(ctx context.Context, symbol, orderID string) (order.Result, error) {
	if err := ctx.Err(); err != nil {
		return order.Result{}, classify(OpCancelOrder, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	stored, err := p.lookup(OpCancelOrder, symbol, orderID)
	if err != nil {
		return order.Result{}, err
	}
	if !isOpen(stored.Status) {
		return order.Result{}, &GatewayError{
			Op:      OpCancelOrder,
			Code:    "-2011",
			Message: fmt.Sprintf("订单 %s 状态为 %s，无法撤销", orderID, stored.Status),
			Err:     ErrUnknownOrder,
		}
	}
	stored.Status = order.StatusCanceled
	stored.UpdatedAt = time.Now().UTC()
	return *stored, nil
}

func (p *Paper) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, classify(OpCurrentPrice, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[order.NormalizeSymbol(symbol)]
	if !ok || !price.IsPositive() {
		return decimal.Zero, &GatewayError{Op: OpCurrentPrice, Message: symbol + " 无模拟行情", Err: ErrNoPrice}
	}
	return price, nil
}

func (p *Paper) OrderStatus(ctx context.Context, symbol, orderID string) (order.Result, error) {
	if err := ctx.Err(); err != nil {
		return order.Result{}, classify(OpOrderStatus, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	stored, err := p.lookup(OpOrderStatus, symbol, orderID)
	if err != nil {
		return order.Result{}, err
	}
	return *stored, nil
}

func (p *Paper) OpenOrders(ctx context.Context, symbol string) ([]order.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(OpOpenOrders, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	symbol = order.NormalizeSymbol(symbol)
	out := make([]order.Result, 0)
	for _, stored := range p.orders {
		if !isOpen(stored.Status) {
			continue
		}
		if symbol != "" && stored.Request.Symbol != symbol {
			continue
		}
		out = append(out, *stored)
	}
	sortBySequence(out)
	return out, nil
}

func (p *Paper) CancelAllOrders(ctx context.Context, symbol string) error {
	if err := ctx.Err(); err != nil {
		return classify(OpCancelAllOrders, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	symbol = order.NormalizeSymbol(symbol)
	now := time.Now().UTC()
	for _, stored := range p.orders {
		if stored.Request.Symbol == symbol && isOpen(stored.Status) {
			stored.Status = order.StatusCanceled
			stored.UpdatedAt = now
		}
	}
	return nil
}

func (p *Paper) lookup(op, symbol, orderID string) (*order.Result, error) {
	stored, ok := p.orders[orderID]
	if !ok || stored.Request.Symbol != order.NormalizeSymbol(symbol) {
		return nil, &GatewayError{
			Op:      op,
			Code:    "-2013",
			Message: fmt.Sprintf("订单 %s 不存在", orderID),
			Err:     ErrUnknownOrder,
		}
	}
	return stored, nil
}

func isOpen(status order.Status) bool {
	return status == order.StatusNew || status == order.StatusPartiallyFilled
}

func sortBySequence(results []order.Result) {
	seq := func(id string) int64 {
		n, _ := strconv.ParseInt(id[len("paper-"):], 10, 64)
		return n
	}
	sort.Slice(results, func(i, j int) bool {
		return seq(results[i].OrderID) < seq(results[j].OrderID)
	})
}

// applyFill 按成交更新持仓，减仓部分的盈亏计入余额。
func (p *Paper) applyFill(symbol string, side order.Side, qty, price decimal.Decimal) {
	delta := qty
	if side == order.SideSell {
		delta = qty.Neg()
	}
	pos, ok := p.positions[symbol]
	if !ok {
		pos = &paperPosition{}
		p.positions[symbol] = pos
	}

	next := pos.size.Add(delta)
	switch {
	case pos.size.IsZero() || pos.size.Sign() == delta.Sign():
		pos.entry = pos.entry.Mul(pos.size.Abs()).Add(price.Mul(qty)).Div(next.Abs())
	default:
		closed := decimal.Min(qty, pos.size.Abs())
		pnl := price.Sub(pos.entry).Mul(closed)
		if pos.size.IsNegative() {
			pnl = pnl.Neg()
		}
		p.balance = p.balance.Add(pnl)
		if !next.IsZero() && next.Sign() != pos.size.Sign() {
			pos.entry = price
		}
	}
	pos.size = next
	if pos.size.IsZero() {
		delete(p.positions, symbol)
	}
}

// Account 返回模拟余额与按当前模拟价估值的持仓。
func (p *Paper) Account(ctx context.Context) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, classify(OpAccount, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	acct := Account{
		Asset:            order.QuoteAsset,
		WalletBalance:    p.balance,
		AvailableBalance: p.balance,
		Timestamp:        time.Now().UTC(),
	}
	for symbol, pos := range p.positions {
		item := Position{
			Symbol:     symbol,
			Side:       PositionLong,
			Size:       pos.size.Abs(),
			EntryPrice: pos.entry,
			Leverage:   decimal.NewFromInt(1),
		}
		if pos.size.IsNegative() {
			item.Side = PositionShort
		}
		if mark, ok := p.prices[symbol]; ok {
			item.MarkPrice = decimal.NewNullDecimal(mark)
			item.UnrealizedPnL = mark.Sub(pos.entry).Mul(pos.size)
		}
		acct.UnrealizedPnL = acct.UnrealizedPnL.Add(item.UnrealizedPnL)
		acct.Positions = append(acct.Positions, item)
	}
	sortPositions(acct.Positions)
	return acct, nil
}
