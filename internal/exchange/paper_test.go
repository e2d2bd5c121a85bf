package exchange

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-trader/internal/config"
	"futures-trader/internal/order"
)

func newTestPaper() *Paper {
	return NewPaper(config.PaperConfig{
		Prices:           map[string]decimal.Decimal{"btcusdt": decimal.NewFromInt(44500)},
		FillMarketOrders: true,
	}, nil)
}

func TestPaper_MarketOrderFillsAtConfiguredPrice(t *testing.T) {
	p := newTestPaper()
	ctx := context.Background()

	res, err := p.PlaceOrder(ctx, order.Request{
		Symbol: "BTCUSDT", Side: order.SideBuy, Kind: order.KindMarket,
		Quantity: decimal.RequireFromString("0.01"), ClientOrderID: "cid-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "paper-1", res.OrderID)
	assert.Equal(t, "cid-1", res.ClientOrderID)
	assert.Equal(t, order.StatusFilled, res.Status)
	require.True(t, res.Filled())
	assert.True(t, res.AvgPrice.Decimal.Equal(decimal.NewFromInt(44500)))

	p.SetPrice("BTCUSDT", decimal.NewFromInt(45000))
	res, err = p.PlaceOrder(ctx, order.Request{
		Symbol: "BTCUSDT", Side: order.SideSell, Kind: order.KindMarket,
		Quantity: decimal.RequireFromString("0.01"),
	})
	require.NoError(t, err)
	assert.Equal(t, "paper-2", res.OrderID)
	assert.True(t, res.AvgPrice.Decimal.Equal(decimal.NewFromInt(45000)))
}

func TestPaper_MarketOrderWithoutPriceFails(t *testing.T) {
	p := newTestPaper()
	_, err := p.PlaceOrder(context.Background(), order.Request{
		Symbol: "ETHUSDT", Side: order.SideBuy, Kind: order.KindMarket, Quantity: decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.True(t, IsGatewayError(err))
	assert.True(t, errors.Is(err, ErrNoPrice))
}

func TestPaper_LimitOrdersRestAndCancel(t *testing.T) {
	p := newTestPaper()
	ctx := context.Background()

	for _, price := range []string{"43000", "47000"} {
		_, err := p.PlaceOrder(ctx, order.Request{
			Symbol: "BTCUSDT", Side: order.SideBuy, Kind: order.KindLimit,
			Quantity: decimal.RequireFromString("0.01"), Price: decimal.RequireFromString(price),
		})
		require.NoError(t, err)
	}
	_, err := p.PlaceOrder(ctx, order.Request{
		Symbol: "BTCUSDT", Side: order.SideBuy, Kind: order.KindMarket, Quantity: decimal.RequireFromString("0.01"),
	})
	require.NoError(t, err)

	open, err := p.OpenOrders(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "paper-1", open[0].OrderID)
	assert.Equal(t, "paper-2", open[1].OrderID)

	canceled, err := p.CancelOrder(ctx, "BTCUSDT", "paper-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCanceled, canceled.Status)

	_, err = p.CancelOrder(ctx, "BTCUSDT", "paper-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownOrder))

	_, err = p.CancelOrder(ctx, "BTCUSDT", "paper-3")
	require.Error(t, err, "filled orders cannot be canceled")

	require.NoError(t, p.CancelAllOrders(ctx, "BTCUSDT"))
	open, err = p.OpenOrders(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, open)

	status, err := p.OrderStatus(ctx, "BTCUSDT", "paper-2")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCanceled, status.Status)

	_, err = p.OrderStatus(ctx, "ETHUSDT", "paper-2")
	assert.True(t, errors.Is(err, ErrUnknownOrder))
}

func TestPaper_PlaceHookInjectsFailures(t *testing.T) {
	p := newTestPaper()
	boom := errors.New("connection reset")
	p.SetPlaceHook(func(req order.Request) error {
		if req.Side == order.SideSell {
			return boom
		}
		return nil
	})

	_, err := p.PlaceOrder(context.Background(), order.Request{
		Symbol: "BTCUSDT", Side: order.SideSell, Kind: order.KindLimit,
		Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(46000),
	})
	require.Error(t, err)
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, OpPlaceOrder, gwErr.Op)
	assert.ErrorIs(t, err, boom)
}

func TestPaper_CurrentPrice(t *testing.T) {
	p := newTestPaper()
	price, err := p.CurrentPrice(context.Background(), "btcusdt")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(44500)))

	_, err = p.CurrentPrice(context.Background(), "SOLUSDT")
	assert.ErrorIs(t, err, ErrNoPrice)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.CurrentPrice(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPaper_AccountTracksPositions(t *testing.T) {
	p := NewPaper(config.PaperConfig{
		Prices:           map[string]decimal.Decimal{"BTCUSDT": decimal.NewFromInt(100)},
		FillMarketOrders: true,
		Balance:          decimal.NewFromInt(1000),
	}, nil)
	ctx := context.Background()
	market := func(side order.Side, qty string) {
		t.Helper()
		_, err := p.PlaceOrder(ctx, order.Request{
			Symbol: "BTCUSDT", Side: side, Kind: order.KindMarket, Quantity: decimal.RequireFromString(qty),
		})
		require.NoError(t, err)
	}

	market(order.SideBuy, "2")
	p.SetPrice("BTCUSDT", decimal.NewFromInt(110))
	market(order.SideBuy, "2")

	acct, err := p.Account(ctx)
	require.NoError(t, err)
	require.Len(t, acct.Positions, 1)
	pos := acct.Positions[0]
	assert.Equal(t, PositionLong, pos.Side)
	assert.True(t, pos.Size.Equal(decimal.NewFromInt(4)))
	assert.True(t, pos.EntryPrice.Equal(decimal.NewFromInt(105)))
	assert.True(t, acct.UnrealizedPnL.Equal(decimal.NewFromInt(20)))

	// 反手：平掉 4 张多头并开 1 张空头。
	market(order.SideSell, "5")
	acct, err = p.Account(ctx)
	require.NoError(t, err)
	assert.True(t, acct.WalletBalance.Equal(decimal.NewFromInt(1020)))
	require.Len(t, acct.Positions, 1)
	assert.Equal(t, PositionShort, acct.Positions[0].Side)
	assert.True(t, acct.Positions[0].Size.Equal(decimal.NewFromInt(1)))
	assert.True(t, acct.Positions[0].EntryPrice.Equal(decimal.NewFromInt(110)))

	market(order.SideBuy, "1")
	acct, err = p.Account(ctx)
	require.NoError(t, err)
	assert.Empty(t, acct.Positions)
	assert.True(t, acct.WalletBalance.Equal(decimal.NewFromInt(1020)))
}
