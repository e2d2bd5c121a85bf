package exchange

import (
	"context"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-trader/internal/config"
	"futures-trader/internal/order"
)

// ccxtClient 为 CCXTGateway 用到的 ccxt 方法子集。
type ccxtClient interface {
	CreateOrder(symbol string, typeVar string, side string, amount float64, options ...ccxt.CreateOrderOptions) (ccxt.Order, error)
	CancelOrder(id string, options ...ccxt.CancelOrderOptions) (ccxt.Order, error)
	FetchOrder(id string, options ...ccxt.FetchOrderOptions) (ccxt.Order, error)
	FetchOpenOrders(options ...ccxt.FetchOpenOrdersOptions) ([]ccxt.Order, error)
	FetchTicker(symbol string, options ...ccxt.FetchTickerOptions) (ccxt.Ticker, error)
	CancelAllOrders(options ...ccxt.CancelAllOrdersOptions) ([]ccxt.Order, error)
	FetchBalance(params ...interface{}) (ccxt.Balances, error)
	FetchPositions(options ...ccxt.FetchPositionsOptions) ([]ccxt.Position, error)
}

// CCXTGateway 基于 ccxt Binanceusdm 实现 Gateway。
type CCXTGateway struct {
	client      ccxtClient
	loadMarkets func() error
	retry       retrier
	logger      *zap.Logger

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewCCXTGateway 构造 Binance USDⓈ-M 网关。
func NewCCXTGateway(cfg config.ExchangeConfig, logger *zap.Logger) (*CCXTGateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"timeout":         cfg.Timeout.Milliseconds(),
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "future",
		},
	}
	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}

	ex := ccxt.NewBinanceusdm(userConfig)
	if cfg.Testnet {
		ex.SetSandboxMode(true)
	}

	gw := newCCXTGateway(ex, cfg.Retry, logger)
	gw.loadMarkets = func() error {
		_, err := ex.LoadMarkets()
		return err
	}
	return gw, nil
}

func newCCXTGateway(client ccxtClient, retry config.RetryConfig, logger *zap.Logger) *CCXTGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CCXTGateway{
		client:      client,
		loadMarkets: func() error { return nil },
		retry:       retrier{cfg: retry, logger: logger},
		logger:      logger,
	}
}

// PlaceOrder 提交订单，不重试。
func (g *CCXTGateway) PlaceOrder(ctx context.Context, req order.Request) (order.Result, error) {
	if err := g.ensureMarketsLoaded(ctx); err != nil {
		return order.Result{}, classify(OpPlaceOrder, err)
	}

	opts := []ccxt.CreateOrderOptions{ccxt.WithCreateOrderParams(ccxtOrderParams(req))}
	if req.Kind != order.KindMarket {
		opts = append(opts, ccxt.WithCreateOrderPrice(req.Price.InexactFloat64()))
	}

	raw, err := g.client.CreateOrder(
		toCCXTSymbol(req.Symbol),
		ccxtOrderType(req.Kind),
		strings.ToLower(string(req.Side)),
		req.Quantity.InexactFloat64(),
		opts...,
	)
	if err != nil {
		return order.Result{}, classify(OpPlaceOrder, err)
	}
	return fromCCXTOrder(raw, req), nil
}

// CancelOrder 撤销订单，不重试。
func (g *CCXTGateway) CancelOrder(ctx context.Context, symbol, orderID string) (order.Result, error) {
	if err := g.ensureMarketsLoaded(ctx); err != nil {
		return order.Result{}, classify(OpCancelOrder, err)
	}
	raw, err := g.client.CancelOrder(orderID, ccxt.WithCancelOrderSymbol(toCCXTSymbol(symbol)))
	if err != nil {
		return order.Result{}, classify(OpCancelOrder, err)
	}
	res := fromCCXTOrder(raw, requestFromCCXT(raw))
	if res.OrderID == "" {
		res.OrderID = orderID
	}
	if res.Status == order.StatusNew {
		res.Status = order.StatusCanceled
	}
	return res, nil
}

// CurrentPrice 返回最新成交价。
func (g *CCXTGateway) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := g.retry.do(ctx, OpCurrentPrice, func() error {
		if err := g.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		ticker, err := g.client.FetchTicker(toCCXTSymbol(symbol))
		if err != nil {
			return err
		}
		if ticker.Last == nil || *ticker.Last <= 0 {
			return &GatewayError{Op: OpCurrentPrice, Message: symbol + " 无最新成交价", Err: ErrNoPrice}
		}
		price = decimal.NewFromFloat(*ticker.Last)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return price, nil
}

// OrderStatus 查询订单状态。
func (g *CCXTGateway) OrderStatus(ctx context.Context, symbol, orderID string) (order.Result, error) {
	var raw ccxt.Order
	err := g.retry.do(ctx, OpOrderStatus, func() error {
		if err := g.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := g.client.FetchOrder(orderID, ccxt.WithFetchOrderSymbol(toCCXTSymbol(symbol)))
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return order.Result{}, err
	}
	return fromCCXTOrder(raw, requestFromCCXT(raw)), nil
}

// OpenOrders 列出挂单。
func (g *CCXTGateway) OpenOrders(ctx context.Context, symbol string) ([]order.Result, error) {
	var raw []ccxt.Order
	err := g.retry.do(ctx, OpOpenOrders, func() error {
		if err := g.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		var opts []ccxt.FetchOpenOrdersOptions
		if symbol != "" {
			opts = append(opts, ccxt.WithFetchOpenOrdersSymbol(toCCXTSymbol(symbol)))
		}
		result, err := g.client.FetchOpenOrders(opts...)
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]order.Result, 0, len(raw))
	for _, item := range raw {
		out = append(out, fromCCXTOrder(item, requestFromCCXT(item)))
	}
	return out, nil
}

// CancelAllOrders 撤销交易对的全部挂单，不重试。
func (g *CCXTGateway) CancelAllOrders(ctx context.Context, symbol string) error {
	if err := g.ensureMarketsLoaded(ctx); err != nil {
		return classify(OpCancelAllOrders, err)
	}
	if _, err := g.client.CancelAllOrders(ccxt.WithCancelAllOrdersSymbol(toCCXTSymbol(symbol))); err != nil {
		return classify(OpCancelAllOrders, err)
	}
	return nil
}

func (g *CCXTGateway) ensureMarketsLoaded(ctx context.Context) error {
	g.marketsMu.Lock()
	defer g.marketsMu.Unlock()

	if g.marketsLoaded {
		return nil
	}

	if err := g.retry.do(ctx, "load_markets", g.loadMarkets); err != nil {
		return err
	}

	g.marketsLoaded = true
	g.logger.Info("已完成市场元数据加载")
	return nil
}

// toCCXTSymbol 将 BTCUSDT 转为 ccxt 统一符号 BTC/USDT:USDT。
func toCCXTSymbol(symbol string) string {
	symbol = order.NormalizeSymbol(symbol)
	if strings.Contains(symbol, "/") {
		return symbol
	}
	base := strings.TrimSuffix(symbol, order.QuoteAsset)
	if base == "" || base == symbol {
		return symbol
	}
	return base + "/" + order.QuoteAsset + ":" + order.QuoteAsset
}

// fromCCXTSymbol 将 ccxt 统一符号还原为 BTCUSDT。
func fromCCXTSymbol(symbol string) string {
	if idx := strings.Index(symbol, ":"); idx >= 0 {
		symbol = symbol[:idx]
	}
	return order.NormalizeSymbol(strings.ReplaceAll(symbol, "/", ""))
}

func ccxtOrderType(kind order.Kind) string {
	switch kind {
	case order.KindMarket:
		return "market"
	default:
		// 带 stopPrice 的 limit 单由 ccxt 转为 Binance STOP。
		return "limit"
	}
}

func ccxtOrderParams(req order.Request) map[string]interface{} {
	params := map[string]interface{}{}
	if req.Kind != order.KindMarket {
		tif := strings.ToUpper(req.TimeInForce)
		if tif == "" {
			tif = "GTC"
		}
		params["timeInForce"] = tif
	}
	if req.Kind == order.KindStopLimit {
		params["stopPrice"] = req.StopPrice.InexactFloat64()
	}
	if req.ReduceOnly {
		params["reduceOnly"] = true
	}
	if req.ClientOrderID != "" {
		params["newClientOrderId"] = req.ClientOrderID
	}
	return params
}

func mapCCXTStatus(status string, filled float64) order.Status {
	switch strings.ToLower(status) {
	case "open", "new":
		if filled > 0 {
			return order.StatusPartiallyFilled
		}
		return order.StatusNew
	case "closed", "filled":
		return order.StatusFilled
	case "canceled", "cancelled", "expired":
		return order.StatusCanceled
	case "rejected":
		return order.StatusRejected
	default:
		return order.StatusNew
	}
}

func requestFromCCXT(raw ccxt.Order) order.Request {
	req := order.Request{
		Symbol:   fromCCXTSymbol(deref(raw.Symbol)),
		Side:     order.ParseSide(deref(raw.Side)),
		Quantity: floatDecimal(raw.Amount),
		Price:    floatDecimal(raw.Price),
	}
	req.StopPrice = floatDecimal(raw.TriggerPrice)
	switch {
	case strings.EqualFold(deref(raw.Type), "market"):
		req.Kind = order.KindMarket
	case req.StopPrice.IsPositive():
		req.Kind = order.KindStopLimit
	default:
		req.Kind = order.KindLimit
	}
	req.ClientOrderID = deref(raw.ClientOrderId)
	return req
}

func fromCCXTOrder(raw ccxt.Order, req order.Request) order.Result {
	filled := 0.0
	if raw.Filled != nil {
		filled = *raw.Filled
	}
	res := order.Result{
		OrderID:       deref(raw.Id),
		ClientOrderID: deref(raw.ClientOrderId),
		Request:       req,
		Status:        mapCCXTStatus(deref(raw.Status), filled),
		ExecutedQty:   decimal.NewFromFloat(filled),
		UpdatedAt:     time.Now().UTC(),
	}
	if res.ClientOrderID == "" {
		res.ClientOrderID = req.ClientOrderID
	}
	if raw.Timestamp != nil {
		res.UpdatedAt = time.UnixMilli(*raw.Timestamp).UTC()
	}
	if raw.Average != nil && *raw.Average > 0 {
		res.AvgPrice = decimal.NewNullDecimal(decimal.NewFromFloat(*raw.Average))
	}
	return res
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatDecimal(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}
