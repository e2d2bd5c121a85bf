package exchange

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-trader/internal/config"
	"futures-trader/internal/order"
)

const binanceTestnetURL = "https://testnet.binancefuture.com"

// BinanceGateway 基于 go-binance futures REST 实现 Gateway。
type BinanceGateway struct {
	client *futures.Client
	retry  retrier
	logger *zap.Logger
}

// NewBinanceGateway 构造 go-binance 网关，base_url 优先于 testnet 开关。
func NewBinanceGateway(cfg config.ExchangeConfig, logger *zap.Logger) (*BinanceGateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := futures.NewClient(cfg.APIKey, cfg.APISecret)
	switch {
	case strings.TrimSpace(cfg.BaseURL) != "":
		client.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	case cfg.Testnet:
		client.BaseURL = binanceTestnetURL
	}
	client.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &BinanceGateway{
		client: client,
		retry:  retrier{cfg: cfg.Retry, logger: logger},
		logger: logger,
	}, nil
}

// PlaceOrder 提交订单，STOP_LIMIT 以 Binance STOP 类型发送。
func (g *BinanceGateway) PlaceOrder(ctx context.Context, req order.Request) (order.Result, error) {
	svc := g.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Quantity(req.Quantity.String())

	switch req.Kind {
	case order.KindMarket:
		svc = svc.Type(futures.OrderTypeMarket)
	case order.KindLimit:
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(binanceTimeInForce(req.TimeInForce)).
			Price(req.Price.String())
	case order.KindStopLimit:
		svc = svc.Type(futures.OrderTypeStop).
			TimeInForce(binanceTimeInForce(req.TimeInForce)).
			Price(req.Price.String()).
			StopPrice(req.StopPrice.String())
	}
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return order.Result{}, classify(OpPlaceOrder, err)
	}

	res := order.Result{
		OrderID:       strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Request:       req,
		Status:        mapBinanceStatus(string(resp.Status)),
		ExecutedQty:   parseDecimal(resp.ExecutedQuantity),
		AvgPrice:      positiveNull(resp.AvgPrice),
		UpdatedAt:     millis(resp.UpdateTime),
	}
	return res, nil
}

// CancelOrder 撤销订单，不重试。
func (g *BinanceGateway) CancelOrder(ctx context.Context, symbol, orderID string) (order.Result, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return order.Result{}, err
	}
	resp, err := g.client.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(ctx)
	if err != nil {
		return order.Result{}, classify(OpCancelOrder, err)
	}
	return order.Result{
		OrderID:       strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Request: binanceRequest(resp.Symbol, string(resp.Side), string(resp.Type),
			resp.OrigQuantity, resp.Price, resp.StopPrice, resp.ClientOrderID),
		Status:      mapBinanceStatus(string(resp.Status)),
		ExecutedQty: parseDecimal(resp.ExecutedQuantity),
		UpdatedAt:   millis(resp.UpdateTime),
	}, nil
}

// CurrentPrice 返回最新成交价。
func (g *BinanceGateway) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := g.retry.do(ctx, OpCurrentPrice, func() error {
		prices, err := g.client.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return err
		}
		for _, p := range prices {
			if p == nil || !strings.EqualFold(p.Symbol, symbol) {
				continue
			}
			value := parseDecimal(p.Price)
			if value.IsPositive() {
				price = value
				return nil
			}
		}
		return &GatewayError{Op: OpCurrentPrice, Message: symbol + " 无最新成交价", Err: ErrNoPrice}
	})
	if err != nil {
		return decimal.Zero, err
	}
	return price, nil
}

// OrderStatus 查询订单状态。
func (g *BinanceGateway) OrderStatus(ctx context.Context, symbol, orderID string) (order.Result, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return order.Result{}, err
	}
	var raw *futures.Order
	err = g.retry.do(ctx, OpOrderStatus, func() error {
		result, err := g.client.NewGetOrderService().Symbol(symbol).OrderID(id).Do(ctx)
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return order.Result{}, err
	}
	return fromBinanceOrder(raw), nil
}

// OpenOrders 列出挂单。
func (g *BinanceGateway) OpenOrders(ctx context.Context, symbol string) ([]order.Result, error) {
	var raw []*futures.Order
	err := g.retry.do(ctx, OpOpenOrders, func() error {
		svc := g.client.NewListOpenOrdersService()
		if symbol != "" {
			svc = svc.Symbol(symbol)
		}
		result, err := svc.Do(ctx)
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
		if item == nil {
			continue
		}
		out = append(out, fromBinanceOrder(item))
	}
	return out, nil
}

// CancelAllOrders 撤销交易对的全部挂单，不重试。
func (g *BinanceGateway) CancelAllOrders(ctx context.Context, symbol string) error {
	if err := g.client.NewCancelAllOpenOrdersService().Symbol(symbol).Do(ctx); err != nil {
		return classify(OpCancelAllOrders, err)
	}
	return nil
}

func fromBinanceOrder(raw *futures.Order) order.Result {
	return order.Result{
		OrderID:       strconv.FormatInt(raw.OrderID, 10),
		ClientOrderID: raw.ClientOrderID,
		Request: binanceRequest(raw.Symbol, string(raw.Side), string(raw.Type),
			raw.OrigQuantity, raw.Price, raw.StopPrice, raw.ClientOrderID),
		Status:      mapBinanceStatus(string(raw.Status)),
		ExecutedQty: parseDecimal(raw.ExecutedQuantity),
		AvgPrice:    positiveNull(raw.AvgPrice),
		UpdatedAt:   millis(raw.UpdateTime),
	}
}

func binanceRequest(symbol, side, typ, qty, price, stopPrice, clientID string) order.Request {
	req := order.Request{
		Symbol:        symbol,
		Side:          order.ParseSide(side),
		Quantity:      parseDecimal(qty),
		Price:         parseDecimal(price),
		StopPrice:     parseDecimal(stopPrice),
		ClientOrderID: clientID,
	}
	switch futures.OrderType(typ) {
	case futures.OrderTypeMarket:
		req.Kind = order.KindMarket
	case futures.OrderTypeStop:
		req.Kind = order.KindStopLimit
	default:
		req.Kind = order.KindLimit
	}
	return req
}

func mapBinanceStatus(status string) order.Status {
	switch futures.OrderStatusType(status) {
	case futures.OrderStatusTypeNew:
		return order.StatusNew
	case futures.OrderStatusTypePartiallyFilled:
		return order.StatusPartiallyFilled
	case futures.OrderStatusTypeFilled:
		return order.StatusFilled
	case futures.OrderStatusTypeCanceled, futures.OrderStatusTypeExpired:
		return order.StatusCanceled
	case futures.OrderStatusTypeRejected:
		return order.StatusRejected
	default:
		return order.StatusNew
	}
}

func binanceTimeInForce(tif string) futures.TimeInForceType {
	if tif == "" {
		return futures.TimeInForceTypeGTC
	}
	return futures.TimeInForceType(strings.ToUpper(tif))
}

func parseOrderID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, &order.ValidationError{Field: "order_id", Value: raw, Reason: "必须为正整数"}
	}
	return id, nil
}

func parseDecimal(raw string) decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return value
}

func positiveNull(raw string) decimal.NullDecimal {
	value := parseDecimal(raw)
	if !value.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(value)
}

func millis(ms int64) time.Time {
	if ms <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}
