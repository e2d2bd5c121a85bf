package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"futures-trader/internal/config"
	"futures-trader/internal/metrics"
	"futures-trader/internal/order"
)

// rateLimited 在每次调用前等待令牌。
type rateLimited struct {
	next    Gateway
	limiter *rate.Limiter
}

// WithRateLimit 为网关加上令牌桶限速，requests_per_second 为0时原样返回。
func WithRateLimit(next Gateway, cfg config.RateLimitConfig) Gateway {
	if cfg.RequestsPerSecond <= 0 {
		return next
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &rateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}
}

func (r *rateLimited) wait(ctx context.Context, op string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return classify(op, err)
	}
	return nil
}

func (r *rateLimited) PlaceOrder(ctx context.Context, req order.Request) (order.Result, error) {
	if err := r.wait(ctx, OpPlaceOrder); err != nil {
		return order.Result{}, err
	}
	return r.next.PlaceOrder(ctx, req)
}

func (r *rateLimited) CancelOrder(ctx context.Context, symbol, orderID string) (order.Result, error) {
	if err := r.wait(ctx, OpCancelOrder); err != nil {
		return order.Result{}, err
	}
	return r.next.CancelOrder(ctx, symbol, orderID)
}

func (r *rateLimited) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := r.wait(ctx, OpCurrentPrice); err != nil {
		return decimal.Zero, err
	}
	return r.next.CurrentPrice(ctx, symbol)
}

func (r *rateLimited) OrderStatus(ctx context.Context, symbol, orderID string) (order.Result, error) {
	if err := r.wait(ctx, OpOrderStatus); err != nil {
		return order.Result{}, err
	}
	return r.next.OrderStatus(ctx, symbol, orderID)
}

func (r *rateLimited) OpenOrders(ctx context.Context, symbol string) ([]order.Result, error) {
	if err := r.wait(ctx, OpOpenOrders); err != nil {
		return nil, err
	}
	return r.next.OpenOrders(ctx, symbol)
}

func (r *rateLimited) CancelAllOrders(ctx context.Context, symbol string) error {
	if err := r.wait(ctx, OpCancelAllOrders); err != nil {
		return err
	}
	return r.next.CancelAllOrders(ctx, symbol)
}

// instrumented 记录每次调用的耗时与结果。
type instrumented struct {
	next       Gateway
	collectors *metrics.Collectors
}

// WithMetrics 为网关加上耗时统计。
func WithMetrics(next Gateway, collectors *metrics.Collectors) Gateway {
	return &instrumented{next: next, collectors: collectors}
}

func (m *instrumented) observe(op string, start time.Time, err error) {
	m.collectors.ObserveGatewayCall(op, time.Since(start), err)
}

func (m *instrumented) PlaceOrder(ctx context.Context, req order.Request) (order.Result, error) {
	start := time.Now()
	res, err := m.next.PlaceOrder(ctx, req)
	m.observe(OpPlaceOrder, start, err)
	return res, err
}

func (m *instrumented) CancelOrder(ctx context.Context, symbol, orderID string) (order.Result, error) {
	start := time.Now()
	res, err := m.next.CancelOrder(ctx, symbol, orderID)
	m.observe(OpCancelOrder, start, err)
	return res, err
}

func (m *instrumented) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	start := time.Now()
	price, err := m.next.CurrentPrice(ctx, symbol)
	m.observe(OpCurrentPrice, start, err)
	return price, err
}

func (m *instrumented) OrderStatus(ctx context.Context, symbol, orderID string) (order.Result, error) {
	start := time.Now()
	res, err := m.next.OrderStatus(ctx, symbol, orderID)
	m.observe(OpOrderStatus, start, err)
	return res, err
}

func (m *instrumented) OpenOrders(ctx context.Context, symbol string) ([]order.Result, error) {
	start := time.Now()
	res, err := m.next.OpenOrders(ctx, symbol)
	m.observe(OpOpenOrders, start, err)
	return res, err
}

func (m *instrumented) CancelAllOrders(ctx context.Context, symbol string) error {
	start := time.Now()
	err := m.next.CancelAllOrders(ctx, symbol)
	m.observe(OpCancelAllOrders, start, err)
	return err
}
