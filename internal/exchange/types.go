package exchange

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-trader/internal/config"
	"futures-trader/internal/metrics"
	"futures-trader/internal/order"
)

// 操作名称，用于日志、错误与指标标签。
const (
	OpPlaceOrder      = "place_order"
	OpCancelOrder     = "cancel_order"
	OpCurrentPrice    = "current_price"
	OpOrderStatus     = "order_status"
	OpOpenOrders      = "open_orders"
	OpCancelAllOrders = "cancel_all_orders"
)

// Gateway 抽象交易所能力。下单与撤单不做重试，只读查询可由实现自行重试。
type Gateway interface {
	PlaceOrder(ctx context.Context, req order.Request) (order.Result, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (order.Result, error)
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	OrderStatus(ctx context.Context, symbol, orderID string) (order.Result, error)
	// OpenOrders 的 symbol 可为空，表示全部交易对。
	OpenOrders(ctx context.Context, symbol string) ([]order.Result, error)
	CancelAllOrders(ctx context.Context, symbol string) error
	Account(ctx context.Context) (Account, error)
}

// New 按 exchange.driver 构造网关，并叠加限速与耗时统计。
func New(cfg *config.Config, collectors *metrics.Collectors, logger *zap.Logger) (Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		gw  Gateway
		err error
	)
	switch cfg.Exchange.Driver {
	case config.DriverCCXT:
		gw, err = NewCCXTGateway(cfg.Exchange, logger)
	case config.DriverBinance:
		gw, err = NewBinanceGateway(cfg.Exchange, logger)
	case config.DriverPaper:
		gw = NewPaper(cfg.Paper, logger)
	default:
		return nil, &config.ConfigurationError{Err: fmt.Errorf("exchange.driver 不支持: %q", cfg.Exchange.Driver)}
	}
	if err != nil {
		return nil, err
	}

	gw = WithRateLimit(gw, cfg.Exchange.RateLimit)
	if collectors != nil {
		gw = WithMetrics(gw, collectors)
	}

	logger.Info("交易所网关已就绪",
		zap.String("driver", cfg.Exchange.Driver),
		zap.Bool("testnet", cfg.Exchange.Testnet),
	)
	return gw, nil
}
