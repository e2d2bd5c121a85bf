package execution

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"futures-trader/internal/exchange"
	"futures-trader/internal/order"
	"futures-trader/internal/report"
)

// Options 控制下单参数。
type Options struct {
	TimeInForce string
	Precision   order.PrecisionTable
}

// Executor 负责校验后的单笔提交，是各策略协调器共用的下单通道。
type Executor struct {
	gateway  exchange.Gateway
	reporter report.Reporter
	logger   *zap.Logger
	opts     Options
}

// NewExecutor 创建执行器。
func NewExecutor(gateway exchange.Gateway, reporter report.Reporter, opts Options, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = report.Nop{}
	}
	if opts.TimeInForce == "" {
		opts.TimeInForce = "GTC"
	}
	return &Executor{
		gateway:  gateway,
		reporter: reporter,
		logger:   logger,
		opts:     opts,
	}
}

// Execute 提交市价或限价单。网关失败映射为 FAILED 结果，仅校验失败返回 error。
func (e *Executor) Execute(ctx context.Context, req order.Request) (order.Result, error) {
	if req.Kind != order.KindMarket && req.Kind != order.KindLimit {
		return order.Result{}, &order.ValidationError{
			Field:  "kind",
			Value:  string(req.Kind),
			Reason: "仅支持 MARKET 或 LIMIT",
		}
	}
	if err := order.Validate(req); err != nil {
		return order.Result{}, err
	}

	strategy := report.StrategyMarket
	prefix := "mkt"
	if req.Kind == order.KindLimit {
		strategy = report.StrategyLimit
		prefix = "lmt"
	}
	return e.single(ctx, strategy, prefix, req), nil
}

// Precision 返回交易对的下单精度，供计划计算切片数量与网格价格。
func (e *Executor) Precision(symbol string) order.Precision {
	return e.opts.Precision.For(symbol)
}

// single 提交单笔订单并输出汇总事件。
func (e *Executor) single(ctx context.Context, strategy report.Strategy, prefix string, req order.Request) order.Result {
	run := newStrategyResult(strategy, req.Symbol)
	res := e.place(ctx, &run, strings.ToLower(string(req.Kind)), e.clientOrderID(&run, prefix, "1"), req)
	e.finish(&run)
	return res
}

// place 提交一笔已校验的订单，不重试；无论成败都记录并上报。
func (e *Executor) place(ctx context.Context, run *StrategyResult, label, clientID string, req order.Request) order.Result {
	if req.ClientOrderID == "" {
		req.ClientOrderID = clientID
	}
	if req.Kind != order.KindMarket && req.TimeInForce == "" {
		req.TimeInForce = e.opts.TimeInForce
	}

	res, err := e.gateway.PlaceOrder(ctx, req)
	if err != nil {
		res = order.Failed(req, err)
	} else {
		res.Request = req
		if res.ClientOrderID == "" {
			res.ClientOrderID = req.ClientOrderID
		}
	}

	run.add(label, res)
	e.reporter.Report(report.OrderEvent(run.RunID, run.Strategy, label, res))
	return res
}

func (e *Executor) finish(run *StrategyResult) {
	e.reporter.Report(report.SummaryEvent(run.RunID, run.Strategy, run.Symbol, run.summary()))
}

func (e *Executor) clientOrderID(run *StrategyResult, prefix, suffix string) string {
	return fmt.Sprintf("%s-%s-%s", prefix, run.shortID(), suffix)
}

func (e *Executor) runLogger(run *StrategyResult) *zap.Logger {
	return e.logger.With(
		zap.String("run_id", run.RunID),
		zap.String("strategy", string(run.Strategy)),
		zap.String("symbol", run.Symbol),
	)
}
