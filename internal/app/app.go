package app

import (
	"context"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"futures-trader/internal/config"
	"futures-trader/internal/exchange"
	"futures-trader/internal/execution"
	"futures-trader/internal/metrics"
	"futures-trader/internal/order"
	"futures-trader/internal/report"
)

// App 聚合核心依赖并驱动一次命令执行。
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	out        io.Writer
	collectors *metrics.Collectors
	gateway    exchange.Gateway
	reporter   *report.Async
	exec       *execution.Executor
	sleeper    execution.Sleeper
}

// New 按配置创建交易所网关与执行事件管道。
func New(cfg *config.Config, logger *zap.Logger, out io.Writer) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	collectors := metrics.New()
	gateway, err := exchange.New(cfg, collectors, logger)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, logger, out, collectors, gateway), nil
}

func newApp(cfg *config.Config, logger *zap.Logger, out io.Writer, collectors *metrics.Collectors, gateway exchange.Gateway) *App {
	// 终端输出同步写入，逐笔结果与汇总不经过可丢弃的缓冲。
	background := report.NewAsync(report.Multi{
		report.NewLogSink(logger),
		report.NewMetricsSink(collectors),
	}, cfg.Reporter.BufferSize, collectors.DroppedEvents.Inc)
	reporter := report.Multi{report.NewConsoleSink(out), background}

	return &App{
		cfg:        cfg,
		logger:     logger,
		out:        out,
		collectors: collectors,
		gateway:    gateway,
		reporter:   background,
		exec: execution.NewExecutor(gateway, reporter, execution.Options{
			TimeInForce: cfg.Execution.TimeInForce,
			Precision:   precisionTable(cfg),
		}, logger),
	}
}

func precisionTable(cfg *config.Config) order.PrecisionTable {
	bySymbol := make(map[string]order.Precision, len(cfg.Instruments))
	for symbol, inst := range cfg.Instruments {
		bySymbol[symbol] = order.Precision{StepSize: inst.StepSize, TickSize: inst.TickSize}
	}
	return order.NewPrecisionTable(bySymbol, order.Precision{StepSize: cfg.Execution.DefaultStepSize})
}

// Run 执行命令；启用指标时同时运行 /metrics 服务，命令结束后一并停止。
func (a *App) Run(ctx context.Context, inv *Invocation) error {
	a.logger.Info("开始执行命令",
		zap.String("command", inv.Command),
		zap.String("environment", a.cfg.App.Environment),
		zap.String("driver", a.cfg.Exchange.Driver),
	)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.Metrics.Enabled {
		g.Go(func() error {
			if err := serveMetrics(gctx, a.cfg.Metrics.ListenAddr, a.collectors.Handler(), a.logger); err != nil {
				a.logger.Error("指标服务异常", zap.Error(err))
			}
			return nil
		})
	}
	g.Go(func() error {
		defer stop()
		return inv.run(gctx, a)
	})

	err := g.Wait()
	if err != nil {
		a.logger.Error("命令执行失败", zap.String("command", inv.Command), zap.Error(err))
	}
	return err
}

// Close 等待执行事件全部输出。
func (a *App) Close() {
	a.reporter.Close()
	if dropped := a.reporter.Dropped(); dropped > 0 {
		a.logger.Warn("部分执行事件因缓冲区已满被丢弃", zap.Int64("dropped", dropped))
	}
}

func (a *App) runSingle(ctx context.Context, req order.Request) error {
	return submit(ctx, a.exec, req)
}

func (a *App) runStopLimit(ctx context.Context, req order.Request) error {
	return submit(ctx, execution.NewStopLimitCoordinator(a.exec), req)
}

func submit(ctx context.Context, trader execution.Trader, req order.Request) error {
	res, err := trader.Execute(ctx, req)
	if err != nil {
		return err
	}
	return singleOutcome(ctx, req.Kind, res)
}

func (a *App) runOCO(ctx context.Context, p ocoArgs) error {
	plan, err := execution.NewOCOPlan(p.symbol, p.side, p.quantity, p.takeProfit, p.stopPrice, p.stopLimit)
	if err != nil {
		return err
	}
	return outcome(ctx, execution.NewOCOCoordinator(a.exec).Execute(ctx, plan))
}

func (a *App) runTWAP(ctx context.Context, p twapArgs) error {
	plan, err := execution.NewTWAPPlan(p.symbol, p.side, p.total, p.slices, p.interval, a.exec.Precision(p.symbol))
	if err != nil {
		return err
	}
	return outcome(ctx, execution.NewTWAPCoordinator(a.exec, a.sleeper).Execute(ctx, plan))
}

func (a *App) runGrid(ctx context.Context, p gridArgs) error {
	plan, err := execution.NewGridPlan(p.symbol, p.quantity, p.lower, p.upper, p.levels, a.exec.Precision(p.symbol))
	if err != nil {
		return err
	}
	run, err := execution.NewGridCoordinator(a.exec).Execute(ctx, plan)
	if err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		return &UnavailableError{Command: string(run.Strategy), Err: err}
	}
	return outcome(ctx, run)
}

func outcome(ctx context.Context, run execution.StrategyResult) error {
	switch {
	case run.Succeeded == 0 && ctx.Err() != nil:
		return ErrInterrupted
	case run.Unavailable():
		return &UnavailableError{Command: string(run.Strategy), Err: run.Err()}
	default:
		return nil
	}
}

func singleOutcome(ctx context.Context, kind order.Kind, res order.Result) error {
	if res.Status.Succeeded() {
		return nil
	}
	if ctx.Err() != nil {
		return ErrInterrupted
	}
	return &UnavailableError{Command: string(kind), Err: errorsFromResult(res)}
}
