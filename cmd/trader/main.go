package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"futures-trader/internal/app"
	"futures-trader/internal/config"
	"futures-trader/internal/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath string
		paper      bool
	)
	flag.StringVar(&configPath, "config", config.ConfigPathFromEnv(), "配置文件路径，默认使用 configs/config.yaml")
	flag.BoolVar(&paper, "paper", false, "使用内存模拟交易所，不发送真实订单")
	flag.Usage = func() {
		app.PrintUsage(flag.CommandLine.Output())
		fmt.Fprintln(flag.CommandLine.Output(), "\n参数:")
		flag.PrintDefaults()
	}
	flag.Parse()

	inv, err := app.Parse(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		var usageErr *app.UsageError
		if errors.As(err, &usageErr) && flag.NArg() == 0 {
			flag.Usage()
		}
		return app.ExitCode(err)
	}

	var overrides map[string]any
	if paper {
		overrides = map[string]any{"exchange.driver": config.DriverPaper}
	}
	cfg, err := config.Load(configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return app.ExitCode(err)
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		return app.ExitConfig
	}
	defer func(logger *zap.Logger) {
		_ = log.Sync(logger)
	}(logger)

	trader, err := app.New(cfg, logger, os.Stdout)
	if err != nil {
		logger.Error("初始化交易所失败", zap.Error(err))
		fmt.Fprintf(os.Stderr, "初始化交易所失败: %v\n", err)
		return app.ExitCode(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = trader.Run(ctx, inv)
	trader.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
	return app.ExitCode(err)
}
