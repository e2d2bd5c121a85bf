package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// 支持的交易所驱动。
const (
	DriverCCXT    = "ccxt"
	DriverBinance = "binance"
	DriverPaper   = "paper"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App         AppConfig                   `mapstructure:"app"`
	Exchange    ExchangeConfig              `mapstructure:"exchange"`
	Paper       PaperConfig                 `mapstructure:"paper"`
	Instruments map[string]InstrumentConfig `mapstructure:"instruments"`
	Execution   ExecutionConfig             `mapstructure:"execution"`
	Reporter    ReporterConfig              `mapstructure:"reporter"`
	Metrics     MetricsConfig               `mapstructure:"metrics"`
	Logging     LoggingConfig               `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ExchangeConfig 描述交易所连接信息。
type ExchangeConfig struct {
	Driver    string          `mapstructure:"driver"`
	APIKey    string          `mapstructure:"api_key"`
	APISecret string          `mapstructure:"api_secret"`
	Testnet   bool            `mapstructure:"testnet"`
	BaseURL   string          `mapstructure:"base_url"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	Retry     RetryConfig     `mapstructure:"retry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RetryConfig 控制只读调用的重试，下单与撤单不重试。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// RateLimitConfig 控制对交易所的请求速率，RequestsPerSecond 为0时不限速。
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// PaperConfig 控制内存模拟交易所。
type PaperConfig struct {
	Prices           map[string]decimal.Decimal `mapstructure:"prices"`
	FillMarketOrders bool                       `mapstructure:"fill_market_orders"`
	Balance          decimal.Decimal            `mapstructure:"balance"`
}

// InstrumentConfig 描述单个合约的精度。
type InstrumentConfig struct {
	StepSize decimal.Decimal `mapstructure:"step_size"`
	TickSize decimal.Decimal `mapstructure:"tick_size"`
}

// ExecutionConfig 控制下单行为。
type ExecutionConfig struct {
	DefaultStepSize decimal.Decimal `mapstructure:"default_step_size"`
	TimeInForce     string          `mapstructure:"time_in_force"`
}

// ReporterConfig 控制执行事件的异步投递。
type ReporterConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// MetricsConfig 控制 Prometheus 指标接口。
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ConfigurationError 表示连接凭证或配置项缺失/无效，由调用方原样向上传递。
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("配置校验失败: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError 判断错误链中是否包含 ConfigurationError。
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}

	switch strings.ToLower(c.Exchange.Driver) {
	case DriverCCXT, DriverBinance:
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			err = multierr.Append(err, errors.New("exchange.api_key/api_secret 不能为空（或设置 BINANCE_API_KEY/BINANCE_API_SECRET）"))
		}
	case DriverPaper:
	default:
		err = multierr.Append(err, fmt.Errorf("exchange.driver 不支持: %q", c.Exchange.Driver))
	}
	if c.Exchange.Timeout <= 0 {
		err = multierr.Append(err, errors.New("exchange.timeout 必须大于0"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if c.Exchange.RateLimit.RequestsPerSecond < 0 {
		err = multierr.Append(err, errors.New("exchange.rate_limit.requests_per_second 不能为负"))
	}
	if c.Exchange.RateLimit.RequestsPerSecond > 0 && c.Exchange.RateLimit.Burst <= 0 {
		err = multierr.Append(err, errors.New("exchange.rate_limit.burst 必须大于0"))
	}

	for symbol, inst := range c.Instruments {
		if inst.StepSize.IsNegative() || inst.TickSize.IsNegative() {
			err = multierr.Append(err, fmt.Errorf("instruments.%s 精度不能为负", symbol))
		}
	}
	for symbol, price := range c.Paper.Prices {
		if !price.IsPositive() {
			err = multierr.Append(err, fmt.Errorf("paper.prices.%s 必须大于0", symbol))
		}
	}
	if c.Paper.Balance.IsNegative() {
		err = multierr.Append(err, errors.New("paper.balance 不能为负"))
	}
	if c.Execution.DefaultStepSize.IsNegative() {
		err = multierr.Append(err, errors.New("execution.default_step_size 不能为负"))
	}
	switch strings.ToUpper(c.Execution.TimeInForce) {
	case "GTC", "IOC", "FOK", "GTX":
	default:
		err = multierr.Append(err, fmt.Errorf("execution.time_in_force 不支持: %q", c.Execution.TimeInForce))
	}

	if c.Reporter.BufferSize <= 0 {
		err = multierr.Append(err, errors.New("reporter.buffer_size 必须大于0"))
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		err = multierr.Append(err, errors.New("metrics.listen_addr 不能为空"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return &ConfigurationError{Err: err}
	}

	return nil
}
