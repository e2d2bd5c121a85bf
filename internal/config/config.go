package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "trader"
)

// Load 读取 .env、配置文件及环境变量并返回 Config。
// path 为空时使用默认路径，默认文件不存在则仅依赖默认值与环境变量；
// overrides 以 viper 键覆盖最终取值（例如命令行的 -paper）。
func Load(path string, overrides map[string]any) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindCredentialAliases(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case !explicit && (errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)):
		case errors.As(err, &notFound):
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		default:
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.Exchange.Driver = strings.ToLower(strings.TrimSpace(cfg.Exchange.Driver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "testnet")

	v.SetDefault("exchange.driver", DriverCCXT)
	v.SetDefault("exchange.api_key", "")
	v.SetDefault("exchange.api_secret", "")
	v.SetDefault("exchange.testnet", true)
	v.SetDefault("exchange.base_url", "")
	v.SetDefault("exchange.timeout", "10s")
	v.SetDefault("exchange.retry.max_attempts", 3)
	v.SetDefault("exchange.retry.min_delay", "500ms")
	v.SetDefault("exchange.retry.max_delay", "5s")
	v.SetDefault("exchange.rate_limit.requests_per_second", 10)
	v.SetDefault("exchange.rate_limit.burst", 5)

	v.SetDefault("paper.prices", map[string]any{})
	v.SetDefault("paper.fill_market_orders", true)
	v.SetDefault("paper.balance", "10000")

	v.SetDefault("instruments", map[string]any{})

	v.SetDefault("execution.default_step_size", "0")
	v.SetDefault("execution.time_in_force", "GTC")

	v.SetDefault("reporter.buffer_size", 256)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9464")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.output_paths", []string{"bot.log"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
}

// bindCredentialAliases 兼容 BINANCE_API_KEY / BINANCE_API_SECRET。
func bindCredentialAliases(v *viper.Viper) error {
	if err := v.BindEnv("exchange.api_key", "TRADER_EXCHANGE_API_KEY", "BINANCE_API_KEY"); err != nil {
		return fmt.Errorf("绑定环境变量失败: %w", err)
	}
	if err := v.BindEnv("exchange.api_secret", "TRADER_EXCHANGE_API_SECRET", "BINANCE_API_SECRET"); err != nil {
		return fmt.Errorf("绑定环境变量失败: %w", err)
	}
	return nil
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			stringToDecimalHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// stringToDecimalHookFunc 将 YAML/环境变量中的数值转换为 decimal.Decimal。
func stringToDecimalHookFunc() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, t reflect.Type, data any) (any, error) {
		if t != decimalType {
			return data, nil
		}
		switch value := data.(type) {
		case decimal.Decimal:
			return value, nil
		case string:
			value = strings.TrimSpace(value)
			if value == "" {
				return decimal.Zero, nil
			}
			return decimal.NewFromString(value)
		case float64:
			return decimal.NewFromFloat(value), nil
		case float32:
			return decimal.NewFromFloat32(value), nil
		case int:
			return decimal.NewFromInt(int64(value)), nil
		case int64:
			return decimal.NewFromInt(value), nil
		default:
			return data, nil
		}
	}
}

// ConfigPathFromEnv 返回 TRADER_CONFIG 指定的配置路径。
func ConfigPathFromEnv() string {
	return os.Getenv("TRADER_CONFIG")
}
