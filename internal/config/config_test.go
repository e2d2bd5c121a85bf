package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BINANCE_API_KEY", "BINANCE_API_SECRET",
		"TRADER_EXCHANGE_API_KEY", "TRADER_EXCHANGE_API_SECRET",
		"TRADER_EXCHANGE_DRIVER",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_FileValues(t *testing.T) {
	clearCredentialEnv(t)
	path := writeTempConfig(t, `
app:
  environment: testnet
exchange:
  driver: binance
  api_key: foo
  api_secret: bar
  timeout: 3s
  retry:
    max_attempts: 2
instruments:
  BTCUSDT:
    step_size: 0.001
    tick_size: "0.1"
paper:
  prices:
    BTCUSDT: 44500
execution:
  default_step_size: 0.01
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, DriverBinance, cfg.Exchange.Driver)
	assert.Equal(t, "foo", cfg.Exchange.APIKey)
	assert.Equal(t, 3*time.Second, cfg.Exchange.Timeout)
	assert.Equal(t, 2, cfg.Exchange.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Exchange.Retry.MinDelay)

	inst, ok := cfg.Instruments["btcusdt"]
	require.True(t, ok, "instrument keys are case-folded: %+v", cfg.Instruments)
	assert.True(t, inst.StepSize.Equal(decimal.RequireFromString("0.001")))
	assert.True(t, inst.TickSize.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, cfg.Paper.Prices["btcusdt"].Equal(decimal.NewFromInt(44500)))
	assert.True(t, cfg.Execution.DefaultStepSize.Equal(decimal.RequireFromString("0.01")))

	assert.Equal(t, "GTC", cfg.Execution.TimeInForce)
	assert.Equal(t, []string{"bot.log"}, cfg.Logging.OutputPaths)
}

func TestLoad_BinanceEnvAliases(t *testing.T) {
	clearCredentialEnv(t)
	path := writeTempConfig(t, `
exchange:
  driver: ccxt
`)
	t.Setenv("BINANCE_API_KEY", "env-key")
	t.Setenv("BINANCE_API_SECRET", "env-secret")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Exchange.APIKey)
	assert.Equal(t, "env-secret", cfg.Exchange.APISecret)
}

func TestLoad_MissingCredentialsIsConfigurationError(t *testing.T) {
	clearCredentialEnv(t)
	path := writeTempConfig(t, `
exchange:
  driver: binance
`)
	_, err := Load(path, nil)
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoad_PaperOverrideNeedsNoCredentials(t *testing.T) {
	clearCredentialEnv(t)
	cfg, err := Load("", map[string]any{"exchange.driver": "PAPER"})
	require.NoError(t, err)
	assert.Equal(t, DriverPaper, cfg.Exchange.Driver)
	assert.True(t, cfg.Paper.FillMarketOrders)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	clearCredentialEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	err := (&Config{}).Validate()
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	msg := err.Error()
	assert.Contains(t, msg, "app.environment")
	assert.Contains(t, msg, "exchange.driver")
	assert.Contains(t, msg, "reporter.buffer_size")
	assert.Contains(t, msg, "logging.level")
}
