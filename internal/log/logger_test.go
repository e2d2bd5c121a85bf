package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-trader/internal/config"
)

func TestNewLogger_WritesToConfiguredFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	logger, err := NewLogger(config.LoggingConfig{
		Level:            "debug",
		Encoding:         "json",
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{"stderr"},
	})
	require.NoError(t, err)

	logger.Info("订单已提交")
	require.NoError(t, Sync(logger))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"futures-trader"`)
	assert.Contains(t, string(data), "订单已提交")
}

func TestNewLogger_RejectsBadInput(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "loud"})
	require.Error(t, err)

	_, err = NewLogger(config.LoggingConfig{Level: "info", Encoding: "xml"})
	require.Error(t, err)
}

func TestSync_Nil(t *testing.T) {
	assert.NoError(t, Sync(nil))
}
