package app

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-trader/internal/order"
)

func TestParse_Arity(t *testing.T) {
	cases := [][]string{
		nil,
		{"market", "BTCUSDT", "BUY"},
		{"limit", "BTCUSDT", "BUY", "0.01"},
		{"stop-limit", "BTCUSDT", "BUY", "0.01", "45000"},
		{"oco", "BTCUSDT", "BUY", "0.01", "46000", "43000"},
		{"twap", "BTCUSDT", "BUY", "0.1", "10", "30", "extra"},
		{"grid", "BTCUSDT", "0.01", "43000", "47000"},
		{"orders", "BTCUSDT", "ETHUSDT"},
		{"cancel", "BTCUSDT"},
		{"cancel-all"},
		{"status"},
		{"account", "BTCUSDT"},
		{"unknown"},
	}
	for _, args := range cases {
		_, err := Parse(args)
		require.Error(t, err, "%v", args)
		var usageErr *UsageError
		assert.ErrorAs(t, err, &usageErr, "%v", args)
		assert.Equal(t, ExitUsage, ExitCode(err))
	}
}

func TestParse_UsageTextCarriesExample(t *testing.T) {
	_, err := Parse([]string{"twap", "BTCUSDT"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "用法: trader twap SYMBOL SIDE TOTAL_QUANTITY NUM_ORDERS INTERVAL_SECONDS")
	assert.Contains(t, err.Error(), "示例: trader twap BTCUSDT BUY 0.1 10 30")
}

func TestParse_UsageTextCarriesNotes(t *testing.T) {
	_, err := Parse([]string{"oco", "BTCUSDT"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "说明: 两条腿均为反向只减仓单")
	assert.Contains(t, err.Error(), "46000 43000 42900")

	_, err = Parse([]string{"grid", "BTCUSDT"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_attempts x max_delay")

	_, err = Parse([]string{"market"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "说明:")
}

func TestParse_ValidArgs(t *testing.T) {
	cases := [][]string{
		{"market", "btcusdt", "buy", "0.01"},
		{"LIMIT", "BTCUSDT", "sell", "0.01", "46000"},
		{"stop-limit", "BTCUSDT", "BUY", "0.01", "45000", "44900"},
		{"oco", "BTCUSDT", "BUY", "0.01", "46000", "43000", "43100"},
		{"twap", "BTCUSDT", "BUY", "0.1", "10", "30"},
		{"grid", "BTCUSDT", "0.01", "43000", "47000", "10"},
		{"orders"},
		{"orders", "ethusdt"},
		{"cancel", "BTCUSDT", "123"},
		{"cancel-all", "BTCUSDT"},
		{"status", "BTCUSDT", "123"},
		{"account"},
	}
	for _, args := range cases {
		inv, err := Parse(args)
		require.NoError(t, err, "%v", args)
		assert.NotNil(t, inv.run)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	cases := []struct {
		args  []string
		field string
	}{
		{[]string{"market", "BTCUSDT", "HOLD", "0.01"}, "side"},
		{[]string{"market", "BTC", "BUY", "0.01"}, "symbol"},
		{[]string{"market", "BTCUSDT", "BUY", "abc"}, "quantity"},
		{[]string{"market", "BTCUSDT", "BUY", "-1"}, "quantity"},
		{[]string{"limit", "BTCUSDT", "BUY", "0.01", "0"}, "price"},
		{[]string{"twap", "BTCUSDT", "BUY", "0.1", "ten", "30"}, "num_orders"},
		{[]string{"grid", "BTCUSDT", "0.01", "43000", "x", "10"}, "upper_price"},
		{[]string{"cancel-all", "btc"}, "symbol"},
	}
	for _, tc := range cases {
		_, err := Parse(tc.args)
		require.Error(t, err, "%v", tc.args)
		var vErr *order.ValidationError
		require.ErrorAs(t, err, &vErr, "%v", tc.args)
		assert.Equal(t, tc.field, vErr.Field)
		assert.Equal(t, ExitUsage, ExitCode(err))
	}
}

func TestParse_StopLimitRelationship(t *testing.T) {
	_, err := Parse([]string{"stop-limit", "BTCUSDT", "BUY", "0.01", "44000", "44500"})
	require.Error(t, err)
	assert.ErrorIs(t, err, order.ErrStopLimitRelationship)
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	PrintUsage(&buf)
	for _, c := range commands {
		assert.Contains(t, buf.String(), c.line(c.example))
		if c.note != "" {
			assert.Contains(t, buf.String(), c.name+": "+c.note)
		}
	}
}
