package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"futures-trader/internal/config"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		code      string
		is        error
	}{
		{name: "ccxt network", err: &ccxt.Error{Type: ccxt.NetworkErrorErrType, Message: "reset"}, retryable: true},
		{name: "ccxt rate limit", err: &ccxt.Error{Type: ccxt.RateLimitExceededErrType}, retryable: true},
		{name: "ccxt maintenance", err: &ccxt.Error{Type: ccxt.OnMaintenanceErrType}, is: ErrMaintenance},
		{name: "binance rate limit", err: &common.APIError{Code: -1003, Message: "Too many requests"}, retryable: true, code: "-1003"},
		{name: "binance margin", err: &common.APIError{Code: -2019, Message: "Margin is insufficient."}, code: "-2019"},
		{name: "binance unknown order", err: &common.APIError{Code: -2011, Message: "Unknown order sent."}, code: "-2011", is: ErrUnknownOrder},
		{name: "net timeout", err: timeoutErr{}, retryable: true},
		{name: "context canceled", err: context.Canceled, is: context.Canceled},
		{name: "plain", err: errors.New("boom")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gwErr := classify(OpCurrentPrice, tc.err)
			require.NotNil(t, gwErr)
			assert.Equal(t, OpCurrentPrice, gwErr.Op)
			assert.Equal(t, tc.retryable, gwErr.Retryable)
			assert.Equal(t, tc.retryable, IsRetryable(tc.err))
			if tc.code != "" {
				assert.Equal(t, tc.code, gwErr.Code)
			}
			if tc.is != nil {
				assert.ErrorIs(t, gwErr, tc.is)
			}
			assert.Contains(t, gwErr.Error(), "exchange: current_price 失败")
		})
	}

	assert.Nil(t, classify(OpPlaceOrder, nil))
	assert.False(t, IsRetryable(nil))
}

func TestRetrier_RetriesOnlyRetryableErrors(t *testing.T) {
	r := retrier{
		cfg:    config.RetryConfig{MaxAttempts: 3, MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		logger: zap.NewNop(),
	}

	calls := 0
	err := r.do(context.Background(), OpCurrentPrice, func() error {
		calls++
		if calls < 3 {
			return &ccxt.Error{Type: ccxt.RequestTimeoutErrType}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = r.do(context.Background(), OpCurrentPrice, func() error {
		calls++
		return &common.APIError{Code: -1121, Message: "Invalid symbol."}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = r.do(context.Background(), OpCurrentPrice, func() error {
		calls++
		return timeoutErr{}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, IsGatewayError(err))
}

func TestRetrier_StopsOnContextCancel(t *testing.T) {
	r := retrier{
		cfg:    config.RetryConfig{MaxAttempts: 5, MinDelay: time.Hour, MaxDelay: time.Hour},
		logger: zap.NewNop(),
	}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := r.do(ctx, OpOpenOrders, func() error {
		calls++
		cancel()
		return timeoutErr{}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
