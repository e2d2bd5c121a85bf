package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2/common"
	ccxt "github.com/ccxt/ccxt/go/v4"
)

var (
	// ErrMaintenance 表示交易所处于维护状态。
	ErrMaintenance = errors.New("exchange on maintenance")
	// ErrNoPrice 表示无法取得交易对的行情价格。
	ErrNoPrice = errors.New("no market price")
	// ErrUnknownOrder 表示交易所不存在该订单。
	ErrUnknownOrder = errors.New("unknown order")
)

// GatewayError 为交易所或传输层返回的失败。
type GatewayError struct {
	Op        string
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	b.WriteString("exchange: ")
	b.WriteString(e.Op)
	b.WriteString(" 失败")
	if e.Code != "" {
		fmt.Fprintf(&b, " (code=%s)", e.Code)
	}
	switch {
	case e.Message != "":
		b.WriteString(": ")
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsGatewayError 判断错误链中是否包含 GatewayError。
func IsGatewayError(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr)
}

// IsRetryable 判断错误是否可重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	gwErr := classify("", err)
	return gwErr.Retryable
}

// binance 的限流、超时与断连错误码。
var retryableBinanceCodes = map[int64]struct{}{
	-1001: {},
	-1003: {},
	-1007: {},
}

// classify 将底层错误统一为 GatewayError。
func classify(op string, err error) *GatewayError {
	if err == nil {
		return nil
	}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		if gwErr.Op == "" {
			gwErr.Op = op
		}
		return gwErr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &GatewayError{Op: op, Err: err}
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		out := &GatewayError{
			Op:      op,
			Code:    fmt.Sprint(ccxtErr.Type),
			Message: strings.TrimSpace(ccxtErr.Message),
			Err:     err,
		}
		switch ccxtErr.Type {
		case ccxt.NetworkErrorErrType,
			ccxt.RequestTimeoutErrType,
			ccxt.ExchangeNotAvailableErrType,
			ccxt.RateLimitExceededErrType,
			ccxt.DDoSProtectionErrType,
			ccxt.BadResponseErrType,
			ccxt.NullResponseErrType:
			out.Retryable = true
		case ccxt.OnMaintenanceErrType:
			message := out.Message
			if message == "" {
				message = "exchange under maintenance"
			}
			out.Err = fmt.Errorf("%w: %s", ErrMaintenance, message)
		case ccxt.OrderNotFoundErrType:
			out.Err = fmt.Errorf("%w: %s", ErrUnknownOrder, out.Message)
		}
		return out
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		out := &GatewayError{
			Op:      op,
			Code:    strconv.FormatInt(apiErr.Code, 10),
			Message: apiErr.Message,
			Err:     err,
		}
		if _, ok := retryableBinanceCodes[apiErr.Code]; ok {
			out.Retryable = true
		}
		if apiErr.Code == -2011 || apiErr.Code == -2013 {
			out.Err = fmt.Errorf("%w: %s", ErrUnknownOrder, apiErr.Message)
		}
		return out
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &GatewayError{Op: op, Err: err, Retryable: true}
	}

	return &GatewayError{Op: op, Err: err}
}
