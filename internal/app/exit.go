package app

import (
	"errors"
	"fmt"

	"futures-trader/internal/config"
	"futures-trader/internal/exchange"
	"futures-trader/internal/order"
)

// 进程退出码。
const (
	ExitOK          = 0
	ExitConfig      = 1
	ExitUsage       = 2
	ExitUnavailable = 3
	ExitInterrupted = 130
)

// ErrInterrupted 表示在任何子订单成功前收到中断信号。
var ErrInterrupted = errors.New("执行被中断")

// UnavailableError 表示没有任何子订单成功，或管理命令的交易所调用失败。
type UnavailableError struct {
	Command string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s 执行失败，交易所不可用: %v", e.Command, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// ExitCode 将 Run 的返回值映射为进程退出码。
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var usageErr *UsageError
	var unavailable *UnavailableError
	switch {
	case errors.Is(err, ErrInterrupted):
		return ExitInterrupted
	case config.IsConfigurationError(err):
		return ExitConfig
	case errors.As(err, &usageErr), order.IsValidationError(err):
		return ExitUsage
	case errors.As(err, &unavailable), exchange.IsGatewayError(err):
		return ExitUnavailable
	default:
		return ExitConfig
	}
}
