package execution

import (
	"context"

	"futures-trader/internal/order"
)

// Trader 抽象单笔订单执行，市价、限价与止损限价共用。
type Trader interface {
	Execute(ctx context.Context, req order.Request) (order.Result, error)
}

var (
	_ Trader = (*Executor)(nil)
	_ Trader = (*StopLimitCoordinator)(nil)
)
