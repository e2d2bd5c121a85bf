package execution

import (
	"context"

	"futures-trader/internal/order"
	"futures-trader/internal/report"
)

// StopLimitCoordinator 提交单笔止损限价单。
type StopLimitCoordinator struct {
	exec *Executor
}

// NewStopLimitCoordinator 创建止损限价协调器。
func NewStopLimitCoordinator(exec *Executor) *StopLimitCoordinator {
	return &StopLimitCoordinator{exec: exec}
}

// Execute 校验触发价与限价的方向关系后提交，失败不重试。
func (c *StopLimitCoordinator) Execute(ctx context.Context, req order.Request) (order.Result, error) {
	req.Kind = order.KindStopLimit
	if err := order.Validate(req); err != nil {
		return order.Result{}, err
	}
	return c.exec.single(ctx, report.StrategyStopLimit, "stp", req), nil
}
