package execution

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-trader/internal/order"
	"futures-trader/internal/report"
)

// OCO 两条腿的标签。
const (
	LegTakeProfit = "take_profit"
	LegStopLoss   = "stop_loss"
)

// OCOPlan 由一个开仓意图派生出止盈与止损两条平仓腿。
// 两条腿是交易所侧独立的挂单，仅通过客户端订单号中的 RunID 关联，不做自动互撤。
type OCOPlan struct {
	Symbol   string
	Side     order.Side
	Quantity decimal.Decimal

	TakeProfit order.Request
	StopLoss   order.Request
}

// NewOCOPlan 校验父意图并构造两条反向、只减仓的腿，每条腿按独立订单规则校验。
func NewOCOPlan(symbol string, side order.Side, quantity, takeProfitPrice, stopPrice, stopLimitPrice decimal.Decimal) (*OCOPlan, error) {
	parent := order.Request{Symbol: symbol, Side: side, Kind: order.KindMarket, Quantity: quantity}
	if err := order.Validate(parent); err != nil {
		return nil, err
	}

	closing := side.Opposite()
	plan := &OCOPlan{
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		TakeProfit: order.Request{
			Symbol:     symbol,
			Side:       closing,
			Kind:       order.KindLimit,
			Quantity:   quantity,
			Price:      takeProfitPrice,
			ReduceOnly: true,
		},
		StopLoss: order.Request{
			Symbol:     symbol,
			Side:       closing,
			Kind:       order.KindStopLimit,
			Quantity:   quantity,
			Price:      stopLimitPrice,
			StopPrice:  stopPrice,
			ReduceOnly: true,
		},
	}

	if err := order.Validate(plan.TakeProfit); err != nil {
		return nil, fmt.Errorf("%s: %w", LegTakeProfit, err)
	}
	if err := order.Validate(plan.StopLoss); err != nil {
		return nil, fmt.Errorf("%s: %w", LegStopLoss, err)
	}
	return plan, nil
}

// OCOCoordinator 依次提交止盈腿与止损腿。
type OCOCoordinator struct {
	exec *Executor
}

// NewOCOCoordinator 创建 OCO 协调器。
func NewOCOCoordinator(exec *Executor) *OCOCoordinator {
	return &OCOCoordinator{exec: exec}
}

// Execute 先提交止盈腿再提交止损腿，第一条腿失败不影响第二条腿的提交。
func (c *OCOCoordinator) Execute(ctx context.Context, plan *OCOPlan) StrategyResult {
	run := newStrategyResult(report.StrategyOCO, plan.Symbol)
	logger := c.exec.runLogger(&run)

	logger.Info("OCO 计划已生成",
		zap.String("side", string(plan.Side)),
		zap.String("quantity", plan.Quantity.String()),
		zap.String("take_profit", plan.TakeProfit.Price.String()),
		zap.String("stop_price", plan.StopLoss.StopPrice.String()),
		zap.String("stop_limit_price", plan.StopLoss.Price.String()),
	)

	c.exec.place(ctx, &run, LegTakeProfit, c.exec.clientOrderID(&run, "oco", "tp"), plan.TakeProfit)
	c.exec.place(ctx, &run, LegStopLoss, c.exec.clientOrderID(&run, "oco", "sl"), plan.StopLoss)

	if run.Succeeded == 1 {
		logger.Warn("OCO 仅一条腿提交成功，请人工确认", zap.Error(run.Err()))
	}
	c.exec.finish(&run)
	return run
}
