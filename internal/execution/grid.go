package execution

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-trader/internal/order"
	"futures-trader/internal/report"
)

// GridPlan 为区间内等距分布的限价挂单。
type GridPlan struct {
	Symbol           string
	QuantityPerLevel decimal.Decimal
	Lower            decimal.Decimal
	Upper            decimal.Decimal
	Levels           int

	// Prices 升序排列，首尾恰为 Lower 与 Upper。
	Prices []decimal.Decimal
}

// NewGridPlan 校验参数并计算价格档位，中间档位按 tick 取整。
// 取整后相邻档位价格相同（tick 相对档距过粗）时拒绝该计划，不会挂出同价重复订单。
// 方向按取整后的实际挂单价格划分。
func NewGridPlan(symbol string, quantityPerLevel, lower, upper decimal.Decimal, levels int, precision order.Precision) (*GridPlan, error) {
	if err := order.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	if err := order.ValidateGrid(lower, upper, levels, quantityPerLevel); err != nil {
		return nil, err
	}

	prices := gridPrices(lower, upper, levels, precision)
	for k := 1; k < len(prices); k++ {
		if !prices[k].GreaterThan(prices[k-1]) {
			return nil, &order.ValidationError{
				Field:  "levels",
				Value:  fmt.Sprintf("levels=%d tick=%s", levels, precision.TickSize),
				Reason: fmt.Sprintf("按 tick 取整后第 %d 档与第 %d 档价格相同 (%s)，请减少档位或扩大区间", k, k+1, prices[k]),
			}
		}
	}

	return &GridPlan{
		Symbol:           symbol,
		QuantityPerLevel: quantityPerLevel,
		Lower:            lower,
		Upper:            upper,
		Levels:           levels,
		Prices:           prices,
	}, nil
}

func gridPrices(lower, upper decimal.Decimal, levels int, precision order.Precision) []decimal.Decimal {
	step := upper.Sub(lower).Div(decimal.NewFromInt(int64(levels - 1)))
	prices := make([]decimal.Decimal, levels)
	prices[0] = lower
	prices[levels-1] = upper
	for k := 1; k < levels-1; k++ {
		prices[k] = precision.RoundPrice(lower.Add(step.Mul(decimal.NewFromInt(int64(k)))))
	}
	return prices
}

// Classify 按参考价划分方向：低于参考价为 BUY，其余为 SELL。
func Classify(price, reference decimal.Decimal) order.Side {
	if price.LessThan(reference) {
		return order.SideBuy
	}
	return order.SideSell
}

// GridCoordinator 以一次价格快照划分买卖档位并按价格升序挂单。
type GridCoordinator struct {
	exec *Executor
}

// NewGridCoordinator 创建网格协调器。
func NewGridCoordinator(exec *Executor) *GridCoordinator {
	return &GridCoordinator{exec: exec}
}

// Execute 运行计划。参考价获取失败时不提交任何订单并返回错误。
func (c *GridCoordinator) Execute(ctx context.Context, plan *GridPlan) (StrategyResult, error) {
	run := newStrategyResult(report.StrategyGrid, plan.Symbol)
	logger := c.exec.runLogger(&run)

	reference, err := c.exec.gateway.CurrentPrice(ctx, plan.Symbol)
	if err != nil {
		return run, fmt.Errorf("获取参考价失败: %w", err)
	}
	run.ReferencePrice = decimal.NewNullDecimal(reference)

	logger.Info("网格参考价快照",
		zap.String("reference_price", reference.String()),
		zap.String("lower", plan.Lower.String()),
		zap.String("upper", plan.Upper.String()),
		zap.Int("levels", plan.Levels),
	)

	for k, price := range plan.Prices {
		if ctx.Err() != nil {
			run.Canceled = true
			break
		}

		side := Classify(price, reference)
		label := fmt.Sprintf("level %d/%d", k+1, len(plan.Prices))
		res := c.exec.place(ctx, &run, label, c.exec.clientOrderID(&run, "grid", strconv.Itoa(k+1)), order.Request{
			Symbol:   plan.Symbol,
			Side:     side,
			Kind:     order.KindLimit,
			Quantity: plan.QuantityPerLevel,
			Price:    price,
		})

		run.Levels = append(run.Levels, report.Level{
			Price:   price,
			Side:    side,
			Status:  res.Status,
			OrderID: res.OrderID,
		})
		if res.Status.Succeeded() {
			if side == order.SideBuy {
				run.BuyCount++
			} else {
				run.SellCount++
			}
		}
	}

	c.exec.finish(&run)
	return run, nil
}
