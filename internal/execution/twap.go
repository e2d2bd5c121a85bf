package execution

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-trader/internal/order"
	"futures-trader/internal/report"
)

// TWAPState 为 TWAP 执行状态。
type TWAPState string

const (
	TWAPPending   TWAPState = "PENDING"
	TWAPExecuting TWAPState = "EXECUTING"
	TWAPCompleted TWAPState = "COMPLETED"
	TWAPCanceled  TWAPState = "CANCELED"
)

// TWAPPlan 将总数量拆分为 N 个按时间间隔提交的市价切片。
type TWAPPlan struct {
	Symbol        string
	Side          order.Side
	TotalQuantity decimal.Decimal
	Slices        int
	Interval      time.Duration

	// SliceQuantities 之和恰好等于 TotalQuantity，舍入余量计入最后一片。
	SliceQuantities []decimal.Decimal
	State           TWAPState
}

// NewTWAPPlan 校验参数并按步长向下取整计算每片数量。
func NewTWAPPlan(symbol string, side order.Side, total decimal.Decimal, slices, intervalSeconds int, precision order.Precision) (*TWAPPlan, error) {
	if err := order.Validate(order.Request{Symbol: symbol, Side: side, Kind: order.KindMarket, Quantity: total}); err != nil {
		return nil, err
	}
	if err := order.ValidateTWAP(slices, intervalSeconds); err != nil {
		return nil, err
	}

	quantities, err := sliceQuantities(total, slices, precision)
	if err != nil {
		return nil, err
	}

	return &TWAPPlan{
		Symbol:          symbol,
		Side:            side,
		TotalQuantity:   total,
		Slices:          slices,
		Interval:        time.Duration(intervalSeconds) * time.Second,
		SliceQuantities: quantities,
		State:           TWAPPending,
	}, nil
}

func sliceQuantities(total decimal.Decimal, slices int, precision order.Precision) ([]decimal.Decimal, error) {
	n := decimal.NewFromInt(int64(slices))
	slice := precision.FloorQuantity(total.Div(n))
	if !slice.IsPositive() {
		return nil, &order.ValidationError{
			Field:  "slice quantity",
			Value:  fmt.Sprintf("total=%s slices=%d", total, slices),
			Reason: "每片数量按最小步长取整后为0",
		}
	}

	out := make([]decimal.Decimal, slices)
	for i := 0; i < slices-1; i++ {
		out[i] = slice
	}
	out[slices-1] = total.Sub(slice.Mul(decimal.NewFromInt(int64(slices - 1))))
	return out, nil
}

// Sleeper 为切片之间的可取消等待。
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TWAPCoordinator 顺序提交切片，单片失败不终止后续切片。
type TWAPCoordinator struct {
	exec    *Executor
	sleeper Sleeper
}

// NewTWAPCoordinator 创建 TWAP 协调器，sleeper 为空时使用计时器。
func NewTWAPCoordinator(exec *Executor, sleeper Sleeper) *TWAPCoordinator {
	if sleeper == nil {
		sleeper = timerSleeper{}
	}
	return &TWAPCoordinator{exec: exec, sleeper: sleeper}
}

// Execute 运行计划。ctx 取消后立即返回已完成部分，已提交的切片不回滚。
func (c *TWAPCoordinator) Execute(ctx context.Context, plan *TWAPPlan) StrategyResult {
	run := newStrategyResult(report.StrategyTWAP, plan.Symbol)
	logger := c.exec.runLogger(&run)

	logger.Info("TWAP 计划已生成",
		zap.String("side", string(plan.Side)),
		zap.String("total", plan.TotalQuantity.String()),
		zap.Int("slices", plan.Slices),
		zap.Duration("interval", plan.Interval),
		zap.String("slice_quantity", plan.SliceQuantities[0].String()),
		zap.String("last_slice_quantity", plan.SliceQuantities[len(plan.SliceQuantities)-1].String()),
	)

	plan.State = TWAPExecuting
	n := len(plan.SliceQuantities)
	for i, qty := range plan.SliceQuantities {
		if ctx.Err() != nil {
			run.Canceled = true
			break
		}

		label := fmt.Sprintf("slice %d/%d", i+1, n)
		c.exec.place(ctx, &run, label, c.exec.clientOrderID(&run, "twap", strconv.Itoa(i+1)), order.Request{
			Symbol:   plan.Symbol,
			Side:     plan.Side,
			Kind:     order.KindMarket,
			Quantity: qty,
		})

		if i == n-1 {
			break
		}
		logger.Debug("等待下一切片", zap.Int("next", i+2), zap.Duration("wait", plan.Interval))
		if err := c.sleeper.Sleep(ctx, plan.Interval); err != nil {
			run.Canceled = true
			break
		}
	}

	if run.Canceled {
		plan.State = TWAPCanceled
		logger.Warn("TWAP 被中断，返回已完成切片",
			zap.Int("submitted", run.Attempted),
			zap.Int("slices", n),
		)
	} else {
		plan.State = TWAPCompleted
	}

	run.AvgFillPrice = weightedAverage(run.Results())
	c.exec.finish(&run)
	return run
}
