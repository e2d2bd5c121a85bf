package execution

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"futures-trader/internal/order"
	"futures-trader/internal/report"
)

// Entry 为策略中的一笔子订单及其标签，例如 take_profit、slice 3/10。
type Entry struct {
	Label  string
	Result order.Result
}

// StrategyResult 汇总一次策略执行的全部子订单，部分失败是正常结果而非错误。
type StrategyResult struct {
	RunID    string
	Strategy report.Strategy
	Symbol   string
	Entries  []Entry

	Attempted int
	Succeeded int
	Failed    int

	// AvgFillPrice 为成交数量加权均价，没有任何成交时无效。
	AvgFillPrice decimal.NullDecimal

	BuyCount       int
	SellCount      int
	ReferencePrice decimal.NullDecimal
	Levels         []report.Level

	// Canceled 表示执行被外部中断，已提交的子订单保持原状。
	Canceled bool
}

func newStrategyResult(strategy report.Strategy, symbol string) StrategyResult {
	return StrategyResult{
		RunID:    uuid.NewString(),
		Strategy: strategy,
		Symbol:   symbol,
	}
}

func (r *StrategyResult) add(label string, res order.Result) {
	r.Entries = append(r.Entries, Entry{Label: label, Result: res})
	r.Attempted++
	if res.Status.Succeeded() {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

// shortID 取 RunID 前8位用于客户端订单号。
func (r *StrategyResult) shortID() string {
	id := strings.ReplaceAll(r.RunID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}

// Results 按提交顺序返回子订单结果。
func (r StrategyResult) Results() []order.Result {
	out := make([]order.Result, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e.Result)
	}
	return out
}

// Err 聚合全部失败子订单的错误，全部成功时返回 nil。
func (r StrategyResult) Err() error {
	var err error
	for _, e := range r.Entries {
		if e.Result.Status.Succeeded() {
			continue
		}
		detail := e.Result.Error
		if detail == "" {
			detail = string(e.Result.Status)
		}
		err = multierr.Append(err, fmt.Errorf("%s: %s", e.Label, detail))
	}
	return err
}

// Unavailable 表示没有任何子订单成功且至少一笔失败。
func (r StrategyResult) Unavailable() bool {
	return r.Succeeded == 0 && r.Failed > 0
}

func (r StrategyResult) summary() report.Summary {
	return report.Summary{
		Attempted:      r.Attempted,
		Succeeded:      r.Succeeded,
		Failed:         r.Failed,
		BuyCount:       r.BuyCount,
		SellCount:      r.SellCount,
		AvgFillPrice:   r.AvgFillPrice,
		ReferencePrice: r.ReferencePrice,
		Levels:         r.Levels,
		Canceled:       r.Canceled,
	}
}

// weightedAverage 计算有成交子订单的数量加权均价。
func weightedAverage(results []order.Result) decimal.NullDecimal {
	notional := decimal.Zero
	quantity := decimal.Zero
	for _, res := range results {
		if !res.Filled() {
			continue
		}
		qty := res.FillQuantity()
		notional = notional.Add(res.AvgPrice.Decimal.Mul(qty))
		quantity = quantity.Add(qty)
	}
	if !quantity.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(notional.Div(quantity))
}
