// Package report 消费执行事件并输出到日志、终端与指标。
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"futures-trader/internal/order"
)

// Strategy 表示策略类型。
type Strategy string

const (
	StrategyMarket    Strategy = "MARKET"
	StrategyLimit     Strategy = "LIMIT"
	StrategyStopLimit Strategy = "STOP_LIMIT"
	StrategyOCO       Strategy = "OCO"
	StrategyTWAP      Strategy = "TWAP"
	StrategyGrid      Strategy = "GRID"
)

// EventKind 区分子订单事件与汇总事件。
type EventKind string

const (
	EventOrder   EventKind = "order"
	EventSummary EventKind = "summary"
)

// Event 为一条结构化执行事件。
type Event struct {
	Timestamp     time.Time
	RunID         string
	Strategy      Strategy
	Kind          EventKind
	Leg           string
	Symbol        string
	Side          order.Side
	OrderKind     order.Kind
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	Status        order.Status
	OrderID       string
	ClientOrderID string
	AvgPrice      decimal.NullDecimal
	Error         string

	// Summary 仅在 Kind 为 summary 时有值。
	Summary *Summary
}

// Summary 为策略结束时的汇总。
type Summary struct {
	Attempted      int
	Succeeded      int
	Failed         int
	BuyCount       int
	SellCount      int
	AvgFillPrice   decimal.NullDecimal
	ReferencePrice decimal.NullDecimal
	Levels         []Level
	Canceled       bool
}

// Level 为网格中的一档。
type Level struct {
	Price   decimal.Decimal
	Side    order.Side
	Status  order.Status
	OrderID string
}

// Outcome 返回汇总结论：completed、partial、failed 或 canceled。
func (s Summary) Outcome() string {
	switch {
	case s.Canceled:
		return "canceled"
	case s.Failed == 0:
		return "completed"
	case s.Succeeded > 0:
		return "partial"
	default:
		return "failed"
	}
}

// OrderEvent 由下单结果构造子订单事件。
func OrderEvent(runID string, strategy Strategy, leg string, res order.Result) Event {
	req := res.Request
	return Event{
		Timestamp:     time.Now().UTC(),
		RunID:         runID,
		Strategy:      strategy,
		Kind:          EventOrder,
		Leg:           leg,
		Symbol:        req.Symbol,
		Side:          req.Side,
		OrderKind:     req.Kind,
		Quantity:      req.Quantity,
		Price:         req.Price,
		StopPrice:     req.StopPrice,
		Status:        res.Status,
		OrderID:       res.OrderID,
		ClientOrderID: res.ClientOrderID,
		AvgPrice:      res.AvgPrice,
		Error:         res.Error,
	}
}

// SummaryEvent 构造汇总事件。
func SummaryEvent(runID string, strategy Strategy, symbol string, summary Summary) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Strategy:  strategy,
		Kind:      EventSummary,
		Symbol:    symbol,
		Summary:   &summary,
	}
}

// Reporter 接收执行事件，实现不得阻塞调用方。
type Reporter interface {
	Report(Event)
}

// Nop 丢弃全部事件。
type Nop struct{}

func (Nop) Report(Event) {}

// Multi 将事件依次分发给多个 Reporter。
type Multi []Reporter

func (m Multi) Report(e Event) {
	for _, r := range m {
		if r != nil {
			r.Report(e)
		}
	}
}
