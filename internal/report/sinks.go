package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"futures-trader/internal/metrics"
	"futures-trader/internal/order"
)

// LogSink 将事件写入审计日志。
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink 构造日志输出。
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("execution")}
}

func (s *LogSink) Report(e Event) {
	base := []zap.Field{
		zap.String("run_id", e.RunID),
		zap.String("strategy", string(e.Strategy)),
		zap.String("symbol", e.Symbol),
		zap.Time("event_time", e.Timestamp),
	}

	if e.Kind == EventSummary && e.Summary != nil {
		sum := e.Summary
		fields := append(base,
			zap.String("outcome", sum.Outcome()),
			zap.Int("attempted", sum.Attempted),
			zap.Int("succeeded", sum.Succeeded),
			zap.Int("failed", sum.Failed),
		)
		if sum.BuyCount > 0 || sum.SellCount > 0 {
			fields = append(fields, zap.Int("buy_orders", sum.BuyCount), zap.Int("sell_orders", sum.SellCount))
		}
		if sum.AvgFillPrice.Valid {
			fields = append(fields, zap.String("avg_fill_price", sum.AvgFillPrice.Decimal.String()))
		}
		if sum.ReferencePrice.Valid {
			fields = append(fields, zap.String("reference_price", sum.ReferencePrice.Decimal.String()))
		}
		s.logger.Info("策略执行结束", fields...)
		return
	}

	fields := append(base,
		zap.String("leg", e.Leg),
		zap.String("type", string(e.OrderKind)),
		zap.String("side", string(e.Side)),
		zap.String("quantity", e.Quantity.String()),
		zap.String("price", optional(e.Price.IsPositive(), e.Price.String())),
		zap.String("stop_price", optional(e.StopPrice.IsPositive(), e.StopPrice.String())),
		zap.String("status", string(e.Status)),
		zap.String("order_id", e.OrderID),
		zap.String("client_order_id", e.ClientOrderID),
	)
	if e.AvgPrice.Valid {
		fields = append(fields, zap.String("avg_price", e.AvgPrice.Decimal.String()))
	}
	if e.Error != "" {
		s.logger.Error("子订单失败", append(fields, zap.String("error", e.Error))...)
		return
	}
	s.logger.Info("子订单已提交", fields...)
}

// ConsoleSink 向终端输出逐笔结果与汇总。
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleSink 构造终端输出。
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

func (s *ConsoleSink) Report(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Kind == EventSummary && e.Summary != nil {
		s.writeSummary(e)
		return
	}

	mark := "✓"
	if !e.Status.Succeeded() {
		mark = "✗"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s", mark, e.Strategy)
	if e.Leg != "" {
		fmt.Fprintf(&b, " %s", e.Leg)
	}
	fmt.Fprintf(&b, "] %s %s %s %s", e.OrderKind, e.Side, e.Quantity, e.Symbol)
	if e.StopPrice.IsPositive() {
		fmt.Fprintf(&b, " stop=%s", e.StopPrice)
	}
	if e.Price.IsPositive() {
		fmt.Fprintf(&b, " @ %s", e.Price)
	}
	fmt.Fprintf(&b, " -> %s", e.Status)
	if e.OrderID != "" {
		fmt.Fprintf(&b, " id=%s", e.OrderID)
	}
	if e.AvgPrice.Valid {
		fmt.Fprintf(&b, " avg=%s", e.AvgPrice.Decimal)
	}
	if e.Error != "" {
		fmt.Fprintf(&b, " error=%s", e.Error)
	}
	b.WriteString("\n")
	_, _ = io.WriteString(s.w, b.String())
}

func (s *ConsoleSink) writeSummary(e Event) {
	sum := e.Summary
	var b strings.Builder

	if len(sum.Levels) > 0 {
		marker := nearestLevel(sum)
		b.WriteString("网格档位:\n")
		for i, lvl := range sum.Levels {
			fmt.Fprintf(&b, "  %2d. %-4s %s %s", i+1, lvl.Side, lvl.Price, lvl.Status)
			if i == marker {
				fmt.Fprintf(&b, "  <- 参考价 %s", sum.ReferencePrice.Decimal)
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "== %s %s %s: 成功 %d / 失败 %d / 共 %d\n",
		e.Strategy, e.Symbol, outcomeLabel(sum.Outcome()), sum.Succeeded, sum.Failed, sum.Attempted)
	if sum.BuyCount > 0 || sum.SellCount > 0 {
		fmt.Fprintf(&b, "   买单 %d / 卖单 %d\n", sum.BuyCount, sum.SellCount)
	}
	if e.Strategy == StrategyTWAP {
		if sum.AvgFillPrice.Valid {
			fmt.Fprintf(&b, "   成交均价: %s\n", sum.AvgFillPrice.Decimal)
		} else {
			b.WriteString("   成交均价: 无成交\n")
		}
	}
	_, _ = io.WriteString(s.w, b.String())
}

func nearestLevel(sum *Summary) int {
	if !sum.ReferencePrice.Valid {
		return -1
	}
	ref := sum.ReferencePrice.Decimal
	best := -1
	for i, lvl := range sum.Levels {
		if best < 0 || lvl.Price.Sub(ref).Abs().LessThan(sum.Levels[best].Price.Sub(ref).Abs()) {
			best = i
		}
	}
	return best
}

func outcomeLabel(outcome string) string {
	switch outcome {
	case "completed":
		return "完成"
	case "partial":
		return "部分完成"
	case "canceled":
		return "已中断"
	default:
		return "失败"
	}
}

func optional(ok bool, value string) string {
	if !ok {
		return ""
	}
	return value
}

// MetricsSink 将事件累加到 Prometheus 计数器。
type MetricsSink struct {
	collectors *metrics.Collectors
}

// NewMetricsSink 构造指标输出。
func NewMetricsSink(collectors *metrics.Collectors) *MetricsSink {
	return &MetricsSink{collectors: collectors}
}

func (s *MetricsSink) Report(e Event) {
	switch e.Kind {
	case EventOrder:
		status := e.Status
		if status == "" {
			status = order.StatusFailed
		}
		s.collectors.ObserveOrder(string(e.Strategy), string(status))
	case EventSummary:
		if e.Summary != nil {
			s.collectors.ObserveRun(string(e.Strategy), e.Summary.Outcome())
		}
	}
}
