// Package metrics 汇总策略执行与交易所调用的 Prometheus 指标。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "futures_trader"

// Collectors 持有独立 Registry 上的全部指标，便于测试隔离。
type Collectors struct {
	registry *prometheus.Registry

	Orders         *prometheus.CounterVec
	StrategyRuns   *prometheus.CounterVec
	DroppedEvents  prometheus.Counter
	GatewayLatency *prometheus.HistogramVec
}

// New 创建并注册指标。
func New() *Collectors {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collectors{
		registry: reg,
		Orders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "按策略与状态统计的子订单数量",
		}, []string{"strategy", "status"}),
		StrategyRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_runs_total",
			Help:      "按策略与结果统计的策略执行次数",
		}, []string{"strategy", "outcome"}),
		DroppedEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reporter_dropped_events_total",
			Help:      "缓冲区已满而被丢弃的执行事件数量",
		}),
		GatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "交易所调用耗时",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "outcome"}),
	}
}

// Handler 返回 /metrics 处理器。
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveGatewayCall 记录一次交易所调用。
func (c *Collectors) ObserveGatewayCall(operation string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.GatewayLatency.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())
}

// ObserveOrder 按策略与状态累加子订单计数。
func (c *Collectors) ObserveOrder(strategy, status string) {
	c.Orders.WithLabelValues(strategy, status).Inc()
}

// ObserveRun 累加策略执行次数。
func (c *Collectors) ObserveRun(strategy, outcome string) {
	c.StrategyRuns.WithLabelValues(strategy, outcome).Inc()
}
