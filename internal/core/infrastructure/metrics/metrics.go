// Package metrics 注册表客户端的 Prometheus 指标
//
// 指标注册到独立的 Registry，由 /metrics 端点统一抓取：
//   - 提交确认结果与耗时
//   - 合约事件计数
//   - 看板缓存命中率
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weisyn/esg-registry/client/core/confirm"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/event"
)

const namespace = "esg"

// Metrics 指标集合，满足 confirm.Observer、feed.Observer 与 dashboard.CacheObserver
type Metrics struct {
	registry *prometheus.Registry

	confirmations   *prometheus.CounterVec
	confirmDuration prometheus.Histogram
	events          *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
}

// New 创建指标并注册到新的 Registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		confirmations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "submission",
				Name:      "confirmations_total",
				Help:      "Report submissions by confirmation outcome.",
			},
			[]string{"state"},
		),
		confirmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "confirmation_seconds",
			Help:      "Time from subscription to confirmation outcome.",
			Buckets:   []float64{1, 2, 5, 10, 15, 30, 60, 90},
		}),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "feed",
				Name:      "events_total",
				Help:      "ReportSubmitted logs observed by kind.",
			},
			[]string{"kind"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dashboard",
				Name:      "cache_lookups_total",
				Help:      "Dashboard cache lookups by result.",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.confirmations,
		m.confirmDuration,
		m.events,
		m.cacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 返回底层 Registry，供其他模块注册指标
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveConfirmation 记录确认结果
func (m *Metrics) ObserveConfirmation(state confirm.State, elapsed time.Duration) {
	m.confirmations.WithLabelValues(string(state)).Inc()
	m.confirmDuration.Observe(elapsed.Seconds())
}

// ObserveEvent 记录事件
func (m *Metrics) ObserveEvent(kind event.EventType) {
	m.events.WithLabelValues(string(kind)).Inc()
}

// ObserveCacheLookup 记录缓存查询
func (m *Metrics) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
