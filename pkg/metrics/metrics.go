// Package metrics 基于Prometheus的指标
//
// 指标分三组：
//   - 网关：HTTP请求数/耗时、上游转发结果、响应缓存命中
//   - 数据访问层：每个操作的请求结果/耗时、缓存事件（命中、去重、失效、驱逐）
//   - 熔断器状态
//
// 所有指标注册到默认Registry，InitMetrics可重复调用。
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var initOnce sync.Once

var (
	// HTTPRequestsTotal 网关HTTP请求总数
	// 标签：method、route（gin路由模板，未匹配为"unmatched"）、status
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration 网关HTTP请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestsInProgress 正在处理的请求数
	HTTPRequestsInProgress prometheus.Gauge

	// UpstreamRequestsTotal 网关转发到上游的请求
	// 标签：method、result（ok/rejected/transport_error/circuit_open）
	UpstreamRequestsTotal *prometheus.CounterVec

	// ResponseCacheTotal 网关Redis响应缓存
	// 标签：result（hit/miss/store/invalidate/error）
	ResponseCacheTotal *prometheus.CounterVec

	// EventsPublishedTotal 目录变更事件发布
	// 标签：routing_key、result（ok/error）
	EventsPublishedTotal *prometheus.CounterVec

	// ClientRequestsTotal 数据访问层发出的HTTP请求
	// 标签：operation、result（success/失败分类）
	ClientRequestsTotal *prometheus.CounterVec

	// ClientRequestDuration 数据访问层请求耗时
	ClientRequestDuration *prometheus.HistogramVec

	// ClientCacheEventsTotal 数据访问层缓存事件
	// 标签：event（hit/miss/dedup/invalidate/drop/evict/refetch）
	ClientCacheEventsTotal *prometheus.CounterVec

	// CircuitBreakerState 熔断器状态（0=CLOSED, 1=OPEN, 2=HALF_OPEN）
	CircuitBreakerState *prometheus.GaugeVec
)

// InitMetrics 注册所有指标
func InitMetrics() {
	initOnce.Do(func() {
		HTTPRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "网关HTTP请求总数",
			},
			[]string{"method", "route", "status"},
		)

		HTTPRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "gateway_http_request_duration_seconds",
				Help: "网关HTTP请求耗时（秒）",
				// 包含上游往返，上游超时10秒
				Buckets: []float64{0.005, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"method", "route"},
		)

		HTTPRequestsInProgress = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_http_requests_in_progress",
				Help: "正在处理的HTTP请求数",
			},
		)

		UpstreamRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_upstream_requests_total",
				Help: "转发到上游目录服务的请求数",
			},
			[]string{"method", "result"},
		)

		ResponseCacheTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_response_cache_total",
				Help: "网关响应缓存事件数",
			},
			[]string{"result"},
		)

		EventsPublishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_events_published_total",
				Help: "目录变更事件发布数",
			},
			[]string{"routing_key", "result"},
		)

		ClientRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_client_requests_total",
				Help: "数据访问层HTTP请求数",
			},
			[]string{"operation", "result"},
		)

		ClientRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_client_request_duration_seconds",
				Help:    "数据访问层HTTP请求耗时（秒）",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"operation"},
		)

		ClientCacheEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_client_cache_events_total",
				Help: "数据访问层缓存事件数",
			},
			[]string{"event"},
		)

		CircuitBreakerState = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "熔断器状态（0=CLOSED, 1=OPEN, 2=HALF_OPEN）",
			},
			[]string{"name"},
		)
	})
}

// IncCounterVec 递增CounterVec
func IncCounterVec(counter *prometheus.CounterVec, labels ...string) {
	if counter == nil {
		return
	}
	counter.WithLabelValues(labels...).Inc()
}

// ObserveHistogramVec 记录观测值
func ObserveHistogramVec(histogram *prometheus.HistogramVec, value float64, labels ...string) {
	if histogram == nil {
		return
	}
	histogram.WithLabelValues(labels...).Observe(value)
}

// SetGaugeVec 设置GaugeVec
func SetGaugeVec(gauge *prometheus.GaugeVec, value float64, labels ...string) {
	if gauge == nil {
		return
	}
	gauge.WithLabelValues(labels...).Set(value)
}

// CacheEvent 记录数据访问层缓存事件
func CacheEvent(event string) {
	IncCounterVec(ClientCacheEventsTotal, event)
}
