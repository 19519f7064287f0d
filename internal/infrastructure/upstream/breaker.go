package upstream

import (
	"log/slog"

	"github.com/xiebiao/librarydesk/internal/infrastructure/config"
	"github.com/xiebiao/librarydesk/pkg/circuitbreaker"
	"github.com/xiebiao/librarydesk/pkg/metrics"
)

// NewBreaker 按配置创建熔断器，未启用时返回nil
//
// isSuccessful为nil时任何错误都计为失败。状态变化写日志并更新circuit_breaker_state指标。
func NewBreaker(name string, cfg config.BreakerConfig, isSuccessful func(error) bool, log *slog.Logger) *circuitbreaker.CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}

	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	cb := circuitbreaker.New(name, circuitbreaker.Config{
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c circuitbreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			log.Warn("⚡ 熔断器状态变化", "name", name, "from", from.String(), "to", to.String())
			metrics.SetGaugeVec(metrics.CircuitBreakerState, float64(to), name)
		},
	})
	metrics.SetGaugeVec(metrics.CircuitBreakerState, float64(cb.State()), name)
	return cb
}
