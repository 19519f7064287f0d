package main

import (
	"context"
	"log/slog"

	"github.com/xiebiao/librarydesk/internal/infrastructure/config"
	"github.com/xiebiao/librarydesk/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/librarydesk/internal/infrastructure/upstream"
	"github.com/xiebiao/librarydesk/internal/interface/http/handler"
	"github.com/xiebiao/librarydesk/internal/interface/http/middleware"
	"github.com/xiebiao/librarydesk/pkg/circuitbreaker"
	"github.com/xiebiao/librarydesk/pkg/mq"
)

// 自定义Provider：从GatewayConfig中取出各组件需要的配置
// 可选组件未启用时返回nil接口（不能是带类型的nil指针）

func provideBreaker(cfg *config.GatewayConfig, log *slog.Logger) *circuitbreaker.CircuitBreaker {
	return upstream.NewBreaker("upstream", cfg.Breaker, nil, log)
}

func provideUpstream(cfg *config.GatewayConfig, cb *circuitbreaker.CircuitBreaker) *upstream.Client {
	return upstream.New(cfg.Upstream, cb)
}

func provideResponseCache(ctx context.Context, cfg *config.GatewayConfig, log *slog.Logger) (handler.ResponseCache, func(), error) {
	if !cfg.Cache.Enabled {
		return nil, func() {}, nil
	}

	client, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	log.Info("✅ 响应缓存已启用", "redis", cfg.Redis.Addr(), "ttl", cfg.Cache.TTL)

	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Warn("关闭Redis连接失败", "error", err)
		}
	}
	return redis.NewResponseCache(client, cfg.Cache.Prefix, cfg.Cache.TTL), cleanup, nil
}

func providePublisher(cfg *config.GatewayConfig, log *slog.Logger) (mq.EventPublisher, func(), error) {
	if !cfg.Events.Enabled {
		return nil, func() {}, nil
	}

	p, err := mq.NewPublisher(cfg.Events.URL, cfg.Events.Exchange, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := p.Close(); err != nil {
			log.Warn("关闭事件发布者失败", "error", err)
		}
	}
	return p, cleanup, nil
}

// provideRateLimiter 限流器的清理协程随ctx退出
func provideRateLimiter(ctx context.Context, cfg *config.GatewayConfig) *middleware.RateLimiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	rl := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go rl.Run(ctx)
	return rl
}
