// Package router 网关路由
package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xiebiao/librarydesk/internal/client"
	"github.com/xiebiao/librarydesk/internal/infrastructure/config"
	"github.com/xiebiao/librarydesk/internal/interface/http/handler"
	"github.com/xiebiao/librarydesk/internal/interface/http/middleware"
	"github.com/xiebiao/librarydesk/pkg/response"
)

// New 创建网关引擎并注册路由
// limiter为nil时不限流
func New(cfg *config.GatewayConfig, log *slog.Logger, proxy *handler.ProxyHandler, limiter *middleware.RateLimiter) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	r := gin.New()
	r.Use(
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.Tracing(),
	)
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics())
	}
	if cfg.CORS.Enabled {
		r.Use(middleware.CORS(cfg.CORS))
	}
	if limiter != nil {
		r.Use(limiter.Middleware())
	}
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	r.GET("/health", response.Health)
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	{
		books := api.Group("/books")
		{
			books.GET("", proxy.Query(client.OpListBooks, handler.BookListTags))
			books.POST("", proxy.Mutation(client.OpCreateBook, handler.BookListTags))
			books.GET("/:id", proxy.Query(client.OpGetBook, handler.BookTags))
			books.PUT("/:id", proxy.Mutation(client.OpUpdateBook, handler.BookUpdateTags))
			books.DELETE("/:id", proxy.Mutation(client.OpDeleteBook, handler.BookListTags))
		}

		borrow := api.Group("/borrow")
		{
			borrow.GET("", proxy.Query(client.OpGetBorrowSummary, handler.BorrowTags))
			borrow.POST("", proxy.Mutation(client.OpBorrowBook, handler.BorrowBookTags))
		}
	}

	r.NoRoute(response.RouteNotFound)
	return r
}
