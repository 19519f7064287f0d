package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/xiebiao/librarydesk/pkg/metrics"
	"github.com/xiebiao/librarydesk/pkg/response"
	"github.com/xiebiao/librarydesk/pkg/tracing"
)

const tracerName = "librarydesk/gateway"

func routeOf(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}
	return "unmatched"
}

// Metrics Prometheus请求指标
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics.HTTPRequestsInProgress != nil {
			metrics.HTTPRequestsInProgress.Inc()
			defer metrics.HTTPRequestsInProgress.Dec()
		}

		start := time.Now()
		c.Next()

		route := routeOf(c)
		metrics.IncCounterVec(metrics.HTTPRequestsTotal, c.Request.Method, route, strconv.Itoa(c.Writer.Status()))
		metrics.ObserveHistogramVec(metrics.HTTPRequestDuration, time.Since(start).Seconds(), c.Request.Method, route)
	}
}

// Tracing 为每个请求创建服务端span，并从请求头恢复上游的trace上下文
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracing.StartSpan(ctx, tracerName, c.Request.Method+" "+routeOf(c),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("url.path", c.Request.URL.Path),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// Recovery panic转为500，响应格式与上游一致
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.ErrorContext(c.Request.Context(), "panic recovered", "panic", recovered, "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Success: false,
			Message: "Internal server error",
			Error:   fmt.Sprint(recovered),
		})
	})
}
