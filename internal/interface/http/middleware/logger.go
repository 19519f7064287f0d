package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xiebiao/librarydesk/pkg/logger"
)

// RequestIDHeader 请求ID头部
const RequestIDHeader = "X-Request-ID"

// slowRequest 超过此耗时记录警告
const slowRequest = 3 * time.Second

// Logger 请求日志中间件
//
// 1. 沿用调用方传入的X-Request-ID，没有时生成一个
// 2. 请求ID写入context，后续日志自动带上request_id
// 3. 按状态码选择日志级别：5xx为error，4xx为warn
func Logger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"status", status,
			"latency", latency,
			"client_ip", c.ClientIP(),
			"bytes", c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		log.Log(c.Request.Context(), level, "http request", attrs...)

		if latency > slowRequest {
			log.WarnContext(c.Request.Context(), "slow request", "method", c.Request.Method, "path", c.Request.URL.Path, "latency", latency)
		}
	}
}

// GetRequestID 读取当前请求ID
func GetRequestID(c *gin.Context) string {
	return c.GetString("request_id")
}
