package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/librarydesk/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// TestLogger 测试请求ID与日志级别
func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := gin.New()
	r.Use(Logger(log))
	r.GET("/ok", func(c *gin.Context) {
		assert.Equal(t, GetRequestID(c), logger.RequestID(c.Request.Context()))
		c.Status(http.StatusOK)
	})
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	t.Run("没有请求ID时生成", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
		id := w.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
		assert.Contains(t, buf.String(), `"level":"INFO"`)
	})

	t.Run("沿用调用方的请求ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set(RequestIDHeader, "abc")
		w := serve(r, req)
		assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
	})

	t.Run("5xx记录为error", func(t *testing.T) {
		buf.Reset()
		serve(r, httptest.NewRequest(http.MethodGet, "/fail", nil))
		assert.Contains(t, buf.String(), `"level":"ERROR"`)
		assert.Contains(t, buf.String(), `"status":502`)
	})
}

// TestRateLimiter 测试按IP限流
func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	t.Run("突发额度用完后拒绝", func(t *testing.T) {
		assert.True(t, rl.allow("10.0.0.1"))
		assert.True(t, rl.allow("10.0.0.1"))
		assert.False(t, rl.allow("10.0.0.1"))
	})

	t.Run("不同IP互不影响", func(t *testing.T) {
		assert.True(t, rl.allow("10.0.0.2"))
	})

	t.Run("令牌随时间恢复", func(t *testing.T) {
		now = now.Add(time.Second)
		assert.True(t, rl.allow("10.0.0.1"))
	})

	t.Run("清理空闲IP", func(t *testing.T) {
		now = now.Add(rl.idle + time.Second)
		rl.allow("10.0.0.3")
		rl.cleanup()

		rl.mu.Lock()
		defer rl.mu.Unlock()
		assert.Len(t, rl.visitors, 1)
		assert.Contains(t, rl.visitors, "10.0.0.3")
	})

	t.Run("中间件返回429", func(t *testing.T) {
		r := gin.New()
		r.Use(NewRateLimiter(0.001, 1).Middleware())
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
		w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "Too many requests")
	})
}

// TestBodyLimit 测试请求体大小限制
func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(8))
	r.POST("/", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		var tooLarge *http.MaxBytesError
		if assert.ErrorAs(t, err, &tooLarge) {
			c.Status(http.StatusRequestEntityTooLarge)
		}
	})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

// TestRecovery 测试panic转为500
func TestRecovery(t *testing.T) {
	gin.DefaultErrorWriter = io.Discard

	r := gin.New()
	r.Use(Recovery(slog.New(slog.DiscardHandler)))
	r.GET("/", func(*gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.Contains(t, w.Body.String(), "boom")
}
