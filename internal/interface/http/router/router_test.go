package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/librarydesk/internal/catalogtest"
	"github.com/xiebiao/librarydesk/internal/infrastructure/config"
	"github.com/xiebiao/librarydesk/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/librarydesk/internal/infrastructure/upstream"
	"github.com/xiebiao/librarydesk/internal/interface/http/handler"
	"github.com/xiebiao/librarydesk/internal/interface/http/middleware"
	"github.com/xiebiao/librarydesk/pkg/metrics"
	"github.com/xiebiao/librarydesk/pkg/mq"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []mq.ChangeEvent
}

func (p *fakePublisher) Publish(_ context.Context, e mq.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) Events() []mq.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]mq.ChangeEvent(nil), p.events...)
}

type gateway struct {
	engine  *gin.Engine
	catalog *catalogtest.Server
	events  *fakePublisher
}

func testConfig(baseURL string) *config.GatewayConfig {
	return &config.GatewayConfig{
		Server:   config.ServerConfig{Mode: gin.TestMode, BodyLimit: 10 << 20},
		Upstream: config.UpstreamConfig{BaseURL: baseURL, Timeout: 2 * time.Second, UserAgent: "Library-Management-Backend/1.0.0"},
		CORS: config.CORSConfig{
			Enabled:          true,
			AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173", "http://localhost:5174"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           600,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newGateway(t *testing.T, tweak ...func(*config.GatewayConfig)) *gateway {
	t.Helper()
	metrics.InitMetrics()

	catalog := catalogtest.NewServer()
	t.Cleanup(catalog.Close)

	cfg := testConfig(catalog.URL)
	for _, f := range tweak {
		f(cfg)
	}

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	events := &fakePublisher{}
	log := slog.New(slog.DiscardHandler)
	proxy := handler.NewProxyHandler(
		upstream.New(cfg.Upstream, nil),
		redis.NewResponseCache(rdb, "test:", time.Minute),
		events,
		log,
	)
	return &gateway{engine: New(cfg, log, proxy, nil), catalog: catalog, events: events}
}

func (g *gateway) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	g.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

const duneJSON = `{"title":"Dune","author":"Frank Herbert","genre":"FICTION","isbn":"9780441013593","copies":3}`

// TestRouter_Own 网关自己的路由
func TestRouter_Own(t *testing.T) {
	g := newGateway(t)

	t.Run("健康检查", func(t *testing.T) {
		w := g.do(http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Backend proxy is running", body["message"])
		assert.NotEmpty(t, body["timestamp"])
	})

	t.Run("未匹配的路由", func(t *testing.T) {
		w := g.do(http.MethodGet, "/api/unknown?x=1", "")
		require.Equal(t, http.StatusNotFound, w.Code)
		body := decode(t, w)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Route not found", body["message"])
		assert.Equal(t, "Cannot GET /api/unknown?x=1", body["error"])
		assert.Zero(t, g.catalog.TotalRequests())
	})

	t.Run("指标", func(t *testing.T) {
		w := g.do(http.MethodGet, "/metrics", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "gateway_http_requests_total")
	})

	t.Run("请求ID", func(t *testing.T) {
		w := g.do(http.MethodGet, "/health", "", middleware.RequestIDHeader, "req-42")
		assert.Equal(t, "req-42", w.Header().Get(middleware.RequestIDHeader))
	})
}

// TestRouter_Forward 请求原样转发，响应原样返回
func TestRouter_Forward(t *testing.T) {
	g := newGateway(t)
	id := g.catalog.Seed(catalogtest.Book{Title: "Cosmos", Author: "Carl Sagan", Genre: "SCIENCE", ISBN: "1000000001", Copies: 2})

	t.Run("查询参数保持不变", func(t *testing.T) {
		w := g.do(http.MethodGet, "/api/books?filter=SCIENCE&sortBy=title&sort=asc&limit=5", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Cosmos")

		q := g.catalog.LastQuery("GET /api/books")
		assert.Equal(t, "SCIENCE", q.Get("filter"))
		assert.Equal(t, "title", q.Get("sortBy"))
		assert.Equal(t, "5", q.Get("limit"))
	})

	t.Run("非2xx原样返回", func(t *testing.T) {
		w := g.do(http.MethodGet, "/api/books/missing", "")
		require.Equal(t, http.StatusNotFound, w.Code)
		body := decode(t, w)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Book not found", body["message"])
	})

	t.Run("变更请求带body", func(t *testing.T) {
		w := g.do(http.MethodPut, "/api/books/"+id, `{"copies":9}`)
		require.Equal(t, http.StatusOK, w.Code)
		b, ok := g.catalog.Book(id)
		require.True(t, ok)
		assert.Equal(t, 9, b.Copies)
	})

	t.Run("上游校验失败原样返回", func(t *testing.T) {
		before := len(g.events.Events())
		w := g.do(http.MethodPost, "/api/borrow", `{"book":"`+id+`","quantity":100,"dueDate":"2030-01-01"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Not enough copies available")
		assert.Len(t, g.events.Events(), before, "失败的变更不发布事件")
	})
}

// TestRouter_Cache 响应缓存与标签失效
func TestRouter_Cache(t *testing.T) {
	g := newGateway(t)
	id := g.catalog.Seed(catalogtest.Book{Title: "Cosmos", Author: "Carl Sagan", Genre: "SCIENCE", ISBN: "1000000001", Copies: 2})

	w := g.do(http.MethodGet, "/api/books", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	w = g.do(http.MethodGet, "/api/books", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Contains(t, w.Body.String(), "Cosmos")
	assert.Equal(t, int64(1), g.catalog.Requests("GET /api/books"))

	t.Run("404不缓存", func(t *testing.T) {
		g.do(http.MethodGet, "/api/books/missing", "")
		w := g.do(http.MethodGet, "/api/books/missing", "")
		assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
		assert.Equal(t, int64(2), g.catalog.Requests("GET /api/books/:id"))
	})

	t.Run("创建让列表失效", func(t *testing.T) {
		w := g.do(http.MethodPost, "/api/books", duneJSON)
		require.Equal(t, http.StatusCreated, w.Code)

		w = g.do(http.MethodGet, "/api/books", "")
		assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
		assert.Contains(t, w.Body.String(), "Dune")
	})

	t.Run("更新不影响其它类型", func(t *testing.T) {
		other := g.catalog.Seed(catalogtest.Book{Title: "Other", Author: "A", Genre: "FICTION", ISBN: "1000000002", Copies: 1})
		g.do(http.MethodGet, "/api/books/"+other, "")
		g.do(http.MethodGet, "/api/borrow", "")

		w := g.do(http.MethodPut, "/api/books/"+id, `{"title":"Cosmos II"}`)
		require.Equal(t, http.StatusOK, w.Code)

		assert.Equal(t, "HIT", g.do(http.MethodGet, "/api/borrow", "").Header().Get("X-Cache"))
		// 类型标签Book也命中单本条目
		assert.Equal(t, "MISS", g.do(http.MethodGet, "/api/books/"+other, "").Header().Get("X-Cache"))
	})

	t.Run("借阅让汇总和图书失效", func(t *testing.T) {
		g.do(http.MethodGet, "/api/borrow", "")
		assert.Equal(t, "HIT", g.do(http.MethodGet, "/api/borrow", "").Header().Get("X-Cache"))

		w := g.do(http.MethodPost, "/api/borrow", `{"book":"`+id+`","quantity":1,"dueDate":"2030-01-01"}`)
		require.Equal(t, http.StatusCreated, w.Code)

		assert.Equal(t, "MISS", g.do(http.MethodGet, "/api/borrow", "").Header().Get("X-Cache"))
		assert.Equal(t, "MISS", g.do(http.MethodGet, "/api/books/"+id, "").Header().Get("X-Cache"))
	})
}

// TestRouter_Events 成功的变更发布事件
func TestRouter_Events(t *testing.T) {
	g := newGateway(t)
	id := g.catalog.Seed(catalogtest.Book{Title: "Cosmos", Author: "Carl Sagan", Genre: "SCIENCE", ISBN: "1000000001", Copies: 2})

	g.do(http.MethodPost, "/api/books", duneJSON)
	g.do(http.MethodPut, "/api/books/"+id, `{"copies":4}`)
	g.do(http.MethodDelete, "/api/books/"+id, "")

	events := g.events.Events()
	require.Len(t, events, 3)

	assert.Equal(t, "createBook", events[0].Operation)
	assert.Equal(t, []string{"Book"}, events[0].Tags)
	assert.Equal(t, http.StatusCreated, events[0].Status)
	assert.Equal(t, "catalog.book.created", events[0].RoutingKey())

	assert.Equal(t, "updateBook", events[1].Operation)
	assert.Equal(t, []string{"Book:" + id, "Book"}, events[1].Tags)

	assert.Equal(t, "deleteBook", events[2].Operation)
	assert.Equal(t, "catalog.book.deleted", events[2].RoutingKey())
}

// TestRouter_BadRequests 网关自己拒绝的请求不转发
func TestRouter_BadRequests(t *testing.T) {
	g := newGateway(t, func(cfg *config.GatewayConfig) { cfg.Server.BodyLimit = 64 })

	t.Run("JSON格式错误", func(t *testing.T) {
		w := g.do(http.MethodPost, "/api/books", `{"title":`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, false, decode(t, w)["success"])
	})

	t.Run("请求体过大", func(t *testing.T) {
		w := g.do(http.MethodPost, "/api/books", `{"description":"`+strings.Repeat("x", 200)+`"}`)
		require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	assert.Zero(t, g.catalog.TotalRequests())
}

// TestRouter_UpstreamDown 上游不可达返回500
func TestRouter_UpstreamDown(t *testing.T) {
	g := newGateway(t)
	g.catalog.Close()

	w := g.do(http.MethodGet, "/api/books", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Error connecting to production API", body["message"])
	assert.Equal(t, "ECONNREFUSED", body["details"])
	assert.NotEmpty(t, body["error"])
}

// TestRouter_CORS 跨域
func TestRouter_CORS(t *testing.T) {
	g := newGateway(t)

	t.Run("预检请求", func(t *testing.T) {
		w := g.do(http.MethodOptions, "/api/books", "",
			"Origin", "http://localhost:5173",
			"Access-Control-Request-Method", "POST",
		)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Zero(t, g.catalog.TotalRequests())
	})

	t.Run("不在列表中的Origin", func(t *testing.T) {
		w := g.do(http.MethodGet, "/health", "", "Origin", "http://evil.example")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

// TestRouter_RateLimit 超过限流返回429
func TestRouter_RateLimit(t *testing.T) {
	metrics.InitMetrics()
	catalog := catalogtest.NewServer()
	defer catalog.Close()

	cfg := testConfig(catalog.URL)
	log := slog.New(slog.DiscardHandler)
	proxy := handler.NewProxyHandler(upstream.New(cfg.Upstream, nil), nil, nil, log)
	r := New(cfg, log, proxy, middleware.NewRateLimiter(0.001, 1))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/books", nil))
		codes = append(codes, w.Code)
		assert.Empty(t, w.Header().Get("X-Cache"), "缓存关闭时没有X-Cache")
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
