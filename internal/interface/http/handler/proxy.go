// Package handler 网关HTTP处理器
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/librarydesk/internal/client"
	"github.com/xiebiao/librarydesk/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/librarydesk/internal/infrastructure/upstream"
	"github.com/xiebiao/librarydesk/pkg/metrics"
	"github.com/xiebiao/librarydesk/pkg/mq"
	"github.com/xiebiao/librarydesk/pkg/response"
)

// Forwarder 转发请求到上游
type Forwarder interface {
	Do(ctx context.Context, method, requestURI string, body []byte) (*upstream.Response, error)
}

// ResponseCache GET响应缓存
type ResponseCache interface {
	Get(ctx context.Context, key string) (*redis.CachedResponse, error)
	Set(ctx context.Context, key string, tags []string, resp redis.CachedResponse) error
	Invalidate(ctx context.Context, tags []string) (int, error)
}

// TagFunc 按请求计算缓存标签
type TagFunc func(c *gin.Context) []client.Tag

// ProxyHandler 目录API转发处理器
//
// cache、events为nil时对应功能关闭。
type ProxyHandler struct {
	upstream Forwarder
	cache    ResponseCache
	events   mq.EventPublisher
	logger   *slog.Logger
}

// NewProxyHandler 创建转发处理器
func NewProxyHandler(upstream Forwarder, cache ResponseCache, events mq.EventPublisher, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		upstream: upstream,
		cache:    cache,
		events:   events,
		logger:   logger,
	}
}

// Query 只读路由：先查响应缓存，未命中再转发
func (h *ProxyHandler) Query(op string, provides TagFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := c.Request.Method + " " + c.Request.URL.RequestURI()

		if h.cache != nil {
			cached, err := h.cache.Get(ctx, key)
			if err != nil {
				h.logger.WarnContext(ctx, "读取响应缓存失败", "operation", op, "error", err)
				metrics.IncCounterVec(metrics.ResponseCacheTotal, "error")
			}
			if cached != nil {
				metrics.IncCounterVec(metrics.ResponseCacheTotal, "hit")
				c.Header("X-Cache", "HIT")
				response.Relay(c, cached.Status, cached.ContentType, cached.Body)
				return
			}
			metrics.IncCounterVec(metrics.ResponseCacheTotal, "miss")
			c.Header("X-Cache", "MISS")
		}

		resp, ok := h.forward(c, op, nil)
		if !ok {
			return
		}

		if h.cache != nil && resp.Status == http.StatusOK {
			tags := client.TagStrings(provides(c))
			err := h.cache.Set(ctx, key, tags, redis.CachedResponse{
				Status:      resp.Status,
				ContentType: resp.ContentType(),
				Body:        resp.Body,
			})
			if err != nil {
				h.logger.WarnContext(ctx, "写入响应缓存失败", "operation", op, "error", err)
				metrics.IncCounterVec(metrics.ResponseCacheTotal, "error")
			} else {
				metrics.IncCounterVec(metrics.ResponseCacheTotal, "store")
			}
		}

		response.Relay(c, resp.Status, resp.ContentType(), resp.Body)
	}
}

// Mutation 写路由：转发成功后让缓存失效并发布变更事件
func (h *ProxyHandler) Mutation(op string, invalidates TagFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Fail(c, http.StatusRequestEntityTooLarge, "Request body too large", err)
				return
			}
			response.Fail(c, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		if len(body) > 0 && !json.Valid(body) {
			response.Fail(c, http.StatusBadRequest, "Invalid JSON", errors.New("request body is not valid JSON"))
			return
		}

		resp, ok := h.forward(c, op, body)
		if !ok {
			return
		}

		if resp.Status >= 200 && resp.Status < 300 {
			h.afterMutation(c, op, resp.Status, invalidates(c))
		}
		response.Relay(c, resp.Status, resp.ContentType(), resp.Body)
	}
}

func (h *ProxyHandler) forward(c *gin.Context, op string, body []byte) (*upstream.Response, bool) {
	ctx := c.Request.Context()
	resp, err := h.upstream.Do(ctx, c.Request.Method, c.Request.URL.RequestURI(), body)
	if err != nil {
		code := upstream.ErrorCode(err)
		h.logger.ErrorContext(ctx, "❌ 上游请求失败",
			"operation", op,
			"method", c.Request.Method,
			"uri", c.Request.URL.RequestURI(),
			"code", code,
			"error", err,
		)
		response.UpstreamError(c, err, code)
		return nil, false
	}
	return resp, true
}

func (h *ProxyHandler) afterMutation(c *gin.Context, op string, status int, tags []client.Tag) {
	ctx := c.Request.Context()
	names := client.TagStrings(tags)

	if h.cache != nil {
		n, err := h.cache.Invalidate(ctx, names)
		if err != nil {
			h.logger.WarnContext(ctx, "响应缓存失效失败", "operation", op, "tags", names, "error", err)
			metrics.IncCounterVec(metrics.ResponseCacheTotal, "error")
		} else if n > 0 {
			metrics.IncCounterVec(metrics.ResponseCacheTotal, "invalidate")
			h.logger.DebugContext(ctx, "响应缓存已失效", "operation", op, "tags", names, "keys", n)
		}
	}

	if h.events != nil {
		event := mq.ChangeEvent{Operation: op, Tags: names, Status: status, At: time.Now().UTC()}
		result := "ok"
		if err := h.events.Publish(ctx, event); err != nil {
			result = "error"
			h.logger.WarnContext(ctx, "发布变更事件失败", "operation", op, "error", err)
		}
		metrics.IncCounterVec(metrics.EventsPublishedTotal, event.RoutingKey(), result)
	}
}

// 各路由的标签

// BookListTags 列表提供Book
func BookListTags(*gin.Context) []client.Tag {
	return []client.Tag{client.TypeTag(client.TagBook)}
}

// BookTags 单本提供Book:{id}
func BookTags(c *gin.Context) []client.Tag {
	return []client.Tag{client.IDTag(client.TagBook, c.Param("id"))}
}

// BookUpdateTags 更新让Book:{id}和Book失效
func BookUpdateTags(c *gin.Context) []client.Tag {
	return []client.Tag{client.IDTag(client.TagBook, c.Param("id")), client.TypeTag(client.TagBook)}
}

// BorrowTags 汇总提供Borrow
func BorrowTags(*gin.Context) []client.Tag {
	return []client.Tag{client.TypeTag(client.TagBorrow)}
}

// BorrowBookTags 借阅让Borrow和Book失效
func BorrowBookTags(*gin.Context) []client.Tag {
	return []client.Tag{client.TypeTag(client.TagBorrow), client.TypeTag(client.TagBook)}
}
