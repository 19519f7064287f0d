package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedResponse 缓存的上游响应
type CachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// ResponseCache 网关GET响应缓存
// Key设计：
//   - {prefix}resp:{METHOD URI}        缓存的响应（带TTL）
//   - {prefix}tag:type:{Type}          提供了该类型任意标签的响应键集合
//   - {prefix}tag:id:{Type}:{ID}       提供了该ID标签的响应键集合
//
// 失效规则与数据访问层相同：类型标签命中该类型的所有响应，ID标签只命中同一ID。
type ResponseCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewResponseCache 创建响应缓存
func NewResponseCache(client *redis.Client, prefix string, ttl time.Duration) *ResponseCache {
	return &ResponseCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *ResponseCache) respKey(key string) string {
	return c.prefix + "resp:" + key
}

func (c *ResponseCache) typeSet(typ string) string {
	return c.prefix + "tag:type:" + typ
}

func (c *ResponseCache) idSet(typ, id string) string {
	return c.prefix + "tag:id:" + typ + ":" + id
}

// Get 读取缓存，未命中返回(nil, nil)
func (c *ResponseCache) Get(ctx context.Context, key string) (*CachedResponse, error) {
	raw, err := c.client.Get(ctx, c.respKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取响应缓存失败: %w", err)
	}

	var resp CachedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		// 损坏的条目直接丢弃
		_ = c.client.Del(ctx, c.respKey(key)).Err()
		return nil, nil
	}
	return &resp, nil
}

// Set 写入缓存并登记标签
// 标签格式 "Book" 或 "Book:42"
func (c *ResponseCache) Set(ctx context.Context, key string, tags []string, resp CachedResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("序列化响应失败: %w", err)
	}

	rk := c.respKey(key)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rk, payload, c.ttl)
		for _, tag := range tags {
			typ, id, _ := strings.Cut(tag, ":")
			sets := []string{c.typeSet(typ)}
			if id != "" {
				sets = append(sets, c.idSet(typ, id))
			}
			for _, set := range sets {
				pipe.SAdd(ctx, set, rk)
				if c.ttl > 0 {
					// 集合比响应多活一个TTL
					pipe.Expire(ctx, set, 2*c.ttl)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("写入响应缓存失败: %w", err)
	}
	return nil
}

// Invalidate 删除命中标签的所有响应，返回删除的响应键数量
func (c *ResponseCache) Invalidate(ctx context.Context, tags []string) (int, error) {
	if len(tags) == 0 {
		return 0, nil
	}

	sets := make([]string, 0, len(tags))
	for _, tag := range tags {
		typ, id, _ := strings.Cut(tag, ":")
		if id == "" {
			sets = append(sets, c.typeSet(typ))
		} else {
			sets = append(sets, c.idSet(typ, id))
		}
	}

	keys, err := c.client.SUnion(ctx, sets...).Result()
	if err != nil {
		return 0, fmt.Errorf("读取标签集合失败: %w", err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, sets...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("删除响应缓存失败: %w", err)
	}
	return len(keys), nil
}
