package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// QueryState 查询条目的类型化视图
type QueryState[R any] struct {
	Status    Status
	Data      R
	HasData   bool // 失败或重新请求期间仍保留上一次成功的数据
	Err       error
	Stale     bool
	Fetching  bool
	UpdatedAt time.Time
}

// Loading 首次请求进行中（还没有任何数据）
func (s QueryState[R]) Loading() bool {
	return s.Status == StatusLoading
}

func stateOf[R any](snap snapshot) QueryState[R] {
	st := QueryState[R]{
		Status:    snap.status,
		HasData:   snap.hasData,
		Err:       snap.err,
		Stale:     snap.stale,
		Fetching:  snap.fetching,
		UpdatedAt: snap.updatedAt,
	}
	if snap.hasData {
		st.Data, _ = snap.data.(R)
	}
	return st
}

func cast[R any](v any, err error) (R, error) {
	var zero R
	if err != nil {
		return zero, err
	}
	r, _ := v.(R)
	return r, nil
}

// Query 一个只读操作
type Query[A, R any] struct {
	c         *Client
	name      string
	normalize func(A) A
	provides  func(A) []Tag
	request   func(A) request
	decode    func(status int, body []byte) (R, error)
}

// Name 操作名
func (q *Query[A, R]) Name() string {
	return q.name
}

func (q *Query[A, R]) norm(args A) A {
	if q.normalize == nil {
		return args
	}
	return q.normalize(args)
}

// Key 缓存键：操作名(规范化参数的JSON)
func (q *Query[A, R]) Key(args A) string {
	return q.key(q.norm(args))
}

func (q *Query[A, R]) key(normalized A) string {
	b, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Sprintf("%s(%v)", q.name, normalized)
	}
	return q.name + "(" + string(b) + ")"
}

func (q *Query[A, R]) fetcher(args A) fetchFunc {
	return func(ctx context.Context) (any, error) {
		status, body, err := q.c.transport.do(ctx, q.name, q.request(args))
		if err != nil {
			return nil, err
		}
		r, err := q.decode(status, body)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// Fetch 返回缓存中的最新结果，没有或已过期时发起请求
func (q *Query[A, R]) Fetch(ctx context.Context, args A) (R, error) {
	args = q.norm(args)
	return cast[R](q.c.query(ctx, q.key(args), q.name, args, q.provides(args), q.fetcher(args), false))
}

// Refetch 忽略缓存重新请求（与在途的相同请求共享结果）
func (q *Query[A, R]) Refetch(ctx context.Context, args A) (R, error) {
	args = q.norm(args)
	return cast[R](q.c.query(ctx, q.key(args), q.name, args, q.provides(args), q.fetcher(args), true))
}

// State 当前缓存状态，不发起请求
func (q *Query[A, R]) State(args A) QueryState[R] {
	return stateOf[R](q.c.snapshot(q.Key(args)))
}

// Watch 订阅查询结果
//
// 条目没有数据或已过期时在后台发起请求；之后每次状态变化都会调用onChange。
// onChange在请求所在的goroutine中执行，不能阻塞。
func (q *Query[A, R]) Watch(args A, onChange func(QueryState[R])) *Subscription[R] {
	args = q.norm(args)
	s := &Subscription[R]{
		c:   q.c,
		key: q.key(args),
		refetch: func(ctx context.Context) (R, error) {
			return q.Refetch(ctx, args)
		},
	}

	listener := func() {
		if onChange != nil {
			onChange(s.State())
		}
	}
	s.id = q.c.subscribe(s.key, q.name, args, q.provides(args), q.fetcher(args), listener)
	return s
}

// Subscription 对某个查询条目的订阅
type Subscription[R any] struct {
	c       *Client
	key     string
	id      uint64
	refetch func(ctx context.Context) (R, error)
	once    sync.Once
}

// State 当前状态
func (s *Subscription[R]) State() QueryState[R] {
	return stateOf[R](s.c.snapshot(s.key))
}

// Key 订阅的缓存键
func (s *Subscription[R]) Key() string {
	return s.key
}

// Refetch 忽略缓存重新请求
func (s *Subscription[R]) Refetch(ctx context.Context) (R, error) {
	return s.refetch(ctx)
}

// Unsubscribe 取消订阅，可重复调用
func (s *Subscription[R]) Unsubscribe() {
	s.once.Do(func() {
		s.c.unsubscribe(s.key, s.id)
	})
}

// Mutation 一个写操作
type Mutation[A, R any] struct {
	c           *Client
	name        string
	invalidates func(A) []Tag
	request     func(A) request
	decode      func(status int, body []byte) (R, error)
}

// Name 操作名
func (m *Mutation[A, R]) Name() string {
	return m.name
}

// Do 执行变更；成功后让相关标签失效，失败时缓存不变
func (m *Mutation[A, R]) Do(ctx context.Context, args A) (R, error) {
	exec := func(ctx context.Context) (any, error) {
		status, body, err := m.c.transport.do(ctx, m.name, m.request(args))
		if err != nil {
			return nil, err
		}
		r, err := m.decode(status, body)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return cast[R](m.c.mutate(ctx, m.name, args, m.invalidates(args), exec))
}
