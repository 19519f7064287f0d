// Package client 图书目录服务的数据访问层
//
// 职责：
//   - 每个操作一个HTTP请求，失败统一为*apperrors.Failure
//   - 按(操作名, 规范化参数)缓存查询结果，并发的相同查询共享一个请求
//   - 查询结果带标签（Book、Book:42、Borrow），变更成功后按标签失效
//   - 有订阅者的失效条目在后台重新请求，没有订阅者的直接丢弃
//   - 没有订阅者的条目在keepUnusedFor之后移出缓存
//
// 并发安全：一把互斥锁保护缓存表，网络请求在锁外执行。
package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/xiebiao/librarydesk/pkg/circuitbreaker"
	apperrors "github.com/xiebiao/librarydesk/pkg/errors"
	"github.com/xiebiao/librarydesk/pkg/metrics"
)

// Status 查询条目状态
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusFulfilled
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusFulfilled:
		return "fulfilled"
	case StatusError:
		return "error"
	default:
		return "uninitialized"
	}
}

type fetchFunc func(ctx context.Context) (any, error)

// entry 一个缓存条目
type entry struct {
	key  string
	op   string
	args any
	tags []Tag

	status    Status
	data      any
	hasData   bool
	err       error
	stale     bool
	fetching  bool
	version   uint64 // 每次失效递增，用于识别请求期间发生的失效
	updatedAt time.Time

	fetch    fetchFunc
	subs     map[uint64]func()
	evict    *time.Timer
	evictGen uint64
}

func (e *entry) listeners() []func() {
	out := make([]func(), 0, len(e.subs))
	for _, l := range e.subs {
		out = append(out, l)
	}
	return out
}

// snapshot 条目在某一时刻的只读副本
type snapshot struct {
	status    Status
	data      any
	hasData   bool
	err       error
	stale     bool
	fetching  bool
	updatedAt time.Time
}

// Options 客户端配置
type Options struct {
	BaseURL            string
	Timeout            time.Duration // 默认30秒
	KeepUnusedFor      time.Duration // 默认60秒，<0表示立即移除
	RefetchConcurrency int           // 失效后并行重新请求的上限，默认4
	HTTPClient         *http.Client
	Breaker            *circuitbreaker.CircuitBreaker
	Logger             *slog.Logger
}

// Client 数据访问层，可并发使用
type Client struct {
	transport    *transport
	keepUnused   time.Duration
	refetchLimit int
	logger       *slog.Logger

	mu        sync.Mutex
	entries   map[string]*entry
	observers map[uint64]Observer
	nextID    uint64
	closed    bool

	flight singleflight.Group
	bg     sync.WaitGroup

	ListBooks        *Query[ListBooksArgs, BookPage]
	GetBook          *Query[string, Book]
	GetBorrowSummary *Query[NoArgs, []BorrowSummary]
	CreateBook       *Mutation[CreateBookArgs, Book]
	UpdateBook       *Mutation[UpdateBookArgs, Book]
	DeleteBook       *Mutation[string, NoArgs]
	BorrowBook       *Mutation[BorrowArgs, Borrow]
}

// New 创建客户端
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("client: base url is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.KeepUnusedFor == 0 {
		opts.KeepUnusedFor = 60 * time.Second
	}
	if opts.KeepUnusedFor < 0 {
		opts.KeepUnusedFor = 0
	}
	if opts.RefetchConcurrency <= 0 {
		opts.RefetchConcurrency = 4
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Client{
		transport:    newTransport(opts.BaseURL, opts.HTTPClient, opts.Breaker, opts.Logger),
		keepUnused:   opts.KeepUnusedFor,
		refetchLimit: opts.RefetchConcurrency,
		logger:       opts.Logger,
		entries:      make(map[string]*entry),
		observers:    make(map[uint64]Observer),
	}
	c.registerEndpoints()
	return c, nil
}

// BreakerSuccessful 熔断器的IsSuccessful：远端4xx拒绝不计入失败
func BreakerSuccessful(err error) bool {
	return breakerSuccessful(err)
}

// AddObserver 注册事件观察者，返回取消函数
func (c *Client) AddObserver(o Observer) (remove func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.observers[id] = o
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// Invalidate 让带有匹配标签的条目失效
//
// 有订阅者的条目标记为过期并在后台重新请求；正在请求中的条目标记为过期，
// 请求完成后不会被当作最新数据；其余条目直接移出缓存。
func (c *Client) Invalidate(tags ...Tag) {
	if len(tags) == 0 {
		return
	}

	var refetch []string
	var events []QueryEvent

	c.mu.Lock()
	for key, e := range c.entries {
		if !matchesAny(tags, e.tags) {
			continue
		}
		e.version++
		e.stale = true

		ev := QueryEvent{Operation: e.op, Key: key, Args: e.args, Phase: PhaseInvalidated, Tags: e.tags}
		switch {
		case len(e.subs) > 0:
			refetch = append(refetch, key)
		case e.fetching:
		default:
			c.removeLocked(e)
			ev.Phase = PhaseEvicted
			metrics.CacheEvent("drop")
		}
		events = append(events, ev)
		metrics.CacheEvent("invalidate")
	}
	c.mu.Unlock()

	for _, ev := range events {
		c.emitQuery(ev)
	}
	c.refetchInBackground(refetch)
}

// Wait 等待后台请求（失效后的重新请求、订阅触发的首次请求）完成
func (c *Client) Wait() {
	c.bg.Wait()
}

// Close 停止所有移除定时器并等待后台请求完成
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	for _, e := range c.entries {
		if e.evict != nil {
			e.evict.Stop()
			e.evict = nil
		}
	}
	c.mu.Unlock()

	c.bg.Wait()
}

// Len 缓存中的条目数
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// entryLocked 取出或创建条目，调用方持有c.mu
func (c *Client) entryLocked(key, op string, args any, tags []Tag) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{
			key:  key,
			op:   op,
			args: args,
			tags: tags,
			subs: make(map[uint64]func()),
		}
		c.entries[key] = e
	}
	return e
}

func (c *Client) removeLocked(e *entry) {
	if e.evict != nil {
		e.evict.Stop()
		e.evict = nil
	}
	if c.entries[e.key] == e {
		delete(c.entries, e.key)
	}
}

// query 读缓存，未命中或过期时发起（共享的）请求
func (c *Client) query(ctx context.Context, key, op string, args any, tags []Tag, fetch fetchFunc, force bool) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key, op, args, tags)
	e.fetch = fetch
	if !force && e.hasData && !e.stale {
		data := e.data
		c.mu.Unlock()
		metrics.CacheEvent("hit")
		return data, nil
	}
	c.mu.Unlock()

	metrics.CacheEvent("miss")
	return c.run(ctx, key, op, args, tags, fetch, false)
}

// run 同一个key同时只有一个请求在途，其它调用方等待同一个结果
//
// 调用方的ctx取消只影响它自己的等待，在途请求继续完成并写入缓存。
func (c *Client) run(ctx context.Context, key, op string, args any, tags []Tag, fetch fetchFunc, refetch bool) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (any, error) {
		return c.execute(detached, key, op, args, tags, fetch, refetch)
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.CacheEvent("dedup")
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, apperrors.Transport(ctx.Err())
	}
}

func (c *Client) execute(ctx context.Context, key, op string, args any, tags []Tag, fetch fetchFunc, refetch bool) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key, op, args, tags)
	if e.fetch == nil {
		e.fetch = fetch
	}
	if !e.hasData {
		e.status = StatusLoading
	}
	e.fetching = true
	version := e.version
	listeners := e.listeners()
	c.mu.Unlock()

	c.emitQuery(QueryEvent{Operation: op, Key: key, Args: args, Phase: PhaseStarted, Tags: tags, Refetch: refetch})
	notify(listeners)

	data, err := fetch(ctx)

	c.mu.Lock()
	e.fetching = false
	e.updatedAt = time.Now()
	if err != nil {
		e.status = StatusError
		e.err = err
	} else {
		e.status = StatusFulfilled
		e.data = data
		e.hasData = true
		e.err = nil
		e.stale = e.version != version
	}
	// 只有请求期间又发生了失效才补一次请求，失败的结果不会再触发自己
	again := e.stale && e.version != version && len(e.subs) > 0 && c.entries[key] == e
	if len(e.subs) == 0 && c.entries[key] == e {
		c.scheduleEvictLocked(e)
	}
	listeners = e.listeners()
	c.mu.Unlock()

	ev := QueryEvent{Operation: op, Key: key, Args: args, Phase: PhaseFulfilled, Data: data, Tags: tags, Refetch: refetch}
	if err != nil {
		ev.Phase, ev.Data, ev.Err = PhaseRejected, nil, err
		c.logger.DebugContext(ctx, "query failed", "operation", op, "key", key, "error", err)
	}
	c.emitQuery(ev)
	notify(listeners)

	if again {
		c.refetchInBackground([]string{key})
	}
	return data, err
}

// refetchInBackground 并行重新请求，数量受refetchLimit限制
func (c *Client) refetchInBackground(keys []string) {
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()

		var g errgroup.Group
		g.SetLimit(c.refetchLimit)
		for _, key := range keys {
			g.Go(func() error {
				c.refetchKey(key)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func (c *Client) refetchKey(key string) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || len(e.subs) == 0 || e.fetch == nil {
		c.mu.Unlock()
		return
	}
	op, args, tags, fetch := e.op, e.args, e.tags, e.fetch
	c.mu.Unlock()

	metrics.CacheEvent("refetch")
	_, _ = c.run(context.Background(), key, op, args, tags, fetch, true)
}

// subscribe 注册订阅者；条目没有数据或已过期时在后台发起请求
func (c *Client) subscribe(key, op string, args any, tags []Tag, fetch fetchFunc, listener func()) uint64 {
	c.mu.Lock()
	e := c.entryLocked(key, op, args, tags)
	e.fetch = fetch
	c.nextID++
	id := c.nextID
	e.subs[id] = listener
	if e.evict != nil {
		e.evict.Stop()
		e.evict = nil
	}
	needFetch := !e.fetching && (!e.hasData || e.stale) && !c.closed
	if needFetch {
		c.bg.Add(1)
	}
	c.mu.Unlock()

	if needFetch {
		go func() {
			defer c.bg.Done()
			_, _ = c.run(context.Background(), key, op, args, tags, fetch, false)
		}()
	}
	return id
}

// unsubscribe 最后一个订阅者离开后安排移除
func (c *Client) unsubscribe(key string, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return
	}
	if _, ok := e.subs[id]; !ok {
		return
	}
	delete(e.subs, id)
	if len(e.subs) == 0 {
		c.scheduleEvictLocked(e)
	}
}

func (c *Client) scheduleEvictLocked(e *entry) {
	if e.evict != nil || c.closed {
		return
	}
	e.evictGen++
	gen := e.evictGen
	e.evict = time.AfterFunc(c.keepUnused, func() { c.evictEntry(e, gen) })
}

func (c *Client) evictEntry(e *entry, gen uint64) {
	c.mu.Lock()
	if e.evictGen != gen || e.evict == nil || c.entries[e.key] != e {
		c.mu.Unlock()
		return
	}
	e.evict = nil
	if len(e.subs) > 0 || e.fetching {
		// 请求完成后会重新安排
		c.mu.Unlock()
		return
	}
	delete(c.entries, e.key)
	ev := QueryEvent{Operation: e.op, Key: e.key, Args: e.args, Phase: PhaseEvicted, Tags: e.tags}
	c.mu.Unlock()

	metrics.CacheEvent("evict")
	c.emitQuery(ev)
}

func (c *Client) snapshot(key string) snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return snapshot{status: StatusUninitialized}
	}
	return snapshot{
		status:    e.status,
		data:      e.data,
		hasData:   e.hasData,
		err:       e.err,
		stale:     e.stale,
		fetching:  e.fetching,
		updatedAt: e.updatedAt,
	}
}

// mutate 执行变更，成功后按标签失效
func (c *Client) mutate(ctx context.Context, op string, args any, invalidates []Tag, exec fetchFunc) (any, error) {
	c.emitMutation(MutationEvent{Operation: op, Args: args, Phase: PhaseStarted})

	data, err := exec(ctx)
	if err != nil {
		c.emitMutation(MutationEvent{Operation: op, Args: args, Phase: PhaseRejected, Err: err})
		return nil, err
	}

	c.Invalidate(invalidates...)
	c.emitMutation(MutationEvent{Operation: op, Args: args, Phase: PhaseFulfilled, Data: data, Invalidated: invalidates})
	return data, nil
}

func (c *Client) observerList() []Observer {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		out = append(out, o)
	}
	return out
}

func (c *Client) emitQuery(ev QueryEvent) {
	for _, o := range c.observerList() {
		o.OnQuery(ev)
	}
}

func (c *Client) emitMutation(ev MutationEvent) {
	for _, o := range c.observerList() {
		o.OnMutation(ev)
	}
}

func notify(listeners []func()) {
	for _, l := range listeners {
		if l != nil {
			l()
		}
	}
}
