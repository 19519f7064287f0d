// Package upstream 网关到远端目录服务的HTTP转发
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/xiebiao/librarydesk/internal/infrastructure/config"
	"github.com/xiebiao/librarydesk/pkg/circuitbreaker"
	"github.com/xiebiao/librarydesk/pkg/logger"
	"github.com/xiebiao/librarydesk/pkg/metrics"
)

const maxResponseBody = 10 << 20

// ErrResponseTooLarge 上游响应体超过上限，不截断转发
var ErrResponseTooLarge = errors.New("upstream response too large")

// errServerStatus 上游返回5xx：响应照常转发，但计入熔断失败
var errServerStatus = errors.New("upstream returned server error")

// Response 上游响应
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// ContentType 响应的Content-Type
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// Client 上游转发客户端
type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	maxBody   int64
	http      *http.Client
	breaker   *circuitbreaker.CircuitBreaker // nil表示不熔断
}

// New 创建转发客户端
func New(cfg config.UpstreamConfig, breaker *circuitbreaker.CircuitBreaker) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		maxBody:   maxResponseBody,
		http:      &http.Client{},
		breaker:   breaker,
	}
}

// Do 把请求转发到 baseURL + requestURI
//
// 只有网络层失败（连接、超时、熔断）和响应体超限返回error；上游的任何状态码都通过Response返回。
func (u *Client) Do(ctx context.Context, method, requestURI string, body []byte) (*Response, error) {
	var resp *Response
	call := func(ctx context.Context) error {
		var err error
		resp, err = u.roundTrip(ctx, method, requestURI, body)
		if err != nil {
			return err
		}
		if resp.Status >= http.StatusInternalServerError {
			return errServerStatus
		}
		return nil
	}

	var err error
	if u.breaker != nil {
		err = u.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if errors.Is(err, errServerStatus) {
		err = nil
	}
	metrics.IncCounterVec(metrics.UpstreamRequestsTotal, method, result(resp, err))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func result(resp *Response, err error) string {
	switch {
	case errors.Is(err, circuitbreaker.ErrOpenState):
		return "circuit_open"
	case err != nil:
		return "transport_error"
	case resp.Status >= http.StatusBadRequest:
		return "rejected"
	default:
		return "ok"
	}
}

func (u *Client) roundTrip(ctx context.Context, method, requestURI string, body []byte) (*Response, error) {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.baseURL+requestURI, reader)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if u.userAgent != "" {
		req.Header.Set("User-Agent", u.userAgent)
	}
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	res, err := u.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, u.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	if int64(len(data)) > u.maxBody {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, u.maxBody)
	}
	return &Response{Status: res.StatusCode, Header: res.Header, Body: data}, nil
}

// ErrorCode 网络错误的简短代码，用于响应的details字段
func ErrorCode(err error) string {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, circuitbreaker.ErrOpenState):
		return "ECIRCUITOPEN"
	case errors.Is(err, ErrResponseTooLarge):
		return "EMSGSIZE"
	case errors.Is(err, context.DeadlineExceeded):
		return "ECONNABORTED"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "ECONNREFUSED"
	case errors.Is(err, syscall.ECONNRESET):
		return "ECONNRESET"
	case errors.As(err, &dnsErr):
		return "ENOTFOUND"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "ECONNABORTED"
	default:
		return "EUPSTREAM"
	}
}
