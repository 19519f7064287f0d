package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/xiebiao/librarydesk/internal/domain/book"
	"github.com/xiebiao/librarydesk/pkg/circuitbreaker"
	apperrors "github.com/xiebiao/librarydesk/pkg/errors"
	"github.com/xiebiao/librarydesk/pkg/metrics"
	"github.com/xiebiao/librarydesk/pkg/tracing"
)

const tracerName = "librarydesk/client"

// maxResponseBody 单个响应体上限
const maxResponseBody = 10 << 20

// request 一次HTTP调用的描述
type request struct {
	method string
	path   string
	query  url.Values
	body   any
}

// transport 发送JSON请求，非2xx响应转换为*apperrors.Failure
type transport struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker // nil表示不使用熔断
	logger     *slog.Logger
}

func newTransport(baseURL string, httpClient *http.Client, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) *transport {
	return &transport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		breaker:    breaker,
		logger:     logger,
	}
}

// do 执行请求，返回2xx响应的状态码和响应体
//
// 每次调用恰好发出一个HTTP请求（熔断器打开时不发请求），不自动重试。
func (t *transport) do(ctx context.Context, op string, r request) (int, []byte, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", r.method),
		attribute.String("url.path", r.path),
	)

	start := time.Now()
	var status int
	var body []byte

	call := func(ctx context.Context) error {
		var err error
		status, body, err = t.roundTrip(ctx, r)
		return err
	}

	var err error
	if t.breaker != nil {
		err = t.breaker.Execute(ctx, call)
		if errors.Is(err, circuitbreaker.ErrOpenState) {
			err = apperrors.Transport(err)
		}
	} else {
		err = call(ctx)
	}
	if err != nil && !isFailure(err) {
		err = apperrors.Transport(err)
	}

	result := "success"
	if err != nil {
		result = apperrors.KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	metrics.IncCounterVec(metrics.ClientRequestsTotal, op, result)
	metrics.ObserveHistogramVec(metrics.ClientRequestDuration, time.Since(start).Seconds(), op)

	t.logger.DebugContext(ctx, "catalog request",
		"operation", op,
		"method", r.method,
		"path", r.path,
		"status", status,
		"result", result,
		"latency", time.Since(start),
	)

	return status, body, err
}

func (t *transport) roundTrip(ctx context.Context, r request) (int, []byte, error) {
	target := t.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, reader)
	if err != nil {
		return 0, nil, apperrors.Transport(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, nil, apperrors.Transport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, nil, apperrors.Transport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, body, apperrors.Classify(resp.StatusCode, body)
	}
	return resp.StatusCode, body, nil
}

func isFailure(err error) bool {
	var f *apperrors.Failure
	return errors.As(err, &f)
}

// breakerSuccessful 远端的业务拒绝（4xx）不计入熔断失败
func breakerSuccessful(err error) bool {
	if err == nil {
		return true
	}
	status := apperrors.StatusCode(err)
	return status > 0 && status < http.StatusInternalServerError
}

// envelope 远端统一响应结构
type envelope[T any] struct {
	Success    *bool            `json:"success"`
	Message    string           `json:"message"`
	Data       T                `json:"data"`
	Pagination *book.Pagination `json:"pagination,omitempty"`
}

// decodeEnvelope 解析2xx响应
//
// 无法解析的响应体视为失败（Kind Remote）；success:false即使状态码为2xx也视为失败。
func decodeEnvelope[T any](status int, body []byte) (envelope[T], error) {
	var env envelope[T]
	if status == http.StatusNoContent {
		return env, nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return env, apperrors.Malformed(status, body, errors.New("empty response body"))
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return env, apperrors.Malformed(status, body, err)
	}
	if env.Success != nil && !*env.Success {
		return env, apperrors.Classify(status, body)
	}
	return env, nil
}
