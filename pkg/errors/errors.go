// Package errors 定义数据访问层与网关共用的失败分类
//
// 设计说明：
// 1. 远端服务返回的错误统一转换为*Failure，调用方通过Kind判断错误类型
// 2. Kind是机器可读的分类，不再依赖调用方对message做字符串匹配
// 3. Body保留远端原始响应，便于日志和展示
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind 失败分类
type Kind int

const (
	// KindRemote 远端拒绝但无法识别具体原因
	KindRemote Kind = iota
	// KindValidation 参数校验失败（本地表单或远端校验）
	KindValidation
	// KindTransport 网络不可达、超时、熔断打开
	KindTransport
	// KindNotFound 资源不存在
	KindNotFound
	// KindDuplicateKey 唯一键冲突（ISBN重复）
	KindDuplicateKey
	// KindInsufficientStock 可借副本不足
	KindInsufficientStock
)

// String 分类名（用于日志和指标标签）
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindNotFound:
		return "not_found"
	case KindDuplicateKey:
		return "duplicate_key"
	case KindInsufficientStock:
		return "insufficient_stock"
	default:
		return "remote"
	}
}

// Failure 一次远端操作的失败结果
type Failure struct {
	Kind       Kind            `json:"kind"`
	StatusCode int             `json:"status_code"` // 传输层失败时为0
	Message    string          `json:"message"`
	Body       json.RawMessage `json:"body,omitempty"`
	Err        error           `json:"-"`
}

func (f *Failure) Error() string {
	if f.StatusCode > 0 {
		return fmt.Sprintf("[%s %d] %s", f.Kind, f.StatusCode, f.Message)
	}
	if f.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("[%s] %s", f.Kind, f.Message)
}

// Unwrap 支持errors.Is和errors.As
func (f *Failure) Unwrap() error {
	return f.Err
}

// Transport 包装网络层错误
func Transport(err error) *Failure {
	return &Failure{
		Kind:    KindTransport,
		Message: "request failed",
		Err:     err,
	}
}

// Malformed 2xx响应但响应体无法解析
func Malformed(status int, body []byte, err error) *Failure {
	return &Failure{
		Kind:       KindRemote,
		StatusCode: status,
		Message:    "malformed response body",
		Body:       json.RawMessage(body),
		Err:        err,
	}
}

// remoteBody 远端错误响应体
// 形如 {success:false, message:"...", error: "..." | {name, code, message, errors}}
type remoteBody struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

type remoteErrorObject struct {
	Name    string         `json:"name"`
	Message string         `json:"message"`
	Code    any            `json:"code"`
	Errors  map[string]any `json:"errors"`
}

// Classify 根据状态码和结构化响应体生成Failure
//
// 分类顺序：
// 1. 404 → NotFound
// 2. 结构化error.name/code（ValidationError、11000）优先于文本
// 3. 文本匹配（"duplicate"、"already exists"、"not enough"）只作为兜底，
//    单独出现的字段名（"isbn"、"copies"）不参与判断
func Classify(status int, body []byte) *Failure {
	f := &Failure{
		Kind:       KindRemote,
		StatusCode: status,
		Message:    http.StatusText(status),
		Body:       json.RawMessage(body),
	}

	var rb remoteBody
	if err := json.Unmarshal(body, &rb); err != nil {
		if status == http.StatusNotFound {
			f.Kind = KindNotFound
		}
		return f
	}
	if rb.Message != "" {
		f.Message = rb.Message
	}

	detail, obj := decodeRemoteError(rb.Error)
	text := strings.ToLower(rb.Message + " " + detail)

	switch {
	case status == http.StatusNotFound:
		f.Kind = KindNotFound
	case obj != nil && obj.Name == "ValidationError":
		f.Kind = KindValidation
	case obj != nil && fmt.Sprint(obj.Code) == "11000",
		strings.Contains(text, "e11000"),
		strings.Contains(text, "duplicate"),
		strings.Contains(text, "already exists"):
		f.Kind = KindDuplicateKey
	case strings.Contains(text, "not enough"),
		strings.Contains(text, "insufficient"):
		f.Kind = KindInsufficientStock
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity,
		strings.Contains(text, "validation"):
		f.Kind = KindValidation
	}

	return f
}

// decodeRemoteError error字段可能是字符串或对象
func decodeRemoteError(raw json.RawMessage) (string, *remoteErrorObject) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj remoteErrorObject
	if err := json.Unmarshal(raw, &obj); err == nil {
		parts := []string{obj.Name, obj.Message}
		for field := range obj.Errors {
			parts = append(parts, field)
		}
		return strings.Join(parts, " "), &obj
	}
	return string(raw), nil
}

// KindOf 提取错误分类
// 非Failure错误视为传输层错误（context取消、连接失败）
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	var fe FieldErrors
	if errors.As(err, &fe) {
		return KindValidation
	}
	return KindTransport
}

// IsKind 判断错误是否属于指定分类
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusCode 提取HTTP状态码，无法提取时返回0
func StatusCode(err error) int {
	var f *Failure
	if errors.As(err, &f) {
		return f.StatusCode
	}
	return 0
}

// Message 面向用户的错误信息，nil返回空字符串
func Message(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) && f.Message != "" {
		return f.Message
	}
	return err.Error()
}

// FieldErrors 表单字段校验错误（字段名 → 提示信息）
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+fe[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add 记录字段错误（同一字段保留第一条）
func (fe FieldErrors) Add(field, message string) {
	if _, ok := fe[field]; !ok {
		fe[field] = message
	}
}

// Err 没有字段错误时返回nil
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}
