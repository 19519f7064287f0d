package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClassify 测试远端错误分类
func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"404资源不存在", http.StatusNotFound, `{"success":false,"message":"Book not found"}`, KindNotFound},
		{"404非JSON响应", http.StatusNotFound, `<html>not found</html>`, KindNotFound},
		{"mongo重复键", http.StatusBadRequest, `{"success":false,"message":"Create failed","error":{"name":"MongoServerError","code":11000}}`, KindDuplicateKey},
		{"error字符串包含ISBN", http.StatusConflict, `{"success":false,"message":"Create failed","error":"ISBN already exists"}`, KindDuplicateKey},
		{"副本不足", http.StatusBadRequest, `{"success":false,"message":"Borrow failed","error":"Not enough copies available"}`, KindInsufficientStock},
		{"结构化校验错误", http.StatusBadRequest, `{"success":false,"message":"Validation failed","error":{"name":"ValidationError","errors":{"title":{}}}}`, KindValidation},
		{"结构化校验错误涉及副本", http.StatusBadRequest, `{"success":false,"message":"Validation failed","error":{"name":"ValidationError","errors":{"copies":{"message":"Copies must be a non-negative number"}}}}`, KindValidation},
		{"副本字段格式错误", http.StatusBadRequest, `{"success":false,"message":"Copies must be a non-negative number"}`, KindValidation},
		{"副本不足且提到ISBN", http.StatusBadRequest, `{"success":false,"message":"Borrow failed","error":"Not enough copies available for ISBN 9780441013593"}`, KindInsufficientStock},
		{"库存不足", http.StatusConflict, `{"success":false,"message":"Insufficient stock"}`, KindInsufficientStock},
		{"单独提到ISBN不算重复", http.StatusBadRequest, `{"success":false,"message":"ISBN is required"}`, KindValidation},
		{"普通400", http.StatusBadRequest, `{"success":false,"message":"bad input"}`, KindValidation},
		{"未识别的500", http.StatusInternalServerError, `{"success":false,"message":"boom"}`, KindRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Classify(tt.status, []byte(tt.body))
			assert.Equal(t, tt.want, f.Kind, "分类应该一致")
			assert.Equal(t, tt.status, f.StatusCode)
			assert.Equal(t, tt.body, string(f.Body), "应该保留原始响应体")
		})
	}
}

// TestClassify_Message 测试message提取
func TestClassify_Message(t *testing.T) {
	f := Classify(http.StatusBadRequest, []byte(`{"success":false,"message":"ISBN already exists"}`))
	assert.Equal(t, "ISBN already exists", f.Message)

	f = Classify(http.StatusBadGateway, []byte(`oops`))
	assert.Equal(t, http.StatusText(http.StatusBadGateway), f.Message)
}

// TestKindOf 测试分类提取
func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("create book: %w", Classify(http.StatusNotFound, nil))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.Equal(t, http.StatusNotFound, StatusCode(wrapped))

	assert.Equal(t, KindTransport, KindOf(context.DeadlineExceeded), "非Failure错误视为传输错误")
	assert.False(t, IsKind(nil, KindTransport))

	fe := FieldErrors{"isbn": "ISBN is required"}
	assert.Equal(t, KindValidation, KindOf(fe))
}

// TestTransport 测试传输错误包装
func TestTransport(t *testing.T) {
	f := Transport(context.DeadlineExceeded)
	require.ErrorIs(t, f, context.DeadlineExceeded)
	assert.Equal(t, KindTransport, f.Kind)
	assert.Zero(t, f.StatusCode)
}

// TestFieldErrors 测试字段错误
func TestFieldErrors(t *testing.T) {
	fe := FieldErrors{}
	assert.NoError(t, fe.Err(), "没有字段错误时应返回nil")

	fe.Add("title", "Title is required")
	fe.Add("title", "ignored")
	fe.Add("author", "Author is required")

	assert.Equal(t, "Title is required", fe["title"], "同一字段保留第一条")
	assert.Equal(t, "validation failed: author: Author is required; title: Title is required", fe.Err().Error())
}

// TestMessage 测试面向用户的错误信息
func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "Book not found", Message(Classify(http.StatusNotFound, []byte(`{"success":false,"message":"Book not found"}`))))
	assert.Equal(t, "boom", Message(fmt.Errorf("boom")))
	assert.Equal(t, "request failed", Message(fmt.Errorf("list: %w", Transport(context.Canceled))))
}
