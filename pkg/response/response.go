// Package response 网关自己生成的响应
//
// 上游目录服务的响应原样转发，不经过这里；本包只负责网关本身的
// 健康检查、404、上游连接失败等响应，格式与上游保持一致：
//
//	{"success": false, "message": "...", "error": "..."}
package response

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Response 网关响应结构（与上游的envelope字段一致）
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	Details   any    `json:"details,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Health 健康检查
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Message:   "Backend proxy is running",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// RouteNotFound 未匹配的路由
func RouteNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, Response{
		Success: false,
		Message: "Route not found",
		Error:   fmt.Sprintf("Cannot %s %s", c.Request.Method, c.Request.URL.RequestURI()),
	})
}

// UpstreamError 无法连接上游（网络错误、超时、熔断）
//
// details为错误代码（如ETIMEDOUT）或上游返回的原始内容。
func UpstreamError(c *gin.Context, err error, details any) {
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Message: "Error connecting to production API",
		Error:   err.Error(),
		Details: details,
	})
}

// TooManyRequests 超过限流
func TooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{
		Success: false,
		Message: "Too many requests",
		Error:   "rate limit exceeded",
	})
}

// Relay 原样转发上游响应
func Relay(c *gin.Context, status int, contentType string, body []byte) {
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}
	c.Data(status, contentType, body)
}

// Fail 网关拒绝请求（请求体过大、JSON格式错误等）
func Fail(c *gin.Context, status int, message string, err error) {
	resp := Response{Success: false, Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, resp)
}
