package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/librarydesk/internal/infrastructure/config"
)

// CORS 跨域资源共享中间件
//
// 要点：
// 1. Origin在允许列表中时回写该Origin（携带凭证时不能用"*"）
// 2. 不在列表中的Origin不返回CORS头部，由浏览器拦截
// 3. 预检请求（OPTIONS）直接返回204
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		origin := c.Request.Header.Get("Origin")
		allowed := false
		for _, o := range cfg.AllowOrigins {
			if o == "*" && !cfg.AllowCredentials {
				c.Header("Access-Control-Allow-Origin", "*")
				allowed = true
				break
			}
			if o == origin || (o == "*" && origin != "") {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				allowed = true
				break
			}
		}

		if allowed {
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", headers)
			if cfg.AllowCredentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
			if cfg.MaxAge > 0 {
				c.Header("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			}
		}

		if c.Request.Method == http.MethodOptions && c.Request.Header.Get("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
