package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/val20-11/mac-attendance/pkg/response"
)

// BodyLimit 全局请求体大小限制中间件
// maxBytes: 允许的最大请求体字节数（如 5<<20 = 5MB，需容纳 Excel / ICS 上传）
// 声明长度超限的请求直接拒绝；未声明长度的请求在读取时由 MaxBytesReader 截断，
// 由 handler 在绑定失败时识别 *http.MaxBytesError
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			c.Abort()
			return
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}
