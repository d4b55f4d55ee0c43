package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/val20-11/mac-attendance/pkg/metrics"
)

// Metrics HTTP 请求计数与耗时中间件，路由标签使用注册时的路径模板
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
