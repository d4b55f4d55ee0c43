package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/val20-11/mac-attendance/pkg/response"
)

// RateLimiter 滑动窗口限流存储（Redis 实现）
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 基于 Redis 滑动窗口的速率限制中间件
// name: 限流规则名；已认证请求按账号计数，匿名请求按客户端 IP 计数
// limit: 窗口内允许的最大请求数，<= 0 表示不限流
// window: 滑动窗口时长
// limiter 为 nil 时降级放行（与 JWTAuth 策略一致）
func RateLimit(limiter RateLimiter, name string, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		key := rateLimitKey(c, name)
		allowed, err := limiter.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			// Redis 出错时降级放行
			logger.Warn("限流检查失败，降级放行", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			response.TooManyRequests(c, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}

// rateLimitKey 需放在 JWTAuth 之后才能按账号计数
func rateLimitKey(c *gin.Context, name string) string {
	if userID := c.GetString(CtxUserID); userID != "" {
		return fmt.Sprintf("rate_limit:%s:user:%s", name, userID)
	}
	return fmt.Sprintf("rate_limit:%s:ip:%s", name, c.ClientIP())
}
