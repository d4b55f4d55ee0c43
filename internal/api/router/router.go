package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/val20-11/mac-attendance/config"
	"github.com/val20-11/mac-attendance/internal/api/handler"
	"github.com/val20-11/mac-attendance/internal/api/middleware"
	"github.com/val20-11/mac-attendance/internal/model"
	"github.com/val20-11/mac-attendance/pkg/jwt"
	"github.com/val20-11/mac-attendance/pkg/metrics"
	"github.com/val20-11/mac-attendance/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时 Token 黑名单与限流降级为放行
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	// 避免把 nil *redis.Client 包装成非 nil 接口
	var (
		blacklist middleware.BlacklistChecker
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist = rdb
		limiter = rdb
	}

	rl := cfg.RateLimit
	perMinute := func(name string, limit int) gin.HandlerFunc {
		return middleware.RateLimit(limiter, name, limit, time.Minute, logger)
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	assistant := middleware.RoleAuth(model.RoleAssistant)
	superuser := middleware.SuperuserAuth()

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 公开接口
		auth := v1.Group("/auth")
		{
			auth.POST("/login", perMinute("login", rl.Login), h.Auth.Login)
			auth.POST("/refresh", perMinute("refresh", rl.TokenRefresh), h.Auth.RefreshToken)
		}

		v1.GET("/events", h.Event.ListEvents)
		v1.GET("/events/:id", h.Event.GetEvent)
		v1.POST("/external/register",
			middleware.RateLimit(limiter, "visitor_register", rl.VisitorRegister, time.Hour, logger),
			h.Visitor.SelfRegister)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, blacklist, logger))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 签到与出勤统计
			attendance := authorized.Group("/attendance")
			{
				attendance.POST("", assistant, perMinute("attendance", rl.RegisterAttend), h.Attendance.Register)
				attendance.GET("/stats",
					middleware.RoleAuth(model.RoleStudent, model.RoleAssistant),
					perMinute("stats", rl.StatsQuery),
					h.Attendance.GetStudentStats)
				attendance.GET("/recent", assistant, perMinute("recent", rl.RecentAttendance), h.Attendance.Recent)

				// 超级管理员修正通道
				attendance.GET("", superuser, h.Attendance.List)
				attendance.PUT("/:id", superuser, h.Attendance.Update)
				attendance.DELETE("/:id", superuser, h.Attendance.Invalidate)
				attendance.POST("/stats/refresh", superuser, h.Attendance.RefreshAllStats)
			}

			// 活动管理
			events := authorized.Group("/events")
			events.Use(assistant)
			{
				events.POST("", h.Event.CreateEvent)
				events.POST("/import", h.Event.ImportICS)
				events.PUT("/:id", h.Event.UpdateEvent)
				events.DELETE("/:id", h.Event.DeactivateEvent)
			}

			// 校外访客
			external := authorized.Group("/external")
			external.Use(assistant)
			{
				external.POST("", h.Visitor.Create)
				external.GET("", h.Visitor.List)
				external.GET("/search", h.Visitor.Search)
				external.POST("/:id/approve", perMinute("visitor_approve", rl.VisitorApprove), h.Visitor.Process)
			}

			// 系统配置
			systemConfig := authorized.Group("/system-config")
			{
				systemConfig.GET("", h.SystemConfig.GetConfig)
				systemConfig.PUT("", assistant, h.SystemConfig.UpdateConfig)
				systemConfig.POST("", superuser, h.SystemConfig.CreateConfig)
			}

			// 账号管理
			accounts := authorized.Group("/accounts")
			{
				accounts.GET("", assistant, h.Account.ListAccounts)
				accounts.POST("", superuser, h.Account.CreateAccount)
				accounts.POST("/import", superuser, h.Account.ImportAccounts)
				accounts.GET("/:number", assistant, h.Account.GetAccount)
				// 学生可获取本人二维码，Handler 内校验学号
				accounts.GET("/:number/qrcode", h.Account.QRCode)
			}
		}
	}

	return r
}
