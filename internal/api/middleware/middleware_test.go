package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/val20-11/mac-attendance/config"
	"github.com/val20-11/mac-attendance/pkg/jwt"
	"github.com/val20-11/mac-attendance/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ── 测试替身 ──

type fakeBlacklist struct {
	revoked map[string]bool
	err     error
}

func (f *fakeBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], f.err
}

type fakeLimiter struct {
	counts map[string]int
	err    error
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.counts[key]++
	return f.counts[key] <= limit, nil
}

func newTestJWTManager() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:       "test-secret-0123456789",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ── JWTAuth ──

func TestJWTAuth(t *testing.T) {
	mgr := newTestJWTManager()
	sub := jwt.Subject{AccountID: "acc-1", AccountNumber: "7654321", Role: "assistant", IsSuperuser: true}
	access, _ := mgr.GenerateAccessToken(sub)
	refresh, _ := mgr.GenerateRefreshToken(sub)
	claims, _ := mgr.ParseToken(access)

	bl := &fakeBlacklist{revoked: map[string]bool{}}
	r := gin.New()
	r.GET("/me", JWTAuth(mgr, bl, zap.NewNop()), func(c *gin.Context) {
		if c.GetString(CtxUserID) != "acc-1" || c.GetString(CtxRole) != "assistant" || !c.GetBool(CtxIsSuperuser) {
			c.Status(http.StatusTeapot)
			return
		}
		c.Status(http.StatusOK)
	})

	if w := serve(r, "GET", "/me", access); w.Code != http.StatusOK {
		t.Errorf("有效 Token 期望 200，实际 %d", w.Code)
	}
	if w := serve(r, "GET", "/me", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("缺少 Token 期望 401，实际 %d", w.Code)
	}
	if w := serve(r, "GET", "/me", refresh); w.Code != http.StatusUnauthorized {
		t.Errorf("Refresh Token 不能访问接口，期望 401，实际 %d", w.Code)
	}

	bl.revoked[claims.ID] = true
	if w := serve(r, "GET", "/me", access); w.Code != http.StatusUnauthorized {
		t.Errorf("已登出 Token 期望 401，实际 %d", w.Code)
	}

	// 黑名单不可用时降级放行
	bl.err = errors.New("redis down")
	bl.revoked = map[string]bool{}
	if w := serve(r, "GET", "/me", access); w.Code != http.StatusOK {
		t.Errorf("黑名单不可用时期望 200，实际 %d", w.Code)
	}
}

func TestRoleAndSuperuserAuth(t *testing.T) {
	build := func(role string, superuser bool, mw gin.HandlerFunc) *gin.Engine {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) {
			c.Set(CtxRole, role)
			c.Set(CtxIsSuperuser, superuser)
			c.Next()
		}, mw, func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	tests := []struct {
		name string
		r    *gin.Engine
		want int
	}{
		{"助理访问助理接口", build("assistant", false, RoleAuth("assistant")), http.StatusOK},
		{"学生访问助理接口", build("student", false, RoleAuth("assistant")), http.StatusForbidden},
		{"超级管理员", build("assistant", true, SuperuserAuth()), http.StatusOK},
		{"普通助理访问超级管理员接口", build("assistant", false, SuperuserAuth()), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := serve(tt.r, "GET", "/x", ""); w.Code != tt.want {
				t.Errorf("期望 %d，实际 %d", tt.want, w.Code)
			}
		})
	}
}

// ── RateLimit ──

func TestRateLimit(t *testing.T) {
	limiter := &fakeLimiter{counts: map[string]int{}}
	r := gin.New()
	r.POST("/login", RateLimit(limiter, "login", 2, time.Minute, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		if w := serve(r, "POST", "/login", ""); w.Code != http.StatusOK {
			t.Fatalf("第 %d 次请求期望 200，实际 %d", i+1, w.Code)
		}
	}
	if w := serve(r, "POST", "/login", ""); w.Code != http.StatusTooManyRequests {
		t.Errorf("超过限额期望 429，实际 %d", w.Code)
	}

	limiter.err = errors.New("redis down")
	if w := serve(r, "POST", "/login", ""); w.Code != http.StatusOK {
		t.Errorf("限流存储不可用时期望降级放行，实际 %d", w.Code)
	}
}

func TestRateLimit_KeyedByAccountWhenAuthenticated(t *testing.T) {
	limiter := &fakeLimiter{counts: map[string]int{}}
	r := gin.New()
	// 模拟 JWTAuth 注入账号，同一 IP 下的两个助理各自计数
	r.POST("/attendance", func(c *gin.Context) {
		c.Set(CtxUserID, c.GetHeader("X-Test-User"))
		c.Next()
	}, RateLimit(limiter, "attendance", 1, time.Minute, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func(user string) int {
		req := httptest.NewRequest("POST", "/attendance", nil)
		req.Header.Set("X-Test-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("asst-1"); code != http.StatusOK {
		t.Fatalf("asst-1 首次请求期望 200，实际 %d", code)
	}
	if code := send("asst-2"); code != http.StatusOK {
		t.Errorf("同一 IP 的另一账号应有独立额度，实际 %d", code)
	}
	if code := send("asst-1"); code != http.StatusTooManyRequests {
		t.Errorf("asst-1 超过限额期望 429，实际 %d", code)
	}
	if _, ok := limiter.counts["rate_limit:attendance:user:asst-1"]; !ok {
		t.Errorf("期望按账号生成限流键，实际 %v", limiter.counts)
	}
}

func TestRateLimit_AnonymousKeyedByIP(t *testing.T) {
	limiter := &fakeLimiter{counts: map[string]int{}}
	r := gin.New()
	r.POST("/login", RateLimit(limiter, "login", 5, time.Minute, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	serve(r, "POST", "/login", "")
	if len(limiter.counts) != 1 {
		t.Fatalf("期望生成 1 个限流键，实际 %v", limiter.counts)
	}
	for key := range limiter.counts {
		if !strings.HasPrefix(key, "rate_limit:login:ip:") {
			t.Errorf("匿名请求应按 IP 计数，实际键 %s", key)
		}
	}
}

func TestRateLimit_NilLimiter(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit(nil, "x", 1, time.Minute, zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		if w := serve(r, "GET", "/x", ""); w.Code != http.StatusOK {
			t.Fatalf("未配置限流时应全部放行，实际 %d", w.Code)
		}
	}
}

// ── 其他中间件 ──

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CtxRequestID)) })

	w := serve(r, "GET", "/x", "")
	if w.Header().Get("X-Request-ID") == "" || w.Body.String() != w.Header().Get("X-Request-ID") {
		t.Error("应生成并回写 X-Request-ID")
	}

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("a", 100))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if len(w.Header().Get("X-Request-ID")) > requestIDMaxLen {
		t.Error("超长的外部 Request-ID 应被替换")
	}
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(16))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest("POST", "/x", strings.NewReader(strings.Repeat("x", 64)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("期望 413，实际 %d", w.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173/"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("预检请求期望 204，实际 %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Error("允许的来源应回写 Access-Control-Allow-Origin")
	}
}

func TestMetrics(t *testing.T) {
	m := metrics.Nop()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/events/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, "GET", "/events/abc", "")
	serve(r, "GET", "/events/def", "")

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/events/:id", "200")); got != 2 {
		t.Errorf("应按路由模板聚合，期望 2，实际 %v", got)
	}
}
