package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/val20-11/mac-attendance/config"
	"github.com/val20-11/mac-attendance/internal/dto"
	"github.com/val20-11/mac-attendance/internal/model"
	"github.com/val20-11/mac-attendance/pkg/jwt"
)

// fakeBlacklist 内存版 Token 黑名单
type fakeBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	failing bool
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{revoked: make(map[string]time.Duration)}
}

func (f *fakeBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	if f.failing {
		return errors.New("redis unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = ttl
	return nil
}

func (f *fakeBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	if f.failing {
		return false, errors.New("redis unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[jti]
	return ok, nil
}

func setupTestAuthService(t *testing.T) (AuthService, *jwt.Manager, *fakeBlacklist) {
	t.Helper()
	repo, mocks := newMockRepository()

	hash, err := bcrypt.GenerateFromPassword([]byte("Secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("生成密码哈希失败: %v", err)
	}
	acc := mocks.accounts.add("asst-1", "7654321", "Luis", model.RoleAssistant)
	acc.PasswordHash = string(hash)

	mgr := jwt.NewManager(&config.AuthConfig{
		JWTSecret:       "test-secret-0123456789",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	bl := newFakeBlacklist()
	return NewAuthService(repo, mgr, bl, zap.NewNop()), mgr, bl
}

func TestAuthService_Login(t *testing.T) {
	svc, mgr, _ := setupTestAuthService(t)

	resp, err := svc.Login(context.Background(), &dto.LoginRequest{AccountNumber: "7654321", Password: "Secret123"})
	if err != nil {
		t.Fatalf("Login 应成功: %v", err)
	}
	if resp.Account.Role != model.RoleAssistant {
		t.Errorf("期望角色 assistant，实际 %s", resp.Account.Role)
	}
	if resp.ExpiresIn != 3600 {
		t.Errorf("期望 ExpiresIn=3600，实际 %d", resp.ExpiresIn)
	}

	claims, err := mgr.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("AccessToken 应可解析: %v", err)
	}
	if claims.AccountID != "asst-1" || claims.TokenType != "access" {
		t.Errorf("AccessToken 声明不符: %+v", claims)
	}
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	svc, _, _ := setupTestAuthService(t)

	tests := []struct {
		name string
		req  *dto.LoginRequest
	}{
		{"密码错误", &dto.LoginRequest{AccountNumber: "7654321", Password: "wrong-pass"}},
		{"账号不存在", &dto.LoginRequest{AccountNumber: "0000000", Password: "Secret123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("期望 ErrInvalidCredentials，实际: %v", err)
			}
		})
	}
}

func TestAuthService_RefreshToken_Rotates(t *testing.T) {
	svc, _, bl := setupTestAuthService(t)
	ctx := context.Background()

	login, err := svc.Login(ctx, &dto.LoginRequest{AccountNumber: "7654321", Password: "Secret123"})
	if err != nil {
		t.Fatalf("Login 应成功: %v", err)
	}

	refreshed, err := svc.RefreshToken(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken 应成功: %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Error("应签发新的 RefreshToken")
	}
	if len(bl.revoked) != 1 {
		t.Errorf("旧 RefreshToken 应加入黑名单，实际 %d 个", len(bl.revoked))
	}

	// 旧 Token 不能再次使用
	if _, err := svc.RefreshToken(ctx, login.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("期望 ErrInvalidRefreshToken，实际: %v", err)
	}
}

func TestAuthService_RefreshToken_RejectsAccessToken(t *testing.T) {
	svc, _, _ := setupTestAuthService(t)
	ctx := context.Background()

	login, _ := svc.Login(ctx, &dto.LoginRequest{AccountNumber: "7654321", Password: "Secret123"})
	if _, err := svc.RefreshToken(ctx, login.AccessToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("AccessToken 不能用于刷新，实际: %v", err)
	}
	if _, err := svc.RefreshToken(ctx, "not-a-token"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("非法 Token 期望 ErrInvalidRefreshToken，实际: %v", err)
	}
}

func TestAuthService_RefreshToken_BlacklistUnavailable(t *testing.T) {
	svc, _, bl := setupTestAuthService(t)
	ctx := context.Background()

	login, _ := svc.Login(ctx, &dto.LoginRequest{AccountNumber: "7654321", Password: "Secret123"})
	bl.failing = true

	// 黑名单不可用时降级放行
	if _, err := svc.RefreshToken(ctx, login.RefreshToken); err != nil {
		t.Errorf("黑名单不可用时刷新应成功: %v", err)
	}
}

func TestAuthService_Logout(t *testing.T) {
	svc, mgr, bl := setupTestAuthService(t)
	ctx := context.Background()

	login, _ := svc.Login(ctx, &dto.LoginRequest{AccountNumber: "7654321", Password: "Secret123"})
	claims, err := mgr.ParseToken(login.AccessToken)
	if err != nil {
		t.Fatalf("解析 AccessToken 失败: %v", err)
	}

	if err := svc.Logout(ctx, claims, login.RefreshToken); err != nil {
		t.Fatalf("Logout 应成功: %v", err)
	}
	if len(bl.revoked) != 2 {
		t.Errorf("AccessToken 与 RefreshToken 都应作废，实际 %d 个", len(bl.revoked))
	}
	if ttl := bl.revoked[claims.ID]; ttl <= 0 || ttl > time.Hour {
		t.Errorf("黑名单 TTL 应为剩余有效期，实际 %v", ttl)
	}

	if err := svc.Logout(ctx, nil, ""); err != nil {
		t.Errorf("无声明时 Logout 应直接返回: %v", err)
	}
}

func TestAuthService_GetCurrentUser(t *testing.T) {
	svc, _, _ := setupTestAuthService(t)

	resp, err := svc.GetCurrentUser(context.Background(), "asst-1")
	if err != nil {
		t.Fatalf("GetCurrentUser 应成功: %v", err)
	}
	if resp.AccountNumber != "7654321" {
		t.Errorf("期望学号 7654321，实际 %s", resp.AccountNumber)
	}

	if _, err := svc.GetCurrentUser(context.Background(), "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("期望 ErrAccountNotFound，实际: %v", err)
	}
}
