package dto

// ── 认证模块 DTO ──

// LoginRequest 登录请求
type LoginRequest struct {
	AccountNumber string `json:"account_number" binding:"required,len=7,numeric"`
	Password      string `json:"password"       binding:"required"`
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest 登出请求（可选携带 Refresh Token 一并作废）
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}
