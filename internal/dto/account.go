package dto

// ── 账号模块 DTO ──

// CreateAccountRequest 创建账号请求
type CreateAccountRequest struct {
	AccountNumber string `json:"account_number" binding:"required,len=7,numeric"`
	Name          string `json:"name"           binding:"required,min=2,max=200"`
	Password      string `json:"password"       binding:"required,min=8,max=64"`
	Role          string `json:"role"           binding:"required,oneof=student assistant"`
	Career        string `json:"career"         binding:"omitempty,max=100"`
	Semester      *int   `json:"semester"       binding:"omitempty,min=1,max=20"`
	IsSuperuser   bool   `json:"is_superuser"`
}

// AccountListRequest 账号列表查询参数
type AccountListRequest struct {
	PaginationRequest
	Role    string `form:"role"    binding:"omitempty,oneof=student assistant"`
	Keyword string `form:"keyword" binding:"omitempty,max=50"`
}

// ImportAccountResponse 批量导入账号响应
type ImportAccountResponse struct {
	Total   int                  `json:"total"`
	Success int                  `json:"success"`
	Failed  int                  `json:"failed"`
	Errors  []ImportAccountError `json:"errors,omitempty"`
}

// ImportAccountError 导入错误详情
type ImportAccountError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
