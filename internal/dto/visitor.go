package dto

// ── 校外访客模块 DTO ──

// VisitorRegisterRequest 访客自助登记 / 助理代为创建请求
type VisitorRegisterRequest struct {
	Name        string `json:"name"        binding:"required,min=2,max=200"`
	Email       string `json:"email"       binding:"required,email,max=255"`
	Phone       string `json:"phone"       binding:"omitempty,max=30"`
	Institution string `json:"institution" binding:"omitempty,max=200"`
	Position    string `json:"position"    binding:"omitempty,max=100"`
	Reason      string `json:"reason"      binding:"omitempty,max=1000"`
}

// ProcessVisitorRequest 访客审批请求
type ProcessVisitorRequest struct {
	Action string `json:"action" binding:"required,oneof=approve reject"`
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// VisitorListRequest 访客列表查询参数
type VisitorListRequest struct {
	PaginationRequest
	Status string `form:"status" binding:"omitempty,oneof=pending approved rejected"`
}

// VisitorSearchRequest 访客搜索参数
type VisitorSearchRequest struct {
	Keyword string `form:"q" binding:"required,min=1,max=50"`
}

// VisitorResponse 访客响应
type VisitorResponse struct {
	ID              string `json:"id"`
	AccountNumber   string `json:"account_number"`
	Name            string `json:"name"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Institution     string `json:"institution,omitempty"`
	Position        string `json:"position,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Status          string `json:"status"`
	ApprovedBy      string `json:"approved_by,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	CreatedAt       string `json:"created_at"`
	ProcessedAt     string `json:"processed_at,omitempty"`
}

// ProcessVisitorResponse 审批结果响应
type ProcessVisitorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
