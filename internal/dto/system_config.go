package dto

// ── 系统配置模块 DTO ──

// SystemConfigRequest 创建 / 更新系统配置请求
type SystemConfigRequest struct {
	MinAttendancePercentage *float64 `json:"min_attendance_percentage" binding:"required,min=0,max=100"`
}

// SystemConfigResponse 系统配置响应
type SystemConfigResponse struct {
	MinAttendancePercentage float64 `json:"min_attendance_percentage"`
	UpdatedAt               string  `json:"updated_at"`
	UpdatedBy               string  `json:"updated_by,omitempty"`
}
