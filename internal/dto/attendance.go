package dto

// ── 签到模块 DTO ──

// RegisterAttendanceRequest 签到请求
type RegisterAttendanceRequest struct {
	EventID            string `json:"event_id"            binding:"required,uuid"`
	AccountNumber      string `json:"account_number"      binding:"required,max=20"`
	RegistrationMethod string `json:"registration_method" binding:"omitempty,oneof=manual scanned_code"`
	Notes              string `json:"notes"               binding:"omitempty,max=500"`
}

// RegisterAttendanceResponse 签到成功响应
type RegisterAttendanceResponse struct {
	AttendanceID  string `json:"attendance_id"`
	AttendeeName  string `json:"attendee_name"`
	EventTitle    string `json:"event_title"`
	RegistrarName string `json:"registrar_name"`
	Message       string `json:"message"`
}

// UpdateAttendanceRequest 管理员修改签到记录请求
type UpdateAttendanceRequest struct {
	EventID *string `json:"event_id" binding:"omitempty,uuid"`
	Notes   *string `json:"notes"    binding:"omitempty,max=500"`
	IsValid *bool   `json:"is_valid"`
}

// AttendanceListRequest 签到记录列表查询参数
type AttendanceListRequest struct {
	PaginationRequest
	EventID        string `form:"event_id"        binding:"omitempty,uuid"`
	AccountNumber  string `form:"account_number"  binding:"omitempty,len=7,numeric"`
	IncludeInvalid bool   `form:"include_invalid"`
}

// AttendanceRecordResponse 签到记录响应
type AttendanceRecordResponse struct {
	ID                 string `json:"id"`
	AttendeeName       string `json:"attendee_name"`
	AttendeeType       string `json:"attendee_type"` // student | external
	EventID            string `json:"event_id"`
	EventTitle         string `json:"event_title"`
	Timestamp          string `json:"timestamp"`
	RegisteredBy       string `json:"registered_by"`
	RegistrationMethod string `json:"registration_method"`
	Notes              string `json:"notes,omitempty"`
	IsValid            bool   `json:"is_valid"`
}

// RecentAttendanceResponse 最近签到条目
type RecentAttendanceResponse struct {
	AttendeeName string `json:"attendee_name"`
	EventTitle   string `json:"event_title"`
	Time         string `json:"time"` // HH:MM
}

// StudentStatsRequest 出勤统计查询参数
type StudentStatsRequest struct {
	AccountNumber string `form:"account_number" binding:"omitempty,len=7,numeric"`
}

// StudentStatsResponse 学生出勤统计响应
type StudentStatsResponse struct {
	AccountNumber        string  `json:"account_number"`
	StudentName          string  `json:"student_name"`
	TotalEvents          int     `json:"total_events"`
	AttendedEvents       int     `json:"attended_events"`
	AttendancePercentage float64 `json:"attendance_percentage"`
	MinimumPercentage    float64 `json:"minimum_percentage"`
	MeetsMinimum         bool    `json:"meets_minimum"`
	LastUpdated          string  `json:"last_updated"`
}

// RefreshAllStatsResponse 全量重算统计响应
type RefreshAllStatsResponse struct {
	Refreshed int `json:"refreshed"`
}
