package dto

// ── 活动模块 DTO ──

// CreateEventRequest 创建活动请求
type CreateEventRequest struct {
	Title                string  `json:"title"                 binding:"required,min=2,max=200"`
	Description          string  `json:"description"           binding:"required"`
	EventType            string  `json:"event_type"            binding:"omitempty,oneof=conference workshop panel seminar"`
	Modality             string  `json:"modality"              binding:"omitempty,oneof=in_person online hybrid"`
	Speaker              string  `json:"speaker"               binding:"required,max=200"`
	EventDate            string  `json:"event_date"            binding:"required,datetime=2006-01-02"`
	StartTime            string  `json:"start_time"            binding:"required,datetime=15:04"`
	EndTime              string  `json:"end_time"              binding:"required,datetime=15:04"`
	Location             string  `json:"location"              binding:"required,max=200"`
	MaxCapacity          int     `json:"max_capacity"          binding:"omitempty,min=1"`
	RequiresRegistration bool    `json:"requires_registration"`
	MeetingLink          *string `json:"meeting_link"          binding:"omitempty,url,max=500"`
	MeetingID            *string `json:"meeting_id"            binding:"omitempty,max=50"`
}

// UpdateEventRequest 更新活动请求
type UpdateEventRequest struct {
	Title                *string `json:"title"                 binding:"omitempty,min=2,max=200"`
	Description          *string `json:"description"`
	EventType            *string `json:"event_type"            binding:"omitempty,oneof=conference workshop panel seminar"`
	Modality             *string `json:"modality"              binding:"omitempty,oneof=in_person online hybrid"`
	Speaker              *string `json:"speaker"               binding:"omitempty,max=200"`
	EventDate            *string `json:"event_date"            binding:"omitempty,datetime=2006-01-02"`
	StartTime            *string `json:"start_time"            binding:"omitempty,datetime=15:04"`
	EndTime              *string `json:"end_time"              binding:"omitempty,datetime=15:04"`
	Location             *string `json:"location"              binding:"omitempty,max=200"`
	MaxCapacity          *int    `json:"max_capacity"          binding:"omitempty,min=1"`
	IsActive             *bool   `json:"is_active"`
	RequiresRegistration *bool   `json:"requires_registration"`
	MeetingLink          *string `json:"meeting_link"          binding:"omitempty,url,max=500"`
	MeetingID            *string `json:"meeting_id"            binding:"omitempty,max=50"`
}

// EventListRequest 活动列表查询参数
type EventListRequest struct {
	PaginationRequest
	IncludeInactive bool   `form:"include_inactive"`
	DateFrom        string `form:"date_from" binding:"omitempty,datetime=2006-01-02"`
	DateTo          string `form:"date_to"   binding:"omitempty,datetime=2006-01-02"`
}

// EventResponse 活动响应
type EventResponse struct {
	ID                   string  `json:"id"`
	Title                string  `json:"title"`
	Description          string  `json:"description"`
	EventType            string  `json:"event_type"`
	Modality             string  `json:"modality"`
	Speaker              string  `json:"speaker"`
	EventDate            string  `json:"event_date"`
	StartTime            string  `json:"start_time"`
	EndTime              string  `json:"end_time"`
	Location             string  `json:"location"`
	MaxCapacity          int     `json:"max_capacity"`
	IsActive             bool    `json:"is_active"`
	RequiresRegistration bool    `json:"requires_registration"`
	MeetingLink          *string `json:"meeting_link,omitempty"`
	MeetingID            *string `json:"meeting_id,omitempty"`
	CreatedBy            string  `json:"created_by"`
}

// ImportEventResponse ICS 导入响应
type ImportEventResponse struct {
	Total   int                `json:"total"`
	Success int                `json:"success"`
	Failed  int                `json:"failed"`
	Errors  []ImportEventError `json:"errors,omitempty"`
}

// ImportEventError ICS 导入错误详情
type ImportEventError struct {
	UID    string `json:"uid"`
	Reason string `json:"reason"`
}
