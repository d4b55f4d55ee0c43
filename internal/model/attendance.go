package model

import "time"

// 签到方式
const (
	MethodManual      = "manual"
	MethodScannedCode = "scanned_code"
	MethodExternal    = "external"
)

// AttendanceRecord 签到记录表 — 对应 attendance_records
// StudentID 与 ExternalVisitorID 有且仅有一个非空
type AttendanceRecord struct {
	AttendanceID       string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"attendance_id"`
	StudentID          *string   `gorm:"type:uuid;index"                                json:"student_id,omitempty"`
	ExternalVisitorID  *string   `gorm:"type:uuid;index"                                json:"external_visitor_id,omitempty"`
	EventID            string    `gorm:"type:uuid;not null;index"                       json:"event_id"`
	Timestamp          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;<-:create"   json:"timestamp"` // 仅创建时写入
	RegisteredBy       string    `gorm:"type:uuid;not null"                             json:"registered_by"`
	RegistrationMethod string    `gorm:"type:varchar(15);not null;default:'manual'"     json:"registration_method"`
	Notes              string    `gorm:"type:text"                                      json:"notes,omitempty"`
	IsValid            bool      `gorm:"not null;default:true"                          json:"is_valid"`

	// 关联
	Student         *Account         `gorm:"foreignKey:StudentID;references:AccountID"         json:"student,omitempty"`
	ExternalVisitor *ExternalVisitor `gorm:"foreignKey:ExternalVisitorID;references:VisitorID" json:"external_visitor,omitempty"`
	Event           *Event           `gorm:"foreignKey:EventID;references:EventID"             json:"event,omitempty"`
	Registrar       *Account         `gorm:"foreignKey:RegisteredBy;references:AccountID"      json:"registrar,omitempty"`
}

// TableName 指定表名
func (AttendanceRecord) TableName() string { return "attendance_records" }

// AttendeeName 签到人姓名（需预加载关联）
func (r *AttendanceRecord) AttendeeName() string {
	switch {
	case r.Student != nil:
		return r.Student.Name
	case r.ExternalVisitor != nil:
		return r.ExternalVisitor.Name
	default:
		return "未知"
	}
}

// AttendanceStats 学生出勤统计表 — 对应 attendance_stats（可由签到记录完全重算）
type AttendanceStats struct {
	StudentID            string    `gorm:"type:uuid;primaryKey"               json:"student_id"`
	TotalEvents          int       `gorm:"not null;default:0"                 json:"total_events"`
	AttendedEvents       int       `gorm:"not null;default:0"                 json:"attended_events"`
	AttendancePercentage float64   `gorm:"not null;default:0"                 json:"attendance_percentage"`
	LastUpdated          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"last_updated"`

	// 关联
	Student *Account `gorm:"foreignKey:StudentID;references:AccountID" json:"student,omitempty"`
}

// TableName 指定表名
func (AttendanceStats) TableName() string { return "attendance_stats" }
