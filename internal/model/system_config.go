package model

import "time"

// SystemConfig 系统配置表 — 对应 system_config（单行强类型）
type SystemConfig struct {
	Singleton               bool      `gorm:"primaryKey;default:true"            json:"-"`
	MinAttendancePercentage float64   `gorm:"not null;default:80"                json:"min_attendance_percentage"`
	UpdatedAt               time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	UpdatedBy               *string   `gorm:"type:uuid"                          json:"updated_by,omitempty"`
}

// TableName 指定表名
func (SystemConfig) TableName() string { return "system_config" }
