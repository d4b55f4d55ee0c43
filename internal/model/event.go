package model

import (
	"fmt"
	"time"
)

// 活动类型
const (
	EventTypeConference = "conference"
	EventTypeWorkshop   = "workshop"
	EventTypePanel      = "panel"
	EventTypeSeminar    = "seminar"
)

// clockLayout 活动时间格式
const clockLayout = "15:04"

// 活动形式
const (
	ModalityInPerson = "in_person"
	ModalityOnline   = "online"
	ModalityHybrid   = "hybrid"
)

// Event 活动/讲座表 — 对应 events
type Event struct {
	EventID              string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"event_id"`
	Title                string    `gorm:"type:varchar(200);not null"                     json:"title"`
	Description          string    `gorm:"type:text;not null"                             json:"description"`
	EventType            string    `gorm:"type:varchar(20);not null;default:'conference'" json:"event_type"`
	Modality             string    `gorm:"type:varchar(15);not null;default:'in_person'"  json:"modality"`
	Speaker              string    `gorm:"type:varchar(200);not null"                     json:"speaker"`
	EventDate            time.Time `gorm:"type:date;not null;index"                       json:"event_date"`
	StartTime            string    `gorm:"type:varchar(5);not null"                       json:"start_time"` // HH:MM
	EndTime              string    `gorm:"type:varchar(5);not null"                       json:"end_time"`   // HH:MM
	Location             string    `gorm:"type:varchar(200);not null"                     json:"location"`
	MaxCapacity          int       `gorm:"not null;default:100"                           json:"max_capacity"`
	IsActive             bool      `gorm:"not null;default:true;index"                    json:"is_active"`
	RequiresRegistration bool      `gorm:"not null;default:false"                         json:"requires_registration"`
	MeetingLink          *string   `gorm:"type:varchar(500)"                              json:"meeting_link,omitempty"`
	MeetingID            *string   `gorm:"type:varchar(50)"                               json:"meeting_id,omitempty"`
	CreatedBy            string    `gorm:"type:uuid;not null"                             json:"created_by"`
	CreatedAt            time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt            time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`

	// 关联
	Creator *Account `gorm:"foreignKey:CreatedBy;references:AccountID" json:"creator,omitempty"`
}

// TableName 指定表名
func (Event) TableName() string { return "events" }

// IsOnline 线上或混合形式
func (e *Event) IsOnline() bool {
	return e.Modality == ModalityOnline || e.Modality == ModalityHybrid
}

// StartAt 活动开始时刻（loc 时区）
func (e *Event) StartAt(loc *time.Location) (time.Time, error) {
	return combineDateClock(e.EventDate, e.StartTime, loc)
}

// EndAt 活动结束时刻（loc 时区）
func (e *Event) EndAt(loc *time.Location) (time.Time, error) {
	return combineDateClock(e.EventDate, e.EndTime, loc)
}

// Overlaps 判断两个活动是否同日且时间段相交（端点相接不算重叠）
func (e *Event) Overlaps(other *Event) bool {
	if !SameDate(e.EventDate, other.EventDate) {
		return false
	}
	es, ee := ClockMinutes(e.StartTime), ClockMinutes(e.EndTime)
	bs, be := ClockMinutes(other.StartTime), ClockMinutes(other.EndTime)
	// 无法解析的时间按冲突处理
	if es < 0 || ee < 0 || bs < 0 || be < 0 {
		return true
	}
	return es < be && bs < ee
}

// ClockMinutes 将 HH:MM（允许单位数小时）换算为当天分钟数，无法解析时返回 -1
func ClockMinutes(clock string) int {
	t, err := time.Parse(clockLayout, clock)
	if err != nil {
		return -1
	}
	return t.Hour()*60 + t.Minute()
}

// NormalizeClock 将 "9:00" 等写法规范为两位小时的 "09:00"
func NormalizeClock(clock string) (string, error) {
	t, err := time.Parse(clockLayout, clock)
	if err != nil {
		return "", fmt.Errorf("无效的时间格式 %q: %w", clock, err)
	}
	return t.Format(clockLayout), nil
}

// SameDate 比较两个日期的年月日
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func combineDateClock(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(clockLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("无效的时间格式 %q: %w", clock, err)
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc), nil
}
