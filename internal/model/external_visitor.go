package model

import "time"

// 校外访客审批状态
const (
	VisitorStatusPending  = "pending"
	VisitorStatusApproved = "approved"
	VisitorStatusRejected = "rejected"
)

// ExternalVisitor 校外访客表 — 对应 external_visitors
type ExternalVisitor struct {
	VisitorID       string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"visitor_id"`
	AccountNumber   string     `gorm:"type:varchar(20);not null;uniqueIndex"          json:"account_number"` // 自助登记为 EXT + 7 位数字
	Name            string     `gorm:"type:varchar(200);not null"                     json:"name"`
	Email           string     `gorm:"type:varchar(255)"                              json:"email,omitempty"`
	Phone           string     `gorm:"type:varchar(30)"                               json:"phone,omitempty"`
	Institution     string     `gorm:"type:varchar(200)"                              json:"institution,omitempty"`
	Position        string     `gorm:"type:varchar(100)"                              json:"position,omitempty"`
	Reason          string     `gorm:"type:text"                                      json:"reason,omitempty"`
	Status          string     `gorm:"type:varchar(10);not null;default:'pending'"    json:"status"` // pending | approved | rejected
	ApprovedBy      *string    `gorm:"type:uuid"                                      json:"approved_by,omitempty"`
	RejectionReason string     `gorm:"type:text"                                      json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`

	// 关联
	Approver *Account `gorm:"foreignKey:ApprovedBy;references:AccountID" json:"approver,omitempty"`
}

// TableName 指定表名
func (ExternalVisitor) TableName() string { return "external_visitors" }

// IsApproved 是否已审批通过
func (v *ExternalVisitor) IsApproved() bool { return v.Status == VisitorStatusApproved }
