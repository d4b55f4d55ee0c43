package model

// 账号角色
const (
	RoleStudent   = "student"
	RoleAssistant = "assistant"
)

// Account 账号表 — 对应 accounts
// 学生与助理共用一张表，以 role 区分
type Account struct {
	AccountID     string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"account_id"`
	AccountNumber string `gorm:"type:varchar(7);not null;uniqueIndex"           json:"account_number"` // 7 位数字
	Name          string `gorm:"type:varchar(200);not null"                     json:"name"`
	PasswordHash  string `gorm:"type:varchar(255);not null"                     json:"-"`
	Role          string `gorm:"type:varchar(10);not null"                      json:"role"` // student | assistant
	Career        string `gorm:"type:varchar(100)"                              json:"career,omitempty"`
	Semester      *int   `json:"semester,omitempty"`
	IsSuperuser   bool   `gorm:"not null;default:false"                         json:"is_superuser"`
	SoftDeleteModel
}

// TableName 指定表名
func (Account) TableName() string { return "accounts" }

// IsStudent 是否为学生
func (a *Account) IsStudent() bool { return a.Role == RoleStudent }

// IsAssistant 是否为助理
func (a *Account) IsAssistant() bool { return a.Role == RoleAssistant }
