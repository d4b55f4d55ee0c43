package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Account         AccountRepository
	ExternalVisitor ExternalVisitorRepository
	Event           EventRepository
	Attendance      AttendanceRepository
	AttendanceStats AttendanceStatsRepository
	SystemConfig    SystemConfigRepository

	db *gorm.DB
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Account:         NewAccountRepo(db),
		ExternalVisitor: NewExternalVisitorRepo(db),
		Event:           NewEventRepo(db),
		Attendance:      NewAttendanceRepo(db),
		AttendanceStats: NewAttendanceStatsRepo(db),
		SystemConfig:    NewSystemConfigRepo(db),
		db:              db,
	}
}

// WithTx 在单个数据库事务中执行 fn，fn 内使用绑定事务连接的 Repository
// 未绑定数据库（单元测试手工组装的聚合）时直接以自身调用 fn
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
