package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/val20-11/mac-attendance/internal/model"
)

// AttendanceStatsRepository 出勤统计数据访问接口
type AttendanceStatsRepository interface {
	Get(ctx context.Context, studentID string) (*model.AttendanceStats, error)
	// Upsert 按 student_id 写入或覆盖统计行
	Upsert(ctx context.Context, stats *model.AttendanceStats) error
}

type attendanceStatsRepo struct {
	db *gorm.DB
}

// NewAttendanceStatsRepo 创建 AttendanceStatsRepository 实例
func NewAttendanceStatsRepo(db *gorm.DB) AttendanceStatsRepository {
	return &attendanceStatsRepo{db: db}
}

func (r *attendanceStatsRepo) Get(ctx context.Context, studentID string) (*model.AttendanceStats, error) {
	var stats model.AttendanceStats
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		First(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *attendanceStatsRepo) Upsert(ctx context.Context, stats *model.AttendanceStats) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"total_events", "attended_events", "attendance_percentage", "last_updated"}),
		}).
		Create(stats).Error
}
