package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/val20-11/mac-attendance/internal/model"
	pkgerrors "github.com/val20-11/mac-attendance/pkg/errors"
)

// Attendee 签到对象：学生或校外访客二选一
type Attendee struct {
	StudentID         *string
	ExternalVisitorID *string
}

// AttendanceListFilters 签到记录列表筛选条件
type AttendanceListFilters struct {
	EventID        string
	StudentID      string
	IncludeInvalid bool
}

// AttendanceRepository 签到记录数据访问接口
type AttendanceRepository interface {
	// Create 写入签到记录；命中 (attendee, event) 有效记录唯一索引时返回 ErrUniqueViolation
	Create(ctx context.Context, record *model.AttendanceRecord) error
	GetByID(ctx context.Context, id string) (*model.AttendanceRecord, error)
	Update(ctx context.Context, record *model.AttendanceRecord) error
	// ExistsValid 是否已存在该签到对象在该活动的有效记录，excludeID 非空时排除该记录
	ExistsValid(ctx context.Context, attendee Attendee, eventID, excludeID string) (bool, error)
	// ListValidByStudentOnDate 学生在指定日期启用活动中的有效签到（预加载 Event）
	ListValidByStudentOnDate(ctx context.Context, studentID string, date time.Time, excludeID string) ([]model.AttendanceRecord, error)
	// CountValidByStudent 学生在启用活动中的有效签到数，与分母口径一致，保证 attended ≤ total
	CountValidByStudent(ctx context.Context, studentID string) (int64, error)
	// ListRecent 按时间倒序返回有效签到，作废的记录不展示
	ListRecent(ctx context.Context, limit int) ([]model.AttendanceRecord, error)
	List(ctx context.Context, filters *AttendanceListFilters, offset, limit int) ([]model.AttendanceRecord, int64, error)
}

type attendanceRepo struct {
	db *gorm.DB
}

// NewAttendanceRepo 创建 AttendanceRepository 实例
func NewAttendanceRepo(db *gorm.DB) AttendanceRepository {
	return &attendanceRepo{db: db}
}

func (r *attendanceRepo) Create(ctx context.Context, record *model.AttendanceRecord) error {
	err := r.db.WithContext(ctx).Create(record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.ErrUniqueViolation
	}
	return err
}

func (r *attendanceRepo) GetByID(ctx context.Context, id string) (*model.AttendanceRecord, error) {
	var record model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("ExternalVisitor").
		Preload("Event").
		Preload("Registrar").
		Where("attendance_id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *attendanceRepo) Update(ctx context.Context, record *model.AttendanceRecord) error {
	err := r.db.WithContext(ctx).
		Model(&model.AttendanceRecord{}).
		Where("attendance_id = ?", record.AttendanceID).
		Updates(map[string]interface{}{
			"event_id": record.EventID,
			"notes":    record.Notes,
			"is_valid": record.IsValid,
		}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.ErrUniqueViolation
	}
	return err
}

func (r *attendanceRepo) ExistsValid(ctx context.Context, attendee Attendee, eventID, excludeID string) (bool, error) {
	var count int64
	db := r.db.WithContext(ctx).
		Model(&model.AttendanceRecord{}).
		Where("event_id = ? AND is_valid = ?", eventID, true)

	switch {
	case attendee.StudentID != nil:
		db = db.Where("student_id = ?", *attendee.StudentID)
	case attendee.ExternalVisitorID != nil:
		db = db.Where("external_visitor_id = ?", *attendee.ExternalVisitorID)
	default:
		return false, nil
	}
	if excludeID != "" {
		db = db.Where("attendance_id <> ?", excludeID)
	}

	err := db.Count(&count).Error
	return count > 0, err
}

func (r *attendanceRepo) ListValidByStudentOnDate(ctx context.Context, studentID string, date time.Time, excludeID string) ([]model.AttendanceRecord, error) {
	var records []model.AttendanceRecord
	db := r.db.WithContext(ctx).
		Joins("Event").
		Where("attendance_records.student_id = ? AND attendance_records.is_valid = ?", studentID, true).
		Where(`"Event".event_date = ? AND "Event".is_active = ?`, date.Format("2006-01-02"), true)
	if excludeID != "" {
		db = db.Where("attendance_records.attendance_id <> ?", excludeID)
	}
	err := db.Find(&records).Error
	return records, err
}

func (r *attendanceRepo) CountValidByStudent(ctx context.Context, studentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.AttendanceRecord{}).
		Joins("JOIN events ON events.event_id = attendance_records.event_id").
		Where("attendance_records.student_id = ? AND attendance_records.is_valid = ?", studentID, true).
		Where("events.is_active = ?", true).
		Count(&count).Error
	return count, err
}

func (r *attendanceRepo) ListRecent(ctx context.Context, limit int) ([]model.AttendanceRecord, error) {
	var records []model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("ExternalVisitor").
		Preload("Event").
		Where("is_valid = ?", true).
		Order("timestamp DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *attendanceRepo) List(ctx context.Context, filters *AttendanceListFilters, offset, limit int) ([]model.AttendanceRecord, int64, error) {
	var records []model.AttendanceRecord
	var total int64

	db := r.db.WithContext(ctx).Model(&model.AttendanceRecord{})
	if filters == nil || !filters.IncludeInvalid {
		db = db.Where("is_valid = ?", true)
	}
	if filters != nil {
		if filters.EventID != "" {
			db = db.Where("event_id = ?", filters.EventID)
		}
		if filters.StudentID != "" {
			db = db.Where("student_id = ?", filters.StudentID)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.
		Preload("Student").
		Preload("ExternalVisitor").
		Preload("Event").
		Preload("Registrar").
		Offset(offset).Limit(limit).
		Order("timestamp DESC").
		Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
