package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/val20-11/mac-attendance/internal/model"
)

// EventListFilters 活动列表筛选条件
type EventListFilters struct {
	IncludeInactive bool
	DateFrom        string // YYYY-MM-DD
	DateTo          string
}

// EventRepository 活动数据访问接口
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	BatchCreate(ctx context.Context, events []model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	// GetActiveForUpdate 在事务内以行锁读取启用中的活动
	GetActiveForUpdate(ctx context.Context, id string) (*model.Event, error)
	Update(ctx context.Context, event *model.Event) error
	List(ctx context.Context, filters *EventListFilters, offset, limit int) ([]model.Event, int64, error)
	CountActive(ctx context.Context) (int64, error)
}

type eventRepo struct {
	db *gorm.DB
}

// NewEventRepo 创建 EventRepository 实例
func NewEventRepo(db *gorm.DB) EventRepository {
	return &eventRepo{db: db}
}

func (r *eventRepo) Create(ctx context.Context, event *model.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepo) BatchCreate(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(events, 100).Error
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var event model.Event
	err := r.db.WithContext(ctx).
		Where("event_id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepo) GetActiveForUpdate(ctx context.Context, id string) (*model.Event, error) {
	var event model.Event
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("event_id = ? AND is_active = ?", id, true).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepo) Update(ctx context.Context, event *model.Event) error {
	return r.db.WithContext(ctx).Save(event).Error
}

func (r *eventRepo) List(ctx context.Context, filters *EventListFilters, offset, limit int) ([]model.Event, int64, error) {
	var events []model.Event
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Event{})
	if filters == nil || !filters.IncludeInactive {
		db = db.Where("is_active = ?", true)
	}
	if filters != nil {
		if filters.DateFrom != "" {
			db = db.Where("event_date >= ?", filters.DateFrom)
		}
		if filters.DateTo != "" {
			db = db.Where("event_date <= ?", filters.DateTo)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("event_date ASC, start_time ASC").
		Find(&events).Error; err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

// CountActive 统计所有启用中的活动（不区分日期）
func (r *eventRepo) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("is_active = ?", true).
		Count(&count).Error
	return count, err
}
