package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/val20-11/mac-attendance/internal/model"
	pkgerrors "github.com/val20-11/mac-attendance/pkg/errors"
)

// ExternalVisitorRepository 校外访客数据访问接口
type ExternalVisitorRepository interface {
	Create(ctx context.Context, visitor *model.ExternalVisitor) error
	GetByID(ctx context.Context, id string) (*model.ExternalVisitor, error)
	GetApprovedByNumber(ctx context.Context, number string) (*model.ExternalVisitor, error)
	ExistsAccountNumber(ctx context.Context, number string) (bool, error)
	Update(ctx context.Context, visitor *model.ExternalVisitor) error
	List(ctx context.Context, status string, offset, limit int) ([]model.ExternalVisitor, int64, error)
	Search(ctx context.Context, keyword string, limit int) ([]model.ExternalVisitor, error)
}

type externalVisitorRepo struct {
	db *gorm.DB
}

// NewExternalVisitorRepo 创建 ExternalVisitorRepository 实例
func NewExternalVisitorRepo(db *gorm.DB) ExternalVisitorRepository {
	return &externalVisitorRepo{db: db}
}

func (r *externalVisitorRepo) Create(ctx context.Context, visitor *model.ExternalVisitor) error {
	err := r.db.WithContext(ctx).Create(visitor).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.ErrUniqueViolation
	}
	return err
}

func (r *externalVisitorRepo) GetByID(ctx context.Context, id string) (*model.ExternalVisitor, error) {
	var v model.ExternalVisitor
	err := r.db.WithContext(ctx).
		Where("visitor_id = ?", id).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetApprovedByNumber 仅返回已审批通过的访客
func (r *externalVisitorRepo) GetApprovedByNumber(ctx context.Context, number string) (*model.ExternalVisitor, error) {
	var v model.ExternalVisitor
	err := r.db.WithContext(ctx).
		Where("account_number = ? AND status = ?", number, model.VisitorStatusApproved).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *externalVisitorRepo) ExistsAccountNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ExternalVisitor{}).
		Where("account_number = ?", number).
		Count(&count).Error
	return count > 0, err
}

func (r *externalVisitorRepo) Update(ctx context.Context, visitor *model.ExternalVisitor) error {
	return r.db.WithContext(ctx).Save(visitor).Error
}

func (r *externalVisitorRepo) List(ctx context.Context, status string, offset, limit int) ([]model.ExternalVisitor, int64, error) {
	var visitors []model.ExternalVisitor
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ExternalVisitor{})
	if status != "" {
		db = db.Where("status = ?", status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&visitors).Error; err != nil {
		return nil, 0, err
	}

	return visitors, total, nil
}

func (r *externalVisitorRepo) Search(ctx context.Context, keyword string, limit int) ([]model.ExternalVisitor, error) {
	var visitors []model.ExternalVisitor
	kw := "%" + keyword + "%"
	err := r.db.WithContext(ctx).
		Where("name ILIKE ? OR account_number ILIKE ? OR institution ILIKE ?", kw, kw, kw).
		Order("created_at DESC").
		Limit(limit).
		Find(&visitors).Error
	return visitors, err
}
