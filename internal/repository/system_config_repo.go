package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/val20-11/mac-attendance/internal/model"
	pkgerrors "github.com/val20-11/mac-attendance/pkg/errors"
)

// SystemConfigRepository 系统配置数据访问接口
type SystemConfigRepository interface {
	Get(ctx context.Context) (*model.SystemConfig, error)
	// Create 写入单例行；已存在时返回 ErrUniqueViolation
	Create(ctx context.Context, cfg *model.SystemConfig) error
	Update(ctx context.Context, cfg *model.SystemConfig) error
}

type systemConfigRepo struct {
	db *gorm.DB
}

// NewSystemConfigRepo 创建 SystemConfigRepository 实例
func NewSystemConfigRepo(db *gorm.DB) SystemConfigRepository {
	return &systemConfigRepo{db: db}
}

func (r *systemConfigRepo) Get(ctx context.Context) (*model.SystemConfig, error) {
	var cfg model.SystemConfig
	err := r.db.WithContext(ctx).First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *systemConfigRepo) Create(ctx context.Context, cfg *model.SystemConfig) error {
	cfg.Singleton = true
	err := r.db.WithContext(ctx).Create(cfg).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.ErrUniqueViolation
	}
	return err
}

func (r *systemConfigRepo) Update(ctx context.Context, cfg *model.SystemConfig) error {
	cfg.Singleton = true
	return r.db.WithContext(ctx).Save(cfg).Error
}
