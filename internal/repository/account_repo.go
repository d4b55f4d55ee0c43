package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/val20-11/mac-attendance/internal/model"
	pkgerrors "github.com/val20-11/mac-attendance/pkg/errors"
)

// AccountListFilters 账号列表筛选条件
type AccountListFilters struct {
	Role    string
	Keyword string
}

// AccountRepository 账号数据访问接口
type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	GetByID(ctx context.Context, id string) (*model.Account, error)
	GetByAccountNumber(ctx context.Context, number string) (*model.Account, error)
	GetByNumberAndRole(ctx context.Context, number, role string) (*model.Account, error)
	Update(ctx context.Context, account *model.Account) error
	ListWithFilters(ctx context.Context, filters *AccountListFilters, offset, limit int) ([]model.Account, int64, error)
	ListIDsByRole(ctx context.Context, role string) ([]string, error)
}

// accountRepo AccountRepository 的 GORM 实现
type accountRepo struct {
	db *gorm.DB
}

// NewAccountRepo 创建 AccountRepository 实例
func NewAccountRepo(db *gorm.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) Create(ctx context.Context, account *model.Account) error {
	err := r.db.WithContext(ctx).Create(account).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.ErrUniqueViolation
	}
	return err
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Where("account_id = ?", id).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) GetByAccountNumber(ctx context.Context, number string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Where("account_number = ?", number).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByNumberAndRole 按学号与角色查询（学生/助理视图）
func (r *accountRepo) GetByNumberAndRole(ctx context.Context, number, role string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Where("account_number = ? AND role = ?", number, role).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) Update(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}

func (r *accountRepo) ListWithFilters(ctx context.Context, filters *AccountListFilters, offset, limit int) ([]model.Account, int64, error) {
	var accounts []model.Account
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Account{})
	if filters != nil {
		if filters.Role != "" {
			db = db.Where("role = ?", filters.Role)
		}
		if filters.Keyword != "" {
			kw := "%" + filters.Keyword + "%"
			db = db.Where("name ILIKE ? OR account_number LIKE ?", kw, kw)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("account_number ASC").
		Find(&accounts).Error; err != nil {
		return nil, 0, err
	}

	return accounts, total, nil
}

func (r *accountRepo) ListIDsByRole(ctx context.Context, role string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("role = ?", role).
		Pluck("account_id", &ids).Error
	return ids, err
}
