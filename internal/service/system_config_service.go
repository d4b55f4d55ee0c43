package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/val20-11/mac-attendance/internal/dto"
	"github.com/val20-11/mac-attendance/internal/model"
	"github.com/val20-11/mac-attendance/internal/repository"
	pkgerrors "github.com/val20-11/mac-attendance/pkg/errors"
)

// ── 系统配置模块业务错误 ──

var (
	ErrSystemConfigNotFound   = errors.New("系统配置未初始化")
	ErrSystemConfigExists     = errors.New("系统配置已存在，只能修改")
	ErrSystemConfigOutOfRange = errors.New("最低出勤率必须在 0 到 100 之间")
)

// SystemConfigService 系统配置业务接口
type SystemConfigService interface {
	// EnsureDefault 启动时获取或创建单例配置
	EnsureDefault(ctx context.Context, defaultMin float64) (*model.SystemConfig, error)
	Create(ctx context.Context, req *dto.SystemConfigRequest, callerID string) (*dto.SystemConfigResponse, error)
	Get(ctx context.Context) (*dto.SystemConfigResponse, error)
	Update(ctx context.Context, req *dto.SystemConfigRequest, callerID string) (*dto.SystemConfigResponse, error)
}

type systemConfigService struct {
	repo   *repository.Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewSystemConfigService 创建 SystemConfigService 实例
func NewSystemConfigService(repo *repository.Repository, logger *zap.Logger) SystemConfigService {
	return &systemConfigService{repo: repo, now: time.Now, logger: logger}
}

// ────────────────────── EnsureDefault ──────────────────────

func (s *systemConfigService) EnsureDefault(ctx context.Context, defaultMin float64) (*model.SystemConfig, error) {
	cfg, err := s.repo.SystemConfig.Get(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询系统配置失败", zap.Error(err))
		return nil, err
	}

	if defaultMin < 0 || defaultMin > 100 {
		return nil, ErrSystemConfigOutOfRange
	}

	cfg = &model.SystemConfig{MinAttendancePercentage: defaultMin, UpdatedAt: s.now()}
	if err := s.repo.SystemConfig.Create(ctx, cfg); err != nil {
		// 并发启动时另一实例已写入
		if errors.Is(err, pkgerrors.ErrUniqueViolation) {
			return s.repo.SystemConfig.Get(ctx)
		}
		s.logger.Error("初始化系统配置失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("系统配置已初始化", zap.Float64("min_attendance_percentage", defaultMin))
	return cfg, nil
}

// ────────────────────── Create ──────────────────────

func (s *systemConfigService) Create(ctx context.Context, req *dto.SystemConfigRequest, callerID string) (*dto.SystemConfigResponse, error) {
	if err := validateMinPercentage(req); err != nil {
		return nil, err
	}

	if _, err := s.repo.SystemConfig.Get(ctx); err == nil {
		return nil, ErrSystemConfigExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询系统配置失败", zap.Error(err))
		return nil, err
	}

	cfg := &model.SystemConfig{
		MinAttendancePercentage: *req.MinAttendancePercentage,
		UpdatedAt:               s.now(),
		UpdatedBy:               &callerID,
	}
	if err := s.repo.SystemConfig.Create(ctx, cfg); err != nil {
		if errors.Is(err, pkgerrors.ErrUniqueViolation) {
			return nil, ErrSystemConfigExists
		}
		s.logger.Error("创建系统配置失败", zap.Error(err))
		return nil, err
	}

	return toSystemConfigResponse(cfg), nil
}

// ────────────────────── Get ──────────────────────

func (s *systemConfigService) Get(ctx context.Context) (*dto.SystemConfigResponse, error) {
	cfg, err := s.repo.SystemConfig.Get(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSystemConfigNotFound
		}
		s.logger.Error("查询系统配置失败", zap.Error(err))
		return nil, err
	}

	return toSystemConfigResponse(cfg), nil
}

// ────────────────────── Update ──────────────────────

func (s *systemConfigService) Update(ctx context.Context, req *dto.SystemConfigRequest, callerID string) (*dto.SystemConfigResponse, error) {
	if err := validateMinPercentage(req); err != nil {
		return nil, err
	}

	cfg, err := s.repo.SystemConfig.Get(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSystemConfigNotFound
		}
		s.logger.Error("查询系统配置失败", zap.Error(err))
		return nil, err
	}

	cfg.MinAttendancePercentage = *req.MinAttendancePercentage
	cfg.UpdatedAt = s.now()
	cfg.UpdatedBy = &callerID

	if err := s.repo.SystemConfig.Update(ctx, cfg); err != nil {
		s.logger.Error("更新系统配置失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("系统配置已更新",
		zap.Float64("min_attendance_percentage", cfg.MinAttendancePercentage),
		zap.String("updated_by", callerID))

	return toSystemConfigResponse(cfg), nil
}

// ── 内部辅助方法 ──

func validateMinPercentage(req *dto.SystemConfigRequest) error {
	if req.MinAttendancePercentage == nil {
		return ErrSystemConfigOutOfRange
	}
	if v := *req.MinAttendancePercentage; v < 0 || v > 100 {
		return ErrSystemConfigOutOfRange
	}
	return nil
}

func toSystemConfigResponse(cfg *model.SystemConfig) *dto.SystemConfigResponse {
	resp := &dto.SystemConfigResponse{
		MinAttendancePercentage: cfg.MinAttendancePercentage,
		UpdatedAt:               cfg.UpdatedAt.Format(time.RFC3339),
	}
	if cfg.UpdatedBy != nil {
		resp.UpdatedBy = *cfg.UpdatedBy
	}
	return resp
}
