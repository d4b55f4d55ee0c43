package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/val20-11/mac-attendance/internal/dto"
	"github.com/val20-11/mac-attendance/internal/model"
	"github.com/val20-11/mac-attendance/internal/repository"
	"github.com/val20-11/mac-attendance/pkg/metrics"
)

// ── 出勤统计模块业务错误 ──

var (
	ErrStudentNotFound = errors.New("学生不存在")
	ErrStatsForbidden  = errors.New("学生只能查询自己的出勤统计")
)

// StatsService 出勤统计业务接口
type StatsService interface {
	// Refresh 按当前数据重算并保存学生统计，重复调用结果不变
	Refresh(ctx context.Context, studentID string) (*model.AttendanceStats, error)
	// RefreshAll 重算所有学生的统计，返回处理人数
	RefreshAll(ctx context.Context) (int, error)
	GetStudentStats(ctx context.Context, accountNumber, callerID, callerRole string) (*dto.StudentStatsResponse, error)
}

type statsService struct {
	repo    *repository.Repository
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *zap.Logger
}

// NewStatsService 创建 StatsService 实例
func NewStatsService(repo *repository.Repository, m *metrics.Metrics, logger *zap.Logger) StatsService {
	return &statsService{repo: repo, metrics: m, now: time.Now, logger: logger}
}

// AttendancePercentage 出勤率 = round(100·attended/total, 2)，total 为 0 时为 0
func AttendancePercentage(attended, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(attended)*100/float64(total)*100) / 100
}

// MeetsMinimum 出勤率是否达到系统配置的最低要求
func MeetsMinimum(stats *model.AttendanceStats, cfg *model.SystemConfig) bool {
	return stats.AttendancePercentage >= cfg.MinAttendancePercentage
}

// ────────────────────── Refresh ──────────────────────

func (s *statsService) Refresh(ctx context.Context, studentID string) (*model.AttendanceStats, error) {
	// 分母为系统内所有启用中的活动，包含尚未举行的活动
	total, err := s.repo.Event.CountActive(ctx)
	if err != nil {
		s.logger.Error("统计启用活动数失败", zap.Error(err))
		return nil, err
	}

	attended, err := s.repo.Attendance.CountValidByStudent(ctx, studentID)
	if err != nil {
		s.logger.Error("统计学生签到数失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	stats := &model.AttendanceStats{
		StudentID:            studentID,
		TotalEvents:          int(total),
		AttendedEvents:       int(attended),
		AttendancePercentage: AttendancePercentage(int(attended), int(total)),
		LastUpdated:          s.now(),
	}

	if err := s.repo.AttendanceStats.Upsert(ctx, stats); err != nil {
		s.logger.Error("保存出勤统计失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	s.metrics.StatsRefreshes.Inc()
	return stats, nil
}

// ────────────────────── RefreshAll ──────────────────────

func (s *statsService) RefreshAll(ctx context.Context) (int, error) {
	ids, err := s.repo.Account.ListIDsByRole(ctx, model.RoleStudent)
	if err != nil {
		s.logger.Error("列出学生失败", zap.Error(err))
		return 0, err
	}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := s.Refresh(ctx, id); err != nil {
			return i, err
		}
	}

	s.logger.Info("出勤统计全量重算完成", zap.Int("students", len(ids)))
	return len(ids), nil
}

// ────────────────────── GetStudentStats ──────────────────────

func (s *statsService) GetStudentStats(ctx context.Context, accountNumber, callerID, callerRole string) (*dto.StudentStatsResponse, error) {
	var student *model.Account
	var err error

	if callerRole == model.RoleStudent {
		student, err = s.repo.Account.GetByID(ctx, callerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrStudentNotFound
			}
			s.logger.Error("查询学生失败", zap.String("id", callerID), zap.Error(err))
			return nil, err
		}
		if accountNumber != "" && accountNumber != student.AccountNumber {
			return nil, ErrStatsForbidden
		}
	} else {
		if accountNumber == "" {
			return nil, ErrStudentNotFound
		}
		student, err = s.repo.Account.GetByNumberAndRole(ctx, accountNumber, model.RoleStudent)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrStudentNotFound
			}
			s.logger.Error("查询学生失败", zap.String("account_number", accountNumber), zap.Error(err))
			return nil, err
		}
	}

	stats, err := s.Refresh(ctx, student.AccountID)
	if err != nil {
		return nil, err
	}

	// 每次查询都读取当前配置
	cfg, err := s.repo.SystemConfig.Get(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSystemConfigNotFound
		}
		s.logger.Error("查询系统配置失败", zap.Error(err))
		return nil, err
	}

	return &dto.StudentStatsResponse{
		AccountNumber:        student.AccountNumber,
		StudentName:          student.Name,
		TotalEvents:          stats.TotalEvents,
		AttendedEvents:       stats.AttendedEvents,
		AttendancePercentage: stats.AttendancePercentage,
		MinimumPercentage:    cfg.MinAttendancePercentage,
		MeetsMinimum:         MeetsMinimum(stats, cfg),
		LastUpdated:          stats.LastUpdated.Format(time.RFC3339),
	}, nil
}
