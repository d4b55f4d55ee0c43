package service

import (
	"go.uber.org/zap"

	"github.com/val20-11/mac-attendance/config"
	"github.com/val20-11/mac-attendance/internal/repository"
	"github.com/val20-11/mac-attendance/pkg/jwt"
	"github.com/val20-11/mac-attendance/pkg/metrics"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth         AuthService
	Account      AccountService
	Event        EventService
	Visitor      VisitorService
	Attendance   AttendanceService
	Stats        StatsService
	SystemConfig SystemConfigService
}

// NewService 创建 Service 聚合；blacklist 为 nil 时登出不做服务端作废
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	stats := NewStatsService(repo, m, logger)
	return &Service{
		Auth:         NewAuthService(repo, jwtMgr, blacklist, logger),
		Account:      NewAccountService(repo, logger),
		Event:        NewEventService(repo, cfg.Attendance.Location(), logger),
		Visitor:      NewVisitorService(repo, m, logger),
		Attendance:   NewAttendanceService(repo, stats, &cfg.Attendance, m, logger),
		Stats:        stats,
		SystemConfig: NewSystemConfigService(repo, logger),
	}
}
