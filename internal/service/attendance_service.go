package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/val20-11/mac-attendance/config"
	"github.com/val20-11/mac-attendance/internal/dto"
	"github.com/val20-11/mac-attendance/internal/model"
	"github.com/val20-11/mac-attendance/internal/repository"
	pkgerrors "github.com/val20-11/mac-attendance/pkg/errors"
	"github.com/val20-11/mac-attendance/pkg/metrics"
)

// ── 签到模块业务错误 ──

var (
	ErrAttendeeNotFound      = errors.New("未找到该编号对应的学生或已审批的校外访客")
	ErrRegistrarNotAssistant = errors.New("只有助理可以登记签到")
	ErrRegistrationTooEarly  = errors.New("签到尚未开放，请在活动开始前 10 分钟内签到")
	ErrRegistrationTooLate   = errors.New("签到已截止，活动已结束")
	ErrAttendanceDuplicate   = errors.New("该签到对象已在此活动签到")
	ErrAttendanceOverlap     = errors.New("该学生已在同一时段的其他活动签到")
	ErrAttendanceNotFound    = errors.New("签到记录不存在")
)

// AttendanceService 签到业务接口
type AttendanceService interface {
	// Register 校验并登记一次签到；学生签到成功后刷新其出勤统计
	Register(ctx context.Context, req *dto.RegisterAttendanceRequest, registrarID string) (*dto.RegisterAttendanceResponse, error)
	// Update 超级管理员修改签到记录，重新执行重复与时间冲突校验
	Update(ctx context.Context, id string, req *dto.UpdateAttendanceRequest, callerID string) (*dto.AttendanceRecordResponse, error)
	// Invalidate 超级管理员作废签到记录（is_valid=false）
	Invalidate(ctx context.Context, id string, callerID string) error
	List(ctx context.Context, req *dto.AttendanceListRequest) ([]dto.AttendanceRecordResponse, int64, error)
	Recent(ctx context.Context) ([]dto.RecentAttendanceResponse, error)
}

type attendanceService struct {
	repo        *repository.Repository
	stats       StatsService
	metrics     *metrics.Metrics
	loc         *time.Location
	earlyWindow time.Duration
	recentLimit int
	now         func() time.Time
	logger      *zap.Logger
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(
	repo *repository.Repository,
	stats StatsService,
	cfg *config.AttendanceConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) AttendanceService {
	limit := cfg.RecentLimit
	if limit <= 0 {
		limit = 5
	}
	return &attendanceService{
		repo:        repo,
		stats:       stats,
		metrics:     m,
		loc:         cfg.Location(),
		earlyWindow: time.Duration(cfg.EarlyWindowMinutes) * time.Minute,
		recentLimit: limit,
		now:         time.Now,
		logger:      logger,
	}
}

// resolvedAttendee 签到对象解析结果
type resolvedAttendee struct {
	key     repository.Attendee
	name    string
	student bool
}

// ────────────────────── Register ──────────────────────

func (s *attendanceService) Register(ctx context.Context, req *dto.RegisterAttendanceRequest, registrarID string) (*dto.RegisterAttendanceResponse, error) {
	now := s.now()

	var (
		record    *model.AttendanceRecord
		attendee  *resolvedAttendee
		event     *model.Event
		registrar *model.Account
	)

	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error

		// 1. 活动存在且启用（行锁串行化同一活动的并发签到）
		event, err = tx.Event.GetActiveForUpdate(ctx, req.EventID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		// 2. 签到对象：先学生，后已审批访客
		attendee, err = s.resolveAttendee(ctx, tx, req.AccountNumber)
		if err != nil {
			return err
		}

		// 3. 登记人必须是助理
		registrar, err = tx.Account.GetByID(ctx, registrarID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRegistrarNotAssistant
			}
			return err
		}
		if !registrar.IsAssistant() {
			return ErrRegistrarNotAssistant
		}

		// 4. 签到时间窗口
		if err := s.checkWindow(event, now); err != nil {
			return err
		}

		// 5-6. 重复签到与同时段冲突
		if err := s.checkConflicts(ctx, tx, attendee, event, ""); err != nil {
			return err
		}

		method := req.RegistrationMethod
		if !attendee.student {
			method = model.MethodExternal
		} else if method == "" {
			method = model.MethodManual
		}

		record = &model.AttendanceRecord{
			StudentID:          attendee.key.StudentID,
			ExternalVisitorID:  attendee.key.ExternalVisitorID,
			EventID:            event.EventID,
			Timestamp:          now,
			RegisteredBy:       registrar.AccountID,
			RegistrationMethod: method,
			Notes:              req.Notes,
			IsValid:            true,
		}
		if err := tx.Attendance.Create(ctx, record); err != nil {
			if errors.Is(err, pkgerrors.ErrUniqueViolation) {
				return ErrAttendanceDuplicate
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.observeRegistration(err)
		if isAttendanceRuleError(err) {
			return nil, err
		}
		s.logger.Error("登记签到失败",
			zap.String("event_id", req.EventID),
			zap.String("account_number", req.AccountNumber),
			zap.Error(err))
		return nil, err
	}

	// 提交后单独刷新统计；失败时记录已落库，错误照常返回，偏差由 RefreshAll 修复
	if attendee.student {
		if _, err := s.stats.Refresh(ctx, *attendee.key.StudentID); err != nil {
			s.observeRegistration(err)
			return nil, err
		}
	}

	s.observeRegistration(nil)
	s.logger.Info("签到成功",
		zap.String("attendance_id", record.AttendanceID),
		zap.String("event_id", event.EventID),
		zap.String("account_number", req.AccountNumber),
		zap.String("registered_by", registrar.AccountID))

	return &dto.RegisterAttendanceResponse{
		AttendanceID:  record.AttendanceID,
		AttendeeName:  attendee.name,
		EventTitle:    event.Title,
		RegistrarName: registrar.Name,
		Message:       fmt.Sprintf("%s 已签到 %s", attendee.name, event.Title),
	}, nil
}

// ────────────────────── Update ──────────────────────

func (s *attendanceService) Update(ctx context.Context, id string, req *dto.UpdateAttendanceRequest, callerID string) (*dto.AttendanceRecordResponse, error) {
	if err := s.requireSuperuser(ctx, callerID); err != nil {
		return nil, err
	}

	var (
		record     *model.AttendanceRecord
		oldStudent *string
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		record, err = tx.Attendance.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAttendanceNotFound
			}
			return err
		}
		oldStudent = record.StudentID

		event := record.Event
		if req.EventID != nil && *req.EventID != record.EventID {
			event, err = tx.Event.GetActiveForUpdate(ctx, *req.EventID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrEventNotFound
				}
				return err
			}
			record.EventID = event.EventID
			record.Event = event
		}
		if req.Notes != nil {
			record.Notes = *req.Notes
		}
		if req.IsValid != nil {
			record.IsValid = *req.IsValid
		}

		// 仍为有效记录时重新执行重复与冲突校验（排除自身）
		if record.IsValid {
			if event == nil {
				return ErrEventNotFound
			}
			attendee := &resolvedAttendee{
				key:     repository.Attendee{StudentID: record.StudentID, ExternalVisitorID: record.ExternalVisitorID},
				student: record.StudentID != nil,
			}
			if err := s.checkConflicts(ctx, tx, attendee, event, record.AttendanceID); err != nil {
				return err
			}
		}

		if err := tx.Attendance.Update(ctx, record); err != nil {
			if errors.Is(err, pkgerrors.ErrUniqueViolation) {
				return ErrAttendanceDuplicate
			}
			return err
		}
		return nil
	})
	if err != nil {
		if !isAttendanceRuleError(err) {
			s.logger.Error("修改签到记录失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	if oldStudent != nil {
		if _, err := s.stats.Refresh(ctx, *oldStudent); err != nil {
			return nil, err
		}
	}

	s.logger.Info("签到记录已修改", zap.String("attendance_id", id), zap.String("updated_by", callerID))
	return s.toRecordResponse(record), nil
}

// ────────────────────── Invalidate ──────────────────────

func (s *attendanceService) Invalidate(ctx context.Context, id string, callerID string) error {
	if err := s.requireSuperuser(ctx, callerID); err != nil {
		return err
	}

	record, err := s.repo.Attendance.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAttendanceNotFound
		}
		s.logger.Error("查询签到记录失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if !record.IsValid {
		return nil
	}

	record.IsValid = false
	if err := s.repo.Attendance.Update(ctx, record); err != nil {
		s.logger.Error("作废签到记录失败", zap.String("id", id), zap.Error(err))
		return err
	}

	if record.StudentID != nil {
		if _, err := s.stats.Refresh(ctx, *record.StudentID); err != nil {
			return err
		}
	}

	s.logger.Info("签到记录已作废", zap.String("attendance_id", id), zap.String("invalidated_by", callerID))
	return nil
}

// ────────────────────── List / Recent ──────────────────────

func (s *attendanceService) List(ctx context.Context, req *dto.AttendanceListRequest) ([]dto.AttendanceRecordResponse, int64, error) {
	filters := &repository.AttendanceListFilters{
		EventID:        req.EventID,
		IncludeInvalid: req.IncludeInvalid,
	}
	if req.AccountNumber != "" {
		student, err := s.repo.Account.GetByNumberAndRole(ctx, req.AccountNumber, model.RoleStudent)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return []dto.AttendanceRecordResponse{}, 0, nil
			}
			s.logger.Error("查询学生失败", zap.Error(err))
			return nil, 0, err
		}
		filters.StudentID = student.AccountID
	}

	records, total, err := s.repo.Attendance.List(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出签到记录失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.AttendanceRecordResponse, 0, len(records))
	for i := range records {
		result = append(result, *s.toRecordResponse(&records[i]))
	}
	return result, total, nil
}

func (s *attendanceService) Recent(ctx context.Context) ([]dto.RecentAttendanceResponse, error) {
	records, err := s.repo.Attendance.ListRecent(ctx, s.recentLimit)
	if err != nil {
		s.logger.Error("查询最近签到失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.RecentAttendanceResponse, 0, len(records))
	for i := range records {
		r := &records[i]
		title := ""
		if r.Event != nil {
			title = r.Event.Title
		}
		result = append(result, dto.RecentAttendanceResponse{
			AttendeeName: r.AttendeeName(),
			EventTitle:   title,
			Time:         r.Timestamp.In(s.loc).Format("15:04"),
		})
	}
	return result, nil
}

// ── 校验步骤 ──

// resolveAttendee 按编号解析签到对象，学生优先
func (s *attendanceService) resolveAttendee(ctx context.Context, tx *repository.Repository, number string) (*resolvedAttendee, error) {
	student, err := tx.Account.GetByNumberAndRole(ctx, number, model.RoleStudent)
	if err == nil {
		return &resolvedAttendee{
			key:     repository.Attendee{StudentID: &student.AccountID},
			name:    student.Name,
			student: true,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	visitor, err := tx.ExternalVisitor.GetApprovedByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttendeeNotFound
		}
		return nil, err
	}
	return &resolvedAttendee{
		key:  repository.Attendee{ExternalVisitorID: &visitor.VisitorID},
		name: visitor.Name,
	}, nil
}

// checkWindow 签到窗口为 [开始 - 提前量, 结束]，两端均包含
func (s *attendanceService) checkWindow(event *model.Event, now time.Time) error {
	start, err := event.StartAt(s.loc)
	if err != nil {
		return err
	}
	end, err := event.EndAt(s.loc)
	if err != nil {
		return err
	}
	if now.Before(start.Add(-s.earlyWindow)) {
		return ErrRegistrationTooEarly
	}
	if now.After(end) {
		return ErrRegistrationTooLate
	}
	return nil
}

// checkConflicts 重复签到与同日时段重叠校验，excludeID 为正在修改的记录
func (s *attendanceService) checkConflicts(ctx context.Context, tx *repository.Repository, attendee *resolvedAttendee, event *model.Event, excludeID string) error {
	exists, err := tx.Attendance.ExistsValid(ctx, attendee.key, event.EventID, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return ErrAttendanceDuplicate
	}

	if !attendee.student {
		return nil
	}

	sameDay, err := tx.Attendance.ListValidByStudentOnDate(ctx, *attendee.key.StudentID, event.EventDate, excludeID)
	if err != nil {
		return err
	}
	for i := range sameDay {
		other := sameDay[i].Event
		if other == nil || other.EventID == event.EventID {
			continue
		}
		if other.Overlaps(event) {
			return ErrAttendanceOverlap
		}
	}
	return nil
}

func (s *attendanceService) requireSuperuser(ctx context.Context, callerID string) error {
	caller, err := s.repo.Account.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoPermission
		}
		s.logger.Error("查询账号失败", zap.String("id", callerID), zap.Error(err))
		return err
	}
	if !caller.IsSuperuser {
		return ErrNoPermission
	}
	return nil
}

// ── 内部辅助方法 ──

// isAttendanceRuleError 业务规则拒绝（非系统故障）
func isAttendanceRuleError(err error) bool {
	return attendanceRejectReason(err) != ""
}

func attendanceRejectReason(err error) string {
	switch {
	case errors.Is(err, ErrEventNotFound):
		return "event_not_found"
	case errors.Is(err, ErrAttendeeNotFound):
		return "attendee_not_found"
	case errors.Is(err, ErrRegistrarNotAssistant):
		return "permission_denied"
	case errors.Is(err, ErrRegistrationTooEarly):
		return "too_early"
	case errors.Is(err, ErrRegistrationTooLate):
		return "too_late"
	case errors.Is(err, ErrAttendanceDuplicate):
		return "duplicate"
	case errors.Is(err, ErrAttendanceOverlap):
		return "overlap"
	default:
		return ""
	}
}

func (s *attendanceService) observeRegistration(err error) {
	switch {
	case err == nil:
		s.metrics.AttendanceRegistrations.WithLabelValues(metrics.ResultSuccess, "").Inc()
	case isAttendanceRuleError(err):
		s.metrics.AttendanceRegistrations.WithLabelValues(metrics.ResultRejected, attendanceRejectReason(err)).Inc()
	default:
		s.metrics.AttendanceRegistrations.WithLabelValues(metrics.ResultError, "internal").Inc()
	}
}

func (s *attendanceService) toRecordResponse(r *model.AttendanceRecord) *dto.AttendanceRecordResponse {
	resp := &dto.AttendanceRecordResponse{
		ID:                 r.AttendanceID,
		AttendeeName:       r.AttendeeName(),
		AttendeeType:       "student",
		EventID:            r.EventID,
		Timestamp:          r.Timestamp.In(s.loc).Format(time.RFC3339),
		RegisteredBy:       r.RegisteredBy,
		RegistrationMethod: r.RegistrationMethod,
		Notes:              r.Notes,
		IsValid:            r.IsValid,
	}
	if r.ExternalVisitorID != nil {
		resp.AttendeeType = "external"
	}
	if r.Event != nil {
		resp.EventTitle = r.Event.Title
	}
	if r.Registrar != nil {
		resp.RegisteredBy = r.Registrar.Name
	}
	return resp
}
