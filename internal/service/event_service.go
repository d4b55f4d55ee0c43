package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/val20-11/mac-attendance/internal/dto"
	"github.com/val20-11/mac-attendance/internal/model"
	"github.com/val20-11/mac-attendance/internal/repository"
)

// ── 活动模块业务错误 ──

var (
	ErrEventNotFound            = errors.New("活动不存在或未启用")
	ErrEventTimeOrder           = errors.New("结束时间必须晚于开始时间")
	ErrEventDateInPast          = errors.New("活动日期不能早于今天")
	ErrEventMeetingLinkRequired = errors.New("线上或混合活动必须提供会议链接")
	ErrEventInvalidDate         = errors.New("日期格式错误，应为 YYYY-MM-DD")
	ErrNoPermission             = errors.New("无权操作")
)

const dateLayout = "2006-01-02"

// EventService 活动业务接口
type EventService interface {
	Create(ctx context.Context, req *dto.CreateEventRequest, callerID string) (*dto.EventResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateEventRequest, callerID string) (*dto.EventResponse, error)
	Get(ctx context.Context, id string) (*dto.EventResponse, error)
	List(ctx context.Context, req *dto.EventListRequest) ([]dto.EventResponse, int64, error)
	Deactivate(ctx context.Context, id string, callerID string) error
	// ImportICS 从 iCalendar 文件批量创建活动，逐条报告失败原因
	ImportICS(ctx context.Context, reader io.Reader, callerID string) (*dto.ImportEventResponse, error)
}

type eventService struct {
	repo   *repository.Repository
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewEventService 创建 EventService 实例，loc 为活动日期所在时区
func NewEventService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) EventService {
	return &eventService{repo: repo, loc: loc, now: time.Now, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *eventService) Create(ctx context.Context, req *dto.CreateEventRequest, callerID string) (*dto.EventResponse, error) {
	if err := s.requireAssistant(ctx, callerID); err != nil {
		return nil, err
	}

	date, err := parseEventDate(req.EventDate)
	if err != nil {
		return nil, err
	}

	event := &model.Event{
		Title:                req.Title,
		Description:          req.Description,
		EventType:            defaultString(req.EventType, model.EventTypeConference),
		Modality:             defaultString(req.Modality, model.ModalityInPerson),
		Speaker:              req.Speaker,
		EventDate:            date,
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		Location:             req.Location,
		MaxCapacity:          req.MaxCapacity,
		IsActive:             true,
		RequiresRegistration: req.RequiresRegistration,
		MeetingLink:          req.MeetingLink,
		MeetingID:            req.MeetingID,
		CreatedBy:            callerID,
	}
	if event.MaxCapacity == 0 {
		event.MaxCapacity = 100
	}

	if err := s.validateEvent(event, true); err != nil {
		return nil, err
	}

	if err := s.repo.Event.Create(ctx, event); err != nil {
		s.logger.Error("创建活动失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("活动已创建",
		zap.String("event_id", event.EventID),
		zap.String("title", event.Title),
		zap.String("created_by", callerID))

	return toEventResponse(event), nil
}

// ────────────────────── Update ──────────────────────

func (s *eventService) Update(ctx context.Context, id string, req *dto.UpdateEventRequest, callerID string) (*dto.EventResponse, error) {
	if err := s.requireAssistant(ctx, callerID); err != nil {
		return nil, err
	}

	event, err := s.repo.Event.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		s.logger.Error("查询活动失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	dateChanged := false
	if req.EventDate != nil {
		date, err := parseEventDate(*req.EventDate)
		if err != nil {
			return nil, err
		}
		dateChanged = !model.SameDate(date, event.EventDate)
		event.EventDate = date
	}
	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.EventType != nil {
		event.EventType = *req.EventType
	}
	if req.Modality != nil {
		event.Modality = *req.Modality
	}
	if req.Speaker != nil {
		event.Speaker = *req.Speaker
	}
	if req.StartTime != nil {
		event.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		event.EndTime = *req.EndTime
	}
	if req.Location != nil {
		event.Location = *req.Location
	}
	if req.MaxCapacity != nil {
		event.MaxCapacity = *req.MaxCapacity
	}
	if req.IsActive != nil {
		event.IsActive = *req.IsActive
	}
	if req.RequiresRegistration != nil {
		event.RequiresRegistration = *req.RequiresRegistration
	}
	if req.MeetingLink != nil {
		event.MeetingLink = req.MeetingLink
	}
	if req.MeetingID != nil {
		event.MeetingID = req.MeetingID
	}

	// 日期未变更时不再校验“不早于今天”，允许修正已开始活动的信息
	if err := s.validateEvent(event, dateChanged); err != nil {
		return nil, err
	}

	if err := s.repo.Event.Update(ctx, event); err != nil {
		s.logger.Error("更新活动失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return toEventResponse(event), nil
}

// ────────────────────── Get / List ──────────────────────

func (s *eventService) Get(ctx context.Context, id string) (*dto.EventResponse, error) {
	event, err := s.repo.Event.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		s.logger.Error("查询活动失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toEventResponse(event), nil
}

func (s *eventService) List(ctx context.Context, req *dto.EventListRequest) ([]dto.EventResponse, int64, error) {
	filters := &repository.EventListFilters{
		IncludeInactive: req.IncludeInactive,
		DateFrom:        req.DateFrom,
		DateTo:          req.DateTo,
	}

	events, total, err := s.repo.Event.List(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出活动失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		result = append(result, *toEventResponse(&events[i]))
	}
	return result, total, nil
}

// ────────────────────── Deactivate ──────────────────────

func (s *eventService) Deactivate(ctx context.Context, id string, callerID string) error {
	if err := s.requireAssistant(ctx, callerID); err != nil {
		return err
	}

	event, err := s.repo.Event.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEventNotFound
		}
		s.logger.Error("查询活动失败", zap.String("id", id), zap.Error(err))
		return err
	}

	event.IsActive = false
	if err := s.repo.Event.Update(ctx, event); err != nil {
		s.logger.Error("停用活动失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── ImportICS ──────────────────────

func (s *eventService) ImportICS(ctx context.Context, reader io.Reader, callerID string) (*dto.ImportEventResponse, error) {
	if err := s.requireAssistant(ctx, callerID); err != nil {
		return nil, err
	}

	parsed, err := ParseEventsICS(reader, s.loc)
	if err != nil {
		return nil, err
	}

	resp := &dto.ImportEventResponse{Total: len(parsed)}
	valid := make([]model.Event, 0, len(parsed))
	for _, p := range parsed {
		if p.Err != nil {
			resp.Failed++
			resp.Errors = append(resp.Errors, dto.ImportEventError{UID: p.UID, Reason: p.Err.Error()})
			continue
		}
		event := p.Event
		event.CreatedBy = callerID
		if err := s.validateEvent(&event, true); err != nil {
			resp.Failed++
			resp.Errors = append(resp.Errors, dto.ImportEventError{UID: p.UID, Reason: err.Error()})
			continue
		}
		valid = append(valid, event)
	}

	if len(valid) > 0 {
		err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
			return tx.Event.BatchCreate(ctx, valid)
		})
		if err != nil {
			s.logger.Error("ICS 导入写入失败，事务回滚", zap.Error(err))
			return nil, err
		}
		resp.Success = len(valid)
	}

	s.logger.Info("ICS 导入完成",
		zap.Int("total", resp.Total),
		zap.Int("success", resp.Success),
		zap.Int("failed", resp.Failed))

	return resp, nil
}

// ── 内部辅助方法 ──

// requireAssistant 活动只能由助理创建与维护
func (s *eventService) requireAssistant(ctx context.Context, callerID string) error {
	caller, err := s.repo.Account.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoPermission
		}
		s.logger.Error("查询账号失败", zap.String("id", callerID), zap.Error(err))
		return err
	}
	if !caller.IsAssistant() {
		return ErrNoPermission
	}
	return nil
}

// validateEvent 校验活动不变量；checkPast 为 true 时要求日期不早于今天（活动时区）
// 同时把时间规范为两位小时的 HH:MM
func (s *eventService) validateEvent(event *model.Event, checkPast bool) error {
	start, err := model.NormalizeClock(event.StartTime)
	if err != nil {
		return fmt.Errorf("开始时间格式错误: %w", err)
	}
	end, err := model.NormalizeClock(event.EndTime)
	if err != nil {
		return fmt.Errorf("结束时间格式错误: %w", err)
	}
	event.StartTime, event.EndTime = start, end
	if end <= start {
		return ErrEventTimeOrder
	}
	if checkPast && event.EventDate.Format(dateLayout) < s.now().In(s.loc).Format(dateLayout) {
		return ErrEventDateInPast
	}
	if event.IsOnline() && (event.MeetingLink == nil || strings.TrimSpace(*event.MeetingLink) == "") {
		return ErrEventMeetingLinkRequired
	}
	return nil
}

// parseEventDate 解析 YYYY-MM-DD，返回 UTC 零点的日期值
func parseEventDate(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, ErrEventInvalidDate
	}
	return t, nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// toEventResponse 将 model.Event 转换为 dto.EventResponse
func toEventResponse(e *model.Event) *dto.EventResponse {
	return &dto.EventResponse{
		ID:                   e.EventID,
		Title:                e.Title,
		Description:          e.Description,
		EventType:            e.EventType,
		Modality:             e.Modality,
		Speaker:              e.Speaker,
		EventDate:            e.EventDate.Format(dateLayout),
		StartTime:            e.StartTime,
		EndTime:              e.EndTime,
		Location:             e.Location,
		MaxCapacity:          e.MaxCapacity,
		IsActive:             e.IsActive,
		RequiresRegistration: e.RequiresRegistration,
		MeetingLink:          e.MeetingLink,
		MeetingID:            e.MeetingID,
		CreatedBy:            e.CreatedBy,
	}
}
