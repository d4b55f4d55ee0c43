package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/val20-11/mac-attendance/internal/dto"
	"github.com/val20-11/mac-attendance/internal/service"
	"github.com/val20-11/mac-attendance/pkg/response"
)

// EventHandler 活动模块 HTTP 处理器
type EventHandler struct {
	eventSvc service.EventService
	logger   *zap.Logger
}

// NewEventHandler 创建 EventHandler
func NewEventHandler(eventSvc service.EventService, logger *zap.Logger) *EventHandler {
	return &EventHandler{eventSvc: eventSvc, logger: logger}
}

// ListEvents 活动列表（公开）
// GET /api/v1/events
func (h *EventHandler) ListEvents(c *gin.Context) {
	var req dto.EventListRequest
	if !bindQuery(c, &req) {
		return
	}

	events, total, err := h.eventSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OKPage(c, events, total, req.GetPage(), req.GetPageSize())
}

// GetEvent 活动详情
// GET /api/v1/events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, err := h.eventSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, event)
}

// CreateEvent 创建活动
// POST /api/v1/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req dto.CreateEventRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	event, err := h.eventSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.Created(c, event)
}

// UpdateEvent 更新活动
// PUT /api/v1/events/:id
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	var req dto.UpdateEventRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	event, err := h.eventSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, event)
}

// DeactivateEvent 停用活动
// DELETE /api/v1/events/:id
func (h *EventHandler) DeactivateEvent(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.eventSvc.Deactivate(c.Request.Context(), c.Param("id"), callerID); err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, nil)
}

// ImportICS 从 iCalendar 文件批量导入活动
// POST /api/v1/events/import  multipart: file=<ics>
func (h *EventHandler) ImportICS(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, 13010, "请上传 ICS 文件（字段名 file）")
		return
	}
	defer file.Close()

	result, err := h.eventSvc.ImportICS(c.Request.Context(), file, callerID)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.Created(c, result)
}

// handleEventError 统一处理活动模块业务错误
func (h *EventHandler) handleEventError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		response.NotFound(c, 13001, "活动不存在或未启用")
	case errors.Is(err, service.ErrNoPermission):
		response.Forbidden(c, 13002, "只有助理可以管理活动")
	case errors.Is(err, service.ErrEventTimeOrder):
		response.UnprocessableEntity(c, 13003, "结束时间必须晚于开始时间")
	case errors.Is(err, service.ErrEventDateInPast):
		response.UnprocessableEntity(c, 13004, "活动日期不能早于今天")
	case errors.Is(err, service.ErrEventMeetingLinkRequired):
		response.UnprocessableEntity(c, 13005, "线上或混合活动必须提供会议链接")
	case errors.Is(err, service.ErrEventInvalidDate):
		response.BadRequest(c, 13006, "日期格式错误，应为 YYYY-MM-DD")
	case errors.Is(err, service.ErrICSEmpty):
		response.BadRequest(c, 13011, "ICS 文件中没有活动")
	case errors.Is(err, service.ErrICSUnreadable):
		response.BadRequest(c, 13012, "ICS 格式解析失败")
	default:
		internalError(c, h.logger, err)
	}
}
