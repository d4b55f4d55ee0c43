package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/val20-11/mac-attendance/internal/dto"
	"github.com/val20-11/mac-attendance/internal/service"
	"github.com/val20-11/mac-attendance/pkg/response"
)

// AttendanceHandler 签到与出勤统计 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
	statsSvc      service.StatsService
	logger        *zap.Logger
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService, statsSvc service.StatsService, logger *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc, statsSvc: statsSvc, logger: logger}
}

// Register 助理登记签到
// POST /api/v1/attendance
func (h *AttendanceHandler) Register(c *gin.Context) {
	var req dto.RegisterAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}

	registrarID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.attendanceSvc.Register(c.Request.Context(), &req, registrarID)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.Created(c, result)
}

// GetStudentStats 学生出勤统计；学生只能查自己，助理需指定学号
// GET /api/v1/attendance/stats?account_number=
func (h *AttendanceHandler) GetStudentStats(c *gin.Context) {
	var req dto.StudentStatsRequest
	if !bindQuery(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	stats, err := h.statsSvc.GetStudentStats(c.Request.Context(), req.AccountNumber, callerID, role)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, stats)
}

// RefreshAllStats 全量重算出勤统计（超级管理员）
// POST /api/v1/attendance/stats/refresh
func (h *AttendanceHandler) RefreshAllStats(c *gin.Context) {
	n, err := h.statsSvc.RefreshAll(c.Request.Context())
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, dto.RefreshAllStatsResponse{Refreshed: n})
}

// Recent 最近签到
// GET /api/v1/attendance/recent
func (h *AttendanceHandler) Recent(c *gin.Context) {
	list, err := h.attendanceSvc.Recent(c.Request.Context())
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// List 签到记录列表（超级管理员）
// GET /api/v1/attendance
func (h *AttendanceHandler) List(c *gin.Context) {
	var req dto.AttendanceListRequest
	if !bindQuery(c, &req) {
		return
	}

	records, total, err := h.attendanceSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OKPage(c, records, total, req.GetPage(), req.GetPageSize())
}

// Update 修改签到记录（超级管理员）
// PUT /api/v1/attendance/:id
func (h *AttendanceHandler) Update(c *gin.Context) {
	var req dto.UpdateAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	record, err := h.attendanceSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, record)
}

// Invalidate 作废签到记录（超级管理员）
// DELETE /api/v1/attendance/:id
func (h *AttendanceHandler) Invalidate(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.attendanceSvc.Invalidate(c.Request.Context(), c.Param("id"), callerID); err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, nil)
}

// handleAttendanceError 统一处理签到与统计模块业务错误
func (h *AttendanceHandler) handleAttendanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		response.NotFound(c, 14001, err.Error())
	case errors.Is(err, service.ErrAttendeeNotFound):
		response.NotFound(c, 14002, err.Error())
	case errors.Is(err, service.ErrRegistrarNotAssistant):
		response.Forbidden(c, 14003, err.Error())
	case errors.Is(err, service.ErrRegistrationTooEarly):
		response.UnprocessableEntity(c, 14004, err.Error())
	case errors.Is(err, service.ErrRegistrationTooLate):
		response.UnprocessableEntity(c, 14005, err.Error())
	case errors.Is(err, service.ErrAttendanceDuplicate):
		response.Conflict(c, 14006, err.Error())
	case errors.Is(err, service.ErrAttendanceOverlap):
		response.Conflict(c, 14007, err.Error())
	case errors.Is(err, service.ErrAttendanceNotFound):
		response.NotFound(c, 14008, err.Error())
	case errors.Is(err, service.ErrNoPermission):
		response.Forbidden(c, 14009, "仅超级管理员可修改签到记录")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 16001, err.Error())
	case errors.Is(err, service.ErrStatsForbidden):
		response.Error(c, http.StatusForbidden, 16002, err.Error())
	case errors.Is(err, service.ErrSystemConfigNotFound):
		response.NotFound(c, 17001, err.Error())
	default:
		internalError(c, h.logger, err)
	}
}
