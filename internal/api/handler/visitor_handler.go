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

// VisitorHandler 校外访客模块 HTTP 处理器
type VisitorHandler struct {
	visitorSvc service.VisitorService
	logger     *zap.Logger
}

// NewVisitorHandler 创建 VisitorHandler
func NewVisitorHandler(visitorSvc service.VisitorService, logger *zap.Logger) *VisitorHandler {
	return &VisitorHandler{visitorSvc: visitorSvc, logger: logger}
}

// SelfRegister 访客自助登记（公开，限流）
// POST /api/v1/external/register
func (h *VisitorHandler) SelfRegister(c *gin.Context) {
	var req dto.VisitorRegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	visitor, err := h.visitorSvc.SelfRegister(c.Request.Context(), &req)
	if err != nil {
		h.handleVisitorError(c, err)
		return
	}

	response.Created(c, visitor)
}

// Create 助理登记访客，直接审批通过
// POST /api/v1/external
func (h *VisitorHandler) Create(c *gin.Context) {
	var req dto.VisitorRegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	visitor, err := h.visitorSvc.CreateByAssistant(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleVisitorError(c, err)
		return
	}

	response.Created(c, visitor)
}

// List 按状态列出访客
// GET /api/v1/external?status=pending
func (h *VisitorHandler) List(c *gin.Context) {
	var req dto.VisitorListRequest
	if !bindQuery(c, &req) {
		return
	}

	visitors, total, err := h.visitorSvc.ListByStatus(c.Request.Context(), &req)
	if err != nil {
		h.handleVisitorError(c, err)
		return
	}

	response.OKPage(c, visitors, total, req.GetPage(), req.GetPageSize())
}

// Search 按姓名、编号、邮箱或单位搜索访客
// GET /api/v1/external/search?q=
func (h *VisitorHandler) Search(c *gin.Context) {
	var req dto.VisitorSearchRequest
	if !bindQuery(c, &req) {
		return
	}

	visitors, err := h.visitorSvc.Search(c.Request.Context(), req.Keyword)
	if err != nil {
		h.handleVisitorError(c, err)
		return
	}

	response.OK(c, gin.H{"list": visitors})
}

// Process 审批访客
// POST /api/v1/external/:id/approve  {action, reason}
func (h *VisitorHandler) Process(c *gin.Context) {
	var req dto.ProcessVisitorRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.visitorSvc.Process(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		h.handleVisitorError(c, err)
		return
	}

	response.OK(c, result)
}

// handleVisitorError 统一处理访客模块业务错误
func (h *VisitorHandler) handleVisitorError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrVisitorNotFound):
		response.NotFound(c, 15001, "校外访客不存在")
	case errors.Is(err, service.ErrVisitorInvalidAction):
		response.BadRequest(c, 15002, "无效的审批操作，仅支持 approve 或 reject")
	case errors.Is(err, service.ErrVisitorNumberExhausted):
		h.logger.Error("生成访客编号失败", zap.Error(err))
		response.Error(c, http.StatusServiceUnavailable, 15003, "生成访客编号失败，请稍后重试")
	default:
		internalError(c, h.logger, err)
	}
}
