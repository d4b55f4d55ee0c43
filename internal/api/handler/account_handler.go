package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/val20-11/mac-attendance/internal/api/middleware"
	"github.com/val20-11/mac-attendance/internal/dto"
	"github.com/val20-11/mac-attendance/internal/model"
	"github.com/val20-11/mac-attendance/internal/service"
	"github.com/val20-11/mac-attendance/pkg/response"
)

// AccountHandler 账号模块 HTTP 处理器
type AccountHandler struct {
	accountSvc service.AccountService
	logger     *zap.Logger
}

// NewAccountHandler 创建 AccountHandler
func NewAccountHandler(accountSvc service.AccountService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc, logger: logger}
}

// CreateAccount 创建账号（超级管理员）
// POST /api/v1/accounts
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req dto.CreateAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	account, err := h.accountSvc.CreateAccount(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleAccountError(c, err)
		return
	}

	response.Created(c, account)
}

// ListAccounts 账号列表
// GET /api/v1/accounts
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	var req dto.AccountListRequest
	if !bindQuery(c, &req) {
		return
	}

	accounts, total, err := h.accountSvc.ListAccounts(c.Request.Context(), &req)
	if err != nil {
		h.handleAccountError(c, err)
		return
	}

	response.OKPage(c, accounts, total, req.GetPage(), req.GetPageSize())
}

// GetAccount 按学号查询账号
// GET /api/v1/accounts/:number
func (h *AccountHandler) GetAccount(c *gin.Context) {
	account, err := h.accountSvc.GetAccount(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.handleAccountError(c, err)
		return
	}

	response.OK(c, account)
}

// ImportAccounts Excel 批量导入账号（超级管理员）
// POST /api/v1/accounts/import  multipart: file=<xlsx>
func (h *AccountHandler) ImportAccounts(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, 12010, "请上传 Excel 文件（字段名 file）")
		return
	}
	defer file.Close()

	rows, err := h.accountSvc.ParseImportFile(file)
	if err != nil {
		h.handleAccountError(c, err)
		return
	}

	result, err := h.accountSvc.ImportAccounts(c.Request.Context(), rows, callerID)
	if err != nil {
		h.handleAccountError(c, err)
		return
	}

	response.OK(c, result)
}

// QRCode 学号二维码（PNG）
// GET /api/v1/accounts/:number/qrcode
func (h *AccountHandler) QRCode(c *gin.Context) {
	number := c.Param("number")
	// 学生只能获取自己的二维码
	if c.GetString(middleware.CtxRole) == model.RoleStudent && c.GetString(middleware.CtxAccountNumber) != number {
		response.Forbidden(c, 12003, "只能获取本人的二维码")
		return
	}

	png, err := h.accountSvc.QRCode(c.Request.Context(), number)
	if err != nil {
		h.handleAccountError(c, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}

// handleAccountError 统一处理账号模块业务错误
func (h *AccountHandler) handleAccountError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		response.NotFound(c, 12001, "账号不存在")
	case errors.Is(err, service.ErrAccountNumberExists):
		response.Conflict(c, 12002, "学号已存在")
	case errors.Is(err, service.ErrImportNoData):
		response.BadRequest(c, 12011, "导入文件中没有有效数据")
	case errors.Is(err, service.ErrImportBadHeader):
		response.BadRequest(c, 12012, "表头缺少必需列：学号、姓名、角色")
	case errors.Is(err, service.ErrImportTooManyRows):
		response.BadRequest(c, 12013, "单次导入不能超过 1000 行")
	case errors.Is(err, service.ErrImportUnreadable):
		response.BadRequest(c, 12014, "无法解析 Excel 文件")
	default:
		internalError(c, h.logger, err)
	}
}
