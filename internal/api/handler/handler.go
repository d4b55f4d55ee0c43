package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/val20-11/mac-attendance/internal/api/middleware"
	"github.com/val20-11/mac-attendance/internal/service"
	"github.com/val20-11/mac-attendance/pkg/response"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth         *AuthHandler
	Account      *AccountHandler
	Event        *EventHandler
	Attendance   *AttendanceHandler
	Visitor      *VisitorHandler
	SystemConfig *SystemConfigHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth, logger),
		Account:      NewAccountHandler(svc.Account, logger),
		Event:        NewEventHandler(svc.Event, logger),
		Attendance:   NewAttendanceHandler(svc.Attendance, svc.Stats, logger),
		Visitor:      NewVisitorHandler(svc.Visitor, logger),
		SystemConfig: NewSystemConfigHandler(svc.SystemConfig, logger),
	}
}

// internalError 未识别的错误统一返回 500，细节只写日志
func internalError(c *gin.Context, logger *zap.Logger, err error) {
	logger.Error("请求处理出错",
		zap.String("route", c.FullPath()),
		zap.String("request_id", c.GetString(middleware.CtxRequestID)),
		zap.Error(err))
	_ = c.Error(err)
	response.InternalError(c)
}
