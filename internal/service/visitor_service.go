package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/val20-11/mac-attendance/internal/dto"
	"github.com/val20-11/mac-attendance/internal/model"
	"github.com/val20-11/mac-attendance/internal/repository"
	"github.com/val20-11/mac-attendance/pkg/metrics"
)

// ── 校外访客模块业务错误 ──

var (
	ErrVisitorNotFound        = errors.New("校外访客不存在")
	ErrVisitorInvalidAction   = errors.New("无效的审批操作，仅支持 approve 或 reject")
	ErrVisitorNumberExhausted = errors.New("生成访客编号失败，请稍后重试")
)

const (
	visitorNumberPrefix   = "EXT"
	visitorNumberAttempts = 5
	visitorSearchLimit    = 20
)

// VisitorService 校外访客业务接口
type VisitorService interface {
	// SelfRegister 访客自助登记，状态为 pending
	SelfRegister(ctx context.Context, req *dto.VisitorRegisterRequest) (*dto.VisitorResponse, error)
	// CreateByAssistant 助理代为登记，直接审批通过
	CreateByAssistant(ctx context.Context, req *dto.VisitorRegisterRequest, callerID string) (*dto.VisitorResponse, error)
	Process(ctx context.Context, id string, req *dto.ProcessVisitorRequest, callerID string) (*dto.ProcessVisitorResponse, error)
	Search(ctx context.Context, keyword string) ([]dto.VisitorResponse, error)
	ListByStatus(ctx context.Context, req *dto.VisitorListRequest) ([]dto.VisitorResponse, int64, error)
}

type visitorService struct {
	repo    *repository.Repository
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *zap.Logger
}

// NewVisitorService 创建 VisitorService 实例
func NewVisitorService(repo *repository.Repository, m *metrics.Metrics, logger *zap.Logger) VisitorService {
	return &visitorService{repo: repo, metrics: m, now: time.Now, logger: logger}
}

// ────────────────────── SelfRegister ──────────────────────

func (s *visitorService) SelfRegister(ctx context.Context, req *dto.VisitorRegisterRequest) (*dto.VisitorResponse, error) {
	visitor := newVisitorFromRequest(req)
	visitor.Status = model.VisitorStatusPending

	if err := s.create(ctx, visitor); err != nil {
		return nil, err
	}

	s.logger.Info("校外访客自助登记",
		zap.String("visitor_id", visitor.VisitorID),
		zap.String("account_number", visitor.AccountNumber))

	return toVisitorResponse(visitor), nil
}

// ────────────────────── CreateByAssistant ──────────────────────

func (s *visitorService) CreateByAssistant(ctx context.Context, req *dto.VisitorRegisterRequest, callerID string) (*dto.VisitorResponse, error) {
	now := s.now()
	visitor := newVisitorFromRequest(req)
	visitor.Status = model.VisitorStatusApproved
	visitor.ApprovedBy = &callerID
	visitor.ProcessedAt = &now

	if err := s.create(ctx, visitor); err != nil {
		return nil, err
	}

	s.logger.Info("助理登记校外访客",
		zap.String("visitor_id", visitor.VisitorID),
		zap.String("created_by", callerID))

	return toVisitorResponse(visitor), nil
}

// ────────────────────── Process ──────────────────────

func (s *visitorService) Process(ctx context.Context, id string, req *dto.ProcessVisitorRequest, callerID string) (*dto.ProcessVisitorResponse, error) {
	visitor, err := s.repo.ExternalVisitor.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVisitorNotFound
		}
		s.logger.Error("查询校外访客失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	// 已处理的访客允许再次变更决定，仅记录告警
	if visitor.Status != model.VisitorStatusPending {
		s.logger.Warn("校外访客状态被再次变更",
			zap.String("visitor_id", id),
			zap.String("from", visitor.Status),
			zap.String("action", req.Action))
	}

	now := s.now()
	var message string
	switch req.Action {
	case "approve":
		visitor.Status = model.VisitorStatusApproved
		visitor.RejectionReason = ""
		message = fmt.Sprintf("已批准校外访客 %s", visitor.Name)
	case "reject":
		visitor.Status = model.VisitorStatusRejected
		visitor.RejectionReason = req.Reason
		message = fmt.Sprintf("已拒绝校外访客 %s", visitor.Name)
	default:
		return nil, ErrVisitorInvalidAction
	}
	visitor.ApprovedBy = &callerID
	visitor.ProcessedAt = &now

	if err := s.repo.ExternalVisitor.Update(ctx, visitor); err != nil {
		s.logger.Error("更新校外访客失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.metrics.VisitorDecisions.WithLabelValues(req.Action).Inc()
	s.logger.Info("校外访客审批",
		zap.String("visitor_id", id),
		zap.String("action", req.Action),
		zap.String("processed_by", callerID))

	return &dto.ProcessVisitorResponse{Status: visitor.Status, Message: message}, nil
}

// ────────────────────── Search / ListByStatus ──────────────────────

func (s *visitorService) Search(ctx context.Context, keyword string) ([]dto.VisitorResponse, error) {
	visitors, err := s.repo.ExternalVisitor.Search(ctx, keyword, visitorSearchLimit)
	if err != nil {
		s.logger.Error("搜索校外访客失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.VisitorResponse, 0, len(visitors))
	for i := range visitors {
		result = append(result, *toVisitorResponse(&visitors[i]))
	}
	return result, nil
}

func (s *visitorService) ListByStatus(ctx context.Context, req *dto.VisitorListRequest) ([]dto.VisitorResponse, int64, error) {
	visitors, total, err := s.repo.ExternalVisitor.List(ctx, req.Status, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出校外访客失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.VisitorResponse, 0, len(visitors))
	for i := range visitors {
		result = append(result, *toVisitorResponse(&visitors[i]))
	}
	return result, total, nil
}

// ── 内部辅助方法 ──

// create 分配唯一的 EXT 编号并写入
func (s *visitorService) create(ctx context.Context, visitor *model.ExternalVisitor) error {
	for i := 0; i < visitorNumberAttempts; i++ {
		number, err := generateVisitorNumber()
		if err != nil {
			s.logger.Error("生成访客编号失败", zap.Error(err))
			return err
		}
		exists, err := s.repo.ExternalVisitor.ExistsAccountNumber(ctx, number)
		if err != nil {
			s.logger.Error("检查访客编号失败", zap.Error(err))
			return err
		}
		if exists {
			continue
		}

		visitor.AccountNumber = number
		if err := s.repo.ExternalVisitor.Create(ctx, visitor); err != nil {
			s.logger.Error("创建校外访客失败", zap.Error(err))
			return err
		}
		return nil
	}
	return ErrVisitorNumberExhausted
}

// generateVisitorNumber 生成 EXT + 7 位随机数字
func generateVisitorNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%07d", visitorNumberPrefix, n.Int64()), nil
}

func newVisitorFromRequest(req *dto.VisitorRegisterRequest) *model.ExternalVisitor {
	return &model.ExternalVisitor{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Institution: req.Institution,
		Position:    req.Position,
		Reason:      req.Reason,
	}
}

// toVisitorResponse 将 model.ExternalVisitor 转换为 dto.VisitorResponse
func toVisitorResponse(v *model.ExternalVisitor) *dto.VisitorResponse {
	resp := &dto.VisitorResponse{
		ID:              v.VisitorID,
		AccountNumber:   v.AccountNumber,
		Name:            v.Name,
		Email:           v.Email,
		Phone:           v.Phone,
		Institution:     v.Institution,
		Position:        v.Position,
		Reason:          v.Reason,
		Status:          v.Status,
		RejectionReason: v.RejectionReason,
	}
	if v.ApprovedBy != nil {
		resp.ApprovedBy = *v.ApprovedBy
	}
	if !v.CreatedAt.IsZero() {
		resp.CreatedAt = v.CreatedAt.Format(time.RFC3339)
	}
	if v.ProcessedAt != nil {
		resp.ProcessedAt = v.ProcessedAt.Format(time.RFC3339)
	}
	return resp
}
