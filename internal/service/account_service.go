package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/val20-11/mac-attendance/internal/dto"
	"github.com/val20-11/mac-attendance/internal/model"
	"github.com/val20-11/mac-attendance/internal/repository"
	pkgerrors "github.com/val20-11/mac-attendance/pkg/errors"
)

// ── 账号模块业务错误 ──

var (
	ErrAccountNumberExists = errors.New("学号已存在")
	ErrImportNoData        = errors.New("导入文件中没有有效数据")
	ErrImportBadHeader     = errors.New("表头缺少必需列：学号、姓名、角色")
	ErrImportTooManyRows   = errors.New("单次导入不能超过 1000 行")
	ErrImportUnreadable    = errors.New("无法解析 Excel 文件")
)

const (
	maxImportRows = 1000
	qrCodeSize    = 256
)

var accountNumberPattern = regexp.MustCompile(`^[0-9]{7}$`)

// AccountService 账号业务接口
type AccountService interface {
	CreateAccount(ctx context.Context, req *dto.CreateAccountRequest, callerID string) (*dto.AccountResponse, error)
	GetAccount(ctx context.Context, accountNumber string) (*dto.AccountResponse, error)
	ListAccounts(ctx context.Context, req *dto.AccountListRequest) ([]dto.AccountResponse, int64, error)
	ParseImportFile(reader io.Reader) ([]ImportAccountRow, error)
	ImportAccounts(ctx context.Context, rows []ImportAccountRow, callerID string) (*dto.ImportAccountResponse, error)
	// QRCode 生成编码学号的 PNG 二维码，供签到时扫码登记
	QRCode(ctx context.Context, accountNumber string) ([]byte, error)
}

// ImportAccountRow Excel 导入解析后的单行数据
type ImportAccountRow struct {
	Row           int
	AccountNumber string
	Name          string
	Role          string
	Career        string
	Semester      string
}

type accountService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAccountService 创建 AccountService 实例
func NewAccountService(repo *repository.Repository, logger *zap.Logger) AccountService {
	return &accountService{repo: repo, logger: logger}
}

// ────────────────────── CreateAccount ──────────────────────

func (s *accountService) CreateAccount(ctx context.Context, req *dto.CreateAccountRequest, callerID string) (*dto.AccountResponse, error) {
	if _, err := s.repo.Account.GetByAccountNumber(ctx, req.AccountNumber); err == nil {
		return nil, ErrAccountNumberExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	account := &model.Account{
		AccountNumber:   req.AccountNumber,
		Name:            req.Name,
		PasswordHash:    string(hash),
		Role:            req.Role,
		Career:          req.Career,
		Semester:        req.Semester,
		IsSuperuser:     req.IsSuperuser,
		SoftDeleteModel: model.SoftDeleteModel{BaseModel: model.BaseModel{CreatedBy: &callerID}},
	}

	if err := s.repo.Account.Create(ctx, account); err != nil {
		if errors.Is(err, pkgerrors.ErrUniqueViolation) {
			return nil, ErrAccountNumberExists
		}
		s.logger.Error("创建账号失败", zap.Error(err))
		return nil, err
	}

	return toAccountResponse(account), nil
}

// ────────────────────── GetAccount ──────────────────────

func (s *accountService) GetAccount(ctx context.Context, accountNumber string) (*dto.AccountResponse, error) {
	account, err := s.repo.Account.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		s.logger.Error("查询账号失败", zap.String("account_number", accountNumber), zap.Error(err))
		return nil, err
	}
	return toAccountResponse(account), nil
}

// ────────────────────── ListAccounts ──────────────────────

func (s *accountService) ListAccounts(ctx context.Context, req *dto.AccountListRequest) ([]dto.AccountResponse, int64, error) {
	filters := &repository.AccountListFilters{
		Role:    req.Role,
		Keyword: req.Keyword,
	}

	accounts, total, err := s.repo.Account.ListWithFilters(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出账号失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.AccountResponse, 0, len(accounts))
	for i := range accounts {
		result = append(result, *toAccountResponse(&accounts[i]))
	}
	return result, total, nil
}

// ────────────────────── ParseImportFile ──────────────────────

// ParseImportFile 解析导入 Excel 文件，返回解析后的行数据
func (s *accountService) ParseImportFile(reader io.Reader) ([]ImportAccountRow, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportUnreadable, err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取工作表失败: %v", ErrImportUnreadable, err)
	}

	if len(excelRows) < 2 {
		return nil, ErrImportNoData
	}

	// 解析表头（支持灵活列序）
	colIndex := parseHeaderIndex(excelRows[0])
	if colIndex["account_number"] < 0 || colIndex["name"] < 0 || colIndex["role"] < 0 {
		return nil, ErrImportBadHeader
	}

	cell := func(row []string, key string) string {
		if idx := colIndex[key]; idx >= 0 && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	var rows []ImportAccountRow
	for i := 1; i < len(excelRows); i++ {
		row := excelRows[i]
		item := ImportAccountRow{
			Row:           i + 1,
			AccountNumber: cell(row, "account_number"),
			Name:          cell(row, "name"),
			Role:          strings.ToLower(cell(row, "role")),
			Career:        cell(row, "career"),
			Semester:      cell(row, "semester"),
		}

		// 跳过全空行
		if item.AccountNumber == "" && item.Name == "" && item.Role == "" {
			continue
		}

		rows = append(rows, item)
	}

	if len(rows) == 0 {
		return nil, ErrImportNoData
	}
	if len(rows) > maxImportRows {
		return nil, ErrImportTooManyRows
	}

	return rows, nil
}

// parseHeaderIndex 解析 Excel 表头，返回列名 -> 列索引映射
func parseHeaderIndex(header []string) map[string]int {
	idx := map[string]int{
		"account_number": -1,
		"name":           -1,
		"role":           -1,
		"career":         -1,
		"semester":       -1,
	}
	for i, h := range header {
		lower := strings.ToLower(strings.TrimSpace(h))
		switch lower {
		case "学号", "account_number", "número de cuenta", "numero de cuenta":
			idx["account_number"] = i
		case "姓名", "name", "nombre":
			idx["name"] = i
		case "角色", "role", "rol":
			idx["role"] = i
		case "专业", "career", "carrera":
			idx["career"] = i
		case "学期", "semester", "semestre":
			idx["semester"] = i
		}
	}
	return idx
}

// ────────────────────── ImportAccounts ──────────────────────

func (s *accountService) ImportAccounts(ctx context.Context, rows []ImportAccountRow, callerID string) (*dto.ImportAccountResponse, error) {
	resp := &dto.ImportAccountResponse{Total: len(rows)}

	// 第一阶段：数据预校验（不接触数据库写操作）
	var valid []*model.Account
	seen := make(map[string]int)

	for _, row := range rows {
		fail := func(reason string) {
			resp.Failed++
			resp.Errors = append(resp.Errors, dto.ImportAccountError{Row: row.Row, Reason: reason})
		}

		if row.AccountNumber == "" || row.Name == "" || row.Role == "" {
			fail("必填字段为空")
			continue
		}
		if !accountNumberPattern.MatchString(row.AccountNumber) {
			fail(fmt.Sprintf("学号必须为 7 位数字: %s", row.AccountNumber))
			continue
		}
		if row.Role != model.RoleStudent && row.Role != model.RoleAssistant {
			fail(fmt.Sprintf("未知角色: %s", row.Role))
			continue
		}
		if prev, dup := seen[row.AccountNumber]; dup {
			fail(fmt.Sprintf("学号与第 %d 行重复", prev))
			continue
		}

		var semester *int
		if row.Semester != "" {
			n, err := strconv.Atoi(row.Semester)
			if err != nil || n <= 0 {
				fail(fmt.Sprintf("学期格式错误: %s", row.Semester))
				continue
			}
			semester = &n
		}

		// 检查学号唯一性
		if _, err := s.repo.Account.GetByAccountNumber(ctx, row.AccountNumber); err == nil {
			fail(fmt.Sprintf("学号已存在: %s", row.AccountNumber))
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("查询账号失败", zap.Error(err))
			return nil, err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(defaultImportPassword(row.AccountNumber)), bcrypt.DefaultCost)
		if err != nil {
			fail("密码哈希失败")
			continue
		}

		seen[row.AccountNumber] = row.Row
		valid = append(valid, &model.Account{
			AccountNumber:   row.AccountNumber,
			Name:            row.Name,
			PasswordHash:    string(hash),
			Role:            row.Role,
			Career:          row.Career,
			Semester:        semester,
			SoftDeleteModel: model.SoftDeleteModel{BaseModel: model.BaseModel{CreatedBy: &callerID}},
		})
	}

	// 第二阶段：在事务中批量创建所有通过校验的账号
	if len(valid) > 0 {
		err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
			for _, account := range valid {
				if err := tx.Account.Create(ctx, account); err != nil {
					return fmt.Errorf("学号 %s 写入数据库失败，已回滚全部导入: %w", account.AccountNumber, err)
				}
			}
			return nil
		})
		if err != nil {
			s.logger.Error("导入账号写入失败，事务回滚", zap.Error(err))
			return nil, err
		}
		resp.Success = len(valid)
	}

	return resp, nil
}

// defaultImportPassword 导入账号的初始密码 = "Mac" + 学号
func defaultImportPassword(accountNumber string) string {
	return "Mac" + accountNumber
}

// ────────────────────── QRCode ──────────────────────

func (s *accountService) QRCode(ctx context.Context, accountNumber string) ([]byte, error) {
	account, err := s.repo.Account.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		s.logger.Error("查询账号失败", zap.String("account_number", accountNumber), zap.Error(err))
		return nil, err
	}

	png, err := qrcode.Encode(account.AccountNumber, qrcode.Medium, qrCodeSize)
	if err != nil {
		s.logger.Error("生成二维码失败", zap.Error(err))
		return nil, err
	}
	return png, nil
}

// ── 内部辅助方法 ──

// toAccountResponse 将 model.Account 转换为 dto.AccountResponse
func toAccountResponse(account *model.Account) *dto.AccountResponse {
	resp := &dto.AccountResponse{
		ID:            account.AccountID,
		AccountNumber: account.AccountNumber,
		Name:          account.Name,
		Role:          account.Role,
		Career:        account.Career,
		Semester:      account.Semester,
		IsSuperuser:   account.IsSuperuser,
	}
	if !account.CreatedAt.IsZero() {
		resp.CreatedAt = account.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}
