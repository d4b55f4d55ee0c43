package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/val20-11/mac-attendance/internal/model"
	"github.com/val20-11/mac-attendance/internal/repository"
	pkgerrors "github.com/val20-11/mac-attendance/pkg/errors"
)

// ── Mock 仓储集合 ──

type mockRepos struct {
	accounts   *mockAccountRepo
	visitors   *mockVisitorRepo
	events     *mockEventRepo
	attendance *mockAttendanceRepo
	stats      *mockStatsRepo
	config     *mockSystemConfigRepo
}

// newMockRepository 组装不绑定数据库的 Repository，WithTx 直接复用自身
func newMockRepository() (*repository.Repository, *mockRepos) {
	m := &mockRepos{
		accounts: newMockAccountRepo(),
		visitors: newMockVisitorRepo(),
		events:   newMockEventRepo(),
		stats:    newMockStatsRepo(),
		config:   newMockSystemConfigRepo(),
	}
	m.attendance = newMockAttendanceRepo(m.accounts, m.visitors, m.events)

	repo := &repository.Repository{
		Account:         m.accounts,
		ExternalVisitor: m.visitors,
		Event:           m.events,
		Attendance:      m.attendance,
		AttendanceStats: m.stats,
		SystemConfig:    m.config,
	}
	return repo, m
}

// ── Mock AccountRepository ──

type mockAccountRepo struct {
	accounts map[string]*model.Account // key: account_id
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{accounts: make(map[string]*model.Account)}
}

func (m *mockAccountRepo) add(id, number, name, role string) *model.Account {
	a := &model.Account{AccountID: id, AccountNumber: number, Name: name, Role: role}
	m.accounts[id] = a
	return a
}

func (m *mockAccountRepo) Create(_ context.Context, account *model.Account) error {
	for _, a := range m.accounts {
		if a.AccountNumber == account.AccountNumber {
			return pkgerrors.ErrUniqueViolation
		}
	}
	if account.AccountID == "" {
		account.AccountID = "acc-" + account.AccountNumber
	}
	m.accounts[account.AccountID] = account
	return nil
}

func (m *mockAccountRepo) GetByID(_ context.Context, id string) (*model.Account, error) {
	if a, ok := m.accounts[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAccountRepo) GetByAccountNumber(_ context.Context, number string) (*model.Account, error) {
	for _, a := range m.accounts {
		if a.AccountNumber == number {
			return a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAccountRepo) GetByNumberAndRole(_ context.Context, number, role string) (*model.Account, error) {
	for _, a := range m.accounts {
		if a.AccountNumber == number && a.Role == role {
			return a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAccountRepo) Update(_ context.Context, account *model.Account) error {
	m.accounts[account.AccountID] = account
	return nil
}

func (m *mockAccountRepo) ListWithFilters(_ context.Context, filters *repository.AccountListFilters, offset, limit int) ([]model.Account, int64, error) {
	var result []model.Account
	for _, a := range m.accounts {
		if filters != nil && filters.Role != "" && a.Role != filters.Role {
			continue
		}
		if filters != nil && filters.Keyword != "" &&
			!strings.Contains(a.Name, filters.Keyword) && !strings.Contains(a.AccountNumber, filters.Keyword) {
			continue
		}
		result = append(result, *a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AccountNumber < result[j].AccountNumber })
	return paginate(result, offset, limit), int64(len(result)), nil
}

func (m *mockAccountRepo) ListIDsByRole(_ context.Context, role string) ([]string, error) {
	var ids []string
	for id, a := range m.accounts {
		if a.Role == role {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ── Mock ExternalVisitorRepository ──

type mockVisitorRepo struct {
	visitors map[string]*model.ExternalVisitor // key: visitor_id
	seq      int
}

func newMockVisitorRepo() *mockVisitorRepo {
	return &mockVisitorRepo{visitors: make(map[string]*model.ExternalVisitor)}
}

func (m *mockVisitorRepo) Create(_ context.Context, v *model.ExternalVisitor) error {
	for _, existing := range m.visitors {
		if existing.AccountNumber == v.AccountNumber {
			return pkgerrors.ErrUniqueViolation
		}
	}
	if v.VisitorID == "" {
		m.seq++
		v.VisitorID = fmt.Sprintf("visitor-%d", m.seq)
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	m.visitors[v.VisitorID] = v
	return nil
}

func (m *mockVisitorRepo) GetByID(_ context.Context, id string) (*model.ExternalVisitor, error) {
	if v, ok := m.visitors[id]; ok {
		return v, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockVisitorRepo) GetApprovedByNumber(_ context.Context, number string) (*model.ExternalVisitor, error) {
	for _, v := range m.visitors {
		if v.AccountNumber == number && v.Status == model.VisitorStatusApproved {
			return v, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockVisitorRepo) ExistsAccountNumber(_ context.Context, number string) (bool, error) {
	for _, v := range m.visitors {
		if v.AccountNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockVisitorRepo) Update(_ context.Context, v *model.ExternalVisitor) error {
	m.visitors[v.VisitorID] = v
	return nil
}

func (m *mockVisitorRepo) List(_ context.Context, status string, offset, limit int) ([]model.ExternalVisitor, int64, error) {
	var result []model.ExternalVisitor
	for _, v := range m.visitors {
		if status != "" && v.Status != status {
			continue
		}
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VisitorID < result[j].VisitorID })
	return paginate(result, offset, limit), int64(len(result)), nil
}

func (m *mockVisitorRepo) Search(_ context.Context, keyword string, limit int) ([]model.ExternalVisitor, error) {
	var result []model.ExternalVisitor
	kw := strings.ToLower(keyword)
	for _, v := range m.visitors {
		if strings.Contains(strings.ToLower(v.Name), kw) ||
			strings.Contains(strings.ToLower(v.AccountNumber), kw) ||
			strings.Contains(strings.ToLower(v.Institution), kw) {
			result = append(result, *v)
		}
	}
	return paginate(result, 0, limit), nil
}

// ── Mock EventRepository ──

type mockEventRepo struct {
	events map[string]*model.Event // key: event_id
	seq    int
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{events: make(map[string]*model.Event)}
}

// add 创建指定日期与时段的启用活动
func (m *mockEventRepo) add(id, title string, date time.Time, start, end string) *model.Event {
	e := &model.Event{
		EventID:   id,
		Title:     title,
		EventDate: date,
		StartTime: start,
		EndTime:   end,
		Modality:  model.ModalityInPerson,
		IsActive:  true,
	}
	m.events[id] = e
	return e
}

func (m *mockEventRepo) Create(_ context.Context, event *model.Event) error {
	if event.EventID == "" {
		m.seq++
		event.EventID = fmt.Sprintf("event-%d", m.seq)
	}
	m.events[event.EventID] = event
	return nil
}

func (m *mockEventRepo) BatchCreate(ctx context.Context, events []model.Event) error {
	for i := range events {
		if err := m.Create(ctx, &events[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockEventRepo) GetByID(_ context.Context, id string) (*model.Event, error) {
	if e, ok := m.events[id]; ok {
		return e, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEventRepo) GetActiveForUpdate(_ context.Context, id string) (*model.Event, error) {
	if e, ok := m.events[id]; ok && e.IsActive {
		return e, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEventRepo) Update(_ context.Context, event *model.Event) error {
	m.events[event.EventID] = event
	return nil
}

func (m *mockEventRepo) List(_ context.Context, filters *repository.EventListFilters, offset, limit int) ([]model.Event, int64, error) {
	var result []model.Event
	for _, e := range m.events {
		if (filters == nil || !filters.IncludeInactive) && !e.IsActive {
			continue
		}
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].EventDate.Equal(result[j].EventDate) {
			return result[i].EventDate.Before(result[j].EventDate)
		}
		return result[i].StartTime < result[j].StartTime
	})
	return paginate(result, offset, limit), int64(len(result)), nil
}

func (m *mockEventRepo) CountActive(_ context.Context) (int64, error) {
	var n int64
	for _, e := range m.events {
		if e.IsActive {
			n++
		}
	}
	return n, nil
}

// ── Mock AttendanceRepository ──

type mockAttendanceRepo struct {
	records  []*model.AttendanceRecord
	accounts *mockAccountRepo
	visitors *mockVisitorRepo
	events   *mockEventRepo
	seq      int
}

func newMockAttendanceRepo(accounts *mockAccountRepo, visitors *mockVisitorRepo, events *mockEventRepo) *mockAttendanceRepo {
	return &mockAttendanceRepo{accounts: accounts, visitors: visitors, events: events}
}

func sameAttendee(r *model.AttendanceRecord, a repository.Attendee) bool {
	if a.StudentID != nil {
		return r.StudentID != nil && *r.StudentID == *a.StudentID
	}
	if a.ExternalVisitorID != nil {
		return r.ExternalVisitorID != nil && *r.ExternalVisitorID == *a.ExternalVisitorID
	}
	return false
}

// preload 模拟关联预加载
func (m *mockAttendanceRepo) preload(r *model.AttendanceRecord) {
	if r.StudentID != nil {
		r.Student = m.accounts.accounts[*r.StudentID]
	}
	if r.ExternalVisitorID != nil {
		r.ExternalVisitor = m.visitors.visitors[*r.ExternalVisitorID]
	}
	r.Event = m.events.events[r.EventID]
	r.Registrar = m.accounts.accounts[r.RegisteredBy]
}

func (m *mockAttendanceRepo) Create(ctx context.Context, record *model.AttendanceRecord) error {
	key := repository.Attendee{StudentID: record.StudentID, ExternalVisitorID: record.ExternalVisitorID}
	if exists, _ := m.ExistsValid(ctx, key, record.EventID, ""); exists && record.IsValid {
		return pkgerrors.ErrUniqueViolation
	}
	if record.AttendanceID == "" {
		m.seq++
		record.AttendanceID = fmt.Sprintf("att-%d", m.seq)
	}
	stored := *record
	m.records = append(m.records, &stored)
	return nil
}

func (m *mockAttendanceRepo) GetByID(_ context.Context, id string) (*model.AttendanceRecord, error) {
	for _, r := range m.records {
		if r.AttendanceID == id {
			cp := *r
			m.preload(&cp)
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepo) Update(_ context.Context, record *model.AttendanceRecord) error {
	for _, r := range m.records {
		if r.AttendanceID == record.AttendanceID {
			r.EventID = record.EventID
			r.Notes = record.Notes
			r.IsValid = record.IsValid
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepo) ExistsValid(_ context.Context, attendee repository.Attendee, eventID, excludeID string) (bool, error) {
	for _, r := range m.records {
		if r.IsValid && r.EventID == eventID && r.AttendanceID != excludeID && sameAttendee(r, attendee) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAttendanceRepo) ListValidByStudentOnDate(_ context.Context, studentID string, date time.Time, excludeID string) ([]model.AttendanceRecord, error) {
	var result []model.AttendanceRecord
	for _, r := range m.records {
		if !r.IsValid || r.StudentID == nil || *r.StudentID != studentID || r.AttendanceID == excludeID {
			continue
		}
		e, ok := m.events.events[r.EventID]
		if !ok || !e.IsActive || !model.SameDate(e.EventDate, date) {
			continue
		}
		cp := *r
		cp.Event = e
		result = append(result, cp)
	}
	return result, nil
}

func (m *mockAttendanceRepo) CountValidByStudent(_ context.Context, studentID string) (int64, error) {
	var n int64
	for _, r := range m.records {
		if !r.IsValid || r.StudentID == nil || *r.StudentID != studentID {
			continue
		}
		if e, ok := m.events.events[r.EventID]; ok && e.IsActive {
			n++
		}
	}
	return n, nil
}

func (m *mockAttendanceRepo) ListRecent(_ context.Context, limit int) ([]model.AttendanceRecord, error) {
	var result []model.AttendanceRecord
	for _, r := range m.records {
		if r.IsValid {
			cp := *r
			m.preload(&cp)
			result = append(result, cp)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Timestamp.After(result[j].Timestamp) })
	return paginate(result, 0, limit), nil
}

func (m *mockAttendanceRepo) List(_ context.Context, filters *repository.AttendanceListFilters, offset, limit int) ([]model.AttendanceRecord, int64, error) {
	var result []model.AttendanceRecord
	for _, r := range m.records {
		if (filters == nil || !filters.IncludeInvalid) && !r.IsValid {
			continue
		}
		if filters != nil && filters.EventID != "" && r.EventID != filters.EventID {
			continue
		}
		if filters != nil && filters.StudentID != "" && (r.StudentID == nil || *r.StudentID != filters.StudentID) {
			continue
		}
		cp := *r
		m.preload(&cp)
		result = append(result, cp)
	}
	return paginate(result, offset, limit), int64(len(result)), nil
}

// ── Mock AttendanceStatsRepository ──

type mockStatsRepo struct {
	stats   map[string]*model.AttendanceStats
	upserts int
}

func newMockStatsRepo() *mockStatsRepo {
	return &mockStatsRepo{stats: make(map[string]*model.AttendanceStats)}
}

func (m *mockStatsRepo) Get(_ context.Context, studentID string) (*model.AttendanceStats, error) {
	if s, ok := m.stats[studentID]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStatsRepo) Upsert(_ context.Context, stats *model.AttendanceStats) error {
	cp := *stats
	m.stats[stats.StudentID] = &cp
	m.upserts++
	return nil
}

// ── Mock SystemConfigRepository ──

type mockSystemConfigRepo struct {
	cfg *model.SystemConfig
}

func newMockSystemConfigRepo() *mockSystemConfigRepo {
	return &mockSystemConfigRepo{
		cfg: &model.SystemConfig{
			Singleton:               true,
			MinAttendancePercentage: 80,
		},
	}
}

func (m *mockSystemConfigRepo) Get(_ context.Context) (*model.SystemConfig, error) {
	if m.cfg == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m.cfg
	return &cp, nil
}

func (m *mockSystemConfigRepo) Create(_ context.Context, cfg *model.SystemConfig) error {
	if m.cfg != nil {
		return pkgerrors.ErrUniqueViolation
	}
	cp := *cfg
	m.cfg = &cp
	return nil
}

func (m *mockSystemConfigRepo) Update(_ context.Context, cfg *model.SystemConfig) error {
	cp := *cfg
	m.cfg = &cp
	return nil
}

// ── 工具 ──

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
