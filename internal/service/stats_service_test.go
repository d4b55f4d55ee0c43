package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/val20-11/mac-attendance/internal/model"
	"github.com/val20-11/mac-attendance/pkg/metrics"
)

// setupTestStatsService 预置学生 1234567 与 4 场启用活动，学生签到其中 3 场
func setupTestStatsService() (*statsService, *mockRepos) {
	repo, mocks := newMockRepository()
	mocks.accounts.add("stu-1", "1234567", "Ana", model.RoleStudent)
	mocks.accounts.add("asst-1", "7654321", "Luis", model.RoleAssistant)

	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("evt-%d", i)
		mocks.events.add(id, "讲座", eventDay.AddDate(0, 0, i), "09:00", "11:00")
		if i <= 3 {
			mocks.attendance.records = append(mocks.attendance.records, &model.AttendanceRecord{
				AttendanceID: "att-" + id,
				StudentID:    strPtr("stu-1"),
				EventID:      id,
				RegisteredBy: "asst-1",
				IsValid:      true,
			})
		}
	}

	svc := NewStatsService(repo, metrics.Nop(), zap.NewNop()).(*statsService)
	svc.now = func() time.Time { return at(12, 0) }
	return svc, mocks
}

func TestAttendancePercentage(t *testing.T) {
	tests := []struct {
		attended, total int
		want            float64
	}{
		{3, 4, 75},
		{0, 0, 0},
		{0, 5, 0},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{7, 7, 100},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.attended, tt.total), func(t *testing.T) {
			if got := AttendancePercentage(tt.attended, tt.total); got != tt.want {
				t.Errorf("期望 %v，实际 %v", tt.want, got)
			}
		})
	}
}

func TestMeetsMinimum(t *testing.T) {
	cfg := &model.SystemConfig{MinAttendancePercentage: 80}

	if MeetsMinimum(&model.AttendanceStats{AttendancePercentage: 75}, cfg) {
		t.Error("75% 不应满足 80% 的最低要求")
	}
	if !MeetsMinimum(&model.AttendanceStats{AttendancePercentage: 80}, cfg) {
		t.Error("80% 应满足 80% 的最低要求（含边界）")
	}
	if !MeetsMinimum(&model.AttendanceStats{AttendancePercentage: 0}, &model.SystemConfig{MinAttendancePercentage: 0}) {
		t.Error("最低要求为 0 时应总是满足")
	}
}

func TestStatsService_Refresh(t *testing.T) {
	svc, mocks := setupTestStatsService()

	stats, err := svc.Refresh(context.Background(), "stu-1")
	if err != nil {
		t.Fatalf("Refresh 应成功: %v", err)
	}
	if stats.TotalEvents != 4 || stats.AttendedEvents != 3 {
		t.Errorf("期望 3/4，实际 %d/%d", stats.AttendedEvents, stats.TotalEvents)
	}
	if stats.AttendancePercentage != 75 {
		t.Errorf("期望 75，实际 %v", stats.AttendancePercentage)
	}
	if mocks.stats.upserts != 1 {
		t.Errorf("期望写入 1 次，实际 %d", mocks.stats.upserts)
	}
}

func TestStatsService_Refresh_Idempotent(t *testing.T) {
	svc, mocks := setupTestStatsService()
	ctx := context.Background()

	first, err := svc.Refresh(ctx, "stu-1")
	if err != nil {
		t.Fatalf("首次 Refresh 应成功: %v", err)
	}
	second, err := svc.Refresh(ctx, "stu-1")
	if err != nil {
		t.Fatalf("再次 Refresh 应成功: %v", err)
	}
	if *first != *second {
		t.Errorf("重复刷新结果应一致: %+v vs %+v", first, second)
	}
	if len(mocks.stats.stats) != 1 {
		t.Errorf("每个学生仅一行统计，实际 %d 行", len(mocks.stats.stats))
	}
}

func TestStatsService_Refresh_NoEvents(t *testing.T) {
	repo, mocks := newMockRepository()
	mocks.accounts.add("stu-1", "1234567", "Ana", model.RoleStudent)
	svc := NewStatsService(repo, metrics.Nop(), zap.NewNop())

	stats, err := svc.Refresh(context.Background(), "stu-1")
	if err != nil {
		t.Fatalf("Refresh 应成功: %v", err)
	}
	if stats.TotalEvents != 0 || stats.AttendancePercentage != 0 {
		t.Errorf("无活动时出勤率应为 0，实际 %+v", stats)
	}
}

func TestStatsService_Refresh_IgnoresInactiveEvents(t *testing.T) {
	svc, mocks := setupTestStatsService()
	mocks.events.events["evt-1"].IsActive = false

	stats, err := svc.Refresh(context.Background(), "stu-1")
	if err != nil {
		t.Fatalf("Refresh 应成功: %v", err)
	}
	if stats.TotalEvents != 3 || stats.AttendedEvents != 2 {
		t.Errorf("停用活动不计入统计，期望 2/3，实际 %d/%d", stats.AttendedEvents, stats.TotalEvents)
	}
	if stats.AttendancePercentage != 66.67 {
		t.Errorf("期望 66.67，实际 %v", stats.AttendancePercentage)
	}
}

func TestStatsService_Refresh_AttendedNeverExceedsTotal(t *testing.T) {
	svc, mocks := setupTestStatsService()
	// 已签到的 3 场全部停用，只剩未签到的 evt-4
	for i := 1; i <= 3; i++ {
		mocks.events.events[fmt.Sprintf("evt-%d", i)].IsActive = false
	}

	stats, err := svc.Refresh(context.Background(), "stu-1")
	if err != nil {
		t.Fatalf("Refresh 应成功: %v", err)
	}
	if stats.AttendedEvents > stats.TotalEvents {
		t.Errorf("attended 不应超过 total，实际 %d/%d", stats.AttendedEvents, stats.TotalEvents)
	}
	if stats.AttendancePercentage < 0 || stats.AttendancePercentage > 100 {
		t.Errorf("出勤率应在 [0,100]，实际 %v", stats.AttendancePercentage)
	}
	if stats.TotalEvents != 1 || stats.AttendedEvents != 0 {
		t.Errorf("期望 0/1，实际 %d/%d", stats.AttendedEvents, stats.TotalEvents)
	}
}

func TestStatsService_GetStudentStats_Assistant(t *testing.T) {
	svc, _ := setupTestStatsService()

	resp, err := svc.GetStudentStats(context.Background(), "1234567", "asst-1", model.RoleAssistant)
	if err != nil {
		t.Fatalf("GetStudentStats 应成功: %v", err)
	}
	if resp.AttendancePercentage != 75 {
		t.Errorf("期望 75，实际 %v", resp.AttendancePercentage)
	}
	if resp.MinimumPercentage != 80 {
		t.Errorf("期望最低要求 80，实际 %v", resp.MinimumPercentage)
	}
	if resp.MeetsMinimum {
		t.Error("75% 不应满足最低要求")
	}
	if resp.StudentName != "Ana" {
		t.Errorf("期望学生姓名 Ana，实际 %s", resp.StudentName)
	}
}

func TestStatsService_GetStudentStats_ReadsConfigEachCall(t *testing.T) {
	svc, mocks := setupTestStatsService()
	ctx := context.Background()

	resp, err := svc.GetStudentStats(ctx, "1234567", "asst-1", model.RoleAssistant)
	if err != nil || resp.MeetsMinimum {
		t.Fatalf("初始配置下不应达标, err=%v", err)
	}

	mocks.config.cfg.MinAttendancePercentage = 70

	resp, err = svc.GetStudentStats(ctx, "1234567", "asst-1", model.RoleAssistant)
	if err != nil {
		t.Fatalf("GetStudentStats 应成功: %v", err)
	}
	if !resp.MeetsMinimum || resp.MinimumPercentage != 70 {
		t.Errorf("修改配置后应立即生效，实际 %+v", resp)
	}
}

func TestStatsService_GetStudentStats_StudentSelf(t *testing.T) {
	svc, _ := setupTestStatsService()

	// 学生未指定学号时查询自己
	resp, err := svc.GetStudentStats(context.Background(), "", "stu-1", model.RoleStudent)
	if err != nil {
		t.Fatalf("学生查询自己应成功: %v", err)
	}
	if resp.AccountNumber != "1234567" {
		t.Errorf("期望学号 1234567，实际 %s", resp.AccountNumber)
	}
}

func TestStatsService_GetStudentStats_StudentForbidden(t *testing.T) {
	svc, mocks := setupTestStatsService()
	mocks.accounts.add("stu-2", "2345678", "Eva", model.RoleStudent)

	_, err := svc.GetStudentStats(context.Background(), "2345678", "stu-1", model.RoleStudent)
	if !errors.Is(err, ErrStatsForbidden) {
		t.Errorf("期望 ErrStatsForbidden，实际: %v", err)
	}
}

func TestStatsService_GetStudentStats_NotFound(t *testing.T) {
	svc, _ := setupTestStatsService()

	for _, number := range []string{"", "9999999", "7654321"} {
		_, err := svc.GetStudentStats(context.Background(), number, "asst-1", model.RoleAssistant)
		if !errors.Is(err, ErrStudentNotFound) {
			t.Errorf("学号 %q 期望 ErrStudentNotFound，实际: %v", number, err)
		}
	}
}

func TestStatsService_GetStudentStats_ConfigMissing(t *testing.T) {
	svc, mocks := setupTestStatsService()
	mocks.config.cfg = nil

	_, err := svc.GetStudentStats(context.Background(), "1234567", "asst-1", model.RoleAssistant)
	if !errors.Is(err, ErrSystemConfigNotFound) {
		t.Errorf("期望 ErrSystemConfigNotFound，实际: %v", err)
	}
}

func TestStatsService_RefreshAll(t *testing.T) {
	svc, mocks := setupTestStatsService()
	mocks.accounts.add("stu-2", "2345678", "Eva", model.RoleStudent)

	n, err := svc.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll 应成功: %v", err)
	}
	if n != 2 {
		t.Errorf("期望处理 2 名学生，实际 %d", n)
	}
	if _, ok := mocks.stats.stats["asst-1"]; ok {
		t.Error("助理不应生成出勤统计")
	}
	if got := mocks.stats.stats["stu-2"]; got == nil || got.AttendancePercentage != 0 {
		t.Errorf("stu-2 应为 0%%，实际 %+v", got)
	}
}
