package app

import (
	"context"
	"errors"
	"testing"
	"time"
)

func mustScheduler(t *testing.T) *scheduler {
	t.Helper()
	s, err := newScheduler("Asia/Shanghai", nil)
	if err != nil {
		t.Fatalf("创建调度器失败: %v", err)
	}
	return s
}

func shTime(t *testing.T, value string) time.Time {
	t.Helper()
	loc, _ := time.LoadLocation("Asia/Shanghai")
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		t.Fatalf("解析时间失败: %v", err)
	}
	return ts
}

func TestTaskFiresOncePerDay(t *testing.T) {
	s := mustScheduler(t)
	runs := 0
	if err := s.add("选股", "15:38", func(context.Context, string) error {
		runs++
		return nil
	}); err != nil {
		t.Fatalf("注册任务失败: %v", err)
	}

	ctx := context.Background()
	s.tick(ctx, shTime(t, "2026-08-21 15:30")) // 未到点
	s.tick(ctx, shTime(t, "2026-08-21 15:38")) // 到点
	s.tick(ctx, shTime(t, "2026-08-21 15:48")) // 当日不重复
	s.tick(ctx, shTime(t, "2026-08-21 23:59"))

	if runs != 1 {
		t.Errorf("当日应只执行一次: got %d", runs)
	}

	s.tick(ctx, shTime(t, "2026-08-22 15:38")) // 次日再触发
	if runs != 2 {
		t.Errorf("次日应再次执行: got %d", runs)
	}
}

func TestLateStartCatchesUp(t *testing.T) {
	s := mustScheduler(t)
	var gotDate string
	if err := s.add("选股", "15:38", func(_ context.Context, date string) error {
		gotDate = date
		return nil
	}); err != nil {
		t.Fatalf("注册任务失败: %v", err)
	}

	// 进程在触发时刻之后启动，首个 tick 补跑
	s.tick(context.Background(), shTime(t, "2026-08-21 20:00"))
	if gotDate != "2026-08-21" {
		t.Errorf("补跑应带当日日期: got %q", gotDate)
	}
}

func TestFailedTaskWaitsForNextDay(t *testing.T) {
	s := mustScheduler(t)
	runs := 0
	if err := s.add("夜间挂单", "21:00", func(context.Context, string) error {
		runs++
		return errors.New("终端未连接")
	}); err != nil {
		t.Fatalf("注册任务失败: %v", err)
	}

	ctx := context.Background()
	s.tick(ctx, shTime(t, "2026-08-21 21:00"))
	s.tick(ctx, shTime(t, "2026-08-21 21:10")) // 失败后当日不重试

	if runs != 1 {
		t.Errorf("失败任务当日不应重试: got %d", runs)
	}
}

func TestInvalidTimeRejected(t *testing.T) {
	s := mustScheduler(t)
	if err := s.add("坏任务", "25:00", nil); err == nil {
		t.Error("非法时刻应被拒绝")
	}
}
