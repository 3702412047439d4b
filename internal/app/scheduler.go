package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// scheduler 按本地时区墙钟驱动每日定时任务。
// 每个任务每天最多执行一次：到点后的第一个 Tick 触发，
// 执行失败不重试，留到下一个自然触发点。进程在触发时刻之后启动时，
// 当天的任务会在首个 Tick 补跑。
type scheduler struct {
	loc    *time.Location
	logger *zap.Logger
	tasks  []*scheduledTask
}

type scheduledTask struct {
	name    string
	hour    int
	minute  int
	run     func(ctx context.Context, date string) error
	lastDay string
}

func newScheduler(timezone string, logger *zap.Logger) (*scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("加载时区 %q 失败: %w", timezone, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &scheduler{loc: loc, logger: logger}, nil
}

// add 注册一个每日任务，at 为 HH:MM。
func (s *scheduler) add(name, at string, run func(ctx context.Context, date string) error) error {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return fmt.Errorf("任务 %s 触发时刻 %q 非法: %w", name, at, err)
	}
	s.tasks = append(s.tasks, &scheduledTask{
		name:   name,
		hour:   t.Hour(),
		minute: t.Minute(),
		run:    run,
	})
	return nil
}

// tick 检查并执行所有到点的任务。
func (s *scheduler) tick(ctx context.Context, now time.Time) {
	local := now.In(s.loc)
	day := local.Format("2006-01-02")

	for _, task := range s.tasks {
		if task.lastDay == day {
			continue
		}
		due := time.Date(local.Year(), local.Month(), local.Day(), task.hour, task.minute, 0, 0, s.loc)
		if local.Before(due) {
			continue
		}

		task.lastDay = day
		s.logger.Info("定时任务触发", zap.String("task", task.name), zap.String("date", day))
		if err := task.run(ctx, day); err != nil {
			s.logger.Error("定时任务失败，等待下一个触发点",
				zap.String("task", task.name),
				zap.Error(err),
			)
		}
	}
}
