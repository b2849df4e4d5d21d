// Package scheduler 封装后台维护任务的周期调度。
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Scheduler 周期任务调度器，UTC 时区。
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *zap.Logger
}

// New 创建调度器，创建即启动。
func New(logger *zap.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(&logAdapter{logger: logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s.Start()

	return &Scheduler{scheduler: s, logger: logger}, nil
}

// AddIntervalJob 注册一个固定间隔任务。
// 单例模式保证上一轮未结束时不会并发启动下一轮，迟到的触发直接重排。
func (s *Scheduler) AddIntervalJob(name string, interval time.Duration, job func()) error {
	if name == "" {
		return fmt.Errorf("empty job name")
	}
	if interval <= 0 {
		return fmt.Errorf("non-positive interval for job %q", name)
	}
	if job == nil {
		return fmt.Errorf("nil job function for job %q", name)
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(job),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule job %q: %w", name, err)
	}

	s.logger.Info("job scheduled",
		zap.String("job", name),
		zap.Duration("interval", interval))
	return nil
}

// Stop 关停调度器，等待执行中的任务结束。
func (s *Scheduler) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}
	return nil
}

// logAdapter 将 gocron 日志转发到 zap。
type logAdapter struct {
	logger *zap.Logger
}

func (l *logAdapter) Debug(msg string, args ...any) { l.logger.Debug(msg, toFields(args)...) }
func (l *logAdapter) Info(msg string, args ...any)  { l.logger.Info(msg, toFields(args)...) }
func (l *logAdapter) Warn(msg string, args ...any)  { l.logger.Warn(msg, toFields(args)...) }
func (l *logAdapter) Error(msg string, args ...any) { l.logger.Error(msg, toFields(args)...) }

func toFields(args []any) []zap.Field {
	fields := make([]zap.Field, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", args[i])
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return fields
}
