package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"mailbridge/backend/internal/config"
	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/monitoring"
	"mailbridge/backend/internal/notify"
	"mailbridge/backend/internal/storage"
)

// MaintenanceService 执行周期性后台维护。
//
// 每个周期先做 TTL 清理再做自动回复，同一封邮件两项都命中时
// 以删除为准。同一时刻最多一个周期在执行，已开始的周期不会被
// 中途取消，选出的批次处理完才结束。
type MaintenanceService struct {
	repo     storage.MessageRepository
	files    AttachmentStore
	dispatch *DispatchService
	notifier notify.Notifier
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	cfg      config.MaintenanceConfig

	mu sync.Mutex // 周期互斥，调度器之外的手动触发也受约束
}

// NewMaintenanceService 创建维护服务。
func NewMaintenanceService(
	repo storage.MessageRepository,
	files AttachmentStore,
	dispatch *DispatchService,
	notifier notify.Notifier,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
	cfg config.MaintenanceConfig,
) *MaintenanceService {
	return &MaintenanceService{
		repo:     repo,
		files:    files,
		dispatch: dispatch,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// RunCycle 执行一次完整维护周期。
// 已有周期在执行时直接返回，不排队。
func (s *MaintenanceService) RunCycle(ctx context.Context) {
	if !s.mu.TryLock() {
		s.logger.Debug("maintenance cycle already in flight, skipping")
		return
	}
	defer s.mu.Unlock()

	start := time.Now()

	deleted := s.sweepExpired(ctx)
	replied, failed := s.sweepAutoReply(ctx)

	s.metrics.RecordMaintenanceCycle(time.Since(start))
	s.logger.Info("maintenance cycle finished",
		zap.Int("deleted", deleted),
		zap.Int("replied", replied),
		zap.Int("reply_failures", failed),
		zap.Duration("elapsed", time.Since(start)))
}

// sweepExpired 删除 TTL 到期的低优先级邮件，返回删除数量。
//
// 删除数达到聚合阈值时恰好发送一条汇总通知；未达到阈值不逐条
// 通知，避免噪音。
func (s *MaintenanceService) sweepExpired(ctx context.Context) int {
	cutoff := time.Now().UTC().Add(-s.cfg.TTL)

	candidates, err := s.repo.ListExpiredLowPriority(cutoff)
	if err != nil {
		s.logger.Error("failed to list expired messages", zap.Error(err))
		return 0
	}

	deleted := 0
	for _, message := range candidates {
		if err := s.repo.MarkMessageDeleted(message.ID); err != nil {
			// 与手动操作竞争落败的记录跳过即可
			if !errors.Is(err, storage.ErrStateConflict) && !errors.Is(err, storage.ErrMessageNotFound) {
				s.logger.Error("failed to mark message deleted",
					zap.Uint64("message_id", message.ID),
					zap.Error(err))
			}
			continue
		}

		if err := s.files.RemoveMessage(message.ID); err != nil {
			s.logger.Warn("failed to remove attachment content",
				zap.Uint64("message_id", message.ID),
				zap.Error(err))
		}

		s.metrics.RecordDeleted("ttl")
		deleted++
	}

	if deleted >= s.cfg.BulkThreshold {
		s.notifyEvent(ctx, notify.Event{
			Kind:   notify.EventBulkDelete,
			Count:  deleted,
			Detail: "expired low priority messages",
		})
	}

	return deleted
}

// sweepAutoReply 给命中回复规则的邮件各发一封自动回复。
//
// Replied 只在发送成功后置位，失败的邮件保持未回复，下个周期
// 重试；每次失败立即推送一条通知。
func (s *MaintenanceService) sweepAutoReply(ctx context.Context) (replied, failed int) {
	if len(s.cfg.ReplyClasses) == 0 && len(s.cfg.ReplySenders) == 0 {
		return 0, 0
	}

	candidates, err := s.repo.ListReplyCandidates()
	if err != nil {
		s.logger.Error("failed to list reply candidates", zap.Error(err))
		return 0, 0
	}

	for _, message := range candidates {
		if !s.matchesReplyRule(&message) {
			continue
		}

		err := s.dispatch.ReplyTo(ctx, message.ID, s.cfg.ReplyText)
		if err == nil {
			replied++
			continue
		}

		// 竞争中已被回复或删除的记录不算失败
		if errors.Is(err, storage.ErrStateConflict) || errors.Is(err, storage.ErrMessageNotFound) {
			continue
		}

		failed++
		s.logger.Error("auto reply failed",
			zap.Uint64("message_id", message.ID),
			zap.Error(err))
		s.notifyEvent(ctx, notify.Event{
			Kind:      notify.EventReplyFailure,
			MessageID: message.ID,
			Detail:    err.Error(),
		})
	}

	return replied, failed
}

// matchesReplyRule 判断邮件是否命中自动回复规则。
func (s *MaintenanceService) matchesReplyRule(message *domain.Message) bool {
	for _, class := range s.cfg.ReplyClasses {
		if message.HasAlertClass(class) {
			return true
		}
	}
	return matchSenderList(message.From, s.cfg.ReplySenders)
}

func (s *MaintenanceService) notifyEvent(ctx context.Context, event notify.Event) {
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.metrics.RecordNotificationFailure()
		s.logger.Warn("notification failed",
			zap.String("kind", string(event.Kind)),
			zap.Error(err))
	}
}
