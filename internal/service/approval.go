package service

import (
	"context"

	"go.uber.org/zap"

	"mailbridge/backend/internal/config"
	"mailbridge/backend/internal/monitoring"
	"mailbridge/backend/internal/notify"
	"mailbridge/backend/internal/storage"
)

// ApprovalGate 审批门槛决策，纯计算。
//
// 任一条件满足即须人工审批：带附件、发件人在强制审批列表、
// 重要度达到阈值。决策在入库时做一次，之后不再变更。
type ApprovalGate struct {
	cfg config.ApprovalConfig
}

// NewApprovalGate 创建审批门。
func NewApprovalGate(cfg config.ApprovalConfig) *ApprovalGate {
	return &ApprovalGate{cfg: cfg}
}

// NeedsApproval 判断一封入站邮件是否需要人工审批。
func (g *ApprovalGate) NeedsApproval(from []string, attachmentCount int, importance float64) bool {
	if attachmentCount > 0 {
		return true
	}
	if matchSenderList(from, g.cfg.ReviewSenders) {
		return true
	}
	return importance >= g.cfg.ImportanceThreshold
}

// ApprovalService 处理人工审批动作。
type ApprovalService struct {
	repo     storage.MessageRepository
	files    AttachmentStore
	dispatch *DispatchService
	notifier notify.Notifier
	metrics  *monitoring.Metrics
	logger   *zap.Logger

	confirmText string
}

// NewApprovalService 创建审批服务。
func NewApprovalService(
	repo storage.MessageRepository,
	files AttachmentStore,
	dispatch *DispatchService,
	notifier notify.Notifier,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
	confirmText string,
) *ApprovalService {
	return &ApprovalService{
		repo:        repo,
		files:       files,
		dispatch:    dispatch,
		notifier:    notifier,
		metrics:     metrics,
		logger:      logger,
		confirmText: confirmText,
	}
}

// Approve 将待审批邮件迁移为通过终态，并给发件人发一封确认回复。
//
// 状态迁移是唯一的竞争点：重复审批或与后台清扫竞争时只有一方
// 成功，落败方收到 ErrStateConflict。确认回复失败不回滚审批，
// 只记录并通知。
func (s *ApprovalService) Approve(ctx context.Context, id uint64) error {
	if err := s.repo.ApproveMessage(id); err != nil {
		return err
	}

	s.refreshPendingGauge()
	s.logger.Info("message approved", zap.Uint64("message_id", id))

	if err := s.dispatch.ReplyTo(ctx, id, s.confirmText); err != nil {
		s.logger.Warn("approval confirmation reply failed",
			zap.Uint64("message_id", id),
			zap.Error(err))
		s.notifyFailure(ctx, id, err)
	}

	return nil
}

// Reject 将待审批邮件迁移为拒绝终态（同时标记删除），并清除附件内容。
func (s *ApprovalService) Reject(ctx context.Context, id uint64) error {
	if err := s.repo.RejectMessage(id); err != nil {
		return err
	}

	if err := s.files.RemoveMessage(id); err != nil {
		s.logger.Warn("failed to remove rejected attachments",
			zap.Uint64("message_id", id),
			zap.Error(err))
	}

	s.metrics.RecordDeleted("rejected")
	s.refreshPendingGauge()
	s.logger.Info("message rejected", zap.Uint64("message_id", id))
	return nil
}

func (s *ApprovalService) notifyFailure(ctx context.Context, id uint64, cause error) {
	err := s.notifier.Notify(ctx, notify.Event{
		Kind:      notify.EventReplyFailure,
		MessageID: id,
		Detail:    cause.Error(),
	})
	if err != nil {
		s.metrics.RecordNotificationFailure()
		s.logger.Warn("notification failed",
			zap.String("kind", string(notify.EventReplyFailure)),
			zap.Uint64("message_id", id),
			zap.Error(err))
	}
}

func (s *ApprovalService) refreshPendingGauge() {
	counts, err := s.repo.CountByState()
	if err != nil {
		return
	}
	s.metrics.UpdatePendingApprovals(counts.Pending)
}
