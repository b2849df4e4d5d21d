package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/monitoring"
	"mailbridge/backend/internal/notify"
	"mailbridge/backend/internal/security"
	"mailbridge/backend/internal/storage"
	"mailbridge/backend/internal/textutil"
)

// AttachmentStore 附件内容存储接口
type AttachmentStore interface {
	SaveAttachment(messageID uint64, index int, filename string, content []byte) (string, error)
	AttachmentPath(messageID uint64, index int, filename string) string
	GetAttachment(storagePath string) ([]byte, error)
	RemoveMessage(messageID uint64) error
}

// MessageService 封装邮件入库与读取逻辑。
type MessageService struct {
	repo       storage.MessageRepository
	files      AttachmentStore
	classifier *Classifier
	gate       *ApprovalGate
	screener   *security.Screener
	notifier   notify.Notifier
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// NewMessageService 创建邮件业务服务。
func NewMessageService(
	repo storage.MessageRepository,
	files AttachmentStore,
	classifier *Classifier,
	gate *ApprovalGate,
	notifier notify.Notifier,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *MessageService {
	return &MessageService{
		repo:       repo,
		files:      files,
		classifier: classifier,
		gate:       gate,
		screener:   security.NewScreener(),
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
	}
}

// IngestInput 定义入站 webhook 交付的一封邮件。
type IngestInput struct {
	From        string
	To          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []IngestAttachment
}

// IngestAttachment 入站附件（解码后的字节）。
type IngestAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Ingest 处理一封入站邮件：校验、分类、落库、存附件、过审批门。
//
// 校验失败的邮件不落库。入库后的通知失败只记录，不影响结果。
func (s *MessageService) Ingest(ctx context.Context, input IngestInput) (*domain.Message, error) {
	if err := domain.ValidateAddress(input.From); err != nil {
		return nil, err
	}

	to := domain.NormalizeAddressList(input.To)
	if err := domain.ValidateAddressList(to); err != nil {
		return nil, err
	}
	for _, addr := range to {
		if err := domain.ValidateAddress(addr); err != nil {
			return nil, err
		}
	}

	for _, att := range input.Attachments {
		if err := s.screener.Check(att.Filename, int64(len(att.Content))); err != nil {
			return nil, err
		}
	}

	from := domain.NormalizeAddressList([]string{input.From})

	text := input.Text
	if text == "" && input.HTML != "" {
		text = textutil.StripHTML(input.HTML)
	}

	result := s.classifier.Classify(from, input.Subject, text, len(input.Attachments))
	needsApproval := s.gate.NeedsApproval(from, len(input.Attachments), result.Importance)

	message := &domain.Message{
		Direction:     domain.DirectionInbound,
		From:          from,
		To:            to,
		Subject:       input.Subject,
		Text:          text,
		HTML:          input.HTML,
		Priority:      result.Priority,
		Importance:    result.Importance,
		AlertClasses:  result.AlertClasses,
		NeedsApproval: needsApproval,
		// 免审批的邮件入库即视为已处理
		Processed: !needsApproval,
		CreatedAt: time.Now().UTC(),
	}

	for i, att := range input.Attachments {
		message.Attachments = append(message.Attachments, &domain.Attachment{
			Index:       i,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Size:        int64(len(att.Content)),
		})
	}

	if err := s.repo.SaveMessage(message); err != nil {
		return nil, err
	}

	for i, att := range input.Attachments {
		path, err := s.files.SaveAttachment(message.ID, i, att.Filename, att.Content)
		if err != nil {
			s.logger.Error("failed to persist attachment content",
				zap.Uint64("message_id", message.ID),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		message.Attachments[i].StoragePath = path
	}

	s.metrics.RecordIngested(string(domain.DirectionInbound))
	s.refreshPendingGauge()

	s.logger.Info("message ingested",
		zap.Uint64("message_id", message.ID),
		zap.Strings("from", message.From),
		zap.String("priority", string(message.Priority)),
		zap.Float64("importance", message.Importance),
		zap.Bool("needs_approval", message.NeedsApproval),
		zap.Int("attachments", len(message.Attachments)))

	s.notifyIngest(ctx, message)

	return message, nil
}

// notifyIngest 按优先级与审批状态推送入站通知，失败只记录。
func (s *MessageService) notifyIngest(ctx context.Context, message *domain.Message) {
	sender := ""
	if len(message.From) > 0 {
		sender = message.From[0]
	}
	subject := textutil.Snippet(message.Subject, 120)

	if message.Priority == domain.PriorityHigh {
		s.dispatchNotification(ctx, notify.Event{
			Kind:      notify.EventHighPriority,
			MessageID: message.ID,
			From:      sender,
			Subject:   subject,
		})
	}

	if message.NeedsApproval {
		s.dispatchNotification(ctx, notify.Event{
			Kind:      notify.EventApprovalRequired,
			MessageID: message.ID,
			From:      sender,
			Subject:   subject,
		})
	}
}

func (s *MessageService) dispatchNotification(ctx context.Context, event notify.Event) {
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.metrics.RecordNotificationFailure()
		s.logger.Warn("notification failed",
			zap.String("kind", string(event.Kind)),
			zap.Uint64("message_id", event.MessageID),
			zap.Error(err))
	}
}

func (s *MessageService) refreshPendingGauge() {
	counts, err := s.repo.CountByState()
	if err != nil {
		return
	}
	s.metrics.UpdatePendingApprovals(counts.Pending)
}

// List 按创建时间倒序分页列出邮件，已删除的不出现。
func (s *MessageService) List(limit, offset int) ([]domain.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListMessages(limit, offset)
}

// Get 获取单封邮件详情。
func (s *MessageService) Get(id uint64) (*domain.Message, error) {
	return s.repo.GetMessage(id)
}

// Stats 统计各生命周期状态的邮件数量。
func (s *MessageService) Stats() (*storage.StateCounts, error) {
	return s.repo.CountByState()
}

// GetAttachment 获取附件元数据与内容字节。
func (s *MessageService) GetAttachment(id uint64, index int) (*domain.Attachment, error) {
	attachment, err := s.repo.GetAttachment(id, index)
	if err != nil {
		return nil, err
	}

	content, err := s.files.GetAttachment(s.files.AttachmentPath(id, attachment.Index, attachment.Filename))
	if err != nil {
		return nil, err
	}
	attachment.Content = content

	return attachment, nil
}

// Delete 手动标记删除一封邮件。
func (s *MessageService) Delete(id uint64) error {
	if err := s.repo.MarkMessageDeleted(id); err != nil {
		return err
	}

	s.metrics.RecordDeleted("manual")
	s.refreshPendingGauge()
	s.logger.Info("message deleted", zap.Uint64("message_id", id), zap.String("reason", "manual"))
	return nil
}
