package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/mailer"
	"mailbridge/backend/internal/monitoring"
	"mailbridge/backend/internal/storage"
)

// DispatchService 封装出站投递逻辑。
//
// 传输失败不做降级或兜底：mailer 返回错误即向调用方报告发送失败，
// 已失败的邮件不会生成出站审计记录。
type DispatchService struct {
	repo    storage.MessageRepository
	mailer  mailer.Mailer
	from    string
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewDispatchService 创建出站投递服务。
func NewDispatchService(
	repo storage.MessageRepository,
	m mailer.Mailer,
	from string,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *DispatchService {
	return &DispatchService{
		repo:    repo,
		mailer:  m,
		from:    from,
		metrics: metrics,
		logger:  logger,
	}
}

// OutboundInput 定义一次直接出站发送。
type OutboundInput struct {
	To          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []IngestAttachment
}

// Send 直接发送一封出站邮件并记录审计。
func (s *DispatchService) Send(ctx context.Context, input OutboundInput) (*domain.Message, error) {
	to := domain.NormalizeAddressList(input.To)
	if err := domain.ValidateAddressList(to); err != nil {
		return nil, err
	}
	for _, addr := range to {
		if err := domain.ValidateAddress(addr); err != nil {
			return nil, err
		}
	}

	dispatchID := uuid.NewString()

	var attachments []mailer.OutboundAttachment
	for _, att := range input.Attachments {
		attachments = append(attachments, mailer.OutboundAttachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Content:     att.Content,
		})
	}

	receipt, err := s.mailer.Send(ctx, mailer.OutboundMail{
		From:        s.from,
		To:          to,
		Subject:     input.Subject,
		Text:        input.Text,
		HTML:        input.HTML,
		Attachments: attachments,
	})
	if err != nil {
		s.logger.Error("outbound dispatch failed",
			zap.String("dispatch_id", dispatchID),
			zap.Strings("to", to),
			zap.Error(err))
		return nil, err
	}

	record := &domain.Message{
		Direction: domain.DirectionOutbound,
		From:      []string{s.from},
		To:        to,
		Subject:   input.Subject,
		Text:      input.Text,
		HTML:      input.HTML,
		Priority:  domain.PriorityNormal,
		Processed: true,
		CreatedAt: time.Now().UTC(),
	}
	// 审计记录只留附件元数据，出站字节不落盘
	for i, att := range input.Attachments {
		record.Attachments = append(record.Attachments, &domain.Attachment{
			Index:       i,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Size:        int64(len(att.Content)),
		})
	}

	if err := s.repo.SaveMessage(record); err != nil {
		// 邮件已发出，审计记录落库失败只能记录日志
		s.logger.Error("failed to record outbound message",
			zap.String("dispatch_id", dispatchID),
			zap.Error(err))
		return nil, err
	}

	s.metrics.RecordIngested(string(domain.DirectionOutbound))
	s.logger.Info("outbound mail dispatched",
		zap.String("dispatch_id", dispatchID),
		zap.Uint64("message_id", record.ID),
		zap.Strings("to", to),
		zap.Int("status", receipt.StatusCode),
		zap.String("provider_message_id", receipt.ProviderMessageID))

	return record, nil
}

// ReplyTo 给一封入站邮件的发件人回复。
//
// Replied 标志保证同一封邮件最多回复一次：发送成功后以冲突检查的
// 方式置位，竞争中落败的一方收到 ErrStateConflict。
func (s *DispatchService) ReplyTo(ctx context.Context, id uint64, text string) error {
	message, err := s.repo.GetMessage(id)
	if err != nil {
		return err
	}

	if message.Direction != domain.DirectionInbound {
		return fmt.Errorf("%w: cannot reply to outbound record", storage.ErrStateConflict)
	}
	if message.Replied {
		return storage.ErrStateConflict
	}
	if len(message.From) == 0 {
		return domain.ErrEmptyRecipients
	}

	subject := message.Subject
	if subject == "" {
		subject = "(no subject)"
	}

	_, err = s.mailer.Send(ctx, mailer.OutboundMail{
		From:    s.from,
		To:      message.From,
		Subject: "Re: " + subject,
		Text:    text,
	})
	if err != nil {
		s.metrics.RecordReplyFailure()
		return err
	}

	if err := s.repo.MarkMessageReplied(id); err != nil {
		// 回复已发出但标记竞争落败，向调用方暴露冲突
		return err
	}

	s.metrics.RecordReplySent()
	s.logger.Info("reply sent",
		zap.Uint64("message_id", id),
		zap.Strings("to", message.From))
	return nil
}
