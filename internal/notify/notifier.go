package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// EventKind 通知事件类型
type EventKind string

const (
	EventHighPriority     EventKind = "high_priority_received" // 收到高优先级邮件
	EventApprovalRequired EventKind = "approval_required"      // 邮件等待人工审批
	EventBulkDelete       EventKind = "bulk_delete"            // 批量过期清理聚合通知
	EventReplyFailure     EventKind = "auto_reply_failure"     // 自动回复发送失败
	EventStartup          EventKind = "startup"                // 服务启动
	EventShutdown         EventKind = "shutdown"               // 服务停止
)

// Event 描述一次待推送的通知
type Event struct {
	Kind      EventKind
	MessageID uint64 // 关联邮件 ID，聚合类事件为 0
	From      string // 发件人，聚合类事件为空
	Subject   string // 主题摘要
	Detail    string // 补充说明（错误原因、删除数量等）
	Count     int    // 聚合事件涉及的邮件数量
}

// Render 将事件渲染为人类可读的一段通知文本
func (e Event) Render() string {
	var b strings.Builder
	switch e.Kind {
	case EventHighPriority:
		b.WriteString("📬 High priority mail")
	case EventApprovalRequired:
		b.WriteString("⏳ Mail awaiting approval")
	case EventBulkDelete:
		fmt.Fprintf(&b, "🗑 Purged %d expired messages", e.Count)
	case EventReplyFailure:
		b.WriteString("⚠️ Auto-reply failed")
	case EventStartup:
		b.WriteString("🟢 Mail bridge started")
	case EventShutdown:
		b.WriteString("🔴 Mail bridge stopped")
	default:
		b.WriteString(string(e.Kind))
	}
	if e.MessageID != 0 {
		fmt.Fprintf(&b, "\nID: %d", e.MessageID)
	}
	if e.From != "" {
		fmt.Fprintf(&b, "\nFrom: %s", e.From)
	}
	if e.Subject != "" {
		fmt.Fprintf(&b, "\nSubject: %s", e.Subject)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, "\n%s", e.Detail)
	}
	return b.String()
}

// Notifier 通知通道接口
//
// 实现者只负责投递；调用方负责吞掉错误，通知失败绝不影响主流程。
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier 仅记录日志的通知实现，用于未配置外部通道的场景
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify 将事件写入日志
func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	n.logger.Info("notification",
		zap.String("kind", string(event.Kind)),
		zap.Uint64("message_id", event.MessageID),
		zap.String("from", event.From),
		zap.String("subject", event.Subject),
		zap.String("detail", event.Detail),
		zap.Int("count", event.Count),
	)
	return nil
}
