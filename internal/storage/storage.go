package storage

import (
	"errors"
	"time"

	"mailbridge/backend/internal/domain"
)

var (
	// ErrMessageNotFound 邮件不存在（或已删除且调用方无审计权限）
	ErrMessageNotFound = errors.New("message not found")
	// ErrAttachmentNotFound 附件不存在
	ErrAttachmentNotFound = errors.New("attachment not found")
	// ErrStateConflict 生命周期状态冲突：目标记录已处于终态，本次迁移不执行。
	// 与验证错误、传输错误区分开，调用方据此返回 409 而非静默成功。
	ErrStateConflict = errors.New("lifecycle state conflict")
)

// StateCounts 各生命周期状态的邮件数量统计。
type StateCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Processed int `json:"processed"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Deleted   int `json:"deleted"`
	Replied   int `json:"replied"`
}

// MessageRepository 定义邮件数据存取操作。
//
// 生命周期迁移（Approve/Reject/MarkDeleted/MarkReplied）必须实现为
// 单次原子的读-改-写：先校验当前标志位再落盘，二者之间不允许其他
// 写入插入。手动调用与后台清扫并发竞争同一记录时，恰好一方成功，
// 另一方收到 ErrStateConflict。
type MessageRepository interface {
	// SaveMessage 保存邮件并分配单调递增的 ID，附件元数据一并落库。
	SaveMessage(message *domain.Message) error
	// GetMessage 按 ID 获取邮件详情（含附件元数据），已删除记录按不存在处理。
	GetMessage(id uint64) (*domain.Message, error)
	// ListMessages 按创建时间倒序分页列出未删除邮件（不含附件）。
	ListMessages(limit, offset int) ([]domain.Message, error)
	// GetAttachment 按邮件 ID 与附件序号获取附件元数据。
	GetAttachment(messageID uint64, index int) (*domain.Attachment, error)
	// CountByState 统计各状态邮件数量。
	CountByState() (*StateCounts, error)

	// ApproveMessage 将待审批邮件迁移为 approved 终态。
	ApproveMessage(id uint64) error
	// RejectMessage 将待审批邮件迁移为 rejected 终态并标记删除。
	RejectMessage(id uint64) error
	// MarkMessageDeleted 标记删除；重复删除返回 ErrStateConflict。
	MarkMessageDeleted(id uint64) error
	// MarkMessageReplied 标记已自动回复；只在发送确认后调用。
	MarkMessageReplied(id uint64) error

	// ListExpiredLowPriority 选出 TTL 到期的低优先级未删除邮件（清理候选）。
	ListExpiredLowPriority(cutoff time.Time) ([]domain.Message, error)
	// ListReplyCandidates 选出未回复、未删除且不在审批等待中的邮件。
	ListReplyCandidates() ([]domain.Message, error)

	// Health 报告存储是否可用。
	Health() error
}

// RateLimitRepository 定义限流计数操作（Redis 或进程内实现）。
type RateLimitRepository interface {
	IncrementRateLimit(key string, window time.Duration) (int64, error)
	GetRateLimit(key string) (int64, error)
}

// Store 聚合核心存储能力。
type Store interface {
	MessageRepository
}
