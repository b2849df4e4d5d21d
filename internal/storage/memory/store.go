// Package memory 提供内存版邮件存储，主要用于开发验证与测试。
package memory

import (
	"sort"
	"sync"
	"time"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/storage"
)

// Store 使用内存保存邮件数据。
//
// 所有生命周期迁移在同一把互斥锁内完成校验与写入，
// 满足仓储接口要求的原子读-改-写语义。
type Store struct {
	mu       sync.RWMutex
	nextID   uint64
	messages map[uint64]*domain.Message
}

// NewStore 创建内存存储。
func NewStore() *Store {
	return &Store{
		nextID:   1,
		messages: make(map[uint64]*domain.Message),
	}
}

// SaveMessage 保存邮件并分配单调递增的 ID。
func (s *Store) SaveMessage(message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if message.ID == 0 {
		message.ID = s.nextID
		s.nextID++
	} else if message.ID >= s.nextID {
		s.nextID = message.ID + 1
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	for i, att := range message.Attachments {
		att.MessageID = message.ID
		att.Index = i
	}

	clone := cloneMessage(message)
	s.messages[message.ID] = clone

	return nil
}

// GetMessage 按 ID 获取邮件，已删除记录按不存在处理。
func (s *Store) GetMessage(id uint64) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok || msg.Deleted {
		return nil, storage.ErrMessageNotFound
	}

	return cloneMessage(msg), nil
}

// ListMessages 按创建时间倒序分页列出未删除邮件。
func (s *Store) ListMessages(limit, offset int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		if !msg.Deleted {
			all = append(all, msg)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []domain.Message{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]domain.Message, 0, end-offset)
	for _, msg := range all[offset:end] {
		clone := cloneMessage(msg)
		clone.Attachments = nil
		out = append(out, *clone)
	}

	return out, nil
}

// GetAttachment 按邮件 ID 与附件序号获取附件元数据。
func (s *Store) GetAttachment(messageID uint64, index int) (*domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[messageID]
	if !ok || msg.Deleted {
		return nil, storage.ErrMessageNotFound
	}
	for _, att := range msg.Attachments {
		if att.Index == index {
			clone := *att
			return &clone, nil
		}
	}

	return nil, storage.ErrAttachmentNotFound
}

// CountByState 统计各状态邮件数量。
func (s *Store) CountByState() (*storage.StateCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := &storage.StateCounts{}
	for _, msg := range s.messages {
		counts.Total++
		if msg.Replied {
			counts.Replied++
		}
		switch msg.State() {
		case domain.StatePending:
			counts.Pending++
		case domain.StateProcessed:
			counts.Processed++
		case domain.StateApproved:
			counts.Approved++
		case domain.StateRejected:
			counts.Rejected++
		case domain.StateDeleted:
			counts.Deleted++
		}
	}

	return counts, nil
}

// ApproveMessage 将待审批邮件迁移为 approved 终态。
func (s *Store) ApproveMessage(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return storage.ErrMessageNotFound
	}
	if msg.Deleted || msg.Terminal() {
		return storage.ErrStateConflict
	}
	msg.Approved = true

	return nil
}

// RejectMessage 将待审批邮件迁移为 rejected 终态并标记删除。
func (s *Store) RejectMessage(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return storage.ErrMessageNotFound
	}
	if msg.Deleted || msg.Terminal() {
		return storage.ErrStateConflict
	}
	msg.Rejected = true
	msg.Deleted = true

	return nil
}

// MarkMessageDeleted 标记删除；重复删除返回状态冲突。
func (s *Store) MarkMessageDeleted(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return storage.ErrMessageNotFound
	}
	if msg.Deleted {
		return storage.ErrStateConflict
	}
	msg.Deleted = true

	return nil
}

// MarkMessageReplied 标记已自动回复。
func (s *Store) MarkMessageReplied(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return storage.ErrMessageNotFound
	}
	if msg.Deleted || msg.Replied {
		return storage.ErrStateConflict
	}
	msg.Replied = true

	return nil
}

// ListExpiredLowPriority 选出 TTL 到期的低优先级未删除邮件。
func (s *Store) ListExpiredLowPriority(cutoff time.Time) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Message
	for _, msg := range s.messages {
		if !msg.Deleted && msg.Priority == domain.PriorityLow && !msg.CreatedAt.After(cutoff) {
			out = append(out, *cloneMessage(msg))
		}
	}
	sortByID(out)

	return out, nil
}

// ListReplyCandidates 选出未回复、未删除且不在审批等待中的入站邮件。
func (s *Store) ListReplyCandidates() ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Message
	for _, msg := range s.messages {
		if msg.Deleted || msg.Replied || msg.Direction != domain.DirectionInbound {
			continue
		}
		// 待审批邮件在批准前不参与自动回复
		if msg.NeedsApproval && !msg.Approved {
			continue
		}
		out = append(out, *cloneMessage(msg))
	}
	sortByID(out)

	return out, nil
}

// Health 内存存储恒为可用。
func (s *Store) Health() error {
	return nil
}

func sortByID(msgs []domain.Message) {
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
}

// cloneMessage 深拷贝，避免调用方拿到内部指针后绕过迁移接口改状态。
func cloneMessage(msg *domain.Message) *domain.Message {
	clone := *msg
	clone.From = append([]string(nil), msg.From...)
	clone.To = append([]string(nil), msg.To...)
	clone.AlertClasses = append([]string(nil), msg.AlertClasses...)
	if msg.Attachments != nil {
		clone.Attachments = make([]*domain.Attachment, len(msg.Attachments))
		for i, att := range msg.Attachments {
			a := *att
			clone.Attachments[i] = &a
		}
	}
	return &clone
}
