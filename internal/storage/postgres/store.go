// Package postgres 提供基于 GORM 的持久化存储，支持 PostgreSQL 与 MySQL。
package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/storage"
)

// Store 数据库存储实现。
//
// 生命周期迁移使用带标志位条件的单条 UPDATE 实现原子读-改-写，
// RowsAffected 为 0 时回查记录以区分"不存在"与"状态冲突"。
type Store struct {
	db *gorm.DB
}

// NewStore 创建 PostgreSQL 存储实例。
func NewStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn))
}

// NewMySQLStore 创建 MySQL 存储实例。
func NewMySQLStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn))
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例。
func NewStoreWithDialector(dialector gorm.Dialector) (*Store, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移数据库表结构。
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.Message{},
		&domain.Attachment{},
	)
}

// SaveMessage 保存邮件，附件元数据一并落库。
func (s *Store) SaveMessage(message *domain.Message) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		for i, att := range message.Attachments {
			att.MessageID = message.ID
			att.Index = i
			if err := tx.Create(att).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetMessage 按 ID 获取邮件详情（含附件元数据）。
func (s *Store) GetMessage(id uint64) (*domain.Message, error) {
	var message domain.Message
	err := s.db.Where("id = ? AND deleted = ?", id, false).First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrMessageNotFound
		}
		return nil, err
	}

	var attachments []*domain.Attachment
	if err := s.db.Where("message_id = ?", id).Order("idx ASC").Find(&attachments).Error; err != nil {
		return nil, err
	}
	message.Attachments = attachments

	return &message, nil
}

// ListMessages 按创建时间倒序分页列出未删除邮件。
func (s *Store) ListMessages(limit, offset int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var messages []domain.Message
	err := s.db.Where("deleted = ?", false).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// GetAttachment 按邮件 ID 与附件序号获取附件元数据。
func (s *Store) GetAttachment(messageID uint64, index int) (*domain.Attachment, error) {
	if _, err := s.GetMessage(messageID); err != nil {
		return nil, err
	}

	var attachment domain.Attachment
	err := s.db.Where("message_id = ? AND idx = ?", messageID, index).First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAttachmentNotFound
		}
		return nil, err
	}

	return &attachment, nil
}

// CountByState 统计各状态邮件数量。
func (s *Store) CountByState() (*storage.StateCounts, error) {
	counts := &storage.StateCounts{}

	type row struct {
		Query string
		Dest  *int
		Args  []interface{}
	}
	rows := []row{
		{"1 = 1", &counts.Total, nil},
		{"needs_approval = ? AND approved = ? AND rejected = ? AND processed = ? AND deleted = ?", &counts.Pending, []interface{}{true, false, false, false, false}},
		{"processed = ? AND deleted = ?", &counts.Processed, []interface{}{true, false}},
		{"approved = ?", &counts.Approved, []interface{}{true}},
		{"rejected = ?", &counts.Rejected, []interface{}{true}},
		{"deleted = ? AND rejected = ?", &counts.Deleted, []interface{}{true, false}},
		{"replied = ?", &counts.Replied, []interface{}{true}},
	}

	for _, r := range rows {
		var n int64
		if err := s.db.Model(&domain.Message{}).Where(r.Query, r.Args...).Count(&n).Error; err != nil {
			return nil, err
		}
		*r.Dest = int(n)
	}

	return counts, nil
}

// ApproveMessage 将待审批邮件迁移为 approved 终态。
func (s *Store) ApproveMessage(id uint64) error {
	res := s.db.Model(&domain.Message{}).
		Where("id = ? AND deleted = ? AND approved = ? AND rejected = ? AND processed = ?",
			id, false, false, false, false).
		Update("approved", true)

	return s.transitionResult(res, id)
}

// RejectMessage 将待审批邮件迁移为 rejected 终态并标记删除。
func (s *Store) RejectMessage(id uint64) error {
	res := s.db.Model(&domain.Message{}).
		Where("id = ? AND deleted = ? AND approved = ? AND rejected = ? AND processed = ?",
			id, false, false, false, false).
		Updates(map[string]interface{}{"rejected": true, "deleted": true})

	return s.transitionResult(res, id)
}

// MarkMessageDeleted 标记删除。
func (s *Store) MarkMessageDeleted(id uint64) error {
	res := s.db.Model(&domain.Message{}).
		Where("id = ? AND deleted = ?", id, false).
		Update("deleted", true)

	return s.transitionResult(res, id)
}

// MarkMessageReplied 标记已自动回复。
func (s *Store) MarkMessageReplied(id uint64) error {
	res := s.db.Model(&domain.Message{}).
		Where("id = ? AND deleted = ? AND replied = ?", id, false, false).
		Update("replied", true)

	return s.transitionResult(res, id)
}

// transitionResult 将受影响行数翻译为迁移结果：
// 命中 0 行时回查记录，存在则为状态冲突，否则为不存在。
func (s *Store) transitionResult(res *gorm.DB, id uint64) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := s.db.Model(&domain.Message{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrMessageNotFound
	}

	return storage.ErrStateConflict
}

// ListExpiredLowPriority 选出 TTL 到期的低优先级未删除邮件。
func (s *Store) ListExpiredLowPriority(cutoff time.Time) ([]domain.Message, error) {
	var messages []domain.Message
	err := s.db.Where("deleted = ? AND priority = ? AND created_at <= ?",
		false, domain.PriorityLow, cutoff).
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// ListReplyCandidates 选出未回复、未删除且不在审批等待中的入站邮件。
func (s *Store) ListReplyCandidates() ([]domain.Message, error) {
	var messages []domain.Message
	err := s.db.Where("deleted = ? AND replied = ? AND direction = ? AND (needs_approval = ? OR approved = ?)",
		false, false, domain.DirectionInbound, false, true).
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// Health 报告数据库连接是否可用。
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
