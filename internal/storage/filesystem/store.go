// Package filesystem 负责附件内容的磁盘存储。
// 附件字节不进数据库，邮件记录只保存内容引用（相对路径）。
package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mailbridge/backend/internal/storage"
)

// Store 文件系统存储实现。
type Store struct {
	basePath string // 附件存储根目录
}

// NewStore 创建文件系统存储实例。
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("attachment storage path is required")
	}

	basePath = filepath.Clean(basePath)
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{basePath: basePath}, nil
}

// SaveAttachment 保存一个附件，返回相对存储根目录的内容引用。
// 目录布局: {basePath}/messages/{messageID}/{index}-{filename}
func (s *Store) SaveAttachment(messageID uint64, index int, filename string, content []byte) (string, error) {
	dir := s.messageDir(messageID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create attachment directory: %w", err)
	}

	rel := s.AttachmentPath(messageID, index, filename)
	if err := os.WriteFile(filepath.Join(s.basePath, rel), content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}

	return rel, nil
}

// AttachmentPath 计算附件的内容引用。
// 引用只由邮件 ID、序号和文件名决定，读取方无需依赖落库的路径值。
func (s *Store) AttachmentPath(messageID uint64, index int, filename string) string {
	name := fmt.Sprintf("%d-%s", index, sanitizeFilename(filename))
	return filepath.Join("messages", fmt.Sprintf("%d", messageID), name)
}

// GetAttachment 按内容引用读取附件字节。
func (s *Store) GetAttachment(storagePath string) ([]byte, error) {
	full, err := s.resolve(storagePath)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}

	return content, nil
}

// RemoveMessage 删除一封邮件的全部附件内容（审计彻底清除时使用）。
func (s *Store) RemoveMessage(messageID uint64) error {
	return os.RemoveAll(s.messageDir(messageID))
}

func (s *Store) messageDir(messageID uint64) string {
	return filepath.Join(s.basePath, "messages", fmt.Sprintf("%d", messageID))
}

// resolve 将相对引用解析为绝对路径，拒绝逃逸出存储根目录的引用。
func (s *Store) resolve(storagePath string) (string, error) {
	full := filepath.Join(s.basePath, filepath.Clean(storagePath))
	if !strings.HasPrefix(full, s.basePath+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid storage path: %s", storagePath)
	}
	return full, nil
}

// sanitizeFilename 去除路径分隔符等危险字符，保证文件名安全落盘。
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "attachment.bin"
	}
	return name
}
