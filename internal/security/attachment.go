// Package security 提供入站附件的安全筛查。
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrDangerousAttachment 表示附件扩展名属于禁止接收的可执行类型。
var ErrDangerousAttachment = errors.New("dangerous attachment type")

// ErrAttachmentTooLarge 表示附件超出单个附件的大小上限。
var ErrAttachmentTooLarge = errors.New("attachment too large")

// DefaultMaxAttachmentSize 单个附件大小上限。
const DefaultMaxAttachmentSize = 10 * 1024 * 1024

// Screener 入站附件筛查器，拦截可执行附件与超大附件。
type Screener struct {
	maxSize             int64
	dangerousExtensions map[string]bool
}

// NewScreener 创建使用默认规则的附件筛查器。
func NewScreener() *Screener {
	return &Screener{
		maxSize: DefaultMaxAttachmentSize,
		dangerousExtensions: map[string]bool{
			".exe": true,
			".bat": true,
			".cmd": true,
			".scr": true,
			".pif": true,
			".com": true,
			".vbs": true,
			".js":  true,
			".jar": true,
			".php": true,
			".asp": true,
			".jsp": true,
		},
	}
}

// Check 校验单个附件，不通过时返回对应的哨兵错误。
func (s *Screener) Check(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if s.dangerousExtensions[ext] {
		return fmt.Errorf("%w: %s", ErrDangerousAttachment, filename)
	}
	if size > s.maxSize {
		return fmt.Errorf("%w: %s (%d bytes)", ErrAttachmentTooLarge, filename, size)
	}
	return nil
}
