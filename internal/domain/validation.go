package domain

import (
	"errors"
	"net/mail"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidAddress   = errors.New("invalid email address")
	ErrAddressTooLong   = errors.New("email address too long")
	ErrEmptyRecipients  = errors.New("recipient list must not be empty")
	ErrEmptySender      = errors.New("sender address required")
	ErrInvalidDirection = errors.New("invalid message direction")
)

// RFC 5322 邮箱地址最大长度
const MaxAddressLength = 254

// ValidateAddress 校验单个邮箱地址。
func ValidateAddress(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return ErrInvalidAddress
	}
	if len(address) > MaxAddressLength {
		return ErrAddressTooLong
	}
	if _, err := mail.ParseAddress(address); err != nil {
		return ErrInvalidAddress
	}
	return nil
}

// NormalizeAddressList 清洗地址列表：去除空白、丢弃空项、统一小写。
// 结构约束：收件人必须是列表而非裸字符串，调用方在 API 边界保证。
func NormalizeAddressList(addresses []string) []string {
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// ValidateAddressList 校验地址列表，列表为空或任一地址非法均视为验证失败。
func ValidateAddressList(addresses []string) error {
	if len(addresses) == 0 {
		return ErrEmptyRecipients
	}
	for _, a := range addresses {
		if err := ValidateAddress(a); err != nil {
			return err
		}
	}
	return nil
}
