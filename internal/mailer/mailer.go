package mailer

import (
	"context"
	"errors"
)

// ErrSendFailed 表示出站邮件未被上游接受。
// 系统不做降级重投：发送失败即失败，由调用方记录并通知。
var ErrSendFailed = errors.New("outbound send failed")

// ErrNotConfigured 表示出站通道缺少必要配置
var ErrNotConfigured = errors.New("outbound mailer not configured")

// OutboundMail 描述一封待发送的邮件
type OutboundMail struct {
	From        string
	To          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []OutboundAttachment
}

// OutboundAttachment 出站附件（原始字节，编码由传输层处理）
type OutboundAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Receipt 记录一次成功投递的结果
type Receipt struct {
	ProviderMessageID string // 上游返回的消息标识，可能为空
	StatusCode        int    // 上游 HTTP 状态码
}

// Mailer 出站邮件传输接口
type Mailer interface {
	Send(ctx context.Context, mail OutboundMail) (*Receipt, error)
}

// Disabled 在出站通道未配置时占位，所有发送请求报 ErrNotConfigured。
type Disabled struct{}

func (Disabled) Send(_ context.Context, _ OutboundMail) (*Receipt, error) {
	return nil, ErrNotConfigured
}
