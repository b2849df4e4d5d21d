package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// SendGridMailer 通过 SendGrid v3 API 发送出站邮件
type SendGridMailer struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
	logger   *zap.Logger
}

// NewSendGridMailer 创建 SendGrid 邮件发送器
func NewSendGridMailer(endpoint, apiKey, from string, logger *zap.Logger) (*SendGridMailer, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if from == "" {
		return nil, fmt.Errorf("%w: from address is empty", ErrNotConfigured)
	}

	return &SendGridMailer{
		endpoint: endpoint,
		apiKey:   apiKey,
		from:     from,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}, nil
}

// sendRequest 是 SendGrid v3 mail/send 的请求体
type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []contentPart     `json:"content"`
	Attachments      []attachmentPart  `json:"attachments,omitempty"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type emailAddress struct {
	Email string `json:"email"`
}

type contentPart struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// attachmentPart 出站附件，内容按 SendGrid 要求 base64 编码
type attachmentPart struct {
	Content  string `json:"content"`
	Type     string `json:"type,omitempty"`
	Filename string `json:"filename"`
}

// Send 发送一封邮件，非 2xx 响应视为发送失败
func (m *SendGridMailer) Send(ctx context.Context, mail OutboundMail) (*Receipt, error) {
	if len(mail.To) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrSendFailed)
	}

	from := mail.From
	if from == "" {
		from = m.from
	}

	to := make([]emailAddress, 0, len(mail.To))
	for _, addr := range mail.To {
		to = append(to, emailAddress{Email: addr})
	}

	// SendGrid 要求 content 数组按 text/plain, text/html 顺序排列
	var content []contentPart
	if mail.Text != "" {
		content = append(content, contentPart{Type: "text/plain", Value: mail.Text})
	}
	if mail.HTML != "" {
		content = append(content, contentPart{Type: "text/html", Value: mail.HTML})
	}
	if len(content) == 0 {
		content = append(content, contentPart{Type: "text/plain", Value: " "})
	}

	var attachments []attachmentPart
	for _, att := range mail.Attachments {
		attachments = append(attachments, attachmentPart{
			Content:  base64.StdEncoding.EncodeToString(att.Content),
			Type:     att.ContentType,
			Filename: att.Filename,
		})
	}

	payload := sendRequest{
		Personalizations: []personalization{{To: to}},
		From:             emailAddress{Email: from},
		Subject:          mail.Subject,
		Content:          content,
		Attachments:      attachments,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		m.logger.Warn("outbound provider rejected send",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", detail))
		return nil, fmt.Errorf("%w: provider returned %d", ErrSendFailed, resp.StatusCode)
	}

	receipt := &Receipt{
		ProviderMessageID: resp.Header.Get("X-Message-Id"),
		StatusCode:        resp.StatusCode,
	}

	m.logger.Debug("outbound mail accepted",
		zap.Int("status", receipt.StatusCode),
		zap.String("provider_message_id", receipt.ProviderMessageID),
		zap.Int("recipients", len(mail.To)))

	return receipt, nil
}
