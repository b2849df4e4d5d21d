package httptransport

import (
	"encoding/base64"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailbridge/backend/internal/service"
	"mailbridge/backend/internal/websocket"
)

// InboundHandler 处理入站 webhook 投递。
type InboundHandler struct {
	messages *service.MessageService
	hub      *websocket.Hub
	logger   *zap.Logger
}

// NewInboundHandler 创建入站处理器。
func NewInboundHandler(messages *service.MessageService, hub *websocket.Hub, logger *zap.Logger) *InboundHandler {
	return &InboundHandler{messages: messages, hub: hub, logger: logger}
}

// inboundRequest 入站 webhook 请求体
type inboundRequest struct {
	From        string              `json:"from"`
	To          []string            `json:"to"`
	Subject     string              `json:"subject"`
	Text        string              `json:"text"`
	HTML        string              `json:"html"`
	Attachments []inboundAttachment `json:"attachments"`
}

// inboundAttachment 入站附件，内容为 base64 编码
type inboundAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// HandleInbound 接收一封入站邮件。
// POST /v1/inbound
func (h *InboundHandler) HandleInbound(c *gin.Context) {
	var req inboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	input := service.IngestInput{
		From:    req.From,
		To:      req.To,
		Subject: req.Subject,
		Text:    req.Text,
		HTML:    req.HTML,
	}

	for _, att := range req.Attachments {
		content, err := base64.StdEncoding.DecodeString(att.Content)
		if err != nil {
			BadRequest(c, "附件内容不是有效的 base64 编码")
			return
		}
		input.Attachments = append(input.Attachments, service.IngestAttachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Content:     content,
		})
	}

	message, err := h.messages.Ingest(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.hub != nil {
		eventType := websocket.EventMessageReceived
		if message.NeedsApproval {
			eventType = websocket.EventApprovalRequired
		}
		h.hub.NotifyLifecycle(eventType, message)
	}

	Created(c, message)
}
