package httptransport

import (
	"encoding/base64"
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/service"
	"mailbridge/backend/internal/websocket"
)

// ManageHandler 处理审批、回复与出站等管理操作。
type ManageHandler struct {
	messages  *service.MessageService
	approvals *service.ApprovalService
	dispatch  *service.DispatchService
	hub       *websocket.Hub
	replyText string
	logger    *zap.Logger
}

// NewManageHandler 创建管理操作处理器。
func NewManageHandler(
	messages *service.MessageService,
	approvals *service.ApprovalService,
	dispatch *service.DispatchService,
	hub *websocket.Hub,
	replyText string,
	logger *zap.Logger,
) *ManageHandler {
	return &ManageHandler{
		messages:  messages,
		approvals: approvals,
		dispatch:  dispatch,
		hub:       hub,
		replyText: replyText,
		logger:    logger,
	}
}

func parseMessageID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, MsgInvalidID)
		return 0, false
	}
	return id, true
}

// notifyLifecycle 操作成功后向 websocket 订阅端推送事件。
// message 在操作前取出，mutate 把新状态补到副本上再广播。
func (h *ManageHandler) notifyLifecycle(eventType websocket.EventType, message *domain.Message, mutate func(*domain.Message)) {
	if h.hub == nil || message == nil {
		return
	}
	if mutate != nil {
		mutate(message)
	}
	h.hub.NotifyLifecycle(eventType, message)
}

// ApproveMessage 批准一封待审批邮件并发送确认回执。
// POST /v1/mail/:id/approve
func (h *ManageHandler) ApproveMessage(c *gin.Context) {
	id, ok := parseMessageID(c)
	if !ok {
		return
	}

	message, _ := h.messages.Get(id)
	if err := h.approvals.Approve(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	h.notifyLifecycle(websocket.EventMessageApproved, message, func(m *domain.Message) {
		m.NeedsApproval = false
		m.Approved = true
	})
	Success(c, gin.H{"id": id, "approved": true})
}

// RejectMessage 拒绝一封待审批邮件并清理其附件。
// POST /v1/mail/:id/reject
func (h *ManageHandler) RejectMessage(c *gin.Context) {
	id, ok := parseMessageID(c)
	if !ok {
		return
	}

	message, _ := h.messages.Get(id)
	if err := h.approvals.Reject(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	h.notifyLifecycle(websocket.EventMessageRejected, message, func(m *domain.Message) {
		m.NeedsApproval = false
		m.Rejected = true
	})
	Success(c, gin.H{"id": id, "rejected": true})
}

// DeleteMessage 手动删除一封邮件。
// DELETE /v1/mail/:id
func (h *ManageHandler) DeleteMessage(c *gin.Context) {
	id, ok := parseMessageID(c)
	if !ok {
		return
	}

	message, _ := h.messages.Get(id)
	if err := h.messages.Delete(id); err != nil {
		respondError(c, err)
		return
	}

	h.notifyLifecycle(websocket.EventMessageDeleted, message, func(m *domain.Message) {
		m.Deleted = true
	})
	Success(c, gin.H{"id": id, "deleted": true})
}

// replyRequest 手动回复请求体，text 为空时使用配置的默认回复文案
type replyRequest struct {
	Text string `json:"text"`
}

// ReplyMessage 对一封入站邮件发送回复，每封邮件只回复一次。
// POST /v1/mail/:id/reply
func (h *ManageHandler) ReplyMessage(c *gin.Context) {
	id, ok := parseMessageID(c)
	if !ok {
		return
	}

	// 请求体可以省略，省略时使用配置的默认回复文案
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	text := req.Text
	if text == "" {
		text = h.replyText
	}

	message, _ := h.messages.Get(id)
	if err := h.dispatch.ReplyTo(c.Request.Context(), id, text); err != nil {
		respondError(c, err)
		return
	}

	h.notifyLifecycle(websocket.EventMessageReplied, message, func(m *domain.Message) {
		m.Replied = true
	})
	Success(c, gin.H{"id": id, "replied": true})
}

// outboundRequest 出站邮件请求体
type outboundRequest struct {
	To          []string            `json:"to"`
	Subject     string              `json:"subject"`
	Text        string              `json:"text"`
	HTML        string              `json:"html"`
	Attachments []inboundAttachment `json:"attachments"`
}

// SendOutbound 直接发送一封出站邮件并记录审计记录。
// POST /v1/outbound
func (h *ManageHandler) SendOutbound(c *gin.Context) {
	var req outboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	input := service.OutboundInput{
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

	message, err := h.dispatch.Send(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	Created(c, message)
}
