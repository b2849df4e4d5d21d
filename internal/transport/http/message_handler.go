package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailbridge/backend/internal/service"
)

// MessageHandler 处理邮件查询接口。
type MessageHandler struct {
	messages *service.MessageService
	logger   *zap.Logger
}

// NewMessageHandler 创建邮件查询处理器。
func NewMessageHandler(messages *service.MessageService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

// ListMessages 分页列出未删除的邮件。
// GET /v1/mail?limit=50&offset=0
func (h *MessageHandler) ListMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.messages.List(limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	Success(c, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}

// GetMessage 按 ID 获取单封邮件。
// GET /v1/mail/:id
func (h *MessageHandler) GetMessage(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, MsgInvalidID)
		return
	}

	message, err := h.messages.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}

	Success(c, message)
}

// GetAttachment 下载邮件的指定附件。
// GET /v1/mail/:id/attachments/:index
func (h *MessageHandler) GetAttachment(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, MsgInvalidID)
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		BadRequest(c, MsgInvalidIndex)
		return
	}

	attachment, err := h.messages.GetAttachment(id, index)
	if err != nil {
		respondError(c, err)
		return
	}

	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", "attachment; filename=\""+attachment.Filename+"\"")
	c.Data(200, contentType, attachment.Content)
}

// GetStats 返回邮件生命周期计数统计。
// GET /v1/mail/stats
func (h *MessageHandler) GetStats(c *gin.Context) {
	stats, err := h.messages.Stats()
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, stats)
}
