package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/mailer"
	"mailbridge/backend/internal/security"
	"mailbridge/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	domain.ErrInvalidAddress:  "邮件地址格式无效",
	domain.ErrAddressTooLong:  "邮件地址超出长度限制",
	domain.ErrEmptyRecipients: "收件人列表不能为空",
	domain.ErrEmptySender:     "发件人不能为空",

	storage.ErrMessageNotFound:    "邮件不存在",
	storage.ErrAttachmentNotFound: "附件不存在",
	storage.ErrStateConflict:      "邮件状态冲突，操作未执行",

	security.ErrDangerousAttachment: "附件类型不允许接收",
	security.ErrAttachmentTooLarge:  "附件超出大小上限",

	mailer.ErrSendFailed:    "出站投递失败",
	mailer.ErrNotConfigured: "出站通道未配置",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	for sentinel, msg := range errorMessages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return err.Error()
}

// respondError 按错误类别映射到 HTTP 状态码。
// 校验错误 400，不存在 404，状态冲突 409，传输失败 502，其余 500。
func respondError(c *gin.Context, err error) {
	msg := GetErrorMessage(err)

	switch {
	case errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, domain.ErrAddressTooLong),
		errors.Is(err, domain.ErrEmptyRecipients),
		errors.Is(err, domain.ErrEmptySender),
		errors.Is(err, security.ErrDangerousAttachment),
		errors.Is(err, security.ErrAttachmentTooLarge):
		BadRequest(c, msg)
	case errors.Is(err, storage.ErrMessageNotFound),
		errors.Is(err, storage.ErrAttachmentNotFound):
		NotFound(c, msg)
	case errors.Is(err, storage.ErrStateConflict):
		Conflict(c, msg)
	case errors.Is(err, mailer.ErrSendFailed),
		errors.Is(err, mailer.ErrNotConfigured):
		BadGateway(c, msg)
	default:
		InternalError(c, MsgInternalError)
	}
}

// 通用错误消息
const (
	MsgInvalidRequest   = "请求参数格式错误"
	MsgInvalidID        = "邮件 ID 格式无效"
	MsgInvalidIndex     = "附件序号格式无效"
	MsgRequestBodyEmpty = "请求体不能为空"
	MsgInternalError    = "服务器内部错误，请稍后重试"
)
