package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

// TelegramNotifier 通过 Telegram Bot API 推送通知
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID int64
	logger *zap.Logger
}

// NewTelegramNotifier 创建 Telegram 通知器
func NewTelegramNotifier(token string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id cannot be zero")
	}

	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:    b,
		chatID: chatID,
		logger: logger,
	}, nil
}

// Notify 将事件渲染后发送到配置的会话
func (n *TelegramNotifier) Notify(ctx context.Context, event Event) error {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   event.Render(),
	})
	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}

	n.logger.Debug("telegram notification sent",
		zap.String("kind", string(event.Kind)),
		zap.Uint64("message_id", event.MessageID))
	return nil
}
