package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/notify"
	"mailbridge/backend/internal/storage"
)

// seedMessage 直接落库一封指定属性的邮件
func seedMessage(t *testing.T, e *env, mutate func(*domain.Message)) *domain.Message {
	t.Helper()
	message := &domain.Message{
		Direction: domain.DirectionInbound,
		From:      []string{"user@example.com"},
		To:        []string{"agent@bridge.example"},
		Subject:   "seeded",
		Text:      "seeded",
		Priority:  domain.PriorityLow,
		Processed: true,
		CreatedAt: time.Now().UTC(),
	}
	if mutate != nil {
		mutate(message)
	}
	require.NoError(t, e.repo.SaveMessage(message))
	return message
}

func expired(e *env) func(*domain.Message) {
	return func(m *domain.Message) {
		m.CreatedAt = time.Now().UTC().Add(-e.maintCfg.TTL - time.Hour)
	}
}

func TestSweepExpiredDeletesOnlyExpiredLowPriority(t *testing.T) {
	e := newEnv(t)

	old := seedMessage(t, e, expired(e))
	fresh := seedMessage(t, e, nil)
	oldButHigh := seedMessage(t, e, func(m *domain.Message) {
		expired(e)(m)
		m.Priority = domain.PriorityHigh
	})

	e.maintenance.RunCycle(context.Background())

	_, err := e.messages.Get(old.ID)
	assert.ErrorIs(t, err, storage.ErrMessageNotFound)

	_, err = e.messages.Get(fresh.ID)
	assert.NoError(t, err)
	_, err = e.messages.Get(oldButHigh.ID)
	assert.NoError(t, err)

	// 单条删除不触发聚合通知
	assert.Empty(t, e.notifier.byKind(notify.EventBulkDelete))
}

func TestSweepExpiredBulkNotification(t *testing.T) {
	e := newEnv(t)

	for i := 0; i < e.maintCfg.BulkThreshold; i++ {
		seedMessage(t, e, expired(e))
	}

	e.maintenance.RunCycle(context.Background())

	events := e.notifier.byKind(notify.EventBulkDelete)
	require.Len(t, events, 1)
	assert.Equal(t, e.maintCfg.BulkThreshold, events[0].Count)

	// 第二个周期没有新删除，不再通知
	e.maintenance.RunCycle(context.Background())
	assert.Len(t, e.notifier.byKind(notify.EventBulkDelete), 1)
}

func TestSweepAutoReplyByAlertClass(t *testing.T) {
	e := newEnv(t)

	match := seedMessage(t, e, func(m *domain.Message) {
		m.AlertClasses = []string{"urgent"}
	})
	noMatch := seedMessage(t, e, nil)

	e.maintenance.RunCycle(context.Background())

	got, err := e.messages.Get(match.ID)
	require.NoError(t, err)
	assert.True(t, got.Replied)

	got, err = e.messages.Get(noMatch.ID)
	require.NoError(t, err)
	assert.False(t, got.Replied)

	sent := e.mailer.sentMails()
	require.Len(t, sent, 1)
	assert.Equal(t, "received, processing", sent[0].Text)

	// 已回复的邮件下个周期不再处理
	e.maintenance.RunCycle(context.Background())
	assert.Len(t, e.mailer.sentMails(), 1)
}

func TestSweepAutoReplyBySenderSuffix(t *testing.T) {
	e := newEnv(t)

	match := seedMessage(t, e, func(m *domain.Message) {
		m.From = []string{"noreply@autoreply.example"}
	})

	e.maintenance.RunCycle(context.Background())

	got, err := e.messages.Get(match.ID)
	require.NoError(t, err)
	assert.True(t, got.Replied)
}

func TestSweepAutoReplySkipsPendingApproval(t *testing.T) {
	e := newEnv(t)

	pending := seedMessage(t, e, func(m *domain.Message) {
		m.AlertClasses = []string{"urgent"}
		m.NeedsApproval = true
		m.Processed = false
	})

	e.maintenance.RunCycle(context.Background())

	got, err := e.messages.Get(pending.ID)
	require.NoError(t, err)
	assert.False(t, got.Replied)
	assert.Empty(t, e.mailer.sentMails())

	// 批准之后成为回复候选
	require.NoError(t, e.repo.ApproveMessage(pending.ID))
	e.maintenance.RunCycle(context.Background())

	got, err = e.messages.Get(pending.ID)
	require.NoError(t, err)
	assert.True(t, got.Replied)
}

func TestSweepAutoReplyFailureNotifiesAndRetries(t *testing.T) {
	e := newEnv(t)

	match := seedMessage(t, e, func(m *domain.Message) {
		m.AlertClasses = []string{"urgent"}
	})

	e.mailer.fail = true
	e.maintenance.RunCycle(context.Background())

	got, err := e.messages.Get(match.ID)
	require.NoError(t, err)
	assert.False(t, got.Replied)

	failures := e.notifier.byKind(notify.EventReplyFailure)
	require.Len(t, failures, 1)
	assert.Equal(t, match.ID, failures[0].MessageID)

	// 传输恢复后下个周期补发成功
	e.mailer.fail = false
	e.maintenance.RunCycle(context.Background())

	got, err = e.messages.Get(match.ID)
	require.NoError(t, err)
	assert.True(t, got.Replied)
}

func TestDeleteWinsOverReply(t *testing.T) {
	e := newEnv(t)

	both := seedMessage(t, e, func(m *domain.Message) {
		expired(e)(m)
		m.AlertClasses = []string{"urgent"}
	})

	e.maintenance.RunCycle(context.Background())

	_, err := e.messages.Get(both.ID)
	assert.ErrorIs(t, err, storage.ErrMessageNotFound)
	assert.Empty(t, e.mailer.sentMails())
}

func TestSweepAutoReplyDisabledWithoutRules(t *testing.T) {
	e := newEnv(t)
	e.maintenance.cfg.ReplyClasses = nil
	e.maintenance.cfg.ReplySenders = nil

	seedMessage(t, e, func(m *domain.Message) {
		m.AlertClasses = []string{"urgent"}
	})

	e.maintenance.RunCycle(context.Background())
	assert.Empty(t, e.mailer.sentMails())
}
