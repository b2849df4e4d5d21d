package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/storage"
)

func newInbound(priority domain.Priority) *domain.Message {
	return &domain.Message{
		Direction: domain.DirectionInbound,
		From:      []string{"sender@example.com"},
		To:        []string{"agent@example.com"},
		Subject:   "test",
		Text:      "body",
		Priority:  priority,
	}
}

func TestSaveMessageAssignsMonotonicIDs(t *testing.T) {
	store := NewStore()

	first := newInbound(domain.PriorityLow)
	second := newInbound(domain.PriorityLow)
	require.NoError(t, store.SaveMessage(first))
	require.NoError(t, store.SaveMessage(second))

	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, uint64(2), second.ID)
	assert.False(t, first.CreatedAt.IsZero())
}

func TestGetMessageExcludesDeleted(t *testing.T) {
	store := NewStore()
	msg := newInbound(domain.PriorityLow)
	require.NoError(t, store.SaveMessage(msg))

	require.NoError(t, store.MarkMessageDeleted(msg.ID))

	_, err := store.GetMessage(msg.ID)
	assert.ErrorIs(t, err, storage.ErrMessageNotFound)
}

func TestListMessagesPagination(t *testing.T) {
	store := NewStore()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		msg := newInbound(domain.PriorityLow)
		msg.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveMessage(msg))
	}

	page, err := store.ListMessages(2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	// 最新的排在最前
	assert.Equal(t, uint64(5), page[0].ID)
	assert.Equal(t, uint64(4), page[1].ID)

	page, err = store.ListMessages(2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, uint64(1), page[0].ID)
}

func TestApproveIsTerminalAndIdempotentConflict(t *testing.T) {
	store := NewStore()
	msg := newInbound(domain.PriorityNormal)
	msg.NeedsApproval = true
	require.NoError(t, store.SaveMessage(msg))

	require.NoError(t, store.ApproveMessage(msg.ID))

	// 第二次审批是冲突，不是静默成功
	assert.ErrorIs(t, store.ApproveMessage(msg.ID), storage.ErrStateConflict)
	assert.ErrorIs(t, store.RejectMessage(msg.ID), storage.ErrStateConflict)

	got, err := store.GetMessage(msg.ID)
	require.NoError(t, err)
	assert.True(t, got.Approved)
	assert.False(t, got.Rejected)
	assert.Equal(t, domain.StateApproved, got.State())
}

func TestRejectMarksDeleted(t *testing.T) {
	store := NewStore()
	msg := newInbound(domain.PriorityNormal)
	msg.NeedsApproval = true
	require.NoError(t, store.SaveMessage(msg))

	require.NoError(t, store.RejectMessage(msg.ID))

	_, err := store.GetMessage(msg.ID)
	assert.ErrorIs(t, err, storage.ErrMessageNotFound)

	counts, err := store.CountByState()
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Rejected)
	assert.Equal(t, 0, counts.Deleted) // rejected 单独计数
}

func TestMarkRepliedConflictOnSecondCall(t *testing.T) {
	store := NewStore()
	msg := newInbound(domain.PriorityLow)
	msg.Processed = true
	require.NoError(t, store.SaveMessage(msg))

	require.NoError(t, store.MarkMessageReplied(msg.ID))
	assert.ErrorIs(t, store.MarkMessageReplied(msg.ID), storage.ErrStateConflict)
}

func TestMarkDeletedConflictOnSecondCall(t *testing.T) {
	store := NewStore()
	msg := newInbound(domain.PriorityLow)
	require.NoError(t, store.SaveMessage(msg))

	require.NoError(t, store.MarkMessageDeleted(msg.ID))
	assert.ErrorIs(t, store.MarkMessageDeleted(msg.ID), storage.ErrStateConflict)
}

func TestListExpiredLowPriority(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	old := newInbound(domain.PriorityLow)
	old.CreatedAt = now.Add(-8 * 24 * time.Hour)
	fresh := newInbound(domain.PriorityLow)
	fresh.CreatedAt = now.Add(-time.Hour)
	oldHigh := newInbound(domain.PriorityHigh)
	oldHigh.CreatedAt = now.Add(-8 * 24 * time.Hour)

	require.NoError(t, store.SaveMessage(old))
	require.NoError(t, store.SaveMessage(fresh))
	require.NoError(t, store.SaveMessage(oldHigh))

	cutoff := now.Add(-7 * 24 * time.Hour)
	expired, err := store.ListExpiredLowPriority(cutoff)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, old.ID, expired[0].ID)
}

func TestListReplyCandidatesSkipsPendingRepliedDeleted(t *testing.T) {
	store := NewStore()

	eligible := newInbound(domain.PriorityLow)
	eligible.Processed = true

	pending := newInbound(domain.PriorityNormal)
	pending.NeedsApproval = true

	replied := newInbound(domain.PriorityLow)
	replied.Processed = true
	replied.Replied = true

	outbound := newInbound(domain.PriorityLow)
	outbound.Direction = domain.DirectionOutbound

	for _, m := range []*domain.Message{eligible, pending, replied, outbound} {
		require.NoError(t, store.SaveMessage(m))
	}

	deleted := newInbound(domain.PriorityLow)
	deleted.Processed = true
	require.NoError(t, store.SaveMessage(deleted))
	require.NoError(t, store.MarkMessageDeleted(deleted.ID))

	candidates, err := store.ListReplyCandidates()
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, eligible.ID, candidates[0].ID)
}

func TestApprovedPendingBecomesReplyCandidate(t *testing.T) {
	store := NewStore()
	msg := newInbound(domain.PriorityNormal)
	msg.NeedsApproval = true
	require.NoError(t, store.SaveMessage(msg))

	candidates, err := store.ListReplyCandidates()
	require.NoError(t, err)
	assert.Empty(t, candidates)

	require.NoError(t, store.ApproveMessage(msg.ID))

	candidates, err = store.ListReplyCandidates()
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestConcurrentTransitionsSingleWinner(t *testing.T) {
	store := NewStore()
	msg := newInbound(domain.PriorityLow)
	msg.NeedsApproval = true
	require.NoError(t, store.SaveMessage(msg))

	var wg sync.WaitGroup
	results := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		results <- store.ApproveMessage(msg.ID)
	}()
	go func() {
		defer wg.Done()
		results <- store.RejectMessage(msg.ID)
	}()
	wg.Wait()
	close(results)

	var succeeded, conflicted int
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, storage.ErrStateConflict)
			conflicted++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
}

func TestCloneIsolation(t *testing.T) {
	store := NewStore()
	msg := newInbound(domain.PriorityLow)
	require.NoError(t, store.SaveMessage(msg))

	got, err := store.GetMessage(msg.ID)
	require.NoError(t, err)
	got.Deleted = true // 直接改返回值不能影响存储

	again, err := store.GetMessage(msg.ID)
	require.NoError(t, err)
	assert.False(t, again.Deleted)
}

func TestGetAttachment(t *testing.T) {
	store := NewStore()
	msg := newInbound(domain.PriorityLow)
	msg.Attachments = []*domain.Attachment{
		{Filename: "a.pdf", ContentType: "application/pdf", Size: 3},
		{Filename: "b.txt", ContentType: "text/plain", Size: 5},
	}
	require.NoError(t, store.SaveMessage(msg))

	att, err := store.GetAttachment(msg.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", att.Filename)

	_, err = store.GetAttachment(msg.ID, 9)
	assert.ErrorIs(t, err, storage.ErrAttachmentNotFound)
}
