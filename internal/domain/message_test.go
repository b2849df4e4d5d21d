package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageState(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want State
	}{
		{"Fresh record", Message{}, StateReceived},
		{"Awaiting approval", Message{NeedsApproval: true}, StatePending},
		{"Auto processed", Message{Processed: true}, StateProcessed},
		{"Manually approved", Message{NeedsApproval: true, Approved: true}, StateApproved},
		{"Rejected implies deleted", Message{NeedsApproval: true, Rejected: true, Deleted: true}, StateRejected},
		{"TTL deleted", Message{Processed: true, Deleted: true}, StateDeleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.State())
		})
	}
}

func TestMessageTerminal(t *testing.T) {
	assert.False(t, (&Message{NeedsApproval: true}).Terminal())
	assert.True(t, (&Message{Approved: true}).Terminal())
	assert.True(t, (&Message{Rejected: true}).Terminal())
	assert.True(t, (&Message{Processed: true}).Terminal())
}

func TestMessageAge(t *testing.T) {
	now := time.Now().UTC()
	msg := &Message{CreatedAt: now.Add(-2 * time.Hour)}
	assert.Equal(t, 2*time.Hour, msg.Age(now))
}

func TestHasAlertClass(t *testing.T) {
	msg := &Message{AlertClasses: []string{"security", "billing"}}
	assert.True(t, msg.HasAlertClass("security"))
	assert.False(t, msg.HasAlertClass("news"))
}
