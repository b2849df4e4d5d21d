package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEventRender(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		contains []string
	}{
		{
			name: "high priority with context",
			event: Event{
				Kind:      EventHighPriority,
				MessageID: 42,
				From:      "alerts@example.com",
				Subject:   "disk failure",
			},
			contains: []string{"High priority", "ID: 42", "From: alerts@example.com", "Subject: disk failure"},
		},
		{
			name:     "bulk delete carries count",
			event:    Event{Kind: EventBulkDelete, Count: 73},
			contains: []string{"73 expired"},
		},
		{
			name: "reply failure carries detail",
			event: Event{
				Kind:      EventReplyFailure,
				MessageID: 7,
				Detail:    "send failed: 503",
			},
			contains: []string{"Auto-reply failed", "ID: 7", "send failed: 503"},
		},
		{
			name:     "startup",
			event:    Event{Kind: EventStartup},
			contains: []string{"started"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := tt.event.Render()
			for _, want := range tt.contains {
				assert.Contains(t, text, want)
			}
		})
	}
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := NewLogNotifier(zap.NewNop())
	err := n.Notify(context.Background(), Event{Kind: EventApprovalRequired, MessageID: 1})
	require.NoError(t, err)
}

func TestNewTelegramNotifierValidation(t *testing.T) {
	_, err := NewTelegramNotifier("", 123, zap.NewNop())
	require.Error(t, err)

	_, err = NewTelegramNotifier("token", 0, zap.NewNop())
	require.Error(t, err)
}
