package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mailbridge/backend/internal/config"
	"mailbridge/backend/internal/domain"
)

func classifierConfig() config.ClassifyConfig {
	return config.ClassifyConfig{
		TrustedSenders:   []string{"boss@corp.example", "@alerts.example"},
		AlertKeywords:    []string{"urgent", "outage"},
		SenderWeight:     0.3,
		KeywordWeight:    0.25,
		AttachmentWeight: 0.15,
		HighThreshold:    0.7,
		NormalThreshold:  0.35,
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := NewClassifier(classifierConfig())

	first := c.Classify([]string{"user@example.com"}, "urgent: disk", "outage in rack 3", 1)
	second := c.Classify([]string{"user@example.com"}, "urgent: disk", "outage in rack 3", 1)
	assert.Equal(t, first, second)
}

func TestClassifyBuckets(t *testing.T) {
	c := NewClassifier(classifierConfig())

	tests := []struct {
		name        string
		from        []string
		subject     string
		text        string
		attachments int
		priority    domain.Priority
		classes     []string
	}{
		{
			name:     "plain mail is low",
			from:     []string{"user@example.com"},
			subject:  "hello",
			text:     "just checking in",
			priority: domain.PriorityLow,
		},
		{
			name:     "single keyword is normal",
			from:     []string{"user@example.com"},
			subject:  "urgent question",
			text:     "nothing serious",
			priority: domain.PriorityNormal,
			classes:  []string{"urgent"},
		},
		{
			name:        "trusted sender with keywords and attachment is high",
			from:        []string{"noreply@alerts.example"},
			subject:     "URGENT outage",
			text:        "datacenter down",
			attachments: 1,
			priority:    domain.PriorityHigh,
			classes:     []string{"urgent", "outage"},
		},
		{
			name:     "trusted exact sender alone stays low",
			from:     []string{"boss@corp.example"},
			subject:  "lunch",
			text:     "today?",
			priority: domain.PriorityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.from, tt.subject, tt.text, tt.attachments)
			assert.Equal(t, tt.priority, got.Priority)
			assert.Equal(t, tt.classes, got.AlertClasses)
			assert.GreaterOrEqual(t, got.Importance, 0.0)
			assert.LessOrEqual(t, got.Importance, 1.0)
		})
	}
}

func TestClassifyKeywordCaseInsensitive(t *testing.T) {
	c := NewClassifier(classifierConfig())
	got := c.Classify([]string{"user@example.com"}, "OUTAGE", "", 0)
	assert.Equal(t, []string{"outage"}, got.AlertClasses)
}

func TestClassifyImportanceClamped(t *testing.T) {
	cfg := classifierConfig()
	cfg.KeywordWeight = 0.9
	c := NewClassifier(cfg)

	got := c.Classify([]string{"boss@corp.example"}, "urgent outage", "urgent outage", 3)
	assert.Equal(t, 1.0, got.Importance)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
}

func TestMatchSenderList(t *testing.T) {
	list := []string{"ops@corp.example", "@vendor.net"}

	assert.True(t, matchSenderList([]string{"ops@corp.example"}, list))
	assert.True(t, matchSenderList([]string{"Billing@Vendor.NET "}, list))
	assert.False(t, matchSenderList([]string{"ops@other.example"}, list))
	assert.False(t, matchSenderList(nil, list))
}
