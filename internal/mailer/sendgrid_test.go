package mailer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSendGridMailerSend(t *testing.T) {
	var captured sendRequest
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("X-Message-Id", "msg-123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	m, err := NewSendGridMailer(server.URL, "sg-key", "bridge@example.com", zap.NewNop())
	require.NoError(t, err)

	receipt, err := m.Send(context.Background(), OutboundMail{
		To:      []string{"user@example.com"},
		Subject: "hello",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sg-key", authHeader)
	assert.Equal(t, "msg-123", receipt.ProviderMessageID)
	assert.Equal(t, http.StatusAccepted, receipt.StatusCode)

	require.Len(t, captured.Personalizations, 1)
	assert.Equal(t, "user@example.com", captured.Personalizations[0].To[0].Email)
	assert.Equal(t, "bridge@example.com", captured.From.Email)
	assert.Equal(t, "hello", captured.Subject)
	require.Len(t, captured.Content, 2)
	assert.Equal(t, "text/plain", captured.Content[0].Type)
	assert.Equal(t, "text/html", captured.Content[1].Type)
}

func TestSendGridMailerEncodesAttachments(t *testing.T) {
	var captured sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	m, err := NewSendGridMailer(server.URL, "sg-key", "bridge@example.com", zap.NewNop())
	require.NoError(t, err)

	_, err = m.Send(context.Background(), OutboundMail{
		To:      []string{"user@example.com"},
		Subject: "with attachment",
		Text:    "see attached",
		Attachments: []OutboundAttachment{
			{Filename: "report.pdf", ContentType: "application/pdf", Content: []byte("pdf-bytes")},
		},
	})
	require.NoError(t, err)

	require.Len(t, captured.Attachments, 1)
	assert.Equal(t, "report.pdf", captured.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", captured.Attachments[0].Type)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("pdf-bytes")), captured.Attachments[0].Content)
}

func TestSendGridMailerExplicitFromWins(t *testing.T) {
	var captured sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	m, err := NewSendGridMailer(server.URL, "sg-key", "bridge@example.com", zap.NewNop())
	require.NoError(t, err)

	_, err = m.Send(context.Background(), OutboundMail{
		From: "override@example.com",
		To:   []string{"user@example.com"},
		Text: "x",
	})
	require.NoError(t, err)
	assert.Equal(t, "override@example.com", captured.From.Email)
}

func TestSendGridMailerRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad request"}]}`, http.StatusBadRequest)
	}))
	defer server.Close()

	m, err := NewSendGridMailer(server.URL, "sg-key", "bridge@example.com", zap.NewNop())
	require.NoError(t, err)

	_, err = m.Send(context.Background(), OutboundMail{
		To:   []string{"user@example.com"},
		Text: "x",
	})
	require.ErrorIs(t, err, ErrSendFailed)
}

func TestSendGridMailerNoRecipients(t *testing.T) {
	m, err := NewSendGridMailer("http://unused.invalid", "sg-key", "bridge@example.com", zap.NewNop())
	require.NoError(t, err)

	_, err = m.Send(context.Background(), OutboundMail{Text: "x"})
	require.ErrorIs(t, err, ErrSendFailed)
}

func TestNewSendGridMailerRequiresConfig(t *testing.T) {
	_, err := NewSendGridMailer("http://unused.invalid", "", "bridge@example.com", zap.NewNop())
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewSendGridMailer("http://unused.invalid", "sg-key", "", zap.NewNop())
	require.ErrorIs(t, err, ErrNotConfigured)
}
