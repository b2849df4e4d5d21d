package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailbridge/backend/internal/config"
	"mailbridge/backend/internal/mailer"
	"mailbridge/backend/internal/monitoring"
	"mailbridge/backend/internal/notify"
	"mailbridge/backend/internal/storage/filesystem"
	"mailbridge/backend/internal/storage/memory"
)

// fakeMailer 记录发送请求的测试邮件发送器
type fakeMailer struct {
	mu    sync.Mutex
	sent  []mailer.OutboundMail
	fail  bool
	calls int
}

func (f *fakeMailer) Send(_ context.Context, mail mailer.OutboundMail) (*mailer.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, mailer.ErrSendFailed
	}
	f.sent = append(f.sent, mail)
	return &mailer.Receipt{StatusCode: 202}, nil
}

func (f *fakeMailer) sentMails() []mailer.OutboundMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]mailer.OutboundMail, len(f.sent))
	copy(out, f.sent)
	return out
}

// recordingNotifier 记录事件的测试通知器
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	fail   bool
}

func (r *recordingNotifier) Notify(_ context.Context, event notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return context.DeadlineExceeded
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) byKind(kind notify.EventKind) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// env 打包服务层测试所需的全部依赖
type env struct {
	repo     *memory.Store
	files    *filesystem.Store
	mailer   *fakeMailer
	notifier *recordingNotifier
	metrics  *monitoring.Metrics

	messages    *MessageService
	approvals   *ApprovalService
	dispatch    *DispatchService
	maintenance *MaintenanceService

	maintCfg config.MaintenanceConfig
}

func newEnv(t *testing.T) *env {
	t.Helper()

	files, err := filesystem.NewStore(t.TempDir())
	require.NoError(t, err)

	e := &env{
		repo:     memory.NewStore(),
		files:    files,
		mailer:   &fakeMailer{},
		notifier: &recordingNotifier{},
		metrics:  monitoring.NewMetricsWith(prometheus.NewRegistry()),
		maintCfg: config.MaintenanceConfig{
			TTL:           168 * time.Hour,
			BulkThreshold: 3,
			ReplyClasses:  []string{"urgent"},
			ReplySenders:  []string{"@autoreply.example"},
			ReplyText:     "received, processing",
		},
	}

	logger := zap.NewNop()
	classifier := NewClassifier(config.ClassifyConfig{
		TrustedSenders:   []string{"@alerts.example"},
		AlertKeywords:    []string{"urgent", "outage"},
		SenderWeight:     0.3,
		KeywordWeight:    0.25,
		AttachmentWeight: 0.15,
		HighThreshold:    0.7,
		NormalThreshold:  0.35,
	})
	gate := NewApprovalGate(config.ApprovalConfig{
		ImportanceThreshold: 0.7,
		ReviewSenders:       []string{"review@corp.example"},
	})

	e.dispatch = NewDispatchService(e.repo, e.mailer, "bridge@example.com", e.metrics, logger)
	e.messages = NewMessageService(e.repo, e.files, classifier, gate, e.notifier, e.metrics, logger)
	e.approvals = NewApprovalService(e.repo, e.files, e.dispatch, e.notifier, e.metrics, logger, "accepted")
	e.maintenance = NewMaintenanceService(e.repo, e.files, e.dispatch, e.notifier, e.metrics, logger, e.maintCfg)

	return e
}
