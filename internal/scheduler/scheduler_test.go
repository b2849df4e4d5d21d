package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAddIntervalJobValidation(t *testing.T) {
	s, err := New(zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = s.Stop() }()

	assert.Error(t, s.AddIntervalJob("", time.Second, func() {}))
	assert.Error(t, s.AddIntervalJob("job", 0, func() {}))
	assert.Error(t, s.AddIntervalJob("job", time.Second, nil))
}

func TestIntervalJobRuns(t *testing.T) {
	s, err := New(zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = s.Stop() }()

	ran := make(chan struct{}, 1)
	require.NoError(t, s.AddIntervalJob("tick", 10*time.Millisecond, func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	}))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled job did not run")
	}
}

func TestStopIsIdempotentEnough(t *testing.T) {
	s, err := New(zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Stop())
}
