package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestScheduler(t *testing.T, timeout time.Duration) *Scheduler {
	t.Helper()
	s, err := New("Europe/London", timeout, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New("Nowhere/Special", 0, nil)
	assert.Error(t, err)
}

func TestAddJob_ListAndRemove(t *testing.T) {
	s := newTestScheduler(t, time.Minute)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.AddIntervalJob("watch", 6, noop))
	require.NoError(t, s.AddJob("digest", "0 7 * * *", noop))
	assert.Error(t, s.AddJob("bad", "not a schedule", noop))
	assert.Error(t, s.AddIntervalJob("zero", 0, noop))

	s.Start()
	defer func() { <-s.Stop().Done() }()

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "digest", jobs[0].Name)
	assert.Equal(t, "watch", jobs[1].Name)
	assert.False(t, jobs[1].NextRun.IsZero())

	s.RemoveJob("digest")
	s.RemoveJob("unknown")
	jobs = s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "watch", jobs[0].Name)
}

func TestAddJob_ReplacesSameName(t *testing.T) {
	s := newTestScheduler(t, time.Minute)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.AddIntervalJob("watch", 6, noop))
	require.NoError(t, s.AddIntervalJob("watch", 2, noop))

	assert.Len(t, s.ListJobs(), 1)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestRunNow_AppliesTimeout(t *testing.T) {
	s := newTestScheduler(t, 20*time.Millisecond)

	err := s.RunNow("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	boom := errors.New("boom")
	assert.ErrorIs(t, s.RunNow("fails", func(context.Context) error { return boom }), boom)
}

func TestScheduledJobRunsAndStopCancels(t *testing.T) {
	s := newTestScheduler(t, time.Minute)
	var runs atomic.Int32
	started := make(chan struct{}, 1)

	require.NoError(t, s.AddJob("tick", "@every 1s", func(ctx context.Context) error {
		runs.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}))
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never ran")
	}

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("Stop did not cancel the running job")
	}
	assert.Equal(t, int32(1), runs.Load(), "overlapping runs are skipped")
}
