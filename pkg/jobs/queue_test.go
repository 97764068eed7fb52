package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForStatus(t *testing.T, q *Queue, id string, want Status) State {
	t.Helper()
	var state State
	require.Eventually(t, func() bool {
		var ok bool
		state, ok = q.State(id)
		return ok && state.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return state
}

func TestQueueRunsJobs(t *testing.T) {
	var processed int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a", Type: "audit"}))
	require.NoError(t, q.Enqueue(Job{ID: "b", Type: "audit"}))

	waitForStatus(t, q, "a", StatusSucceeded)
	waitForStatus(t, q, "b", StatusSucceeded)
	assert.Equal(t, int32(2), atomic.LoadInt32(&processed))
}

func TestQueueRetriesThenFails(t *testing.T) {
	var attempts int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("boom")
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	state := waitForStatus(t, q, "job-1", StatusFailed)
	assert.Equal(t, "boom", state.Error)
	assert.Equal(t, 3, state.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueRejectsWhenNotStarted(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "x"}))
	assert.Error(t, q.Enqueue(Job{}))

	_, ok := q.State("x")
	assert.False(t, ok)
}

func TestQueueEvery(t *testing.T) {
	var processed int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		return nil
	}, QueueConfig{})
	q.Start(context.Background())

	var seq int32
	ctx, cancel := context.WithCancel(context.Background())
	q.Every(ctx, 10*time.Millisecond, func() Job {
		n := atomic.AddInt32(&seq, 1)
		return Job{ID: string(rune('a' + n)), Type: "sweep"}
	})

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&processed) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	q.Stop()
}

func TestQueueForgetsOldStates(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{HistorySize: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "first"}))
	waitForStatus(t, q, "first", StatusSucceeded)
	require.NoError(t, q.Enqueue(Job{ID: "second"}))
	waitForStatus(t, q, "second", StatusSucceeded)

	_, ok := q.State("first")
	assert.False(t, ok)
}
