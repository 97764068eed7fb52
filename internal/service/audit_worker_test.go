package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-scheduler/internal/models"
	"github.com/noah-isme/course-scheduler/pkg/jobs"
)

type auditRunnerStub struct {
	mu   sync.Mutex
	opts []AuditOptions
	err  error
}

func (s *auditRunnerStub) Run(ctx context.Context, opts AuditOptions) (*models.BlockSectionReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = append(s.opts, opts)
	if s.err != nil {
		return nil, s.err
	}
	return &models.BlockSectionReport{}, nil
}

func (s *auditRunnerStub) runs() []AuditOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditOptions(nil), s.opts...)
}

func TestAuditWorkerEnqueueRunsSweep(t *testing.T) {
	runner := &auditRunnerStub{}
	worker := NewAuditWorker(runner, AuditWorkerConfig{}, nil)
	worker.Start(context.Background())
	defer worker.Stop()

	opts := AuditOptions{Filter: models.AuditFilter{AcademicYearID: "ay-2024"}, UpdateFlags: true}
	id, err := worker.Enqueue(opts)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		state, ok := worker.Status(id)
		return ok && state.Status == jobs.StatusSucceeded
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []AuditOptions{opts}, runner.runs())
}

func TestAuditWorkerReportsFailure(t *testing.T) {
	runner := &auditRunnerStub{err: errors.New("db down")}
	worker := NewAuditWorker(runner, AuditWorkerConfig{MaxRetries: -1}, nil)
	worker.Start(context.Background())
	defer worker.Stop()

	id, err := worker.Enqueue(AuditOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		state, ok := worker.Status(id)
		return ok && state.Status == jobs.StatusFailed && state.Error == "db down"
	}, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, runner.runs(), 1)
}

func TestAuditWorkerPeriodicSweepUpdatesFlags(t *testing.T) {
	runner := &auditRunnerStub{}
	worker := NewAuditWorker(runner, AuditWorkerConfig{Interval: 10 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	require.Eventually(t, func() bool {
		return len(runner.runs()) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	worker.Stop()

	for _, opts := range runner.runs() {
		assert.True(t, opts.UpdateFlags)
	}
}

type invalidatorStub struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *invalidatorStub) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *invalidatorStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestAuditWorkerFlushesCacheBeforeMarkingSweeps(t *testing.T) {
	runner := &auditRunnerStub{}
	invalidator := &invalidatorStub{err: errors.New("redis down")}
	worker := NewAuditWorker(runner, AuditWorkerConfig{Invalidator: invalidator}, nil)
	worker.Start(context.Background())
	defer worker.Stop()

	readOnly, err := worker.Enqueue(AuditOptions{})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		state, ok := worker.Status(readOnly)
		return ok && state.Status == jobs.StatusSucceeded
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, invalidator.count())

	marking, err := worker.Enqueue(AuditOptions{UpdateFlags: true})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		state, ok := worker.Status(marking)
		return ok && state.Status == jobs.StatusSucceeded
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, invalidator.count())
	assert.Len(t, runner.runs(), 2)
}
