package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status describes where a job is in its lifecycle.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// State is the externally visible record of a job.
type State struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    Status    `json:"status"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	// HistorySize bounds how many finished job states are remembered.
	HistorySize int
	Logger      *zap.Logger
}

// Queue is an in-memory job dispatcher backed by goroutines. It remembers the
// state of recent jobs so callers can poll for completion.
type Queue struct {
	name    string
	handler Handler

	workers     int
	maxRetries  int
	retryDelay  time.Duration
	historySize int
	logger      *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool

	states   map[string]*State
	finished []string
}

// NewQueue builds a new queue with the provided handler. A negative MaxRetries
// disables retries.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:        name,
		handler:     handler,
		workers:     cfg.Workers,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		historySize: cfg.HistorySize,
		logger:      cfg.Logger,
		jobs:        make(chan Job, cfg.BufferSize),
		states:      make(map[string]*State),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop cancels workers and waits for them to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Sugar().Infow("queue stopped", "queue", q.name)
}

// Enqueue pushes a job onto the queue. It fails fast when the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	if job.ID == "" {
		return fmt.Errorf("queue %s: job id is required", q.name)
	}
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	q.record(job, StatusQueued, nil)
	select {
	case <-ctx.Done():
		err := fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
		q.record(job, StatusFailed, err)
		return err
	case q.jobs <- job:
		return nil
	default:
		err := fmt.Errorf("queue %s is full", q.name)
		q.record(job, StatusFailed, err)
		return err
	}
}

// Every enqueues a job built by next on each tick until ctx is done or the
// queue stops. The first job is enqueued immediately. The queue must be started.
func (q *Queue) Every(ctx context.Context, interval time.Duration, next func() Job) {
	q.mu.Lock()
	started := q.started
	q.mu.Unlock()
	if interval <= 0 || !started {
		return
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if err := q.Enqueue(next()); err != nil {
				q.logger.Sugar().Warnw("failed to enqueue periodic job", "queue", q.name, "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-q.done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// State returns the last known state of a job.
func (q *Queue) State(id string) (State, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	state, ok := q.states[id]
	if !ok {
		return State{}, false
	}
	return *state, true
}

func (q *Queue) done() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ctx.Done()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.record(job, StatusRunning, nil)
			if err := q.handler(q.ctx, job); err != nil {
				q.handleFailure(job, err)
				continue
			}
			q.record(job, StatusSucceeded, nil)
		}
	}
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.record(job, StatusFailed, err)
		q.logger.Sugar().Errorw("job exceeded retries", "queue", q.name, "job_id", job.ID, "type", job.Type, "error", err)
		return
	}
	q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)

	go func(j Job) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.logger.Sugar().Errorw("failed to requeue job", "queue", q.name, "job_id", j.ID, "error", err)
			}
		}
	}(job)
}

func (q *Queue) record(job Job, status Status, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	state, ok := q.states[job.ID]
	if !ok {
		state = &State{ID: job.ID, Type: job.Type}
		q.states[job.ID] = state
	}
	state.Status = status
	state.Attempts = job.Attempt
	state.UpdatedAt = time.Now().UTC()
	state.Error = ""
	if err != nil {
		state.Error = err.Error()
	}

	if status == StatusSucceeded || status == StatusFailed {
		q.finished = append(q.finished, job.ID)
		for len(q.finished) > q.historySize {
			delete(q.states, q.finished[0])
			q.finished = q.finished[1:]
		}
	}
}
