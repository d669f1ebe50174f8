// Package queue decouples "request to run code" from "actually running it".
// A bounded worker pool drains a pending buffer and reports results back
// through per-job completion channels, so any number of callers can submit
// while the rate-limited sandbox only ever sees a fixed number of
// concurrent executions.
package queue

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"gradex/internal/exec/model"
	appErr "gradex/pkg/errors"
	"gradex/pkg/utils/logger"
)

const (
	defaultCapacity    = 256
	defaultWorkers     = 4
	defaultStallAfter  = 2 * time.Minute
	defaultMaxAttempts = 3
	defaultRetention   = time.Minute
	janitorInterval    = 10 * time.Second
)

// Executor runs one execution request. Implemented by the sandbox client.
type Executor interface {
	Execute(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error)
}

// Config holds queue and worker pool settings.
type Config struct {
	// Capacity bounds the pending buffer; Enqueue fails fast when full.
	Capacity int `yaml:"capacity"`
	// Workers is the hard ceiling on concurrent executions.
	Workers int `yaml:"workers"`
	// ClaimsPerWindow/Window add a time-based throttle on job claims,
	// independent of the concurrency ceiling. Zero disables it.
	ClaimsPerWindow int           `yaml:"claimsPerWindow"`
	Window          time.Duration `yaml:"window"`
	// StallAfter is how long a claimed job may run before the janitor
	// considers it stalled and re-queues or fails it.
	StallAfter time.Duration `yaml:"stallAfter"`
	// MaxAttempts bounds claims per job, counting stall re-queues.
	MaxAttempts int `yaml:"maxAttempts"`
	// Retention is how long terminal jobs stay visible for waiters.
	Retention time.Duration `yaml:"retention"`
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Capacity <= 0 {
		out.Capacity = defaultCapacity
	}
	if out.Workers <= 0 {
		out.Workers = defaultWorkers
	}
	if out.StallAfter <= 0 {
		out.StallAfter = defaultStallAfter
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = defaultMaxAttempts
	}
	if out.Retention <= 0 {
		out.Retention = defaultRetention
	}
	return out
}

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	Queued    int   `json:"queued"`
	Active    int   `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Queue is an in-process job queue with a bounded worker pool.
type Queue struct {
	cfg      Config
	executor Executor
	limiter  *rate.Limiter

	mu      sync.Mutex
	jobs    map[string]*Job
	pending chan *Job

	completed atomic.Int64
	failed    atomic.Int64

	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a stopped queue. Call Start before enqueueing.
func New(cfg Config, executor Executor) *Queue {
	cfg = cfg.withDefaults()
	var limiter *rate.Limiter
	if cfg.ClaimsPerWindow > 0 && cfg.Window > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.ClaimsPerWindow)/cfg.Window.Seconds()), cfg.ClaimsPerWindow)
	}
	return &Queue{
		cfg:      cfg,
		executor: executor,
		limiter:  limiter,
		jobs:     make(map[string]*Job),
		pending:  make(chan *Job, cfg.Capacity),
	}
}

// Start launches the worker pool and the stall/GC janitor.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	q.runCtx, q.cancel = context.WithCancel(context.Background())
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(q.runCtx)
	}
	q.wg.Add(1)
	go q.janitor(q.runCtx)
}

// Stop drains the queue: workers finish their in-flight job, still-queued
// jobs are failed so waiters unblock. Returns when everything has stopped
// or ctx expires.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return nil
	}
	q.started = false
	cancel := q.cancel
	q.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	q.failPending(appErr.New(appErr.JobFailed).WithMessage("queue is shutting down"))
	return err
}

// Enqueue validates the payload, registers a new job and places it on the
// pending buffer. Fails fast with JobQueueFull when the buffer is full.
func (q *Queue) Enqueue(ctx context.Context, payload model.ExecutionRequest) (*Job, error) {
	if strings.TrimSpace(payload.Language) == "" {
		return nil, appErr.ValidationError("language", "required")
	}
	if payload.SourceCode == "" {
		return nil, appErr.ValidationError("source_code", "required")
	}

	job := &Job{
		ID:        uuid.NewString(),
		Payload:   payload,
		callerCtx: ctx,
		state:     StateQueued,
		done:      make(chan struct{}),
	}

	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return nil, appErr.New(appErr.ServiceUnavailable).WithMessage("execution queue is not running")
	}
	q.jobs[job.ID] = job
	q.mu.Unlock()

	select {
	case q.pending <- job:
	default:
		q.mu.Lock()
		delete(q.jobs, job.ID)
		q.mu.Unlock()
		return nil, appErr.New(appErr.JobQueueFull)
	}

	logger.Debug(ctx, "job enqueued", zap.String("job_id", job.ID), zap.String("language", payload.Language))
	return job, nil
}

// Await blocks until the job reaches a terminal state or ctx is cancelled.
// An abandoned wait does not cancel the job itself; the worker notices the
// dead caller context on its own.
func (q *Queue) Await(ctx context.Context, job *Job) (model.ExecutionResult, error) {
	select {
	case <-job.Done():
	case <-ctx.Done():
		return model.ExecutionResult{}, ctx.Err()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if job.state == StateCompleted && job.result != nil {
		return *job.result, nil
	}
	err := job.execErr
	if err == nil {
		err = appErr.New(appErr.JobFailed)
	}
	// RateLimited is caller-visible and must survive the queue round trip
	if appErr.Is(err, appErr.RateLimited) {
		return model.ExecutionResult{}, err
	}
	if appErr.Is(err, appErr.JobFailed) || appErr.Is(err, appErr.JobStalled) {
		return model.ExecutionResult{}, err
	}
	return model.ExecutionResult{}, appErr.Newf(appErr.JobFailed, "%s", err.Error())
}

// Get returns a job by id, or nil.
func (q *Queue) Get(id string) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobs[id]
}

// Stats returns a snapshot of queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	var queued, active int
	for _, job := range q.jobs {
		switch job.state {
		case StateQueued:
			queued++
		case StateActive:
			active++
		}
	}
	q.mu.Unlock()
	return Stats{
		Queued:    queued,
		Active:    active,
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
	}
}

// claim transitions a job from Queued to Active for exactly one worker.
func (q *Queue) claim(job *Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job.state != StateQueued {
		return false
	}
	job.state = StateActive
	job.attempts++
	job.claimedAt = time.Now()
	return true
}

func (q *Queue) complete(job *Job, result model.ExecutionResult) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job.state.Terminal() {
		return
	}
	job.state = StateCompleted
	job.result = &result
	job.doneAt = time.Now()
	q.completed.Add(1)
	close(job.done)
}

func (q *Queue) fail(job *Job, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failLocked(job, err)
}

func (q *Queue) failLocked(job *Job, err error) {
	if job.state.Terminal() {
		return
	}
	job.state = StateFailed
	job.execErr = err
	job.doneAt = time.Now()
	q.failed.Add(1)
	close(job.done)
}

// requeue puts a stalled job back on the pending buffer.
func (q *Queue) requeue(job *Job) {
	q.mu.Lock()
	if job.state != StateActive {
		q.mu.Unlock()
		return
	}
	job.state = StateQueued
	q.mu.Unlock()

	select {
	case q.pending <- job:
	default:
		q.fail(job, appErr.New(appErr.JobFailed).WithMessage("queue is full, stalled job dropped"))
	}
}

// failPending fails every non-terminal job so waiters unblock.
func (q *Queue) failPending(err error) {
	// drain the buffer first so workers that already exited leave nothing behind
drain:
	for {
		select {
		case <-q.pending:
		default:
			break drain
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.jobs {
		q.failLocked(job, err)
	}
}

// janitor re-queues stalled jobs (bounded by MaxAttempts) and garbage
// collects terminal jobs past the retention window.
func (q *Queue) janitor(ctx context.Context) {
	defer q.wg.Done()
	interval := janitorInterval
	if q.cfg.StallAfter < interval {
		interval = q.cfg.StallAfter
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.sweep()
		}
	}
}

func (q *Queue) sweep() {
	now := time.Now()
	var stalled []*Job

	q.mu.Lock()
	for id, job := range q.jobs {
		switch {
		case job.state == StateActive && now.Sub(job.claimedAt) > q.cfg.StallAfter:
			stalled = append(stalled, job)
		case job.state.Terminal() && now.Sub(job.doneAt) > q.cfg.Retention:
			delete(q.jobs, id)
		}
	}
	q.mu.Unlock()

	for _, job := range stalled {
		if job.attempts >= q.cfg.MaxAttempts {
			logger.Warn(context.Background(), "job stalled, attempts exhausted",
				zap.String("job_id", job.ID), zap.Int("attempts", job.attempts))
			q.fail(job, appErr.New(appErr.JobStalled))
			continue
		}
		logger.Warn(context.Background(), "job stalled, re-queueing",
			zap.String("job_id", job.ID), zap.Int("attempts", job.attempts))
		q.requeue(job)
	}
}
