package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gradex/internal/exec/model"
	appErr "gradex/pkg/errors"
)

// funcExecutor adapts a function to the Executor interface.
type funcExecutor func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error)

func (f funcExecutor) Execute(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
	return f(ctx, req)
}

func startedQueue(t *testing.T, cfg Config, exec Executor) *Queue {
	t.Helper()
	q := New(cfg, exec)
	q.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
	return q
}

func intPtr(n int) *int { return &n }

func TestEnqueueValidation(t *testing.T) {
	t.Parallel()
	q := startedQueue(t, Config{}, funcExecutor(func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
		return model.ExecutionResult{}, nil
	}))

	tests := []struct {
		name    string
		payload model.ExecutionRequest
	}{
		{name: "empty language", payload: model.ExecutionRequest{SourceCode: "print(1)"}},
		{name: "blank language", payload: model.ExecutionRequest{Language: "  ", SourceCode: "print(1)"}},
		{name: "empty source", payload: model.ExecutionRequest{Language: "python"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := q.Enqueue(context.Background(), tt.payload); !appErr.Is(err, appErr.ValidationFailed) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestEnqueueBeforeStart(t *testing.T) {
	t.Parallel()
	q := New(Config{}, funcExecutor(func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
		return model.ExecutionResult{}, nil
	}))
	_, err := q.Enqueue(context.Background(), model.ExecutionRequest{Language: "python", SourceCode: "print(1)"})
	if !appErr.Is(err, appErr.ServiceUnavailable) {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}
}

func TestEnqueueAwaitRoundTrip(t *testing.T) {
	t.Parallel()
	want := model.ExecutionResult{Stdout: "42\n", ExitCode: intPtr(0)}
	q := startedQueue(t, Config{Workers: 2}, funcExecutor(func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
		return want, nil
	}))

	job, err := q.Enqueue(context.Background(), model.ExecutionRequest{Language: "python", SourceCode: "print(42)"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	got, err := q.Await(context.Background(), job)
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if got.Stdout != want.Stdout {
		t.Fatalf("expected stdout %q, got %q", want.Stdout, got.Stdout)
	}
	if stats := q.Stats(); stats.Completed != 1 {
		t.Fatalf("expected 1 completed, got %d", stats.Completed)
	}
}

func TestAwaitPropagatesExecutorErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		execErr  error
		wantCode appErr.ErrorCode
	}{
		{name: "rate limited survives", execErr: appErr.New(appErr.RateLimited), wantCode: appErr.RateLimited},
		{name: "sandbox failure becomes job failure", execErr: appErr.New(appErr.SandboxUnavailable), wantCode: appErr.JobFailed},
		{name: "plain error becomes job failure", execErr: errors.New("boom"), wantCode: appErr.JobFailed},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q := startedQueue(t, Config{Workers: 1}, funcExecutor(func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
				return model.ExecutionResult{}, tt.execErr
			}))
			job, err := q.Enqueue(context.Background(), model.ExecutionRequest{Language: "go", SourceCode: "package main"})
			if err != nil {
				t.Fatalf("enqueue failed: %v", err)
			}
			_, err = q.Await(context.Background(), job)
			if !appErr.Is(err, tt.wantCode) {
				t.Fatalf("expected code %d, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestEnqueueFailsFastWhenFull(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	running := make(chan struct{}, 1)
	q := startedQueue(t, Config{Capacity: 1, Workers: 1}, funcExecutor(func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
		running <- struct{}{}
		<-gate
		return model.ExecutionResult{}, nil
	}))
	defer close(gate)

	payload := model.ExecutionRequest{Language: "python", SourceCode: "print(1)"}

	// first job occupies the single worker
	if _, err := q.Enqueue(context.Background(), payload); err != nil {
		t.Fatalf("enqueue 1 failed: %v", err)
	}
	<-running
	// second job fills the buffer
	if _, err := q.Enqueue(context.Background(), payload); err != nil {
		t.Fatalf("enqueue 2 failed: %v", err)
	}
	// third must fail fast instead of blocking
	_, err := q.Enqueue(context.Background(), payload)
	if !appErr.Is(err, appErr.JobQueueFull) {
		t.Fatalf("expected JobQueueFull, got %v", err)
	}
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	t.Parallel()
	const workers = 2
	var current, peak atomic.Int64
	q := startedQueue(t, Config{Workers: workers, Capacity: 32}, funcExecutor(func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return model.ExecutionResult{Stdout: req.Stdin}, nil
	}))

	jobs := make([]*Job, 0, 8)
	for i := 0; i < 8; i++ {
		job, err := q.Enqueue(context.Background(), model.ExecutionRequest{Language: "python", SourceCode: "print(1)"})
		if err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
		jobs = append(jobs, job)
	}
	for _, job := range jobs {
		if _, err := q.Await(context.Background(), job); err != nil {
			t.Fatalf("await failed: %v", err)
		}
	}
	if got := peak.Load(); got > workers {
		t.Fatalf("expected at most %d concurrent executions, saw %d", workers, got)
	}
}

func TestAbandonedCallerSkipsExecution(t *testing.T) {
	t.Parallel()
	var executed atomic.Int64
	gate := make(chan struct{})
	q := startedQueue(t, Config{Workers: 1, Capacity: 4}, funcExecutor(func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
		if req.Stdin == "blocker" {
			<-gate
			return model.ExecutionResult{}, nil
		}
		executed.Add(1)
		return model.ExecutionResult{}, nil
	}))

	// hold the only worker so the second job stays queued until its caller is gone
	if _, err := q.Enqueue(context.Background(), model.ExecutionRequest{Language: "python", SourceCode: "x", Stdin: "blocker"}); err != nil {
		t.Fatalf("enqueue blocker failed: %v", err)
	}

	callerCtx, cancel := context.WithCancel(context.Background())
	job, err := q.Enqueue(callerCtx, model.ExecutionRequest{Language: "python", SourceCode: "x"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	cancel()
	close(gate)

	_, err = q.Await(context.Background(), job)
	if !appErr.Is(err, appErr.JobFailed) {
		t.Fatalf("expected JobFailed for abandoned caller, got %v", err)
	}
	if got := executed.Load(); got != 0 {
		t.Fatalf("expected abandoned job to be skipped, executor ran %d times", got)
	}
}

func TestWorkerSurvivesPanic(t *testing.T) {
	t.Parallel()
	q := startedQueue(t, Config{Workers: 1}, funcExecutor(func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
		if req.Stdin == "panic" {
			panic("executor exploded")
		}
		return model.ExecutionResult{Stdout: "fine"}, nil
	}))

	bad, err := q.Enqueue(context.Background(), model.ExecutionRequest{Language: "python", SourceCode: "x", Stdin: "panic"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if _, err := q.Await(context.Background(), bad); !appErr.Is(err, appErr.JobFailed) {
		t.Fatalf("expected JobFailed after panic, got %v", err)
	}

	// the worker must still be alive for the next job
	good, err := q.Enqueue(context.Background(), model.ExecutionRequest{Language: "python", SourceCode: "x"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	result, err := q.Await(context.Background(), good)
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if result.Stdout != "fine" {
		t.Fatalf("expected stdout %q, got %q", "fine", result.Stdout)
	}
}

func TestStopUnblocksWaiters(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	running := make(chan struct{}, 1)
	q := New(Config{Workers: 1, Capacity: 4}, funcExecutor(func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
		running <- struct{}{}
		<-gate
		return model.ExecutionResult{}, nil
	}))
	q.Start()
	defer close(gate)

	jobA, err := q.Enqueue(context.Background(), model.ExecutionRequest{Language: "python", SourceCode: "x"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	<-running
	jobB, err := q.Enqueue(context.Background(), model.ExecutionRequest{Language: "python", SourceCode: "y"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	// the worker is stuck past the deadline, so Stop gives up on it but
	// must still fail everything so waiters unblock
	stopCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := q.Stop(stopCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error from stop, got %v", err)
	}

	for _, job := range []*Job{jobA, jobB} {
		awaitCtx, cancelAwait := context.WithTimeout(context.Background(), time.Second)
		_, err := q.Await(awaitCtx, job)
		cancelAwait()
		if !appErr.Is(err, appErr.JobFailed) {
			t.Fatalf("expected JobFailed after shutdown, got %v", err)
		}
	}
}

func TestAwaitHonorsCallerContext(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	q := startedQueue(t, Config{Workers: 1}, funcExecutor(func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
		<-gate
		return model.ExecutionResult{}, nil
	}))
	defer close(gate)

	job, err := q.Enqueue(context.Background(), model.ExecutionRequest{Language: "python", SourceCode: "x"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Await(ctx, job); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestSweepRequeuesStalledJob(t *testing.T) {
	t.Parallel()
	q := New(Config{StallAfter: time.Minute, MaxAttempts: 3}, funcExecutor(func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
		return model.ExecutionResult{}, nil
	}))

	job := &Job{ID: "stalled", state: StateQueued, done: make(chan struct{})}
	q.jobs[job.ID] = job
	if !q.claim(job) {
		t.Fatal("claim failed")
	}
	q.mu.Lock()
	job.claimedAt = time.Now().Add(-2 * time.Minute)
	q.mu.Unlock()

	q.sweep()

	q.mu.Lock()
	state := job.state
	q.mu.Unlock()
	if state != StateQueued {
		t.Fatalf("expected job back in queued state, got %s", state)
	}
	select {
	case got := <-q.pending:
		if got.ID != job.ID {
			t.Fatalf("expected job %s on the buffer, got %s", job.ID, got.ID)
		}
	default:
		t.Fatal("expected the stalled job back on the pending buffer")
	}
}

func TestSweepFailsJobPastMaxAttempts(t *testing.T) {
	t.Parallel()
	q := New(Config{StallAfter: time.Minute, MaxAttempts: 2}, funcExecutor(func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
		return model.ExecutionResult{}, nil
	}))

	job := &Job{ID: "exhausted", state: StateActive, attempts: 2, claimedAt: time.Now().Add(-2 * time.Minute), done: make(chan struct{})}
	q.jobs[job.ID] = job

	q.sweep()

	select {
	case <-job.Done():
	default:
		t.Fatal("expected job to reach a terminal state")
	}
	q.mu.Lock()
	state, execErr := job.state, job.execErr
	q.mu.Unlock()
	if state != StateFailed {
		t.Fatalf("expected failed state, got %s", state)
	}
	if !appErr.Is(execErr, appErr.JobStalled) {
		t.Fatalf("expected JobStalled, got %v", execErr)
	}
}

func TestSweepCollectsExpiredTerminalJobs(t *testing.T) {
	t.Parallel()
	q := New(Config{Retention: time.Minute}, funcExecutor(func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
		return model.ExecutionResult{}, nil
	}))

	expired := &Job{ID: "old", state: StateCompleted, doneAt: time.Now().Add(-2 * time.Minute), done: make(chan struct{})}
	fresh := &Job{ID: "new", state: StateFailed, doneAt: time.Now(), done: make(chan struct{})}
	q.jobs[expired.ID] = expired
	q.jobs[fresh.ID] = fresh

	q.sweep()

	if q.Get("old") != nil {
		t.Fatal("expected expired terminal job to be collected")
	}
	if q.Get("new") == nil {
		t.Fatal("expected fresh terminal job to be retained")
	}
}

func TestClaimRateWindow(t *testing.T) {
	t.Parallel()
	// disabled unless both knobs are set
	q := New(Config{ClaimsPerWindow: 5}, funcExecutor(func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
		return model.ExecutionResult{}, nil
	}))
	if q.limiter != nil {
		t.Fatal("expected no limiter without a window")
	}

	q = New(Config{ClaimsPerWindow: 2, Window: 100 * time.Millisecond, Workers: 4}, funcExecutor(func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
		return model.ExecutionResult{}, nil
	}))
	if q.limiter == nil {
		t.Fatal("expected a limiter")
	}
	if burst := q.limiter.Burst(); burst != 2 {
		t.Fatalf("expected burst of 2, got %d", burst)
	}

	q.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})

	// 6 claims at 2 per 100ms: the burst covers 2, the rest must wait
	// at least two refill windows
	start := time.Now()
	jobs := make([]*Job, 0, 6)
	for i := 0; i < 6; i++ {
		job, err := q.Enqueue(context.Background(), model.ExecutionRequest{Language: "python", SourceCode: "x"})
		if err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
		jobs = append(jobs, job)
	}
	for _, job := range jobs {
		if _, err := q.Await(context.Background(), job); err != nil {
			t.Fatalf("await failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("expected the claim window to throttle, finished in %v", elapsed)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	q := New(Config{}, funcExecutor(func(ctx context.Context, req model.ExecutionRequest) (model.ExecutionResult, error) {
		return model.ExecutionResult{}, nil
	}))
	q.jobs["a"] = &Job{ID: "a", state: StateQueued, done: make(chan struct{})}
	q.jobs["b"] = &Job{ID: "b", state: StateActive, done: make(chan struct{})}
	q.completed.Store(5)
	q.failed.Store(2)

	stats := q.Stats()
	if stats.Queued != 1 || stats.Active != 1 || stats.Completed != 5 || stats.Failed != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
