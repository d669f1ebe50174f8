package queue

import (
	"context"
	"time"

	"gradex/internal/exec/model"
)

// JobState describes where a job is in its lifecycle.
type JobState string

const (
	StateQueued    JobState = "queued"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is one queued execution. It is created by Enqueue and owned by the
// queue for its lifetime; all state transitions go through queue methods.
type Job struct {
	ID      string
	Payload model.ExecutionRequest

	// callerCtx is the context of the caller that enqueued the job. Workers
	// check it before and during execution so abandoned callers release
	// their slot early.
	callerCtx context.Context

	// guarded by the queue mutex
	state     JobState
	result    *model.ExecutionResult
	execErr   error
	attempts  int
	claimedAt time.Time
	doneAt    time.Time

	// closed exactly once when the job reaches a terminal state
	done chan struct{}
}

// Done returns a channel closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}
