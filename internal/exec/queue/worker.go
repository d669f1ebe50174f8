package queue

import (
	"context"

	"go.uber.org/zap"

	appErr "gradex/pkg/errors"
	"gradex/pkg/utils/logger"
)

// worker claims pending jobs one at a time and drives them to a terminal
// state. One failing job never takes the worker down.
func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		if q.limiter != nil {
			if err := q.limiter.Wait(ctx); err != nil {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case job := <-q.pending:
			q.process(job)
		}
	}
}

func (q *Queue) process(job *Job) {
	if !q.claim(job) {
		// already terminal (failed by the janitor or a shutdown)
		return
	}

	callerCtx := job.callerCtx
	if callerCtx == nil {
		callerCtx = context.Background()
	}
	if err := callerCtx.Err(); err != nil {
		q.fail(job, appErr.Newf(appErr.JobFailed, "caller abandoned job: %v", err))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error(callerCtx, "worker panic", zap.String("job_id", job.ID), zap.Any("panic", r))
			q.fail(job, appErr.Newf(appErr.JobFailed, "worker panic: %v", r))
		}
	}()

	result, err := q.executor.Execute(callerCtx, job.Payload)
	if err != nil {
		logger.Warn(callerCtx, "job execution failed", zap.String("job_id", job.ID), zap.Error(err))
		q.fail(job, err)
		return
	}
	q.complete(job, result)
}
