// Package grading evaluates a submission against its problem's test cases.
// Test cases fan out concurrently through the run facade; the worker pool
// downstream is the only concurrency ceiling, shared across all
// simultaneous submissions.
package grading

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	execmodel "gradex/internal/exec/model"
	gmodel "gradex/internal/grading/model"
	pmodel "gradex/internal/problem/model"
	"gradex/pkg/utils/logger"
)

// Runner is the synchronous execution entry point (the run facade).
type Runner interface {
	Run(ctx context.Context, language, sourceCode, stdin string) (execmodel.ExecutionResult, error)
}

// Resolver turns a problem reference into its test-case set.
type Resolver interface {
	Resolve(ctx context.Context, ref pmodel.ProblemRef) ([]pmodel.TestCase, error)
}

// Engine grades submissions.
type Engine struct {
	runner   Runner
	resolver Resolver
}

// NewEngine creates a grading engine.
func NewEngine(runner Runner, resolver Resolver) *Engine {
	return &Engine{runner: runner, resolver: resolver}
}

// Grade resolves the test cases for ref, runs the submission against each
// one concurrently and aggregates a verdict. Request-level problems (an
// unresolvable ref, invalid arguments) fail the call; a failure confined
// to one test case becomes an Error-status result and never aborts the
// rest of the batch. An empty test suite is defined to trivially pass.
func (e *Engine) Grade(ctx context.Context, ref pmodel.ProblemRef, language, sourceCode string) (gmodel.GradeReport, error) {
	cases, err := e.resolver.Resolve(ctx, ref)
	if err != nil {
		return gmodel.GradeReport{}, err
	}

	if len(cases) == 0 {
		return gmodel.GradeReport{
			Status:      gmodel.StatusAccepted,
			PassedCount: 0,
			TotalCount:  0,
			Results:     []gmodel.TestCaseResult{},
		}, nil
	}

	results := make([]gmodel.TestCaseResult, len(cases))
	var g errgroup.Group
	for i := range cases {
		tc := cases[i]
		idx := i
		g.Go(func() error {
			execResult, runErr := e.runner.Run(ctx, language, sourceCode, tc.Input)
			if runErr != nil {
				logger.Warn(ctx, "test case execution failed",
					zap.Int("case", idx), zap.Error(runErr))
			}
			results[idx] = evaluateCase(tc, execResult, runErr)
			return nil
		})
	}
	// closures never return errors; per-case failures live in results
	_ = g.Wait()

	passed := 0
	for _, res := range results {
		if res.Passed {
			passed++
		}
	}
	status := gmodel.StatusWrongAnswer
	if passed == len(results) {
		status = gmodel.StatusAccepted
	}
	return gmodel.GradeReport{
		Status:      status,
		PassedCount: passed,
		TotalCount:  len(results),
		Results:     results,
	}, nil
}

// evaluateCase builds one TestCaseResult, applying the pass policy and the
// visibility redaction.
func evaluateCase(tc pmodel.TestCase, execResult execmodel.ExecutionResult, runErr error) gmodel.TestCaseResult {
	result := gmodel.TestCaseResult{IsPublic: tc.IsPublic}

	if runErr != nil {
		msg := runErr.Error()
		result.Status = gmodel.CaseError
		result.Error = &msg
		result.Input = strPtr(tc.Input)
		result.ExpectedOutput = strPtr(tc.ExpectedOutput)
		return redact(result)
	}

	actual := strings.TrimSpace(execResult.Stdout)
	expected := strings.TrimSpace(tc.ExpectedOutput)
	stderr := strings.TrimSpace(execResult.Stderr)

	// a nil exit code means the process was killed, which is never a pass
	exitedClean := execResult.ExitCode != nil && *execResult.ExitCode == 0
	hasError := stderr != "" || !exitedClean

	result.Passed = !hasError && actual == expected
	result.Input = strPtr(tc.Input)
	result.ExpectedOutput = strPtr(tc.ExpectedOutput)
	result.ActualOutput = &actual
	if result.Passed {
		result.Status = gmodel.CasePassed
	} else {
		result.Status = gmodel.CaseFailed
		if stderr != "" {
			result.Error = &stderr
		}
	}
	return redact(result)
}

// redact nulls out everything a private test case must not reveal.
func redact(result gmodel.TestCaseResult) gmodel.TestCaseResult {
	if result.IsPublic {
		return result
	}
	result.Input = nil
	result.ExpectedOutput = nil
	result.ActualOutput = nil
	result.Error = nil
	return result
}

func strPtr(s string) *string {
	return &s
}
