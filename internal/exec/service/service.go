// Package service exposes the synchronous execution entry point used by
// the rest of the application. Every run goes through the queue, even when
// the sandbox cache would make a direct call free, so the worker pool stays
// the single admission-control point for the remote sandbox.
package service

import (
	"context"

	"gradex/internal/exec/model"
	"gradex/internal/exec/queue"
	appErr "gradex/pkg/errors"
)

const defaultMaxCodeBytes = 64 * 1024

// Config holds facade-level submission limits.
type Config struct {
	// Languages is the allow list of accepted language identifiers.
	// Empty accepts anything (the sandbox decides).
	Languages []string `yaml:"languages"`
	// MaxCodeBytes bounds submitted source size.
	MaxCodeBytes int `yaml:"maxCodeBytes"`
}

// Service is the Run Facade: enqueue-then-await, synchronous to callers.
type Service struct {
	queue        *queue.Queue
	languages    map[string]struct{}
	maxCodeBytes int
}

// New creates the facade on top of a started queue.
func New(cfg Config, q *queue.Queue) *Service {
	langs := make(map[string]struct{}, len(cfg.Languages))
	for _, l := range cfg.Languages {
		langs[l] = struct{}{}
	}
	maxBytes := cfg.MaxCodeBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxCodeBytes
	}
	return &Service{
		queue:        q,
		languages:    langs,
		maxCodeBytes: maxBytes,
	}
}

// Run executes one piece of code and blocks until the worker pool has
// produced a result. JobFailed and RateLimited propagate unchanged.
func (s *Service) Run(ctx context.Context, language, sourceCode, stdin string) (model.ExecutionResult, error) {
	if len(s.languages) > 0 {
		if _, ok := s.languages[language]; !ok {
			return model.ExecutionResult{}, appErr.New(appErr.LanguageNotSupported).WithDetail("language", language)
		}
	}
	if len(sourceCode) > s.maxCodeBytes {
		return model.ExecutionResult{}, appErr.New(appErr.CodeTooLarge)
	}

	job, err := s.queue.Enqueue(ctx, model.ExecutionRequest{
		Language:   language,
		SourceCode: sourceCode,
		Stdin:      stdin,
	})
	if err != nil {
		return model.ExecutionResult{}, err
	}
	return s.queue.Await(ctx, job)
}

// Stats exposes queue counters for the health endpoint.
func (s *Service) Stats() queue.Stats {
	return s.queue.Stats()
}
