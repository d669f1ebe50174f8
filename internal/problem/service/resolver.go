// Package service resolves a problem reference into its test-case set.
// Exam documents are large and expensive to fetch, so resolved question
// sets are memoized in the shared cache under both the exam id and its
// slug; either identifier hits the same entry.
package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"gradex/internal/common/cache"
	"gradex/internal/problem/model"
	appErr "gradex/pkg/errors"
	"gradex/pkg/utils/logger"
)

const (
	unitKeyPrefix = "problem:unit:"
	examKeyPrefix = "problem:exam:"

	defaultUnitTTL = 5 * time.Minute
	defaultExamTTL = 15 * time.Minute
	emptyTTL       = time.Minute
)

// ProblemStore is the document source behind the resolver.
type ProblemStore interface {
	FindUnit(ctx context.Context, unitID string) (*model.Unit, error)
	FindExam(ctx context.Context, ref string) (*model.ExamDocument, error)
}

// Resolver turns a ProblemRef into a normalized test-case list.
type Resolver struct {
	store   ProblemStore
	cache   cache.Cache
	unitTTL time.Duration
	examTTL time.Duration
}

// NewResolver creates a resolver. cacheClient may be nil to disable
// memoization.
func NewResolver(store ProblemStore, cacheClient cache.Cache) *Resolver {
	return &Resolver{
		store:   store,
		cache:   cacheClient,
		unitTTL: defaultUnitTTL,
		examTTL: defaultExamTTL,
	}
}

// Resolve returns the test cases for the referenced problem. A reference
// that cannot be located under any supported document shape fails with
// ProblemNotFound; a located question with no test cases resolves to an
// empty list, which is a valid outcome.
func (r *Resolver) Resolve(ctx context.Context, ref model.ProblemRef) ([]model.TestCase, error) {
	if !ref.Valid() {
		return nil, appErr.ValidationError("problem_ref", "unit id or exam id + question id required")
	}
	if ref.UnitID != "" {
		return r.resolveUnit(ctx, ref.UnitID)
	}
	return r.resolveExamQuestion(ctx, ref.ExamID, ref.QuestionID)
}

func (r *Resolver) resolveUnit(ctx context.Context, unitID string) ([]model.TestCase, error) {
	fetch := func(ctx context.Context) ([]model.TestCase, error) {
		unit, err := r.store.FindUnit(ctx, unitID)
		if err != nil {
			if appErr.Is(err, appErr.RecordNotFound) {
				return nil, appErr.New(appErr.ProblemNotFound).WithDetail("unit_id", unitID)
			}
			return nil, err
		}
		return unit.ResolveTestCases(), nil
	}

	if r.cache == nil {
		return fetch(ctx)
	}
	return cache.GetWithCached(ctx, r.cache, unitKeyPrefix+unitID, r.unitTTL, emptyTTL,
		func(cases []model.TestCase) bool { return len(cases) == 0 },
		marshalCases, unmarshalCases, fetch)
}

// questionSet maps question id to its resolved test cases. Presence of a
// key means the question exists, even with zero cases.
type questionSet map[string][]model.TestCase

func (r *Resolver) resolveExamQuestion(ctx context.Context, examRef, questionID string) ([]model.TestCase, error) {
	set, err := r.loadExamSet(ctx, examRef)
	if err != nil {
		return nil, err
	}
	cases, ok := set[questionID]
	if !ok {
		return nil, appErr.New(appErr.ProblemNotFound).
			WithDetail("exam", examRef).
			WithDetail("question_id", questionID)
	}
	return cases, nil
}

func (r *Resolver) loadExamSet(ctx context.Context, examRef string) (questionSet, error) {
	if r.cache != nil {
		if val, err := r.cache.Get(ctx, examKeyPrefix+examRef); err == nil && val != "" {
			var set questionSet
			if err := json.Unmarshal([]byte(val), &set); err == nil {
				return set, nil
			}
		}
	}

	exam, err := r.store.FindExam(ctx, examRef)
	if err != nil {
		if appErr.Is(err, appErr.RecordNotFound) {
			return nil, appErr.New(appErr.ProblemNotFound).WithDetail("exam", examRef)
		}
		return nil, err
	}

	questions, err := exam.AllQuestions()
	if err != nil {
		return nil, err
	}
	set := make(questionSet, len(questions))
	for i := range questions {
		q := &questions[i]
		if _, seen := set[q.ID]; seen {
			// first match wins across shapes
			continue
		}
		set[q.ID] = q.ResolveTestCases()
	}

	if r.cache != nil {
		if data, err := json.Marshal(set); err == nil {
			// store under both identifiers so either one hits the cache;
			// concurrent writers compute identical values, last write wins
			if err := r.cache.Set(ctx, examKeyPrefix+exam.ID, string(data), r.examTTL); err != nil {
				logger.Warn(ctx, "cache exam question set failed", zap.Error(err), zap.String("exam_id", exam.ID))
			}
			if exam.Slug != "" && exam.Slug != exam.ID {
				if err := r.cache.Set(ctx, examKeyPrefix+exam.Slug, string(data), r.examTTL); err != nil {
					logger.Warn(ctx, "cache exam question set failed", zap.Error(err), zap.String("exam_slug", exam.Slug))
				}
			}
		}
	}
	return set, nil
}

func marshalCases(cases []model.TestCase) string {
	data, err := json.Marshal(cases)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalCases(data string) ([]model.TestCase, error) {
	var cases []model.TestCase
	if err := json.Unmarshal([]byte(data), &cases); err != nil {
		return nil, err
	}
	return cases, nil
}
