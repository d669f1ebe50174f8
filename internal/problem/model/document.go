// Package model defines problem and exam document shapes. Exam documents
// arrive in three historical layouts (flat question list, section list,
// section map); the shape handling is isolated here so the rest of the
// pipeline only ever sees a normalized question list.
package model

import (
	"encoding/json"

	appErr "gradex/pkg/errors"
)

// TestCase is one input/expected-output pair for a problem. Read-only to
// the grading pipeline.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	IsPublic       bool   `json:"isPublic"`
}

// CodingConfig is the nested container some documents use for test cases.
type CodingConfig struct {
	TestCases []TestCase `json:"testCases,omitempty"`
}

// Question is a coding question inside an exam document.
type Question struct {
	ID           string        `json:"id"`
	Slug         string        `json:"slug,omitempty"`
	TestCases    []TestCase    `json:"testCases,omitempty"`
	CodingConfig *CodingConfig `json:"codingConfig,omitempty"`
}

// ResolveTestCases returns the question's test cases, reading the root
// field first and falling back to codingConfig.
func (q *Question) ResolveTestCases() []TestCase {
	if len(q.TestCases) > 0 {
		return q.TestCases
	}
	if q.CodingConfig != nil {
		return q.CodingConfig.TestCases
	}
	return nil
}

// Unit is a standalone practice problem outside any exam.
type Unit struct {
	ID           string        `json:"id"`
	TestCases    []TestCase    `json:"testCases,omitempty"`
	CodingConfig *CodingConfig `json:"codingConfig,omitempty"`
}

// ResolveTestCases returns the unit's test cases, root field first.
func (u *Unit) ResolveTestCases() []TestCase {
	if len(u.TestCases) > 0 {
		return u.TestCases
	}
	if u.CodingConfig != nil {
		return u.CodingConfig.TestCases
	}
	return nil
}

// Section groups questions inside a sectioned exam document.
type Section struct {
	ID        string     `json:"id,omitempty"`
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions,omitempty"`
}

// ExamDocument is a full exam. Questions holds the flat layout; Sections
// holds either a section list or a section-id map and is decoded lazily.
type ExamDocument struct {
	ID        string          `json:"id"`
	Slug      string          `json:"slug,omitempty"`
	Questions []Question      `json:"questions,omitempty"`
	Sections  json.RawMessage `json:"sections,omitempty"`
}

// AllQuestions flattens the document into a single question list,
// whichever of the three layouts it uses.
func (d *ExamDocument) AllQuestions() ([]Question, error) {
	out := append([]Question(nil), d.Questions...)
	if len(d.Sections) == 0 || string(d.Sections) == "null" {
		return out, nil
	}

	var list []Section
	if err := json.Unmarshal(d.Sections, &list); err == nil {
		for _, sec := range list {
			out = append(out, sec.Questions...)
		}
		return out, nil
	}

	var keyed map[string]Section
	if err := json.Unmarshal(d.Sections, &keyed); err == nil {
		for _, sec := range keyed {
			out = append(out, sec.Questions...)
		}
		return out, nil
	}

	return nil, appErr.New(appErr.InvalidDocument).WithMessage("exam sections are neither a list nor a map")
}

// FindQuestion locates the first question with the given id under any of
// the supported layouts.
func (d *ExamDocument) FindQuestion(id string) (*Question, error) {
	questions, err := d.AllQuestions()
	if err != nil {
		return nil, err
	}
	for i := range questions {
		if questions[i].ID == id {
			return &questions[i], nil
		}
	}
	return nil, nil
}

// ProblemRef identifies a grading target: either a standalone unit, or a
// question inside an exam.
type ProblemRef struct {
	UnitID     string `json:"unit_id,omitempty"`
	ExamID     string `json:"exam_id,omitempty"`
	QuestionID string `json:"question_id,omitempty"`
}

// Valid reports whether the reference names exactly one target shape.
func (r ProblemRef) Valid() bool {
	if r.UnitID != "" {
		return r.ExamID == "" && r.QuestionID == ""
	}
	return r.ExamID != "" && r.QuestionID != ""
}
