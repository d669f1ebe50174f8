// Package repository loads unit and exam documents from MySQL. Documents
// are stored as JSON columns; shape handling lives in the model package.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"gradex/internal/problem/model"
	appErr "gradex/pkg/errors"
)

// ProblemRepository reads problem documents from the platform database.
type ProblemRepository struct {
	db *sql.DB
}

// NewProblemRepository creates a new repository.
func NewProblemRepository(db *sql.DB) *ProblemRepository {
	return &ProblemRepository{db: db}
}

// FindUnit returns a standalone unit by id.
func (r *ProblemRepository) FindUnit(ctx context.Context, unitID string) (*model.Unit, error) {
	if unitID == "" {
		return nil, appErr.ValidationError("unit_id", "required")
	}
	var doc []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT document FROM units WHERE id = ?", unitID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErr.New(appErr.RecordNotFound).WithDetail("unit_id", unitID)
	}
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query unit failed")
	}

	var unit model.Unit
	if err := json.Unmarshal(doc, &unit); err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidDocument, "decode unit document failed")
	}
	if unit.ID == "" {
		unit.ID = unitID
	}
	return &unit, nil
}

// FindExam returns an exam document by id or by its human-readable slug.
func (r *ProblemRepository) FindExam(ctx context.Context, ref string) (*model.ExamDocument, error) {
	if ref == "" {
		return nil, appErr.ValidationError("exam_id", "required")
	}
	var (
		id   string
		slug sql.NullString
		doc  []byte
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, slug, document FROM exams WHERE id = ? OR slug = ?", ref, ref).
		Scan(&id, &slug, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErr.New(appErr.RecordNotFound).WithDetail("exam", ref)
	}
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query exam failed")
	}

	var exam model.ExamDocument
	if err := json.Unmarshal(doc, &exam); err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidDocument, "decode exam document failed")
	}
	exam.ID = id
	if slug.Valid {
		exam.Slug = slug.String
	}
	return &exam, nil
}
