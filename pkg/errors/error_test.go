package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	t.Parallel()
	if got := New(ProblemNotFound).Error(); got != ProblemNotFound.Message() {
		t.Fatalf("expected default message, got %q", got)
	}
	if got := Newf(JobFailed, "job %s failed", "abc").Error(); got != "job abc failed" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := New(RateLimited).WithMessage("slow down").Error(); got != "slow down" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()
	cause := errors.New("disk on fire")
	err := Wrap(cause, DatabaseError)
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped error to unwrap to its cause")
	}
	if GetCode(err) != DatabaseError {
		t.Fatalf("expected DatabaseError, got %d", GetCode(err))
	}
	if Wrap(nil, DatabaseError) != nil {
		t.Fatal("wrapping nil must return nil")
	}
}

func TestGetCode(t *testing.T) {
	t.Parallel()
	if got := GetCode(nil); got != Success {
		t.Fatalf("expected Success for nil, got %d", got)
	}
	if got := GetCode(errors.New("plain")); got != InternalServerError {
		t.Fatalf("expected InternalServerError for a plain error, got %d", got)
	}
	if got := GetCode(New(JobQueueFull)); got != JobQueueFull {
		t.Fatalf("expected JobQueueFull, got %d", got)
	}
}

func TestIs(t *testing.T) {
	t.Parallel()
	err := New(SandboxUnavailable)
	if !Is(err, SandboxUnavailable) {
		t.Fatal("expected Is to match the code")
	}
	if Is(err, RateLimited) {
		t.Fatal("expected Is to reject a different code")
	}
	if Is(nil, SandboxUnavailable) {
		t.Fatal("expected Is(nil, ...) to be false")
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code ErrorCode
		want int
	}{
		{Success, http.StatusOK},
		{InvalidParams, http.StatusBadRequest},
		{ValidationFailed, http.StatusBadRequest},
		{LanguageNotSupported, http.StatusBadRequest},
		{CodeTooLarge, http.StatusBadRequest},
		{InvalidDocument, http.StatusBadRequest},
		{NotFound, http.StatusNotFound},
		{ProblemNotFound, http.StatusNotFound},
		{ExamNotFound, http.StatusNotFound},
		{RateLimited, http.StatusTooManyRequests},
		{JobQueueFull, http.StatusTooManyRequests},
		{SandboxUnavailable, http.StatusServiceUnavailable},
		{ServiceUnavailable, http.StatusServiceUnavailable},
		{JobFailed, http.StatusInternalServerError},
		{DatabaseError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Fatalf("code %d: expected status %d, got %d", tt.code, tt.want, got)
		}
	}
}

func TestWithDetail(t *testing.T) {
	t.Parallel()
	err := New(ProblemNotFound).WithDetail("unit_id", "u1").WithDetail("attempt", 2)
	if err.Details["unit_id"] != "u1" {
		t.Fatalf("expected detail to stick, got %v", err.Details)
	}
	if err.Details["attempt"] != 2 {
		t.Fatalf("expected detail to stick, got %v", err.Details)
	}
}
