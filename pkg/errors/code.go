package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 12000-12999: Problem & Test-case errors
// 13000-13999: Execution & Grading errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError  ErrorCode = 10100
	RecordNotFound ErrorCode = 10101

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Problem & Test-case Errors (12000-12999) ==========

	ProblemNotFound ErrorCode = 12000
	ExamNotFound    ErrorCode = 12001
	InvalidDocument ErrorCode = 12002

	// ========== Execution & Grading Errors (13000-13999) ==========

	// Submission (13000-13099)
	LanguageNotSupported ErrorCode = 13003
	CodeTooLarge         ErrorCode = 13002

	// Execution pipeline (13100-13199)
	JobQueueFull       ErrorCode = 13100
	JobFailed          ErrorCode = 13101
	RateLimited        ErrorCode = 13102
	SandboxUnavailable ErrorCode = 13103
	JobStalled         ErrorCode = 13104
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:  "Database operation failed",
	RecordNotFound: "Record not found in database",

	// Cache
	CacheError: "Cache operation failed",

	// Validation
	ValidationFailed:   "Validation failed",
	RequiredFieldEmpty: "Required field is empty",

	// Problem & Test cases
	ProblemNotFound: "Problem not found",
	ExamNotFound:    "Exam not found",
	InvalidDocument: "Invalid problem document",

	// Execution & Grading
	LanguageNotSupported: "Programming language not supported",
	CodeTooLarge:         "Code is too large",
	JobQueueFull:         "Execution queue is full, please try again later",
	JobFailed:            "Execution job failed",
	RateLimited:          "Code execution is rate limited, please try again later",
	SandboxUnavailable:   "Code execution service is unavailable",
	JobStalled:           "Execution job stalled",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == RecordNotFound, c == ProblemNotFound, c == ExamNotFound:
		return 404
	case c == TooManyRequests, c == RateLimited, c == JobQueueFull:
		return 429
	case c == ServiceUnavailable, c == SandboxUnavailable:
		return 503
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == LanguageNotSupported, c == CodeTooLarge, c == InvalidDocument:
		return 400
	default:
		return 500
	}
}
