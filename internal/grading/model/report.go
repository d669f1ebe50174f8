package model

// GradeStatus is the overall verdict of a graded submission.
type GradeStatus string

const (
	StatusAccepted    GradeStatus = "Accepted"
	StatusWrongAnswer GradeStatus = "WrongAnswer"
)

// CaseStatus is the per-test-case outcome. Error means the execution
// pipeline itself failed for this case, not that the program was wrong.
type CaseStatus string

const (
	CasePassed CaseStatus = "Passed"
	CaseFailed CaseStatus = "Failed"
	CaseError  CaseStatus = "Error"
)

// TestCaseResult is the outcome of one test case. For private cases the
// input, expected/actual output and error fields are nil; visibility is a
// redaction applied when the result is built, not a separate check later.
type TestCaseResult struct {
	Input          *string    `json:"input"`
	ExpectedOutput *string    `json:"expected_output"`
	ActualOutput   *string    `json:"actual_output"`
	Passed         bool       `json:"passed"`
	Status         CaseStatus `json:"status"`
	IsPublic       bool       `json:"is_public"`
	Error          *string    `json:"error"`
}

// GradeReport aggregates one grading call. Results keep the original
// test-case order regardless of execution completion order.
type GradeReport struct {
	Status      GradeStatus      `json:"status"`
	PassedCount int              `json:"passed_count"`
	TotalCount  int              `json:"total_count"`
	Results     []TestCaseResult `json:"results"`
}
