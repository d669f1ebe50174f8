package model

// ExecutionRequest describes one code execution against the remote sandbox.
// It is constructed per call and never persisted.
type ExecutionRequest struct {
	Language   string `json:"language"`
	SourceCode string `json:"source_code"`
	Stdin      string `json:"stdin"`
}

// ExecutionResult is the normalized outcome of one sandbox execution.
// ExitCode is nil when the process did not terminate normally (killed by
// signal, timed out); callers must treat nil as non-success.
type ExecutionResult struct {
	Stdout   string  `json:"stdout"`
	Stderr   string  `json:"stderr"`
	Output   string  `json:"output"`
	ExitCode *int    `json:"exit_code"`
	Signal   *string `json:"signal"`
}

// Exited reports whether the process terminated normally with the given code.
func (r *ExecutionResult) Exited() bool {
	return r.ExitCode != nil
}
