package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is returned when the model does not answer within the
	// request timeout.
	ErrTimeout = errors.New("model timed out")

	// ErrRunnerFailed is returned when the runtime rejects the request or
	// the runner process exits non-zero.
	ErrRunnerFailed = errors.New("model runner failed")
)

// TimeoutError carries the model and bound of a timed out request.
type TimeoutError struct {
	Model   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Ollama timed out after %gs. Model=%s", e.Timeout.Seconds(), e.Model)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// RunnerError carries the diagnostics of a failed generation: the command or
// endpoint, the model and whatever the runtime wrote to stderr or the body.
type RunnerError struct {
	Command string
	Model   string
	Stderr  string
	Err     error
}

func (e *RunnerError) Error() string {
	detail := e.Stderr
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	return fmt.Sprintf("Ollama failed (command=%q model=%s): %s", e.Command, e.Model, detail)
}

func (e *RunnerError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRunnerFailed}
	}
	return []error{ErrRunnerFailed, e.Err}
}
