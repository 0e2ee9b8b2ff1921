package pipeline

import (
	"errors"
	"fmt"
)

// ErrIncompleteOutput means a step's executor returned success but the step's
// completion check still failed. That is a contract violation in the executor
// or the check, not a provider failure.
var ErrIncompleteOutput = errors.New("step did not produce expected output")

// PipelineError is the only error type the orchestrator returns. It names the
// failing step and wraps the underlying cause.
type PipelineError struct {
	Step string
	Err  error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
