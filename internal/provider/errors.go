// Package provider holds the clients for the external generation services the
// pipeline calls, plus the error taxonomy the rest of the system branches on.
package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider failures.
var (
	// ErrNotFound means the paper identifier has no retrievable document.
	ErrNotFound = errors.New("paper not found")
	// ErrInvalidResponse means a provider returned output that failed schema
	// validation; it is wrapped into a GenerationError before surfacing.
	ErrInvalidResponse = errors.New("provider returned invalid response")
	// ErrUnauthorized means the provider rejected our credentials (401/403).
	ErrUnauthorized = errors.New("provider rejected credentials")
	// ErrRateLimited means the provider throttled us and retries ran out.
	ErrRateLimited = errors.New("provider rate limit exceeded")
)

// GenerationError reports that an external generation provider returned
// malformed, empty, or failed output. It is terminal for the current pipeline
// invocation; re-invoking the pipeline retries only the failed step.
type GenerationError struct {
	Provider     string
	SceneIndices []int // scenes that failed, when the step is per-scene
	Err          error
}

func (e *GenerationError) Error() string {
	if len(e.SceneIndices) > 0 {
		return fmt.Sprintf("%s generation failed for scenes %v: %v", e.Provider, e.SceneIndices, e.Err)
	}
	return fmt.Sprintf("%s generation failed: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// transientError marks an error as worth retrying with backoff.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so RetryTransient will retry it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked retryable.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
