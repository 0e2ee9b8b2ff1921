// Package pipeline contains the video-generation pipeline core: the step
// abstraction, the per-step completion checks over the artifact directory, the
// step executors, and the orchestrator that runs them in order with
// skip-if-complete semantics.
package pipeline

import (
	"context"

	"github.com/scivid/scivid/internal/artifact"
)

// Step names, in pipeline order.
const (
	StepFetchPaper     = "fetch-paper"
	StepGenerateScript = "generate-script"
	StepGenerateAudio  = "generate-audio"
	StepGenerateVideos = "generate-videos"
	StepAddCaptions    = "add-captions"
)

// Step is one unit of pipeline work: a completion predicate over the artifact
// directory and an executor that makes the predicate true.
//
// Complete must be side-effect-free, fast, and treat a missing or malformed
// artifact as "not complete" rather than failing. Execute may assume every
// earlier step's completion check passes; the orchestrator enforces ordering.
type Step struct {
	Name        string
	Description string
	Complete    func(dir artifact.Dir) bool
	Execute     func(ctx context.Context, dir artifact.Dir) error
}
