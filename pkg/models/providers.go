package models

import "context"

// The pipeline's step executors depend on these interfaces only. Never call a
// specific generation provider directly; always inject the interface.

// PaperSource retrieves the structured document for a paper identifier.
type PaperSource interface {
	// Fetch returns the paper, or provider.ErrNotFound if the identifier has
	// no retrievable document.
	Fetch(ctx context.Context, paperID string) (*Paper, error)
	Name() string
}

// ScriptGenerator turns a paper into a scene-by-scene narration script.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, paper *Paper) (*Script, error)
	Name() string
}

// SynthesisResult is the output of narrating a full script: one combined audio
// track plus the per-scene boundaries inside it.
type SynthesisResult struct {
	Audio           []byte
	SceneBoundaries []SceneBoundary
	TotalDuration   float64
}

// SpeechSynthesizer narrates every scene of a script with the given voice.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, scenes []Scene, voice string) (*SynthesisResult, error)
	Name() string
}

// ClipRequest describes one scene clip to generate.
type ClipRequest struct {
	SceneIndex int
	Prompt     string
	Narration  string
	Duration   float64
}

// VideoGenerator produces one video clip per scene.
type VideoGenerator interface {
	GenerateClip(ctx context.Context, req ClipRequest) ([]byte, error)
	Name() string
}

// CaptionRenderer burns narration captions into clips and concatenates them.
// It operates on file paths; callers own atomic placement of outputs.
type CaptionRenderer interface {
	Caption(ctx context.Context, clipPath, text, outPath string) error
	Concat(ctx context.Context, clipPaths []string, outPath string) error
	Name() string
}
