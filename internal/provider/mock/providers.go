// Package mock provides call-counting provider fakes for tests.
package mock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/scivid/scivid/internal/provider"
	"github.com/scivid/scivid/pkg/models"
)

// PaperSource satisfies models.PaperSource for testing.
type PaperSource struct {
	FetchFunc func(ctx context.Context, paperID string) (*models.Paper, error)
	Calls     atomic.Int64
}

func (m *PaperSource) Name() string { return "mock-source" }

func (m *PaperSource) Fetch(ctx context.Context, paperID string) (*models.Paper, error) {
	m.Calls.Add(1)
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, paperID)
	}
	return &models.Paper{
		PaperID:   paperID,
		Title:     "Mock Paper Title",
		FullText:  "Mock full text for testing.",
		FetchedAt: time.Now().UTC(),
	}, nil
}

// ScriptGenerator satisfies models.ScriptGenerator for testing.
type ScriptGenerator struct {
	GenerateFunc func(ctx context.Context, paper *models.Paper) (*models.Script, error)
	Calls        atomic.Int64
}

func (m *ScriptGenerator) Name() string { return "mock-script" }

func (m *ScriptGenerator) GenerateScript(ctx context.Context, paper *models.Paper) (*models.Script, error) {
	m.Calls.Add(1)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, paper)
	}
	return &models.Script{
		Scenes: []models.Scene{
			{Text: "Scene one narration.", VisualType: models.VisualTypeGenerated, VisualContent: "a lab bench"},
			{Text: "Scene two narration.", VisualType: models.VisualTypeGenerated, VisualContent: "a field site"},
		},
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// SpeechSynthesizer satisfies models.SpeechSynthesizer for testing.
type SpeechSynthesizer struct {
	SynthesizeFunc func(ctx context.Context, scenes []models.Scene, voice string) (*models.SynthesisResult, error)
	Calls          atomic.Int64
}

func (m *SpeechSynthesizer) Name() string { return "mock-speech" }

func (m *SpeechSynthesizer) Synthesize(ctx context.Context, scenes []models.Scene, voice string) (*models.SynthesisResult, error) {
	m.Calls.Add(1)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, scenes, voice)
	}
	boundaries := make([]models.SceneBoundary, len(scenes))
	for i := range scenes {
		boundaries[i] = models.SceneBoundary{Index: i, Start: float64(i), End: float64(i + 1)}
	}
	return &models.SynthesisResult{
		Audio:           []byte("mock-wav-bytes"),
		SceneBoundaries: boundaries,
		TotalDuration:   float64(len(scenes)),
	}, nil
}

// VideoGenerator satisfies models.VideoGenerator for testing.
type VideoGenerator struct {
	GenerateFunc func(ctx context.Context, req models.ClipRequest) ([]byte, error)
	Calls        atomic.Int64
}

func (m *VideoGenerator) Name() string { return "mock-video" }

func (m *VideoGenerator) GenerateClip(ctx context.Context, req models.ClipRequest) ([]byte, error) {
	m.Calls.Add(1)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return []byte("mock-clip-bytes"), nil
}

// CaptionRenderer satisfies models.CaptionRenderer for testing. By default it
// writes placeholder bytes to the output path so atomic-rename flows work.
type CaptionRenderer struct {
	CaptionFunc  func(ctx context.Context, clipPath, text, outPath string) error
	ConcatFunc   func(ctx context.Context, clipPaths []string, outPath string) error
	CaptionCalls atomic.Int64
	ConcatCalls  atomic.Int64
}

func (m *CaptionRenderer) Name() string { return "mock-renderer" }

func (m *CaptionRenderer) Caption(ctx context.Context, clipPath, text, outPath string) error {
	m.CaptionCalls.Add(1)
	if m.CaptionFunc != nil {
		return m.CaptionFunc(ctx, clipPath, text, outPath)
	}
	return writeFile(outPath, []byte("mock-captioned-clip"))
}

func (m *CaptionRenderer) Concat(ctx context.Context, clipPaths []string, outPath string) error {
	m.ConcatCalls.Add(1)
	if m.ConcatFunc != nil {
		return m.ConcatFunc(ctx, clipPaths, outPath)
	}
	return writeFile(outPath, []byte("mock-final-video"))
}

// FailingVideoGenerator returns a VideoGenerator that fails every scene with a
// GenerationError carrying the scene index.
func FailingVideoGenerator() *VideoGenerator {
	return &VideoGenerator{
		GenerateFunc: func(_ context.Context, req models.ClipRequest) ([]byte, error) {
			return nil, &provider.GenerationError{
				Provider:     "mock-video",
				SceneIndices: []int{req.SceneIndex},
				Err:          provider.ErrInvalidResponse,
			}
		},
	}
}

var (
	_ models.PaperSource       = (*PaperSource)(nil)
	_ models.ScriptGenerator   = (*ScriptGenerator)(nil)
	_ models.SpeechSynthesizer = (*SpeechSynthesizer)(nil)
	_ models.VideoGenerator    = (*VideoGenerator)(nil)
	_ models.CaptionRenderer   = (*CaptionRenderer)(nil)
)
