package pipeline_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scivid/scivid/internal/pipeline"
	"github.com/scivid/scivid/internal/provider"
	"github.com/scivid/scivid/internal/provider/mock"
	"github.com/scivid/scivid/pkg/models"
)

func threeSceneScript() *mock.ScriptGenerator {
	return &mock.ScriptGenerator{
		GenerateFunc: func(_ context.Context, _ *models.Paper) (*models.Script, error) {
			return &models.Script{
				Scenes: []models.Scene{
					{Text: "One.", VisualType: models.VisualTypeGenerated, VisualContent: "a"},
					{Text: "Two.", VisualType: models.VisualTypeGenerated, VisualContent: "b"},
					{Text: "Three.", VisualType: models.VisualTypeGenerated, VisualContent: "c"},
				},
			}, nil
		},
	}
}

func TestGenerateVideos_CollectsAllFailedScenes(t *testing.T) {
	dir := newDir(t)
	set := newMockSet()
	set.script = threeSceneScript()
	set.video = &mock.VideoGenerator{
		GenerateFunc: func(_ context.Context, req models.ClipRequest) ([]byte, error) {
			if req.SceneIndex == 0 || req.SceneIndex == 2 {
				return nil, provider.ErrInvalidResponse
			}
			return []byte("clip"), nil
		},
	}

	orch := pipeline.New(pipeline.BuildSteps(set.providers(), defaultOpts()))
	err := orch.Run(context.Background(), dir)
	require.Error(t, err)

	var genErr *provider.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, []int{0, 2}, genErr.SceneIndices)

	// The succeeding scene's clip survives for the next attempt; the sentinel
	// does not exist, so the step stays incomplete.
	_, statErr := os.Stat(dir.ClipPath(1))
	assert.NoError(t, statErr)
	assert.False(t, pipeline.CheckVideosGenerated(dir))
}

func TestGenerateVideos_RetryAfterPartialFailureCompletes(t *testing.T) {
	dir := newDir(t)
	set := newMockSet()
	set.script = threeSceneScript()

	failFirst := &mock.VideoGenerator{
		GenerateFunc: func(_ context.Context, req models.ClipRequest) ([]byte, error) {
			if req.SceneIndex == 1 {
				return nil, provider.ErrInvalidResponse
			}
			return []byte("clip"), nil
		},
	}
	set.video = failFirst

	orch := pipeline.New(pipeline.BuildSteps(set.providers(), defaultOpts()))
	require.Error(t, orch.Run(context.Background(), dir))
	assert.Equal(t, int64(3), failFirst.Calls.Load())

	// The executor regenerates every scene on retry; idempotence is at the
	// step level, not per clip. What matters is that the run now completes.
	set.video = &mock.VideoGenerator{}
	orch = pipeline.New(pipeline.BuildSteps(set.providers(), defaultOpts()))
	require.NoError(t, orch.Run(context.Background(), dir))
	assert.True(t, pipeline.CheckVideosGenerated(dir))
}

func TestGenerateAudio_MetadataIsCommitPoint(t *testing.T) {
	dir := newDir(t)
	seedPaper(t, dir)
	seedScript(t, dir, 2)

	set := newMockSet()
	set.speech = &mock.SpeechSynthesizer{
		SynthesizeFunc: func(_ context.Context, scenes []models.Scene, _ string) (*models.SynthesisResult, error) {
			return nil, errors.New("tts backend unavailable")
		},
	}

	orch := pipeline.New(pipeline.BuildSteps(set.providers(), defaultOpts()))
	err := orch.Run(context.Background(), dir)
	require.Error(t, err)

	var pErr *pipeline.PipelineError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, pipeline.StepGenerateAudio, pErr.Step)
	assert.False(t, pipeline.CheckAudioGenerated(dir))
}

func TestAddCaptions_NoPartialFilesOnFailure(t *testing.T) {
	dir := newDir(t)
	seedPaper(t, dir)
	seedScript(t, dir, 2)
	seedAudio(t, dir, 2)
	seedVideos(t, dir, 2)

	set := newMockSet()
	set.renderer = &mock.CaptionRenderer{
		ConcatFunc: func(_ context.Context, _ []string, _ string) error {
			return errors.New("ffmpeg exited 1")
		},
	}

	orch := pipeline.New(pipeline.BuildSteps(set.providers(), defaultOpts()))
	require.Error(t, orch.Run(context.Background(), dir))

	// Neither the final name nor its partial may remain.
	_, err := os.Stat(dir.FinalVideoPath())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(dir.FinalVideoPath() + ".partial")
	assert.True(t, os.IsNotExist(err))
	assert.False(t, pipeline.CheckFinalVideo(dir))
}

func TestGenerateScript_FailsWithoutPaper(t *testing.T) {
	dir := newDir(t)

	opts := defaultOpts()
	opts.LocalFile = true
	set := newMockSet()

	orch := pipeline.New(pipeline.BuildSteps(set.providers(), opts))
	err := orch.Run(context.Background(), dir)
	require.Error(t, err)

	var pErr *pipeline.PipelineError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, pipeline.StepGenerateScript, pErr.Step)
	assert.Contains(t, err.Error(), "loading paper")
}

func TestBuildSteps_MergeSelectsFinalVideoCheck(t *testing.T) {
	set := newMockSet()

	merged := pipeline.BuildSteps(set.providers(), defaultOpts())
	last := merged[len(merged)-1]
	assert.Equal(t, pipeline.StepAddCaptions, last.Name)

	dir := newDir(t)
	seedScript(t, dir, 2)
	seedCaptionedClips(t, dir, 2)

	// Captioned clips alone do not complete the merge-mode captions step.
	assert.False(t, last.Complete(dir))

	opts := defaultOpts()
	opts.Merge = false
	unmerged := pipeline.BuildSteps(set.providers(), opts)
	assert.True(t, unmerged[len(unmerged)-1].Complete(dir))
}
