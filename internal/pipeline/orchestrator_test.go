package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scivid/scivid/internal/artifact"
	"github.com/scivid/scivid/internal/pipeline"
	"github.com/scivid/scivid/internal/provider"
	"github.com/scivid/scivid/internal/provider/mock"
	"github.com/scivid/scivid/pkg/models"
)

type mockSet struct {
	source   *mock.PaperSource
	script   *mock.ScriptGenerator
	speech   *mock.SpeechSynthesizer
	video    *mock.VideoGenerator
	renderer *mock.CaptionRenderer
}

func newMockSet() *mockSet {
	return &mockSet{
		source:   &mock.PaperSource{},
		script:   &mock.ScriptGenerator{},
		speech:   &mock.SpeechSynthesizer{},
		video:    &mock.VideoGenerator{},
		renderer: &mock.CaptionRenderer{},
	}
}

func (m *mockSet) providers() *provider.Set {
	return &provider.Set{
		Source:   m.source,
		Script:   m.script,
		Speech:   m.speech,
		Video:    m.video,
		Renderer: m.renderer,
	}
}

func defaultOpts() pipeline.RunOptions {
	return pipeline.RunOptions{
		PaperID:    "PMC1234567",
		Voice:      "Kore",
		MaxWorkers: 2,
		Merge:      true,
	}
}

func TestRun_FullPipeline(t *testing.T) {
	dir := newDir(t)
	set := newMockSet()
	orch := pipeline.New(pipeline.BuildSteps(set.providers(), defaultOpts()))

	require.NoError(t, orch.Run(context.Background(), dir))

	assert.Equal(t, int64(1), set.source.Calls.Load())
	assert.Equal(t, int64(1), set.script.Calls.Load())
	assert.Equal(t, int64(1), set.speech.Calls.Load())
	// Default mock script has two scenes, one clip each.
	assert.Equal(t, int64(2), set.video.Calls.Load())
	assert.Equal(t, int64(2), set.renderer.CaptionCalls.Load())
	assert.Equal(t, int64(1), set.renderer.ConcatCalls.Load())
	assert.True(t, pipeline.CheckFinalVideo(dir))
}

func TestRun_SecondInvocationMakesNoExternalCalls(t *testing.T) {
	dir := newDir(t)
	set := newMockSet()
	orch := pipeline.New(pipeline.BuildSteps(set.providers(), defaultOpts()))

	require.NoError(t, orch.Run(context.Background(), dir))
	require.NoError(t, orch.Run(context.Background(), dir))

	assert.Equal(t, int64(1), set.source.Calls.Load())
	assert.Equal(t, int64(1), set.script.Calls.Load())
	assert.Equal(t, int64(1), set.speech.Calls.Load())
	assert.Equal(t, int64(2), set.video.Calls.Load())
	assert.Equal(t, int64(2), set.renderer.CaptionCalls.Load())
	assert.Equal(t, int64(1), set.renderer.ConcatCalls.Load())
}

func TestRun_ResumesFromFailedStep(t *testing.T) {
	dir := newDir(t)
	set := newMockSet()
	set.video = mock.FailingVideoGenerator()
	orch := pipeline.New(pipeline.BuildSteps(set.providers(), defaultOpts()))

	err := orch.Run(context.Background(), dir)
	require.Error(t, err)

	var pErr *pipeline.PipelineError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, pipeline.StepGenerateVideos, pErr.Step)

	// Retry with a working generator. Earlier steps must be skipped.
	set.video = &mock.VideoGenerator{}
	orch = pipeline.New(pipeline.BuildSteps(set.providers(), defaultOpts()))
	require.NoError(t, orch.Run(context.Background(), dir))

	assert.Equal(t, int64(1), set.source.Calls.Load())
	assert.Equal(t, int64(1), set.script.Calls.Load())
	assert.Equal(t, int64(1), set.speech.Calls.Load())
	assert.Equal(t, int64(2), set.video.Calls.Load())
}

func TestRun_SkipsStepsWithExistingArtifacts(t *testing.T) {
	dir := newDir(t)
	seedPaper(t, dir)
	seedScript(t, dir, 2)

	set := newMockSet()
	orch := pipeline.New(pipeline.BuildSteps(set.providers(), defaultOpts()))
	require.NoError(t, orch.Run(context.Background(), dir))

	assert.Equal(t, int64(0), set.source.Calls.Load())
	assert.Equal(t, int64(0), set.script.Calls.Load())
	assert.Equal(t, int64(1), set.speech.Calls.Load())
}

func TestRun_ProgressReportedPerStep(t *testing.T) {
	dir := newDir(t)
	set := newMockSet()

	type event struct {
		name      string
		completed int
		total     int
	}
	var events []event
	orch := pipeline.New(pipeline.BuildSteps(set.providers(), defaultOpts()),
		pipeline.WithProgress(func(name string, completed, total int) {
			events = append(events, event{name, completed, total})
		}))

	require.NoError(t, orch.Run(context.Background(), dir))

	require.Len(t, events, 5)
	wantOrder := []string{
		pipeline.StepFetchPaper,
		pipeline.StepGenerateScript,
		pipeline.StepGenerateAudio,
		pipeline.StepGenerateVideos,
		pipeline.StepAddCaptions,
	}
	for i, e := range events {
		assert.Equal(t, wantOrder[i], e.name)
		assert.Equal(t, i+1, e.completed)
		assert.Equal(t, 5, e.total)
	}
}

func TestRun_StopAfterEndsRunEarly(t *testing.T) {
	dir := newDir(t)
	set := newMockSet()
	orch := pipeline.New(
		pipeline.BuildSteps(set.providers(), defaultOpts()),
		pipeline.WithStopAfter(pipeline.StepGenerateAudio),
	)

	require.NoError(t, orch.Run(context.Background(), dir))

	assert.Equal(t, int64(1), set.speech.Calls.Load())
	assert.Equal(t, int64(0), set.video.Calls.Load())
	assert.False(t, pipeline.CheckFinalVideo(dir))
}

func TestRun_IncompleteOutputDetected(t *testing.T) {
	dir := newDir(t)
	steps := []pipeline.Step{{
		Name:        "broken-step",
		Description: "claims success without producing output",
		Complete:    func(artifact.Dir) bool { return false },
		Execute:     func(context.Context, artifact.Dir) error { return nil },
	}}
	orch := pipeline.New(steps)

	err := orch.Run(context.Background(), dir)
	require.Error(t, err)

	var pErr *pipeline.PipelineError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "broken-step", pErr.Step)
	assert.ErrorIs(t, err, pipeline.ErrIncompleteOutput)
}

func TestRun_CancelledContextStopsBeforeNextStep(t *testing.T) {
	dir := newDir(t)
	seedPaper(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	set := newMockSet()
	orch := pipeline.New(pipeline.BuildSteps(set.providers(), defaultOpts()))

	err := orch.Run(ctx, dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var pErr *pipeline.PipelineError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, pipeline.StepGenerateScript, pErr.Step)
	assert.Equal(t, int64(0), set.script.Calls.Load())
}

func TestRun_LocalFileModeOmitsFetchStep(t *testing.T) {
	dir := newDir(t)
	seedPaper(t, dir)

	opts := defaultOpts()
	opts.LocalFile = true
	set := newMockSet()
	steps := pipeline.BuildSteps(set.providers(), opts)
	require.Len(t, steps, 4)

	orch := pipeline.New(steps)
	require.NoError(t, orch.Run(context.Background(), dir))

	assert.Equal(t, int64(0), set.source.Calls.Load())
	assert.True(t, pipeline.CheckFinalVideo(dir))
}

func TestRun_NonMergeModeProducesCaptionedClips(t *testing.T) {
	dir := newDir(t)
	opts := defaultOpts()
	opts.Merge = false
	set := newMockSet()

	orch := pipeline.New(pipeline.BuildSteps(set.providers(), opts))
	require.NoError(t, orch.Run(context.Background(), dir))

	assert.Equal(t, int64(0), set.renderer.ConcatCalls.Load())
	assert.False(t, pipeline.CheckFinalVideo(dir))
	assert.True(t, pipeline.CheckCaptionedClips(dir))
}

func TestRun_ErrorNamesFailingStep(t *testing.T) {
	dir := newDir(t)
	set := newMockSet()
	set.source.FetchFunc = func(context.Context, string) (*models.Paper, error) {
		return nil, provider.ErrNotFound
	}
	orch := pipeline.New(pipeline.BuildSteps(set.providers(), defaultOpts()))

	err := orch.Run(context.Background(), dir)
	require.Error(t, err)

	var pErr *pipeline.PipelineError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, pipeline.StepFetchPaper, pErr.Step)
	assert.True(t, errors.Is(err, provider.ErrNotFound))
}
