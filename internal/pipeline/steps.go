package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scivid/scivid/internal/artifact"
	"github.com/scivid/scivid/internal/provider"
	"github.com/scivid/scivid/pkg/models"
)

// RunOptions selects the step list for one pipeline run. LocalFile and Merge
// are configuration-time decisions: they change which steps (and which
// completion checks) exist, never what the execution loop does.
type RunOptions struct {
	PaperID    string
	LocalFile  bool
	Voice      string
	MaxWorkers int
	Merge      bool
	StopAfter  string
}

// BuildSteps assembles the ordered step list for a run. In local-file mode the
// fetch-paper step is omitted entirely; paper.json is pre-supplied by the
// upload path.
func BuildSteps(providers *provider.Set, opts RunOptions) []Step {
	var steps []Step

	if !opts.LocalFile {
		steps = append(steps, Step{
			Name:        StepFetchPaper,
			Description: fmt.Sprintf("fetching paper %s from PubMed Central", opts.PaperID),
			Complete:    CheckPaperFetched,
			Execute: func(ctx context.Context, dir artifact.Dir) error {
				return execFetchPaper(ctx, dir, providers.Source, opts.PaperID)
			},
		})
	}

	steps = append(steps,
		Step{
			Name:        StepGenerateScript,
			Description: "generating video script with scenes",
			Complete:    CheckScriptGenerated,
			Execute: func(ctx context.Context, dir artifact.Dir) error {
				return execGenerateScript(ctx, dir, providers.Script)
			},
		},
		Step{
			Name:        StepGenerateAudio,
			Description: "generating narration audio for all scenes",
			Complete:    CheckAudioGenerated,
			Execute: func(ctx context.Context, dir artifact.Dir) error {
				return execGenerateAudio(ctx, dir, providers.Speech, opts.Voice)
			},
		},
		Step{
			Name:        StepGenerateVideos,
			Description: "generating video clips for all scenes",
			Complete:    CheckVideosGenerated,
			Execute: func(ctx context.Context, dir artifact.Dir) error {
				return execGenerateVideos(ctx, dir, providers.Video, opts.MaxWorkers)
			},
		},
	)

	captionsCheck := CheckFinalVideo
	if !opts.Merge {
		captionsCheck = CheckCaptionedClips
	}
	steps = append(steps, Step{
		Name:        StepAddCaptions,
		Description: "burning captions and assembling the final video",
		Complete:    captionsCheck,
		Execute: func(ctx context.Context, dir artifact.Dir) error {
			return execAddCaptions(ctx, dir, providers.Renderer, opts.Merge)
		},
	})

	return steps
}

func execFetchPaper(ctx context.Context, dir artifact.Dir, source models.PaperSource, paperID string) error {
	paper, err := source.Fetch(ctx, paperID)
	if err != nil {
		return err
	}
	return dir.SavePaper(paper)
}

func execGenerateScript(ctx context.Context, dir artifact.Dir, gen models.ScriptGenerator) error {
	paper, err := dir.LoadPaper()
	if err != nil {
		return fmt.Errorf("loading paper: %w", err)
	}
	script, err := gen.GenerateScript(ctx, paper)
	if err != nil {
		return err
	}
	return dir.SaveScript(script)
}

func execGenerateAudio(ctx context.Context, dir artifact.Dir, speech models.SpeechSynthesizer, voice string) error {
	script, err := dir.LoadScript()
	if err != nil {
		return fmt.Errorf("loading script: %w", err)
	}
	result, err := speech.Synthesize(ctx, script.Scenes, voice)
	if err != nil {
		return err
	}
	if err := dir.SaveAudio(result.Audio); err != nil {
		return err
	}
	// The metadata file is the commit point: until it exists the completion
	// check treats the whole step as not done.
	return dir.SaveAudioMetadata(&models.AudioMetadata{
		Voice:           voice,
		TotalDuration:   result.TotalDuration,
		SceneBoundaries: result.SceneBoundaries,
		GeneratedAt:     time.Now().UTC(),
	})
}

func execGenerateVideos(ctx context.Context, dir artifact.Dir, video models.VideoGenerator, maxWorkers int) error {
	script, err := dir.LoadScript()
	if err != nil {
		return fmt.Errorf("loading script: %w", err)
	}
	meta, err := dir.LoadAudioMetadata()
	if err != nil {
		return fmt.Errorf("loading audio metadata: %w", err)
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	durations := make([]float64, len(script.Scenes))
	for _, b := range meta.SceneBoundaries {
		if b.Index >= 0 && b.Index < len(durations) {
			durations[b.Index] = b.End - b.Start
		}
	}

	// Every scene is attempted even if another fails, so the error can list
	// all failed indices rather than just the first.
	sceneErrs := make([]error, len(script.Scenes))
	clips := make([]models.ClipInfo, len(script.Scenes))

	g := &errgroup.Group{}
	g.SetLimit(maxWorkers)
	for i, scene := range script.Scenes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				sceneErrs[i] = err
				return nil
			}
			clip, err := video.GenerateClip(ctx, models.ClipRequest{
				SceneIndex: i,
				Prompt:     scene.VisualContent,
				Narration:  scene.Text,
				Duration:   durations[i],
			})
			if err != nil {
				sceneErrs[i] = err
				return nil
			}
			if err := artifact.WriteFileAtomic(dir.ClipPath(i), clip); err != nil {
				sceneErrs[i] = err
				return nil
			}
			clips[i] = models.ClipInfo{
				SceneIndex: i,
				Filename:   artifact.ClipFilename(i),
				Duration:   durations[i],
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed []int
	var firstErr error
	for i, err := range sceneErrs {
		if err != nil {
			failed = append(failed, i)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if len(failed) > 0 {
		sort.Ints(failed)
		return &provider.GenerationError{
			Provider:     video.Name(),
			SceneIndices: failed,
			Err:          firstErr,
		}
	}

	if err := dir.SaveVideoMetadata(&models.VideoMetadata{
		Clips:       clips,
		GeneratedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}
	// The sentinel is written only after every clip succeeded; its recorded
	// count is what the completion check verifies against the script.
	return dir.SaveVideoSentinel(&models.VideoSentinel{
		ClipCount:   len(clips),
		CompletedAt: time.Now().UTC(),
	})
}

func execAddCaptions(ctx context.Context, dir artifact.Dir, renderer models.CaptionRenderer, merge bool) error {
	script, err := dir.LoadScript()
	if err != nil {
		return fmt.Errorf("loading script: %w", err)
	}

	captioned := make([]string, 0, len(script.Scenes))
	for i, scene := range script.Scenes {
		outPath := dir.CaptionedClipPath(i)
		tmpPath := outPath + ".partial"
		if err := renderer.Caption(ctx, dir.ClipPath(i), scene.Text, tmpPath); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("captioning scene %d: %w", i, err)
		}
		if err := os.Rename(tmpPath, outPath); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("committing captioned scene %d: %w", i, err)
		}
		captioned = append(captioned, artifact.CaptionedClipFilename(i))
	}

	if !merge {
		return dir.SaveCaptionsMetadata(&models.CaptionsMetadata{
			CaptionedClips: captioned,
			GeneratedAt:    time.Now().UTC(),
		})
	}

	clipPaths := make([]string, len(script.Scenes))
	for i := range script.Scenes {
		clipPaths[i] = dir.CaptionedClipPath(i)
	}
	finalPath := dir.FinalVideoPath()
	tmpPath := finalPath + ".partial"
	if err := renderer.Concat(ctx, clipPaths, tmpPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("merging final video: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("committing final video: %w", err)
	}
	return nil
}
