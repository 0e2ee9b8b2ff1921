package pipeline

import (
	"strings"

	"github.com/scivid/scivid/internal/artifact"
)

// Completion checks derive "what is already done" purely from durable artifact
// state, which is the only thing guaranteed to survive a crash. Each predicate
// only stats and reads local files; none of them ever writes.

// CheckPaperFetched reports whether paper.json exists and carries a non-empty
// full text.
func CheckPaperFetched(dir artifact.Dir) bool {
	paper, err := dir.LoadPaper()
	return err == nil && strings.TrimSpace(paper.FullText) != ""
}

// CheckScriptGenerated reports whether script.json exists with at least one scene.
func CheckScriptGenerated(dir artifact.Dir) bool {
	script, err := dir.LoadScript()
	return err == nil && len(script.Scenes) > 0
}

// CheckAudioGenerated reports whether the combined audio track exists and its
// metadata is consistent with the script (same scene count).
func CheckAudioGenerated(dir artifact.Dir) bool {
	if !dir.HasNonEmptyFile(artifact.AudioFile) {
		return false
	}
	meta, err := dir.LoadAudioMetadata()
	if err != nil {
		return false
	}
	script, err := dir.LoadScript()
	if err != nil || len(script.Scenes) == 0 {
		return false
	}
	return len(meta.SceneBoundaries) == len(script.Scenes)
}

// CheckVideosGenerated reports whether the clips directory's completion
// sentinel exists and its recorded clip count matches the script's scene
// count. The sentinel is written only after every scene clip succeeded, so no
// per-clip inspection is needed here.
func CheckVideosGenerated(dir artifact.Dir) bool {
	script, err := dir.LoadScript()
	if err != nil || len(script.Scenes) == 0 {
		return false
	}
	sentinel, err := dir.LoadVideoSentinel()
	return err == nil && sentinel.ClipCount == len(script.Scenes)
}

// CheckFinalVideo reports whether the merged, captioned output exists.
func CheckFinalVideo(dir artifact.Dir) bool {
	return dir.HasNonEmptyFile(artifact.FinalVideoFile)
}

// CheckCaptionedClips is the non-merge completion check: a captioned clip per
// scene, recorded in the captions metadata file.
func CheckCaptionedClips(dir artifact.Dir) bool {
	script, err := dir.LoadScript()
	if err != nil || len(script.Scenes) == 0 {
		return false
	}
	meta, err := dir.LoadCaptionsMetadata()
	return err == nil && len(meta.CaptionedClips) == len(script.Scenes)
}
