// Package artifact owns the on-disk layout of a job's output directory.
//
// The artifact directory is the only durable interface between pipeline steps:
// completion of a step is decided purely by the presence and shape of the files
// here, so every writer must go through the atomic helpers in this package. A
// final filename never appears on disk until its content is fully written.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact filenames. The completion checks in internal/pipeline depend on
// these names; changing one means changing the matching check in lockstep.
const (
	PaperFile            = "paper.json"
	ScriptFile           = "script.json"
	AudioFile            = "audio.wav"
	AudioMetadataFile    = "audio_metadata.json"
	ClipsDirName         = "clips"
	VideoSentinelFile    = ".videos_complete"
	VideoMetadataFile    = "video_metadata.json"
	CaptionsMetadataFile = "captions_metadata.json"
	FinalVideoFile       = "final_video.mp4"
	PipelineLogFile      = "pipeline.log"
)

// Dir is the artifact directory of one job.
type Dir string

// JobDir returns the artifact directory for a job identifier under the media root.
func JobDir(mediaRoot, jobKey string) Dir {
	return Dir(filepath.Join(mediaRoot, jobKey))
}

// Ensure creates the directory (and the clips subdirectory) if missing.
func (d Dir) Ensure() error {
	if err := os.MkdirAll(d.ClipsDir(), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	return nil
}

func (d Dir) Path(name string) string {
	return filepath.Join(string(d), name)
}

func (d Dir) ClipsDir() string {
	return filepath.Join(string(d), ClipsDirName)
}

func (d Dir) ClipPath(sceneIndex int) string {
	return filepath.Join(d.ClipsDir(), ClipFilename(sceneIndex))
}

func (d Dir) CaptionedClipPath(sceneIndex int) string {
	return filepath.Join(d.ClipsDir(), CaptionedClipFilename(sceneIndex))
}

func (d Dir) FinalVideoPath() string {
	return d.Path(FinalVideoFile)
}

func (d Dir) LogPath() string {
	return d.Path(PipelineLogFile)
}

// ClipFilename returns the clip name for a scene, e.g. "scene_00.mp4".
func ClipFilename(sceneIndex int) string {
	return fmt.Sprintf("scene_%02d.mp4", sceneIndex)
}

// CaptionedClipFilename returns the captioned clip name for a scene.
func CaptionedClipFilename(sceneIndex int) string {
	return fmt.Sprintf("captioned_scene_%02d.mp4", sceneIndex)
}

// HasNonEmptyFile reports whether the named regular file exists with size > 0.
func (d Dir) HasNonEmptyFile(name string) bool {
	info, err := os.Stat(d.Path(name))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// WriteFileAtomic writes data to path via a temporary file in the same
// directory followed by a rename. A crash mid-write can leave a *.tmp file
// behind but never a partial file under the final name.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// WriteJSONAtomic marshals v with indentation and writes it atomically.
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return WriteFileAtomic(path, data)
}

// ReadJSON reads and unmarshals the file at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
