package models

import "time"

// SceneBoundary records where one scene's narration sits inside the combined
// audio track, in seconds from the start.
type SceneBoundary struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// AudioMetadata is the per-scene timing companion to audio.wav, stored as
// audio_metadata.json. Writing it is the commit point of the generate-audio
// step: no scene's audio is final until this file exists.
type AudioMetadata struct {
	Voice           string          `json:"voice"`
	TotalDuration   float64         `json:"total_duration"`
	SceneBoundaries []SceneBoundary `json:"scene_boundaries"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// ClipInfo describes one generated scene clip inside the clips directory.
type ClipInfo struct {
	SceneIndex int     `json:"scene_index"`
	Filename   string  `json:"filename"`
	Duration   float64 `json:"duration"`
}

// VideoMetadata is stored as clips/video_metadata.json once every scene clip
// has been generated.
type VideoMetadata struct {
	Clips       []ClipInfo `json:"clips"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// VideoSentinel is the content of the clips/.videos_complete sentinel file.
// The recorded clip count lets the completion check verify the sentinel against
// the script without globbing the directory.
type VideoSentinel struct {
	ClipCount   int       `json:"clip_count"`
	CompletedAt time.Time `json:"completed_at"`
}

// CaptionsMetadata is stored as captions_metadata.json when the add-captions
// step runs without merging; it records the captioned clips that together form
// the final output.
type CaptionsMetadata struct {
	CaptionedClips []string  `json:"captioned_clips"`
	GeneratedAt    time.Time `json:"generated_at"`
}
