package models

import "time"

// VisualTypeGenerated marks a scene whose visual is produced by the video model.
const VisualTypeGenerated = "generated"

// Scene is a single narration beat of the video: the sentence spoken over it and
// the prompt used to generate its visual.
type Scene struct {
	Text          string `json:"text"`
	VisualType    string `json:"visual_type"`
	VisualContent string `json:"visual_content"`
}

// Script is the scene-by-scene narration script, stored as script.json.
type Script struct {
	Scenes      []Scene   `json:"scenes"`
	GeneratedAt time.Time `json:"generated_at"`
}
