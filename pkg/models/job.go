package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Error types recorded on failed jobs so clients can branch on the failure
// class without parsing the message.
const (
	ErrorTypePaperNotFound    = "paper_not_found"
	ErrorTypeGenerationFailed = "generation_failed"
	ErrorTypeAPIKey           = "api_key_error"
	ErrorTypeRateLimit        = "rate_limit"
	ErrorTypeTimeout          = "timeout"
	ErrorTypePipeline         = "pipeline_error"
	ErrorTypeUnknown          = "unknown_error"
)

// Job tracks one video-generation run. The API returns a job_id on
// POST /api/v1/videos; the client polls GET /api/v1/videos/{job_id} until
// status is completed or failed.
type Job struct {
	ID                uuid.UUID  `db:"id"                  json:"id"`
	PaperID           string     `db:"paper_id"            json:"paper_id"`
	Status            string     `db:"status"              json:"status"`
	ProgressPercent   int        `db:"progress_percent"    json:"progress_percent"`
	CurrentStep       *string    `db:"current_step"        json:"current_step,omitempty"`
	CompletedSteps    []string   `db:"completed_steps"     json:"completed_steps"`
	ErrorMessage      *string    `db:"error_message"       json:"error_message,omitempty"`
	ErrorType         *string    `db:"error_type"          json:"error_type,omitempty"`
	OutputDir         string     `db:"output_dir"          json:"output_dir"`
	FinalVideoPath    *string    `db:"final_video_path"    json:"final_video_path,omitempty"`
	StartedAt         *time.Time `db:"started_at"          json:"started_at,omitempty"`
	CompletedAt       *time.Time `db:"completed_at"        json:"completed_at,omitempty"`
	ProgressUpdatedAt *time.Time `db:"progress_updated_at" json:"progress_updated_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at"          json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"          json:"updated_at"`
}
