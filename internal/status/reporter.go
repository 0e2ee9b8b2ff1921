// Package status derives the client-facing view of a job from the job row,
// the cached status, and the artifacts on disk. It is read-only: nothing in
// here mutates job state.
package status

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/scivid/scivid/internal/artifact"
	"github.com/scivid/scivid/internal/cache"
	"github.com/scivid/scivid/internal/pipeline"
	"github.com/scivid/scivid/internal/store"
	"github.com/scivid/scivid/pkg/models"
)

// Staleness thresholds. A running job that has not reported progress within
// runningStaleAfter, or a pending job older than pendingStaleAfter, is flagged
// so clients can stop polling a runner that died without finalizing.
const (
	runningStaleAfter = 60 * time.Second
	pendingStaleAfter = 5 * time.Minute
)

// Report is the payload returned for one job status query.
type Report struct {
	JobID                uuid.UUID  `json:"job_id"`
	PaperID              string     `json:"paper_id"`
	Status               string     `json:"status"`
	ProgressPercent      int        `json:"progress_percent"`
	CurrentStep          *string    `json:"current_step,omitempty"`
	CompletedSteps       []string   `json:"completed_steps"`
	ErrorMessage         *string    `json:"error_message,omitempty"`
	ErrorType            *string    `json:"error_type,omitempty"`
	FinalVideoPath       *string    `json:"final_video_path,omitempty"`
	FinalOutputAvailable bool       `json:"final_output_available"`
	IsStale              bool       `json:"is_stale"`
	CreatedAt            time.Time  `json:"created_at"`
	StartedAt            *time.Time `json:"started_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

// Reporter answers job status queries.
type Reporter struct {
	store store.Store
	cache cache.Cache
	now   func() time.Time
}

// NewReporter creates a Reporter. now may be nil (defaults to time.Now).
func NewReporter(st store.Store, ca cache.Cache, now func() time.Time) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{store: st, cache: ca, now: now}
}

// Job builds the status report for one job. Returns store.ErrNotFound if the
// job does not exist.
func (r *Reporter) Job(ctx context.Context, jobID uuid.UUID) (*Report, error) {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return r.build(ctx, job), nil
}

// LatestForPaper reports on the most recent job for a paper identifier.
func (r *Reporter) LatestForPaper(ctx context.Context, paperID string) (*Report, error) {
	job, err := r.store.GetLatestJobByPaperID(ctx, paperID)
	if err != nil {
		return nil, err
	}
	return r.build(ctx, job), nil
}

func (r *Reporter) build(ctx context.Context, job *models.Job) *Report {
	status := job.Status
	// The runner writes the cache after the row, so the cached status can be
	// ahead of a read replica or a slow commit. Prefer it when present.
	if cached, ok, err := r.cache.GetJobStatus(ctx, job.ID); err == nil && ok {
		status = cached
	}

	rep := &Report{
		JobID:           job.ID,
		PaperID:         job.PaperID,
		Status:          status,
		ProgressPercent: job.ProgressPercent,
		CurrentStep:     job.CurrentStep,
		CompletedSteps:  job.CompletedSteps,
		ErrorMessage:    job.ErrorMessage,
		ErrorType:       job.ErrorType,
		FinalVideoPath:  job.FinalVideoPath,
		CreatedAt:       job.CreatedAt,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
	}
	if rep.CompletedSteps == nil {
		rep.CompletedSteps = []string{}
	}

	dir := artifact.Dir(job.OutputDir)
	rep.FinalOutputAvailable = pipeline.CheckFinalVideo(dir) || pipeline.CheckCaptionedClips(dir)
	rep.IsStale = r.stale(job, status)
	return rep
}

func (r *Reporter) stale(job *models.Job, status string) bool {
	now := r.now().UTC()
	switch status {
	case models.JobStatusRunning:
		last := job.StartedAt
		if job.ProgressUpdatedAt != nil {
			last = job.ProgressUpdatedAt
		}
		if last == nil {
			return false
		}
		return now.Sub(*last) > runningStaleAfter
	case models.JobStatusPending:
		return now.Sub(job.CreatedAt) > pendingStaleAfter
	}
	return false
}
