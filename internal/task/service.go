// Package task wraps a pipeline run in a tracked background job: it owns the
// Job row lifecycle, the per-paper lock, and the mirroring of orchestrator
// progress into the store and cache.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/scivid/scivid/internal/artifact"
	"github.com/scivid/scivid/internal/cache"
	"github.com/scivid/scivid/internal/config"
	"github.com/scivid/scivid/internal/pipeline"
	"github.com/scivid/scivid/internal/provider"
	"github.com/scivid/scivid/internal/store"
	"github.com/scivid/scivid/pkg/models"
)

// ErrJobActive means a generation job for the same paper already holds the
// lock; the caller should poll the existing job instead of starting another.
var ErrJobActive = errors.New("a generation job for this paper is already active")

// statusTTL bounds how long the cached status fast path survives without a
// refresh from the runner.
const statusTTL = 30 * time.Minute

// GenerateParams holds validated parameters for one generation request.
type GenerateParams struct {
	PaperID   string
	LocalFile bool
	Voice     string
	Merge     *bool
	StopAfter string
}

// Service dispatches pipeline runs as background jobs.
type Service struct {
	store     store.Store
	cache     cache.Cache
	providers *provider.Set
	pipeline  config.PipelineConfig
	mediaRoot string
	logger    *slog.Logger
}

// NewService creates a new Service.
func NewService(st store.Store, ca cache.Cache, providers *provider.Set, cfg *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     st,
		cache:     ca,
		providers: providers,
		pipeline:  cfg.Pipeline,
		mediaRoot: cfg.Storage.MediaRoot,
		logger:    logger,
	}
}

// Generate creates a pending job for the paper and dispatches the pipeline in
// a background goroutine. It returns the job immediately; callers poll its
// status. Returns ErrJobActive if another job for the same paper holds the
// per-paper lock.
func (s *Service) Generate(ctx context.Context, params GenerateParams) (*models.Job, error) {
	if params.PaperID == "" {
		return nil, fmt.Errorf("invalid request: paper_id is required")
	}
	if params.Voice == "" {
		params.Voice = s.pipeline.Voice
	}
	merge := s.pipeline.Merge
	if params.Merge != nil {
		merge = *params.Merge
	}

	dir := artifact.JobDir(s.mediaRoot, params.PaperID)
	now := time.Now().UTC()
	job := &models.Job{
		ID:             uuid.New(),
		PaperID:        params.PaperID,
		Status:         models.JobStatusPending,
		CompletedSteps: []string{},
		OutputDir:      string(dir),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	acquired, err := s.cache.AcquireJobLock(ctx, params.PaperID, job.ID, s.pipeline.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring job lock: %w", err)
	}
	if !acquired {
		return nil, ErrJobActive
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		_ = s.cache.ReleaseJobLock(ctx, params.PaperID, job.ID)
		return nil, fmt.Errorf("creating job: %w", err)
	}
	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusPending, statusTTL)

	opts := pipeline.RunOptions{
		PaperID:    params.PaperID,
		LocalFile:  params.LocalFile,
		Voice:      params.Voice,
		MaxWorkers: s.pipeline.MaxWorkers,
		Merge:      merge,
		StopAfter:  params.StopAfter,
	}
	go s.run(job.ID, dir, opts)

	return job, nil
}

// run executes the pipeline for one job. It always releases the lock and
// finalizes the job exactly once, including on panic.
func (s *Service) run(jobID uuid.UUID, dir artifact.Dir, opts pipeline.RunOptions) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in pipeline run", "error", r, "job_id", jobID)
			s.finalizeFailed(ctx, jobID, fmt.Sprintf("panic: %v", r), models.ErrorTypeUnknown)
		}
		_ = s.cache.ReleaseJobLock(ctx, opts.PaperID, jobID)
	}()

	if err := s.store.UpdateJobStatus(ctx, jobID, models.JobStatusRunning); err != nil {
		s.logger.Error("marking job running", "error", err, "job_id", jobID)
		return
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusRunning, statusTTL)

	log, closeLog := s.jobLogger(dir, jobID)
	defer closeLog()

	steps := pipeline.BuildSteps(s.providers, opts)
	stepNames := make([]string, len(steps))
	for i, st := range steps {
		stepNames[i] = st.Name
	}

	var completed []string
	onProgress := func(stepName string, done, total int) {
		completed = append(completed, stepName)
		percent := int(math.Round(100 * float64(done) / float64(total)))
		var current *string
		if done < total {
			current = &stepNames[done]
		}
		if err := s.store.UpdateJobProgress(ctx, jobID, percent, current, completed); err != nil {
			log.Warn("recording progress", "error", err, "step", stepName)
		}
	}

	orchOpts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithProgress(onProgress),
	}
	if opts.StopAfter != "" {
		orchOpts = append(orchOpts, pipeline.WithStopAfter(opts.StopAfter))
	}
	orch := pipeline.New(steps, orchOpts...)

	runCtx, cancel := context.WithTimeout(ctx, s.pipeline.Timeout)
	defer cancel()

	if err := orch.Run(runCtx, dir); err != nil {
		log.Error("pipeline run failed", "error", err, "job_id", jobID)
		s.finalizeFailed(ctx, jobID, err.Error(), ClassifyError(err))
		return
	}

	finalOpts := []store.JobUpdateOption{}
	if opts.Merge && opts.StopAfter == "" {
		finalOpts = append(finalOpts, store.WithFinalVideoPath(dir.FinalVideoPath()))
	}
	if err := s.store.UpdateJobStatus(ctx, jobID, models.JobStatusCompleted, finalOpts...); err != nil {
		log.Error("marking job completed", "error", err, "job_id", jobID)
		return
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusCompleted, statusTTL)
	log.Info("job completed", "job_id", jobID)
}

func (s *Service) finalizeFailed(ctx context.Context, jobID uuid.UUID, message, errorType string) {
	if err := s.store.UpdateJobStatus(ctx, jobID, models.JobStatusFailed,
		store.WithErrorMessage(message),
		store.WithErrorType(errorType)); err != nil {
		s.logger.Error("marking job failed", "error", err, "job_id", jobID)
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, statusTTL)
}

// jobLogger returns a logger that writes the run's log lines into the job's
// artifact directory alongside its other outputs. Falls back to the service
// logger if the file cannot be opened.
func (s *Service) jobLogger(dir artifact.Dir, jobID uuid.UUID) (*slog.Logger, func()) {
	if err := dir.Ensure(); err != nil {
		return s.logger.With("job_id", jobID), func() {}
	}
	f, err := os.OpenFile(dir.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Warn("opening pipeline log file", "error", err, "job_id", jobID)
		return s.logger.With("job_id", jobID), func() {}
	}
	log := slog.New(slog.NewJSONHandler(f, nil)).With("job_id", jobID)
	return log, func() { _ = f.Close() }
}
