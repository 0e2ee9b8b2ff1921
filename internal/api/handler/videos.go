package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/scivid/scivid/internal/api/response"
	"github.com/scivid/scivid/internal/status"
	"github.com/scivid/scivid/internal/store"
	"github.com/scivid/scivid/internal/task"
	"github.com/scivid/scivid/pkg/models"
)

// VideoService dispatches generation jobs. Implemented by task.Service.
type VideoService interface {
	Generate(ctx context.Context, params task.GenerateParams) (*models.Job, error)
}

// JobLister lists job records. Implemented by the store.
type JobLister interface {
	ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error)
}

// StatusReader answers job status queries. Implemented by status.Reporter.
type StatusReader interface {
	Job(ctx context.Context, jobID uuid.UUID) (*status.Report, error)
}

// Paper identifiers are PMC accessions or upload keys; both are short
// filesystem-safe tokens.
var paperIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

type jobResponse struct {
	JobID     uuid.UUID `json:"job_id"`
	PaperID   string    `json:"paper_id"`
	Status    string    `json:"status"`
	CreatedAt string    `json:"created_at"`
}

func toJobResponse(job *models.Job) jobResponse {
	return jobResponse{
		JobID:     job.ID,
		PaperID:   job.PaperID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// NewGenerateHandler returns an http.HandlerFunc for POST /api/v1/videos.
func NewGenerateHandler(svc VideoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PaperID   string `json:"paper_id"`
			Voice     string `json:"voice"`
			Merge     *bool  `json:"merge"`
			StopAfter string `json:"stop_after"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.PaperID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "paper_id is required", nil)
			return
		}
		if !paperIDPattern.MatchString(req.PaperID) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "paper_id has an invalid format", nil)
			return
		}

		job, err := svc.Generate(r.Context(), task.GenerateParams{
			PaperID:   req.PaperID,
			Voice:     req.Voice,
			Merge:     req.Merge,
			StopAfter: req.StopAfter,
		})
		if err != nil {
			if errors.Is(err, task.ErrJobActive) {
				response.Error(w, http.StatusConflict, "JOB_ACTIVE",
					"A generation job for this paper is already running", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to start generation job", nil)
			return
		}

		response.Accepted(w, toJobResponse(job))
	}
}

// NewUploadCompleteHandler returns an http.HandlerFunc for
// POST /api/v1/videos/upload-complete. The upload path has already written
// paper.json into the job directory; the pipeline runs in local-file mode and
// never contacts the paper source.
func NewUploadCompleteHandler(svc VideoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PaperID string `json:"paper_id"`
			Voice   string `json:"voice"`
			Merge   *bool  `json:"merge"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.PaperID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "paper_id is required", nil)
			return
		}
		if !paperIDPattern.MatchString(req.PaperID) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "paper_id has an invalid format", nil)
			return
		}

		job, err := svc.Generate(r.Context(), task.GenerateParams{
			PaperID:   req.PaperID,
			LocalFile: true,
			Voice:     req.Voice,
			Merge:     req.Merge,
		})
		if err != nil {
			if errors.Is(err, task.ErrJobActive) {
				response.Error(w, http.StatusConflict, "JOB_ACTIVE",
					"A generation job for this paper is already running", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to start generation job", nil)
			return
		}

		response.Accepted(w, toJobResponse(job))
	}
}

// NewListHandler returns an http.HandlerFunc for GET /api/v1/videos.
// Supported query parameters: status, paper_id, page, limit.
func NewListHandler(lister JobLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := store.JobFilter{
			Status:  q.Get("status"),
			PaperID: q.Get("paper_id"),
			Page:    intParam(q.Get("page"), 1),
			Limit:   intParam(q.Get("limit"), 20),
		}
		if filter.Page < 1 {
			filter.Page = 1
		}
		if filter.Limit < 1 {
			filter.Limit = 20
		}
		if filter.Limit > 100 {
			filter.Limit = 100
		}

		jobs, total, err := lister.ListJobs(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list jobs", nil)
			return
		}

		items := make([]jobResponse, 0, len(jobs))
		for _, job := range jobs {
			items = append(items, toJobResponse(job))
		}
		response.Collection(w, items, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: total > filter.Page*filter.Limit,
		})
	}
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// NewStatusHandler returns an http.HandlerFunc for GET /api/v1/videos/{jobID}.
func NewStatusHandler(reporter StatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		report, err := reporter.Job(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "No job with that ID", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to read job status", nil)
			return
		}

		response.JSON(w, report)
	}
}
