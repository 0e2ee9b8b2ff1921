package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/scivid/scivid/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetLatestJobByPaperID(ctx context.Context, paperID string) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
	UpdateJobProgress(ctx context.Context, id uuid.UUID, progressPercent int, currentStep *string, completedSteps []string) error
}

// JobFilter narrows ListJobs.
type JobFilter struct {
	Status  string
	PaperID string
	Page    int
	Limit   int
}

// JobUpdateParams collects the optional fields of a status update. Exported
// so Store fakes in tests can apply the options they receive.
type JobUpdateParams struct {
	ErrorMessage   *string
	ErrorType      *string
	FinalVideoPath *string
}

type JobUpdateOption func(*JobUpdateParams)

// ApplyJobUpdateOptions folds opts into a JobUpdateParams.
func ApplyJobUpdateOptions(opts []JobUpdateOption) JobUpdateParams {
	var p JobUpdateParams
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *JobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithErrorType(errType string) JobUpdateOption {
	return func(p *JobUpdateParams) {
		p.ErrorType = &errType
	}
}

func WithFinalVideoPath(path string) JobUpdateOption {
	return func(p *JobUpdateParams) {
		p.FinalVideoPath = &path
	}
}
