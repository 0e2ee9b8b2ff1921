package task

import (
	"context"
	"errors"

	"github.com/scivid/scivid/internal/pipeline"
	"github.com/scivid/scivid/internal/provider"
	"github.com/scivid/scivid/pkg/models"
)

// ClassifyError maps a pipeline failure to the error_type recorded on the
// job. Checks run most-specific first: a GenerationError caused by a rate
// limit classifies as rate_limit, not generation_failed.
func ClassifyError(err error) string {
	switch {
	case errors.Is(err, provider.ErrNotFound):
		return models.ErrorTypePaperNotFound
	case errors.Is(err, provider.ErrUnauthorized):
		return models.ErrorTypeAPIKey
	case errors.Is(err, provider.ErrRateLimited):
		return models.ErrorTypeRateLimit
	case errors.Is(err, context.DeadlineExceeded):
		return models.ErrorTypeTimeout
	}

	var genErr *provider.GenerationError
	if errors.As(err, &genErr) {
		return models.ErrorTypeGenerationFailed
	}

	var pipeErr *pipeline.PipelineError
	if errors.As(err, &pipeErr) {
		return models.ErrorTypePipeline
	}
	return models.ErrorTypeUnknown
}
