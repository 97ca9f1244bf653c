// Package store provides persistence for milestone import jobs.
package store

import (
	"context"
	"errors"

	"github.com/narvanalabs/causeway/internal/models"
)

// ErrNotFound is returned when a requested job does not exist.
var ErrNotFound = errors.New("resource not found")

// ImportStore persists import jobs and their per build results.
type ImportStore interface {
	// CreateJob stores a new job.
	CreateJob(ctx context.Context, job *models.ImportJob) error
	// UpdateJob updates the tag, status, build ids, error and finish time of a job.
	UpdateJob(ctx context.Context, job *models.ImportJob) error
	// GetJob retrieves a job with its results.
	GetJob(ctx context.Context, id string) (*models.ImportJob, error)
	// AddResult records the outcome of one build of a job.
	AddResult(ctx context.Context, jobID string, result *models.ImportResult) error
	// ListResults returns the results of a job in the order they were added.
	ListResults(ctx context.Context, jobID string) ([]*models.ImportResult, error)
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
	// Close releases the store's resources.
	Close() error
}
