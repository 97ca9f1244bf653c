package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/narvanalabs/causeway/internal/models"
)

// ErrDuplicateKey is returned when a job id is already taken.
var ErrDuplicateKey = errors.New("duplicate key")

// CreateJob stores a new import job.
func (s *PostgresStore) CreateJob(ctx context.Context, job *models.ImportJob) error {
	query := `
		INSERT INTO import_jobs (id, milestone_id, tag, status, build_ids, error, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, query,
		job.ID,
		job.MilestoneID,
		job.Tag,
		job.Status,
		pq.Array(nonNil(job.BuildIDs)),
		job.Error,
		job.CreatedAt,
		job.FinishedAt,
	).Scan(&job.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("inserting import job: %w", err)
	}
	return nil
}

// UpdateJob updates the mutable fields of a job.
func (s *PostgresStore) UpdateJob(ctx context.Context, job *models.ImportJob) error {
	query := `
		UPDATE import_jobs
		SET tag = $2, status = $3, build_ids = $4, error = $5, finished_at = $6
		WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.Tag,
		job.Status,
		pq.Array(nonNil(job.BuildIDs)),
		job.Error,
		job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("updating import job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetJob retrieves a job with its results.
func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.ImportJob, error) {
	query := `
		SELECT id, milestone_id, tag, status, build_ids, error, created_at, finished_at
		FROM import_jobs
		WHERE id = $1`

	job := &models.ImportJob{}
	var finishedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID,
		&job.MilestoneID,
		&job.Tag,
		&job.Status,
		pq.Array(&job.BuildIDs),
		&job.Error,
		&job.CreatedAt,
		&finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying import job: %w", err)
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}

	job.Results, err = s.listResults(ctx, id)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// AddResult records the outcome of one build.
func (s *PostgresStore) AddResult(ctx context.Context, jobID string, result *models.ImportResult) error {
	query := `
		INSERT INTO import_results (job_id, build_record_id, brew_build_id, brew_build_url, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)`

	var brewBuildID sql.NullInt64
	if result.BrewBuildID != 0 {
		brewBuildID = sql.NullInt64{Int64: int64(result.BrewBuildID), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		jobID,
		result.BuildRecordID,
		brewBuildID,
		result.BrewBuildURL,
		result.Status,
		result.ErrorMessage,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("inserting import result: %w", err)
	}
	return nil
}

// ListResults returns the results of a job in insertion order.
func (s *PostgresStore) ListResults(ctx context.Context, jobID string) ([]*models.ImportResult, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM import_jobs WHERE id = $1)`, jobID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking import job: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return s.listResults(ctx, jobID)
}

func (s *PostgresStore) listResults(ctx context.Context, jobID string) ([]*models.ImportResult, error) {
	query := `
		SELECT build_record_id, brew_build_id, brew_build_url, status, error_message
		FROM import_results
		WHERE job_id = $1
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("querying import results: %w", err)
	}
	defer rows.Close()

	results := make([]*models.ImportResult, 0)
	for rows.Next() {
		r := &models.ImportResult{}
		var brewBuildID sql.NullInt64
		if err := rows.Scan(&r.BuildRecordID, &brewBuildID, &r.BrewBuildURL, &r.Status, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scanning import result: %w", err)
		}
		if brewBuildID.Valid {
			r.BrewBuildID = int(brewBuildID.Int64)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating import results: %w", err)
	}
	return results, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
