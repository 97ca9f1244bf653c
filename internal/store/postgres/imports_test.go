package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narvanalabs/causeway/internal/models"
)

func getTestDSN() string {
	return os.Getenv("TEST_DATABASE_URL")
}

// setupTestStore connects to the test database and applies the schema.
func setupTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := getTestDSN()
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	s, err := NewPostgresStore(DefaultConfig(dsn), nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	_, _ = s.DB().Exec("DROP TABLE IF EXISTS import_results CASCADE")
	_, _ = s.DB().Exec("DROP TABLE IF EXISTS import_jobs CASCADE")
	if err := s.Migrate(context.Background()); err != nil {
		s.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateGetUpdateJob(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	job := &models.ImportJob{
		ID:          uuid.NewString(),
		MilestoneID: 42,
		Status:      models.ImportJobStatusRunning,
	}
	require.NoError(t, s.CreateJob(ctx, job))
	assert.False(t, job.CreatedAt.IsZero())
	assert.ErrorIs(t, s.CreateJob(ctx, job), ErrDuplicateKey)

	finished := time.Now().UTC().Truncate(time.Microsecond)
	job.Tag = "foo-1.0-pnc"
	job.BuildIDs = []string{"100", "101"}
	job.Status = models.ImportJobStatusFailed
	job.FinishedAt = &finished
	require.NoError(t, s.UpdateJob(ctx, job))

	require.NoError(t, s.AddResult(ctx, job.ID, &models.ImportResult{
		BuildRecordID: "100", BrewBuildID: 7, BrewBuildURL: "https://brew/7", Status: models.ImportStatusSuccessful,
	}))
	require.NoError(t, s.AddResult(ctx, job.ID, &models.ImportResult{
		BuildRecordID: "101", Status: models.ImportStatusError, ErrorMessage: "Import to koji failed",
	}))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, got.MilestoneID)
	assert.Equal(t, "foo-1.0-pnc", got.Tag)
	assert.Equal(t, []string{"100", "101"}, got.BuildIDs)
	assert.Equal(t, models.ImportJobStatusFailed, got.Status)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))
	require.Len(t, got.Results, 2)
	assert.Equal(t, 7, got.Results[0].BrewBuildID)
	assert.Zero(t, got.Results[1].BrewBuildID)
	assert.Equal(t, "Import to koji failed", got.Results[1].ErrorMessage)
}

func TestMissingJob(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateJob(ctx, &models.ImportJob{ID: "missing"}), ErrNotFound)
	assert.ErrorIs(t, s.AddResult(ctx, "missing", &models.ImportResult{Status: models.ImportStatusSuccessful}), ErrNotFound)
	_, err = s.ListResults(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// **Feature: causeway, Property 14: Job build ids round-trip**
// For any list of build ids, storing and reading a job preserves them.
func TestBuildIDsRoundTrip(t *testing.T) {
	s := setupTestStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("build ids preserved", prop.ForAll(
		func(ids []string) bool {
			ctx := context.Background()
			job := &models.ImportJob{ID: uuid.NewString(), MilestoneID: 1, Status: models.ImportJobStatusRunning, BuildIDs: ids}
			if err := s.CreateJob(ctx, job); err != nil {
				return false
			}
			got, err := s.GetJob(ctx, job.ID)
			if err != nil || len(got.BuildIDs) != len(ids) {
				return false
			}
			for i := range ids {
				if got.BuildIDs[i] != ids[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.NumString()),
	))

	properties.TestingRun(t)
}
