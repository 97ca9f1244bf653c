// Package importer copies the successful builds of a PNC milestone into Brew.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	cerrors "github.com/narvanalabs/causeway/internal/errors"
	"github.com/narvanalabs/causeway/internal/integrations/koji"
	"github.com/narvanalabs/causeway/internal/models"
	"github.com/narvanalabs/causeway/internal/store"
	"github.com/narvanalabs/causeway/internal/translator"
)

// ErrShuttingDown is returned for imports requested after Shutdown.
var ErrShuttingDown = errors.New("importer is shutting down")

// BrewGateway is what the importer needs from Brew.
type BrewGateway interface {
	FindBuildByNVR(ctx context.Context, nvr models.NVR) (*models.BrewBuild, error)
	IsBuildTagged(ctx context.Context, tag string, build *models.BrewBuild) (bool, error)
	TagBuild(ctx context.Context, tag string, build *models.BrewBuild) error
	UntagBuild(ctx context.Context, tag string, nvr models.NVR) error
	TagsExist(ctx context.Context, tag string) (bool, error)
	ImportBuildOutcome(ctx context.Context, nvr models.NVR, buildRecordID string, metadata *koji.Import, files koji.FileSource) (*models.ImportResult, error)
	BuildURL(id int) string
}

// PNCGateway is what the importer needs from PNC.
type PNCGateway interface {
	TagForMilestone(ctx context.Context, milestoneID int) (string, error)
	SuccessfulBuildsForMilestone(ctx context.Context, milestoneID int) ([]models.PNCBuild, error)
	BuildArtifacts(ctx context.Context, buildID string) (*models.BuildArtifacts, error)
	BuildLog(ctx context.Context, buildID string) (string, error)
}

// Service runs milestone imports.
type Service struct {
	brew       BrewGateway
	pnc        PNCGateway
	translator *translator.Translator
	store      store.ImportStore
	logger     *slog.Logger

	// runCtx outlives the requests that start imports and is cancelled
	// when Shutdown gives up waiting.
	runCtx    context.Context
	cancelRun context.CancelFunc

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewService creates an import service.
func NewService(brew BrewGateway, pnc PNCGateway, tr *translator.Translator, st store.ImportStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	return &Service{
		brew:       brew,
		pnc:        pnc,
		translator: tr,
		store:      st,
		logger:     logger,
		runCtx:     runCtx,
		cancelRun:  cancel,
	}
}

// ImportMilestone starts importing a milestone in the background and returns
// the new job.
func (s *Service) ImportMilestone(ctx context.Context, milestoneID int) (*models.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return nil, ErrShuttingDown
	}

	job, err := s.createJob(ctx, milestoneID)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func(job models.ImportJob) {
		defer s.wg.Done()
		s.run(s.runCtx, &job)
	}(*job)

	return job, nil
}

// RunMilestone imports a milestone and returns the finished job.
func (s *Service) RunMilestone(ctx context.Context, milestoneID int) (*models.ImportJob, error) {
	job, err := s.createJob(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	s.run(ctx, job)
	return s.store.GetJob(context.WithoutCancel(ctx), job.ID)
}

// Job returns a job with the results recorded so far.
func (s *Service) Job(ctx context.Context, id string) (*models.ImportJob, error) {
	return s.store.GetJob(ctx, id)
}

// Untag removes a build from the candidate tag of tag.
func (s *Service) Untag(ctx context.Context, tag string, nvr models.NVR) error {
	if err := nvr.Validate(); err != nil {
		return err
	}
	return s.brew.UntagBuild(ctx, tag, nvr)
}

// TagStatus returns the Brew tag of a milestone and whether the tags exist.
func (s *Service) TagStatus(ctx context.Context, milestoneID int) (string, bool, error) {
	tag, err := s.pnc.TagForMilestone(ctx, milestoneID)
	if err != nil {
		return "", false, err
	}
	if tag == "" {
		return "", false, nil
	}
	exists, err := s.brew.TagsExist(ctx, tag)
	if err != nil {
		return tag, false, err
	}
	return tag, exists, nil
}

func (s *Service) createJob(ctx context.Context, milestoneID int) (*models.ImportJob, error) {
	job := &models.ImportJob{
		ID:          uuid.NewString(),
		MilestoneID: milestoneID,
		Status:      models.ImportJobStatusRunning,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating import job: %w", err)
	}
	return job, nil
}

// run imports every build of the job's milestone and records the outcome.
func (s *Service) run(ctx context.Context, job *models.ImportJob) {
	logger := s.logger.With("job_id", job.ID, "milestone_id", job.MilestoneID)
	logger.Info("milestone import started")

	results, err := s.importMilestone(ctx, logger, job)
	if err != nil {
		job.Status = models.ImportJobStatusError
		job.Error = err.Error()
		logger.Error("milestone import failed", "error", err, "kind", cerrors.KindOf(err).String())
	} else {
		job.Status = models.StatusFor(results)
	}
	finished := time.Now().UTC()
	job.FinishedAt = &finished

	if err := s.store.UpdateJob(context.WithoutCancel(ctx), job); err != nil {
		logger.Error("failed to record job outcome", "error", err)
		return
	}
	logger.Info("milestone import finished", "status", job.Status, "builds", len(results))
}

func (s *Service) importMilestone(ctx context.Context, logger *slog.Logger, job *models.ImportJob) ([]*models.ImportResult, error) {
	tag, err := s.pnc.TagForMilestone(ctx, job.MilestoneID)
	if err != nil {
		return nil, err
	}
	exists := false
	if tag != "" {
		exists, err = s.brew.TagsExist(ctx, tag)
		if err != nil {
			return nil, err
		}
	}
	if !exists {
		return nil, cerrors.Semantic("Proper brew tags don't exist. Create them before importing builds. Tag prefix: "+tag, nil)
	}

	builds, err := s.pnc.SuccessfulBuildsForMilestone(ctx, job.MilestoneID)
	if err != nil {
		return nil, err
	}

	job.Tag = tag
	job.BuildIDs = make([]string, 0, len(builds))
	for _, b := range builds {
		job.BuildIDs = append(job.BuildIDs, b.ID)
	}
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("updating import job: %w", err)
	}

	results := make([]*models.ImportResult, 0, len(builds))
	for _, b := range builds {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("import interrupted: %w", err)
		}
		result := s.importBuild(ctx, logger.With("build_id", b.ID), tag, b)
		if err := s.store.AddResult(ctx, job.ID, result); err != nil {
			return results, fmt.Errorf("recording result of build %s: %w", b.ID, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// importBuild imports one build. Failures are reported in the result so the
// rest of the milestone still gets imported.
func (s *Service) importBuild(ctx context.Context, logger *slog.Logger, tag string, build models.PNCBuild) *models.ImportResult {
	nvr, err := translator.NVRFor(build)
	if err != nil {
		return errorResult(logger, build.ID, err)
	}

	existing, err := s.brew.FindBuildByNVR(ctx, nvr)
	if err != nil {
		return errorResult(logger, build.ID, err)
	}
	if existing != nil {
		logger.Info("build already in brew", "nvr", nvr.String(), "brew_build_id", existing.ID)
		if err := s.ensureTagged(ctx, tag, existing); err != nil {
			return errorResult(logger, build.ID, err)
		}
		return &models.ImportResult{
			BuildRecordID: build.ID,
			BrewBuildID:   existing.ID,
			BrewBuildURL:  s.brew.BuildURL(existing.ID),
			Status:        models.ImportStatusSuccessful,
		}
	}

	artifacts, err := s.pnc.BuildArtifacts(ctx, build.ID)
	if err != nil {
		return errorResult(logger, build.ID, err)
	}
	log, err := s.pnc.BuildLog(ctx, build.ID)
	if err != nil {
		return errorResult(logger, build.ID, err)
	}
	metadata, files, err := s.translator.Translate(build, nvr, artifacts, log)
	if err != nil {
		return errorResult(logger, build.ID, err)
	}

	result, err := s.brew.ImportBuildOutcome(ctx, nvr, build.ID, metadata, files)
	if err != nil {
		return errorResult(logger, build.ID, err)
	}
	if result.Status != models.ImportStatusSuccessful {
		return result
	}

	if err := s.brew.TagBuild(ctx, tag, models.NewBrewBuild(result.BrewBuildID, nvr)); err != nil {
		logger.Error("imported build could not be tagged", "error", err)
		result.Status = models.ImportStatusError
		result.ErrorMessage = err.Error()
	}
	return result
}

func (s *Service) ensureTagged(ctx context.Context, tag string, build *models.BrewBuild) error {
	tagged, err := s.brew.IsBuildTagged(ctx, tag, build)
	if err != nil {
		return err
	}
	if tagged {
		return nil
	}
	return s.brew.TagBuild(ctx, tag, build)
}

func errorResult(logger *slog.Logger, buildID string, err error) *models.ImportResult {
	logger.Error("build import failed", "error", err, "kind", cerrors.KindOf(err).String())
	return &models.ImportResult{
		BuildRecordID: buildID,
		Status:        models.ImportStatusError,
		ErrorMessage:  err.Error(),
	}
}

// Name returns the component name.
func (s *Service) Name() string {
	return "importer"
}

// Wait blocks until every background import has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown stops accepting imports and waits for running ones. Imports
// still running when ctx expires are cancelled.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancelRun()
		return nil
	case <-ctx.Done():
		s.cancelRun()
		<-done
		return fmt.Errorf("waiting for imports: %w", ctx.Err())
	}
}
