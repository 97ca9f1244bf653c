// Package handlers implements the HTTP handlers of the API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/narvanalabs/causeway/internal/api/middleware"
	"github.com/narvanalabs/causeway/internal/models"
)

// Importer is the import service as seen by the API.
type Importer interface {
	ImportMilestone(ctx context.Context, milestoneID int) (*models.ImportJob, error)
	Job(ctx context.Context, id string) (*models.ImportJob, error)
	TagStatus(ctx context.Context, milestoneID int) (string, bool, error)
	Untag(ctx context.Context, tag string, nvr models.NVR) error
}

// BrewBuilds looks up builds in Brew.
type BrewBuilds interface {
	FindBuildByID(ctx context.Context, id int) (*models.BrewBuild, error)
	BuildURL(id int) string
}

// ImportHandler handles milestone imports and Brew lookups.
type ImportHandler struct {
	importer Importer
	brew     BrewBuilds
	logger   *slog.Logger
}

// NewImportHandler creates a new import handler.
func NewImportHandler(imp Importer, brew BrewBuilds, logger *slog.Logger) *ImportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportHandler{
		importer: imp,
		brew:     brew,
		logger:   logger,
	}
}

// TagStatusResponse is the body of GET /v1/milestones/{milestoneID}/tag.
type TagStatusResponse struct {
	MilestoneID int    `json:"milestone_id"`
	Tag         string `json:"tag"`
	Exists      bool   `json:"exists"`
}

// BrewBuildResponse is the body of GET /v1/brew/builds/{buildID}.
type BrewBuildResponse struct {
	*models.BrewBuild
	URL string `json:"url"`
}

// ImportMilestone handles POST /v1/imports/milestones/{milestoneID}.
func (h *ImportHandler) ImportMilestone(w http.ResponseWriter, r *http.Request) {
	milestoneID, ok := intParam(w, r, "milestoneID")
	if !ok {
		return
	}

	job, err := h.importer.ImportMilestone(r.Context(), milestoneID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	h.logger.Info("milestone import requested",
		"milestone_id", milestoneID,
		"job_id", job.ID,
		"subject", middleware.GetSubject(r.Context()),
	)
	w.Header().Set("Location", "/v1/imports/"+job.ID)
	WriteJSON(w, http.StatusAccepted, job)
}

// GetJob handles GET /v1/imports/{jobID}.
func (h *ImportHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.importer.Job(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// TagStatus handles GET /v1/milestones/{milestoneID}/tag.
func (h *ImportHandler) TagStatus(w http.ResponseWriter, r *http.Request) {
	milestoneID, ok := intParam(w, r, "milestoneID")
	if !ok {
		return
	}

	tag, exists, err := h.importer.TagStatus(r.Context(), milestoneID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, TagStatusResponse{
		MilestoneID: milestoneID,
		Tag:         tag,
		Exists:      exists,
	})
}

// GetBrewBuild handles GET /v1/brew/builds/{buildID}.
func (h *ImportHandler) GetBrewBuild(w http.ResponseWriter, r *http.Request) {
	buildID, ok := intParam(w, r, "buildID")
	if !ok {
		return
	}

	build, err := h.brew.FindBuildByID(r.Context(), buildID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	if build == nil {
		WriteNotFound(w, r, "Brew build not found")
		return
	}
	WriteJSON(w, http.StatusOK, BrewBuildResponse{
		BrewBuild: build,
		URL:       h.brew.BuildURL(build.ID),
	})
}

// Untag handles POST /v1/tags/{tag}/untag. The body is the NVR to remove.
func (h *ImportHandler) Untag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")

	var nvr models.NVR
	if err := json.NewDecoder(r.Body).Decode(&nvr); err != nil {
		WriteBadRequest(w, r, "Invalid request body")
		return
	}
	if err := nvr.Validate(); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	if err := h.importer.Untag(r.Context(), tag, nvr); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	h.logger.Info("build untagged",
		"tag", tag,
		"nvr", nvr.String(),
		"subject", middleware.GetSubject(r.Context()),
	)
	w.WriteHeader(http.StatusNoContent)
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v <= 0 {
		WriteBadRequest(w, r, "Invalid "+name)
		return 0, false
	}
	return v, true
}
