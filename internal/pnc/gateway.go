// Package pnc reads milestones, builds, logs, sources and artifacts from PNC.
package pnc

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	cerrors "github.com/narvanalabs/causeway/internal/errors"
	"github.com/narvanalabs/causeway/internal/integrations/pncrest"
	"github.com/narvanalabs/causeway/internal/models"
)

// successQuery selects successful builds.
const successQuery = "status==SUCCESS"

// maxLoggedBody bounds the error body logged for failed source downloads.
const maxLoggedBody = 4096

// RemoteClient is the subset of the PNC REST API the gateway uses.
type RemoteClient interface {
	GetMilestone(ctx context.Context, id string) (*pncrest.ProductMilestone, error)
	ListMilestoneBuilds(ctx context.Context, milestoneID, q string) ([]pncrest.Build, error)
	ListBuiltArtifacts(ctx context.Context, buildID string) ([]pncrest.Artifact, error)
	ListDependencyArtifacts(ctx context.Context, buildID string) ([]pncrest.Artifact, error)
	GetBuildLog(ctx context.Context, buildID string) (io.ReadCloser, error)
	GetInternalSCMArchive(ctx context.Context, buildID string) (*http.Response, error)
}

// Gateway is a read only view of PNC.
type Gateway struct {
	client RemoteClient
	logger *slog.Logger
}

// NewGateway creates a PNC gateway.
func NewGateway(client RemoteClient, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{client: client, logger: logger}
}

// TagForMilestone returns the Brew tag prefix configured on the milestone's
// product version, or "" when none is set.
func (g *Gateway) TagForMilestone(ctx context.Context, milestoneID int) (string, error) {
	m, err := g.client.GetMilestone(ctx, strconv.Itoa(milestoneID))
	if err != nil {
		status := pncrest.StatusOf(err)
		switch {
		case pncrest.IsNotFound(err):
			return "", cerrors.Communicationf(err,
				"Can not read tag because PNC haven't managed to find product milestone with id %d - response %d",
				milestoneID, status)
		case status != 0:
			return "", cerrors.Communicationf(err,
				"Can not read tag because PNC responded with an error when getting product milestone %d - response %d",
				milestoneID, status)
		default:
			return "", cerrors.Communicationf(err, "Unknown error - message = %s", err.Error())
		}
	}
	if m.ProductVersion == nil {
		return "", cerrors.Semanticf(nil, "Product milestone %d does not belong to a product version", milestoneID)
	}
	return m.ProductVersion.Attributes[models.AttributeBrewTagPrefix], nil
}

// SuccessfulBuildsForMilestone returns the successful builds of a milestone,
// each at most once, in no particular order.
func (g *Gateway) SuccessfulBuildsForMilestone(ctx context.Context, milestoneID int) ([]models.PNCBuild, error) {
	remote, err := g.client.ListMilestoneBuilds(ctx, strconv.Itoa(milestoneID), successQuery)
	if err != nil {
		return nil, cerrors.Communicationf(err, "Can not read builds for product milestone %d - response %d",
			milestoneID, pncrest.StatusOf(err))
	}

	seen := make(map[string]struct{}, len(remote))
	builds := make([]models.PNCBuild, 0, len(remote))
	for _, b := range remote {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		seen[b.ID] = struct{}{}
		builds = append(builds, toPNCBuild(b))
	}
	return builds, nil
}

// BuildLog returns the whole build log. A log PNC does not have is a
// semantic failure; an empty log is "".
func (g *Gateway) BuildLog(ctx context.Context, buildID string) (string, error) {
	rc, err := g.client.GetBuildLog(ctx, buildID)
	if err != nil {
		return "", cerrors.Communicationf(err,
			"Can not read build log of build %s because PNC responded with an error - response %d",
			buildID, pncrest.StatusOf(err))
	}
	if rc == nil {
		return "", cerrors.Semanticf(nil, "Build log for Build %s is empty - response %d", buildID, http.StatusNotFound)
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return "", cerrors.Communicationf(err, "Can not read build log of build %s: %s", buildID, err.Error())
	}
	return string(body), nil
}

// SourcesArchive opens the internal SCM archive of a build. The caller
// closes the returned stream.
func (g *Gateway) SourcesArchive(ctx context.Context, buildID string) (io.ReadCloser, error) {
	resp, err := g.client.GetInternalSCMArchive(ctx, buildID)
	if err != nil {
		return nil, cerrors.Communicationf(err, "Can not read sources of build %s: %s", buildID, err.Error())
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
		g.logger.Warn("sources endpoint returned an error",
			"build_id", buildID,
			"status", resp.StatusCode,
			"body", string(body),
		)
		return nil, cerrors.Communicationf(nil, "Can not read sources of build %s, received status %d",
			buildID, resp.StatusCode)
	}
	return resp.Body, nil
}

// artifactQuery lists one kind of artifact of a build.
type artifactQuery func(ctx context.Context, buildID string) ([]pncrest.Artifact, error)

// BuildArtifacts returns the artifacts a build produced and depended on.
func (g *Gateway) BuildArtifacts(ctx context.Context, buildID string) (*models.BuildArtifacts, error) {
	built, err := g.artifacts(ctx, buildID, g.client.ListBuiltArtifacts)
	if err != nil {
		return nil, err
	}
	deps, err := g.artifacts(ctx, buildID, g.client.ListDependencyArtifacts)
	if err != nil {
		return nil, err
	}
	return &models.BuildArtifacts{Built: built, Dependencies: deps}, nil
}

func (g *Gateway) artifacts(ctx context.Context, buildID string, query artifactQuery) ([]models.Artifact, error) {
	remote, err := query(ctx, buildID)
	if err != nil {
		return nil, cerrors.Communicationf(err, "Can't get info for build with id %s - response %d",
			buildID, pncrest.StatusOf(err))
	}

	seen := make(map[models.Artifact]struct{}, len(remote))
	out := make([]models.Artifact, 0, len(remote))
	for _, a := range remote {
		artifact := ToArtifact(a)
		if _, ok := seen[artifact]; ok {
			continue
		}
		seen[artifact] = struct{}{}
		out = append(out, artifact)
	}
	return out, nil
}

// ToArtifact converts a PNC artifact.
func ToArtifact(a pncrest.Artifact) models.Artifact {
	return models.NewArtifact(a.ID, a.Identifier, a.DeployPath, a.MD5, a.DeployURL, a.Size,
		models.ArtifactQuality(a.ArtifactQuality))
}

func toPNCBuild(b pncrest.Build) models.PNCBuild {
	build := models.PNCBuild{
		ID:          b.ID,
		Status:      models.PNCBuildStatus(b.Status),
		ScmURL:      b.ScmURL,
		ScmRevision: b.ScmRevision,
		ScmTag:      b.ScmTag,
		Attributes:  b.Attributes,
	}
	if b.StartTime != nil {
		build.StartTime = *b.StartTime
	}
	if b.EndTime != nil {
		build.EndTime = *b.EndTime
	}
	if b.User != nil {
		build.Username = b.User.Username
	}
	if b.BuildConfigRevision != nil {
		build.BuildConfigName = b.BuildConfigRevision.Name
		build.BuildType = b.BuildConfigRevision.BuildType
	}
	if b.Environment != nil {
		build.SystemImage = b.Environment.SystemImageID
	}
	return build
}

