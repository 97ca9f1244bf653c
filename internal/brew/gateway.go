// Package brew adapts a Koji hub to the operations causeway needs to look up,
// import and tag PNC builds in Brew.
package brew

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	cerrors "github.com/narvanalabs/causeway/internal/errors"
	"github.com/narvanalabs/causeway/internal/integrations/koji"
	"github.com/narvanalabs/causeway/internal/models"
)

const (
	// BuildTagSuffix turns a package tag into the tag builds are tagged into.
	BuildTagSuffix = "-candidate"

	// BuildSystemKey is the build extra key that records who imported a build.
	BuildSystemKey = "build_system"
	// BuildSystemPNC marks builds imported from PNC.
	BuildSystemPNC = "PNC"

	communicationFailure = "Failure while communicating with Koji: "
	loginFailure         = "Failure while logging in to Koji: "
)

// KojiClient is the subset of the Koji hub API the gateway uses.
type KojiClient interface {
	Login(ctx context.Context) (*koji.Session, error)
	Logout(ctx context.Context, s *koji.Session) error
	GetBuild(ctx context.Context, s *koji.Session, ref any) (*koji.BuildInfo, error)
	GetTag(ctx context.Context, s *koji.Session, tag string) (*koji.TagInfo, error)
	ListTags(ctx context.Context, s *koji.Session, buildID int) ([]*koji.TagInfo, error)
	PackageListAdd(ctx context.Context, s *koji.Session, tag, pkg, owner string) error
	TagBuild(ctx context.Context, s *koji.Session, tag, nvr string) error
	UntagBuild(ctx context.Context, s *koji.Session, tag, nvr string) error
	ImportBuild(ctx context.Context, s *koji.Session, metadata *koji.Import, files koji.FileSource) (*koji.ImportResult, error)
}

// Config holds gateway settings.
type Config struct {
	// WebURL is the prefix build ids are appended to for human facing links,
	// e.g. https://brewweb.example.com/brew/buildinfo?buildID=
	WebURL string
}

// Gateway performs Brew operations, each in its own Koji session.
type Gateway struct {
	koji   KojiClient
	webURL string
	logger *slog.Logger
}

// NewGateway creates a Brew gateway.
func NewGateway(client KojiClient, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		koji:   client,
		webURL: cfg.WebURL,
		logger: logger,
	}
}

// CandidateTag returns the build level tag of a package tag.
func CandidateTag(tag string) string {
	return tag + BuildTagSuffix
}

// FindBuildByNVR returns the Brew build with the given NVR, or nil when Brew
// has none. A build that was not imported from PNC is a semantic failure.
func (g *Gateway) FindBuildByNVR(ctx context.Context, nvr models.NVR) (*models.BrewBuild, error) {
	var build *models.BrewBuild
	err := g.withSession(ctx, func(s *koji.Session) error {
		bi, err := g.koji.GetBuild(ctx, s, nvr.String())
		if err != nil {
			return cerrors.Communication(communicationFailure+err.Error(), err)
		}
		if bi == nil {
			return nil
		}
		if err := checkPNCImported(bi); err != nil {
			return err
		}
		build = models.NewBrewBuild(bi.ID, nvr)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return build, nil
}

// FindBuildByID returns the Brew build with the given id, or nil when Brew
// has none. A build that was not imported from PNC is a semantic failure.
func (g *Gateway) FindBuildByID(ctx context.Context, id int) (*models.BrewBuild, error) {
	var build *models.BrewBuild
	err := g.withSession(ctx, func(s *koji.Session) error {
		bi, err := g.koji.GetBuild(ctx, s, id)
		if err != nil {
			return cerrors.Communication(communicationFailure+err.Error(), err)
		}
		if bi == nil {
			return nil
		}
		if err := checkPNCImported(bi); err != nil {
			return err
		}
		build = models.NewBrewBuild(bi.ID, models.NewNVR(bi.Name, bi.Version, bi.Release))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return build, nil
}

// checkPNCImported fails for builds Brew got from somewhere other than PNC.
func checkPNCImported(bi *koji.BuildInfo) error {
	if system, _ := bi.Extra[BuildSystemKey].(string); system == BuildSystemPNC {
		return nil
	}
	return cerrors.Semanticf(nil, "Found conflicting brew build %d (build doesn't have %s set to %s)",
		bi.ID, BuildSystemKey, BuildSystemPNC)
}

// TagBuild adds the build's package to tag and tags the build into the
// candidate tag.
func (g *Gateway) TagBuild(ctx context.Context, tag string, build *models.BrewBuild) error {
	g.logger.Info("applying tag", "tag", tag, "nvr", build.NVR.String())
	return g.withSession(ctx, func(s *koji.Session) error {
		err := g.koji.PackageListAdd(ctx, s, tag, build.NVR.KojiName(), sessionUser(s))
		if err == nil {
			err = g.koji.TagBuild(ctx, s, CandidateTag(tag), build.NVR.String())
		}
		if err == nil {
			return nil
		}
		if isPolicyViolation(err) {
			msg := fmt.Sprintf("%sThis is most probably because of missing permissions. "+
				"Ask RCM to add permissions for user '%s' to add packages to tag '%s' "+
				"and to tag builds into tag '%s'. Cause: %s",
				communicationFailure, sessionUser(s), tag, CandidateTag(tag), err.Error())
			return cerrors.Semantic(msg, err)
		}
		return cerrors.Communication(communicationFailure+err.Error(), err)
	})
}

func isPolicyViolation(err error) bool {
	var fault *koji.Fault
	if errors.As(err, &fault) {
		return strings.Contains(fault.Message, "policy violation")
	}
	return strings.Contains(err.Error(), "policy violation")
}

func sessionUser(s *koji.Session) string {
	if s.User == nil {
		return ""
	}
	return s.User.Name
}

// IsBuildTagged reports whether the build is tagged into tag's candidate tag.
func (g *Gateway) IsBuildTagged(ctx context.Context, tag string, build *models.BrewBuild) (bool, error) {
	want := CandidateTag(tag)
	var tagged bool
	err := g.withSession(ctx, func(s *koji.Session) error {
		tags, err := g.koji.ListTags(ctx, s, build.ID)
		if err != nil {
			return cerrors.Communication("Failure while getting tag information from build: "+err.Error(), err)
		}
		for _, t := range tags {
			if t.Name == want {
				tagged = true
				break
			}
		}
		return nil
	})
	return tagged, err
}

// UntagBuild removes the build from tag's candidate tag.
func (g *Gateway) UntagBuild(ctx context.Context, tag string, nvr models.NVR) error {
	g.logger.Info("removing tag", "tag", tag, "nvr", nvr.String())
	return g.withSession(ctx, func(s *koji.Session) error {
		if err := g.koji.UntagBuild(ctx, s, CandidateTag(tag), nvr.String()); err != nil {
			return cerrors.Communication(communicationFailure+err.Error(), err)
		}
		return nil
	})
}

// ImportBuildOutcome imports a build and reports the outcome instead of
// failing on upload errors or a missing build. Only a failure of the import
// call itself is returned as an error.
func (g *Gateway) ImportBuildOutcome(ctx context.Context, nvr models.NVR, buildRecordID string, metadata *koji.Import, files koji.FileSource) (*models.ImportResult, error) {
	g.logger.Info("importing build", "nvr", nvr.String(), "build_record_id", buildRecordID)

	result, err := g.importBuild(ctx, metadata, files, communicationFailure)
	if err != nil {
		return nil, err
	}

	out := &models.ImportResult{
		BuildRecordID: buildRecordID,
		Status:        models.ImportStatusSuccessful,
	}
	if g.logUploadErrors(result, files) {
		out.Status = models.ImportStatusFailed
	}
	if result.BuildInfo == nil {
		out.ErrorMessage = "Import to koji failed"
		out.Status = models.ImportStatusError
	} else {
		out.BrewBuildID = result.BuildInfo.ID
		out.BrewBuildURL = g.BuildURL(result.BuildInfo.ID)
	}

	g.logger.Info("build import finished", "nvr", nvr.String(), "status", out.Status)
	return out, nil
}

// ImportBuild imports a build and fails unless Brew created it with every
// file uploaded.
func (g *Gateway) ImportBuild(ctx context.Context, nvr models.NVR, metadata *koji.Import, files koji.FileSource) (*models.BrewBuild, error) {
	result, err := g.importBuild(ctx, metadata, files, "Failure while importing builds to Koji: ")
	if err != nil {
		return nil, err
	}
	if g.logUploadErrors(result, files) {
		return nil, cerrors.Semantic("Failure while importing artifacts", nil)
	}
	if result.BuildInfo == nil {
		return nil, cerrors.Semantic("Import to koji failed for unknown reason. No build data.", nil)
	}
	return models.NewBrewBuild(result.BuildInfo.ID, nvr), nil
}

// importBuild runs the import call in its own session. Koji has already
// created the build once the call returns, so a logout failure is only
// logged.
func (g *Gateway) importBuild(ctx context.Context, metadata *koji.Import, files koji.FileSource, failure string) (*koji.ImportResult, error) {
	var result *koji.ImportResult
	err := g.session(ctx, false, func(s *koji.Session) error {
		r, err := g.koji.ImportBuild(ctx, s, metadata, files)
		if err != nil {
			return cerrors.Communication(failure+err.Error(), err)
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// logUploadErrors logs every per file upload error and reports whether
// there were any.
func (g *Gateway) logUploadErrors(result *koji.ImportResult, files koji.FileSource) bool {
	if result == nil || len(result.UploadErrors) == 0 {
		return false
	}
	for path, ue := range result.UploadErrors {
		g.logger.Warn("failed to import artifact",
			"artifact_id", files.ArtifactID(path),
			"path", path,
			"error", ue.Error(),
		)
	}
	return true
}

// TagsExist reports whether both tag and its candidate tag exist.
func (g *Gateway) TagsExist(ctx context.Context, tag string) (bool, error) {
	var exists bool
	err := g.withSession(ctx, func(s *koji.Session) error {
		packageTag, err := g.koji.GetTag(ctx, s, tag)
		if err != nil {
			return cerrors.Communication(communicationFailure+err.Error(), err)
		}
		buildTag, err := g.koji.GetTag(ctx, s, CandidateTag(tag))
		if err != nil {
			return cerrors.Communication(communicationFailure+err.Error(), err)
		}
		exists = packageTag != nil && buildTag != nil
		return nil
	})
	return exists, err
}

// BuildURL returns the Brew web link of a build.
func (g *Gateway) BuildURL(id int) string {
	return g.webURL + strconv.Itoa(id)
}

// withSession runs fn in a fresh Koji session and always releases it. A
// logout failure is reported only when fn itself succeeded.
func (g *Gateway) withSession(ctx context.Context, fn func(*koji.Session) error) error {
	return g.session(ctx, true, fn)
}

// session logs in, runs fn and logs out. With reportLogout unset a logout
// failure is always logged at warn and never returned.
func (g *Gateway) session(ctx context.Context, reportLogout bool, fn func(*koji.Session) error) (err error) {
	s, loginErr := g.koji.Login(ctx)
	if loginErr != nil {
		return cerrors.Communication(loginFailure+loginErr.Error(), loginErr)
	}
	defer func() {
		logoutErr := g.koji.Logout(context.WithoutCancel(ctx), s)
		if logoutErr == nil {
			return
		}
		if err == nil && reportLogout {
			err = cerrors.Communication(communicationFailure+logoutErr.Error(), logoutErr)
			return
		}
		g.logger.Warn("failed to close koji session", "error", logoutErr)
	}()
	return fn(s)
}
