// Package translator turns a PNC build into a Koji content generator import.
package translator

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/narvanalabs/causeway/internal/brew"
	"github.com/narvanalabs/causeway/internal/integrations/koji"
	"github.com/narvanalabs/causeway/internal/models"
)

const (
	// DefaultVersion is used when a build carries no Brew version attribute.
	DefaultVersion = "1.0.0"
	// DefaultRelease is the release of every imported build.
	DefaultRelease = "1"

	// LogFilename is the name the build log is imported under.
	LogFilename = "build.log"
	// LogArtifactID is what ArtifactID reports for the build log.
	LogArtifactID = "log"

	contentGenerator = "PNC"
	noarch           = "noarch"
	checksumMD5      = "md5"
	buildrootID      = 1
)

// Config holds translator settings.
type Config struct {
	// PNCURL identifies the external build system in build metadata.
	PNCURL string
}

// Translator builds import metadata and file sources.
type Translator struct {
	pncURL string
	hc     *http.Client
}

// New creates a translator. Artifact files are downloaded through hc.
func New(cfg Config, hc *http.Client) *Translator {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Translator{pncURL: cfg.PNCURL, hc: hc}
}

// NVRFor derives the Brew NVR of a PNC build.
func NVRFor(build models.PNCBuild) (models.NVR, error) {
	name := build.Attributes[models.AttributeBrewBuildName]
	if name == "" {
		name = build.BuildConfigName
	}
	version := build.Attributes[models.AttributeBrewBuildVersion]
	if version == "" {
		version = DefaultVersion
	}
	nvr := models.NewNVR(name, version, DefaultRelease)
	if err := nvr.Validate(); err != nil {
		return models.NVR{}, fmt.Errorf("build %s: %w", build.ID, err)
	}
	return nvr, nil
}

// Translate builds the import metadata for a build together with the files
// to upload.
func (t *Translator) Translate(build models.PNCBuild, nvr models.NVR, artifacts *models.BuildArtifacts, log string) (*koji.Import, *Files, error) {
	if artifacts == nil {
		artifacts = &models.BuildArtifacts{}
	}

	files := &Files{ids: make(map[string]string)}
	var outputs []koji.Output
	for _, a := range artifacts.Built {
		if a.DeployPath == "" {
			return nil, nil, fmt.Errorf("artifact %s of build %s has no deploy path", a.ID, build.ID)
		}
		outputs = append(outputs, artifactOutput(a))
		files.add(a.ID, koji.File{
			Path: a.DeployPath,
			Size: a.Size,
			Open: t.download(a.DeployURL),
		})
	}

	logSum := md5.Sum([]byte(log))
	outputs = append(outputs, koji.Output{
		BuildrootID:  buildrootID,
		Filename:     LogFilename,
		Filesize:     int64(len(log)),
		Arch:         noarch,
		Checksum:     hex.EncodeToString(logSum[:]),
		ChecksumType: checksumMD5,
		Type:         "log",
	})
	files.add(LogArtifactID, koji.File{
		Path: LogFilename,
		Size: int64(len(log)),
		Open: func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(log)), nil
		},
	})

	components := make([]koji.Component, 0, len(artifacts.Dependencies))
	for _, d := range artifacts.Dependencies {
		components = append(components, koji.Component{
			Type:         "file",
			Filename:     path.Base(d.DeployPath),
			Filesize:     d.Size,
			Checksum:     d.MD5,
			ChecksumType: checksumMD5,
		})
	}

	imp := &koji.Import{
		MetadataVersion: koji.MetadataVersion,
		Build: koji.BuildDescription{
			Name:      nvr.KojiName(),
			Version:   nvr.Version,
			Release:   nvr.Release,
			Source:    source(build),
			StartTime: build.StartTime.Unix(),
			EndTime:   build.EndTime.Unix(),
			Owner:     build.Username,
			Extra:     t.buildExtra(build, nvr),
		},
		Buildroots: []koji.Buildroot{{
			ID: buildrootID,
			Host: koji.BuildHost{
				OS:   hostOS(build),
				Arch: noarch,
			},
			ContentGenerator: koji.ContentGenerator{Name: contentGenerator, Version: "1.0"},
			Container:        koji.BuildContainer{Type: "docker", Arch: noarch},
			Tools:            buildTools(build),
			Components:       components,
			Extra: map[string]any{
				"build_type": build.BuildType,
			},
		}},
		Outputs: outputs,
	}
	return imp, files, nil
}

func (t *Translator) buildExtra(build models.PNCBuild, nvr models.NVR) map[string]any {
	extra := map[string]any{
		brew.BuildSystemKey:     brew.BuildSystemPNC,
		"external_build_id":     build.ID,
		"external_build_system": t.pncURL,
	}
	if group, artifact, ok := strings.Cut(nvr.Name, ":"); ok {
		extra["typeinfo"] = map[string]any{
			"maven": map[string]any{
				"group_id":    group,
				"artifact_id": artifact,
				"version":     nvr.Version,
			},
		}
	}
	return extra
}

// artifactOutput describes a built artifact. GAV identifiers
// (group:artifact:type:version[:classifier]) become maven outputs.
func artifactOutput(a models.Artifact) koji.Output {
	out := koji.Output{
		BuildrootID:  buildrootID,
		Filename:     path.Base(a.DeployPath),
		Filesize:     a.Size,
		Arch:         noarch,
		Checksum:     a.MD5,
		ChecksumType: checksumMD5,
		Type:         "file",
	}
	if dir := path.Dir(a.DeployPath); dir != "." {
		out.Relpath = dir
	}
	if gav := strings.Split(a.Identifier, ":"); len(gav) >= 4 {
		out.Type = "maven"
		maven := map[string]any{
			"group_id":    gav[0],
			"artifact_id": gav[1],
			"version":     gav[3],
		}
		if len(gav) > 4 && gav[4] != "" {
			maven["classifier"] = gav[4]
		}
		out.Extra = map[string]any{"typeinfo": map[string]any{"maven": maven}}
	}
	return out
}

func source(build models.PNCBuild) string {
	if build.ScmRevision == "" {
		return build.ScmURL
	}
	return build.ScmURL + "#" + build.ScmRevision
}

func hostOS(build models.PNCBuild) string {
	if build.SystemImage != "" {
		return build.SystemImage
	}
	return "linux"
}

func buildTools(build models.PNCBuild) []koji.BuildTool {
	if build.BuildType == "" {
		return []koji.BuildTool{}
	}
	return []koji.BuildTool{{Name: strings.ToLower(build.BuildType), Version: "unknown"}}
}

// download opens the file at url.
func (t *Translator) download(url string) func(context.Context) (io.ReadCloser, error) {
	return func(ctx context.Context) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		resp, err := t.hc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("downloading %s: %w", url, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("downloading %s: status %d", url, resp.StatusCode)
		}
		return resp.Body, nil
	}
}

// Files is the file source of a translated import.
type Files struct {
	files []koji.File
	ids   map[string]string
}

func (f *Files) add(artifactID string, file koji.File) {
	f.files = append(f.files, file)
	f.ids[file.Path] = artifactID
}

// Files returns every file to upload, built artifacts first.
func (f *Files) Files() []koji.File {
	return f.files
}

// ArtifactID returns the PNC artifact id of an uploaded path, or "" when
// the path is unknown.
func (f *Files) ArtifactID(p string) string {
	return f.ids[p]
}
