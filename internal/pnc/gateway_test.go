package pnc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/narvanalabs/causeway/internal/errors"
	"github.com/narvanalabs/causeway/internal/integrations/pncrest"
	"github.com/narvanalabs/causeway/internal/models"
)

// fakePNC is an in-memory RemoteClient.
type fakePNC struct {
	milestone    *pncrest.ProductMilestone
	milestoneErr error
	builds       []pncrest.Build
	built        []pncrest.Artifact
	deps         []pncrest.Artifact
	artifactErr  error
	log          *string
	logErr       error
	archive      *http.Response
}

func (f *fakePNC) GetMilestone(ctx context.Context, id string) (*pncrest.ProductMilestone, error) {
	return f.milestone, f.milestoneErr
}

func (f *fakePNC) ListMilestoneBuilds(ctx context.Context, milestoneID, q string) ([]pncrest.Build, error) {
	return f.builds, nil
}

func (f *fakePNC) ListBuiltArtifacts(ctx context.Context, buildID string) ([]pncrest.Artifact, error) {
	return f.built, f.artifactErr
}

func (f *fakePNC) ListDependencyArtifacts(ctx context.Context, buildID string) ([]pncrest.Artifact, error) {
	return f.deps, f.artifactErr
}

func (f *fakePNC) GetBuildLog(ctx context.Context, buildID string) (io.ReadCloser, error) {
	if f.logErr != nil {
		return nil, f.logErr
	}
	if f.log == nil {
		return nil, nil
	}
	return io.NopCloser(strings.NewReader(*f.log)), nil
}

func (f *fakePNC) GetInternalSCMArchive(ctx context.Context, buildID string) (*http.Response, error) {
	return f.archive, nil
}

func newTestGateway(f *fakePNC) *Gateway {
	return NewGateway(f, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

// **Feature: causeway, Property 6: Artifact translation**
// For any PNC artifact, exactly one leading separator is stripped from the
// deploy path and an unknown size becomes 1.
func TestArtifactTranslation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("deploy path and size normalisation", prop.ForAll(
		func(path string, slashes int, size int64, known bool) bool {
			a := pncrest.Artifact{
				ID:         "1",
				Identifier: "org.foo:bar:jar:1.0",
				DeployPath: strings.Repeat("/", slashes) + path,
			}
			if known {
				a.Size = &size
			}
			got := ToArtifact(a)

			wantPath := strings.Repeat("/", max(slashes-1, 0)) + path
			wantSize := int64(1)
			if known {
				wantSize = size
			}
			return got.DeployPath == wantPath && got.Size == wantSize
		},
		gen.Identifier(),
		gen.IntRange(0, 3),
		gen.Int64Range(0, 1<<40),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// **Feature: causeway, Property 8: Build log retrieval**
// For any build, an empty log is returned as "" and a missing log fails
// with an error naming the build.
func TestBuildLog(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("empty log is empty string", prop.ForAll(
		func(id string) bool {
			empty := ""
			log, err := newTestGateway(&fakePNC{log: &empty}).BuildLog(context.Background(), id)
			return err == nil && log == ""
		},
		gen.Identifier(),
	))

	properties.Property("missing log names the build", prop.ForAll(
		func(id string) bool {
			_, err := newTestGateway(&fakePNC{}).BuildLog(context.Background(), id)
			return cerrors.IsSemantic(err) &&
				err.Error() == "Build log for Build "+id+" is empty - response 404"
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestBuildLogContent(t *testing.T) {
	content := "[INFO] BUILD SUCCESS\n"
	log, err := newTestGateway(&fakePNC{log: &content}).BuildLog(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, content, log)

	_, err = newTestGateway(&fakePNC{logErr: &pncrest.RemoteError{Status: 500}}).BuildLog(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, cerrors.IsCommunication(err))
	assert.Contains(t, err.Error(), "500")
}

// **Feature: causeway, Property 9: Source download failures carry the status**
// For any error status, SourcesArchive fails with a message containing it.
func TestSourcesArchiveFailure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("error status is reported", prop.ForAll(
		func(status int) bool {
			f := &fakePNC{archive: response(status, "not here")}
			rc, err := newTestGateway(f).SourcesArchive(context.Background(), "7")
			return rc == nil && err != nil && strings.Contains(err.Error(), strconv.Itoa(status))
		},
		gen.IntRange(400, 599),
	))

	properties.TestingRun(t)
}

func TestSourcesArchive(t *testing.T) {
	f := &fakePNC{archive: response(http.StatusOK, "tarball")}
	rc, err := newTestGateway(f).SourcesArchive(context.Background(), "7")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "tarball", string(body))

	f = &fakePNC{archive: response(http.StatusNotFound, "")}
	_, err = newTestGateway(f).SourcesArchive(context.Background(), "7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

// **Feature: causeway, Property 10: Milestone builds are unique**
// For any list of builds with repeated ids, each id is returned once.
func TestSuccessfulBuildsDeduplicated(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("builds deduplicated by id", prop.ForAll(
		func(ids []int) bool {
			f := &fakePNC{}
			unique := map[string]bool{}
			for _, id := range ids {
				s := strconv.Itoa(id)
				unique[s] = true
				f.builds = append(f.builds, pncrest.Build{ID: s, Status: "SUCCESS"})
			}
			builds, err := newTestGateway(f).SuccessfulBuildsForMilestone(context.Background(), 1)
			if err != nil || len(builds) != len(unique) {
				return false
			}
			for _, b := range builds {
				if !unique[b.ID] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(1, 20)),
	))

	properties.TestingRun(t)
}

func TestTagForMilestone(t *testing.T) {
	f := &fakePNC{milestone: &pncrest.ProductMilestone{
		ID: "5",
		ProductVersion: &pncrest.ProductVersion{
			Attributes: map[string]string{models.AttributeBrewTagPrefix: "foo-1.0-pnc"},
		},
	}}
	tag, err := newTestGateway(f).TagForMilestone(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "foo-1.0-pnc", tag)

	f.milestone.ProductVersion.Attributes = nil
	tag, err = newTestGateway(f).TagForMilestone(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, tag)

	f.milestone.ProductVersion = nil
	_, err = newTestGateway(f).TagForMilestone(context.Background(), 5)
	assert.True(t, cerrors.IsSemantic(err))
}

func TestTagForMilestoneErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", &pncrest.RemoteError{Status: 404}, "haven't managed to find product milestone with id 5 - response 404"},
		{"server error", &pncrest.RemoteError{Status: 503}, "responded with an error when getting product milestone 5 - response 503"},
		{"transport", errors.New("dial tcp: refused"), "Unknown error - message = dial tcp: refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestGateway(&fakePNC{milestoneErr: tt.err}).TagForMilestone(context.Background(), 5)
			require.Error(t, err)
			assert.True(t, cerrors.IsCommunication(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuildArtifacts(t *testing.T) {
	size := int64(2048)
	jar := pncrest.Artifact{ID: "1", Identifier: "g:a:jar:1", DeployPath: "/g/a/1/a-1.jar", Size: &size, ArtifactQuality: "NEW"}
	pom := pncrest.Artifact{ID: "2", Identifier: "g:a:pom:1", DeployPath: "/g/a/1/a-1.pom"}
	dep := pncrest.Artifact{ID: "9", Identifier: "g:dep:jar:2", DeployPath: "g/dep/2/dep-2.jar"}
	f := &fakePNC{built: []pncrest.Artifact{jar, pom, jar}, deps: []pncrest.Artifact{dep}}

	arts, err := newTestGateway(f).BuildArtifacts(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, arts.Built, 2)
	require.Len(t, arts.Dependencies, 1)
	assert.Equal(t, "g/a/1/a-1.jar", arts.Built[0].DeployPath)
	assert.Equal(t, int64(2048), arts.Built[0].Size)
	assert.Equal(t, models.ArtifactQualityNew, arts.Built[0].Quality)
	assert.Equal(t, int64(1), arts.Built[1].Size)
	assert.Equal(t, "g/dep/2/dep-2.jar", arts.Dependencies[0].DeployPath)

	f.artifactErr = &pncrest.RemoteError{Status: 502}
	_, err = newTestGateway(f).BuildArtifacts(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, cerrors.IsCommunication(err))
	assert.Contains(t, err.Error(), "Can't get info for build with id 1 - response 502")
}
