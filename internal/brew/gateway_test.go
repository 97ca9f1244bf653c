package brew

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/narvanalabs/causeway/internal/errors"
	"github.com/narvanalabs/causeway/internal/integrations/koji"
	"github.com/narvanalabs/causeway/internal/models"
)

// fakeKoji is an in-memory KojiClient.
type fakeKoji struct {
	mu       sync.Mutex
	user     string
	builds   map[string]*koji.BuildInfo
	byID     map[int]*koji.BuildInfo
	tags     map[string]bool
	buildTag map[int][]string

	loginErr  error
	callErr   error
	logoutErr error
	importRes *koji.ImportResult

	logins   int
	logouts  int
	tagged   []string
	untagged []string
}

func newFakeKoji() *fakeKoji {
	return &fakeKoji{
		user:     "causeway-bot",
		builds:   map[string]*koji.BuildInfo{},
		byID:     map[int]*koji.BuildInfo{},
		tags:     map[string]bool{},
		buildTag: map[int][]string{},
	}
}

func (f *fakeKoji) addBuild(bi *koji.BuildInfo) {
	f.builds[bi.Name+"-"+bi.Version+"-"+bi.Release] = bi
	f.byID[bi.ID] = bi
}

func (f *fakeKoji) Login(ctx context.Context) (*koji.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.logins++
	return &koji.Session{ID: f.logins, Key: "key", User: &koji.UserInfo{Name: f.user}}, nil
}

func (f *fakeKoji) Logout(ctx context.Context, s *koji.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return f.logoutErr
}

func (f *fakeKoji) GetBuild(ctx context.Context, s *koji.Session, ref any) (*koji.BuildInfo, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	switch r := ref.(type) {
	case int:
		return f.byID[r], nil
	case string:
		return f.builds[r], nil
	}
	return nil, errors.New("bad ref")
}

func (f *fakeKoji) GetTag(ctx context.Context, s *koji.Session, tag string) (*koji.TagInfo, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	if !f.tags[tag] {
		return nil, nil
	}
	return &koji.TagInfo{Name: tag}, nil
}

func (f *fakeKoji) ListTags(ctx context.Context, s *koji.Session, buildID int) ([]*koji.TagInfo, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	var out []*koji.TagInfo
	for _, name := range f.buildTag[buildID] {
		out = append(out, &koji.TagInfo{Name: name})
	}
	return out, nil
}

func (f *fakeKoji) PackageListAdd(ctx context.Context, s *koji.Session, tag, pkg, owner string) error {
	return f.callErr
}

func (f *fakeKoji) TagBuild(ctx context.Context, s *koji.Session, tag, nvr string) error {
	if f.callErr != nil {
		return f.callErr
	}
	f.tagged = append(f.tagged, tag+"/"+nvr)
	return nil
}

func (f *fakeKoji) UntagBuild(ctx context.Context, s *koji.Session, tag, nvr string) error {
	if f.callErr != nil {
		return f.callErr
	}
	f.untagged = append(f.untagged, tag+"/"+nvr)
	return nil
}

func (f *fakeKoji) ImportBuild(ctx context.Context, s *koji.Session, metadata *koji.Import, files koji.FileSource) (*koji.ImportResult, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.importRes, nil
}

type noFiles struct{}

func (noFiles) Files() []koji.File        { return nil }
func (noFiles) ArtifactID(string) string { return "1" }

func newTestGateway(f *fakeKoji) *Gateway {
	return NewGateway(f, Config{WebURL: "https://brew.example.com/buildinfo?buildID="},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func genNVR() gopter.Gen {
	return gopter.CombineGens(
		gen.Identifier(),
		gen.RegexMatch(`[0-9]{1,2}\.[0-9]{1,2}\.[0-9]{1,2}`),
		gen.IntRange(1, 20),
	).Map(func(vals []interface{}) models.NVR {
		return models.NewNVR(vals[0].(string), vals[1].(string), strings.Repeat("1", vals[2].(int)))
	})
}

// **Feature: causeway, Property 1: Missing builds are not errors**
// For any NVR unknown to Koji, FindBuildByNVR returns no build and no error.
func TestFindBuildByNVRMissing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("unknown NVR yields nil build and nil error", prop.ForAll(
		func(nvr models.NVR) bool {
			f := newFakeKoji()
			g := newTestGateway(f)
			build, err := g.FindBuildByNVR(context.Background(), nvr)
			return err == nil && build == nil && f.logins == 1 && f.logouts == 1
		},
		genNVR(),
	))

	properties.TestingRun(t)
}

// **Feature: causeway, Property 2: Builds not imported from PNC conflict**
// For any build whose build_system extra is not PNC, both find operations
// fail with a semantic error naming the build id.
func TestFindBuildConflict(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("non PNC builds are semantic failures", prop.ForAll(
		func(nvr models.NVR, id int, system string) bool {
			f := newFakeKoji()
			f.addBuild(&koji.BuildInfo{
				ID: id, Name: nvr.Name, Version: nvr.Version, Release: nvr.Release,
				Extra: map[string]any{BuildSystemKey: system},
			})
			g := newTestGateway(f)

			_, errNVR := g.FindBuildByNVR(context.Background(), nvr)
			_, errID := g.FindBuildByID(context.Background(), id)
			for _, err := range []error{errNVR, errID} {
				if !cerrors.IsSemantic(err) {
					return false
				}
				if !strings.Contains(err.Error(), "Found conflicting brew build") {
					return false
				}
			}
			return f.logins == f.logouts
		},
		genNVR(),
		gen.IntRange(1, 1<<30),
		gen.AlphaString().SuchThat(func(s string) bool { return s != BuildSystemPNC }),
	))

	properties.TestingRun(t)
}

func TestFindBuildByID(t *testing.T) {
	f := newFakeKoji()
	f.addBuild(&koji.BuildInfo{
		ID: 12, Name: "org.foo-bar", Version: "1.0", Release: "1",
		Extra: map[string]any{BuildSystemKey: BuildSystemPNC},
	})
	g := newTestGateway(f)

	build, err := g.FindBuildByID(context.Background(), 12)
	require.NoError(t, err)
	require.NotNil(t, build)
	assert.Equal(t, 12, build.ID)
	assert.Equal(t, models.NewNVR("org.foo-bar", "1.0", "1"), build.NVR)

	build, err = g.FindBuildByID(context.Background(), 13)
	require.NoError(t, err)
	assert.Nil(t, build)
}

func TestFindBuildByNVRUsesKojiName(t *testing.T) {
	f := newFakeKoji()
	f.addBuild(&koji.BuildInfo{
		ID: 5, Name: "org.foo-bar", Version: "1.0", Release: "1",
		Extra: map[string]any{BuildSystemKey: BuildSystemPNC},
	})
	g := newTestGateway(f)

	build, err := g.FindBuildByNVR(context.Background(), models.NewNVR("org.foo:bar", "1.0", "1"))
	require.NoError(t, err)
	require.NotNil(t, build)
	assert.Equal(t, 5, build.ID)
}

// **Feature: causeway, Property 3: Policy violations name the tags**
// For any tag and session user, a policy violation while tagging is a
// semantic failure whose message names the user, the tag and the candidate
// tag.
func TestTagBuildPolicyViolation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("policy violation message names user and tags", prop.ForAll(
		func(user, tag string) bool {
			f := newFakeKoji()
			f.user = user
			f.callErr = &koji.Fault{Code: 1000, Message: "policy violation (tag)"}
			g := newTestGateway(f)

			err := g.TagBuild(context.Background(), tag, models.NewBrewBuild(1, models.NewNVR("a", "1", "1")))
			if !cerrors.IsSemantic(err) {
				return false
			}
			msg := err.Error()
			return strings.Contains(msg, "'"+user+"'") &&
				strings.Contains(msg, "'"+tag+"'") &&
				strings.Contains(msg, "'"+tag+BuildTagSuffix+"'") &&
				f.logouts == 1
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestTagBuildOtherFailureIsCommunication(t *testing.T) {
	f := newFakeKoji()
	f.callErr = errors.New("connection reset")
	g := newTestGateway(f)

	err := g.TagBuild(context.Background(), "foo", models.NewBrewBuild(1, models.NewNVR("a", "1", "1")))
	require.Error(t, err)
	assert.True(t, cerrors.IsCommunication(err))
	assert.True(t, strings.HasPrefix(err.Error(), "Failure while communicating with Koji: "))
	assert.Equal(t, 1, f.logouts)
}

func TestTagBuildTagsCandidate(t *testing.T) {
	f := newFakeKoji()
	g := newTestGateway(f)

	err := g.TagBuild(context.Background(), "foo", models.NewBrewBuild(1, models.NewNVR("g:a", "1", "2")))
	require.NoError(t, err)
	assert.Equal(t, []string{"foo-candidate/g-a-1-2"}, f.tagged)
}

// **Feature: causeway, Property 4: Tag membership is exact**
// For any tag and set of build tags, IsBuildTagged is true exactly when the
// candidate tag is one of them.
func TestIsBuildTagged(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("candidate tag membership", prop.ForAll(
		func(tag string, others []string, include bool) bool {
			f := newFakeKoji()
			names := append([]string(nil), others...)
			names = append(names, tag, tag+"-candidate-old", "x"+tag+BuildTagSuffix)
			if include {
				names = append(names, tag+BuildTagSuffix)
			}
			f.buildTag[7] = names
			g := newTestGateway(f)

			tagged, err := g.IsBuildTagged(context.Background(), tag, models.NewBrewBuild(7, models.NewNVR("a", "1", "1")))
			if err != nil {
				return false
			}
			want := include
			for _, o := range others {
				if o == tag+BuildTagSuffix {
					want = true
				}
			}
			return tagged == want
		},
		gen.Identifier(),
		gen.SliceOf(gen.Identifier()),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestIsBuildTaggedFailure(t *testing.T) {
	f := newFakeKoji()
	f.callErr = errors.New("timeout")
	g := newTestGateway(f)

	_, err := g.IsBuildTagged(context.Background(), "foo", models.NewBrewBuild(7, models.NewNVR("a", "1", "1")))
	require.Error(t, err)
	assert.True(t, cerrors.IsCommunication(err))
	assert.Contains(t, err.Error(), "Failure while getting tag information from build: ")
}

// **Feature: causeway, Property 5: Both tags must exist**
// For any tag, TagsExist is true only when the tag and its candidate tag
// both exist.
func TestTagsExist(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("both tags required", prop.ForAll(
		func(tag string, hasTag, hasCandidate bool) bool {
			f := newFakeKoji()
			f.tags[tag] = hasTag
			f.tags[tag+BuildTagSuffix] = hasCandidate
			g := newTestGateway(f)

			exists, err := g.TagsExist(context.Background(), tag)
			return err == nil && exists == (hasTag && hasCandidate)
		},
		gen.Identifier(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// **Feature: causeway, Property 7: Import outcome status**
// For any combination of upload errors and created build, the outcome is
// ERROR without a build, FAILED with upload errors and SUCCESSFUL otherwise.
func TestImportBuildOutcomeStatus(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("outcome status follows upload errors and build", prop.ForAll(
		func(uploadErrors int, hasBuild bool, id int) bool {
			res := &koji.ImportResult{UploadErrors: map[string]*koji.UploadError{}}
			for i := 0; i < uploadErrors; i++ {
				p := "org/foo/" + strings.Repeat("a", i+1) + ".jar"
				res.UploadErrors[p] = &koji.UploadError{Path: p, Message: "checksum mismatch"}
			}
			if hasBuild {
				res.BuildInfo = &koji.BuildInfo{ID: id}
			}
			f := newFakeKoji()
			f.importRes = res
			g := newTestGateway(f)

			out, err := g.ImportBuildOutcome(context.Background(), models.NewNVR("a", "1", "1"), "100", &koji.Import{}, noFiles{})
			if err != nil || out.BuildRecordID != "100" {
				return false
			}
			switch {
			case !hasBuild:
				return out.Status == models.ImportStatusError &&
					out.ErrorMessage == "Import to koji failed" &&
					out.BrewBuildID == 0 && out.BrewBuildURL == ""
			case uploadErrors > 0:
				return out.Status == models.ImportStatusFailed &&
					out.BrewBuildID == id && out.BrewBuildURL == g.BuildURL(id)
			default:
				return out.Status == models.ImportStatusSuccessful &&
					out.BrewBuildID == id && out.BrewBuildURL == g.BuildURL(id)
			}
		},
		gen.IntRange(0, 3),
		gen.Bool(),
		gen.IntRange(1, 1<<30),
	))

	properties.TestingRun(t)
}

func TestImportBuildOutcomeCallFailure(t *testing.T) {
	f := newFakeKoji()
	f.callErr = errors.New("broken pipe")
	g := newTestGateway(f)

	_, err := g.ImportBuildOutcome(context.Background(), models.NewNVR("a", "1", "1"), "100", &koji.Import{}, noFiles{})
	require.Error(t, err)
	assert.True(t, cerrors.IsCommunication(err))
	assert.Equal(t, 1, f.logouts)
}

func TestImportBuildStrict(t *testing.T) {
	nvr := models.NewNVR("a", "1", "1")

	t.Run("success", func(t *testing.T) {
		f := newFakeKoji()
		f.importRes = &koji.ImportResult{BuildInfo: &koji.BuildInfo{ID: 3}}
		build, err := newTestGateway(f).ImportBuild(context.Background(), nvr, &koji.Import{}, noFiles{})
		require.NoError(t, err)
		assert.Equal(t, 3, build.ID)
		assert.Equal(t, nvr, build.NVR)
	})

	t.Run("upload errors", func(t *testing.T) {
		f := newFakeKoji()
		f.importRes = &koji.ImportResult{
			BuildInfo:    &koji.BuildInfo{ID: 3},
			UploadErrors: map[string]*koji.UploadError{"a.jar": {Path: "a.jar", Message: "bad"}},
		}
		_, err := newTestGateway(f).ImportBuild(context.Background(), nvr, &koji.Import{}, noFiles{})
		require.Error(t, err)
		assert.True(t, cerrors.IsSemantic(err))
		assert.Equal(t, "Failure while importing artifacts", err.Error())
	})

	t.Run("no build", func(t *testing.T) {
		f := newFakeKoji()
		f.importRes = &koji.ImportResult{}
		_, err := newTestGateway(f).ImportBuild(context.Background(), nvr, &koji.Import{}, noFiles{})
		assert.True(t, cerrors.IsSemantic(err))
	})

	t.Run("call failure", func(t *testing.T) {
		f := newFakeKoji()
		f.callErr = errors.New("eof")
		_, err := newTestGateway(f).ImportBuild(context.Background(), nvr, &koji.Import{}, noFiles{})
		require.Error(t, err)
		assert.True(t, cerrors.IsCommunication(err))
		assert.True(t, strings.HasPrefix(err.Error(), "Failure while importing builds to Koji: "))
	})
}

func TestLoginFailure(t *testing.T) {
	f := newFakeKoji()
	f.loginErr = errors.New("certificate expired")
	g := newTestGateway(f)

	_, err := g.FindBuildByNVR(context.Background(), models.NewNVR("a", "1", "1"))
	require.Error(t, err)
	assert.True(t, cerrors.IsCommunication(err))
	assert.Equal(t, "Failure while logging in to Koji: certificate expired", err.Error())
	assert.Zero(t, f.logouts)
}

func TestSessionReleasedOnFailure(t *testing.T) {
	f := newFakeKoji()
	f.callErr = errors.New("boom")
	f.logoutErr = errors.New("logout failed")
	g := newTestGateway(f)

	err := g.UntagBuild(context.Background(), "foo", models.NewNVR("a", "1", "1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, f.logouts)
}

func TestLogoutFailureReportedOnSuccess(t *testing.T) {
	f := newFakeKoji()
	f.logoutErr = errors.New("logout failed")
	g := newTestGateway(f)

	err := g.UntagBuild(context.Background(), "foo", models.NewNVR("a", "1", "1"))
	require.Error(t, err)
	assert.True(t, cerrors.IsCommunication(err))
	assert.Contains(t, err.Error(), "logout failed")
}

// **Feature: causeway, Property 24: Untagging targets the candidate tag**
// For any tag and NVR, UntagBuild removes the Koji name NVR from the
// candidate tag and releases its session.
func TestUntagBuildCandidateTag(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("candidate tag and koji name", prop.ForAll(
		func(tag, group string, nvr models.NVR) bool {
			f := newFakeKoji()
			g := newTestGateway(f)
			want := tag + BuildTagSuffix + "/" + group + "-" + nvr.Name + "-" + nvr.Version + "-" + nvr.Release
			nvr.Name = group + ":" + nvr.Name

			if err := g.UntagBuild(context.Background(), tag, nvr); err != nil {
				return false
			}
			return len(f.untagged) == 1 && f.untagged[0] == want &&
				!strings.Contains(f.untagged[0], ":") &&
				f.logins == 1 && f.logouts == 1
		},
		gen.Identifier(),
		gen.Identifier(),
		genNVR(),
	))

	properties.TestingRun(t)
}

func TestUntagBuild(t *testing.T) {
	nvr := models.NewNVR("org.foo:bar", "1.0", "1")

	t.Run("success", func(t *testing.T) {
		f := newFakeKoji()
		err := newTestGateway(f).UntagBuild(context.Background(), "foo", nvr)
		require.NoError(t, err)
		assert.Equal(t, []string{"foo-candidate/org.foo-bar-1.0-1"}, f.untagged)
		assert.Equal(t, 1, f.logins)
		assert.Equal(t, 1, f.logouts)
	})

	t.Run("remote failure", func(t *testing.T) {
		f := newFakeKoji()
		f.callErr = errors.New("connection refused")
		err := newTestGateway(f).UntagBuild(context.Background(), "foo", nvr)
		require.Error(t, err)

		var ce *cerrors.Error
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, cerrors.KindCommunication, ce.Kind)
		assert.Equal(t, "Failure while communicating with Koji: connection refused", err.Error())
		assert.Empty(t, f.untagged)
		assert.Equal(t, 1, f.logins)
		assert.Equal(t, 1, f.logouts)
	})
}

// **Feature: causeway, Property 25: Import outcomes survive logout failures**
// For any created build, a failing logout after the import call neither
// fails ImportBuildOutcome nor ImportBuild and keeps the Brew build id.
func TestImportKeepsOutcomeOnLogoutFailure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("logout failure is not an import failure", prop.ForAll(
		func(id int, nvr models.NVR) bool {
			f := newFakeKoji()
			f.logoutErr = errors.New("logout failed")
			f.importRes = &koji.ImportResult{BuildInfo: &koji.BuildInfo{ID: id}}
			g := newTestGateway(f)

			out, err := g.ImportBuildOutcome(context.Background(), nvr, "100", &koji.Import{}, noFiles{})
			if err != nil || out.Status != models.ImportStatusSuccessful ||
				out.BrewBuildID != id || out.BrewBuildURL != g.BuildURL(id) {
				return false
			}
			build, err := g.ImportBuild(context.Background(), nvr, &koji.Import{}, noFiles{})
			if err != nil || build.ID != id {
				return false
			}
			return f.logins == 2 && f.logouts == 2
		},
		gen.IntRange(1, 1<<30),
		genNVR(),
	))

	properties.TestingRun(t)
}

func TestBuildURL(t *testing.T) {
	g := newTestGateway(newFakeKoji())
	assert.Equal(t, "https://brew.example.com/buildinfo?buildID=42", g.BuildURL(42))
}
