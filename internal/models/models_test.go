package models

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// **Feature: causeway, Property 23: NVR strings are Koji safe**
// For any name, version and release, the rendered NVR never contains ':'
// and always ends with "-version-release".
func TestNVRString(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genPart := gen.RegexMatch(`[a-z0-9.:]{1,12}`)

	properties.Property("koji safe nvr", prop.ForAll(
		func(name, version, release string) bool {
			version = strings.ReplaceAll(version, ":", ".")
			release = strings.ReplaceAll(release, ":", ".")
			s := NewNVR(name, version, release).String()
			return !strings.Contains(s, ":") &&
				strings.HasSuffix(s, "-"+version+"-"+release)
		},
		genPart, genPart, genPart,
	))

	properties.TestingRun(t)
}

func TestNVR(t *testing.T) {
	nvr := NewNVR("org.foo:bar", "1.2.3", "1")
	assert.Equal(t, "org.foo-bar", nvr.KojiName())
	assert.Equal(t, "org.foo-bar-1.2.3-1", nvr.String())
	assert.NoError(t, nvr.Validate())

	assert.Error(t, NewNVR("", "1", "1").Validate())
	assert.Error(t, NewNVR("a", "", "1").Validate())
	assert.Error(t, NewNVR("a", "1", "").Validate())
}

func TestNewArtifact(t *testing.T) {
	size := int64(42)
	a := NewArtifact("1", "g:a:jar:1", "/g/a/1/a-1.jar", "abc", "http://x", &size, ArtifactQualityVerified)
	assert.Equal(t, "g/a/1/a-1.jar", a.DeployPath)
	assert.Equal(t, int64(42), a.Size)

	b := NewArtifact("2", "f", "f.zip", "", "", nil, ArtifactQualityNew)
	assert.Equal(t, int64(1), b.Size)
	assert.Equal(t, "f.zip", b.DeployPath)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, ImportJobStatusDone, StatusFor(nil))
	assert.Equal(t, ImportJobStatusDone, StatusFor([]*ImportResult{
		{Status: ImportStatusSuccessful},
	}))
	assert.Equal(t, ImportJobStatusFailed, StatusFor([]*ImportResult{
		{Status: ImportStatusSuccessful},
		{Status: ImportStatusFailed},
	}))
}
