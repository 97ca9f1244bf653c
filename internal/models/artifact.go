package models

import "strings"

// ArtifactQuality is the quality level PNC assigns to an artifact.
type ArtifactQuality string

const (
	ArtifactQualityNew         ArtifactQuality = "NEW"
	ArtifactQualityVerified    ArtifactQuality = "VERIFIED"
	ArtifactQualityTested      ArtifactQuality = "TESTED"
	ArtifactQualityDeprecated  ArtifactQuality = "DEPRECATED"
	ArtifactQualityBlacklisted ArtifactQuality = "BLACKLISTED"
	ArtifactQualityDeleted     ArtifactQuality = "DELETED"
	ArtifactQualityTemporary   ArtifactQuality = "TEMPORARY"
)

// unknownArtifactSize is used when PNC does not know the size of an artifact.
const unknownArtifactSize = 1

// Artifact is a file produced or consumed by a PNC build.
type Artifact struct {
	ID         string          `json:"id"`
	Identifier string          `json:"identifier"`
	DeployPath string          `json:"deploy_path"`
	MD5        string          `json:"md5"`
	DeployURL  string          `json:"deploy_url"`
	Size       int64           `json:"size"`
	Quality    ArtifactQuality `json:"quality"`
}

// NewArtifact builds an Artifact from the values PNC reports. A single
// leading separator is dropped from the deploy path and a missing size
// becomes 1.
func NewArtifact(id, identifier, deployPath, md5, deployURL string, size *int64, quality ArtifactQuality) Artifact {
	a := Artifact{
		ID:         id,
		Identifier: identifier,
		DeployPath: strings.TrimPrefix(deployPath, "/"),
		MD5:        md5,
		DeployURL:  deployURL,
		Size:       unknownArtifactSize,
		Quality:    quality,
	}
	if size != nil {
		a.Size = *size
	}
	return a
}

// BuildArtifacts holds the artifacts a build produced and the ones it
// depended on. Each slice contains an artifact at most once.
type BuildArtifacts struct {
	Built        []Artifact `json:"built"`
	Dependencies []Artifact `json:"dependencies"`
}
