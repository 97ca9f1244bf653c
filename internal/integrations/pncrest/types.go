package pncrest

import "time"

// Page is one page of a PNC collection response.
type Page[T any] struct {
	PageIndex  int `json:"pageIndex"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
	TotalHits  int `json:"totalHits"`
	Content    []T `json:"content"`
}

// ProductVersion is the product version a milestone belongs to.
type ProductVersion struct {
	ID         string            `json:"id"`
	Version    string            `json:"version"`
	Attributes map[string]string `json:"attributes"`
}

// ProductMilestone is a PNC product milestone.
type ProductMilestone struct {
	ID             string          `json:"id"`
	Version        string          `json:"version"`
	ProductVersion *ProductVersion `json:"productVersion"`
}

// User is a PNC user reference.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// BuildConfigurationRevision is the build configuration a build ran with.
type BuildConfigurationRevision struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BuildType string `json:"buildType"`
}

// Environment is the build environment.
type Environment struct {
	ID            string `json:"id"`
	SystemImageID string `json:"systemImageId"`
}

// Build is a PNC build record.
type Build struct {
	ID                  string                      `json:"id"`
	Status              string                      `json:"status"`
	ScmURL              string                      `json:"scmUrl"`
	ScmRevision         string                      `json:"scmRevision"`
	ScmTag              string                      `json:"scmTag"`
	StartTime           *time.Time                  `json:"startTime"`
	EndTime             *time.Time                  `json:"endTime"`
	User                *User                       `json:"user"`
	BuildConfigRevision *BuildConfigurationRevision `json:"buildConfigRevision"`
	Environment         *Environment                `json:"environment"`
	Attributes          map[string]string           `json:"attributes"`
}

// Artifact is a PNC artifact.
type Artifact struct {
	ID              string `json:"id"`
	Identifier      string `json:"identifier"`
	ArtifactQuality string `json:"artifactQuality"`
	MD5             string `json:"md5"`
	SHA256          string `json:"sha256"`
	Filename        string `json:"filename"`
	DeployPath      string `json:"deployPath"`
	DeployURL       string `json:"deployUrl"`
	Size            *int64 `json:"size"`
}
