package models

import "time"

// PNC build attribute keys read by causeway.
const (
	AttributeBrewTagPrefix    = "BREW_TAG_PREFIX"
	AttributeBrewBuildName    = "BREW_BUILD_NAME"
	AttributeBrewBuildVersion = "BREW_BUILD_VERSION"
)

// PNCBuildStatus is the status PNC reports for a build.
type PNCBuildStatus string

const (
	PNCBuildStatusSuccess PNCBuildStatus = "SUCCESS"
	PNCBuildStatusFailed  PNCBuildStatus = "FAILED"
)

// PNCBuild is a completed build record in PNC.
type PNCBuild struct {
	ID              string            `json:"id"`
	Status          PNCBuildStatus    `json:"status"`
	BuildConfigName string            `json:"build_config_name"`
	ScmURL          string            `json:"scm_url"`
	ScmRevision     string            `json:"scm_revision"`
	ScmTag          string            `json:"scm_tag,omitempty"`
	Username        string            `json:"username"`
	BuildType       string            `json:"build_type"`
	SystemImage     string            `json:"system_image,omitempty"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
}
