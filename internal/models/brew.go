package models

// BrewBuild is a build known to Brew.
type BrewBuild struct {
	ID  int `json:"id"`
	NVR NVR `json:"nvr"`
}

// NewBrewBuild creates a BrewBuild.
func NewBrewBuild(id int, nvr NVR) *BrewBuild {
	return &BrewBuild{ID: id, NVR: nvr}
}

// ImportStatus is the outcome of importing one PNC build into Brew.
type ImportStatus string

const (
	ImportStatusSuccessful ImportStatus = "SUCCESSFUL"
	ImportStatusFailed     ImportStatus = "FAILED"
	ImportStatusError      ImportStatus = "ERROR"
)

// ImportResult reports the outcome of a single build import.
type ImportResult struct {
	BuildRecordID string       `json:"build_record_id"`
	BrewBuildID   int          `json:"brew_build_id,omitempty"`
	BrewBuildURL  string       `json:"brew_build_url,omitempty"`
	Status        ImportStatus `json:"status"`
	ErrorMessage  string       `json:"error_message,omitempty"`
}
