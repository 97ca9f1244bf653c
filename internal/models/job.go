package models

import "time"

// ImportJobStatus represents the state of a milestone import job.
type ImportJobStatus string

const (
	ImportJobStatusRunning ImportJobStatus = "running"
	ImportJobStatusDone    ImportJobStatus = "done"
	ImportJobStatusFailed  ImportJobStatus = "failed"
	ImportJobStatusError   ImportJobStatus = "error"
)

// ImportJob tracks the import of every successful build of a milestone.
type ImportJob struct {
	ID          string          `json:"id"`
	MilestoneID int             `json:"milestone_id"`
	Tag         string          `json:"tag,omitempty"`
	Status      ImportJobStatus `json:"status"`
	BuildIDs    []string        `json:"build_ids,omitempty"`
	Error       string          `json:"error,omitempty"`
	Results     []*ImportResult `json:"results,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

// StatusFor returns the job status implied by a set of build results.
func StatusFor(results []*ImportResult) ImportJobStatus {
	for _, r := range results {
		if r.Status != ImportStatusSuccessful {
			return ImportJobStatusFailed
		}
	}
	return ImportJobStatusDone
}
