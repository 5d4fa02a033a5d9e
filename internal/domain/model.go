package domain

import "time"

type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusFailed  OutcomeStatus = "failed"
)

type BackupAction string

const (
	ActionClone        BackupAction = "clone"
	ActionShallowClone BackupAction = "shallow-clone"
	ActionUpdate       BackupAction = "update"
)

// RepoDescriptor is one starred repository as delivered by the API.
// Name is the repository's owner/name.
type RepoDescriptor struct {
	Name     string `json:"name"`
	CloneURL string `json:"clone_url"`
	SizeKB   int64  `json:"size_kb"`
}

type BackupOutcome struct {
	Name     string
	Status   OutcomeStatus
	Action   BackupAction
	Error    string
	Attempts int
}

type FailedRepo struct {
	Name     string `json:"name"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts,omitempty"`
}

// RunReport is the snapshot persisted at the end of a run. It replaces any
// earlier report; there is no history.
type RunReport struct {
	Timestamp    time.Time    `json:"timestamp"`
	Succeeded    []string     `json:"succeeded"`
	Failed       []FailedRepo `json:"failed"`
	Total        int          `json:"total"`
	SuccessCount int          `json:"success_count"`
	FailureCount int          `json:"failure_count"`
}

// NewRunReport folds outcomes into a report, keeping their order.
func NewRunReport(ts time.Time, outcomes []BackupOutcome) RunReport {
	r := RunReport{
		Timestamp: ts.UTC(),
		Succeeded: make([]string, 0, len(outcomes)),
		Failed:    make([]FailedRepo, 0),
		Total:     len(outcomes),
	}

	for _, o := range outcomes {
		if o.Status == StatusSuccess {
			r.Succeeded = append(r.Succeeded, o.Name)
			continue
		}
		r.Failed = append(r.Failed, FailedRepo{Name: o.Name, Error: o.Error, Attempts: o.Attempts})
	}

	r.SuccessCount = len(r.Succeeded)
	r.FailureCount = len(r.Failed)
	return r
}

// Target selects whose stars, and which list, a pass backs up.
// An empty List means every starred repository.
type Target struct {
	Username string
	List     string
}

// ReportFileName is the snapshot file kept at the backup root.
const ReportFileName = "backup_metadata.json"
