package status

import "time"

// CloneState is the lifecycle state of a clone job
type CloneState string

const (
	// CloneStateNotStarted means no clone is known for the repository
	CloneStateNotStarted CloneState = "NOT_STARTED"

	// CloneStateCloning means a clone is in progress
	CloneStateCloning CloneState = "CLONING"

	// CloneStateCompleted means the repository was cloned successfully
	CloneStateCompleted CloneState = "COMPLETED"

	// CloneStateFailed means the clone failed and its directory was removed
	CloneStateFailed CloneState = "FAILED"
)

// IsTerminal reports whether no further transition is expected
func (s CloneState) IsTerminal() bool {
	return s == CloneStateCompleted || s == CloneStateFailed
}

// CloneStatus is the persisted record of a clone job. It is a hint for
// status queries after a restart; the repository directory stays authoritative.
type CloneStatus struct {
	// OwnerID is the owner namespace of the repository
	OwnerID string `json:"ownerId"`

	// RepoName is the repository directory name
	RepoName string `json:"repoName"`

	// URL is the remote the repository was cloned from
	URL string `json:"url"`

	// State is the job state when the record was written
	State CloneState `json:"state"`

	// Message carries the failure reason of a failed job
	Message string `json:"message,omitempty"`

	// Attempts is the number of clone attempts made
	Attempts int `json:"attempts,omitempty"`

	// StartedAt is when the job was accepted
	StartedAt time.Time `json:"startedAt"`

	// FinishedAt is when the job reached a terminal state
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}
