// Package clone runs asynchronous repository clones.
//
// A clone request is registered as a Job in the CLONING state and returns
// immediately. The clone runs in the background with bounded concurrency, a
// timeout and retries for transient failures. A directory left by a failed
// attempt is removed, but a repository that appeared at the target by other
// means is never touched. When the job moves to COMPLETED or FAILED its
// outcome is persisted to a status record and a notification is published to
// the owner's connected channels.
package clone

import (
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/gitrepo-server/internal/git"
	"github.com/stacklok/gitrepo-server/internal/status"
)

const (
	// DefaultTimeout bounds a whole clone job including retries
	DefaultTimeout = 10 * time.Minute
	// DefaultMaxAttempts is the number of clone attempts per job
	DefaultMaxAttempts = 3
	// DefaultMaxConcurrent is the number of clones running at once
	DefaultMaxConcurrent = 4
	// DefaultRetention is how long finished jobs stay in memory
	DefaultRetention = time.Hour
)

// Config controls clone execution
type Config struct {
	// Timeout bounds a whole clone job including retries
	Timeout time.Duration

	// MaxAttempts is the number of clone attempts per job
	MaxAttempts int

	// MaxConcurrent is the number of clones running at once
	MaxConcurrent int

	// DefaultBranch is used when the remote is empty
	DefaultBranch string

	// Auth is used for HTTP(S) remotes that require credentials
	Auth *git.AuthConfig

	// Retention is how long finished jobs stay in memory
	Retention time.Duration

	// InitialRetryInterval is the first delay between attempts
	InitialRetryInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.InitialRetryInterval <= 0 {
		c.InitialRetryInterval = time.Second
	}
	return c
}

func (c Config) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialRetryInterval
	return b
}

// Job is the in-memory record of one clone
type Job struct {
	OwnerID    string            `json:"owner_id"`
	RepoName   string            `json:"repo_name"`
	URL        string            `json:"url,omitempty"`
	State      status.CloneState `json:"state"`
	Message    string            `json:"message,omitempty"`
	Attempts   int               `json:"attempts,omitempty"`
	StartedAt  time.Time         `json:"started_at,omitzero"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

func (j *Job) clone() *Job {
	c := *j
	if j.FinishedAt != nil {
		finished := *j.FinishedAt
		c.FinishedAt = &finished
	}
	return &c
}

func (j *Job) toStatus() *status.CloneStatus {
	return &status.CloneStatus{
		OwnerID:    j.OwnerID,
		RepoName:   j.RepoName,
		URL:        j.URL,
		State:      j.State,
		Message:    j.Message,
		Attempts:   j.Attempts,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}

func jobFromStatus(s *status.CloneStatus) *Job {
	return &Job{
		OwnerID:    s.OwnerID,
		RepoName:   s.RepoName,
		URL:        s.URL,
		State:      s.State,
		Message:    s.Message,
		Attempts:   s.Attempts,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}
