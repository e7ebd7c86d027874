// Package service provides the business logic of the repository API
package service

import (
	"context"

	"github.com/stacklok/gitrepo-server/internal/clone"
	"github.com/stacklok/gitrepo-server/internal/git"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go RepositoryService

// RepositoryService defines the interface for repository operations. Every
// operation is scoped to the owner namespace of the caller.
type RepositoryService interface {
	// CheckReadiness checks if the service is ready to serve requests
	CheckReadiness(ctx context.Context) error

	// ListRepositories returns the repositories of an owner with their current branch
	ListRepositories(ctx context.Context, ownerID string) ([]RepositorySummary, error)

	// InitRepository creates an empty repository
	InitRepository(ctx context.Context, ownerID string, req InitRequest) (*RepositorySummary, error)

	// CloneRepository starts a background clone and returns the registered job
	CloneRepository(ctx context.Context, ownerID string, req CloneRequest) (*clone.Job, error)

	// GetCloneStatus returns the clone state of a repository
	GetCloneStatus(ctx context.Context, ownerID, repoName string) (*clone.Job, error)

	// DeleteRepository removes a repository. Deleting a missing repository succeeds.
	DeleteRepository(ctx context.Context, ownerID, repoName string) error

	// RenameRepository moves a repository to a new name within the owner namespace
	RenameRepository(ctx context.Context, ownerID, oldName, newName string) error

	// ListCommits returns one page of the history of a branch
	ListCommits(ctx context.Context, ownerID, repoName string, opts ListCommitsOptions) (*git.CommitPage, error)

	// CountCommits returns the number of commits reachable from a branch
	CountCommits(ctx context.Context, ownerID, repoName, branch string) (int, error)

	// GetCommit returns a commit and its changes against the first parent
	GetCommit(ctx context.Context, ownerID, repoName, commitID string) (*git.CommitDetail, error)

	// Compare returns the changes between two revisions
	Compare(ctx context.Context, ownerID, repoName, from, to string) ([]git.FileChange, error)

	// CreateCommit stages and commits working tree changes
	CreateCommit(ctx context.Context, ownerID, repoName string, req CommitRequest) (*CommitResult, error)

	// GetTree lists the file tree of a revision
	GetTree(ctx context.Context, ownerID, repoName string, opts TreeOptions) ([]*git.FileEntry, error)

	// GetFile returns the content of a text file at a revision
	GetFile(ctx context.Context, ownerID, repoName, revision, filePath string) (*git.FileContent, error)

	// UpdateFile writes one file and commits it
	UpdateFile(ctx context.Context, ownerID, repoName string, req UpdateFileRequest) (*CommitResult, error)

	// Pull fetches a branch from origin and moves the local branch to it
	Pull(ctx context.Context, ownerID, repoName, branch string) (*git.PullResult, error)

	// ListBranches returns the local branches
	ListBranches(ctx context.Context, ownerID, repoName string) ([]git.BranchInfo, error)

	// ListTags returns the tags, newest version first
	ListTags(ctx context.Context, ownerID, repoName string) ([]git.TagInfo, error)

	// GetWorktreeStatus returns the working tree status
	GetWorktreeStatus(ctx context.Context, ownerID, repoName string) ([]git.StatusEntry, error)
}

// RepositorySummary is one entry of a repository listing
type RepositorySummary struct {
	Name string `json:"name"`
	// Branch is the checked out branch, empty when HEAD is detached or the
	// directory is not a readable repository
	Branch string `json:"branch"`
	// Cloning is set while a clone into the directory is running
	Cloning bool `json:"cloning,omitempty"`
}

// InitRequest creates an empty repository
type InitRequest struct {
	Name          string `json:"name"`
	DefaultBranch string `json:"defaultBranch,omitempty"`
}

// CloneRequest starts a clone
type CloneRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// ListCommitsOptions selects a page of history. Zero values take the
// configured defaults.
type ListCommitsOptions struct {
	Branch   string
	Page     int
	PageSize int
}

// TreeOptions selects a tree listing. A zero Depth expands the whole tree.
type TreeOptions struct {
	Revision string
	Path     string
	Depth    int
}

// Author identifies the caller in new commits
type Author struct {
	Name  string
	Email string
}

// CommitRequest commits explicit paths or every change
type CommitRequest struct {
	Message string   `json:"message"`
	Paths   []string `json:"paths,omitempty"`
	All     bool     `json:"all,omitempty"`
	Author  Author   `json:"-"`
}

// UpdateFileRequest writes one file and commits it
type UpdateFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Message string `json:"message"`
	Author  Author `json:"-"`
}

// CommitResult identifies a new commit
type CommitResult struct {
	ID      string `json:"id"`
	ShortID string `json:"short_id"`
}
