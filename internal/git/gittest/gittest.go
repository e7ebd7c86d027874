// Package gittest builds real on-disk repositories for tests.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DefaultBranch is the branch test repositories are initialized with
const DefaultBranch = "main"

// BaseTime is the author time of the first commit made without an explicit author.
// Later commits are one minute apart.
var BaseTime = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

// CommitConfig describes one commit of a test repository
type CommitConfig struct {
	Files   map[string]string // Map of filename to content
	Delete  []string          // Files removed in this commit
	Message string            // Uses "Commit N" if empty
	Author  *object.Signature // Uses a default author at a deterministic time if nil
}

// InitRepo creates an empty repository on the main branch in a temporary directory
func InitRepo(t *testing.T) string {
	t.Helper()

	repoDir := filepath.Join(t.TempDir(), "repo")
	_, err := git.PlainInitWithOptions(repoDir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(DefaultBranch)},
	})
	if err != nil {
		t.Fatalf("Failed to init repository: %v", err)
	}
	return repoDir
}

// CreateTestRepo creates a repository with a single commit holding files
func CreateTestRepo(t *testing.T, files map[string]string) string {
	t.Helper()

	repoDir, _ := CreateTestRepoWithCommits(t, []CommitConfig{{Files: files, Message: "Initial commit"}})
	return repoDir
}

// CreateTestRepoWithCommits creates a repository with a linear history.
// Returns the repository path and the commit hashes in creation order.
func CreateTestRepoWithCommits(t *testing.T, commits []CommitConfig) (string, []plumbing.Hash) {
	t.Helper()

	repoDir := InitRepo(t)
	hashes := make([]plumbing.Hash, 0, len(commits))
	for _, c := range commits {
		hashes = append(hashes, AddCommit(t, repoDir, c))
	}
	return repoDir, hashes
}

// AddCommit writes and removes files in the working tree of repoDir and
// commits them on the current branch.
func AddCommit(t *testing.T, repoDir string, config CommitConfig) plumbing.Hash {
	t.Helper()

	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}
	workTree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to get worktree: %v", err)
	}

	// Sorted so repeated runs stage in the same order
	names := make([]string, 0, len(config.Files))
	for name := range config.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, filename := range names {
		filePath := filepath.Join(repoDir, filename)
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", filename, err)
		}
		if err := os.WriteFile(filePath, []byte(config.Files[filename]), 0644); err != nil {
			t.Fatalf("Failed to write file %s: %v", filename, err)
		}
		if _, err := workTree.Add(filename); err != nil {
			t.Fatalf("Failed to add file %s: %v", filename, err)
		}
	}

	for _, filename := range config.Delete {
		if _, err := workTree.Remove(filename); err != nil {
			t.Fatalf("Failed to remove file %s: %v", filename, err)
		}
	}

	count := commitCount(t, repo)
	author := config.Author
	if author == nil {
		author = &object.Signature{
			Name:  "Test Author",
			Email: "test@example.com",
			When:  BaseTime.Add(time.Duration(count) * time.Minute),
		}
	}
	message := config.Message
	if message == "" {
		message = "Commit " + string(rune('A'+count%26))
	}

	hash, err := workTree.Commit(message, &git.CommitOptions{
		Author:    author,
		Committer: author,
	})
	if err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	return hash
}

// CreateBranch points a new branch at the current HEAD and checks it out
func CreateBranch(t *testing.T, repoDir, branch string) {
	t.Helper()

	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}
	workTree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to get worktree: %v", err)
	}
	err = workTree.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: true,
	})
	if err != nil {
		t.Fatalf("Failed to create and checkout branch %s: %v", branch, err)
	}
}

// Head returns the commit HEAD of repoDir points to
func Head(t *testing.T, repoDir string) plumbing.Hash {
	t.Helper()

	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}
	ref, err := repo.Head()
	if err != nil {
		t.Fatalf("Failed to resolve HEAD: %v", err)
	}
	return ref.Hash()
}

// RequireGitBinary skips the test when the git executable is missing.
// Local path remotes are served by git-upload-pack.
func RequireGitBinary(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not available")
	}
}

func commitCount(t *testing.T, repo *git.Repository) int {
	t.Helper()

	head, err := repo.Head()
	if err != nil {
		return 0
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		t.Fatalf("Failed to walk history: %v", err)
	}
	defer iter.Close()

	count := 0
	_ = iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	})
	return count
}
