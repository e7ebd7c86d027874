package git

import (
	"errors"
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	// ErrRepositoryNotFound is returned when a directory is missing or is not a git repository
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrRepositoryExists is returned when a repository is created over an existing one
	ErrRepositoryExists = errors.New("repository already exists")

	// ErrEmptyRepository is returned when HEAD points to a branch that has no commits yet
	ErrEmptyRepository = errors.New("repository has no commits")

	// ErrBranchNotFound is returned when a named local branch does not exist
	ErrBranchNotFound = errors.New("branch not found")

	// ErrInvalidReference is returned for malformed branch or revision names
	ErrInvalidReference = errors.New("invalid reference name")

	// ErrInvalidCommitID is returned when a commit id is not a full hex object hash
	ErrInvalidCommitID = errors.New("invalid commit id")

	// ErrCommitNotFound is returned when a commit id does not exist in the object database
	ErrCommitNotFound = errors.New("commit not found")

	// ErrInvalidPagination is returned for non-positive page numbers or sizes
	ErrInvalidPagination = errors.New("page and page size must be positive")

	// ErrPageOutOfRange is returned when a page starts past the end of a non-empty history
	ErrPageOutOfRange = errors.New("page out of range")

	// ErrPathNotFound is returned when a tree or working tree path does not exist
	ErrPathNotFound = errors.New("path not found")

	// ErrNotADirectory is returned when a directory listing targets a blob
	ErrNotADirectory = errors.New("path is not a directory")

	// ErrNotAFile is returned when a file operation targets a directory
	ErrNotAFile = errors.New("path is not a file")

	// ErrInvalidPath is returned for absolute, traversing or reserved paths
	ErrInvalidPath = errors.New("invalid path")

	// ErrNonUTF8Content is returned when file content is not valid UTF-8 text
	ErrNonUTF8Content = errors.New("content is not valid UTF-8")

	// ErrTreeTooDeep is returned when a tree nests deeper than maxTreeDepth
	ErrTreeTooDeep = errors.New("tree nesting too deep")

	// ErrEmptyMessage is returned when a commit message is blank
	ErrEmptyMessage = errors.New("commit message is required")

	// ErrNothingToCommit is returned when staging produced no change
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrDetachedHead is returned when an operation needs an attached branch
	ErrDetachedHead = errors.New("HEAD is detached")

	// ErrRemoteNotFound is returned when the origin remote is not configured
	ErrRemoteNotFound = errors.New("remote not found")

	// ErrDivergentBranch is returned when the local branch is not an ancestor of the fetched one
	ErrDivergentBranch = errors.New("local branch has diverged from remote")
)

const (
	// DefaultRemoteName is the remote used by pull
	DefaultRemoteName = "origin"

	// BinaryPlaceholder replaces patch content that cannot be rendered as text
	BinaryPlaceholder = "[binary content]"

	shortIDLength = 7
)

// CommitInfo is the serialized view of a commit
type CommitInfo struct {
	ID          string    `json:"id"`
	ShortID     string    `json:"short_id"`
	Parents     []string  `json:"parents"`
	AuthorName  string    `json:"author"`
	AuthorEmail string    `json:"author_email"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"time"`
}

// CommitPage is one window of the reachable history
type CommitPage struct {
	Items      []CommitInfo `json:"items"`
	TotalCount int          `json:"total_count"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}

// ChangeStatus tags a changed path in a diff
type ChangeStatus string

const (
	// StatusAdded marks a path absent from the old tree
	StatusAdded ChangeStatus = "added"
	// StatusDeleted marks a path absent from the new tree
	StatusDeleted ChangeStatus = "deleted"
	// StatusModified marks a path whose content changed
	StatusModified ChangeStatus = "modified"
	// StatusRenamed marks a path detected as moved
	StatusRenamed ChangeStatus = "renamed"
	// StatusCopied marks a copied path. go-git's tree diff does not detect copies.
	StatusCopied ChangeStatus = "copied"
	// StatusChanged is the catch-all, used for mode-only changes
	StatusChanged ChangeStatus = "changed"
)

// FileChange is one changed path of a diff.
// Diff is nil until at least one patch line has been rendered for the path.
type FileChange struct {
	Path    string       `json:"path"`
	OldPath string       `json:"old_path,omitempty"`
	Status  ChangeStatus `json:"status"`
	Diff    *string      `json:"diff"`
}

// CommitDetail combines a commit with its changes against the first parent
type CommitDetail struct {
	Commit CommitInfo   `json:"commit_info"`
	Files  []FileChange `json:"file_changes"`
}

// FileEntry is one node of a tree listing
type FileEntry struct {
	Name     string       `json:"name"`
	Path     string       `json:"path"`
	IsDir    bool         `json:"is_dir"`
	Size     *int64       `json:"size,omitempty"`
	Children []*FileEntry `json:"children,omitempty"`
}

// FileContent is a text file read from a commit
type FileContent struct {
	Path    string `json:"path"`
	Commit  string `json:"commit"`
	Size    int64  `json:"size"`
	Content string `json:"content"`
}

// BranchInfo describes a local branch
type BranchInfo struct {
	Name    string `json:"name"`
	Commit  string `json:"commit"`
	Current bool   `json:"current"`
}

// TagInfo describes a tag and the commit it points to
type TagInfo struct {
	Name      string `json:"name"`
	Commit    string `json:"commit"`
	Annotated bool   `json:"annotated"`
}

// StatusEntry is the working tree state of one path
type StatusEntry struct {
	Path     string `json:"path"`
	Staging  string `json:"staging"`
	Worktree string `json:"worktree"`
}

// Signature identifies the author and committer of a new commit
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

func (s Signature) toObject() *object.Signature {
	when := s.When
	if when.IsZero() {
		when = time.Now()
	}
	return &object.Signature{Name: s.Name, Email: s.Email, When: when}
}

func newCommitInfo(c *object.Commit) CommitInfo {
	id := c.Hash.String()
	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}

	return CommitInfo{
		ID:          id,
		ShortID:     id[:shortIDLength],
		Parents:     parents,
		AuthorName:  c.Author.Name,
		AuthorEmail: c.Author.Email,
		Message:     c.Message,
		Timestamp:   c.Author.When,
	}
}
