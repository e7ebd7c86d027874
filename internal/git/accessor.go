package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/stacklok/gitrepo-server/internal/versions"
)

// Repository is an opened on-disk repository
type Repository struct {
	repo *git.Repository
	path string
}

// Open opens the repository stored at path
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("failed to open repository %s: %w", filepath.Base(path), err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// IsRepository reports whether path holds an openable repository
func IsRepository(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}

// Path returns the working tree directory
func (r *Repository) Path() string {
	return r.path
}

// ResolveReference resolves a local branch, or HEAD when branch is empty.
// An unborn HEAD yields ErrEmptyRepository.
func (r *Repository) ResolveReference(branch string) (plumbing.Hash, error) {
	if branch != "" {
		name := plumbing.NewBranchReferenceName(branch)
		if err := name.Validate(); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrInvalidReference, branch)
		}

		ref, err := r.repo.Reference(name, true)
		if err != nil {
			if errors.Is(err, plumbing.ErrReferenceNotFound) {
				return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrBranchNotFound, branch)
			}
			return plumbing.ZeroHash, fmt.Errorf("failed to resolve branch %s: %w", branch, err)
		}
		return ref.Hash(), nil
	}

	ref, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, ErrEmptyRepository
		}
		return plumbing.ZeroHash, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	return ref.Hash(), nil
}

// ResolveRevision resolves a full commit id, a local branch, or HEAD when rev is empty
func (r *Repository) ResolveRevision(rev string) (plumbing.Hash, error) {
	if plumbing.IsHash(rev) {
		c, err := r.lookupCommit(plumbing.NewHash(rev))
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return c.Hash, nil
	}
	return r.ResolveReference(rev)
}

// HeadCommit returns the commit HEAD points to, or nil when HEAD is unborn
func (r *Repository) HeadCommit() (*object.Commit, error) {
	hash, err := r.ResolveReference("")
	if err != nil {
		if errors.Is(err, ErrEmptyRepository) {
			return nil, nil
		}
		return nil, err
	}

	return r.lookupCommit(hash)
}

// CommitObject looks up a commit by its full hex id
func (r *Repository) CommitObject(id string) (*object.Commit, error) {
	if !plumbing.IsHash(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommitID, id)
	}
	return r.lookupCommit(plumbing.NewHash(id))
}

func (r *Repository) lookupCommit(hash plumbing.Hash) (*object.Commit, error) {
	c, err := r.repo.CommitObject(hash)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCommitNotFound, hash)
		}
		return nil, fmt.Errorf("failed to read commit %s: %w", hash, err)
	}
	return c, nil
}

// CurrentBranch returns the branch HEAD is attached to, the unborn branch name
// of an empty repository, or "detached@<short id>".
func (r *Repository) CurrentBranch() (string, error) {
	head, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}

	if head.Type() == plumbing.SymbolicReference {
		return head.Target().Short(), nil
	}

	id := head.Hash().String()
	return "detached@" + id[:shortIDLength], nil
}

// Branches lists local branches sorted by name
func (r *Repository) Branches() ([]BranchInfo, error) {
	current := ""
	if head, err := r.repo.Reference(plumbing.HEAD, false); err == nil && head.Type() == plumbing.SymbolicReference {
		current = head.Target().Short()
	}

	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer iter.Close()

	branches := []BranchInfo{}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		branches = append(branches, BranchInfo{
			Name:    name,
			Commit:  ref.Hash().String(),
			Current: name == current,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate branches: %w", err)
	}

	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

// Tags lists tags newest first. Semantic versions are compared as such and
// other names fall back to string order.
func (r *Repository) Tags() ([]TagInfo, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer iter.Close()

	tags := []TagInfo{}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		info := TagInfo{Name: ref.Name().Short(), Commit: ref.Hash().String()}

		tag, err := r.repo.TagObject(ref.Hash())
		switch {
		case err == nil:
			info.Annotated = true
			info.Commit = tag.Target.String()
		case errors.Is(err, plumbing.ErrObjectNotFound):
			// lightweight tag
		default:
			return fmt.Errorf("failed to read tag %s: %w", info.Name, err)
		}

		tags = append(tags, info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}

	slices.SortStableFunc(tags, func(a, b TagInfo) int {
		return versions.Compare(b.Name, a.Name)
	})
	return tags, nil
}

// WorktreeStatus lists paths whose index or working tree state differs from HEAD
func (r *Repository) WorktreeStatus() ([]StatusEntry, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	st, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to compute worktree status: %w", err)
	}

	entries := make([]StatusEntry, 0, len(st))
	for path, fs := range st {
		if fs.Staging == git.Unmodified && fs.Worktree == git.Unmodified {
			continue
		}
		entries = append(entries, StatusEntry{
			Path:     path,
			Staging:  statusCodeName(fs.Staging),
			Worktree: statusCodeName(fs.Worktree),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func statusCodeName(code git.StatusCode) string {
	switch code {
	case git.Unmodified:
		return "unmodified"
	case git.Untracked:
		return "untracked"
	case git.Modified:
		return "modified"
	case git.Added:
		return "added"
	case git.Deleted:
		return "deleted"
	case git.Renamed:
		return "renamed"
	case git.Copied:
		return "copied"
	case git.UpdatedButUnmerged:
		return "unmerged"
	default:
		return "unknown"
	}
}

// objectSize returns the uncompressed size of a stored object
func (r *Repository) objectSize(hash plumbing.Hash) (int64, error) {
	return r.repo.Storer.EncodedObjectSize(hash)
}
