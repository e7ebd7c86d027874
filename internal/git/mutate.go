package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// CommitOptions selects what a commit stages
type CommitOptions struct {
	Message string
	// Paths are staged individually; a deleted path is removed from the index
	Paths []string
	// All stages every change of the working tree, untracked files included
	All    bool
	Author Signature
}

// PullOptions configures a pull from the origin remote
type PullOptions struct {
	// Branch defaults to the branch HEAD is attached to
	Branch string
	// RejectDivergent refuses to move a local branch that is not an ancestor of the fetched commit
	RejectDivergent bool
	Auth            transport.AuthMethod
}

// PullResult reports how a pull moved the local branch
type PullResult struct {
	Branch   string `json:"branch"`
	Previous string `json:"previous,omitempty"`
	Current  string `json:"current"`
	Updated  bool   `json:"updated"`
}

// Init creates an empty repository at path whose HEAD points to the unborn defaultBranch
func Init(path, defaultBranch string) (*Repository, error) {
	name := plumbing.NewBranchReferenceName(defaultBranch)
	if err := name.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidReference, defaultBranch)
	}

	repo, err := git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: name},
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryExists, filepath.Base(path))
		}
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Commit stages the selected paths and records a commit on the current branch.
// The first commit of an empty repository has no parents.
func (r *Repository) Commit(opts CommitOptions) (plumbing.Hash, error) {
	if strings.TrimSpace(opts.Message) == "" {
		return plumbing.ZeroHash, ErrEmptyMessage
	}
	if len(opts.Paths) == 0 && !opts.All {
		return plumbing.ZeroHash, fmt.Errorf("%w: no paths selected", ErrNothingToCommit)
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get worktree: %w", err)
	}

	if opts.All {
		if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to stage changes: %w", err)
		}
	}

	for _, p := range opts.Paths {
		cleanPath, err := cleanWorktreePath(p)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if err := rejectSymlinks(wt.Filesystem, cleanPath, true); err != nil {
			return plumbing.ZeroHash, err
		}
		if _, err := wt.Add(cleanPath); err != nil {
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, index.ErrEntryNotFound) {
				return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrPathNotFound, cleanPath)
			}
			return plumbing.ZeroHash, fmt.Errorf("failed to stage %s: %w", cleanPath, err)
		}
	}

	return r.commitStaged(wt, opts.Message, opts.Author)
}

// UpdateFile writes text content to a working tree file, stages only that
// file and commits it.
func (r *Repository) UpdateFile(filePath, content, message string, author Signature) (plumbing.Hash, error) {
	if strings.TrimSpace(message) == "" {
		return plumbing.ZeroHash, ErrEmptyMessage
	}

	cleanPath, err := cleanWorktreePath(filePath)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if !utf8.ValidString(content) {
		return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrNonUTF8Content, cleanPath)
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get worktree: %w", err)
	}

	if err := rejectSymlinks(wt.Filesystem, cleanPath, false); err != nil {
		return plumbing.ZeroHash, err
	}
	if fi, err := wt.Filesystem.Lstat(cleanPath); err == nil && fi.IsDir() {
		return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrNotAFile, cleanPath)
	}

	if dir := path.Dir(cleanPath); dir != "." {
		if err := wt.Filesystem.MkdirAll(dir, 0755); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := util.WriteFile(wt.Filesystem, cleanPath, []byte(content), 0644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to write %s: %w", cleanPath, err)
	}

	if _, err := wt.Add(cleanPath); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to stage %s: %w", cleanPath, err)
	}

	return r.commitStaged(wt, message, author)
}

func (r *Repository) commitStaged(wt *git.Worktree, message string, author Signature) (plumbing.Hash, error) {
	head, err := r.HeadCommit()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	parents := []plumbing.Hash{}
	if head != nil {
		parents = append(parents, head.Hash)
	}

	sig := author.toObject()
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:    sig,
		Committer: sig,
		Parents:   parents,
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return plumbing.ZeroHash, ErrNothingToCommit
		}
		return plumbing.ZeroHash, fmt.Errorf("failed to commit: %w", err)
	}

	return hash, nil
}

// Pull fetches a branch from origin and force-moves the local branch to it.
// A checked out branch also has its index and working tree reset.
func (r *Repository) Pull(ctx context.Context, opts PullOptions) (*PullResult, error) {
	branch := opts.Branch
	if branch == "" {
		current, err := r.attachedBranch()
		if err != nil {
			return nil, err
		}
		branch = current
	}

	localName := plumbing.NewBranchReferenceName(branch)
	if err := localName.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidReference, branch)
	}
	remoteName := plumbing.NewRemoteReferenceName(DefaultRemoteName, branch)

	remote, err := r.repo.Remote(DefaultRemoteName)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRemoteNotFound, DefaultRemoteName)
		}
		return nil, fmt.Errorf("failed to read remote %s: %w", DefaultRemoteName, err)
	}

	refSpec := config.RefSpec(fmt.Sprintf("+%s:%s", localName, remoteName))
	err = remote.FetchContext(ctx, &git.FetchOptions{
		RemoteName: DefaultRemoteName,
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       opts.Auth,
		Force:      true,
	})
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
	case errors.Is(err, git.NoMatchingRefSpecError{}):
		return nil, fmt.Errorf("%w: %s on %s", ErrBranchNotFound, branch, DefaultRemoteName)
	default:
		return nil, fmt.Errorf("failed to fetch %s from %s: %w", branch, DefaultRemoteName, err)
	}

	fetched, err := r.repo.Reference(remoteName, true)
	if err != nil {
		return nil, fmt.Errorf("failed to read fetched reference %s: %w", remoteName, err)
	}

	result := &PullResult{Branch: branch, Current: fetched.Hash().String()}

	local, err := r.repo.Reference(localName, true)
	switch {
	case err == nil:
		result.Previous = local.Hash().String()
		if local.Hash() == fetched.Hash() {
			return result, nil
		}
		if opts.RejectDivergent {
			if err := r.checkFastForward(local.Hash(), fetched.Hash()); err != nil {
				return nil, err
			}
		}
	case errors.Is(err, plumbing.ErrReferenceNotFound):
	default:
		return nil, fmt.Errorf("failed to resolve branch %s: %w", branch, err)
	}

	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(localName, fetched.Hash())); err != nil {
		return nil, fmt.Errorf("failed to update branch %s: %w", branch, err)
	}
	result.Updated = true

	checkedOut, err := r.isCheckedOut(localName)
	if err != nil {
		return nil, err
	}
	if checkedOut {
		wt, err := r.repo.Worktree()
		if err != nil {
			return nil, fmt.Errorf("failed to get worktree: %w", err)
		}
		if err := wt.Reset(&git.ResetOptions{Commit: fetched.Hash(), Mode: git.HardReset}); err != nil {
			return nil, fmt.Errorf("failed to reset worktree to %s: %w", fetched.Hash(), err)
		}
	}

	return result, nil
}

func (r *Repository) checkFastForward(local, fetched plumbing.Hash) error {
	localCommit, err := r.lookupCommit(local)
	if err != nil {
		return err
	}
	fetchedCommit, err := r.lookupCommit(fetched)
	if err != nil {
		return err
	}

	ok, err := localCommit.IsAncestor(fetchedCommit)
	if err != nil {
		return fmt.Errorf("failed to compare %s with %s: %w", local, fetched, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s is not an ancestor of %s", ErrDivergentBranch, local, fetched)
	}
	return nil
}

func (r *Repository) attachedBranch() (string, error) {
	head, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	if head.Type() != plumbing.SymbolicReference {
		return "", ErrDetachedHead
	}
	return head.Target().Short(), nil
}

func (r *Repository) isCheckedOut(name plumbing.ReferenceName) (bool, error) {
	head, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return false, fmt.Errorf("failed to read HEAD: %w", err)
	}
	return head.Type() == plumbing.SymbolicReference && head.Target() == name, nil
}

// cleanWorktreePath is cleanTreePath for writes: the root and the .git
// directory are not valid targets.
func cleanWorktreePath(p string) (string, error) {
	cleanPath, err := cleanTreePath(p)
	if err != nil {
		return "", err
	}
	if cleanPath == "" {
		return "", fmt.Errorf("%w: file path is required", ErrInvalidPath)
	}

	first, _, _ := strings.Cut(cleanPath, "/")
	if strings.EqualFold(first, git.GitDirName) {
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidPath, p)
	}
	return cleanPath, nil
}

// rejectSymlinks walks cleanPath one component at a time and fails when an
// existing component is a symbolic link. The last component may be a link
// only when allowLeaf is set, since staging a link records the link itself.
func rejectSymlinks(fs billy.Filesystem, cleanPath string, allowLeaf bool) error {
	parts := strings.Split(cleanPath, "/")
	for i := range parts {
		prefix := strings.Join(parts[:i+1], "/")
		fi, err := fs.Lstat(prefix)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("failed to inspect %s: %w", prefix, err)
		}
		if fi.Mode()&os.ModeSymlink == 0 {
			continue
		}
		if i == len(parts)-1 && allowLeaf {
			return nil
		}
		return fmt.Errorf("%w: %q passes through symbolic link %s", ErrInvalidPath, cleanPath, prefix)
	}
	return nil
}
