package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/gitrepo-server/internal/blocking"
	"github.com/stacklok/gitrepo-server/internal/clone"
	"github.com/stacklok/gitrepo-server/internal/git"
	"github.com/stacklok/gitrepo-server/internal/otel"
	"github.com/stacklok/gitrepo-server/internal/repolock"
	"github.com/stacklok/gitrepo-server/internal/repopath"
	"github.com/stacklok/gitrepo-server/internal/telemetry"
)

// ServiceTracerName is the name used for the repository service tracer
const ServiceTracerName = "github.com/stacklok/gitrepo-server/service"

// repositoryService implements RepositoryService on local repositories
type repositoryService struct {
	resolver *repopath.Resolver
	locker   *repolock.Locker
	executor *blocking.Executor
	cloner   Cloner

	tracer           trace.Tracer
	metrics          *telemetry.RepositoryMetrics
	defaultPageSize  int
	maxPageSize      int
	defaultBranch    string
	rejectDivergent  bool
	requireGitSuffix bool
	pullAuth         *git.AuthConfig
}

var _ RepositoryService = (*repositoryService)(nil)

// New creates a repository service. Reads and mutations run on executor;
// mutations additionally hold the repository lock from locker.
func New(
	resolver *repopath.Resolver,
	locker *repolock.Locker,
	executor *blocking.Executor,
	cloner Cloner,
	opts ...Option,
) (RepositoryService, error) {
	if resolver == nil || locker == nil || executor == nil || cloner == nil {
		return nil, fmt.Errorf("resolver, locker, executor and cloner are required")
	}

	o := &options{
		defaultPageSize:  DefaultPageSize,
		maxPageSize:      DefaultMaxPageSize,
		defaultBranch:    DefaultBranch,
		requireGitSuffix: true,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	return &repositoryService{
		resolver:         resolver,
		locker:           locker,
		executor:         executor,
		cloner:           cloner,
		tracer:           o.tracer,
		metrics:          o.metrics,
		defaultPageSize:  o.defaultPageSize,
		maxPageSize:      o.maxPageSize,
		defaultBranch:    o.defaultBranch,
		rejectDivergent:  o.rejectDivergent,
		requireGitSuffix: o.requireGitSuffix,
		pullAuth:         o.pullAuth,
	}, nil
}

// begin starts the span of an operation. The returned function classifies
// the error, records it and the operation metric, and ends the span.
func (s *repositoryService) begin(
	ctx context.Context,
	op, ownerID, repoName string,
	attrs ...attribute.KeyValue,
) (context.Context, func(*error)) {
	start := time.Now()
	attrs = append(attrs, otel.AttrOwnerID.String(ownerID), otel.AttrRepoName.String(repoName))
	ctx, span := otel.StartSpan(ctx, s.tracer, "RepositoryService."+op, trace.WithAttributes(attrs...))

	return ctx, func(errp *error) {
		success := *errp == nil
		if !success {
			*errp = classify(op, *errp)
			span.SetAttributes(otel.AttrErrorKind.String(kindName(*errp)))
			otel.RecordError(span, *errp)
			if errors.Is(*errp, ErrInternal) {
				slog.ErrorContext(ctx, "Repository operation failed",
					"operation", op,
					"owner", ownerID,
					"repository", repoName,
					"error", *errp)
			}
		}
		s.metrics.RecordOperation(ctx, op, time.Since(start), success)
		span.End()
	}
}

// open opens a repository that is not being cloned
func (s *repositoryService) open(ownerID, repoName string) (*git.Repository, error) {
	path, err := s.resolver.Resolve(ownerID, repoName)
	if err != nil {
		return nil, err
	}
	if s.cloner.IsCloning(ownerID, repoName) {
		return nil, fmt.Errorf("%w: %s is still being cloned", git.ErrRepositoryNotFound, repoName)
	}
	return git.Open(path)
}

// withRepo opens the repository and runs fn on the blocking executor
func withRepo[T any](
	ctx context.Context,
	s *repositoryService,
	ownerID, repoName string,
	fn func(*git.Repository) (T, error),
) (T, error) {
	return blocking.Call(ctx, s.executor, func() (T, error) {
		repo, err := s.open(ownerID, repoName)
		if err != nil {
			var zero T
			return zero, err
		}
		return fn(repo)
	})
}

// mutateRepo is withRepo under the repository lock
func mutateRepo[T any](
	ctx context.Context,
	s *repositoryService,
	ownerID, repoName string,
	fn func(*git.Repository) (T, error),
) (T, error) {
	unlock, err := s.locker.Lock(ctx, ownerID, repoName)
	if err != nil {
		var zero T
		return zero, err
	}
	defer unlock()

	return withRepo(ctx, s, ownerID, repoName, fn)
}

// CheckReadiness checks that the repository base directory is usable
func (s *repositoryService) CheckReadiness(_ context.Context) error {
	info, err := os.Stat(s.resolver.BasePath())
	if err != nil {
		return fmt.Errorf("repository storage unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("repository storage is not a directory")
	}
	return nil
}

// ListRepositories lists the owner namespace. Directories that cannot be
// opened are listed without a branch.
func (s *repositoryService) ListRepositories(ctx context.Context, ownerID string) (result []RepositorySummary, err error) {
	ctx, done := s.begin(ctx, "ListRepositories", ownerID, "")
	defer done(&err)

	result, err = blocking.Call(ctx, s.executor, func() ([]RepositorySummary, error) {
		names, err := s.resolver.ListRepositories(ownerID)
		if err != nil {
			return nil, err
		}

		summaries := make([]RepositorySummary, 0, len(names))
		for _, name := range names {
			summary := RepositorySummary{Name: name, Cloning: s.cloner.IsCloning(ownerID, name)}
			if !summary.Cloning {
				summary.Branch = s.currentBranch(ownerID, name)
			}
			summaries = append(summaries, summary)
		}
		return summaries, nil
	})
	if err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(otel.AttrResultCount.Int(len(result)))
	return result, nil
}

func (s *repositoryService) currentBranch(ownerID, repoName string) string {
	repo, err := s.open(ownerID, repoName)
	if err != nil {
		return ""
	}
	branch, err := repo.CurrentBranch()
	if err != nil {
		return ""
	}
	return branch
}

// InitRepository creates an empty repository on the requested or configured default branch
func (s *repositoryService) InitRepository(
	ctx context.Context,
	ownerID string,
	req InitRequest,
) (result *RepositorySummary, err error) {
	ctx, done := s.begin(ctx, "InitRepository", ownerID, req.Name)
	defer done(&err)

	branch := req.DefaultBranch
	if branch == "" {
		branch = s.defaultBranch
	}

	path, err := s.resolver.Resolve(ownerID, req.Name)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, ownerID, req.Name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return blocking.Call(ctx, s.executor, func() (*RepositorySummary, error) {
		if s.cloner.IsCloning(ownerID, req.Name) {
			return nil, fmt.Errorf("%w: %s is being cloned", git.ErrRepositoryExists, req.Name)
		}
		exists, err := s.resolver.Exists(ownerID, req.Name)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: %s", git.ErrRepositoryExists, req.Name)
		}
		if _, err := s.resolver.EnsureOwnerNamespace(ownerID); err != nil {
			return nil, err
		}

		if _, err := git.Init(path, branch); err != nil {
			return nil, err
		}
		// a stale record of an earlier clone must not claim the new repository
		if err := s.cloner.Forget(ctx, ownerID, req.Name); err != nil {
			slog.WarnContext(ctx, "Failed to remove clone status", "owner", ownerID, "repository", req.Name, "error", err)
		}

		slog.InfoContext(ctx, "Repository initialized", "owner", ownerID, "repository", req.Name, "branch", branch)
		return &RepositorySummary{Name: req.Name, Branch: branch}, nil
	})
}

// CloneRepository validates the request and hands it to the clone orchestrator
func (s *repositoryService) CloneRepository(
	ctx context.Context,
	ownerID string,
	req CloneRequest,
) (job *clone.Job, err error) {
	ctx, done := s.begin(ctx, "CloneRepository", ownerID, req.Name)
	defer done(&err)

	if err := clone.ValidateURL(req.URL, s.requireGitSuffix); err != nil {
		return nil, err
	}

	return s.cloner.Clone(ctx, ownerID, req.URL, req.Name)
}

// GetCloneStatus returns the clone job state of a repository
func (s *repositoryService) GetCloneStatus(ctx context.Context, ownerID, repoName string) (job *clone.Job, err error) {
	ctx, done := s.begin(ctx, "GetCloneStatus", ownerID, repoName)
	defer done(&err)

	return s.cloner.Status(ctx, ownerID, repoName)
}

// DeleteRepository removes the repository directory and its clone record
func (s *repositoryService) DeleteRepository(ctx context.Context, ownerID, repoName string) (err error) {
	ctx, done := s.begin(ctx, "DeleteRepository", ownerID, repoName)
	defer done(&err)

	path, err := s.resolver.Resolve(ownerID, repoName)
	if err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, ownerID, repoName)
	if err != nil {
		return err
	}
	defer unlock()

	if s.cloner.IsCloning(ownerID, repoName) {
		return newError(ErrAlreadyExists, "DeleteRepository", "%s is being cloned", repoName)
	}

	err = s.executor.Do(ctx, func() error {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to delete repository %s: %w", repoName, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.cloner.Forget(ctx, ownerID, repoName); err != nil {
		slog.WarnContext(ctx, "Failed to remove clone status", "owner", ownerID, "repository", repoName, "error", err)
	}

	slog.InfoContext(ctx, "Repository deleted", "owner", ownerID, "repository", repoName)
	return nil
}

// RenameRepository renames a repository within the owner namespace. Equal
// names are a no-op.
func (s *repositoryService) RenameRepository(ctx context.Context, ownerID, oldName, newName string) (err error) {
	ctx, done := s.begin(ctx, "RenameRepository", ownerID, oldName)
	defer done(&err)

	oldPath, err := s.resolver.Resolve(ownerID, oldName)
	if err != nil {
		return err
	}
	newPath, err := s.resolver.Resolve(ownerID, newName)
	if err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}

	unlock, err := s.locker.LockPair(ctx, ownerID, oldName, newName)
	if err != nil {
		return err
	}
	defer unlock()

	if s.cloner.IsCloning(ownerID, oldName) || s.cloner.IsCloning(ownerID, newName) {
		return newError(ErrAlreadyExists, "RenameRepository", "a clone of %s or %s is running", oldName, newName)
	}

	err = s.executor.Do(ctx, func() error {
		exists, err := s.resolver.Exists(ownerID, oldName)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", git.ErrRepositoryNotFound, oldName)
		}

		exists, err = s.resolver.Exists(ownerID, newName)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", git.ErrRepositoryExists, newName)
		}

		if err := os.Rename(oldPath, newPath); err != nil {
			return fmt.Errorf("failed to rename repository %s: %w", oldName, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.cloner.Forget(ctx, ownerID, oldName); err != nil {
		slog.WarnContext(ctx, "Failed to remove clone status", "owner", ownerID, "repository", oldName, "error", err)
	}

	slog.InfoContext(ctx, "Repository renamed", "owner", ownerID, "from", oldName, "to", newName)
	return nil
}

// ListCommits applies the configured page size defaults and clamps the page
// size to the maximum.
func (s *repositoryService) ListCommits(
	ctx context.Context,
	ownerID, repoName string,
	opts ListCommitsOptions,
) (page *git.CommitPage, err error) {
	if opts.Page == 0 {
		opts.Page = 1
	}
	if opts.PageSize == 0 {
		opts.PageSize = s.defaultPageSize
	}
	opts.PageSize = min(opts.PageSize, s.maxPageSize)

	ctx, done := s.begin(ctx, "ListCommits", ownerID, repoName,
		otel.AttrBranch.String(opts.Branch),
		otel.AttrPage.Int(opts.Page),
		otel.AttrPageSize.Int(opts.PageSize),
	)
	defer done(&err)

	page, err = withRepo(ctx, s, ownerID, repoName, func(repo *git.Repository) (*git.CommitPage, error) {
		return repo.Paginate(ctx, opts.Branch, opts.Page, opts.PageSize)
	})
	if err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(otel.AttrResultCount.Int(len(page.Items)))
	return page, nil
}

// CountCommits counts the commits reachable from branch (HEAD when empty)
func (s *repositoryService) CountCommits(ctx context.Context, ownerID, repoName, branch string) (count int, err error) {
	ctx, done := s.begin(ctx, "CountCommits", ownerID, repoName, otel.AttrBranch.String(branch))
	defer done(&err)

	return withRepo(ctx, s, ownerID, repoName, func(repo *git.Repository) (int, error) {
		return repo.CountCommits(ctx, branch)
	})
}

// GetCommit returns a commit with its diff against the first parent
func (s *repositoryService) GetCommit(
	ctx context.Context,
	ownerID, repoName, commitID string,
) (detail *git.CommitDetail, err error) {
	ctx, done := s.begin(ctx, "GetCommit", ownerID, repoName, otel.AttrCommitID.String(commitID))
	defer done(&err)

	return withRepo(ctx, s, ownerID, repoName, func(repo *git.Repository) (*git.CommitDetail, error) {
		return repo.CommitDetail(ctx, commitID)
	})
}

// Compare diffs the trees of two revisions
func (s *repositoryService) Compare(
	ctx context.Context,
	ownerID, repoName, from, to string,
) (changes []git.FileChange, err error) {
	ctx, done := s.begin(ctx, "Compare", ownerID, repoName,
		otel.AttrRevision.String(from+".."+to),
	)
	defer done(&err)

	if from == "" || to == "" {
		return nil, newError(ErrBadRequest, "Compare", "both from and to revisions are required")
	}

	return withRepo(ctx, s, ownerID, repoName, func(repo *git.Repository) ([]git.FileChange, error) {
		return repo.DiffRevisions(ctx, from, to)
	})
}

// CreateCommit commits working tree changes as the caller
func (s *repositoryService) CreateCommit(
	ctx context.Context,
	ownerID, repoName string,
	req CommitRequest,
) (result *CommitResult, err error) {
	ctx, done := s.begin(ctx, "CreateCommit", ownerID, repoName)
	defer done(&err)

	return mutateRepo(ctx, s, ownerID, repoName, func(repo *git.Repository) (*CommitResult, error) {
		hash, err := repo.Commit(git.CommitOptions{
			Message: req.Message,
			Paths:   req.Paths,
			All:     req.All,
			Author:  signature(ownerID, req.Author),
		})
		if err != nil {
			return nil, err
		}
		return newCommitResult(hash.String()), nil
	})
}

// GetTree lists the tree of a revision
func (s *repositoryService) GetTree(
	ctx context.Context,
	ownerID, repoName string,
	opts TreeOptions,
) (entries []*git.FileEntry, err error) {
	ctx, done := s.begin(ctx, "GetTree", ownerID, repoName,
		otel.AttrRevision.String(opts.Revision),
		otel.AttrFilePath.String(opts.Path),
	)
	defer done(&err)

	if opts.Depth < 0 {
		return nil, newError(ErrBadRequest, "GetTree", "depth must not be negative")
	}

	return withRepo(ctx, s, ownerID, repoName, func(repo *git.Repository) ([]*git.FileEntry, error) {
		return repo.ListTree(ctx, opts.Revision, opts.Path, opts.Depth)
	})
}

// GetFile reads a text file at a revision
func (s *repositoryService) GetFile(
	ctx context.Context,
	ownerID, repoName, revision, filePath string,
) (content *git.FileContent, err error) {
	ctx, done := s.begin(ctx, "GetFile", ownerID, repoName,
		otel.AttrRevision.String(revision),
		otel.AttrFilePath.String(filePath),
	)
	defer done(&err)

	if filePath == "" {
		return nil, newError(ErrBadRequest, "GetFile", "path is required")
	}

	return withRepo(ctx, s, ownerID, repoName, func(repo *git.Repository) (*git.FileContent, error) {
		return repo.FileContent(revision, filePath)
	})
}

// UpdateFile writes one file and commits only that path
func (s *repositoryService) UpdateFile(
	ctx context.Context,
	ownerID, repoName string,
	req UpdateFileRequest,
) (result *CommitResult, err error) {
	ctx, done := s.begin(ctx, "UpdateFile", ownerID, repoName, otel.AttrFilePath.String(req.Path))
	defer done(&err)

	return mutateRepo(ctx, s, ownerID, repoName, func(repo *git.Repository) (*CommitResult, error) {
		hash, err := repo.UpdateFile(req.Path, req.Content, req.Message, signature(ownerID, req.Author))
		if err != nil {
			return nil, err
		}
		return newCommitResult(hash.String()), nil
	})
}

// Pull fetches a branch from origin and moves the local branch to it
func (s *repositoryService) Pull(ctx context.Context, ownerID, repoName, branch string) (result *git.PullResult, err error) {
	ctx, done := s.begin(ctx, "Pull", ownerID, repoName, otel.AttrBranch.String(branch))
	defer done(&err)

	result, err = mutateRepo(ctx, s, ownerID, repoName, func(repo *git.Repository) (*git.PullResult, error) {
		return repo.Pull(ctx, git.PullOptions{
			Branch:          branch,
			RejectDivergent: s.rejectDivergent,
			Auth:            s.pullAuth.AuthMethod(),
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Updated {
		slog.InfoContext(ctx, "Branch updated from origin",
			"owner", ownerID,
			"repository", repoName,
			"branch", result.Branch,
			"previous", result.Previous,
			"current", result.Current)
	}
	return result, nil
}

// ListBranches returns the local branches
func (s *repositoryService) ListBranches(ctx context.Context, ownerID, repoName string) (branches []git.BranchInfo, err error) {
	ctx, done := s.begin(ctx, "ListBranches", ownerID, repoName)
	defer done(&err)

	return withRepo(ctx, s, ownerID, repoName, func(repo *git.Repository) ([]git.BranchInfo, error) {
		return repo.Branches()
	})
}

// ListTags returns the tags ordered by version
func (s *repositoryService) ListTags(ctx context.Context, ownerID, repoName string) (tags []git.TagInfo, err error) {
	ctx, done := s.begin(ctx, "ListTags", ownerID, repoName)
	defer done(&err)

	return withRepo(ctx, s, ownerID, repoName, func(repo *git.Repository) ([]git.TagInfo, error) {
		return repo.Tags()
	})
}

// GetWorktreeStatus returns the per-path working tree status
func (s *repositoryService) GetWorktreeStatus(
	ctx context.Context,
	ownerID, repoName string,
) (entries []git.StatusEntry, err error) {
	ctx, done := s.begin(ctx, "GetWorktreeStatus", ownerID, repoName)
	defer done(&err)

	return withRepo(ctx, s, ownerID, repoName, func(repo *git.Repository) ([]git.StatusEntry, error) {
		return repo.WorktreeStatus()
	})
}

// signature fills the author name with the owner id when the caller has none
func signature(ownerID string, author Author) git.Signature {
	name := author.Name
	if name == "" {
		name = ownerID
	}
	return git.Signature{Name: name, Email: author.Email}
}

func newCommitResult(id string) *CommitResult {
	return &CommitResult{ID: id, ShortID: id[:7]}
}
