package git

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Paginate returns one page of the history reachable from branch (HEAD when
// empty). Pages are 1-based. The reachable set is ordered by committer date,
// newest first, with ties broken by ascending hash, so repeated calls over an
// unchanged repository return the same windows.
func (r *Repository) Paginate(ctx context.Context, branch string, page, pageSize int) (*CommitPage, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("%w: page=%d page_size=%d", ErrInvalidPagination, page, pageSize)
	}

	commits, err := r.reachableCommits(ctx, branch)
	if err != nil {
		return nil, err
	}

	total := len(commits)
	result := &CommitPage{
		Items:      []CommitInfo{},
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	if total == 0 {
		return result, nil
	}

	offset := (page - 1) * pageSize
	if offset >= total {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, page, result.TotalPages)
	}

	end := min(offset+pageSize, total)
	for _, c := range commits[offset:end] {
		result.Items = append(result.Items, newCommitInfo(c))
	}

	return result, nil
}

// CountCommits returns the number of commits reachable from branch (HEAD when empty)
func (r *Repository) CountCommits(ctx context.Context, branch string) (int, error) {
	commits, err := r.reachableCommits(ctx, branch)
	if err != nil {
		return 0, err
	}
	return len(commits), nil
}

// reachableCommits walks every parent edge from the start commit once.
// An unborn HEAD yields an empty history.
func (r *Repository) reachableCommits(ctx context.Context, branch string) ([]*object.Commit, error) {
	start, err := r.ResolveReference(branch)
	if err != nil {
		if errors.Is(err, ErrEmptyRepository) {
			return nil, nil
		}
		return nil, err
	}

	iter, err := r.repo.Log(&git.LogOptions{From: start, Order: git.LogOrderDFS})
	if err != nil {
		return nil, fmt.Errorf("failed to walk history from %s: %w", start, err)
	}
	defer iter.Close()

	var commits []*object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		commits = append(commits, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk history from %s: %w", start, err)
	}

	sort.Slice(commits, func(i, j int) bool {
		ti, tj := commits[i].Committer.When, commits[j].Committer.When
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return commits[i].Hash.String() < commits[j].Hash.String()
	})

	return commits, nil
}
