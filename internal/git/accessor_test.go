package git

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/gitrepo-server/internal/git/gittest"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, ErrRepositoryNotFound)

	plain := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(plain, "file"), []byte("x"), 0600))
	_, err = Open(plain)
	require.ErrorIs(t, err, ErrRepositoryNotFound)
	assert.False(t, IsRepository(plain))

	dir := gittest.InitRepo(t)
	repo, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, repo.Path())
	assert.True(t, IsRepository(dir))
}

func TestResolveRevision(t *testing.T) {
	t.Parallel()

	dir, hashes := gittest.CreateTestRepoWithCommits(t, []gittest.CommitConfig{
		{Files: map[string]string{"a": "1"}},
		{Files: map[string]string{"a": "2"}},
	})
	repo, err := Open(dir)
	require.NoError(t, err)

	head, err := repo.ResolveRevision("")
	require.NoError(t, err)
	assert.Equal(t, hashes[1], head)

	byBranch, err := repo.ResolveRevision("main")
	require.NoError(t, err)
	assert.Equal(t, hashes[1], byBranch)

	byID, err := repo.ResolveRevision(hashes[0].String())
	require.NoError(t, err)
	assert.Equal(t, hashes[0], byID)

	_, err = repo.ResolveRevision("0000000000000000000000000000000000000001")
	require.ErrorIs(t, err, ErrCommitNotFound)

	empty, err := Open(gittest.InitRepo(t))
	require.NoError(t, err)
	_, err = empty.ResolveReference("")
	require.ErrorIs(t, err, ErrEmptyRepository)

	headCommit, err := empty.HeadCommit()
	require.NoError(t, err)
	assert.Nil(t, headCommit)
}

func TestCurrentBranch(t *testing.T) {
	t.Parallel()

	dir, hashes := gittest.CreateTestRepoWithCommits(t, []gittest.CommitConfig{
		{Files: map[string]string{"a": "1"}},
	})
	repo, err := Open(dir)
	require.NoError(t, err)

	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	wt, err := repo.repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{Hash: hashes[0]}))

	branch, err = repo.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "detached@"+hashes[0].String()[:7], branch)

	empty, err := Open(gittest.InitRepo(t))
	require.NoError(t, err)
	branch, err = empty.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestBranchesAndTags(t *testing.T) {
	t.Parallel()

	dir, hashes := gittest.CreateTestRepoWithCommits(t, []gittest.CommitConfig{
		{Files: map[string]string{"a": "1"}},
		{Files: map[string]string{"a": "2"}},
	})
	gittest.CreateBranch(t, dir, "feature")

	repo, err := Open(dir)
	require.NoError(t, err)

	branches, err := repo.Branches()
	require.NoError(t, err)
	assert.Equal(t, []BranchInfo{
		{Name: "feature", Commit: hashes[1].String(), Current: true},
		{Name: "main", Commit: hashes[1].String(), Current: false},
	}, branches)

	_, err = repo.repo.CreateTag("v1.0.0", hashes[0], nil)
	require.NoError(t, err)
	_, err = repo.repo.CreateTag("v1.10.0", hashes[1], &git.CreateTagOptions{
		Tagger:  &object.Signature{Name: "Test Author", Email: "test@example.com", When: gittest.BaseTime},
		Message: "release",
	})
	require.NoError(t, err)
	_, err = repo.repo.CreateTag("v1.2.0", hashes[1], nil)
	require.NoError(t, err)

	tags, err := repo.Tags()
	require.NoError(t, err)
	assert.Equal(t, []TagInfo{
		{Name: "v1.10.0", Commit: hashes[1].String(), Annotated: true},
		{Name: "v1.2.0", Commit: hashes[1].String()},
		{Name: "v1.0.0", Commit: hashes[0].String()},
	}, tags)
}

func TestWorktreeStatus(t *testing.T) {
	t.Parallel()

	dir := gittest.CreateTestRepo(t, map[string]string{"tracked.txt": "v1\n"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tracked.txt"), []byte("v2\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("new\n"), 0600))

	repo, err := Open(dir)
	require.NoError(t, err)

	entries, err := repo.WorktreeStatus()
	require.NoError(t, err)
	assert.Equal(t, []StatusEntry{
		{Path: "new.txt", Staging: "untracked", Worktree: "untracked"},
		{Path: "tracked.txt", Staging: "unmodified", Worktree: "modified"},
	}, entries)
}
