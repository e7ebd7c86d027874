package clone

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/gitrepo-server/internal/git"
	"github.com/stacklok/gitrepo-server/internal/git/gittest"
	"github.com/stacklok/gitrepo-server/internal/notify"
	"github.com/stacklok/gitrepo-server/internal/repolock"
	"github.com/stacklok/gitrepo-server/internal/repopath"
	"github.com/stacklok/gitrepo-server/internal/status"
)

// fakeClient runs fn for each clone attempt
type fakeClient struct {
	calls atomic.Int32
	fn    func(ctx context.Context, attempt int, cfg *git.CloneConfig) error
}

func (f *fakeClient) Clone(ctx context.Context, cfg *git.CloneConfig) (*git.Repository, error) {
	attempt := int(f.calls.Add(1))
	if err := f.fn(ctx, attempt, cfg); err != nil {
		return nil, err
	}
	return git.Open(cfg.Path)
}

// initTarget simulates a successful clone
func initTarget(_ context.Context, _ int, cfg *git.CloneConfig) error {
	_, err := git.Init(cfg.Path, "main")
	return err
}

// recordingPublisher captures published events
type recordingPublisher struct {
	events chan notify.CloneEvent
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(chan notify.CloneEvent, 16)}
}

func (p *recordingPublisher) PublishJSON(_ context.Context, _ string, v any) error {
	p.events <- v.(notify.CloneEvent)
	return nil
}

func (p *recordingPublisher) next(t *testing.T) notify.CloneEvent {
	t.Helper()
	select {
	case ev := <-p.events:
		return ev
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for clone event")
		return notify.CloneEvent{}
	}
}

type fixture struct {
	resolver  *repopath.Resolver
	locker    *repolock.Locker
	store     status.Store
	publisher *recordingPublisher
	client    *fakeClient
}

func newFixture(t *testing.T, fn func(ctx context.Context, attempt int, cfg *git.CloneConfig) error) *fixture {
	t.Helper()

	resolver, err := repopath.NewResolver(filepath.Join(t.TempDir(), "repositories"))
	require.NoError(t, err)
	locker, err := repolock.New("")
	require.NoError(t, err)

	return &fixture{
		resolver:  resolver,
		locker:    locker,
		store:     status.NewFileStore(filepath.Join(t.TempDir(), "status")),
		publisher: newRecordingPublisher(),
		client:    &fakeClient{fn: fn},
	}
}

func (f *fixture) orchestrator(t *testing.T, cfg Config, opts ...Option) *Orchestrator {
	t.Helper()
	o := New(f.resolver, f.locker, f.client, f.publisher, f.store, cfg, opts...)
	t.Cleanup(func() { _ = o.Stop() })
	return o
}

func testConfig() Config {
	return Config{
		Timeout:              5 * time.Second,
		MaxAttempts:          3,
		MaxConcurrent:        2,
		InitialRetryInterval: time.Millisecond,
	}
}

func TestOrchestrator_CloneCompletes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, initTarget)
	o := f.orchestrator(t, testConfig())

	job, err := o.Clone(t.Context(), "alice", "https://example.com/demo.git", "demo")
	require.NoError(t, err)
	assert.Equal(t, status.CloneStateCloning, job.State)
	assert.Equal(t, "https://example.com/demo.git", job.URL)

	ev := f.publisher.next(t)
	assert.Equal(t, notify.CloneEvent{OwnerID: "alice", RepoName: "demo", Message: notify.EventCompleted}, ev)

	got, err := o.Status(t.Context(), "alice", "demo")
	require.NoError(t, err)
	assert.Equal(t, status.CloneStateCompleted, got.State)
	assert.Equal(t, 1, got.Attempts)
	assert.NotNil(t, got.FinishedAt)

	record, err := f.store.Load(t.Context(), "alice", "demo")
	require.NoError(t, err)
	assert.Equal(t, status.CloneStateCompleted, record.State)

	target, err := f.resolver.Resolve("alice", "demo")
	require.NoError(t, err)
	assert.True(t, git.IsRepository(target))
}

func TestOrchestrator_CloneAlreadyExists(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	f := newFixture(t, func(ctx context.Context, attempt int, cfg *git.CloneConfig) error {
		<-release
		return initTarget(ctx, attempt, cfg)
	})
	o := f.orchestrator(t, testConfig())

	_, err := o.Clone(t.Context(), "alice", "https://example.com/demo.git", "demo")
	require.NoError(t, err)
	assert.True(t, o.IsCloning("alice", "demo"))

	_, err = o.Clone(t.Context(), "alice", "https://example.com/demo.git", "demo")
	require.ErrorIs(t, err, ErrAlreadyExists)

	close(release)
	assert.Equal(t, notify.EventCompleted, f.publisher.next(t).Message)
	assert.False(t, o.IsCloning("alice", "demo"))

	// the directory now exists
	_, err = o.Clone(t.Context(), "alice", "https://example.com/demo.git", "demo")
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestOrchestrator_KeepsRepositoryCreatedDuringClone(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	f := newFixture(t, func(ctx context.Context, attempt int, cfg *git.CloneConfig) error {
		close(started)
		<-release
		return initTarget(ctx, attempt, cfg)
	})
	o := f.orchestrator(t, testConfig())

	_, err := o.Clone(t.Context(), "alice", "https://example.com/proj.git", "proj")
	require.NoError(t, err)
	<-started

	// a repository appears at the target while the clone runs
	target, err := f.resolver.Resolve("alice", "proj")
	require.NoError(t, err)
	_, err = git.Init(target, "main")
	require.NoError(t, err)
	mine := filepath.Join(target, "mine.txt")
	require.NoError(t, os.WriteFile(mine, []byte("mine\n"), 0600))
	close(release)

	assert.Equal(t, notify.EventFailed, f.publisher.next(t).Message)
	assert.EqualValues(t, 1, f.client.calls.Load())
	assert.FileExists(t, mine)

	got, err := o.Status(t.Context(), "alice", "proj")
	require.NoError(t, err)
	assert.Equal(t, status.CloneStateFailed, got.State)
}

func TestOrchestrator_CloneWaitsForRepositoryLock(t *testing.T) {
	t.Parallel()

	f := newFixture(t, initTarget)
	o := f.orchestrator(t, testConfig())

	unlock, err := f.locker.Lock(t.Context(), "alice", "demo")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := o.Clone(t.Context(), "alice", "https://example.com/demo.git", "demo")
		errCh <- err
	}()

	select {
	case err := <-errCh:
		t.Fatalf("Clone returned while the repository lock was held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, o.IsCloning("alice", "demo"))

	// the lock holder creates the repository first
	target, err := f.resolver.Resolve("alice", "demo")
	require.NoError(t, err)
	_, err = git.Init(target, "main")
	require.NoError(t, err)
	unlock()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrAlreadyExists)
	case <-time.After(5 * time.Second):
		t.Fatal("Clone did not return after the lock was released")
	}
	assert.Zero(t, f.client.calls.Load())
}

func TestOrchestrator_CloneRejectsInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t, initTarget)
	o := f.orchestrator(t, testConfig())

	_, err := o.Clone(t.Context(), "alice", "", "demo")
	require.ErrorIs(t, err, ErrInvalidURL)

	_, err = o.Clone(t.Context(), "alice", "https://example.com/demo.git", "../demo")
	require.ErrorIs(t, err, repopath.ErrInvalidName)

	_, err = o.Clone(t.Context(), "", "https://example.com/demo.git", "demo")
	require.ErrorIs(t, err, repopath.ErrInvalidName)

	assert.Zero(t, f.client.calls.Load())
}

func TestOrchestrator_PermanentFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(_ context.Context, _ int, cfg *git.CloneConfig) error {
		// leave a partial directory behind
		if err := os.MkdirAll(filepath.Join(cfg.Path, ".git"), 0750); err != nil {
			return err
		}
		return transport.ErrRepositoryNotFound
	})
	o := f.orchestrator(t, testConfig())

	_, err := o.Clone(t.Context(), "alice", "https://example.com/missing.git", "missing")
	require.NoError(t, err)

	ev := f.publisher.next(t)
	assert.Equal(t, notify.EventFailed, ev.Message)

	got, err := o.Status(t.Context(), "alice", "missing")
	require.NoError(t, err)
	assert.Equal(t, status.CloneStateFailed, got.State)
	assert.Equal(t, 1, got.Attempts)
	assert.Contains(t, got.Message, transport.ErrRepositoryNotFound.Error())
	assert.EqualValues(t, 1, f.client.calls.Load())

	target, err := f.resolver.Resolve("alice", "missing")
	require.NoError(t, err)
	assert.NoDirExists(t, target)
}

func TestOrchestrator_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(ctx context.Context, attempt int, cfg *git.CloneConfig) error {
		if attempt < 3 {
			return errors.New("connection reset by peer")
		}
		return initTarget(ctx, attempt, cfg)
	})
	o := f.orchestrator(t, testConfig())

	_, err := o.Clone(t.Context(), "alice", "https://example.com/flaky.git", "flaky")
	require.NoError(t, err)

	assert.Equal(t, notify.EventCompleted, f.publisher.next(t).Message)

	got, err := o.Status(t.Context(), "alice", "flaky")
	require.NoError(t, err)
	assert.Equal(t, status.CloneStateCompleted, got.State)
	assert.Equal(t, 3, got.Attempts)
}

func TestOrchestrator_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(context.Context, int, *git.CloneConfig) error {
		return errors.New("connection reset by peer")
	})
	cfg := testConfig()
	cfg.MaxAttempts = 2
	o := f.orchestrator(t, cfg)

	_, err := o.Clone(t.Context(), "alice", "https://example.com/flaky.git", "flaky")
	require.NoError(t, err)

	assert.Equal(t, notify.EventFailed, f.publisher.next(t).Message)
	assert.EqualValues(t, 2, f.client.calls.Load())

	got, err := o.Status(t.Context(), "alice", "flaky")
	require.NoError(t, err)
	assert.Equal(t, status.CloneStateFailed, got.State)
	assert.Equal(t, "connection reset by peer", got.Message)
}

func TestOrchestrator_StopCancelsRunningClones(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	f := newFixture(t, func(ctx context.Context, _ int, _ *git.CloneConfig) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	o := New(f.resolver, f.locker, f.client, f.publisher, f.store, testConfig())

	_, err := o.Clone(t.Context(), "alice", "https://example.com/slow.git", "slow")
	require.NoError(t, err)
	<-started

	require.NoError(t, o.Stop())

	assert.Equal(t, notify.EventFailed, f.publisher.next(t).Message)

	record, err := f.store.Load(t.Context(), "alice", "slow")
	require.NoError(t, err)
	assert.Equal(t, status.CloneStateFailed, record.State)

	_, err = o.Clone(t.Context(), "alice", "https://example.com/other.git", "other")
	require.ErrorIs(t, err, ErrStopped)
}

func TestOrchestrator_CloneRacingStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t, initTarget)
	o := New(f.resolver, f.locker, f.client, f.publisher, f.store, testConfig())

	var wg sync.WaitGroup
	accepted := atomic.Int32{}
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := "r" + string(rune('a'+i))
			if _, err := o.Clone(context.Background(), "alice", "https://example.com/"+name+".git", name); err == nil {
				accepted.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrStopped)
			}
		}()
	}
	require.NoError(t, o.Stop())
	wg.Wait()

	// accepted clones published their outcome before Stop returned
	for range accepted.Load() {
		f.publisher.next(t)
	}
	_, err := o.Clone(t.Context(), "alice", "https://example.com/late.git", "late")
	require.ErrorIs(t, err, ErrStopped)
}

func TestOrchestrator_ConcurrencyLimit(t *testing.T) {
	t.Parallel()

	var (
		running atomic.Int32
		maxSeen atomic.Int32
		mu      sync.Mutex
	)
	f := newFixture(t, func(ctx context.Context, attempt int, cfg *git.CloneConfig) error {
		n := running.Add(1)
		mu.Lock()
		if n > maxSeen.Load() {
			maxSeen.Store(n)
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return initTarget(ctx, attempt, cfg)
	})
	cfg := testConfig()
	cfg.MaxConcurrent = 2
	o := f.orchestrator(t, cfg)

	names := []string{"r1", "r2", "r3", "r4", "r5"}
	for _, name := range names {
		_, err := o.Clone(t.Context(), "alice", "https://example.com/"+name+".git", name)
		require.NoError(t, err)
	}
	for range names {
		assert.Equal(t, notify.EventCompleted, f.publisher.next(t).Message)
	}

	assert.LessOrEqual(t, maxSeen.Load(), int32(2))
}

func TestOrchestrator_StatusWithoutJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, initTarget)
	o := f.orchestrator(t, testConfig())
	ctx := t.Context()

	got, err := o.Status(ctx, "alice", "unknown")
	require.NoError(t, err)
	assert.Equal(t, status.CloneStateNotStarted, got.State)

	// an existing repository created outside the orchestrator
	target, err := f.resolver.Resolve("alice", "local")
	require.NoError(t, err)
	_, err = git.Init(target, "main")
	require.NoError(t, err)

	got, err = o.Status(ctx, "alice", "local")
	require.NoError(t, err)
	assert.Equal(t, status.CloneStateCompleted, got.State)

	// a persisted failure from a previous run
	require.NoError(t, f.store.Save(ctx, &status.CloneStatus{
		OwnerID:  "alice",
		RepoName: "broken",
		State:    status.CloneStateFailed,
		Message:  "authentication required",
	}))
	got, err = o.Status(ctx, "alice", "broken")
	require.NoError(t, err)
	assert.Equal(t, status.CloneStateFailed, got.State)
	assert.Equal(t, "authentication required", got.Message)

	// a completed record whose directory was deleted
	require.NoError(t, f.store.Save(ctx, &status.CloneStatus{
		OwnerID:  "alice",
		RepoName: "gone",
		State:    status.CloneStateCompleted,
	}))
	got, err = o.Status(ctx, "alice", "gone")
	require.NoError(t, err)
	assert.Equal(t, status.CloneStateNotStarted, got.State)

	_, err = o.Status(ctx, "alice", "a/b")
	require.ErrorIs(t, err, repopath.ErrInvalidName)
}

func TestOrchestrator_Forget(t *testing.T) {
	t.Parallel()

	f := newFixture(t, initTarget)
	o := f.orchestrator(t, testConfig())

	_, err := o.Clone(t.Context(), "alice", "https://example.com/demo.git", "demo")
	require.NoError(t, err)
	f.publisher.next(t)

	require.NoError(t, o.Forget(t.Context(), "alice", "demo"))

	_, err = f.store.Load(t.Context(), "alice", "demo")
	require.ErrorIs(t, err, status.ErrNotFound)

	// the directory still answers for the repository
	got, err := o.Status(t.Context(), "alice", "demo")
	require.NoError(t, err)
	assert.Equal(t, status.CloneStateCompleted, got.State)
	assert.Zero(t, got.Attempts)
}

func TestOrchestrator_ReconcileFailsInterruptedClones(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, initTarget)
	o := f.orchestrator(t, testConfig(), withClock(func() time.Time { return now }))
	ctx := t.Context()

	stale, err := f.resolver.Resolve("alice", "stale")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(stale, ".git"), 0750))
	require.NoError(t, f.store.Save(ctx, &status.CloneStatus{
		OwnerID:   "alice",
		RepoName:  "stale",
		State:     status.CloneStateCloning,
		StartedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, f.store.Save(ctx, &status.CloneStatus{
		OwnerID:   "alice",
		RepoName:  "recent",
		State:     status.CloneStateCloning,
		StartedAt: now.Add(-time.Second),
	}))

	o.reconcile(ctx, o.cfg.Timeout)

	record, err := f.store.Load(ctx, "alice", "stale")
	require.NoError(t, err)
	assert.Equal(t, status.CloneStateFailed, record.State)
	assert.Equal(t, interruptedMessage, record.Message)
	assert.NoDirExists(t, stale)

	record, err = f.store.Load(ctx, "alice", "recent")
	require.NoError(t, err)
	assert.Equal(t, status.CloneStateCloning, record.State)
}

func TestOrchestrator_StartFailsCloningRecordsImmediately(t *testing.T) {
	t.Parallel()

	f := newFixture(t, initTarget)
	o := f.orchestrator(t, testConfig())
	ctx := t.Context()

	partial, err := f.resolver.Resolve("alice", "partial")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(partial, ".git"), 0750))
	require.NoError(t, f.store.Save(ctx, &status.CloneStatus{
		OwnerID:   "alice",
		RepoName:  "partial",
		State:     status.CloneStateCloning,
		StartedAt: time.Now(),
	}))

	errCh := make(chan error, 1)
	go func() { errCh <- o.Start(ctx) }()

	require.Eventually(t, func() bool {
		record, err := f.store.Load(ctx, "alice", "partial")
		return err == nil && record.State == status.CloneStateFailed
	}, 5*time.Second, 10*time.Millisecond)
	assert.NoDirExists(t, partial)

	// the name is free again
	_, err = o.Clone(ctx, "alice", "https://example.com/partial.git", "partial")
	require.NoError(t, err)
	assert.Equal(t, notify.EventCompleted, f.publisher.next(t).Message)

	require.NoError(t, o.Stop())
	require.NoError(t, <-errCh)
}

func TestOrchestrator_ReconcileSkipsReplacedRecords(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, initTarget)
	o := f.orchestrator(t, testConfig(), withClock(func() time.Time { return now }))
	ctx := t.Context()

	// the scan saw a stale record, but the repository was recreated since
	scanned := &status.CloneStatus{
		OwnerID:   "alice",
		RepoName:  "demo",
		State:     status.CloneStateCloning,
		StartedAt: now.Add(-time.Hour),
	}
	target, err := f.resolver.Resolve("alice", "demo")
	require.NoError(t, err)
	_, err = git.Init(target, "main")
	require.NoError(t, err)

	o.failInterrupted(ctx, scanned, now)

	assert.True(t, git.IsRepository(target))
	_, err = f.store.Load(ctx, "alice", "demo")
	require.ErrorIs(t, err, status.ErrNotFound)
}

func TestOrchestrator_ReconcileEvictsFinishedJobs(t *testing.T) {
	t.Parallel()

	var now atomic.Pointer[time.Time]
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now.Store(&start)

	f := newFixture(t, initTarget)
	cfg := testConfig()
	cfg.Retention = time.Minute
	o := f.orchestrator(t, cfg, withClock(func() time.Time { return *now.Load() }))

	_, err := o.Clone(t.Context(), "alice", "https://example.com/demo.git", "demo")
	require.NoError(t, err)
	f.publisher.next(t)

	o.reconcile(t.Context(), o.cfg.Timeout)
	o.mu.Lock()
	assert.Len(t, o.jobs, 1)
	o.mu.Unlock()

	later := start.Add(2 * time.Minute)
	now.Store(&later)
	o.reconcile(t.Context(), o.cfg.Timeout)
	o.mu.Lock()
	assert.Empty(t, o.jobs)
	o.mu.Unlock()
}

func TestOrchestrator_StartStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t, initTarget)
	o := New(f.resolver, f.locker, f.client, f.publisher, f.store, testConfig())

	errCh := make(chan error, 1)
	go func() { errCh <- o.Start(t.Context()) }()

	require.Eventually(t, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.loopDone != nil
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, o.Stop())
	require.NoError(t, <-errCh)
}

func TestOrchestrator_PublishesThroughHub(t *testing.T) {
	t.Parallel()

	f := newFixture(t, initTarget)
	hub := notify.NewHub()
	received := make(chan []byte, 1)
	hub.Register("alice", chanChannel(received))

	o := New(f.resolver, f.locker, f.client, hub, f.store, testConfig())
	t.Cleanup(func() { _ = o.Stop() })

	_, err := o.Clone(t.Context(), "alice", "https://example.com/demo.git", "demo")
	require.NoError(t, err)

	select {
	case msg := <-received:
		var ev map[string]string
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, map[string]string{"owner_id": "alice", "repo_name": "demo", "message": "COMPLETED"}, ev)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestOrchestrator_ClonesLocalRemote(t *testing.T) {
	t.Parallel()
	gittest.RequireGitBinary(t)

	remote, hashes := gittest.CreateTestRepoWithCommits(t, []gittest.CommitConfig{
		{Files: map[string]string{"README.md": "# demo\n"}},
	})

	resolver, err := repopath.NewResolver(filepath.Join(t.TempDir(), "repositories"))
	require.NoError(t, err)
	locker, err := repolock.New("")
	require.NoError(t, err)
	publisher := newRecordingPublisher()
	o := New(resolver, locker, git.NewDefaultGitClient(), publisher, status.NewFileStore(t.TempDir()), testConfig())
	t.Cleanup(func() { _ = o.Stop() })

	_, err = o.Clone(t.Context(), "alice", remote, "demo")
	require.NoError(t, err)
	require.Equal(t, notify.EventCompleted, publisher.next(t).Message)

	target, err := resolver.Resolve("alice", "demo")
	require.NoError(t, err)
	repo, err := git.Open(target)
	require.NoError(t, err)
	head, err := repo.ResolveReference("")
	require.NoError(t, err)
	assert.Equal(t, hashes[0], head)
}

type chanChannel chan []byte

func (chanChannel) ID() string { return "chan" }

func (c chanChannel) Send(_ context.Context, msg []byte) error {
	c <- msg
	return nil
}
