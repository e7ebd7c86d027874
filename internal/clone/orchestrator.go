package clone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"golang.org/x/sync/semaphore"

	"github.com/stacklok/gitrepo-server/internal/git"
	"github.com/stacklok/gitrepo-server/internal/notify"
	"github.com/stacklok/gitrepo-server/internal/repolock"
	"github.com/stacklok/gitrepo-server/internal/repopath"
	"github.com/stacklok/gitrepo-server/internal/status"
	"github.com/stacklok/gitrepo-server/internal/telemetry"
)

const (
	// basePollingInterval is the base interval of the reconciliation loop
	basePollingInterval = 2 * time.Minute
	// pollingJitter is the maximum random offset applied to the polling interval
	pollingJitter = 30 * time.Second

	// interruptedMessage is recorded for clones that were running when the process stopped
	interruptedMessage = "clone interrupted"
)

var (
	// ErrAlreadyExists is returned when the repository exists or is already being cloned
	ErrAlreadyExists = errors.New("repository already exists or is being cloned")

	// ErrInvalidURL is returned for an empty or unacceptable clone URL
	ErrInvalidURL = errors.New("invalid clone URL")

	// ErrStopped is returned when a clone is requested after Stop
	ErrStopped = errors.New("clone orchestrator stopped")
)

// Publisher delivers notifications to an owner's connected channels
type Publisher interface {
	PublishJSON(ctx context.Context, ownerID string, v any) error
}

// Orchestrator runs repository clones in the background and reports their
// outcome through a Publisher.
type Orchestrator struct {
	resolver *repopath.Resolver
	locker   *repolock.Locker
	client   git.Client
	hub      Publisher
	store    status.Store
	cfg      Config

	cloneMetrics *telemetry.CloneMetrics
	repoMetrics  *telemetry.RepositoryMetrics

	sem *semaphore.Weighted
	now func() time.Time

	mu      sync.Mutex
	jobs    map[string]*Job
	stopped bool

	// lifetime of background clones, independent of request contexts
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// Option is a function that configures the orchestrator
type Option func(*Orchestrator)

// WithCloneMetrics sets the clone metrics for the orchestrator
func WithCloneMetrics(metrics *telemetry.CloneMetrics) Option {
	return func(o *Orchestrator) {
		o.cloneMetrics = metrics
	}
}

// WithRepositoryMetrics sets the metrics used to count published notifications
func WithRepositoryMetrics(metrics *telemetry.RepositoryMetrics) Option {
	return func(o *Orchestrator) {
		o.repoMetrics = metrics
	}
}

// withClock replaces time.Now in tests
func withClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an orchestrator with injected dependencies. The locker must be
// the one repository mutations use.
func New(
	resolver *repopath.Resolver,
	locker *repolock.Locker,
	client git.Client,
	hub Publisher,
	store status.Store,
	cfg Config,
	opts ...Option,
) *Orchestrator {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	o := &Orchestrator{
		resolver: resolver,
		locker:   locker,
		client:   client,
		hub:      hub,
		store:    store,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		now:      time.Now,
		jobs:     make(map[string]*Job),
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

func jobKey(ownerID, repoName string) string {
	return ownerID + "/" + repoName
}

// Clone registers a clone job and starts it in the background. The returned
// job is a snapshot in the CLONING state. Registration happens under the
// repository lock, so a mutation holding that lock either sees the job or
// runs before the existence check.
func (o *Orchestrator) Clone(ctx context.Context, ownerID, url, repoName string) (*Job, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidURL)
	}
	target, err := o.resolver.Resolve(ownerID, repoName)
	if err != nil {
		return nil, err
	}

	unlock, err := o.locker.Lock(ctx, ownerID, repoName)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := o.resolver.EnsureOwnerNamespace(ownerID); err != nil {
		return nil, err
	}

	key := jobKey(ownerID, repoName)

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return nil, ErrStopped
	}
	if existing, ok := o.jobs[key]; ok && existing.State == status.CloneStateCloning {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, key)
	}
	if _, err := os.Lstat(target); err == nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, key)
	}
	job := &Job{
		OwnerID:   ownerID,
		RepoName:  repoName,
		URL:       url,
		State:     status.CloneStateCloning,
		StartedAt: o.now(),
	}
	o.jobs[key] = job
	snapshot := job.clone()
	o.wg.Add(1)
	o.mu.Unlock()

	o.saveStatus(ctx, snapshot)

	slog.Info("Clone accepted", "owner", ownerID, "repository", repoName)

	go o.run(snapshot, target)

	return snapshot, nil
}

// run performs one clone job to completion
func (o *Orchestrator) run(job *Job, target string) {
	defer o.wg.Done()

	startTime := o.now()
	o.cloneMetrics.CloneStarted(o.ctx)

	attempts, err := o.cloneWithRetry(job, target)
	finished := o.finish(job, attempts, err)

	// Publishing must not be cut short by Stop
	ctx := context.WithoutCancel(o.ctx)
	o.saveStatus(ctx, finished)

	event := notify.CloneEvent{OwnerID: job.OwnerID, RepoName: job.RepoName, Message: notify.EventCompleted}
	if err != nil {
		event.Message = notify.EventFailed
	}
	if pubErr := o.hub.PublishJSON(ctx, job.OwnerID, event); pubErr != nil {
		slog.Warn("Failed to publish clone event", "owner", job.OwnerID, "repository", job.RepoName, "error", pubErr)
	} else {
		o.repoMetrics.RecordNotification(ctx, event.Message)
	}

	o.cloneMetrics.CloneFinished(ctx, o.now().Sub(startTime), err == nil)
}

// cloneWithRetry retries transient failures within the clone timeout. The
// concurrency slot is held across attempts.
func (o *Orchestrator) cloneWithRetry(job *Job, target string) (int, error) {
	ctx, cancel := context.WithTimeout(o.ctx, o.cfg.Timeout)
	defer cancel()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return 0, fmt.Errorf("waiting for a clone slot: %w", err)
	}
	defer o.sem.Release(1)

	attempts := 0
	operation := func() (struct{}, error) {
		// only a directory this job created may be removed
		if _, err := os.Lstat(target); err == nil {
			return struct{}{}, backoff.Permanent(
				fmt.Errorf("%w: %s", ErrAlreadyExists, jobKey(job.OwnerID, job.RepoName)))
		}

		attempts++
		_, err := o.client.Clone(ctx, &git.CloneConfig{
			URL:           job.URL,
			Path:          target,
			DefaultBranch: o.cfg.DefaultBranch,
			Auth:          o.cfg.Auth,
		})
		if err == nil {
			return struct{}{}, nil
		}

		if errors.Is(err, gogit.ErrRepositoryAlreadyExists) || errors.Is(err, git.ErrRepositoryExists) {
			return struct{}{}, backoff.Permanent(err)
		}

		// a partial directory would make the next attempt fail
		if rmErr := os.RemoveAll(target); rmErr != nil {
			slog.Error("Failed to clean up after clone failure",
				"owner", job.OwnerID,
				"repository", job.RepoName,
				"error", rmErr)
		}

		if isPermanent(ctx, err) {
			return struct{}{}, backoff.Permanent(err)
		}
		slog.Warn("Clone attempt failed",
			"owner", job.OwnerID,
			"repository", job.RepoName,
			"attempt", attempts,
			"error", err)
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(o.cfg.backOff()),
		backoff.WithMaxTries(uint(o.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(o.cfg.Timeout),
	)
	if err != nil && ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("clone timed out after %s: %w", o.cfg.Timeout, err)
	}
	return attempts, err
}

func isPermanent(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, transport.ErrRepositoryNotFound) ||
		errors.Is(err, transport.ErrAuthenticationRequired) ||
		errors.Is(err, transport.ErrAuthorizationFailed) ||
		errors.Is(err, transport.ErrInvalidAuthMethod)
}

func (o *Orchestrator) finish(job *Job, attempts int, err error) *Job {
	now := o.now()

	o.mu.Lock()
	defer o.mu.Unlock()

	current, ok := o.jobs[jobKey(job.OwnerID, job.RepoName)]
	if !ok {
		current = job
	}
	current.Attempts = attempts
	current.FinishedAt = &now
	if err != nil {
		current.State = status.CloneStateFailed
		current.Message = err.Error()
		slog.Error("Clone failed",
			"owner", job.OwnerID,
			"repository", job.RepoName,
			"attempts", attempts,
			"error", err)
	} else {
		current.State = status.CloneStateCompleted
		slog.Info("Clone completed",
			"owner", job.OwnerID,
			"repository", job.RepoName,
			"attempts", attempts,
			"duration", now.Sub(current.StartedAt))
	}
	return current.clone()
}

// Status reports the clone state of a repository: the in-memory job, then
// the persisted record, then whatever the directory shows.
func (o *Orchestrator) Status(ctx context.Context, ownerID, repoName string) (*Job, error) {
	target, err := o.resolver.Resolve(ownerID, repoName)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	job, ok := o.jobs[jobKey(ownerID, repoName)]
	if ok {
		snapshot := job.clone()
		o.mu.Unlock()
		return snapshot, nil
	}
	o.mu.Unlock()

	isRepo := git.IsRepository(target)

	record, err := o.store.Load(ctx, ownerID, repoName)
	switch {
	case err == nil:
		// a completed record outlives a deleted directory
		if record.State != status.CloneStateCompleted || isRepo {
			return jobFromStatus(record), nil
		}
	case errors.Is(err, status.ErrNotFound):
	default:
		slog.Warn("Failed to read clone status", "owner", ownerID, "repository", repoName, "error", err)
	}

	state := status.CloneStateNotStarted
	if isRepo {
		state = status.CloneStateCompleted
	}
	return &Job{OwnerID: ownerID, RepoName: repoName, State: state}, nil
}

// IsCloning reports whether a clone of the repository is in progress
func (o *Orchestrator) IsCloning(ownerID, repoName string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	job, ok := o.jobs[jobKey(ownerID, repoName)]
	return ok && job.State == status.CloneStateCloning
}

// Forget drops the finished job and persisted record of a repository that
// was deleted or renamed. Running jobs are kept.
func (o *Orchestrator) Forget(ctx context.Context, ownerID, repoName string) error {
	key := jobKey(ownerID, repoName)

	o.mu.Lock()
	if job, ok := o.jobs[key]; ok {
		if job.State == status.CloneStateCloning {
			o.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrAlreadyExists, key)
		}
		delete(o.jobs, key)
	}
	o.mu.Unlock()

	return o.store.Delete(ctx, ownerID, repoName)
}

func (o *Orchestrator) saveStatus(ctx context.Context, job *Job) {
	if err := o.store.Save(ctx, job.toStatus()); err != nil {
		slog.Warn("Failed to persist clone status",
			"owner", job.OwnerID,
			"repository", job.RepoName,
			"error", err)
	}
}

// calculatePollingInterval returns the base polling interval with a random jitter applied
func calculatePollingInterval() time.Duration {
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	jitterOffset := time.Duration(rand.Int64N(int64(2*pollingJitter))) - pollingJitter
	return basePollingInterval + jitterOffset
}

// Start runs the reconciliation loop until ctx is cancelled or Stop is called
func (o *Orchestrator) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	o.mu.Lock()
	o.loopCancel = cancel
	o.loopDone = done
	o.mu.Unlock()

	defer func() {
		close(done)
		slog.Info("Clone reconciliation loop shutting down")
	}()

	pollingInterval := calculatePollingInterval()
	slog.Info("Starting clone reconciliation loop", "interval", pollingInterval)

	ticker := time.NewTicker(pollingInterval)
	defer ticker.Stop()

	// no job survives a restart, so every CLONING record is interrupted
	o.reconcile(loopCtx, 0)

	for {
		select {
		case <-ticker.C:
			o.reconcile(loopCtx, o.cfg.Timeout)
			ticker.Reset(calculatePollingInterval())
		case <-loopCtx.Done():
			return nil
		}
	}
}

// Stop cancels running clones, waits for them to record their outcome and
// stops the reconciliation loop.
func (o *Orchestrator) Stop() error {
	slog.Info("Stopping clone orchestrator")

	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()

	o.mu.Lock()
	cancel, done := o.loopCancel, o.loopDone
	o.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// reconcile fails persisted CLONING records that have no running job and
// are at least minAge old, and evicts old finished jobs.
func (o *Orchestrator) reconcile(ctx context.Context, minAge time.Duration) {
	now := o.now()

	records, err := o.store.LoadAll(ctx)
	if err != nil {
		slog.Error("Error loading clone status records", "error", err)
		return
	}

	for _, record := range records {
		if record.State != status.CloneStateCloning {
			continue
		}
		if o.IsCloning(record.OwnerID, record.RepoName) || now.Sub(record.StartedAt) < minAge {
			continue
		}
		o.failInterrupted(ctx, record, now)
	}

	o.mu.Lock()
	for key, job := range o.jobs {
		if job.FinishedAt != nil && now.Sub(*job.FinishedAt) > o.cfg.Retention {
			delete(o.jobs, key)
		}
	}
	o.mu.Unlock()
}

// failInterrupted removes the partial directory of an interrupted clone and
// records the failure. The record is re-read under the repository lock, so a
// clone accepted or a repository created since the scan is left alone.
func (o *Orchestrator) failInterrupted(ctx context.Context, scanned *status.CloneStatus, now time.Time) {
	target, err := o.resolver.Resolve(scanned.OwnerID, scanned.RepoName)
	if err != nil {
		slog.Warn("Ignoring clone status with invalid names", "owner", scanned.OwnerID, "repository", scanned.RepoName)
		return
	}

	unlock, err := o.locker.Lock(ctx, scanned.OwnerID, scanned.RepoName)
	if err != nil {
		slog.Warn("Failed to lock interrupted clone", "owner", scanned.OwnerID, "repository", scanned.RepoName, "error", err)
		return
	}
	defer unlock()

	if o.IsCloning(scanned.OwnerID, scanned.RepoName) {
		return
	}
	record, err := o.store.Load(ctx, scanned.OwnerID, scanned.RepoName)
	if err != nil || record.State != status.CloneStateCloning || !record.StartedAt.Equal(scanned.StartedAt) {
		return
	}

	slog.Warn("Cleaning up interrupted clone", "owner", record.OwnerID, "repository", record.RepoName)
	if err := os.RemoveAll(target); err != nil {
		slog.Error("Failed to remove interrupted clone", "path", target, "error", err)
		return
	}

	record.State = status.CloneStateFailed
	record.Message = interruptedMessage
	record.FinishedAt = &now
	if err := o.store.Save(ctx, record); err != nil {
		slog.Warn("Failed to persist clone status", "owner", record.OwnerID, "repository", record.RepoName, "error", err)
	}
}
