package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/gitrepo-server/internal/clone"
	"github.com/stacklok/gitrepo-server/internal/git"
	"github.com/stacklok/gitrepo-server/internal/telemetry"
)

const (
	// DefaultPageSize is used when a history request names no page size
	DefaultPageSize = 20
	// DefaultMaxPageSize bounds the page size of history requests
	DefaultMaxPageSize = 100
	// DefaultBranch is the initial branch of new repositories
	DefaultBranch = "main"
)

// Cloner runs and tracks background clones
type Cloner interface {
	Clone(ctx context.Context, ownerID, url, repoName string) (*clone.Job, error)
	Status(ctx context.Context, ownerID, repoName string) (*clone.Job, error)
	IsCloning(ownerID, repoName string) bool
	Forget(ctx context.Context, ownerID, repoName string) error
}

// options holds configuration options for the repository service
type options struct {
	tracer           trace.Tracer
	metrics          *telemetry.RepositoryMetrics
	defaultPageSize  int
	maxPageSize      int
	defaultBranch    string
	rejectDivergent  bool
	requireGitSuffix bool
	pullAuth         *git.AuthConfig
}

// Option is a functional option for configuring the repository service
type Option func(*options) error

// WithTracer sets the OpenTelemetry tracer for the service.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// WithMetrics sets the operation metrics for the service
func WithMetrics(metrics *telemetry.RepositoryMetrics) Option {
	return func(o *options) error {
		o.metrics = metrics
		return nil
	}
}

// WithPagination sets the default and maximum history page sizes
func WithPagination(defaultPageSize, maxPageSize int) Option {
	return func(o *options) error {
		if defaultPageSize < 1 || maxPageSize < 1 {
			return fmt.Errorf("page sizes must be positive: default=%d max=%d", defaultPageSize, maxPageSize)
		}
		if defaultPageSize > maxPageSize {
			return fmt.Errorf("default page size %d exceeds maximum %d", defaultPageSize, maxPageSize)
		}
		o.defaultPageSize = defaultPageSize
		o.maxPageSize = maxPageSize
		return nil
	}
}

// WithDefaultBranch sets the initial branch of repositories created by InitRepository
func WithDefaultBranch(branch string) Option {
	return func(o *options) error {
		if branch == "" {
			return fmt.Errorf("default branch is required")
		}
		o.defaultBranch = branch
		return nil
	}
}

// WithRejectDivergent makes Pull refuse to move a branch that is not an
// ancestor of the fetched commit
func WithRejectDivergent(reject bool) Option {
	return func(o *options) error {
		o.rejectDivergent = reject
		return nil
	}
}

// WithRequireGitSuffix makes clone requests require a .git suffix on HTTP(S) URLs
func WithRequireGitSuffix(require bool) Option {
	return func(o *options) error {
		o.requireGitSuffix = require
		return nil
	}
}

// WithPullAuth sets the credentials used to fetch from HTTP(S) remotes
func WithPullAuth(auth *git.AuthConfig) Option {
	return func(o *options) error {
		o.pullAuth = auth
		return nil
	}
}
