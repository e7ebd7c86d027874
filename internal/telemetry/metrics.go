// Package telemetry provides OpenTelemetry instrumentation for the repository server.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// CloneMetricsMeterName is the name used for the clone metrics meter
	CloneMetricsMeterName = "github.com/stacklok/gitrepo-server/clone"

	// RepositoryMetricsMeterName is the name used for the repository operation metrics meter
	RepositoryMetricsMeterName = "github.com/stacklok/gitrepo-server/repository"
)

// CloneMetrics holds the OpenTelemetry instruments for clone jobs
type CloneMetrics struct {
	duration metric.Float64Histogram
	results  metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

// NewCloneMetrics creates a new CloneMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewCloneMetrics(provider metric.MeterProvider) (*CloneMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(CloneMetricsMeterName)

	duration, err := meter.Float64Histogram(
		"gitrepo_clone_duration_seconds",
		metric.WithDescription("Duration of clone jobs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, err
	}

	results, err := meter.Int64Counter(
		"gitrepo_clone_jobs_total",
		metric.WithDescription("Number of finished clone jobs by result"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter(
		"gitrepo_clone_jobs_in_flight",
		metric.WithDescription("Number of clone jobs currently running"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	return &CloneMetrics{
		duration: duration,
		results:  results,
		inFlight: inFlight,
	}, nil
}

// CloneStarted increments the in-flight gauge
func (m *CloneMetrics) CloneStarted(ctx context.Context) {
	if m == nil || m.inFlight == nil {
		return
	}
	m.inFlight.Add(ctx, 1)
}

// CloneFinished records the outcome of a clone job and decrements the in-flight gauge
func (m *CloneMetrics) CloneFinished(ctx context.Context, duration time.Duration, success bool) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	if m.inFlight != nil {
		m.inFlight.Add(ctx, -1)
	}
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.results != nil {
		m.results.Add(ctx, 1, attrs)
	}
}

// RepositoryMetrics holds the OpenTelemetry instruments for repository operations
type RepositoryMetrics struct {
	operationDuration metric.Float64Histogram
	notifications     metric.Int64Counter
}

// NewRepositoryMetrics creates a new RepositoryMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewRepositoryMetrics(provider metric.MeterProvider) (*RepositoryMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RepositoryMetricsMeterName)

	operationDuration, err := meter.Float64Histogram(
		"gitrepo_operation_duration_seconds",
		metric.WithDescription("Duration of repository operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	notifications, err := meter.Int64Counter(
		"gitrepo_notifications_total",
		metric.WithDescription("Number of notifications published by event"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	return &RepositoryMetrics{
		operationDuration: operationDuration,
		notifications:     notifications,
	}, nil
}

// RecordOperation records the duration of a repository operation
func (m *RepositoryMetrics) RecordOperation(ctx context.Context, operation string, duration time.Duration, success bool) {
	if m == nil || m.operationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	}

	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordNotification counts a published notification
func (m *RepositoryMetrics) RecordNotification(ctx context.Context, event string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}
