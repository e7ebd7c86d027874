// Package otel provides OpenTelemetry instrumentation utilities for the repository server.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for business context used across the application.
const (
	AttrOwnerID     = attribute.Key("repository.owner")
	AttrRepoName    = attribute.Key("repository.name")
	AttrBranch      = attribute.Key("git.branch")
	AttrRevision    = attribute.Key("git.revision")
	AttrCommitID    = attribute.Key("git.commit_id")
	AttrFilePath    = attribute.Key("git.path")
	AttrPage        = attribute.Key("pagination.page")
	AttrPageSize    = attribute.Key("pagination.page_size")
	AttrResultCount = attribute.Key("result.count")
	AttrErrorKind   = attribute.Key("error.kind")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns a no-op span.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records an error on a span and sets the span status to error.
// It safely handles nil spans and nil errors.
// The status description stays generic so repository paths do not end up in
// the span status; the error itself is kept as a span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
