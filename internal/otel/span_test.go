package otel

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecorder(t *testing.T) (*tracetest.SpanRecorder, trace.Tracer) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder, tp.Tracer("repository-test")
}

func attributeMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestAttributeKeys(t *testing.T) {
	t.Parallel()

	// dashboards query these names
	tests := []struct {
		key  attribute.Key
		want string
	}{
		{AttrOwnerID, "repository.owner"},
		{AttrRepoName, "repository.name"},
		{AttrBranch, "git.branch"},
		{AttrRevision, "git.revision"},
		{AttrCommitID, "git.commit_id"},
		{AttrFilePath, "git.path"},
		{AttrPage, "pagination.page"},
		{AttrPageSize, "pagination.page_size"},
		{AttrResultCount, "result.count"},
		{AttrErrorKind, "error.kind"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, string(tt.key))
	}
}

func TestStartSpan_NilTracerKeepsParent(t *testing.T) {
	t.Parallel()

	recorder, tracer := newRecorder(t)
	parentCtx, parent := tracer.Start(context.Background(), "GET /v1/repos/{repo}/commits")

	ctx, span := StartSpan(parentCtx, nil, "RepositoryService.ListCommits")
	assert.Equal(t, parent.SpanContext(), span.SpanContext())
	assert.Equal(t, parent.SpanContext(), trace.SpanContextFromContext(ctx))
	parent.End()

	require.Len(t, recorder.Ended(), 1)

	_, orphan := StartSpan(context.Background(), nil, "RepositoryService.ListCommits")
	assert.False(t, orphan.SpanContext().IsValid())
	assert.NotPanics(t, func() { orphan.End() })
}

func TestStartSpan_RepositoryAttributes(t *testing.T) {
	t.Parallel()

	recorder, tracer := newRecorder(t)

	_, span := StartSpan(context.Background(), tracer, "RepositoryService.ListCommits",
		trace.WithAttributes(
			AttrOwnerID.String("alice"),
			AttrRepoName.String("demo"),
			AttrBranch.String("main"),
			AttrPage.Int(2),
			AttrPageSize.Int(20),
		),
	)
	span.SetAttributes(AttrResultCount.Int(7))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "RepositoryService.ListCommits", spans[0].Name())

	attrs := attributeMap(spans[0].Attributes())
	assert.Equal(t, "alice", attrs[AttrOwnerID].AsString())
	assert.Equal(t, "demo", attrs[AttrRepoName].AsString())
	assert.Equal(t, "main", attrs[AttrBranch].AsString())
	assert.EqualValues(t, 2, attrs[AttrPage].AsInt64())
	assert.EqualValues(t, 20, attrs[AttrPageSize].AsInt64())
	assert.EqualValues(t, 7, attrs[AttrResultCount].AsInt64())
}

func TestRecordError_FailedCommitLookup(t *testing.T) {
	t.Parallel()

	recorder, tracer := newRecorder(t)
	commitID := "0123456789012345678901234567890123456789"

	_, span := StartSpan(context.Background(), tracer, "RepositoryService.GetCommit",
		trace.WithAttributes(AttrCommitID.String(commitID)),
	)
	err := fmt.Errorf("commit not found: %s in /srv/repos/alice/demo", commitID)
	span.SetAttributes(AttrErrorKind.String("not_found"))
	RecordError(span, err)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	got := spans[0]

	attrs := attributeMap(got.Attributes())
	assert.Equal(t, commitID, attrs[AttrCommitID].AsString())
	assert.Equal(t, "not_found", attrs[AttrErrorKind].AsString())

	assert.Equal(t, codes.Error, got.Status().Code)
	assert.NotContains(t, got.Status().Description, "/srv/repos")

	require.Len(t, got.Events(), 1)
	event := got.Events()[0]
	assert.Equal(t, "exception", event.Name)
	assert.Contains(t, attributeMap(event.Attributes)["exception.message"].AsString(), commitID)
}

func TestRecordError_Ignored(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { RecordError(nil, fmt.Errorf("repository not found")) })

	recorder, tracer := newRecorder(t)
	_, span := tracer.Start(context.Background(), "RepositoryService.CountCommits")
	RecordError(span, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Empty(t, spans[0].Events())
}
