package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/gitrepo-server/internal/service"
)

func TestWriteServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "not found",
			err:         &service.Error{Kind: service.ErrNotFound, Op: "GetFile", Err: errors.New("path not found: docs/a.md")},
			wantStatus:  http.StatusNotFound,
			wantMessage: "path not found: docs/a.md",
		},
		{
			name:        "bad request",
			err:         &service.Error{Kind: service.ErrBadRequest, Op: "GetTree", Err: errors.New("depth must not be negative")},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "depth must not be negative",
		},
		{
			name:        "conflict",
			err:         &service.Error{Kind: service.ErrAlreadyExists, Op: "CloneRepository", Err: errors.New("repository already exists: site")},
			wantStatus:  http.StatusConflict,
			wantMessage: "repository already exists: site",
		},
		{
			name:        "internal hides details",
			err:         &service.Error{Kind: service.ErrInternal, Op: "ListCommits", Err: errors.New("open /srv/repos/alice/site: permission denied")},
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "internal server error",
		},
		{
			name:        "deadline",
			err:         &service.Error{Kind: service.ErrInternal, Op: "Pull", Err: context.DeadlineExceeded},
			wantStatus:  http.StatusGatewayTimeout,
			wantMessage: "request timed out",
		},
		{
			name:        "unclassified is internal",
			err:         fmt.Errorf("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			WriteServiceError(rec, httptest.NewRequest(http.MethodGet, "/v1/repos", nil), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantMessage, body.Error)
		})
	}
}

func TestDecodeJSONBody(t *testing.T) {
	t.Parallel()

	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr string
	}{
		{name: "valid", body: `{"name":"site"}`, want: "site"},
		{name: "empty", body: "", wantErr: "request body is required"},
		{name: "unknown field", body: `{"name":"site","extra":1}`, wantErr: "invalid request body"},
		{name: "malformed", body: `{"name":`, wantErr: "invalid request body"},
		{name: "too large", body: `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`, wantErr: "request body exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got payload
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := DecodeJSONBody(httptest.NewRecorder(), req, &got)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestQueryInt(t *testing.T) {
	t.Parallel()

	n, err := QueryInt(httptest.NewRequest(http.MethodGet, "/?page=3", nil), "page")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = QueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "page")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = QueryInt(httptest.NewRequest(http.MethodGet, "/?page=-1", nil), "page")
	require.Error(t, err)

	_, err = QueryInt(httptest.NewRequest(http.MethodGet, "/?page=abc", nil), "page")
	require.Error(t, err)
}
