package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/stacklok/gitrepo-server/internal/service"
)

// MaxBodyBytes bounds request bodies, file contents included
const MaxBodyBytes = 10 << 20

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSONResponse writes a JSON response with the given data
func WriteJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// WriteErrorResponse writes a standardized error response
func WriteErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	WriteJSONResponse(w, ErrorResponse{Error: message}, statusCode)
}

// WriteServiceError maps a service error kind to its HTTP status. Internal
// errors get a generic message so that filesystem details stay private.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		WriteErrorResponse(w, "request timed out", http.StatusGatewayTimeout)
		return
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrAlreadyExists):
		status = http.StatusConflict
	default:
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		WriteErrorResponse(w, "internal server error", http.StatusInternalServerError)
		return
	}

	message := err.Error()
	var svcErr *service.Error
	if errors.As(err, &svcErr) && svcErr.Err != nil {
		message = svcErr.Err.Error()
	}
	WriteErrorResponse(w, message, status)
}

// DecodeJSONBody decodes a bounded JSON request body into v
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return errors.New("request body is required")
		default:
			return fmt.Errorf("invalid request body: %w", err)
		}
	}
	return nil
}

// QueryInt parses an optional non-negative integer query parameter.
// A missing parameter yields zero.
func QueryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
