package service

import (
	"errors"
	"fmt"

	"github.com/stacklok/gitrepo-server/internal/clone"
	"github.com/stacklok/gitrepo-server/internal/git"
	"github.com/stacklok/gitrepo-server/internal/repopath"
	"github.com/stacklok/gitrepo-server/internal/status"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrNotFound is returned when a repository, branch, path or commit does not exist
	ErrNotFound = errors.New("not found")
	// ErrBadRequest is returned for structurally invalid input
	ErrBadRequest = errors.New("bad request")
	// ErrAlreadyExists is returned when a clone or rename target already exists
	ErrAlreadyExists = errors.New("already exists")
	// ErrInternal is returned for failures not attributable to the caller
	ErrInternal = errors.New("internal error")
)

// Error is a classified service failure
type Error struct {
	// Kind is one of ErrNotFound, ErrBadRequest, ErrAlreadyExists or ErrInternal
	Kind error
	// Op names the failed operation
	Op string
	// Err is the underlying cause
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error kind
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

var (
	notFoundErrors = []error{
		git.ErrRepositoryNotFound,
		git.ErrEmptyRepository,
		git.ErrBranchNotFound,
		git.ErrCommitNotFound,
		git.ErrPathNotFound,
		git.ErrRemoteNotFound,
		status.ErrNotFound,
	}

	badRequestErrors = []error{
		repopath.ErrInvalidName,
		git.ErrInvalidReference,
		git.ErrInvalidCommitID,
		git.ErrInvalidPagination,
		git.ErrPageOutOfRange,
		git.ErrNotADirectory,
		git.ErrNotAFile,
		git.ErrInvalidPath,
		git.ErrNonUTF8Content,
		git.ErrEmptyMessage,
		git.ErrNothingToCommit,
		git.ErrDetachedHead,
		git.ErrDivergentBranch,
		clone.ErrInvalidURL,
	}

	alreadyExistsErrors = []error{
		git.ErrRepositoryExists,
		clone.ErrAlreadyExists,
	}
)

// classify wraps err into an *Error whose kind follows the sentinel it carries
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}

	return &Error{Kind: kindOf(err), Op: op, Err: err}
}

func kindOf(err error) error {
	for _, sentinel := range notFoundErrors {
		if errors.Is(err, sentinel) {
			return ErrNotFound
		}
	}
	for _, sentinel := range badRequestErrors {
		if errors.Is(err, sentinel) {
			return ErrBadRequest
		}
	}
	for _, sentinel := range alreadyExistsErrors {
		if errors.Is(err, sentinel) {
			return ErrAlreadyExists
		}
	}
	return ErrInternal
}

func newError(kind error, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// kindName is the span attribute value of an error kind
func kindName(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	default:
		return "internal"
	}
}
