// Package repopath maps owners and repository names to locations on disk.
package repopath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrInvalidName is returned when an owner id or repository name cannot be
// used as a single path segment.
var ErrInvalidName = errors.New("invalid name")

const (
	// maxNameLength bounds a single path segment
	maxNameLength = 255

	namespacePerm = 0750
)

// Resolver resolves repository paths below a base directory.
// Layout: {basePath}/{ownerID}/{repoName}
type Resolver struct {
	basePath string
}

// NewResolver creates a resolver rooted at basePath.
func NewResolver(basePath string) (*Resolver, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path is required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path %s: %w", basePath, err)
	}

	return &Resolver{basePath: abs}, nil
}

// BasePath returns the absolute base directory
func (r *Resolver) BasePath() string {
	return r.basePath
}

// ValidateName checks that name is usable as exactly one path segment.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	case len(name) > maxNameLength:
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q is a relative path segment", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: name contains a NUL byte", ErrInvalidName)
	case strings.EqualFold(name, ".git"):
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}

	if filepath.Clean(name) != name || !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %q is not a local path segment", ErrInvalidName, name)
	}

	return nil
}

// OwnerPath returns the namespace directory of an owner without creating it.
func (r *Resolver) OwnerPath(ownerID string) (string, error) {
	if err := ValidateName(ownerID); err != nil {
		return "", fmt.Errorf("owner: %w", err)
	}
	return filepath.Join(r.basePath, ownerID), nil
}

// Resolve returns the directory of repoName owned by ownerID.
func (r *Resolver) Resolve(ownerID, repoName string) (string, error) {
	ownerPath, err := r.OwnerPath(ownerID)
	if err != nil {
		return "", err
	}
	if err := ValidateName(repoName); err != nil {
		return "", fmt.Errorf("repository: %w", err)
	}
	return filepath.Join(ownerPath, repoName), nil
}

// EnsureOwnerNamespace creates the owner directory if it is missing.
// Concurrent callers all succeed.
func (r *Resolver) EnsureOwnerNamespace(ownerID string) (string, error) {
	ownerPath, err := r.OwnerPath(ownerID)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(ownerPath, namespacePerm); err != nil {
		return "", fmt.Errorf("failed to create namespace for owner %s: %w", ownerID, err)
	}

	return ownerPath, nil
}

// Exists reports whether the repository directory is present.
func (r *Resolver) Exists(ownerID, repoName string) (bool, error) {
	path, err := r.Resolve(ownerID, repoName)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat %s/%s: %w", ownerID, repoName, err)
	}
}

// ListRepositories returns the sorted directory names in the owner namespace.
// A missing namespace yields an empty list.
func (r *Resolver) ListRepositories(ownerID string) ([]string, error) {
	ownerPath, err := r.OwnerPath(ownerID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(ownerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read namespace of owner %s: %w", ownerID, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || ValidateName(entry.Name()) != nil {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	return names, nil
}
