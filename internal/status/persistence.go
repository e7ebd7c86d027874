// Package status persists clone job status records on the local filesystem.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/stacklok/gitrepo-server/internal/repopath"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=persistence.go Store

const statusFileSuffix = ".json"

// ErrNotFound is returned when no status record exists for a repository
var ErrNotFound = errors.New("clone status not found")

// Store defines the interface for clone status persistence
type Store interface {
	// Save writes the status record of status.OwnerID/status.RepoName
	Save(ctx context.Context, status *CloneStatus) error

	// Load reads the status record of a repository, or returns ErrNotFound
	Load(ctx context.Context, ownerID, repoName string) (*CloneStatus, error)

	// Delete removes the status record of a repository. Missing records are ignored.
	Delete(ctx context.Context, ownerID, repoName string) error

	// LoadAll reads every readable status record
	LoadAll(ctx context.Context) ([]*CloneStatus, error)
}

// fileStore implements Store with one JSON file per repository under
// {basePath}/{owner}/{repo}.json, outside the repository directories.
type fileStore struct {
	basePath string
}

// NewFileStore creates a new file-based status store rooted at basePath
func NewFileStore(basePath string) Store {
	return &fileStore{basePath: basePath}
}

func (f *fileStore) path(ownerID, repoName string) (string, error) {
	if err := repopath.ValidateName(ownerID); err != nil {
		return "", err
	}
	if err := repopath.ValidateName(repoName); err != nil {
		return "", err
	}
	return filepath.Join(f.basePath, ownerID, repoName+statusFileSuffix), nil
}

// Save writes the record to a temporary file and renames it into place
func (f *fileStore) Save(_ context.Context, status *CloneStatus) error {
	filePath, err := f.path(status.OwnerID, status.RepoName)
	if err != nil {
		return err
	}
	key := status.OwnerID + "/" + status.RepoName

	if err := os.MkdirAll(filepath.Dir(filePath), 0750); err != nil {
		return fmt.Errorf("failed to create status directory for '%s': %w", key, err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal clone status for '%s': %w", key, err)
	}

	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file for '%s': %w", key, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file for '%s': %w", key, err)
	}

	return nil
}

func (f *fileStore) Load(_ context.Context, ownerID, repoName string) (*CloneStatus, error) {
	filePath, err := f.path(ownerID, repoName)
	if err != nil {
		return nil, err
	}
	return readStatus(filePath)
}

func (f *fileStore) Delete(_ context.Context, ownerID, repoName string) error {
	filePath, err := f.path(ownerID, repoName)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete status file for '%s/%s': %w", ownerID, repoName, err)
	}
	return nil
}

// LoadAll skips records that cannot be read so one corrupt file does not
// hide the others.
func (f *fileStore) LoadAll(_ context.Context) ([]*CloneStatus, error) {
	owners, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*CloneStatus{}, nil
		}
		return nil, fmt.Errorf("failed to read status directory: %w", err)
	}

	result := []*CloneStatus{}
	for _, owner := range owners {
		if !owner.IsDir() || repopath.ValidateName(owner.Name()) != nil {
			continue
		}

		ownerDir := filepath.Join(f.basePath, owner.Name())
		files, err := os.ReadDir(ownerDir)
		if err != nil {
			slog.Warn("Failed to read clone status directory", "owner", owner.Name(), "error", err)
			continue
		}

		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), statusFileSuffix) {
				continue
			}
			status, err := readStatus(filepath.Join(ownerDir, file.Name()))
			if err != nil {
				slog.Warn("Skipping unreadable clone status", "file", file.Name(), "error", err)
				continue
			}
			result = append(result, status)
		}
	}

	return result, nil
}

func readStatus(filePath string) (*CloneStatus, error) {
	// #nosec G304 -- filePath is built from the status directory and validated names
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read status file %s: %w", filepath.Base(filePath), err)
	}

	var status CloneStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status file %s: %w", filepath.Base(filePath), err)
	}
	return &status, nil
}
