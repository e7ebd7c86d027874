package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Client defines the interface for remote Git operations
type Client interface {
	// Clone clones a remote repository into a local directory
	Clone(ctx context.Context, config *CloneConfig) (*Repository, error)
}

// CloneConfig contains configuration for cloning a repository
type CloneConfig struct {
	// URL is the repository URL to clone
	URL string

	// Path is the local directory to clone into. It must not exist or be empty.
	Path string

	// DefaultBranch is used as the unborn HEAD when the remote has no commits
	DefaultBranch string

	// Auth contains optional HTTP basic credentials
	Auth *AuthConfig
}

// AuthConfig contains authentication configuration for Git operations
type AuthConfig struct {
	Username string
	Password string
}

// AuthMethod returns the transport auth for these credentials, or nil
func (a *AuthConfig) AuthMethod() transport.AuthMethod {
	if a == nil || a.Username == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: a.Username, Password: a.Password}
}

// defaultGitClient implements Client using go-git
type defaultGitClient struct{}

// NewDefaultGitClient creates a new defaultGitClient
func NewDefaultGitClient() Client {
	return &defaultGitClient{}
}

// Clone clones a repository onto disk with its full history. An empty
// remote is initialized locally with origin configured so later pulls work.
// A failed clone leaves no directory behind.
func (*defaultGitClient) Clone(ctx context.Context, cfg *CloneConfig) (*Repository, error) {
	if cfg == nil || cfg.URL == "" || cfg.Path == "" {
		return nil, errors.New("clone URL and path are required")
	}

	cloneOptions := &git.CloneOptions{
		URL:        cfg.URL,
		RemoteName: DefaultRemoteName,
		Auth:       cfg.Auth.AuthMethod(),
	}
	if cloneOptions.Auth != nil {
		slog.Debug("Using Git HTTP Basic authentication", "username", cfg.Auth.Username)
	}

	repo, err := git.PlainCloneContext(ctx, cfg.Path, false, cloneOptions)
	if err == nil {
		return &Repository{repo: repo, path: cfg.Path}, nil
	}
	if !errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return nil, fmt.Errorf("failed to clone repository: %w", err)
	}

	slog.Debug("Remote repository is empty, initializing locally", "url", cfg.URL)
	return initEmptyClone(cfg)
}

func initEmptyClone(cfg *CloneConfig) (*Repository, error) {
	branch := cfg.DefaultBranch
	if branch == "" {
		branch = plumbing.Master.Short()
	}

	r, err := Init(cfg.Path, branch)
	if err != nil {
		_ = os.RemoveAll(cfg.Path)
		return nil, err
	}

	_, err = r.repo.CreateRemote(&config.RemoteConfig{
		Name: DefaultRemoteName,
		URLs: []string{cfg.URL},
	})
	if err != nil {
		_ = os.RemoveAll(cfg.Path)
		return nil, fmt.Errorf("failed to configure remote %s: %w", DefaultRemoteName, err)
	}

	return r, nil
}
