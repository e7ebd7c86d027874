// Package config provides configuration loading and management for the repository server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/gitrepo-server/internal/telemetry"
)

// EnvPrefix is the prefix of environment variables read by the server
const EnvPrefix = "GITREPO"

const (
	// AuthModeJWT verifies HS256 bearer tokens issued by the account service
	AuthModeJWT = "jwt"

	// AuthModeAnonymous serves every request as a single configured owner
	AuthModeAnonymous = "anonymous"
)

// Defaults applied to unset fields
const (
	DefaultBasePath         = "/tmp/repos"
	DefaultStatusDir        = "./data/clone-status"
	DefaultLocksDir         = "./data/locks"
	DefaultCloneTimeout     = 10 * time.Minute
	DefaultCloneAttempts    = 3
	DefaultCloneConcurrency = 4
	DefaultPageSize         = 20
	DefaultMaxPageSize      = 100
	DefaultBranch           = "main"
	DefaultWorkers          = 16
	DefaultAnonymousOwner   = "anonymous"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks; EvalSymlinks also cleans the path.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Storage    StorageConfig     `yaml:"storage"`
	Clone      CloneConfig       `yaml:"clone"`
	Pagination PaginationConfig  `yaml:"pagination"`
	Pull       PullConfig        `yaml:"pull"`
	Git        GitConfig         `yaml:"git"`
	Auth       *AuthConfig       `yaml:"auth,omitempty"`
	Telemetry  *telemetry.Config `yaml:"telemetry,omitempty"`
}

// StorageConfig defines where repositories and their bookkeeping live
type StorageConfig struct {
	// BasePath holds one directory per owner, each holding its repositories
	BasePath string `yaml:"basePath"`

	// StatusDir holds the clone status records. It must not be inside BasePath.
	StatusDir string `yaml:"statusDir,omitempty"`

	// LocksDir holds the cross-process repository lock files. Empty disables file locks.
	LocksDir string `yaml:"locksDir,omitempty"`
}

// CloneConfig defines background clone settings
type CloneConfig struct {
	// Timeout bounds a clone including retries (e.g. "10m")
	Timeout string `yaml:"timeout,omitempty"`

	// MaxAttempts is the number of attempts per clone
	MaxAttempts int `yaml:"maxAttempts,omitempty"`

	// MaxConcurrent is the number of clones running at once
	MaxConcurrent int `yaml:"maxConcurrent,omitempty"`

	// RequireGitSuffix rejects HTTP(S) clone URLs not ending with .git. Defaults to true.
	RequireGitSuffix *bool `yaml:"requireGitSuffix,omitempty"`

	// Username is used for HTTP basic auth against remotes
	Username string `yaml:"username,omitempty"`

	// PasswordFile is the path to a file containing the remote password or token
	PasswordFile string `yaml:"passwordFile,omitempty"`
}

// PaginationConfig defines history page sizes
type PaginationConfig struct {
	DefaultPageSize int `yaml:"defaultPageSize,omitempty"`
	MaxPageSize     int `yaml:"maxPageSize,omitempty"`
}

// PullConfig defines pull behavior
type PullConfig struct {
	// RejectDivergent refuses to move a local branch that is not an ancestor of the fetched commit
	RejectDivergent bool `yaml:"rejectDivergent"`
}

// GitConfig defines repository engine settings
type GitConfig struct {
	// DefaultBranch is the initial branch of new and empty cloned repositories
	DefaultBranch string `yaml:"defaultBranch,omitempty"`

	// Workers bounds the number of concurrent repository operations
	Workers int `yaml:"workers,omitempty"`
}

// AuthConfig defines request authentication
type AuthConfig struct {
	// Mode is "jwt" or "anonymous"
	Mode string `yaml:"mode"`

	// JWT configures bearer token verification in jwt mode
	JWT *JWTConfig `yaml:"jwt,omitempty"`

	// AnonymousOwner is the owner namespace served in anonymous mode
	AnonymousOwner string `yaml:"anonymousOwner,omitempty"`

	// PublicPaths bypass authentication in addition to the system endpoints
	PublicPaths []string `yaml:"publicPaths,omitempty"`

	// Realm is reported in WWW-Authenticate challenges
	Realm string `yaml:"realm,omitempty"`
}

// JWTConfig defines HS256 token verification
type JWTConfig struct {
	// SecretFile is the path to a file containing the shared signing secret
	SecretFile string `yaml:"secretFile,omitempty"`

	// Issuer, when set, must match the iss claim
	Issuer string `yaml:"issuer,omitempty"`

	// Audience, when set, must be contained in the aud claim
	Audience string `yaml:"audience,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file, applies
// defaults and validates the result
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.BasePath == "" {
		c.Storage.BasePath = DefaultBasePath
	}
	if c.Storage.StatusDir == "" {
		c.Storage.StatusDir = DefaultStatusDir
	}
	if c.Storage.LocksDir == "" {
		c.Storage.LocksDir = DefaultLocksDir
	}
	if c.Clone.Timeout == "" {
		c.Clone.Timeout = DefaultCloneTimeout.String()
	}
	if c.Clone.MaxAttempts == 0 {
		c.Clone.MaxAttempts = DefaultCloneAttempts
	}
	if c.Clone.MaxConcurrent == 0 {
		c.Clone.MaxConcurrent = DefaultCloneConcurrency
	}
	if c.Pagination.DefaultPageSize == 0 {
		c.Pagination.DefaultPageSize = DefaultPageSize
	}
	if c.Pagination.MaxPageSize == 0 {
		c.Pagination.MaxPageSize = DefaultMaxPageSize
	}
	if c.Git.DefaultBranch == "" {
		c.Git.DefaultBranch = DefaultBranch
	}
	if c.Git.Workers == 0 {
		c.Git.Workers = DefaultWorkers
	}
	if c.Auth != nil && c.Auth.Mode == AuthModeAnonymous && c.Auth.AnonymousOwner == "" {
		c.Auth.AnonymousOwner = DefaultAnonymousOwner
	}
}

// validate reports every problem of the configuration at once
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if err := validateStorage(&c.Storage); err != nil {
		errs = append(errs, err)
	}

	if d, err := time.ParseDuration(c.Clone.Timeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("clone.timeout: invalid duration %q", c.Clone.Timeout))
	}
	if c.Clone.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("clone.maxAttempts must be positive"))
	}
	if c.Clone.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("clone.maxConcurrent must be positive"))
	}
	if c.Clone.PasswordFile != "" && c.Clone.Username == "" {
		errs = append(errs, fmt.Errorf("clone.username is required with clone.passwordFile"))
	}

	if c.Pagination.DefaultPageSize < 1 || c.Pagination.MaxPageSize < 1 {
		errs = append(errs, fmt.Errorf("pagination: page sizes must be positive"))
	} else if c.Pagination.DefaultPageSize > c.Pagination.MaxPageSize {
		errs = append(errs, fmt.Errorf("pagination.defaultPageSize exceeds pagination.maxPageSize"))
	}

	if strings.ContainsAny(c.Git.DefaultBranch, " \t\n") {
		errs = append(errs, fmt.Errorf("git.defaultBranch: invalid branch name %q", c.Git.DefaultBranch))
	}
	if c.Git.Workers < 1 {
		errs = append(errs, fmt.Errorf("git.workers must be positive"))
	}

	if err := validateAuth(c.Auth); err != nil {
		errs = append(errs, err)
	}

	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}

	return errors.Join(errs...)
}

func validateStorage(s *StorageConfig) error {
	base, err := filepath.Abs(s.BasePath)
	if err != nil {
		return fmt.Errorf("storage.basePath: %w", err)
	}
	status, err := filepath.Abs(s.StatusDir)
	if err != nil {
		return fmt.Errorf("storage.statusDir: %w", err)
	}

	// status records inside the repository tree would be listed as repositories
	if rel, err := filepath.Rel(base, status); err == nil && filepath.IsLocal(rel) {
		return fmt.Errorf("storage.statusDir must not be inside storage.basePath")
	}
	return nil
}

func validateAuth(a *AuthConfig) error {
	if a == nil {
		return fmt.Errorf("auth: configuration is required")
	}

	switch a.Mode {
	case AuthModeJWT:
	case AuthModeAnonymous:
		if err := validateOwner(a.AnonymousOwner); err != nil {
			return fmt.Errorf("auth.anonymousOwner: %w", err)
		}
	case "":
		return fmt.Errorf("auth.mode is required")
	default:
		return fmt.Errorf("auth.mode: unsupported mode %q", a.Mode)
	}
	return nil
}

func validateOwner(owner string) error {
	if owner == "" || owner == "." || owner == ".." || strings.ContainsAny(owner, `/\`) {
		return fmt.Errorf("invalid owner %q", owner)
	}
	return nil
}

// GetCloneTimeout returns the parsed clone timeout
func (c *CloneConfig) GetCloneTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return DefaultCloneTimeout
	}
	return d
}

// GetRequireGitSuffix reports whether HTTP(S) clone URLs must end with .git
func (c *CloneConfig) GetRequireGitSuffix() bool {
	return c.RequireGitSuffix == nil || *c.RequireGitSuffix
}

// GetPassword returns the remote password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from the GITREPO_CLONE_PASSWORD environment variable
//
// An empty result means no credentials are configured.
func (c *CloneConfig) GetPassword() (string, error) {
	if c.PasswordFile != "" {
		return readSecretFile(c.PasswordFile)
	}
	return os.Getenv(EnvPrefix + "_CLONE_PASSWORD"), nil
}

// GetSecret returns the JWT signing secret using the following priority:
// 1. Read from SecretFile if specified
// 2. Read from the GITREPO_JWT_SECRET environment variable
func (j *JWTConfig) GetSecret() ([]byte, error) {
	if j.SecretFile != "" {
		secret, err := readSecretFile(j.SecretFile)
		if err != nil {
			return nil, err
		}
		if secret == "" {
			return nil, fmt.Errorf("secret file %s is empty", j.SecretFile)
		}
		return []byte(secret), nil
	}

	if secret := os.Getenv(EnvPrefix + "_JWT_SECRET"); secret != "" {
		return []byte(secret), nil
	}

	return nil, fmt.Errorf("no JWT secret configured: set secretFile or %s_JWT_SECRET", EnvPrefix)
}

// readSecretFile reads a secret, trimming surrounding whitespace
func readSecretFile(path string) (string, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret from file %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
