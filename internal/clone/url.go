package clone

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL checks a clone URL before a job is registered. HTTP(S) URLs
// must name a .git path when requireGitSuffix is set; other transports are
// left to the git client.
func ValidateURL(rawURL string, requireGitSuffix bool) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		// scp-like ssh addresses and local paths do not parse as URLs
		return nil
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return fmt.Errorf("%w: missing host", ErrInvalidURL)
		}
		if requireGitSuffix && !strings.HasSuffix(strings.TrimSuffix(u.Path, "/"), ".git") {
			return fmt.Errorf("%w: url must end with .git", ErrInvalidURL)
		}
	case "ssh", "git", "file":
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	return nil
}
