package clone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		url              string
		requireGitSuffix bool
		wantErr          bool
	}{
		{name: "https with suffix", url: "https://github.com/acme/demo.git", requireGitSuffix: true},
		{name: "https trailing slash", url: "https://github.com/acme/demo.git/", requireGitSuffix: true},
		{name: "https without suffix", url: "https://github.com/acme/demo", requireGitSuffix: true, wantErr: true},
		{name: "https without suffix allowed", url: "https://github.com/acme/demo"},
		{name: "missing host", url: "https:///demo.git", requireGitSuffix: true, wantErr: true},
		{name: "ssh url", url: "ssh://git@github.com/acme/demo", requireGitSuffix: true},
		{name: "scp-like", url: "git@github.com:acme/demo.git", requireGitSuffix: true},
		{name: "local path", url: "/srv/git/demo", requireGitSuffix: true},
		{name: "empty", url: "  ", wantErr: true},
		{name: "unsupported scheme", url: "ftp://example.com/demo.git", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateURL(tt.url, tt.requireGitSuffix)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			assert.NoError(t, err)
		})
	}
}
