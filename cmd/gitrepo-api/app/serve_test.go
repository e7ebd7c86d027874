package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/gitrepo-server/internal/versions"
)

func writeServeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestBuildApp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeServeConfig(t, fmt.Sprintf(`
storage:
  basePath: %s
  statusDir: %s
  locksDir: %s
auth:
  mode: anonymous
telemetry:
  enabled: true
  metrics:
    enabled: true
    exporters: [prometheus]
`, filepath.Join(dir, "repos"), filepath.Join(dir, "status"), filepath.Join(dir, "locks")))

	app, tel, err := buildApp(context.Background(), "127.0.0.1:0", path)
	require.NoError(t, err)
	require.NotNil(t, app)
	require.NotNil(t, tel)
	t.Cleanup(func() {
		require.NoError(t, app.Stop(time.Second))
		require.NoError(t, tel.Shutdown(context.Background()))
	})

	assert.Equal(t, "127.0.0.1:0", app.GetHTTPServer().Addr)
	assert.Equal(t, filepath.Join(dir, "repos"), app.GetConfig().Storage.BasePath)
	assert.NotNil(t, tel.MetricsHandler())
}

func TestBuildApp_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		config  func(t *testing.T) string
		wantErr string
	}{
		{
			name:    "missing config file",
			address: ":8080",
			config: func(t *testing.T) string {
				t.Helper()
				return filepath.Join(t.TempDir(), "missing.yaml")
			},
			wantErr: "failed to load configuration",
		},
		{
			name:    "invalid config",
			address: ":8080",
			config: func(t *testing.T) string {
				t.Helper()
				return writeServeConfig(t, "auth:\n  mode: oauth\n")
			},
			wantErr: "failed to load configuration",
		},
		{
			name:    "invalid address",
			address: "nowhere",
			config: func(t *testing.T) string {
				t.Helper()
				dir := t.TempDir()
				return writeServeConfig(t, fmt.Sprintf(
					"storage:\n  basePath: %s\n  statusDir: %s\n  locksDir: %s\nauth:\n  mode: anonymous\n",
					filepath.Join(dir, "repos"), filepath.Join(dir, "status"), filepath.Join(dir, "locks")))
			},
			wantErr: "failed to build application",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, tel, err := buildApp(context.Background(), tt.address, tt.config(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, app)
			assert.Nil(t, tel)
		})
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() {
		versionCmd.SetOut(nil)
		require.NoError(t, versionCmd.Flags().Set("format", ""))
	})
	require.NoError(t, versionCmd.Flags().Set("format", "json"))

	versionCmd.Run(versionCmd, nil)

	var info versions.Info
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, versions.GetVersionInfo(), info)
}
