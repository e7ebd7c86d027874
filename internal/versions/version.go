// Package versions provides build information for gitrepo-api and
// semantic version ordering for repository tags.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const unknownStr = "unknown"

// Set at build time with -ldflags "-X github.com/stacklok/gitrepo-server/internal/versions.Version=..."
var (
	// Version is the released version of gitrepo-api
	Version = "dev"
	// Commit is the source revision of the build
	Commit = unknownStr
	// BuildDate is when the binary was built, RFC 3339
	BuildDate = unknownStr
)

// Info is the version payload of the version command and the /version endpoint
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersionInfo returns the build information of the running binary
func GetVersionInfo() Info {
	return buildInfo(Version, Commit, BuildDate, readVCSSettings)
}

// buildInfo fills unknown development values from the embedded VCS settings
func buildInfo(version, commit, buildDate string, vcs func() map[string]string) Info {
	if strings.HasPrefix(version, "dev") {
		settings := vcs()
		if commit == unknownStr && settings["vcs.revision"] != "" {
			commit = settings["vcs.revision"]
		}
		if buildDate == unknownStr && settings["vcs.time"] != "" {
			buildDate = settings["vcs.time"]
		}
	}

	if t, err := time.Parse(time.RFC3339, buildDate); err == nil {
		buildDate = t.UTC().Format("2006-01-02 15:04:05 MST")
	}

	if version == "dev" {
		version = fmt.Sprintf("build-%.8s", commit)
	}

	return Info{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func readVCSSettings() map[string]string {
	settings := map[string]string{}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return settings
	}
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return settings
}
