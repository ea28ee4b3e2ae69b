package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/mejalight/mejalight/internal/version.Version=v0.3.0 \
//	                   -X github.com/mejalight/mejalight/internal/version.Commit=abc123"
//
// Unset values are filled from the VCS stamp in the build info, then fall
// back to "dev".
var (
	// Version is the semantic version of the agent
	Version = ""
	// Commit is the short git commit hash
	Commit = ""
)

func init() {
	if Version == "" || Commit == "" {
		fillFromBuildInfo(readBuildSettings())
	}

	if Version == "" {
		Version = fmt.Sprintf("dev-%s", time.Now().Format("20060102"))
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func readBuildSettings() map[string]string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return settings
}

// fillFromBuildInfo derives Commit and Version from the vcs.* build settings.
func fillFromBuildInfo(settings map[string]string) {
	if Commit == "" {
		if rev := settings["vcs.revision"]; rev != "" {
			if len(rev) > 7 {
				rev = rev[:7]
			}
			if settings["vcs.modified"] == "true" {
				rev += "-dirty"
			}
			Commit = rev
		}
	}

	if Version == "" {
		if t, err := time.Parse(time.RFC3339, settings["vcs.time"]); err == nil {
			Version = fmt.Sprintf("dev-%s", t.Format("20060102"))
		}
	}
}

// Full returns the version string including the commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent is the User-Agent header the agent sends when polling
func UserAgent() string {
	return "mejalight-agent/" + Version
}
