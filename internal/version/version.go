// Package version reports build information for agentroute.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/agentroute/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/agentroute/internal/version.Commit=abc123
//	  -X github.com/soyeahso/agentroute/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Build describes the running binary.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Current returns build information. When no commit was stamped through
// ldflags, the VCS revision recorded by the Go toolchain is used instead.
func Current() Build {
	b := Build{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if b.Commit == "unknown" {
		if rev, ok := vcsSetting("vcs.revision"); ok {
			b.Commit = rev
		}
	}
	if b.Date == "unknown" {
		if t, ok := vcsSetting("vcs.time"); ok {
			b.Date = t
		}
	}
	return b
}

// Info returns a formatted version string.
func Info() string {
	b := Current()
	return fmt.Sprintf("agentroute %s (commit: %s, built: %s, %s, %s)",
		b.Version, short(b.Commit), b.Date, b.GoVersion, b.Platform)
}

func vcsSetting(key string) (string, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range info.Settings {
		if s.Key == key && s.Value != "" {
			return s.Value, true
		}
	}
	return "", false
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
