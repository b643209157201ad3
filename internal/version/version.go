// Package version carries build metadata injected by the linker.
package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/funnelbot/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/funnelbot/internal/version.Commit=abc123
//	  -X github.com/soyeahso/funnelbot/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns the long version line printed by `funnelbot version`.
func Info() string {
	return fmt.Sprintf("funnelbot %s (commit: %s, built: %s, %s/%s)",
		Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent identifies outbound HTTP and bridge traffic.
func UserAgent() string {
	return "funnelbot/" + Version
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
