package build

import "fmt"

// Stamped at link time:
//
//	go build -ldflags "-X github.com/rohmanhakim/wayback-robots/internal/build.Version=1.2.0 \
//	  -X github.com/rohmanhakim/wayback-robots/internal/build.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/rohmanhakim/wayback-robots/internal/build.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	  ./cmd/waybackrobots
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// FullVersion returns the version string with commit hash appended.
// Format: "Version+Commit" (e.g., "1.0.0+abc123")
func FullVersion() string {
	return Version + "+" + Commit
}

// Describe renders the one-line answer to --version for program.
func Describe(program string) string {
	return fmt.Sprintf("%s %s (built %s)", program, FullVersion(), BuildTime)
}
