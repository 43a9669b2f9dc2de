package version

import "fmt"

// Version, GitCommit, and BuildDate are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/ale/aos-ssh-gateway/pkg/version.Version=v1.0.0 \
//	  -X github.com/ale/aos-ssh-gateway/pkg/version.GitCommit=abc1234 \
//	  -X github.com/ale/aos-ssh-gateway/pkg/version.BuildDate=2026-07-31"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns a one-line human-readable summary for the version subcommand.
func Info() string {
	return fmt.Sprintf("aos-ssh-gatewayd %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
