// jobview browses the results of a StarExec job from the terminal.
package main

import (
	"os"

	"github.com/starexec/jobview/internal/cli"
	"github.com/starexec/jobview/internal/version"
)

// Set with -ldflags "-X main.Version=... -X main.BuildTime=...".
var (
	Version   = "v0.3.0-dev"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
