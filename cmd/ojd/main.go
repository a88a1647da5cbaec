// Command ojd is the orchestrator daemon: a user-level background
// process that owns all durable state for declarative runbooks and
// drives job, worker, cron, and agent-supervision state machines
// through a single-threaded event loop. It is the one binary that ever
// opens the WAL for writing; internal/ipc/client and the CLI talk to it
// over a local socket instead of touching state directly.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/orchestratord/oj/internal/cli"
)

// version is set via ldflags (-X main.version=v1.0.0) or detected
// automatically from Go module info embedded by go install.
var version = "dev"

func main() {
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}

	if err := cli.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, "ojd:", err)
		os.Exit(1)
	}
}
