// Package main provides vpd-tool, the command-line client for a running
// vpd-manager.
//
// Usage:
//
//	vpd-tool <command> [options]
//
// Exit codes:
//   - 0: success
//   - 1: the daemon rejected or failed the operation, or was unreachable
//   - 2: bad flags or arguments
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/vpd/cli/cmd"
	"github.com/pithecene-io/vpd/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "vpd-tool",
		Usage:          "Read and write FRU VPD through vpd-manager",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands:       cmd.ToolCommands(commit),
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(cmd.Status(err, os.Stderr))
	}
}

func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(cmd.Status(err, os.Stderr))
}
