// Package main provides the vpd-manager daemon entrypoint.
//
// Usage:
//
//	vpd-manager serve --config /etc/vpd/vpd.yaml
//
// Exit codes:
//   - 0: clean shutdown
//   - 1: the daemon failed to start or stopped with an error
//   - 2: bad flags or configuration
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
		Name:           "vpd-manager",
		Usage:          "VPD collection and keyword access for BMC FRUs",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands:       cmd.ManagerCommands(commit),
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(cmd.Status(err, os.Stderr))
	}
}

// exitErrHandler exits with the code carried by cli.Exit errors.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(cmd.Status(err, os.Stderr))
}
