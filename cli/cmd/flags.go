// Package cmd provides the vpd-manager and vpd-tool commands.
package cmd

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/vpd/api"
)

// Shared output flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for status and faults.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (status, faults only)",
	}
)

// Flags for commands that talk to a running vpd-manager.
var (
	// AddrFlag is the vpd-manager API address.
	AddrFlag = &cli.StringFlag{
		Name:    "addr",
		Usage:   "vpd-manager API address (host:port or URL)",
		EnvVars: []string{"VPD_ADDR"},
		Value:   api.DefaultListen,
	}

	// TimeoutFlag bounds each API request.
	TimeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Request timeout",
		Value: 30 * time.Second,
	}

	// PathFlag names the FRU by inventory or EEPROM path.
	PathFlag = &cli.StringFlag{
		Name:     "path",
		Aliases:  []string{"p"},
		Usage:    "FRU inventory or EEPROM path",
		Required: true,
	}
)

// OutputFlags returns the shared flags for every command that prints.
// Includes --tui so that unsupported commands can give an explicit error
// instead of a generic "flag not defined".
func OutputFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// RemoteFlags returns OutputFlags plus the API connection flags.
func RemoteFlags(extra ...cli.Flag) []cli.Flag {
	flags := append(OutputFlags(), AddrFlag, TimeoutFlag)
	return append(flags, extra...)
}
