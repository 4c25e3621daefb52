package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/vpd/cli/render"
	"github.com/pithecene-io/vpd/cli/tui"
	"github.com/pithecene-io/vpd/lode"
)

// FaultRow is one archived fault in list output.
type FaultRow struct {
	ID        string `json:"id" yaml:"id"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Severity  string `json:"severity" yaml:"severity"`
	ErrorType string `json:"error_type" yaml:"error_type"`
	Callout   string `json:"callout" yaml:"callout"`
	Function  string `json:"function" yaml:"function"`
}

// FaultsCommand returns the faults command. It reads the Lode fault
// archive directly and does not need a running daemon.
func FaultsCommand() *cli.Command {
	flags := append(OutputFlags(), ConfigFlag)
	flags = append(flags, archiveFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:  "severity",
			Usage: "Only faults of this severity (e.g. Error, Warning)",
		},
		&cli.StringFlag{
			Name:  "day",
			Usage: "Only faults from this day (YYYY-MM-DD, UTC)",
		},
		&cli.StringFlag{
			Name:  "type",
			Usage: "Only faults of this error type (e.g. ReadFailure)",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of faults (0 = all)",
			Value: 50,
		},
	)
	return &cli.Command{
		Name:   "faults",
		Usage:  "List archived fault records (newest first)",
		Flags:  flags,
		Action: faultsAction,
	}
}

func faultsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError("%v", err)
	}
	if c.Int("limit") < 0 {
		return usageError("--limit must be >= 0")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	applyArchiveFlags(c, cfg)
	archive := archiveFromConfig(cfg.Archive)
	if err := archive.validate(); err != nil {
		return usageError("faults: %v", err)
	}
	ds, err := openDataset(c.Context, archive)
	if err != nil {
		return operationError("faults", err)
	}

	faults, err := lode.QueryFaults(c.Context, ds, lode.FaultFilter{
		Severity:  c.String("severity"),
		Day:       c.String("day"),
		ErrorType: c.String("type"),
		Limit:     c.Int("limit"),
	})
	if err != nil {
		return operationError("faults", err)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewFaults, faults)
	}
	if r.Format() == render.FormatTable {
		return r.Render(faultRows(faults))
	}
	return r.Render(faults)
}

func faultRows(faults []lode.ArchivedFault) []FaultRow {
	rows := make([]FaultRow, 0, len(faults))
	for _, f := range faults {
		row := FaultRow{
			ID:        f.ID,
			Timestamp: f.Timestamp,
			Severity:  f.Severity,
			ErrorType: f.ErrorType,
			Function:  f.Provenance.Function,
		}
		if len(f.Callouts) > 0 {
			row.Callout = f.Callouts[0].Path
		}
		rows = append(rows, row)
	}
	return rows
}
