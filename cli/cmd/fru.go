package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/vpd/cli/render"
	"github.com/pithecene-io/vpd/cli/tui"
)

// CollectCommand returns the collect command.
func CollectCommand() *cli.Command {
	return &cli.Command{
		Name:   "collect",
		Usage:  "Start VPD collection of a concurrently maintainable FRU",
		Flags:  RemoteFlags(PathFlag),
		Action: collectAction,
	}
}

// DeleteCommand returns the delete command.
func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:   "delete",
		Usage:  "Clear a FRU's VPD and mark it not present",
		Flags:  RemoteFlags(PathFlag),
		Action: deleteAction,
	}
}

// RecollectCommand returns the recollect command.
func RecollectCommand() *cli.Command {
	return &cli.Command{
		Name:   "recollect",
		Usage:  "Recollect every FRU replaceable at standby",
		Flags:  RemoteFlags(),
		Action: recollectAction,
	}
}

// LocationCodeCommand returns the location-code command.
func LocationCodeCommand() *cli.Command {
	return &cli.Command{
		Name:   "location-code",
		Usage:  "Show a FRU's expanded location code",
		Flags:  RemoteFlags(PathFlag),
		Action: locationCodeAction,
	}
}

// HwPathCommand returns the hw-path command.
func HwPathCommand() *cli.Command {
	return &cli.Command{
		Name:   "hw-path",
		Usage:  "Show the EEPROM path behind an inventory path",
		Flags:  RemoteFlags(PathFlag),
		Action: hwPathAction,
	}
}

// StatusCommand returns the status command. With --path it reports one
// FRU; without, every FRU plus system collection state.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show VPD collection status",
		Flags: RemoteFlags(&cli.StringFlag{
			Name:    "path",
			Aliases: []string{"p"},
			Usage:   "Limit to one FRU",
		}),
		Action: statusAction,
	}
}

func collectAction(c *cli.Context) error {
	if err := rejectTUI(c); err != nil {
		return err
	}
	r, client, err := setup(c)
	if err != nil {
		return err
	}
	resp, err := client.CollectFru(c.Context, c.String("path"))
	if err != nil {
		return operationError("collect", err)
	}
	return r.Render(resp)
}

func deleteAction(c *cli.Context) error {
	if err := rejectTUI(c); err != nil {
		return err
	}
	r, client, err := setup(c)
	if err != nil {
		return err
	}
	resp, err := client.DeleteFru(c.Context, c.String("path"))
	if err != nil {
		return operationError("delete", err)
	}
	return r.Render(resp)
}

func recollectAction(c *cli.Context) error {
	if err := rejectTUI(c); err != nil {
		return err
	}
	r, client, err := setup(c)
	if err != nil {
		return err
	}
	if err := client.Recollect(c.Context); err != nil {
		return operationError("recollect", err)
	}
	return r.Render(map[string]string{"status": "accepted"})
}

func locationCodeAction(c *cli.Context) error {
	if err := rejectTUI(c); err != nil {
		return err
	}
	r, client, err := setup(c)
	if err != nil {
		return err
	}
	resp, err := client.LocationCode(c.Context, c.String("path"))
	if err != nil {
		return operationError("location-code", err)
	}
	return r.Render(resp)
}

func hwPathAction(c *cli.Context) error {
	if err := rejectTUI(c); err != nil {
		return err
	}
	r, client, err := setup(c)
	if err != nil {
		return err
	}
	resp, err := client.HwPath(c.Context, c.String("path"))
	if err != nil {
		return operationError("hw-path", err)
	}
	return r.Render(resp)
}

func statusAction(c *cli.Context) error {
	r, client, err := setup(c)
	if err != nil {
		return err
	}

	if path := c.String("path"); path != "" {
		if c.Bool("tui") {
			return usageError("--tui shows every FRU; drop --path")
		}
		resp, err := client.FruStatus(c.Context, path)
		if err != nil {
			return operationError("status", err)
		}
		return r.Render(resp)
	}

	resp, err := client.Status(c.Context)
	if err != nil {
		return operationError("status", err)
	}
	switch {
	case c.Bool("tui"):
		return r.RenderTUI(tui.ViewStatus, resp)
	case r.Format() == render.FormatTable:
		// Summary line, then one row per FRU.
		if err := r.Render(statusSummary{
			SystemCollectionComplete: resp.SystemCollectionComplete,
			Frus:                     len(resp.Frus),
		}); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer)
		return r.Render(resp.Frus)
	default:
		return r.Render(resp)
	}
}

type statusSummary struct {
	SystemCollectionComplete bool `json:"system_collection_complete"`
	Frus                     int  `json:"frus"`
}
