package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/vpd/cli/remote"
	"github.com/pithecene-io/vpd/cli/render"
	"github.com/pithecene-io/vpd/types"
	"github.com/pithecene-io/vpd/worker"
)

// KeywordResponse is the output of read and write.
type KeywordResponse struct {
	Path    types.Path         `json:"path" yaml:"path"`
	Record  string             `json:"record,omitempty" yaml:"record,omitempty"`
	Keyword string             `json:"keyword" yaml:"keyword"`
	Value   types.BinaryVector `json:"value,omitempty" yaml:"value,omitempty"`
	// Bytes is the write count. Unset for reads.
	Bytes int `json:"bytes_written,omitempty" yaml:"bytes_written,omitempty"`
}

var (
	recordFlag = &cli.StringFlag{
		Name:    "record",
		Aliases: []string{"r"},
		Usage:   "IPZ record name (omit for keyword-format VPD)",
	}
	keywordFlag = &cli.StringFlag{
		Name:     "keyword",
		Aliases:  []string{"k"},
		Usage:    "Keyword name",
		Required: true,
	}
)

// ReadCommand returns the read command.
func ReadCommand() *cli.Command {
	return &cli.Command{
		Name:   "read",
		Usage:  "Read a keyword from a FRU's primary EEPROM",
		Flags:  RemoteFlags(PathFlag, recordFlag, keywordFlag),
		Action: readAction,
	}
}

// WriteCommand returns the write command.
func WriteCommand() *cli.Command {
	return &cli.Command{
		Name:  "write",
		Usage: "Write a keyword to a FRU's EEPROMs and inventory",
		Flags: RemoteFlags(PathFlag, recordFlag, keywordFlag,
			&cli.StringFlag{
				Name:     "value",
				Aliases:  []string{"v"},
				Usage:    "New value: text, or 0x-prefixed hex",
				Required: true,
			},
		),
		Action: writeAction,
	}
}

func readAction(c *cli.Context) error {
	if err := rejectTUI(c); err != nil {
		return err
	}
	r, client, err := setup(c)
	if err != nil {
		return err
	}

	params := types.ReadParams{Record: c.String("record"), Keyword: c.String("keyword")}
	if err := params.Validate(); err != nil {
		return usageError("read: %v", err)
	}

	val, err := client.ReadKeyword(c.Context, c.String("path"), params)
	if err != nil {
		return operationError("read", err)
	}
	return r.Render(KeywordResponse{
		Path:    c.String("path"),
		Record:  params.Record,
		Keyword: params.Keyword,
		Value:   val,
	})
}

func writeAction(c *cli.Context) error {
	if err := rejectTUI(c); err != nil {
		return err
	}
	r, client, err := setup(c)
	if err != nil {
		return err
	}

	value, err := worker.DecodeValue(c.String("value"))
	if err != nil {
		return usageError("write: invalid --value: %v", err)
	}
	params := types.WriteParams{
		ReadParams: types.ReadParams{Record: c.String("record"), Keyword: c.String("keyword")},
		Value:      value,
	}
	if err := params.Validate(); err != nil {
		return usageError("write: %v", err)
	}

	n, err := client.UpdateKeyword(c.Context, c.String("path"), params)
	if err != nil {
		return operationError("write", err)
	}
	return r.Render(KeywordResponse{
		Path:    c.String("path"),
		Record:  params.Record,
		Keyword: params.Keyword,
		Value:   params.Value,
		Bytes:   n,
	})
}

// setup builds the renderer and API client shared by remote commands.
func setup(c *cli.Context) (*render.Renderer, *remote.Client, error) {
	r, err := render.NewRenderer(c)
	if err != nil {
		return nil, nil, usageError("%v", err)
	}
	client, err := remote.New(c.String("addr"), c.Duration("timeout"))
	if err != nil {
		return nil, nil, usageError("%v", err)
	}
	return r, client, nil
}
