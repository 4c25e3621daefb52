package cmd

import "github.com/urfave/cli/v2"

// ManagerCommands returns the vpd-manager command set.
func ManagerCommands(commit string) []*cli.Command {
	return []*cli.Command{
		ServeCommand(),
		VersionCommand(commit),
	}
}

// ToolCommands returns the vpd-tool command set.
func ToolCommands(commit string) []*cli.Command {
	return []*cli.Command{
		ReadCommand(),
		WriteCommand(),
		CollectCommand(),
		DeleteCommand(),
		RecollectCommand(),
		LocationCodeCommand(),
		HwPathCommand(),
		StatusCommand(),
		FaultsCommand(),
		VersionCommand(commit),
	}
}
