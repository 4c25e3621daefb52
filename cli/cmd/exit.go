package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/vpd/cli/remote"
)

// Exit codes shared by vpd-manager and vpd-tool.
const (
	ExitSuccess = 0
	// ExitFailure is an operation the daemon or a backend refused or
	// failed.
	ExitFailure = 1
	// ExitUsage is a bad flag, argument or config file.
	ExitUsage = 2
)

// usageError exits with ExitUsage.
func usageError(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), ExitUsage)
}

// operationError exits with ExitUsage for requests the daemon rejected as
// malformed and ExitFailure for everything else.
func operationError(op string, err error) error {
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
		return cli.Exit(fmt.Sprintf("%s: %v", op, err), ExitUsage)
	}
	return cli.Exit(fmt.Sprintf("%s: %v", op, err), ExitFailure)
}

// rejectTUI returns an error when --tui is set on a command without an
// interactive view.
func rejectTUI(c *cli.Context) error {
	if c.Bool("tui") {
		return usageError("--tui is not supported for %s command", c.Command.Name)
	}
	return nil
}

// Status reports the process exit status for err and prints its message
// to w. Errors that are not cli.ExitCoder come from flag parsing in the
// cli package and exit with ExitUsage.
func Status(err error, w io.Writer) int {
	if err == nil {
		return ExitSuccess
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		// cli.Exit("", N).Error() is "exit status N"; nothing to print.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(w, msg)
		}
		return code
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	return ExitUsage
}
