package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/vpd/cli/remote"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"nil", nil, ExitSuccess, ""},
		{"exit without message", cli.Exit("", ExitFailure), ExitFailure, ""},
		{"failure", cli.Exit("collect: fru busy", ExitFailure), ExitFailure, "collect: fru busy\n"},
		{"usage", usageError("bad record %q", "VIN"), ExitUsage, "bad record \"VIN\"\n"},
		{"wrapped", errors.Join(errors.New("context"), cli.Exit("inner", 42)), 42, "inner\n"},
		{"flag parse error", errors.New(`Required flag "path" not set`), ExitUsage, "Error: Required flag \"path\" not set\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := Status(tt.err, &buf); got != tt.wantCode {
				t.Errorf("code = %d, want %d", got, tt.wantCode)
			}
			if buf.String() != tt.wantMsg {
				t.Errorf("message = %q, want %q", buf.String(), tt.wantMsg)
			}
		})
	}
}

func TestOperationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", &remote.APIError{StatusCode: http.StatusBadRequest, Message: "invalid params"}, ExitUsage},
		{"conflict", &remote.APIError{StatusCode: http.StatusConflict, Message: "busy"}, ExitFailure},
		{"wrapped bad request", fmt.Errorf("read: %w", &remote.APIError{StatusCode: http.StatusBadRequest}), ExitUsage},
		{"transport", errors.New("connection refused"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(operationError("op", tt.err)); got != tt.want {
				t.Errorf("exit code = %d, want %d", got, tt.want)
			}
		})
	}
}
