package nats

import (
	"testing"
	"time"

	"github.com/pithecene-io/vpd/types"
)

func TestSubjectFor(t *testing.T) {
	tests := []struct {
		name      string
		errorType string
		want      string
	}{
		{"typed", "WriteFailure", "vpd.pel.WriteFailure"},
		{"empty", "", "vpd.pel.UndefinedError"},
		{"dotted", "com.ibm.Custom", "vpd.pel.com_ibm_Custom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SubjectFor(DefaultSubject, &types.FaultRecord{ErrorType: tt.errorType})
			if got != tt.want {
				t.Errorf("SubjectFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNew_UnreachableServer(t *testing.T) {
	_, err := New(Config{URL: "nats://127.0.0.1:1", ConnectTimeout: 200 * time.Millisecond})
	if err == nil {
		t.Fatal("expected connection error")
	}
}
