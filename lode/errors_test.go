package lode

import (
	"errors"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "op failed" }
func (timeoutErr) Timeout() bool { return true }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind error
	}{
		{"typed timeout", timeoutErr{}, ErrTimeout},
		{"deadline", errors.New("context deadline exceeded"), ErrTimeout},
		{"s3 access denied", errors.New("AccessDenied: you do not have access"), ErrAccessDenied},
		{"http 403", errors.New("received status 403"), ErrAccessDenied},
		{"local permission", errors.New("open /var/lib/vpd/pel: permission denied"), ErrPermissionDenied},
		{"enoent", errors.New("open /var/lib/vpd/pel/x: no such file or directory"), ErrNotFound},
		{"nosuchkey", errors.New("NoSuchKey: key missing"), ErrNotFound},
		{"disk full", errors.New("write /var/lib/vpd/pel: no space left on device"), ErrDiskFull},
		{"expired token", errors.New("ExpiredToken: token expired"), ErrAuth},
		{"refused", errors.New("dial tcp 10.0.0.1:9000: connection refused"), ErrNetwork},
		{"other", errors.New("something odd"), ErrStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.err); !errors.Is(got, tt.wantKind) {
				t.Errorf("classifyError() = %v, want %v", got, tt.wantKind)
			}
		})
	}
}

func TestStorageError_Chain(t *testing.T) {
	cause := errors.New("write /var/lib/vpd/pel: no space left on device")
	err := WrapWriteError(cause, "vpd-pel/abc")

	if !errors.Is(err, ErrDiskFull) {
		t.Error("expected errors.Is(err, ErrDiskFull)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause preserved in chain")
	}

	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatal("expected *StorageError")
	}
	if se.Op != "write" || se.Path != "vpd-pel/abc" {
		t.Errorf("Op/Path = %q/%q", se.Op, se.Path)
	}
}

func TestWrap_Nil(t *testing.T) {
	if WrapWriteError(nil, "x") != nil || WrapReadError(nil, "x") != nil || WrapInitError(nil, "x") != nil {
		t.Error("nil error must stay nil")
	}
}
