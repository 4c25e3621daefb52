// Package fault classifies VPD manager failures into hardware error types.
//
// Failures carry their ErrorType from the point they are raised via *Error.
// Errors that did not originate here (syscall errnos, JSON decode errors) are
// classified through a static table. Anything else is InternalFailure.
package fault

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/vpd/types"
)

// Sentinel errors for request classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrFruNotFound indicates the path is absent from FRU topology.
	ErrFruNotFound = errors.New("fru not found")

	// ErrNotConcurrentlyMaintainable indicates the FRU cannot be collected or
	// deleted while the system is running.
	ErrNotConcurrentlyMaintainable = errors.New("fru is not concurrently maintainable")

	// ErrInvalidParams indicates inconsistent read or write addressing.
	ErrInvalidParams = types.ErrInvalidParams

	// ErrCollectionInProgress indicates a collection for the FRU is already running.
	ErrCollectionInProgress = errors.New("collection already in progress")

	// ErrRedundantWrite indicates the primary copy was written but a
	// redundant copy was not.
	ErrRedundantWrite = errors.New("redundant eeprom write failed")
)

// Error is a failure tagged with its ErrorType.
// It preserves the underlying error in the chain for errors.Is/As.
type Error struct {
	// Type is the hardware classification of the failure.
	Type types.ErrorType
	// Op is the operation that failed (e.g., "read", "write", "collect").
	Op string
	// Path is the EEPROM or inventory path involved, if any.
	Path string
	// Msg is a human readable description. Optional.
	Msg string
	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Type.String()
	}
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, msg, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with no underlying cause.
func New(t types.ErrorType, op, path, msg string) *Error {
	return &Error{Type: t, Op: op, Path: path, Msg: msg}
}

// Wrap classifies err under t. Returns nil if err is nil.
func Wrap(t types.ErrorType, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Type: t, Op: op, Path: path, Err: err}
}

// ReadFailure wraps an EEPROM read error.
func ReadFailure(path string, err error) error {
	return Wrap(types.ReadFailure, "read", path, err)
}

// WriteFailure wraps an EEPROM write error.
func WriteFailure(path string, err error) error {
	return Wrap(types.WriteFailure, "write", path, err)
}

// InvalidEeprom wraps a parse failure of EEPROM content.
func InvalidEeprom(path string, err error) error {
	return Wrap(types.InvalidEeprom, "parse", path, err)
}

// JsonFailure wraps a system config decode failure.
//
//nolint:revive // name mirrors the error type
func JsonFailure(path string, err error) error {
	return Wrap(types.JsonFailure, "config", path, err)
}

// DeviceBusy wraps an error from a device that refused the request.
func DeviceBusy(path string, err error) error {
	return Wrap(types.DeviceBusy, "io", path, err)
}

// NotFound reports a path absent from topology. Wraps ErrFruNotFound.
func NotFound(op, path string) error {
	return &Error{Type: types.InternalFailure, Op: op, Path: path, Err: ErrFruNotFound}
}

// Internal wraps an unexpected failure.
func Internal(op, path string, err error) error {
	return Wrap(types.InternalFailure, op, path, err)
}
