package fault

import (
	stdjson "encoding/json"
	"errors"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/pithecene-io/vpd/types"
)

// DefaultMessage is returned by Message for errors with no mapped description.
const DefaultMessage = "Unknown error"

const (
	vpdErrorPrefix    = "com.ibm.VPD.Error."
	commonErrorPrefix = "xyz.openbmc_project.Common.Error."
	severityPrefix    = "xyz.openbmc_project.Logging.Entry.Level."
)

// errorTypeStrings maps every ErrorType to its logging message ID.
var errorTypeStrings = [types.ErrorTypeCount]string{
	types.DefaultValue:          vpdErrorPrefix + "DefaultValue",
	types.InvalidVpdMessage:     vpdErrorPrefix + "InvalidVPD",
	types.VpdMismatch:           vpdErrorPrefix + "Mismatch",
	types.InvalidEeprom:         vpdErrorPrefix + "InvalidEepromPath",
	types.EccCheckFailed:        vpdErrorPrefix + "EccCheckFailed",
	types.JsonFailure:           vpdErrorPrefix + "InvalidJson",
	types.DbusFailure:           vpdErrorPrefix + "DbusFailure",
	types.InvalidSystem:         vpdErrorPrefix + "UnknownSystemType",
	types.EssentialFru:          vpdErrorPrefix + "RequiredFRUMissing",
	types.GpioError:             vpdErrorPrefix + "GPIOError",
	types.InternalFailure:       commonErrorPrefix + "InternalFailure",
	types.FruMissing:            vpdErrorPrefix + "RequiredFRUMissing",
	types.SystemTypeMismatch:    vpdErrorPrefix + "SystemTypeMismatch",
	types.UnknownSystemSettings: vpdErrorPrefix + "UnknownSystemSettings",
	types.FirmwareError:         vpdErrorPrefix + "FirmwareError",
	types.ReadFailure:           vpdErrorPrefix + "ReadFailure",
	types.WriteFailure:          vpdErrorPrefix + "WriteFailure",
	types.DeviceBusy:            vpdErrorPrefix + "DeviceBusy",
	types.UndefinedError:        vpdErrorPrefix + "UndefinedError",
}

var severityStrings = [types.SeverityTypeCount]string{
	types.SeverityNotice:        severityPrefix + "Notice",
	types.SeverityInformational: severityPrefix + "Informational",
	types.SeverityDebug:         severityPrefix + "Debug",
	types.SeverityWarning:       severityPrefix + "Warning",
	types.SeverityCritical:      severityPrefix + "Critical",
	types.SeverityEmergency:     severityPrefix + "Emergency",
	types.SeverityAlert:         severityPrefix + "Alert",
	types.SeverityError:         severityPrefix + "Error",
}

var priorityStrings = [types.CalloutPriorityCount]string{
	types.PriorityHigh:         "H",
	types.PriorityMedium:       "M",
	types.PriorityMediumGroupA: "A",
	types.PriorityMediumGroupB: "B",
	types.PriorityMediumGroupC: "C",
	types.PriorityLow:          "L",
}

// Keyed array literals compile with gaps; refuse to start with one.
func init() {
	for i, s := range errorTypeStrings {
		if s == "" {
			panic("fault: no message id for " + types.ErrorType(i).String())
		}
	}
	for i, s := range severityStrings {
		if s == "" {
			panic("fault: no level for " + types.SeverityType(i).String())
		}
	}
	for i, s := range priorityStrings {
		if s == "" {
			panic("fault: no priority code for " + types.CalloutPriority(i).String())
		}
	}
}

// ErrorTypeString returns the logging message ID for t.
// Out of range values map to the UndefinedError ID.
func ErrorTypeString(t types.ErrorType) string {
	if !t.Valid() {
		return errorTypeStrings[types.UndefinedError]
	}
	return errorTypeStrings[t]
}

// SeverityString returns the logging level name for s.
// Out of range values map to Error.
func SeverityString(s types.SeverityType) string {
	if !s.Valid() {
		return severityStrings[types.SeverityError]
	}
	return severityStrings[s]
}

// PriorityString returns the callout priority code for p.
// Out of range values map to High.
func PriorityString(p types.CalloutPriority) string {
	if !p.Valid() {
		return priorityStrings[types.PriorityHigh]
	}
	return priorityStrings[p]
}

// errnoTypes classifies raw errnos surfacing from device I/O.
var errnoTypes = map[syscall.Errno]types.ErrorType{
	syscall.EBUSY:  types.DeviceBusy,
	syscall.EAGAIN: types.DeviceBusy,
	syscall.EIO:    types.ReadFailure,
	syscall.ENXIO:  types.ReadFailure,
	syscall.ENODEV: types.ReadFailure,
	syscall.EROFS:  types.WriteFailure,
}

// sentinelMessages describes request-level sentinels.
var sentinelMessages = []struct {
	err error
	msg string
}{
	{ErrFruNotFound, "FRU not found in system config"},
	{ErrNotConcurrentlyMaintainable, "FRU is not concurrently maintainable"},
	{ErrInvalidParams, "Invalid read or write parameters"},
	{ErrCollectionInProgress, "VPD collection already in progress for FRU"},
	{ErrRedundantWrite, "Failed to update redundant EEPROM"},
}

// TypeOf classifies err. A *Error anywhere in the chain wins; otherwise
// errnos and JSON decode errors are mapped; everything else is
// InternalFailure.
func TypeOf(err error) types.ErrorType {
	if err == nil {
		return types.DefaultValue
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe.Type
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if t, ok := errnoTypes[errno]; ok {
			return t
		}
	}

	if isJSONError(err) {
		return types.JsonFailure
	}

	return types.InternalFailure
}

// Message returns a description of err suitable for a fault record.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var fe *Error
	if errors.As(err, &fe) && fe.Msg != "" {
		return fe.Msg
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno.Error()
	}

	if isJSONError(err) {
		return "Invalid JSON"
	}

	return DefaultMessage
}

func isJSONError(err error) bool {
	var (
		syntax    *json.SyntaxError
		typ       *json.UnmarshalTypeError
		stdSyntax *stdjson.SyntaxError
		stdTyp    *stdjson.UnmarshalTypeError
	)
	return errors.As(err, &syntax) || errors.As(err, &typ) ||
		errors.As(err, &stdSyntax) || errors.As(err, &stdTyp)
}
