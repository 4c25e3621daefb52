//nolint:revive // types is a common Go package naming convention
package types

import (
	"fmt"
	"strconv"
)

// ErrorType is the hardware-meaningful category of a fault record.
// Every fault record carries exactly one.
type ErrorType int

// Error types. InternalFailure is the classification for anything that
// carries no explicit mapping.
const (
	DefaultValue ErrorType = iota
	InvalidVpdMessage
	VpdMismatch
	InvalidEeprom
	EccCheckFailed
	JsonFailure
	DbusFailure
	InvalidSystem
	EssentialFru
	GpioError
	InternalFailure
	FruMissing
	SystemTypeMismatch
	UnknownSystemSettings
	FirmwareError
	ReadFailure
	WriteFailure
	DeviceBusy
	UndefinedError

	// ErrorTypeCount is the number of error types. Keep last.
	ErrorTypeCount
)

var errorTypeNames = [ErrorTypeCount]string{
	DefaultValue:          "DefaultValue",
	InvalidVpdMessage:     "InvalidVpdMessage",
	VpdMismatch:           "VpdMismatch",
	InvalidEeprom:         "InvalidEeprom",
	EccCheckFailed:        "EccCheckFailed",
	JsonFailure:           "JsonFailure",
	DbusFailure:           "DbusFailure",
	InvalidSystem:         "InvalidSystem",
	EssentialFru:          "EssentialFru",
	GpioError:             "GpioError",
	InternalFailure:       "InternalFailure",
	FruMissing:            "FruMissing",
	SystemTypeMismatch:    "SystemTypeMismatch",
	UnknownSystemSettings: "UnknownSystemSettings",
	FirmwareError:         "FirmwareError",
	ReadFailure:           "ReadFailure",
	WriteFailure:          "WriteFailure",
	DeviceBusy:            "DeviceBusy",
	UndefinedError:        "UndefinedError",
}

// Valid reports whether e is a member of the enumeration.
func (e ErrorType) Valid() bool {
	return e >= 0 && e < ErrorTypeCount
}

func (e ErrorType) String() string {
	if !e.Valid() {
		return "ErrorType(" + strconv.Itoa(int(e)) + ")"
	}
	return errorTypeNames[e]
}

// ParseErrorType parses the short name produced by String.
func ParseErrorType(s string) (ErrorType, error) {
	for i, name := range errorTypeNames {
		if name == s {
			return ErrorType(i), nil
		}
	}
	return UndefinedError, fmt.Errorf("unknown error type %q", s)
}

// SeverityType is the severity of a fault record.
type SeverityType int

// Severities, ordered as the logging service enumerates them.
const (
	SeverityNotice SeverityType = iota
	SeverityInformational
	SeverityDebug
	SeverityWarning
	SeverityCritical
	SeverityEmergency
	SeverityAlert
	SeverityError

	// SeverityTypeCount is the number of severities. Keep last.
	SeverityTypeCount
)

var severityNames = [SeverityTypeCount]string{
	SeverityNotice:        "Notice",
	SeverityInformational: "Informational",
	SeverityDebug:         "Debug",
	SeverityWarning:       "Warning",
	SeverityCritical:      "Critical",
	SeverityEmergency:     "Emergency",
	SeverityAlert:         "Alert",
	SeverityError:         "Error",
}

// Valid reports whether s is a member of the enumeration.
func (s SeverityType) Valid() bool {
	return s >= 0 && s < SeverityTypeCount
}

func (s SeverityType) String() string {
	if !s.Valid() {
		return "SeverityType(" + strconv.Itoa(int(s)) + ")"
	}
	return severityNames[s]
}

// CalloutPriority ranks corroborating evidence within a fault record.
type CalloutPriority int

// Callout priorities.
const (
	PriorityHigh CalloutPriority = iota
	PriorityMedium
	PriorityMediumGroupA
	PriorityMediumGroupB
	PriorityMediumGroupC
	PriorityLow

	// CalloutPriorityCount is the number of priorities. Keep last.
	CalloutPriorityCount
)

var priorityNames = [CalloutPriorityCount]string{
	PriorityHigh:         "High",
	PriorityMedium:       "Medium",
	PriorityMediumGroupA: "MediumGroupA",
	PriorityMediumGroupB: "MediumGroupB",
	PriorityMediumGroupC: "MediumGroupC",
	PriorityLow:          "Low",
}

// Valid reports whether p is a member of the enumeration.
func (p CalloutPriority) Valid() bool {
	return p >= 0 && p < CalloutPriorityCount
}

func (p CalloutPriority) String() string {
	if !p.Valid() {
		return "CalloutPriority(" + strconv.Itoa(int(p)) + ")"
	}
	return priorityNames[p]
}

// CalloutKind discriminates callout variants.
type CalloutKind string

// Callout kinds.
const (
	CalloutInventory CalloutKind = "inventory"
	CalloutDevice    CalloutKind = "device"
	CalloutI2cBus    CalloutKind = "i2c_bus"
)

// Callout is one piece of corroborating evidence attached to a fault record.
type Callout interface {
	Kind() CalloutKind
}

// InventoryCallout points at an inventory object (or an EEPROM path that
// will be translated to one). Priority is optional.
type InventoryCallout struct {
	Path     Path
	Priority *CalloutPriority
}

// Kind implements Callout.
func (InventoryCallout) Kind() CalloutKind { return CalloutInventory }

// DeviceCallout points at a device path with the errno observed on it.
type DeviceCallout struct {
	DevicePath Path
	Errno      int
}

// Kind implements Callout.
func (DeviceCallout) Kind() CalloutKind { return CalloutDevice }

// I2cBusCallout points at an I2C bus and address with the errno observed.
type I2cBusCallout struct {
	Bus     int
	Address int
	Errno   int
}

// Kind implements Callout.
func (I2cBusCallout) Kind() CalloutKind { return CalloutI2cBus }

// CalloutEntry is the rendered form of a callout inside a FaultRecord.
type CalloutEntry struct {
	Kind     CalloutKind `json:"kind" msgpack:"kind"`
	Path     string      `json:"path,omitempty" msgpack:"path,omitempty"`
	Priority string      `json:"priority,omitempty" msgpack:"priority,omitempty"`
	Bus      *int        `json:"bus,omitempty" msgpack:"bus,omitempty"`
	Address  *int        `json:"address,omitempty" msgpack:"address,omitempty"`
	Errno    *int        `json:"errno,omitempty" msgpack:"errno,omitempty"`
}

// Provenance records where a fault was raised. It is diagnostic only and
// never used for classification.
type Provenance struct {
	File       string `json:"file" msgpack:"file"`
	Function   string `json:"function" msgpack:"function"`
	InternalRC uint8  `json:"internal_rc" msgpack:"internal_rc"`
}

// FaultRecord is the structured fault (PEL) handed to the transport.
// Message and Severity carry the display strings of the ErrorType and
// SeverityType.
type FaultRecord struct {
	RecordVersion string            `json:"record_version" msgpack:"record_version"`
	ID            string            `json:"id" msgpack:"id"`
	Timestamp     string            `json:"timestamp" msgpack:"timestamp"`
	ErrorType     string            `json:"error_type" msgpack:"error_type"`
	Message       string            `json:"message" msgpack:"message"`
	Severity      string            `json:"severity" msgpack:"severity"`
	Description   string            `json:"description,omitempty" msgpack:"description,omitempty"`
	Callouts      []CalloutEntry    `json:"callouts,omitempty" msgpack:"callouts,omitempty"`
	UserData      map[string]string `json:"user_data,omitempty" msgpack:"user_data,omitempty"`
	Provenance    Provenance        `json:"provenance" msgpack:"provenance"`
}
