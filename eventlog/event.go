// Package eventlog turns failures into structured fault records (PELs) and
// hands them to a transport.
//
// Six entry points cover two axes: asynchronous or synchronous submission,
// and the kind of callout attached (inventory object, device path, I2C bus,
// or none). Each call produces at most one record, with at most one callout.
package eventlog

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Event describes where and why a fault was raised.
// UserData1/UserData2, SymbolicFru and Procedure are optional.
type Event struct {
	File        string
	Function    string
	InternalRC  uint8
	Description string
	UserData1   *string
	UserData2   *string

	// SymbolicFru and Procedure are accepted but not rendered into the
	// record yet.
	SymbolicFru *string
	Procedure   *string
}

// UserData is a key/value pair attached to device and I2C bus records.
type UserData struct {
	Key   string
	Value string
}

// DeviceEvent is the Event shape of the device and I2C bus entry points:
// no description, user data as optional key/value pairs.
type DeviceEvent struct {
	File       string
	Function   string
	InternalRC uint8
	UserData1  *UserData
	UserData2  *UserData
}

// Opt returns a pointer to s, for the optional Event fields.
func Opt(s string) *string {
	return &s
}

// Here returns an Event whose File and Function are the caller's.
func Here(internalRC uint8, description string) Event {
	file, fn := caller(2)
	return Event{File: file, Function: fn, InternalRC: internalRC, Description: description}
}

// HereDevice is Here for the device and I2C bus entry points.
func HereDevice(internalRC uint8) DeviceEvent {
	file, fn := caller(2)
	return DeviceEvent{File: file, Function: fn, InternalRC: internalRC}
}

func caller(skip int) (file, function string) {
	pc, path, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown", "unknown"
	}
	function = "unknown"
	if f := runtime.FuncForPC(pc); f != nil {
		function = f.Name()
		// Trim the package path: "github.com/x/vpd/manager.(*Manager).UpdateKeyword"
		// becomes "manager.(*Manager).UpdateKeyword".
		if i := strings.LastIndex(function, "/"); i >= 0 {
			function = function[i+1:]
		}
	}
	return filepath.Base(path), function
}
