// Package types defines core domain types for the VPD manager.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"strings"
)

// Path identifies either an EEPROM device (hardware path) or an inventory
// object. The two namespaces are separate key spaces; translation happens only
// through FRU topology metadata.
type Path = string

// InventoryPrefix is the root of all inventory object paths.
const InventoryPrefix = "/xyz/openbmc_project/inventory"

// IsInventoryPath reports whether p lives in the inventory namespace.
func IsInventoryPath(p Path) bool {
	return strings.HasPrefix(p, InventoryPrefix)
}

// BinaryVector is raw keyword data as stored in the EEPROM.
type BinaryVector []byte

// IPZ addressing sizes.
const (
	RecordNameSize  = 4
	KeywordNameSize = 2
)

// ErrInvalidParams is returned when read or write parameters are not
// consistently addressed.
var ErrInvalidParams = errors.New("invalid vpd parameters")

// RecordKeyword addresses an IPZ keyword, e.g. ("VINI", "SN").
type RecordKeyword struct {
	Record  string `json:"record" msgpack:"record"`
	Keyword string `json:"keyword" msgpack:"keyword"`
}

func (rk RecordKeyword) String() string {
	return rk.Record + ":" + rk.Keyword
}

// ReadParams addresses one keyword. Exactly one form is used:
// IPZ (Record and Keyword set) or keyword-only (Record empty).
// Build values with IPZRead or KeywordRead.
type ReadParams struct {
	Record  string `json:"record,omitempty" msgpack:"record,omitempty"`
	Keyword string `json:"keyword" msgpack:"keyword"`
}

// IPZRead addresses an IPZ keyword within a record.
func IPZRead(record, keyword string) ReadParams {
	return ReadParams{Record: record, Keyword: keyword}
}

// KeywordRead addresses a keyword in keyword-format VPD.
func KeywordRead(keyword string) ReadParams {
	return ReadParams{Keyword: keyword}
}

// IsIPZ reports whether the params use record/keyword addressing.
func (p ReadParams) IsIPZ() bool {
	return p.Record != ""
}

// RecordKeyword returns the IPZ pair. Only meaningful when IsIPZ is true.
func (p ReadParams) RecordKeyword() RecordKeyword {
	return RecordKeyword{Record: p.Record, Keyword: p.Keyword}
}

// Validate checks addressing consistency:
//   - keyword is always required
//   - IPZ form needs a 4 character record and a 2 character keyword
func (p ReadParams) Validate() error {
	if p.Keyword == "" {
		return fmt.Errorf("%w: keyword must be non-empty", ErrInvalidParams)
	}
	if !p.IsIPZ() {
		return nil
	}
	if len(p.Record) != RecordNameSize {
		return fmt.Errorf("%w: record %q must be %d characters", ErrInvalidParams, p.Record, RecordNameSize)
	}
	if len(p.Keyword) != KeywordNameSize {
		return fmt.Errorf("%w: keyword %q must be %d characters", ErrInvalidParams, p.Keyword, KeywordNameSize)
	}
	return nil
}

func (p ReadParams) String() string {
	if p.IsIPZ() {
		return p.RecordKeyword().String()
	}
	return p.Keyword
}

// WriteParams carries the keyword address and the bytes to store.
type WriteParams struct {
	ReadParams `msgpack:",inline"`
	Value      BinaryVector `json:"value" msgpack:"value"`
}

// IPZWrite addresses an IPZ keyword for writing.
func IPZWrite(record, keyword string, value []byte) WriteParams {
	return WriteParams{ReadParams: IPZRead(record, keyword), Value: value}
}

// KeywordWrite addresses a keyword-format keyword for writing.
func KeywordWrite(keyword string, value []byte) WriteParams {
	return WriteParams{ReadParams: KeywordRead(keyword), Value: value}
}

// Validate checks addressing and that a value is present.
func (p WriteParams) Validate() error {
	if err := p.ReadParams.Validate(); err != nil {
		return err
	}
	if len(p.Value) == 0 {
		return fmt.Errorf("%w: value must be non-empty", ErrInvalidParams)
	}
	return nil
}

// ParsedVPD is the decoded content of one EEPROM. IPZ VPD is keyed by record
// then keyword; keyword-format VPD uses the empty record name.
type ParsedVPD map[string]map[string]BinaryVector

// Lookup returns the keyword addressed by p.
func (v ParsedVPD) Lookup(p ReadParams) (BinaryVector, bool) {
	kws, ok := v[p.Record]
	if !ok {
		return nil, false
	}
	val, ok := kws[p.Keyword]
	return val, ok
}

// Set stores value under the address of p.
func (v ParsedVPD) Set(p ReadParams, value BinaryVector) {
	kws, ok := v[p.Record]
	if !ok {
		kws = make(map[string]BinaryVector)
		v[p.Record] = kws
	}
	kws[p.Keyword] = append(BinaryVector(nil), value...)
}

// Clone returns a deep copy.
func (v ParsedVPD) Clone() ParsedVPD {
	out := make(ParsedVPD, len(v))
	for rec, kws := range v {
		cp := make(map[string]BinaryVector, len(kws))
		for kw, val := range kws {
			cp[kw] = append(BinaryVector(nil), val...)
		}
		out[rec] = cp
	}
	return out
}
