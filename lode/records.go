package lode

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pithecene-io/vpd/types"
)

// RecordKindPel is the record_kind discriminator of archived fault records.
const RecordKindPel = "pel"

// severityLevelPrefix is stripped from record severities to form the
// partition value.
const severityLevelPrefix = "xyz.openbmc_project.Logging.Entry.Level."

// ErrMissingRecordID is returned when a record without an ID is archived.
var ErrMissingRecordID = errors.New("archive rejected: fault record has no id")

// SeverityPartition returns the path-safe partition value of a severity,
// e.g. "Error" for xyz.openbmc_project.Logging.Entry.Level.Error.
func SeverityPartition(severity string) string {
	s := strings.TrimPrefix(severity, severityLevelPrefix)
	if s == "" {
		return "unknown"
	}
	return strings.ReplaceAll(s, "/", "_")
}

// toFaultRecordMap converts a record to the map form Lode HiveLayout requires.
// The day partition comes from the record timestamp, falling back to now.
func toFaultRecordMap(record *types.FaultRecord, now time.Time) (map[string]any, error) {
	if record.ID == "" {
		return nil, ErrMissingRecordID
	}

	day := DeriveDay(now)
	if ts, err := time.Parse(time.RFC3339Nano, record.Timestamp); err == nil {
		day = DeriveDay(ts)
	}

	body, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("archive: marshal record: %w", err)
	}
	m := make(map[string]any)
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("archive: flatten record: %w", err)
	}

	m["record_kind"] = RecordKindPel
	m["day"] = day
	// Hive partition key; the full severity string stays in severity_name.
	m["severity_name"] = record.Severity
	m["severity"] = SeverityPartition(record.Severity)
	return m, nil
}

// fromRecordMap rebuilds a FaultRecord from a stored map.
// Returns false for non-PEL records.
func fromRecordMap(m map[string]any) (types.FaultRecord, bool) {
	if m["record_kind"] != RecordKindPel {
		return types.FaultRecord{}, false
	}

	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	if name, ok := cp["severity_name"].(string); ok {
		cp["severity"] = name
	}

	body, err := json.Marshal(cp)
	if err != nil {
		return types.FaultRecord{}, false
	}
	var record types.FaultRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return types.FaultRecord{}, false
	}
	return record, true
}

// ArchivedFault is a fault record read back from the archive with its
// partition day.
type ArchivedFault struct {
	types.FaultRecord
	Day string `json:"day"`
}
