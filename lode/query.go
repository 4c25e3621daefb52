package lode

import (
	"context"
	"fmt"

	"github.com/justapithecus/lode/lode"
)

// FaultFilter narrows QueryFaults. Zero fields match everything.
type FaultFilter struct {
	// Severity is a partition value such as "Error" or "Warning".
	Severity string
	// Day is a partition day (YYYY-MM-DD).
	Day string
	// ErrorType matches the record's short error type name.
	ErrorType string
	// Limit caps the number of records returned. Zero is unlimited.
	Limit int
}

// QueryFaults reads archived fault records, newest snapshot first.
// Records are de-duplicated by ID.
func QueryFaults(ctx context.Context, ds lode.Dataset, filter FaultFilter) ([]ArchivedFault, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "snapshots")
	}

	seen := make(map[string]struct{})
	var out []ArchivedFault

	// Iterate in reverse (latest first); snapshots are ordered by creation time
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]

		if !snapshotMatchesFilter(snap, "severity", filter.Severity) {
			continue
		}
		if !snapshotMatchesFilter(snap, "day", filter.Day) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("snapshot/%s", snap.ID))
		}

		// Manifest paths are a coarse pre-filter; record fields are authoritative.
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if filter.Severity != "" && m["severity"] != filter.Severity {
				continue
			}
			if filter.Day != "" && m["day"] != filter.Day {
				continue
			}
			record, ok := fromRecordMap(m)
			if !ok {
				continue
			}
			if filter.ErrorType != "" && record.ErrorType != filter.ErrorType {
				continue
			}
			if _, dup := seen[record.ID]; dup {
				continue
			}
			seen[record.ID] = struct{}{}
			out = append(out, ArchivedFault{FaultRecord: record, Day: toString(m["day"])})

			if filter.Limit > 0 && len(out) >= filter.Limit {
				return out, nil
			}
		}
	}

	return out, nil
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
