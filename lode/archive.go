// Package lode archives fault records in a Lode dataset.
//
// The Archive is a fault-record transport: every record handed to Create is
// written as one JSONL record, Hive-partitioned by severity and day, to the
// filesystem or S3. QueryFaults reads them back for the vpd-tool faults
// command.
package lode

import (
	"context"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/vpd/adapter"
	"github.com/pithecene-io/vpd/metrics"
	"github.com/pithecene-io/vpd/types"
)

// DefaultDataset is the dataset ID fault records are written to.
const DefaultDataset = "vpd-pel"

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"severity", "day"}

// DeriveDay computes the partition day of a record timestamp.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

// Config holds archive configuration.
type Config struct {
	// Dataset is the Lode dataset ID (default: vpd-pel).
	Dataset string
}

func (c Config) dataset() string {
	if c.Dataset == "" {
		return DefaultDataset
	}
	return c.Dataset
}

// Archive writes fault records to Lode.
type Archive struct {
	id        string
	dataset   lode.Dataset
	collector *metrics.Collector
	now       func() time.Time
}

// NewArchive creates an archive with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewArchive(cfg Config, factory lode.StoreFactory) (*Archive, error) {
	ds, err := newDataset(cfg.dataset(), factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.dataset())
	}
	return &Archive{id: cfg.dataset(), dataset: ds, now: time.Now}, nil
}

// NewFSArchive creates an archive rooted at a local directory.
func NewFSArchive(cfg Config, root string) (*Archive, error) {
	return NewArchive(cfg, lode.NewFSFactory(root))
}

// WithCollector attaches a metrics collector. Each Create counts as one
// archive write success or failure.
func (a *Archive) WithCollector(c *metrics.Collector) *Archive {
	a.collector = c
	return a
}

// Dataset exposes the underlying dataset for queries.
func (a *Archive) Dataset() lode.Dataset {
	return a.dataset
}

// Create writes one fault record.
func (a *Archive) Create(ctx context.Context, record *types.FaultRecord) error {
	m, err := toFaultRecordMap(record, a.now())
	if err != nil {
		a.collector.IncArchiveWriteFailure()
		return err
	}

	if _, err := a.dataset.Write(ctx, []any{m}, lode.Metadata{}); err != nil {
		a.collector.IncArchiveWriteFailure()
		return WrapWriteError(err, a.id+"/"+record.ID)
	}

	a.collector.IncArchiveWriteSuccess()
	return nil
}

// Close releases archive resources.
func (a *Archive) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

func newDataset(id string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(id),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

var _ adapter.Transport = (*Archive)(nil)
