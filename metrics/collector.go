// Package metrics provides process-wide counters for the VPD manager.
//
// The Collector accumulates counters for keyword access, FRU collection,
// fault records and the parser process. It is a leaf package with no
// internal dependencies. The Collector also implements prometheus.Collector
// so the same counters back the /metrics endpoint.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Keyword access
	KeywordReads           int64
	KeywordReadFailures    int64
	KeywordWrites          int64
	KeywordWriteFailures   int64
	RedundantWriteFailures int64

	// Collection
	CollectionsStarted   int64
	CollectionsCompleted int64
	CollectionsFailed    int64
	CollectionsRejected  int64
	FruDeletions         int64

	// Fault records (absorbed from eventlog stats)
	PelsSubmitted int64
	PelsDelivered int64
	PelsFailed    int64
	PelsDropped   int64
	PelsByType    map[string]int64

	// Parser process
	ParserLaunchSuccess int64
	ParserLaunchFailure int64
	IPCDecodeErrors     int64

	// Fault archive
	ArchiveWriteSuccess int64
	ArchiveWriteFailure int64

	// Dimensions (informational, set at construction)
	Transport string
	Parser    string
}

// Collector accumulates counters for the life of the process.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	keywordReads           int64
	keywordReadFailures    int64
	keywordWrites          int64
	keywordWriteFailures   int64
	redundantWriteFailures int64

	collectionsStarted   int64
	collectionsCompleted int64
	collectionsFailed    int64
	collectionsRejected  int64
	fruDeletions         int64

	pelsByType map[string]int64

	parserLaunchSuccess int64
	parserLaunchFailure int64
	ipcDecodeErrors     int64

	archiveWriteSuccess int64
	archiveWriteFailure int64

	// Set via AbsorbPelStats
	pelsSubmitted int64
	pelsDelivered int64
	pelsFailed    int64
	pelsDropped   int64

	transport string
	parser    string

	opDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector with dimension labels.
// transport is the fault-record transport type, parser the parser backend.
func NewCollector(transport, parser string) *Collector {
	return &Collector{
		pelsByType: make(map[string]int64),
		transport:  transport,
		parser:     parser,
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of manager operations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"op"}),
	}
}

func (c *Collector) inc(p *int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	*p++
	c.mu.Unlock()
}

// --- Keyword access ---

// IncKeywordRead records a keyword read request.
func (c *Collector) IncKeywordRead() {
	if c == nil {
		return
	}
	c.inc(&c.keywordReads)
}

// IncKeywordReadFailure records a failed keyword read.
func (c *Collector) IncKeywordReadFailure() {
	if c == nil {
		return
	}
	c.inc(&c.keywordReadFailures)
}

// IncKeywordWrite records a keyword write request.
func (c *Collector) IncKeywordWrite() {
	if c == nil {
		return
	}
	c.inc(&c.keywordWrites)
}

// IncKeywordWriteFailure records a write whose primary copy failed.
func (c *Collector) IncKeywordWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.keywordWriteFailures)
}

// IncRedundantWriteFailure records one failed redundant EEPROM write.
func (c *Collector) IncRedundantWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.redundantWriteFailures)
}

// --- Collection ---

// IncCollectionStarted records a FRU collection dispatch.
func (c *Collector) IncCollectionStarted() {
	if c == nil {
		return
	}
	c.inc(&c.collectionsStarted)
}

// IncCollectionCompleted records a successful FRU collection.
func (c *Collector) IncCollectionCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.collectionsCompleted)
}

// IncCollectionFailed records a failed FRU collection.
func (c *Collector) IncCollectionFailed() {
	if c == nil {
		return
	}
	c.inc(&c.collectionsFailed)
}

// IncCollectionRejected records a collection request refused before dispatch.
func (c *Collector) IncCollectionRejected() {
	if c == nil {
		return
	}
	c.inc(&c.collectionsRejected)
}

// IncFruDeletion records a FRU VPD deletion.
func (c *Collector) IncFruDeletion() {
	if c == nil {
		return
	}
	c.inc(&c.fruDeletions)
}

// --- Parser process ---

// IncParserLaunchSuccess records a successful parser process launch.
func (c *Collector) IncParserLaunchSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.parserLaunchSuccess)
}

// IncParserLaunchFailure records a failed parser process launch.
func (c *Collector) IncParserLaunchFailure() {
	if c == nil {
		return
	}
	c.inc(&c.parserLaunchFailure)
}

// IncIPCDecodeErrors records a parser frame decode error.
func (c *Collector) IncIPCDecodeErrors() {
	if c == nil {
		return
	}
	c.inc(&c.ipcDecodeErrors)
}

// --- Fault archive ---
// Archive counters are per-call: one Create is one write.

// IncArchiveWriteSuccess records a successful archive write.
func (c *Collector) IncArchiveWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.archiveWriteSuccess)
}

// IncArchiveWriteFailure records a failed archive write.
func (c *Collector) IncArchiveWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.archiveWriteFailure)
}

// --- Fault records ---

// IncPelType records a fault record of the given error type.
func (c *Collector) IncPelType(errorType string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.pelsByType[errorType]++
	c.mu.Unlock()
}

// AbsorbPelStats copies fault record delivery counters from the event logger.
// Values are cumulative; each call replaces the previous ones.
func (c *Collector) AbsorbPelStats(submitted, delivered, failed, dropped int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.pelsSubmitted = submitted
	c.pelsDelivered = delivered
	c.pelsFailed = failed
	c.pelsDropped = dropped
	c.mu.Unlock()
}

// ObserveOperation records the duration of a manager operation.
func (c *Collector) ObserveOperation(op string, d time.Duration) {
	if c == nil {
		return
	}
	c.opDuration.WithLabelValues(op).Observe(d.Seconds())
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byType := make(map[string]int64, len(c.pelsByType))
	for k, v := range c.pelsByType {
		byType[k] = v
	}

	return Snapshot{
		KeywordReads:           c.keywordReads,
		KeywordReadFailures:    c.keywordReadFailures,
		KeywordWrites:          c.keywordWrites,
		KeywordWriteFailures:   c.keywordWriteFailures,
		RedundantWriteFailures: c.redundantWriteFailures,

		CollectionsStarted:   c.collectionsStarted,
		CollectionsCompleted: c.collectionsCompleted,
		CollectionsFailed:    c.collectionsFailed,
		CollectionsRejected:  c.collectionsRejected,
		FruDeletions:         c.fruDeletions,

		PelsSubmitted: c.pelsSubmitted,
		PelsDelivered: c.pelsDelivered,
		PelsFailed:    c.pelsFailed,
		PelsDropped:   c.pelsDropped,
		PelsByType:    byType,

		ParserLaunchSuccess: c.parserLaunchSuccess,
		ParserLaunchFailure: c.parserLaunchFailure,
		IPCDecodeErrors:     c.ipcDecodeErrors,

		ArchiveWriteSuccess: c.archiveWriteSuccess,
		ArchiveWriteFailure: c.archiveWriteFailure,

		Transport: c.transport,
		Parser:    c.parser,
	}
}
