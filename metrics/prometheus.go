package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "vpd"

var (
	descKeywordReads = prometheus.NewDesc(
		namespace+"_keyword_reads_total", "Keyword read requests.", []string{"result"}, nil)
	descKeywordWrites = prometheus.NewDesc(
		namespace+"_keyword_writes_total", "Keyword write requests.", []string{"result"}, nil)
	descRedundantFailures = prometheus.NewDesc(
		namespace+"_redundant_write_failures_total", "Failed redundant EEPROM writes.", nil, nil)
	descCollections = prometheus.NewDesc(
		namespace+"_collections_total", "FRU collections by outcome.", []string{"outcome"}, nil)
	descDeletions = prometheus.NewDesc(
		namespace+"_fru_deletions_total", "FRU VPD deletions.", nil, nil)
	descPels = prometheus.NewDesc(
		namespace+"_pels_total", "Fault records by delivery outcome.", []string{"outcome", "transport"}, nil)
	descPelsByType = prometheus.NewDesc(
		namespace+"_pels_by_type_total", "Fault records by error type.", []string{"error_type"}, nil)
	descParserLaunches = prometheus.NewDesc(
		namespace+"_parser_launches_total", "Parser process launches.", []string{"result", "parser"}, nil)
	descIPCDecodeErrors = prometheus.NewDesc(
		namespace+"_ipc_decode_errors_total", "Parser frame decode errors.", nil, nil)
	descArchiveWrites = prometheus.NewDesc(
		namespace+"_archive_writes_total", "Fault archive writes.", []string{"result"}, nil)
)

var _ prometheus.Collector = (*Collector)(nil)

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		descKeywordReads, descKeywordWrites, descRedundantFailures,
		descCollections, descDeletions, descPels, descPelsByType,
		descParserLaunches, descIPCDecodeErrors, descArchiveWrites,
	} {
		ch <- d
	}
	c.opDuration.Describe(ch)
}

// Collect implements prometheus.Collector from a fresh Snapshot.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.Snapshot()
	counter := func(d *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	counter(descKeywordReads, s.KeywordReads-s.KeywordReadFailures, "success")
	counter(descKeywordReads, s.KeywordReadFailures, "failure")
	counter(descKeywordWrites, s.KeywordWrites-s.KeywordWriteFailures, "success")
	counter(descKeywordWrites, s.KeywordWriteFailures, "failure")
	counter(descRedundantFailures, s.RedundantWriteFailures)

	counter(descCollections, s.CollectionsStarted, "started")
	counter(descCollections, s.CollectionsCompleted, "completed")
	counter(descCollections, s.CollectionsFailed, "failed")
	counter(descCollections, s.CollectionsRejected, "rejected")
	counter(descDeletions, s.FruDeletions)

	counter(descPels, s.PelsSubmitted, "submitted", s.Transport)
	counter(descPels, s.PelsDelivered, "delivered", s.Transport)
	counter(descPels, s.PelsFailed, "failed", s.Transport)
	counter(descPels, s.PelsDropped, "dropped", s.Transport)
	for errorType, n := range s.PelsByType {
		counter(descPelsByType, n, errorType)
	}

	counter(descParserLaunches, s.ParserLaunchSuccess, "success", s.Parser)
	counter(descParserLaunches, s.ParserLaunchFailure, "failure", s.Parser)
	counter(descIPCDecodeErrors, s.IPCDecodeErrors)

	counter(descArchiveWrites, s.ArchiveWriteSuccess, "success")
	counter(descArchiveWrites, s.ArchiveWriteFailure, "failure")

	c.opDuration.Collect(ch)
}
