package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("redis", "process")

	c.IncKeywordRead()
	c.IncKeywordRead()
	c.IncKeywordReadFailure()
	c.IncKeywordWrite()
	c.IncKeywordWriteFailure()
	c.IncRedundantWriteFailure()
	c.IncRedundantWriteFailure()
	c.IncCollectionStarted()
	c.IncCollectionCompleted()
	c.IncCollectionFailed()
	c.IncCollectionRejected()
	c.IncFruDeletion()
	c.IncParserLaunchSuccess()
	c.IncParserLaunchFailure()
	c.IncIPCDecodeErrors()
	c.IncArchiveWriteSuccess()
	c.IncArchiveWriteFailure()
	c.IncPelType("WriteFailure")
	c.IncPelType("WriteFailure")

	s := c.Snapshot()

	if s.KeywordReads != 2 {
		t.Errorf("KeywordReads = %d, want 2", s.KeywordReads)
	}
	if s.KeywordReadFailures != 1 {
		t.Errorf("KeywordReadFailures = %d, want 1", s.KeywordReadFailures)
	}
	if s.KeywordWrites != 1 || s.KeywordWriteFailures != 1 {
		t.Errorf("KeywordWrites/Failures = %d/%d, want 1/1", s.KeywordWrites, s.KeywordWriteFailures)
	}
	if s.RedundantWriteFailures != 2 {
		t.Errorf("RedundantWriteFailures = %d, want 2", s.RedundantWriteFailures)
	}
	if s.CollectionsStarted != 1 || s.CollectionsCompleted != 1 || s.CollectionsFailed != 1 || s.CollectionsRejected != 1 {
		t.Errorf("collection counters = %+v", s)
	}
	if s.FruDeletions != 1 {
		t.Errorf("FruDeletions = %d, want 1", s.FruDeletions)
	}
	if s.ParserLaunchSuccess != 1 || s.ParserLaunchFailure != 1 || s.IPCDecodeErrors != 1 {
		t.Errorf("parser counters = %+v", s)
	}
	if s.ArchiveWriteSuccess != 1 || s.ArchiveWriteFailure != 1 {
		t.Errorf("archive counters = %+v", s)
	}
	if s.PelsByType["WriteFailure"] != 2 {
		t.Errorf("PelsByType[WriteFailure] = %d, want 2", s.PelsByType["WriteFailure"])
	}
	if s.Transport != "redis" || s.Parser != "process" {
		t.Errorf("dimensions = %q/%q", s.Transport, s.Parser)
	}
}

func TestCollector_AbsorbPelStats(t *testing.T) {
	c := NewCollector("stub", "memory")
	c.AbsorbPelStats(10, 7, 2, 1)
	c.AbsorbPelStats(12, 9, 2, 1)

	s := c.Snapshot()
	if s.PelsSubmitted != 12 {
		t.Errorf("PelsSubmitted = %d, want 12", s.PelsSubmitted)
	}
	if s.PelsDelivered != 9 {
		t.Errorf("PelsDelivered = %d, want 9", s.PelsDelivered)
	}
	if s.PelsDropped != 1 {
		t.Errorf("PelsDropped = %d, want 1", s.PelsDropped)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector

	// Must not panic
	c.IncKeywordRead()
	c.IncKeywordWriteFailure()
	c.IncCollectionStarted()
	c.IncPelType("ReadFailure")
	c.AbsorbPelStats(1, 1, 0, 0)
	c.ObserveOperation("read", time.Millisecond)

	s := c.Snapshot()
	if s.KeywordReads != 0 {
		t.Errorf("nil collector snapshot KeywordReads = %d, want 0", s.KeywordReads)
	}
}

func TestCollector_SnapshotIsolation(t *testing.T) {
	c := NewCollector("stub", "memory")
	c.IncPelType("ReadFailure")

	s := c.Snapshot()
	s.PelsByType["ReadFailure"] = 100

	if got := c.Snapshot().PelsByType["ReadFailure"]; got != 1 {
		t.Errorf("collector mutated through snapshot: got %d, want 1", got)
	}
}

func TestCollector_ConcurrentIncrements(t *testing.T) {
	c := NewCollector("stub", "memory")

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncKeywordWrite()
			c.IncPelType("WriteFailure")
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.KeywordWrites != 50 {
		t.Errorf("KeywordWrites = %d, want 50", s.KeywordWrites)
	}
	if s.PelsByType["WriteFailure"] != 50 {
		t.Errorf("PelsByType = %d, want 50", s.PelsByType["WriteFailure"])
	}
}

func TestCollector_PrometheusGather(t *testing.T) {
	c := NewCollector("lode", "process")
	c.IncKeywordWrite()
	c.IncKeywordWrite()
	c.IncKeywordWriteFailure()
	c.ObserveOperation("update_keyword", 3*time.Millisecond)

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
		if mf.GetName() != "vpd_keyword_writes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var result string
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "result" {
					result = lp.GetValue()
				}
			}
			want := map[string]float64{"success": 1, "failure": 1}[result]
			if got := m.GetCounter().GetValue(); got != want {
				t.Errorf("vpd_keyword_writes_total{result=%q} = %v, want %v", result, got, want)
			}
		}
	}

	for _, name := range []string{"vpd_keyword_writes_total", "vpd_collections_total", "vpd_operation_duration_seconds"} {
		if !found[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}
}
