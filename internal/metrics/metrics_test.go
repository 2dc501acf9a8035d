package metrics

import (
	"testing"
	"time"
)

func TestNew_StartTimeSet(t *testing.T) {
	before := time.Now()
	m := New()
	after := time.Now()

	if m.startTime.Before(before) || m.startTime.After(after) {
		t.Errorf("startTime %v not in expected range [%v, %v]", m.startTime, before, after)
	}
}

func TestZeroValue_SnapshotSafe(t *testing.T) {
	var m Metrics
	s := m.Snapshot()
	if s.Ingestion.Indexed != 0 {
		t.Errorf("expected 0 indexed, got %d", s.Ingestion.Indexed)
	}
}

func TestIngestionCounters(t *testing.T) {
	m := New()
	m.ValuesIndexed.Add(10)
	m.ValuesSkipped.Add(2)
	m.ValuesErased.Add(1)
	m.OverflowsTotal.Add(3)

	s := m.Snapshot()
	if s.Ingestion.Indexed != 10 {
		t.Errorf("Indexed: got %d, want 10", s.Ingestion.Indexed)
	}
	if s.Ingestion.Skipped != 2 {
		t.Errorf("Skipped: got %d, want 2", s.Ingestion.Skipped)
	}
	if s.Ingestion.Erased != 1 {
		t.Errorf("Erased: got %d, want 1", s.Ingestion.Erased)
	}
	if s.Ingestion.Overflows != 3 {
		t.Errorf("Overflows: got %d, want 3", s.Ingestion.Overflows)
	}
}

func TestQueryCounters(t *testing.T) {
	m := New()
	m.QueriesTotal.Add(7)
	m.QueriesSuppressed.Add(2)
	m.QueriesTruncated.Add(1)

	s := m.Snapshot()
	if s.Queries.Total != 7 {
		t.Errorf("Total: got %d, want 7", s.Queries.Total)
	}
	if s.Queries.Suppressed != 2 {
		t.Errorf("Suppressed: got %d, want 2", s.Queries.Suppressed)
	}
	if s.Queries.Truncated != 1 {
		t.Errorf("Truncated: got %d, want 1", s.Queries.Truncated)
	}
}

func TestErrorCounters(t *testing.T) {
	m := New()
	m.ErrorsStore.Add(3)
	m.ErrorsQuery.Add(2)

	s := m.Snapshot()
	if s.Errors.Store != 3 {
		t.Errorf("Store errors: got %d, want 3", s.Errors.Store)
	}
	if s.Errors.Query != 2 {
		t.Errorf("Query errors: got %d, want 2", s.Errors.Query)
	}
}

func TestSweepCounters(t *testing.T) {
	m := New()
	m.SweepRuns.Add(4)
	m.EntriesExpired.Add(40)

	s := m.Snapshot()
	if s.Sweep.Runs != 4 {
		t.Errorf("Runs: got %d, want 4", s.Sweep.Runs)
	}
	if s.Sweep.EntriesExpired != 40 {
		t.Errorf("EntriesExpired: got %d, want 40", s.Sweep.EntriesExpired)
	}
}

func TestRecordIndexLatency_SingleSample(t *testing.T) {
	m := New()
	m.RecordIndexLatency(100 * time.Millisecond)

	s := m.Snapshot()
	if s.Latency.IndexMs.Count != 1 {
		t.Errorf("Count: got %d, want 1", s.Latency.IndexMs.Count)
	}
	if s.Latency.IndexMs.MinMs < 90 || s.Latency.IndexMs.MinMs > 110 {
		t.Errorf("MinMs: got %f, want ~100", s.Latency.IndexMs.MinMs)
	}
}

func TestRecordQueryLatency_MinMaxMean(t *testing.T) {
	m := New()
	m.RecordQueryLatency(50 * time.Millisecond)
	m.RecordQueryLatency(150 * time.Millisecond)
	m.RecordQueryLatency(100 * time.Millisecond)

	s := m.Snapshot()
	ls := s.Latency.QueryMs
	if ls.Count != 3 {
		t.Errorf("Count: got %d, want 3", ls.Count)
	}
	if ls.MinMs > 60 {
		t.Errorf("MinMs too high: %f", ls.MinMs)
	}
	if ls.MaxMs < 140 {
		t.Errorf("MaxMs too low: %f", ls.MaxMs)
	}
	if ls.MeanMs < 90 || ls.MeanMs > 110 {
		t.Errorf("MeanMs: got %f, want ~100", ls.MeanMs)
	}
}

func TestSnapshotLatency_EmptyIsZeroValue(t *testing.T) {
	m := New()
	s := m.Snapshot()
	if s.Latency.IndexMs.Count != 0 {
		t.Errorf("empty index latency count should be 0")
	}
	if s.Latency.QueryMs.Count != 0 {
		t.Errorf("empty query latency count should be 0")
	}
}

func TestSnapshot_UptimePositive(t *testing.T) {
	m := New()
	time.Sleep(5 * time.Millisecond)
	s := m.Snapshot()
	if s.UptimeSecs <= 0 {
		t.Errorf("UptimeSecs should be positive, got %f", s.UptimeSecs)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		input float64
		want  float64
	}{
		{1.236, 1.24},
		{1.234, 1.23},
		{100.0, 100.0},
		{0.0, 0.0},
	}
	for _, c := range cases {
		got := round2(c.input)
		if got != c.want {
			t.Errorf("round2(%f) = %f, want %f", c.input, got, c.want)
		}
	}
}

func TestLatencyStats_Record(t *testing.T) {
	var s latencyStats
	s.record(10)
	s.record(20)
	s.record(15)

	snap := s.snapshot()
	if snap.Count != 3 {
		t.Errorf("Count: got %d, want 3", snap.Count)
	}
	if snap.MinMs != 10 {
		t.Errorf("MinMs: got %f, want 10", snap.MinMs)
	}
	if snap.MaxMs != 20 {
		t.Errorf("MaxMs: got %f, want 20", snap.MaxMs)
	}
	if snap.MeanMs != 15 {
		t.Errorf("MeanMs: got %f, want 15", snap.MeanMs)
	}
}

func TestLatencyStats_Empty(t *testing.T) {
	var s latencyStats
	snap := s.snapshot()
	if snap.Count != 0 || snap.MinMs != 0 || snap.MaxMs != 0 || snap.MeanMs != 0 {
		t.Errorf("empty stats snapshot should be zero, got %+v", snap)
	}
}
