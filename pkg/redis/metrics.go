package redis

import (
	"sync"
	"sync/atomic"
)

// TableStats counts the cache traffic of one table
type TableStats struct {
	Hits          uint64
	Misses        uint64
	Stores        uint64
	Invalidations uint64
	Errors        uint64
}

// HitRate returns hits as a fraction of lookups, or 0 before any lookup
func (s TableStats) HitRate() float64 {
	lookups := s.Hits + s.Misses
	if lookups == 0 {
		return 0
	}
	return float64(s.Hits) / float64(lookups)
}

func (s *TableStats) add(o TableStats) {
	s.Hits += o.Hits
	s.Misses += o.Misses
	s.Stores += o.Stores
	s.Invalidations += o.Invalidations
	s.Errors += o.Errors
}

// Stats is a point-in-time copy of Metrics
type Stats struct {
	Tables               map[string]TableStats
	CompressedBytesSaved uint64
}

// Total sums the counts of all tables
func (s Stats) Total() TableStats {
	var total TableStats
	for _, t := range s.Tables {
		total.add(t)
	}
	return total
}

// Metrics counts cached selects per table. Hits, misses and read errors are
// recorded by the caller that knows the table being read; stores and
// invalidations are recorded by the Manager under the dependency name.
type Metrics struct {
	mu         sync.Mutex
	tables     map[string]*TableStats
	compressed atomic.Uint64
}

// NewMetrics creates an empty metrics set
func NewMetrics() *Metrics {
	return &Metrics{tables: map[string]*TableStats{}}
}

func (m *Metrics) update(table string, fn func(*TableStats)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		t = &TableStats{}
		m.tables[table] = t
	}
	fn(t)
}

// RecordHit counts a select answered from the cache
func (m *Metrics) RecordHit(table string) {
	m.update(table, func(t *TableStats) { t.Hits++ })
}

// RecordMiss counts a select the cache could not answer
func (m *Metrics) RecordMiss(table string) {
	m.update(table, func(t *TableStats) { t.Misses++ })
}

// RecordError counts a failed cache read or write
func (m *Metrics) RecordError(table string) {
	m.update(table, func(t *TableStats) { t.Errors++ })
}

func (m *Metrics) recordStore(table string) {
	m.update(table, func(t *TableStats) { t.Stores++ })
}

func (m *Metrics) recordInvalidation(table string) {
	m.update(table, func(t *TableStats) { t.Invalidations++ })
}

func (m *Metrics) recordCompression(saved int) {
	m.compressed.Add(uint64(saved))
}

// Snapshot copies the current counts
func (m *Metrics) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := Stats{
		Tables:               make(map[string]TableStats, len(m.tables)),
		CompressedBytesSaved: m.compressed.Load(),
	}
	for name, t := range m.tables {
		out.Tables[name] = *t
	}
	return out
}

// Reset clears every count
func (m *Metrics) Reset() {
	m.mu.Lock()
	m.tables = map[string]*TableStats{}
	m.mu.Unlock()
	m.compressed.Store(0)
}
