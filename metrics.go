package graphd

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    nextCounter   prometheus.Counter
//	    thawHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordNext(duration time.Duration, err error) {
//	    p.nextCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordNext is called after each Next on an iterator built through
	// the DB. err excludes the Done sentinel.
	RecordNext(duration time.Duration, err error)

	// RecordFind is called after each Find.
	RecordFind(duration time.Duration, err error)

	// RecordCheck is called after each Check.
	RecordCheck(duration time.Duration, err error)

	// RecordThaw is called after each cursor thaw.
	RecordThaw(duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot or restore.
	// files and bytes describe the transferred archive.
	RecordSnapshot(files int, bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordNext(time.Duration, error)                {}
func (NoopMetricsCollector) RecordFind(time.Duration, error)                {}
func (NoopMetricsCollector) RecordCheck(time.Duration, error)               {}
func (NoopMetricsCollector) RecordThaw(time.Duration, error)                {}
func (NoopMetricsCollector) RecordSnapshot(int, int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	NextCount          atomic.Int64
	NextErrors         atomic.Int64
	NextTotalNanos     atomic.Int64
	FindCount          atomic.Int64
	FindErrors         atomic.Int64
	FindTotalNanos     atomic.Int64
	CheckCount         atomic.Int64
	CheckErrors        atomic.Int64
	CheckTotalNanos    atomic.Int64
	ThawCount          atomic.Int64
	ThawErrors         atomic.Int64
	ThawTotalNanos     atomic.Int64
	SnapshotCount      atomic.Int64
	SnapshotErrors     atomic.Int64
	SnapshotFiles      atomic.Int64
	SnapshotBytes      atomic.Int64
	SnapshotTotalNanos atomic.Int64
}

// RecordNext implements MetricsCollector.
func (b *BasicMetricsCollector) RecordNext(duration time.Duration, err error) {
	b.NextCount.Add(1)
	b.NextTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.NextErrors.Add(1)
	}
}

// RecordFind implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFind(duration time.Duration, err error) {
	b.FindCount.Add(1)
	b.FindTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FindErrors.Add(1)
	}
}

// RecordCheck implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCheck(duration time.Duration, err error) {
	b.CheckCount.Add(1)
	b.CheckTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CheckErrors.Add(1)
	}
}

// RecordThaw implements MetricsCollector.
func (b *BasicMetricsCollector) RecordThaw(duration time.Duration, err error) {
	b.ThawCount.Add(1)
	b.ThawTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ThawErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(files int, bytes int64, duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	b.SnapshotFiles.Add(int64(files))
	b.SnapshotBytes.Add(bytes)
	b.SnapshotTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// Stats is a point-in-time snapshot of collected metrics.
type Stats struct {
	NextCount      int64
	NextErrors     int64
	AvgNextNanos   int64
	FindCount      int64
	FindErrors     int64
	CheckCount     int64
	CheckErrors    int64
	ThawCount      int64
	ThawErrors     int64
	SnapshotCount  int64
	SnapshotErrors int64
	SnapshotFiles  int64
	SnapshotBytes  int64
}

// GetStats returns a consistent-enough snapshot of the counters.
func (b *BasicMetricsCollector) GetStats() Stats {
	s := Stats{
		NextCount:      b.NextCount.Load(),
		NextErrors:     b.NextErrors.Load(),
		FindCount:      b.FindCount.Load(),
		FindErrors:     b.FindErrors.Load(),
		CheckCount:     b.CheckCount.Load(),
		CheckErrors:    b.CheckErrors.Load(),
		ThawCount:      b.ThawCount.Load(),
		ThawErrors:     b.ThawErrors.Load(),
		SnapshotCount:  b.SnapshotCount.Load(),
		SnapshotErrors: b.SnapshotErrors.Load(),
		SnapshotFiles:  b.SnapshotFiles.Load(),
		SnapshotBytes:  b.SnapshotBytes.Load(),
	}
	if s.NextCount > 0 {
		s.AvgNextNanos = b.NextTotalNanos.Load() / s.NextCount
	}
	return s
}
