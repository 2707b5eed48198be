// File: stats/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-worker counters and their reduction into run-wide figures.

package stats

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// ThreadStats is produced by one worker when it leaves the Active state.
type ThreadStats struct {
	ID       int
	Bytes    uint64
	Messages uint64
	Elapsed  time.Duration
	// Err is the error that ended the worker early, if any.
	Err error
	// Note carries strategy-specific counters for the report.
	Note string
}

// MBps returns the worker throughput in MiB per second.
func (s ThreadStats) MBps() float64 {
	sec := s.Elapsed.Seconds()
	if sec <= 0 {
		return 0
	}
	return float64(s.Bytes) / (1024 * 1024) / sec
}

// Aggregate is the reduction of every worker of a run. Bytes and messages
// are summed; elapsed is the longest worker, which bounds wall-clock time.
type Aggregate struct {
	Workers       int
	Failed        int
	TotalBytes    uint64
	TotalMessages uint64
	MaxElapsed    time.Duration
}

// Reduce folds worker stats into an Aggregate. The result does not depend
// on the order of the input.
func Reduce(all []ThreadStats) Aggregate {
	var a Aggregate
	for _, s := range all {
		a.Workers++
		if s.Err != nil {
			a.Failed++
		}
		a.TotalBytes += s.Bytes
		a.TotalMessages += s.Messages
		if s.Elapsed > a.MaxElapsed {
			a.MaxElapsed = s.Elapsed
		}
	}
	return a
}

// ThroughputGbps returns total bits over the longest elapsed time.
func (a Aggregate) ThroughputGbps() float64 {
	sec := a.MaxElapsed.Seconds()
	if sec <= 0 {
		return 0
	}
	return float64(a.TotalBytes) * 8 / (sec * 1e9)
}

// LatencyMicros returns the average time per message. Zero when no
// messages were transferred.
func (a Aggregate) LatencyMicros() float64 {
	if a.TotalMessages == 0 {
		return 0
	}
	return a.MaxElapsed.Seconds() * 1e6 / float64(a.TotalMessages)
}

// MBps returns aggregate throughput in MiB per second.
func (a Aggregate) MBps() float64 {
	sec := a.MaxElapsed.Seconds()
	if sec <= 0 {
		return 0
	}
	return float64(a.TotalBytes) / (1024 * 1024) / sec
}

// MetricsLine renders the machine-parseable result line.
func (a Aggregate) MetricsLine() string {
	return fmt.Sprintf("METRICS throughput_gbps=%.6f latency_us=%.2f bytes=%d",
		a.ThroughputGbps(), a.LatencyMicros(), a.TotalBytes)
}

// Aggregator collects worker reports as they arrive from concurrent
// workers.
type Aggregator struct {
	mu  sync.Mutex
	all []ThreadStats
}

// NewAggregator returns an empty aggregator sized for n workers.
func NewAggregator(n int) *Aggregator {
	return &Aggregator{all: make([]ThreadStats, 0, n)}
}

// Add records one worker report. Safe for concurrent use.
func (g *Aggregator) Add(s ThreadStats) {
	g.mu.Lock()
	g.all = append(g.all, s)
	g.mu.Unlock()
}

// Threads returns the collected reports ordered by worker ID.
func (g *Aggregator) Threads() []ThreadStats {
	g.mu.Lock()
	out := make([]ThreadStats, len(g.all))
	copy(out, g.all)
	g.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Result reduces the collected reports.
func (g *Aggregator) Result() Aggregate {
	return Reduce(g.Threads())
}
