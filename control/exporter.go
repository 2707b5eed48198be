// File: control/exporter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Prometheus text exposition of a finished run, written to a file so
// external collectors (node_exporter textfile, CI) can pick it up.

package control

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/momentics/copybench/stats"
)

// Exporter accumulates worker results under one label set.
type Exporter struct {
	set *vm.Set

	bytes    *vm.Counter
	messages *vm.Counter
	failed   *vm.Counter
	elapsed  *vm.Histogram

	mu  sync.Mutex
	agg stats.Aggregate
}

// NewExporter registers the run metrics labelled by strategy and role.
func NewExporter(strategy, role string) *Exporter {
	labels := fmt.Sprintf(`{strategy=%q,role=%q}`, strategy, role)
	e := &Exporter{set: vm.NewSet()}
	e.bytes = e.set.NewCounter("copybench_bytes_total" + labels)
	e.messages = e.set.NewCounter("copybench_messages_total" + labels)
	e.failed = e.set.NewCounter("copybench_workers_failed_total" + labels)
	e.elapsed = e.set.NewHistogram("copybench_worker_duration_seconds" + labels)
	e.set.NewGauge("copybench_throughput_gbps"+labels, func() float64 {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.agg.ThroughputGbps()
	})
	e.set.NewGauge("copybench_latency_microseconds"+labels, func() float64 {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.agg.LatencyMicros()
	})
	return e
}

// Observe records one worker result.
func (e *Exporter) Observe(s stats.ThreadStats) {
	e.bytes.Add(clampInt(s.Bytes))
	e.messages.Add(clampInt(s.Messages))
	if s.Err != nil {
		e.failed.Inc()
	}
	e.elapsed.Update(s.Elapsed.Seconds())
}

// SetAggregate publishes the reduced figures through the gauges.
func (e *Exporter) SetAggregate(a stats.Aggregate) {
	e.mu.Lock()
	e.agg = a
	e.mu.Unlock()
}

// WritePrometheus writes the text exposition to w.
func (e *Exporter) WritePrometheus(w io.Writer) {
	e.set.WritePrometheus(w)
}

// WriteFile replaces path with the current exposition.
func (e *Exporter) WriteFile(path string) error {
	var buf bytes.Buffer
	e.WritePrometheus(&buf)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace metrics file: %w", err)
	}
	return nil
}

func clampInt(v uint64) int {
	if v > math.MaxInt {
		return math.MaxInt
	}
	return int(v)
}
