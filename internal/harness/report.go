// File: internal/harness/report.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package harness

import (
	"io"
	"time"

	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/stats"
)

// Verb names the transfer direction of the report.
func (r Report) Verb() string {
	if r.Role == api.Receiver {
		return "received"
	}
	return "sent"
}

// Write prints the per-thread blocks, the aggregate block and, when
// table is set, the per-worker table.
func (r Report) Write(w io.Writer, table bool) {
	for _, s := range r.Threads {
		stats.WriteThread(w, r.Verb(), s)
	}
	stats.WriteSummary(w, r.Verb(), r.Aggregate)
	if table {
		stats.WriteTable(w, r.Threads)
	}
}

// AppendCSV records the run in the CSV file named by the config.
func (r Report) AppendCSV(cfg *Config) error {
	if cfg.CSVPath == "" {
		return nil
	}
	run := stats.Run{
		Strategy:  cfg.Strategy.String(),
		FieldSize: cfg.FieldSize,
		Threads:   cfg.Conns,
		Duration:  cfg.Duration,
	}
	if r.Role == api.Sender {
		run.Duration = r.Aggregate.MaxElapsed.Round(time.Second)
	}
	return stats.AppendCSV(cfg.CSVPath, run, r.Aggregate)
}
