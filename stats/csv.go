// File: stats/csv.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Results export for offline plotting. One row per run; the header is
// written when the file is created.

package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CSVHeader lists the exported columns.
var CSVHeader = []string{
	"strategy", "field_size", "threads", "duration_s",
	"throughput_gbps", "latency_us", "bytes", "messages",
}

// Run identifies the configuration that produced an Aggregate.
type Run struct {
	Strategy  string
	FieldSize int
	Threads   int
	Duration  time.Duration
}

// Row renders one CSV record.
func Row(r Run, a Aggregate) []string {
	return []string{
		r.Strategy,
		strconv.Itoa(r.FieldSize),
		strconv.Itoa(r.Threads),
		strconv.FormatFloat(r.Duration.Seconds(), 'f', 0, 64),
		strconv.FormatFloat(a.ThroughputGbps(), 'f', 6, 64),
		strconv.FormatFloat(a.LatencyMicros(), 'f', 2, 64),
		strconv.FormatUint(a.TotalBytes, 10),
		strconv.FormatUint(a.TotalMessages, 10),
	}
}

// AppendCSV appends one row to path, creating it with a header if needed.
func AppendCSV(path string, r Run, a Aggregate) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat CSV file: %w", err)
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(CSVHeader); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}
	if err := writer.Write(Row(r, a)); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	writer.Flush()
	return writer.Error()
}
