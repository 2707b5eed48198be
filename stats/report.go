// File: stats/report.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Human-readable report blocks and the per-worker table.

package stats

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// WriteThread prints the statistics block of one worker.
func WriteThread(w io.Writer, verb string, s ThreadStats) {
	fmt.Fprintf(w, "\n[Thread %d] Statistics:\n", s.ID)
	fmt.Fprintf(w, "  Messages %s: %d\n", verb, s.Messages)
	fmt.Fprintf(w, "  Bytes %s: %d (%s)\n", verb, s.Bytes, humanize.IBytes(s.Bytes))
	fmt.Fprintf(w, "  Duration: %.2f seconds\n", s.Elapsed.Seconds())
	fmt.Fprintf(w, "  Throughput: %.2f MB/s\n", s.MBps())
	if s.Note != "" {
		fmt.Fprintf(w, "  %s\n", s.Note)
	}
	if s.Err != nil {
		fmt.Fprintf(w, "  Ended by: %v\n", s.Err)
	}
}

// WriteSummary prints the aggregate block.
func WriteSummary(w io.Writer, verb string, a Aggregate) {
	fmt.Fprintf(w, "\n=== Aggregate Statistics ===\n")
	fmt.Fprintf(w, "Workers: %d (%d ended with errors)\n", a.Workers, a.Failed)
	fmt.Fprintf(w, "Total messages %s: %d\n", verb, a.TotalMessages)
	fmt.Fprintf(w, "Total bytes %s: %d (%.2f MB)\n", verb, a.TotalBytes, float64(a.TotalBytes)/(1024*1024))
	fmt.Fprintf(w, "Elapsed: %.2f seconds\n", a.MaxElapsed.Seconds())
	fmt.Fprintf(w, "Aggregate throughput: %.2f MB/s\n", a.MBps())
}

// WriteTable renders one row per worker.
func WriteTable(w io.Writer, all []ThreadStats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Worker", "Messages", "Bytes", "Seconds", "MB/s", "Status"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)
	for _, s := range all {
		status := "ok"
		if s.Err != nil {
			status = s.Err.Error()
		}
		table.Append([]string{
			strconv.Itoa(s.ID),
			humanize.Comma(int64(s.Messages)),
			humanize.IBytes(s.Bytes),
			strconv.FormatFloat(s.Elapsed.Seconds(), 'f', 2, 64),
			strconv.FormatFloat(s.MBps(), 'f', 2, 64),
			status,
		})
	}
	table.Render()
}
