// File: control/progress.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Live progress of a run. Workers register a counter pair and bump it
// after every message; a reporter goroutine folds the counters into
// meters on a ticker and logs one line per tick.

package control

import (
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gologme/log"
	"github.com/momentics/copybench/internal/logging"
	"github.com/puzpuzpuz/xsync/v3"
	gometrics "github.com/rcrowley/go-metrics"
)

// WorkerCounters is owned by one worker. A nil receiver is a no-op so
// workers run unchanged when progress is disabled.
type WorkerCounters struct {
	bytes    atomic.Uint64
	messages atomic.Uint64
}

// Add records one completed message of n bytes.
func (c *WorkerCounters) Add(n int) {
	if c == nil {
		return
	}
	c.bytes.Add(uint64(n))
	c.messages.Add(1)
}

// Load returns the current byte and message counts.
func (c *WorkerCounters) Load() (bytes, messages uint64) {
	if c == nil {
		return 0, 0
	}
	return c.bytes.Load(), c.messages.Load()
}

// Progress tracks the live workers of one side of a run.
type Progress struct {
	label   string
	log     *log.Logger
	workers *xsync.MapOf[int, *WorkerCounters]

	// counters of workers that already left
	retiredBytes    atomic.Uint64
	retiredMessages atomic.Uint64

	byteRate gometrics.Meter
	msgRate  gometrics.Meter
	seenB    uint64
	seenM    uint64
}

// NewProgress returns an empty tracker. label prefixes the log lines.
func NewProgress(label string, logger *log.Logger) *Progress {
	return &Progress{
		label:    label,
		log:      logging.OrDiscard(logger),
		workers:  xsync.NewMapOf[int, *WorkerCounters](),
		byteRate: gometrics.NewMeter(),
		msgRate:  gometrics.NewMeter(),
	}
}

// Register returns the counters of worker id, creating them on first use.
func (p *Progress) Register(id int) *WorkerCounters {
	c, _ := p.workers.LoadOrStore(id, &WorkerCounters{})
	return c
}

// Unregister removes worker id; its counts stay in the totals.
func (p *Progress) Unregister(id int) {
	c, ok := p.workers.LoadAndDelete(id)
	if !ok {
		return
	}
	b, m := c.Load()
	p.retiredBytes.Add(b)
	p.retiredMessages.Add(m)
}

// Active returns the number of registered workers.
func (p *Progress) Active() int {
	return p.workers.Size()
}

// Totals sums live and retired workers.
func (p *Progress) Totals() (bytes, messages uint64) {
	bytes, messages = p.retiredBytes.Load(), p.retiredMessages.Load()
	p.workers.Range(func(_ int, c *WorkerCounters) bool {
		b, m := c.Load()
		bytes += b
		messages += m
		return true
	})
	return bytes, messages
}

// Tick marks the meters with the progress since the previous tick and
// logs a summary line. Not safe for concurrent use with itself.
func (p *Progress) Tick() {
	b, m := p.Totals()
	if b >= p.seenB {
		p.byteRate.Mark(int64(b - p.seenB))
	}
	if m >= p.seenM {
		p.msgRate.Mark(int64(m - p.seenM))
	}
	p.seenB, p.seenM = b, m
	p.log.Infof("[%s] workers=%d messages=%s bytes=%s rate=%s/s (mean %s/s)",
		p.label, p.Active(), humanize.Comma(int64(m)), humanize.IBytes(b),
		humanize.IBytes(uint64(p.byteRate.Rate1())), humanize.IBytes(uint64(p.byteRate.RateMean())))
}

// MessageRate returns the mean message rate observed by Tick.
func (p *Progress) MessageRate() float64 {
	return p.msgRate.RateMean()
}

// Run ticks every interval until done is closed. A non-positive interval
// disables reporting.
func (p *Progress) Run(done <-chan struct{}, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Stop releases the meters.
func (p *Progress) Stop() {
	p.byteRate.Stop()
	p.msgRate.Stop()
}
