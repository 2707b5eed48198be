// File: strategy/completion.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Zero-copy completion tracking. The kernel numbers every successful
// zero-copy send on a socket starting at zero and later reports ranges
// [lo, hi] of sends whose pages it no longer references. The tracker keeps
// the outstanding numbers in a FIFO of spans and reconciles each drained
// record against it.

package strategy

import (
	"fmt"
	"time"

	"github.com/eapache/queue"
	"github.com/momentics/copybench/api"
)

// span is a run of consecutive sequence numbers issued together.
type span struct {
	lo, hi    uint32
	remaining uint32
}

// TrackerStats counts completion traffic on one socket.
type TrackerStats struct {
	Issued        uint64
	Completed     uint64
	Copied        uint64
	Notifications uint64
}

// Tracker reconciles zero-copy completions for one socket. It is owned by
// a single worker.
type Tracker struct {
	next    uint32
	pending *queue.Queue
	free    []*span
	out     uint32
	stats   TrackerStats
	records []api.CompletionRecord
}

// NewTracker returns a tracker expecting sequence number zero next.
func NewTracker() *Tracker {
	return &Tracker{
		pending: queue.New(),
		records: make([]api.CompletionRecord, 0, 16),
	}
}

// Next returns the sequence number the next successful send will receive.
func (t *Tracker) Next() uint32 { return t.next }

// Outstanding returns the number of sends not yet completed.
func (t *Tracker) Outstanding() uint32 { return t.out }

// Stats returns a copy of the counters.
func (t *Tracker) Stats() TrackerStats { return t.stats }

// Issued records one successful zero-copy send and returns its number.
func (t *Tracker) Issued() uint32 {
	seq := t.next
	t.next++
	t.out++
	t.stats.Issued++
	if n := t.pending.Length(); n > 0 {
		tail := t.pending.Get(n - 1).(*span)
		if tail.hi+1 == seq {
			tail.hi = seq
			tail.remaining++
			return seq
		}
	}
	sp := t.newSpan()
	sp.lo, sp.hi, sp.remaining = seq, seq, 1
	t.pending.Add(sp)
	return seq
}

func (t *Tracker) newSpan() *span {
	if n := len(t.free); n > 0 {
		sp := t.free[n-1]
		t.free = t.free[:n-1]
		return sp
	}
	return &span{}
}

// overlap counts the numbers shared by [alo, ahi] and [blo, bhi] using
// offsets from alo, so ranges that wrap past 2^32 compare correctly.
func overlap(alo, ahi, blo, bhi uint32) uint32 {
	aLen := ahi - alo
	bStart := blo - alo
	bEnd := bhi - alo
	if bStart > bEnd {
		// b wraps below alo; clip its start to alo.
		bStart = 0
	}
	if bStart > aLen {
		return 0
	}
	if bEnd > aLen {
		bEnd = aLen
	}
	return bEnd - bStart + 1
}

// reconcile applies one record and returns how many outstanding sends it
// settled. Numbers outside the outstanding window are ignored.
func (t *Tracker) reconcile(rec api.CompletionRecord) uint32 {
	var settled uint32
	for i := 0; i < t.pending.Length(); i++ {
		sp := t.pending.Get(i).(*span)
		if sp.remaining == 0 {
			continue
		}
		n := overlap(sp.lo, sp.hi, rec.Lo, rec.Hi)
		if n > sp.remaining {
			n = sp.remaining
		}
		sp.remaining -= n
		settled += n
	}
	for t.pending.Length() > 0 {
		sp := t.pending.Peek().(*span)
		if sp.remaining != 0 {
			break
		}
		t.pending.Remove()
		t.free = append(t.free, sp)
	}
	t.out -= settled
	t.stats.Completed += uint64(settled)
	if rec.Copied {
		t.stats.Copied += uint64(settled)
	}
	return settled
}

// Drain reads the completion channel without blocking until it reports
// ErrWouldBlock and reconciles every record. The returned slice is reused
// by the next call. A record with an error status fails the drain with
// api.ErrCompletionFailed.
func (t *Tracker) Drain(s api.Socket) ([]api.CompletionRecord, error) {
	t.records = t.records[:0]
	for {
		rec, err := s.ReadCompletion()
		if err != nil {
			switch err {
			case api.ErrWouldBlock:
				return t.records, nil
			case api.ErrInterrupted:
				continue
			}
			return t.records, err
		}
		t.stats.Notifications++
		t.records = append(t.records, rec)
		if rec.Failed() {
			return t.records, fmt.Errorf("%w: sends %d..%d: %w",
				api.ErrCompletionFailed, rec.Lo, rec.Hi, rec.Errno)
		}
		t.reconcile(rec)
	}
}

// AwaitAll drains until nothing is outstanding, blocking on the socket
// between drains. It fails with api.ErrCompletionTimeout once timeout has
// elapsed with sends still outstanding.
func (t *Tracker) AwaitAll(s api.Socket, timeout time.Duration) error {
	if _, err := t.Drain(s); err != nil || t.out == 0 {
		return err
	}
	deadline := time.Now().Add(timeout)
	for t.out > 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w: %d sends outstanding from seq %d",
				api.ErrCompletionTimeout, t.out, t.oldest())
		}
		if err := s.WaitCompletion(remaining); err != nil {
			switch err {
			case api.ErrInterrupted, api.ErrCompletionTimeout:
			default:
				return err
			}
		}
		if _, err := t.Drain(s); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) oldest() uint32 {
	for i := 0; i < t.pending.Length(); i++ {
		if sp := t.pending.Get(i).(*span); sp.remaining > 0 {
			return sp.lo
		}
	}
	return t.next
}
