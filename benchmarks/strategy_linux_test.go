//go:build linux
// +build linux

// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Per-message cost of each transfer strategy over a loopback TCP pair,
// plus the buffer and completion bookkeeping on its own.

package benchmarks

import (
	"fmt"
	"testing"

	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/fake"
	"github.com/momentics/copybench/internal/transport"
	"github.com/momentics/copybench/pool"
	"github.com/momentics/copybench/strategy"
)

func loopbackPair(b *testing.B) (tx, rx *transport.Socket) {
	b.Helper()
	l, err := transport.Listen("127.0.0.1", 0, 1)
	if err != nil {
		b.Fatal(err)
	}
	defer l.Close()
	accepted := make(chan *transport.Socket, 1)
	go func() {
		s, err := l.Accept()
		if err != nil {
			accepted <- nil
			return
		}
		accepted <- s
	}()
	rx, err = transport.Dial("127.0.0.1", l.Port())
	if err != nil {
		b.Fatal(err)
	}
	tx = <-accepted
	if tx == nil {
		b.Fatal("accept failed")
	}
	return tx, rx
}

func benchmarkStrategy(b *testing.B, kind api.StrategyKind, fieldSize int) {
	tx, rx := loopbackPair(b)
	opts := strategy.Options{FieldSize: fieldSize, FillMessages: true}
	sender, err := strategy.New(kind, api.Sender, opts)
	if err != nil {
		b.Fatal(err)
	}
	defer sender.Close()
	if p, ok := sender.(api.Preparer); ok {
		if err := p.Prepare(tx); err != nil {
			b.Skipf("%s unavailable: %v", kind, err)
		}
	}
	receiver, err := strategy.New(kind, api.Receiver, opts)
	if err != nil {
		b.Fatal(err)
	}
	defer receiver.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, err := receiver.ReceiveMessage(rx); err != nil {
				return
			}
		}
	}()

	b.SetBytes(int64(sender.MessageSize()))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := sender.SendMessage(tx); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()
	tx.Close()
	<-done
	rx.Close()
}

func BenchmarkStrategies(b *testing.B) {
	for _, kind := range api.AllStrategies {
		for _, size := range []int{1024, 16 * 1024} {
			b.Run(fmt.Sprintf("%s/%d", kind, size), func(b *testing.B) {
				benchmarkStrategy(b, kind, size)
			})
		}
	}
}

// BenchmarkBufferLoan measures the ownership round trip of one buffer.
func BenchmarkBufferLoan(b *testing.B) {
	buf, err := pool.NewBuffer(8 * 1024)
	if err != nil {
		b.Fatal(err)
	}
	defer buf.Free()
	if err := buf.Populate(func(p []byte) { pool.FillMessage(p, 1024) }); err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		loan, err := buf.Lend()
		if err != nil {
			b.Fatal(err)
		}
		pending := loan.Await(uint32(i), uint32(i))
		pending.Complete()
	}
}

// BenchmarkTrackerDrain measures completion reconciliation without a
// kernel in the loop.
func BenchmarkTrackerDrain(b *testing.B) {
	tr := strategy.NewTracker()
	sock := fake.NewSocket()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		seq := tr.Issued()
		sock.Complete(seq, seq)
		if _, err := tr.Drain(sock); err != nil {
			b.Fatal(err)
		}
	}
}
