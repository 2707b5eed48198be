package harness

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/fake"
	"github.com/momentics/copybench/internal/concurrency"
	"github.com/momentics/copybench/pool"
	"github.com/momentics/copybench/strategy"
)

const testField = 32

func message() []byte {
	p := make([]byte, testField*api.FieldsPerMessage)
	pool.FillMessage(p, testField)
	return p
}

func connectTo(s *fake.Socket) ConnectFunc {
	return func() (api.Socket, error) { return s, nil }
}

func newWorker(role api.Role, kind api.StrategyKind, sock *fake.Socket) (*Worker, *[]State) {
	var states []State
	w := &Worker{
		ID:      1,
		Role:    role,
		Kind:    kind,
		Options: strategy.Options{FieldSize: testField},
		Connect: connectTo(sock),
		Stop:    concurrency.NewStopToken(),
		OnState: func(_ int, s State) { states = append(states, s) },
	}
	return w, &states
}

func TestWorkerReceivesUntilPeerCloses(t *testing.T) {
	sock := fake.NewSocket()
	msg := message()
	sock.Deliver(msg, msg[:5], msg[5:], msg)
	w, states := newWorker(api.Receiver, api.TwoCopy, sock)

	st := w.Run()
	if st.Err != nil {
		t.Fatalf("Err = %v, want orderly end", st.Err)
	}
	if st.Messages != 3 || st.Bytes != uint64(3*len(msg)) {
		t.Errorf("stats = %+v", st)
	}
	want := []State{Connecting, Connected, Active, Draining, Closed}
	if !reflect.DeepEqual(*states, want) {
		t.Errorf("states = %v, want %v", *states, want)
	}
}

func TestWorkerStopsOnToken(t *testing.T) {
	sock := fake.NewSocket()
	w, _ := newWorker(api.Sender, api.TwoCopy, sock)
	sends := 0
	sock.OnSend(func([]byte) {
		sends++
		if sends == 5*api.FieldsPerMessage {
			w.Stop.RequestStop()
		}
	})

	st := w.Run()
	if st.Err != nil || st.Messages != 5 {
		t.Fatalf("stats = %+v, want 5 messages", st)
	}
}

func TestWorkerStopsAtDeadline(t *testing.T) {
	sock := fake.NewSocket()
	w, _ := newWorker(api.Sender, api.ScatterGather, sock)
	w.Duration = time.Nanosecond

	st := w.Run()
	if st.Messages != 1 {
		t.Errorf("messages = %d, want 1: the deadline is checked after each message", st.Messages)
	}
	if st.Elapsed <= 0 {
		t.Error("elapsed not recorded")
	}
}

func TestWorkerPeerResetIsOrderly(t *testing.T) {
	sock := fake.NewSocket()
	sock.InjectSendErrors(nil, nil, api.ErrPeerReset)
	w, _ := newWorker(api.Sender, api.TwoCopy, sock)

	st := w.Run()
	if st.Err != nil {
		t.Fatalf("Err = %v", st.Err)
	}
	if st.Messages != 0 || st.Bytes != 2*testField {
		t.Errorf("stats = %+v", st)
	}
}

func TestWorkerFatalError(t *testing.T) {
	boom := errors.New("boom")
	sock := fake.NewSocket()
	sock.InjectSendErrors(boom)
	w, states := newWorker(api.Sender, api.ScatterGather, sock)

	st := w.Run()
	if !errors.Is(st.Err, boom) {
		t.Fatalf("Err = %v, want boom", st.Err)
	}
	if last := (*states)[len(*states)-1]; last != Closed {
		t.Errorf("final state = %v", last)
	}
}

func TestWorkerConnectFailure(t *testing.T) {
	w, states := newWorker(api.Receiver, api.TwoCopy, nil)
	refused := errors.New("connection refused")
	w.Connect = func() (api.Socket, error) { return nil, refused }

	st := w.Run()
	if !errors.Is(st.Err, refused) {
		t.Fatalf("Err = %v", st.Err)
	}
	if !reflect.DeepEqual(*states, []State{Connecting, Closed}) {
		t.Errorf("states = %v", *states)
	}
}

func TestWorkerZeroCopyRefusal(t *testing.T) {
	sock := fake.NewSocket()
	sock.SetZeroCopyError(api.ErrZeroCopyUnsupported)
	w, _ := newWorker(api.Sender, api.ZeroCopy, sock)

	st := w.Run()
	if !errors.Is(st.Err, api.ErrZeroCopyUnsupported) {
		t.Fatalf("Err = %v", st.Err)
	}
	if c := sock.Counters(); c.SendCalls != 0 {
		t.Errorf("sent %d times after a refused opt-in", c.SendCalls)
	}
}

func TestWorkerZeroCopySummary(t *testing.T) {
	sock := fake.NewSocket()
	sock.SetCompletionMode(fake.CompleteImmediately)
	w, _ := newWorker(api.Sender, api.ZeroCopy, sock)
	w.Duration = time.Nanosecond

	st := w.Run()
	if st.Err != nil {
		t.Fatalf("Err = %v", st.Err)
	}
	if !strings.Contains(st.Note, "zero-copy sends=1") {
		t.Errorf("note = %q", st.Note)
	}
}

func TestWorkerClosesSocketBeforeBuffers(t *testing.T) {
	sock := fake.NewSocket()
	sock.SetCompletionMode(fake.CompleteNever)
	w, _ := newWorker(api.Sender, api.ZeroCopy, sock)
	w.Options.CompletionTimeout = 5 * time.Millisecond
	released := false
	w.Options.Observer = func(_ *pool.Buffer, from, to pool.State) {
		if from != pool.AwaitingCompletion || to != pool.Free {
			return
		}
		released = true
		if !sock.Closed() {
			t.Error("buffer abandoned while the socket was still open")
		}
	}

	st := w.Run()
	if !errors.Is(st.Err, api.ErrCompletionTimeout) {
		t.Fatalf("Err = %v, want ErrCompletionTimeout", st.Err)
	}
	if !released {
		t.Error("pending completion was not abandoned on exit")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	bad := []func(*Config){
		func(c *Config) { c.FieldSize = 0 },
		func(c *Config) { c.Conns = -1 },
		func(c *Config) { c.Port = 70000 },
		func(c *Config) { c.LogLevel = "loud" },
		func(c *Config) { c.Strategy = api.StrategyKind(9) },
	}
	for i, mutate := range bad {
		c := DefaultConfig()
		mutate(c)
		err := c.Validate()
		if !errors.Is(err, api.ErrInvalidArgument) {
			t.Errorf("case %d: err = %v", i, err)
		}
		var apiErr *api.Error
		if !errors.As(err, &apiErr) || apiErr.Code != api.ErrCodeInvalidArgument {
			t.Errorf("case %d: not a structured error: %v", i, err)
		}
	}
}

func TestConfigString(t *testing.T) {
	c := DefaultConfig()
	c.Strategy = api.ZeroCopy
	out := c.String()
	for _, want := range []string{"BENCHMARK", "zero-copy", "Completion Timeout", "8192 bytes"} {
		if !strings.Contains(out, want) {
			t.Errorf("config string missing %q:\n%s", want, out)
		}
	}
}

func TestRunnerCollectsEveryWorker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FieldSize = testField
	cfg.Conns = 3
	cfg.Duration = 0
	cfg.PromFile = filepath.Join(t.TempDir(), "run.prom")

	var mu sync.Mutex
	closed := 0
	r := NewRunner(cfg, api.Receiver, nil, nil)
	r.OnState = func(_ int, s State) {
		if s == Closed {
			mu.Lock()
			closed++
			mu.Unlock()
		}
	}
	msg := message()
	for id := 0; id < cfg.Conns; id++ {
		sock := fake.NewSocket()
		sock.Deliver(msg, msg)
		r.Spawn(id, connectTo(sock))
	}
	rep, err := r.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if closed != 3 || len(rep.Threads) != 3 {
		t.Fatalf("closed = %d threads = %d", closed, len(rep.Threads))
	}
	if rep.Aggregate.TotalMessages != 6 || rep.Aggregate.TotalBytes != uint64(6*len(msg)) {
		t.Errorf("aggregate = %+v", rep.Aggregate)
	}
	if b, m := r.Progress().Totals(); m != 6 || b != rep.Aggregate.TotalBytes {
		t.Errorf("progress totals = %d, %d", b, m)
	}
	if _, err := os.Stat(cfg.PromFile); err != nil {
		t.Errorf("prometheus file: %v", err)
	}

	var out strings.Builder
	rep.Write(&out, true)
	if !strings.Contains(out.String(), "Total messages received: 6") {
		t.Errorf("report:\n%s", out.String())
	}
}

func TestReportAppendCSV(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CSVPath = filepath.Join(t.TempDir(), "runs.csv")
	rep := Report{Role: api.Receiver}
	if err := rep.AppendCSV(cfg); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(cfg.CSVPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(raw), "strategy,field_size") {
		t.Errorf("csv = %q", raw)
	}
}
