//go:build linux
// +build linux

package server_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/internal/harness"
	"github.com/momentics/copybench/internal/transport"
	"github.com/momentics/copybench/server"
)

func ephemeral() *harness.Config {
	cfg := harness.DefaultConfig()
	cfg.Addr = "127.0.0.1"
	cfg.Port = 0
	cfg.FieldSize = 64
	cfg.Conns = 2
	return cfg
}

func TestAcceptorShutdownBeforeConnections(t *testing.T) {
	acc, err := server.NewAcceptor(ephemeral())
	if err != nil {
		t.Fatal(err)
	}
	if err := acc.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if acc.Port() == 0 {
		t.Fatal("no ephemeral port reported")
	}
	done := make(chan error, 1)
	go func() {
		rep, err := acc.Run()
		if err == nil && len(rep.Threads) != 0 {
			err = errors.New("unexpected workers")
		}
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	acc.Shutdown()
	acc.Shutdown()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run still blocked in accept after Shutdown")
	}
}

func TestAcceptorShutdownAfterRunLeavesOtherListeners(t *testing.T) {
	acc, err := server.NewAcceptor(ephemeral())
	if err != nil {
		t.Fatal(err)
	}
	if err := acc.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := acc.Run()
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	acc.Shutdown()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if acc.Port() != 0 {
		t.Errorf("port after Run = %d, want 0", acc.Port())
	}

	other, err := transport.Listen("127.0.0.1", 0, 4)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer other.Close()
	acc.Shutdown()

	c, err := transport.Dial("127.0.0.1", other.Port())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	s, err := other.Accept()
	if err != nil {
		t.Fatalf("Accept after a late Shutdown: %v", err)
	}
	s.Close()
}

func TestAcceptorBindConflictIsFatal(t *testing.T) {
	first, err := server.NewAcceptor(ephemeral())
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Listen(); err != nil {
		t.Fatal(err)
	}
	defer first.Shutdown()

	cfg := ephemeral()
	cfg.Addr = "127.0.0.1"
	cfg.Port = first.Port()
	second, err := server.NewAcceptor(cfg)
	if err != nil {
		t.Fatal(err)
	}
	// SO_REUSEADDR does not allow two listeners on one port.
	_, err = second.Run()
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Code != api.ErrCodeBind {
		t.Fatalf("err = %v, want bind error", err)
	}
}

func TestAcceptorSpawnsOneWorkerPerConnection(t *testing.T) {
	var mu sync.Mutex
	active := map[int]bool{}
	acc, err := server.NewAcceptor(ephemeral(), server.WithStateObserver(func(id int, s harness.State) {
		if s == harness.Active {
			mu.Lock()
			active[id] = true
			mu.Unlock()
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	if err := acc.Listen(); err != nil {
		t.Fatal(err)
	}
	done := make(chan harness.Report, 1)
	go func() {
		rep, _ := acc.Run()
		done <- rep
	}()

	for i := 0; i < 2; i++ {
		s, err := transport.Dial("127.0.0.1", acc.Port())
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		buf := make([]byte, 64*api.FieldsPerMessage)
		if _, err := s.Recv(buf); err != nil {
			t.Fatalf("Recv: %v", err)
		}
		s.Close()
	}

	select {
	case rep := <-done:
		if len(rep.Threads) != 2 {
			t.Fatalf("threads = %d", len(rep.Threads))
		}
		for _, st := range rep.Threads {
			if st.Err != nil {
				t.Errorf("worker %d: %v", st.ID, st.Err)
			}
		}
	case <-time.After(10 * time.Second):
		acc.Shutdown()
		t.Fatal("server did not finish")
	}
	if len(active) != 2 {
		t.Errorf("active workers = %v", active)
	}
}

func TestNewAcceptorRejectsBadConfig(t *testing.T) {
	cfg := ephemeral()
	cfg.Conns = 0
	if _, err := server.NewAcceptor(cfg); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("err = %v", err)
	}
}
