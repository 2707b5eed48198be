//go:build linux
// +build linux

package transport_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/internal/transport"
)

func tcpPair(t *testing.T) (*transport.Socket, *transport.Socket) {
	t.Helper()
	ln, err := transport.Listen("127.0.0.1", 0, 4)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	if ln.Port() == 0 {
		t.Fatal("ephemeral port not reported")
	}
	type res struct {
		s   *transport.Socket
		err error
	}
	ch := make(chan res, 1)
	go func() {
		s, err := ln.Accept()
		ch <- res{s, err}
	}()
	c, err := transport.Dial("127.0.0.1", ln.Port())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	r := <-ch
	if r.err != nil {
		t.Fatalf("Accept: %v", r.err)
	}
	t.Cleanup(func() {
		c.Close()
		r.s.Close()
	})
	return r.s, c
}

func TestSocketSendRecv(t *testing.T) {
	a, b, err := transport.NewSocketPair()
	if err != nil {
		t.Fatalf("NewSocketPair: %v", err)
	}
	defer a.Close()
	defer b.Close()

	n, err := a.Send([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Send = %d, %v", n, err)
	}
	buf := make([]byte, 16)
	n, err = b.Recv(buf)
	if err != nil || string(buf[:n]) != "hello" {
		t.Fatalf("Recv = %q, %v", buf[:n], err)
	}
}

func TestSocketVectors(t *testing.T) {
	a, b, err := transport.NewSocketPair()
	if err != nil {
		t.Fatalf("NewSocketPair: %v", err)
	}
	defer a.Close()
	defer b.Close()

	out := [][]byte{[]byte("AAA"), []byte("BB"), []byte("C")}
	for i := 0; i < 2; i++ {
		n, err := a.SendVectors(out)
		if err != nil || n != 6 {
			t.Fatalf("SendVectors #%d = %d, %v", i, n, err)
		}
	}
	in := [][]byte{make([]byte, 4), make([]byte, 8)}
	n, err := b.RecvVectors(in)
	if err != nil {
		t.Fatalf("RecvVectors: %v", err)
	}
	got := append(append([]byte{}, in[0]...), in[1]...)[:n]
	if !bytes.Equal(got, []byte("AAABBCAAABBC")[:n]) {
		t.Errorf("scattered bytes = %q", got)
	}
}

func TestSocketPeerClose(t *testing.T) {
	a, b, err := transport.NewSocketPair()
	if err != nil {
		t.Fatalf("NewSocketPair: %v", err)
	}
	defer b.Close()
	a.Close()
	a.Close()

	if _, err := b.Recv(make([]byte, 8)); !errors.Is(err, api.ErrConnClosed) {
		t.Errorf("Recv after peer close err = %v, want ErrConnClosed", err)
	}
	if _, err := b.Send([]byte("x")); !errors.Is(err, api.ErrPeerReset) {
		t.Errorf("Send after peer close err = %v, want ErrPeerReset", err)
	}
}

func TestReadCompletionEmptyQueue(t *testing.T) {
	srv, _ := tcpPair(t)
	if _, err := srv.ReadCompletion(); !errors.Is(err, api.ErrWouldBlock) {
		t.Fatalf("ReadCompletion err = %v, want ErrWouldBlock", err)
	}
	if err := srv.WaitCompletion(10 * time.Millisecond); !errors.Is(err, api.ErrCompletionTimeout) {
		t.Fatalf("WaitCompletion err = %v, want ErrCompletionTimeout", err)
	}
}

func TestZeroCopyCompletionLoopback(t *testing.T) {
	srv, cli := tcpPair(t)
	if err := srv.EnableZeroCopy(); err != nil {
		t.Skipf("zero-copy unavailable: %v", err)
	}
	payload := bytes.Repeat([]byte{'Z'}, 4096)
	n, err := srv.SendZeroCopy(payload)
	if err != nil || n != len(payload) {
		t.Fatalf("SendZeroCopy = %d, %v", n, err)
	}

	got := 0
	buf := make([]byte, 8192)
	for got < len(payload) {
		m, err := cli.Recv(buf)
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		got += m
	}

	if err := srv.WaitCompletion(2 * time.Second); err != nil {
		t.Fatalf("WaitCompletion: %v", err)
	}
	rec, err := srv.ReadCompletion()
	if err != nil {
		t.Fatalf("ReadCompletion: %v", err)
	}
	if rec.Lo != 0 || rec.Hi != 0 || rec.Failed() {
		t.Errorf("completion = %+v, want [0,0] success", rec)
	}
}

func TestEnableZeroCopyOnUnixSocketFails(t *testing.T) {
	a, b, err := transport.NewSocketPair()
	if err != nil {
		t.Fatalf("NewSocketPair: %v", err)
	}
	defer a.Close()
	defer b.Close()
	if err := a.EnableZeroCopy(); !errors.Is(err, api.ErrZeroCopyUnsupported) {
		t.Errorf("EnableZeroCopy on AF_UNIX err = %v, want ErrZeroCopyUnsupported", err)
	}
}

func TestListenerShutdownUnblocksAccept(t *testing.T) {
	ln, err := transport.Listen("127.0.0.1", 0, 4)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	done := make(chan error, 1)
	go func() {
		_, err := ln.Accept()
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	if err := ln.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, api.ErrSocketClosed) {
			t.Errorf("Accept err = %v, want ErrSocketClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Accept still blocked after Shutdown")
	}
}

func TestListenerShutdownAfterClose(t *testing.T) {
	ln, err := transport.Listen("127.0.0.1", 0, 4)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if err := ln.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := ln.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	// The freed descriptor number is likely reused here.
	other, err := transport.Listen("127.0.0.1", 0, 4)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer other.Close()
	if err := ln.Shutdown(); !errors.Is(err, api.ErrSocketClosed) {
		t.Errorf("Shutdown after Close err = %v, want ErrSocketClosed", err)
	}

	c, err := transport.Dial("127.0.0.1", other.Port())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	s, err := other.Accept()
	if err != nil {
		t.Fatalf("Accept on the second listener: %v", err)
	}
	s.Close()
}

func TestListenBindConflict(t *testing.T) {
	ln, err := transport.Listen("127.0.0.1", 0, 4)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	_, err = transport.Listen("127.0.0.1", ln.Port(), 4)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Code != api.ErrCodeBind {
		t.Errorf("second Listen err = %v, want bind error", err)
	}
}

func TestDetectFeatures(t *testing.T) {
	f := transport.DetectFeatures()
	if f.OS != "linux" || !f.ScatterGather {
		t.Errorf("features = %s", f)
	}
}
