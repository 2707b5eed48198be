package strategy_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/fake"
	"github.com/momentics/copybench/pool"
	"github.com/momentics/copybench/strategy"
)

const fieldSize = 64

func expectedMessage() []byte {
	p := make([]byte, fieldSize*api.FieldsPerMessage)
	pool.FillMessage(p, fieldSize)
	return p
}

func build(t *testing.T, kind api.StrategyKind, role api.Role, opts strategy.Options) api.Strategy {
	t.Helper()
	if opts.FieldSize == 0 {
		opts.FieldSize = fieldSize
	}
	s, err := strategy.New(kind, role, opts)
	if err != nil {
		t.Fatalf("New(%s, %s): %v", kind, role, err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestNewRejectsBadFieldSize(t *testing.T) {
	for _, kind := range api.AllStrategies {
		if _, err := strategy.New(kind, api.Sender, strategy.Options{}); !errors.Is(err, api.ErrInvalidArgument) {
			t.Errorf("%s: err = %v, want ErrInvalidArgument", kind, err)
		}
	}
}

func TestWrongRoleIsRejected(t *testing.T) {
	for _, kind := range api.AllStrategies {
		rx := build(t, kind, api.Receiver, strategy.Options{})
		if _, err := rx.SendMessage(fake.NewSocket()); !errors.Is(err, api.ErrInvalidArgument) {
			t.Errorf("%s receiver SendMessage err = %v", kind, err)
		}
		tx := build(t, kind, api.Sender, strategy.Options{})
		if _, err := tx.ReceiveMessage(fake.NewSocket()); !errors.Is(err, api.ErrInvalidArgument) {
			t.Errorf("%s sender ReceiveMessage err = %v", kind, err)
		}
	}
}

func TestTwoCopySendOneCallPerField(t *testing.T) {
	s := build(t, api.TwoCopy, api.Sender, strategy.Options{})
	sock := fake.NewSocket()

	n, err := s.SendMessage(sock)
	if err != nil || n != s.MessageSize() {
		t.Fatalf("SendMessage = %d, %v", n, err)
	}
	if c := sock.Counters(); c.SendCalls != api.FieldsPerMessage || c.VectorCalls != 0 {
		t.Errorf("counters = %+v, want %d plain sends", c, api.FieldsPerMessage)
	}
	if !bytes.Equal(sock.Sent(), expectedMessage()) {
		t.Error("wire bytes differ from field order payload")
	}
}

func TestTwoCopySendPartialWrites(t *testing.T) {
	s := build(t, api.TwoCopy, api.Sender, strategy.Options{})
	sock := fake.NewSocket()
	sock.SetMaxSend(fieldSize/3 + 1)
	sock.InjectSendErrors(nil, api.ErrInterrupted, nil, api.ErrInterrupted)

	n, err := s.SendMessage(sock)
	if err != nil || n != s.MessageSize() {
		t.Fatalf("SendMessage = %d, %v", n, err)
	}
	if !bytes.Equal(sock.Sent(), expectedMessage()) {
		t.Error("partial writes lost or reordered bytes")
	}
}

func TestTwoCopyReceiveChunked(t *testing.T) {
	s := build(t, api.TwoCopy, api.Receiver, strategy.Options{})
	sock := fake.NewSocket()
	msg := expectedMessage()
	sock.Deliver(msg[:10], msg[10:100], msg[100:101], msg[101:])
	sock.InjectRecvErrors(api.ErrInterrupted)

	n, err := s.ReceiveMessage(sock)
	if err != nil || n != len(msg) {
		t.Fatalf("ReceiveMessage = %d, %v; want %d", n, err, len(msg))
	}
}

func TestTwoCopyReceivePartialFieldThenClose(t *testing.T) {
	s := build(t, api.TwoCopy, api.Receiver, strategy.Options{})
	sock := fake.NewSocket()
	sock.Deliver(make([]byte, fieldSize+fieldSize/2))

	n, err := s.ReceiveMessage(sock)
	if !errors.Is(err, api.ErrConnClosed) {
		t.Fatalf("err = %v, want ErrConnClosed", err)
	}
	if n != fieldSize+fieldSize/2 {
		t.Errorf("n = %d, want %d", n, fieldSize+fieldSize/2)
	}
}

func TestTwoCopySendPeerReset(t *testing.T) {
	s := build(t, api.TwoCopy, api.Sender, strategy.Options{})
	sock := fake.NewSocket()
	sock.InjectSendErrors(nil, api.ErrPeerReset)

	n, err := s.SendMessage(sock)
	if !errors.Is(err, api.ErrPeerReset) {
		t.Fatalf("err = %v, want ErrPeerReset", err)
	}
	if n != fieldSize {
		t.Errorf("n = %d, want one field", n)
	}
}

func TestScatterGatherSendSingleCall(t *testing.T) {
	s := build(t, api.ScatterGather, api.Sender, strategy.Options{})
	sock := fake.NewSocket()

	for i := 0; i < 3; i++ {
		if n, err := s.SendMessage(sock); err != nil || n != s.MessageSize() {
			t.Fatalf("SendMessage #%d = %d, %v", i, n, err)
		}
	}
	if c := sock.Counters(); c.VectorCalls != 3 || c.SendCalls != 0 {
		t.Errorf("counters = %+v, want 3 vectored calls", c)
	}
	if !bytes.Equal(sock.Sent()[:s.MessageSize()], expectedMessage()) {
		t.Error("gathered bytes differ from field order payload")
	}
}

func TestScatterGatherSendShortCount(t *testing.T) {
	s := build(t, api.ScatterGather, api.Sender, strategy.Options{})
	sock := fake.NewSocket()
	sock.SetMaxSend(fieldSize*3 + 7)

	n, err := s.SendMessage(sock)
	if err != nil || n != s.MessageSize() {
		t.Fatalf("SendMessage = %d, %v", n, err)
	}
	if !bytes.Equal(sock.Sent(), expectedMessage()) {
		t.Error("suffix resend corrupted the stream")
	}
	if c := sock.Counters(); c.VectorCalls != 3 {
		t.Errorf("vectored calls = %d, want 3", c.VectorCalls)
	}
}

func TestScatterGatherShortReceiveIsOneMessage(t *testing.T) {
	s := build(t, api.ScatterGather, api.Receiver, strategy.Options{})
	sock := fake.NewSocket()
	msg := expectedMessage()
	sock.Deliver(msg[:fieldSize+5], msg[fieldSize+5:])

	n, err := s.ReceiveMessage(sock)
	if err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	if n != fieldSize+5 {
		t.Errorf("n = %d, want the single call's %d bytes", n, fieldSize+5)
	}
	if n > len(msg) {
		t.Error("received more than one message")
	}
	if c := sock.Counters(); c.RecvCalls != 1 {
		t.Errorf("recv calls = %d, want 1", c.RecvCalls)
	}
}

// scatterRecorder keeps the descriptor list of the last vectored receive.
type scatterRecorder struct {
	*fake.Socket
	bufs [][]byte
}

func (r *scatterRecorder) RecvVectors(bufs [][]byte) (int, error) {
	r.bufs = bufs
	return r.Socket.RecvVectors(bufs)
}

func TestScatterGatherShortReceiveIsMessagePrefix(t *testing.T) {
	s := build(t, api.ScatterGather, api.Receiver, strategy.Options{})
	rec := &scatterRecorder{Socket: fake.NewSocket()}
	msg := expectedMessage()
	cut := 3*fieldSize + 9
	rec.Deliver(msg[:cut], msg[cut:])

	n, err := s.ReceiveMessage(rec)
	if err != nil || n != cut {
		t.Fatalf("ReceiveMessage = %d, %v; want %d", n, err, cut)
	}
	if len(rec.bufs) != api.FieldsPerMessage {
		t.Fatalf("descriptors = %d, want %d", len(rec.bufs), api.FieldsPerMessage)
	}
	got := bytes.Join(rec.bufs, nil)
	if !bytes.Equal(got[:n], msg[:n]) {
		t.Error("scattered bytes are not a prefix of the message")
	}
}

func TestScatterGatherFillMessages(t *testing.T) {
	s := build(t, api.ScatterGather, api.Receiver, strategy.Options{FillMessages: true})
	sock := fake.NewSocket()
	msg := expectedMessage()
	sock.Deliver(msg[:fieldSize+5], msg[fieldSize+5:300], msg[300:])

	n, err := s.ReceiveMessage(sock)
	if err != nil || n != len(msg) {
		t.Fatalf("ReceiveMessage = %d, %v; want %d", n, err, len(msg))
	}
}

func TestScatterGatherReceiveClosed(t *testing.T) {
	s := build(t, api.ScatterGather, api.Receiver, strategy.Options{FillMessages: true})
	sock := fake.NewSocket()
	sock.Deliver(make([]byte, 10))

	n, err := s.ReceiveMessage(sock)
	if !errors.Is(err, api.ErrConnClosed) || n != 10 {
		t.Fatalf("ReceiveMessage = %d, %v; want 10, ErrConnClosed", n, err)
	}
}
