// File: strategy/scatter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One-copy strategy: the eight fields are described to the kernel as one
// descriptor list, so a message costs one sendmsg and one recvmsg.

package strategy

import (
	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/pool"
)

// ScatterGather gathers eight page-aligned field buffers into one send call
// and scatters one receive call across eight such buffers.
//
// By default a single receive call counts as one message whatever byte
// count the kernel returns; the call may stop partway through a field and
// the next call starts again at field zero. This measures the cost of one
// scatter call rather than delivering whole messages, and is kept on
// purpose. FillMessages switches to looping until the message is complete.
type ScatterGather struct {
	role         api.Role
	fieldSize    int
	fillMessages bool
	repopulate   bool
	msg          *pool.Message
	// tail holds the unfilled suffix of the descriptor list between calls
	// of one message; its capacity is reserved up front.
	tail [][]byte
}

func newScatterGather(role api.Role, opts Options) (*ScatterGather, error) {
	msg, err := pool.NewMessage(opts.FieldSize, opts.bufferOptions()...)
	if err != nil {
		return nil, err
	}
	if role == api.Sender {
		if err := msg.Populate(); err != nil {
			msg.Free()
			return nil, err
		}
	}
	return &ScatterGather{
		role:         role,
		fieldSize:    opts.FieldSize,
		fillMessages: opts.FillMessages,
		repopulate:   opts.Repopulate,
		msg:          msg,
		tail:         make([][]byte, 0, api.FieldsPerMessage),
	}, nil
}

func (s *ScatterGather) Kind() api.StrategyKind { return api.ScatterGather }

func (s *ScatterGather) MessageSize() int { return s.msg.Size() }

// SendMessage gathers all fields into one call. A short count, possible
// when a signal interrupts a blocking send, is completed by gathering the
// remaining suffix.
func (s *ScatterGather) SendMessage(sock api.Socket) (int, error) {
	if s.role != api.Sender {
		return 0, wrongRole(api.ScatterGather, s.role)
	}
	if s.repopulate {
		if err := s.msg.Populate(); err != nil {
			return 0, err
		}
	}
	loan, err := s.msg.Lend()
	if err != nil {
		return 0, err
	}
	defer loan.Return()

	vec := loan.Vectors()
	size := s.msg.Size()
	sent := 0
	for sent < size {
		n, err := sock.SendVectors(vec)
		if err != nil {
			if err == api.ErrInterrupted {
				continue
			}
			return sent, err
		}
		sent += n
		if sent < size {
			vec = advance(s.tail, loan.Vectors(), sent)
		}
	}
	return sent, nil
}

// ReceiveMessage scatters one receive call across the fields. See the type
// comment for the short-read policy.
func (s *ScatterGather) ReceiveMessage(sock api.Socket) (int, error) {
	if s.role != api.Receiver {
		return 0, wrongRole(api.ScatterGather, s.role)
	}
	loan, err := s.msg.Lend()
	if err != nil {
		return 0, err
	}
	defer loan.Return()

	vec := loan.Vectors()
	size := s.msg.Size()
	got := 0
	for {
		n, err := sock.RecvVectors(vec)
		if err != nil {
			if err == api.ErrInterrupted {
				continue
			}
			return got, err
		}
		got += n
		if !s.fillMessages || got >= size {
			return got, nil
		}
		vec = advance(s.tail, loan.Vectors(), got)
	}
}

// Close releases the field buffers.
func (s *ScatterGather) Close() error {
	return s.msg.Free()
}
