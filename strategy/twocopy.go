// File: strategy/twocopy.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Two-copy strategy: one send or receive call per field. Each field crosses
// the user/kernel boundary on its own, which is the cost being measured.

package strategy

import (
	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/pool"
)

// TwoCopy sends eight separately allocated fields with eight send calls and
// receives them field by field into one reused field buffer.
type TwoCopy struct {
	role       api.Role
	fieldSize  int
	repopulate bool
	msg        *pool.Message // sender
	field      *pool.Buffer  // receiver
}

func newTwoCopy(role api.Role, opts Options) (*TwoCopy, error) {
	s := &TwoCopy{role: role, fieldSize: opts.FieldSize, repopulate: opts.Repopulate}
	var err error
	if role == api.Sender {
		if s.msg, err = pool.NewMessage(opts.FieldSize, opts.bufferOptions()...); err != nil {
			return nil, err
		}
		if err = s.msg.Populate(); err != nil {
			s.msg.Free()
			return nil, err
		}
		return s, nil
	}
	if s.field, err = pool.NewBuffer(opts.FieldSize, opts.bufferOptions()...); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TwoCopy) Kind() api.StrategyKind { return api.TwoCopy }

func (s *TwoCopy) MessageSize() int { return s.fieldSize * api.FieldsPerMessage }

// SendMessage issues one send loop per field, in field order.
func (s *TwoCopy) SendMessage(sock api.Socket) (int, error) {
	if s.msg == nil {
		return 0, wrongRole(api.TwoCopy, s.role)
	}
	if s.repopulate {
		if err := s.msg.Populate(); err != nil {
			return 0, err
		}
	}
	total := 0
	for i := 0; i < api.FieldsPerMessage; i++ {
		loan, err := s.msg.Field(i).Lend()
		if err != nil {
			return total, err
		}
		n, err := sendFull(sock, loan.Bytes())
		loan.Return()
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ReceiveMessage reads eight fields of fieldSize bytes each into the same
// buffer. A peer close mid-message returns the bytes read so far together
// with api.ErrConnClosed.
func (s *TwoCopy) ReceiveMessage(sock api.Socket) (int, error) {
	if s.field == nil {
		return 0, wrongRole(api.TwoCopy, s.role)
	}
	loan, err := s.field.Lend()
	if err != nil {
		return 0, err
	}
	defer loan.Return()
	total := 0
	for i := 0; i < api.FieldsPerMessage; i++ {
		n, err := recvFull(sock, loan.Bytes())
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Close releases the buffers.
func (s *TwoCopy) Close() error {
	if s.msg != nil {
		return s.msg.Free()
	}
	if s.field != nil {
		return s.field.Free()
	}
	return nil
}
