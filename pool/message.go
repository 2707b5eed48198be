// File: pool/message.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Message layout: eight fixed-size fields, transmitted in field order.

package pool

import (
	"fmt"

	"github.com/momentics/copybench/api"
)

// FillField writes the payload pattern of field index i into p:
// the byte 'A'+i repeated, terminated by a zero byte.
func FillField(p []byte, i int) {
	if len(p) == 0 {
		return
	}
	c := byte('A' + i)
	for j := range p {
		p[j] = c
	}
	p[len(p)-1] = 0
}

// FillMessage writes all fields of a contiguous message into p.
func FillMessage(p []byte, fieldSize int) {
	for i := 0; i < api.FieldsPerMessage; i++ {
		FillField(p[i*fieldSize:(i+1)*fieldSize], i)
	}
}

// Message is a set of separately allocated field buffers together with a
// descriptor list built once and reused for every vectored call.
type Message struct {
	fieldSize int
	fields    [api.FieldsPerMessage]*Buffer
	vectors   [][]byte
}

// NewMessage allocates one page-aligned buffer per field.
func NewMessage(fieldSize int, opts ...BufferOption) (*Message, error) {
	if fieldSize <= 0 {
		return nil, fmt.Errorf("field size %d: %w", fieldSize, api.ErrInvalidArgument)
	}
	m := &Message{
		fieldSize: fieldSize,
		vectors:   make([][]byte, api.FieldsPerMessage),
	}
	for i := range m.fields {
		b, err := NewBuffer(fieldSize, opts...)
		if err != nil {
			m.Free()
			return nil, err
		}
		m.fields[i] = b
		m.vectors[i] = b.View()
	}
	return m, nil
}

// FieldSize returns the size of one field.
func (m *Message) FieldSize() int { return m.fieldSize }

// Size returns the full message size.
func (m *Message) Size() int { return m.fieldSize * api.FieldsPerMessage }

// Field returns the buffer backing field i.
func (m *Message) Field(i int) *Buffer { return m.fields[i] }

// Populate fills every field with its payload pattern.
func (m *Message) Populate() error {
	for i, b := range m.fields {
		idx := i
		if err := b.Populate(func(p []byte) { FillField(p, idx) }); err != nil {
			return err
		}
	}
	return nil
}

// MessageLoan holds kernel ownership of every field of a message.
type MessageLoan struct {
	loans   [api.FieldsPerMessage]Loan
	vectors [][]byte
}

// Lend hands all fields to the kernel and returns the shared descriptor
// list. The list must not be modified by the caller.
func (m *Message) Lend() (MessageLoan, error) {
	ml := MessageLoan{vectors: m.vectors}
	for i, b := range m.fields {
		l, err := b.Lend()
		if err != nil {
			for j := 0; j < i; j++ {
				ml.loans[j].Return()
			}
			return MessageLoan{}, err
		}
		ml.loans[i] = l
	}
	return ml, nil
}

// Vectors returns the descriptor list covering all fields in order.
func (ml *MessageLoan) Vectors() [][]byte { return ml.vectors }

// Return settles every field loan.
func (ml *MessageLoan) Return() {
	for i := range ml.loans {
		ml.loans[i].Return()
	}
}

// Free releases every field buffer.
func (m *Message) Free() error {
	var first error
	for _, b := range m.fields {
		if b == nil {
			continue
		}
		if err := b.Free(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
