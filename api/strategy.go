// File: api/strategy.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Transfer strategy contract and strategy identifiers.

package api

import (
	"fmt"
	"strings"
)

// FieldsPerMessage is the fixed number of fields in one logical message.
const FieldsPerMessage = 8

// StrategyKind names one of the transfer strategies.
type StrategyKind int

const (
	// TwoCopy issues one send/receive call per field.
	TwoCopy StrategyKind = iota
	// ScatterGather issues one vectored call per message.
	ScatterGather
	// ZeroCopy transmits from pinned memory with asynchronous completions.
	ZeroCopy
)

// AllStrategies lists every kind in wire-port order.
var AllStrategies = []StrategyKind{TwoCopy, ScatterGather, ZeroCopy}

func (k StrategyKind) String() string {
	switch k {
	case TwoCopy:
		return "two-copy"
	case ScatterGather:
		return "one-copy"
	case ZeroCopy:
		return "zero-copy"
	}
	return fmt.Sprintf("strategy(%d)", int(k))
}

// DefaultPort returns the conventional listening port of the strategy.
func (k StrategyKind) DefaultPort() int {
	return 8080 + int(k)
}

// ParseStrategyKind accepts the CLI names plus a few aliases.
func ParseStrategyKind(s string) (StrategyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "two-copy", "twocopy", "2":
		return TwoCopy, nil
	case "one-copy", "onecopy", "scatter-gather", "sg", "1":
		return ScatterGather, nil
	case "zero-copy", "zerocopy", "0":
		return ZeroCopy, nil
	}
	return 0, fmt.Errorf("unknown strategy %q: %w", s, ErrInvalidArgument)
}

// Strategy moves fixed-size messages across a Socket.
// An instance is owned by one worker and is not safe for concurrent use.
type Strategy interface {
	Kind() StrategyKind
	// MessageSize is the nominal size of one message in bytes.
	MessageSize() int
	// SendMessage transmits one message and returns the bytes sent.
	SendMessage(s Socket) (int, error)
	// ReceiveMessage reads one message and returns the bytes received.
	// On ErrConnClosed the count covers the partial message, if any.
	ReceiveMessage(s Socket) (int, error)
	// Close releases every buffer owned by the strategy.
	Close() error
}
