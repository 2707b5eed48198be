// File: internal/logging/logging.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Leveled logger construction shared by the commands and the harness.

package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/gologme/log"
)

// Levels in increasing verbosity. Enabling a level enables all before it.
var Levels = [...]string{"error", "warn", "info", "debug", "trace"}

// ValidLevel reports whether name is a known level.
func ValidLevel(name string) bool {
	name = strings.ToLower(name)
	for _, l := range Levels {
		if l == name {
			return true
		}
	}
	return false
}

// New returns a logger writing to w with every level up to and
// including level enabled.
func New(w io.Writer, level string) (*log.Logger, error) {
	level = strings.ToLower(level)
	if !ValidLevel(level) {
		return nil, fmt.Errorf("unknown log level %q (want one of %s)", level, strings.Join(Levels[:], ", "))
	}
	logger := log.New(w, "", log.Flags())
	for _, l := range Levels {
		logger.EnableLevel(l)
		if l == level {
			break
		}
	}
	return logger, nil
}

// Discard returns a logger that drops everything. Used when callers pass
// no logger.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
