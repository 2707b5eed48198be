// File: internal/harness/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Run configuration shared by the acceptor and the initiator.

package harness

import (
	"fmt"
	"strings"
	"time"

	"github.com/gologme/log"
	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/internal/logging"
	"github.com/momentics/copybench/strategy"
)

// ServerBacklog is the listen backlog used by the acceptor.
const ServerBacklog = 100

// SpawnStagger separates client connection attempts.
const SpawnStagger = 10 * time.Millisecond

// Config holds all run parameters. Field sizes and strategy must match
// on both ends; the wire carries no framing.
type Config struct {
	Strategy  api.StrategyKind
	Addr      string        // server address (client) or bind address (server, empty = any)
	Port      int           // 0 = ephemeral on the server
	FieldSize int           // bytes per field, eight fields per message
	Conns     int           // number of connections
	Duration  time.Duration // client run duration

	FillMessages             bool
	AllowImplicitCompletions bool
	CompletionTimeout        time.Duration
	Repopulate               bool

	PinCPUs          bool
	ProgressInterval time.Duration // 0 disables progress lines
	CSVPath          string
	PromFile         string
	Table            bool
	LogLevel         string
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Strategy:          api.TwoCopy,
		Addr:              "127.0.0.1",
		Port:              api.TwoCopy.DefaultPort(),
		FieldSize:         1024,
		Conns:             4,
		Duration:          30 * time.Second,
		CompletionTimeout: strategy.DefaultCompletionTimeout,
		LogLevel:          "info",
	}
}

// Validate reports the first invalid setting. Errors match
// api.ErrInvalidArgument.
func (c *Config) Validate() error {
	switch {
	case c.FieldSize <= 0:
		return invalid("field size must be positive", "field_size", c.FieldSize)
	case c.Conns <= 0:
		return invalid("connection count must be positive", "conns", c.Conns)
	case c.Port < 0 || c.Port > 65535:
		return invalid("port out of range", "port", c.Port)
	case c.Duration < 0:
		return invalid("duration must not be negative", "duration", c.Duration)
	case c.CompletionTimeout < 0:
		return invalid("completion timeout must not be negative", "completion_timeout", c.CompletionTimeout)
	case c.LogLevel != "" && !logging.ValidLevel(c.LogLevel):
		return invalid("unknown log level", "log_level", c.LogLevel)
	}
	for _, k := range api.AllStrategies {
		if k == c.Strategy {
			return nil
		}
	}
	return invalid("unknown strategy", "strategy", int(c.Strategy))
}

func invalid(msg, key string, value any) error {
	return api.NewError(api.ErrCodeInvalidArgument, msg).
		WithContext(key, value).
		Wrap(api.ErrInvalidArgument)
}

// StrategyOptions derives the per-worker strategy options.
func (c *Config) StrategyOptions(logger *log.Logger) strategy.Options {
	return strategy.Options{
		FieldSize:                c.FieldSize,
		FillMessages:             c.FillMessages,
		AllowImplicitCompletions: c.AllowImplicitCompletions,
		CompletionTimeout:        c.CompletionTimeout,
		Repopulate:               c.Repopulate,
		Logger:                   logger,
	}
}

// MessageSize returns the bytes of one message.
func (c *Config) MessageSize() int {
	return c.FieldSize * api.FieldsPerMessage
}

// String returns a formatted representation of the configuration.
func (c *Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Benchmark")
	addField("Strategy", c.Strategy.String())
	addField("Endpoint", fmt.Sprintf("%s:%d", c.Addr, c.Port))
	addField("Field Size", fmt.Sprintf("%d bytes", c.FieldSize))
	addField("Message Size", fmt.Sprintf("%d bytes", c.MessageSize()))
	addField("Connections", fmt.Sprintf("%d", c.Conns))
	addField("Duration", c.Duration.String())

	addSection("Strategy")
	switch c.Strategy {
	case api.ScatterGather:
		addField("Fill Messages", fmt.Sprintf("%t", c.FillMessages))
	case api.ZeroCopy:
		addField("Implicit Completions", fmt.Sprintf("%t", c.AllowImplicitCompletions))
		addField("Completion Timeout", c.CompletionTimeout.String())
	}
	addField("Repopulate", fmt.Sprintf("%t", c.Repopulate))
	addField("Pin CPUs", fmt.Sprintf("%t", c.PinCPUs))

	addSection("Output")
	addField("Log Level", c.LogLevel)
	addField("Progress Interval", c.ProgressInterval.String())
	if c.CSVPath != "" {
		addField("CSV File", c.CSVPath)
	}
	if c.PromFile != "" {
		addField("Prometheus File", c.PromFile)
	}
	return sb.String()
}
