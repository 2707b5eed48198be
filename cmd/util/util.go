package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gologme/log"
	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/control"
	"github.com/momentics/copybench/internal/harness"
	"github.com/momentics/copybench/internal/logging"
	"github.com/momentics/copybench/strategy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}
	return strings.Join(wrappedLines, "\n")
}

// SetupBenchmarkFlags adds the flags shared by every benchmark command
func SetupBenchmarkFlags(cmd *cobra.Command) {
	key := "strategy"
	cmd.Flags().String(key, "two-copy", WrapString("Transfer strategy (two-copy, one-copy, zero-copy). Both ends must use the same strategy"))

	key = "port"
	cmd.Flags().Int(key, 0, WrapString("TCP port; 0 selects the strategy default (8080, 8081, 8082)"))

	key = "field-size"
	cmd.Flags().Int(key, 1024, WrapString("Bytes per field; a message is eight fields. Both ends must agree"))

	key = "conns"
	cmd.Flags().Int(key, 4, WrapString("Number of connections, one worker thread each"))

	key = "fill-messages"
	cmd.Flags().Bool(key, false, WrapString("(one-copy) Loop the scatter receive until a whole message arrived instead of counting each call as a message"))

	key = "allow-implicit-completions"
	cmd.Flags().Bool(key, false, WrapString("(zero-copy) Fall back to copying sends when the socket rejects SO_ZEROCOPY instead of failing"))

	key = "completion-timeout"
	cmd.Flags().Duration(key, strategy.DefaultCompletionTimeout, WrapString("(zero-copy) Upper bound for each wait on send completions"))

	key = "repopulate"
	cmd.Flags().Bool(key, false, WrapString("Rewrite the payload before every send"))

	key = "pin-cpus"
	cmd.Flags().Bool(key, false, WrapString("Pin worker i to CPU i modulo the CPU count"))

	key = "progress-interval"
	cmd.Flags().Duration(key, 0, WrapString("Log live throughput at this interval (0 disables)"))

	key = "csv"
	cmd.Flags().String(key, "", WrapString("Optional path to append the run results as CSV"))

	key = "prom-file"
	cmd.Flags().String(key, "", WrapString("Optional path to write Prometheus text metrics on exit"))

	key = "table"
	cmd.Flags().Bool(key, false, WrapString("Print a per-worker table after the statistics"))

	key = "log-level"
	cmd.Flags().String(key, "info", WrapString("Log level (error, warn, info, debug, trace)"))
}

// BindPositionals maps positional arguments onto viper keys, overriding
// flags and environment. Keys ending in "duration" take whole seconds.
func BindPositionals(args []string, keys ...string) error {
	if len(args) > len(keys) {
		return fmt.Errorf("expected at most %d arguments, got %d", len(keys), len(args))
	}
	for i, arg := range args {
		key := keys[i]
		if key == "addr" {
			viper.Set(key, arg)
			continue
		}
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %v", key, arg, err)
		}
		if key == "duration" {
			viper.Set(key, time.Duration(n)*time.Second)
			continue
		}
		viper.Set(key, n)
	}
	return nil
}

// LoadConfig builds the harness configuration from viper
func LoadConfig() (*harness.Config, error) {
	cfg := harness.DefaultConfig()

	kind, err := api.ParseStrategyKind(viper.GetString("strategy"))
	if err != nil {
		return nil, err
	}
	cfg.Strategy = kind
	cfg.Addr = viper.GetString("addr")
	cfg.Port = viper.GetInt("port")
	if cfg.Port == 0 {
		cfg.Port = kind.DefaultPort()
	}
	cfg.FieldSize = viper.GetInt("field-size")
	cfg.Conns = viper.GetInt("conns")
	if viper.IsSet("duration") {
		cfg.Duration = viper.GetDuration("duration")
	}
	cfg.FillMessages = viper.GetBool("fill-messages")
	cfg.AllowImplicitCompletions = viper.GetBool("allow-implicit-completions")
	cfg.CompletionTimeout = viper.GetDuration("completion-timeout")
	cfg.Repopulate = viper.GetBool("repopulate")
	cfg.PinCPUs = viper.GetBool("pin-cpus")
	cfg.ProgressInterval = viper.GetDuration("progress-interval")
	cfg.CSVPath = viper.GetString("csv")
	cfg.PromFile = viper.GetString("prom-file")
	cfg.Table = viper.GetBool("table")
	cfg.LogLevel = viper.GetString("log-level")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger creates the process logger on stderr, keeping stdout for
// results
func NewLogger(cfg *harness.Config) (*log.Logger, error) {
	return logging.New(os.Stderr, cfg.LogLevel)
}

// LogEnvironment writes the configuration and host probes at debug level
func LogEnvironment(logger *log.Logger, cfg *harness.Config) {
	probes := control.NewDebugProbes()
	control.RegisterPlatformProbes(probes)
	probes.RegisterProbe("run.message_size", func() any { return cfg.MessageSize() })
	logger.Debugln(cfg.String())
	logger.Debugln(probes.String())
}
