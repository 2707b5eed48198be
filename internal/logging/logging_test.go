package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/momentics/copybench/internal/logging"
)

func TestLevelThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(&buf, "warn")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Infoln("hidden")
	logger.Warnln("shown")
	logger.Errorln("also shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line leaked at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "also shown") {
		t.Errorf("missing warn/error lines: %q", out)
	}
}

func TestUnknownLevel(t *testing.T) {
	if _, err := logging.New(&bytes.Buffer{}, "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if !logging.ValidLevel("DEBUG") {
		t.Error("level names should be case-insensitive")
	}
}
