package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriterText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelDebug})

	logger.Debug("ingest started", "document_id", "doc-1")

	out := buf.String()
	if !strings.Contains(out, "ingest started") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "document_id=doc-1") {
		t.Errorf("expected attribute in output, got %q", out)
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})

	logger.Info("advice served", "from_cache", true)

	out := buf.String()
	if !strings.Contains(out, `"msg":"advice served"`) {
		t.Errorf("expected JSON record, got %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

	logger.Info("should be dropped")
	logger.Warn("should be kept")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Errorf("info record leaked through warn-level logger: %q", out)
	}
	if !strings.Contains(out, "should be kept") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	// Must not panic and must be usable as a drop-in logger.
	logger.Error("discarded", "key", "value")
}
