package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("json handler honours level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New("warn", "json", &buf)
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}

		logger.Info("dropped")
		logger.Warn("kept", "key", "agenda.records")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 1 {
			t.Fatalf("expected one line, got %q", buf.String())
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if entry["msg"] != "kept" || entry["key"] != "agenda.records" {
			t.Fatalf("unexpected entry %v", entry)
		}
	})

	t.Run("text handler", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New("DEBUG", "text", &buf)
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		logger.Debug("hello")
		if !strings.Contains(buf.String(), "msg=hello") {
			t.Fatalf("expected text output, got %q", buf.String())
		}
	})

	t.Run("rejects unknown settings", func(t *testing.T) {
		if _, err := New("loud", "json", nil); err == nil {
			t.Fatal("expected unknown level to fail")
		}
		if _, err := New("info", "xml", nil); err == nil {
			t.Fatal("expected unknown format to fail")
		}
	})
}

func TestContextWithLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	ctx := ContextWithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatal("expected logger to round trip through the context")
	}
	if FromContext(context.Background()) != nil {
		t.Fatal("expected nil logger from a bare context")
	}
	if got := ContextWithLogger(context.Background(), nil); FromContext(got) != nil {
		t.Fatal("expected nil logger to leave the context untouched")
	}
}
