package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"focus-session-service/internal/config"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "focus.log")
	logger, err := New(config.Logging{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Named("classroom").Info("question pushed")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"message":"question pushed"`) || !strings.Contains(line, `"logger":"classroom"`) {
		t.Fatalf("unexpected log line: %s", line)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(config.Logging{Level: "chatty"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
