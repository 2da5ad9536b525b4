package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
server:
  port: "9090"
redis:
  addr: localhost:6379
  ttl: 30m
quiz:
  default_timer: 20s
  submit_grace: 500ms
focus:
  distraction_threshold: 40
logging:
  level: debug
  file: logs/focus.log
  max_size_mb: 5
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected server/redis config: %+v", cfg)
	}
	if got := Duration(cfg.Quiz.SubmitGrace, 0); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms grace, got %v", got)
	}
	if cfg.DistractionThreshold() != 40 {
		t.Fatalf("expected threshold 40, got %d", cfg.DistractionThreshold())
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.MaxSizeMB != 5 {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestDurationFallback(t *testing.T) {
	if got := Duration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for empty, got %v", got)
	}
	if got := Duration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for invalid, got %v", got)
	}
	if (Config{}).DistractionThreshold() != 50 {
		t.Fatalf("expected default threshold 50")
	}
}
