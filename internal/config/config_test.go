package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
postgres:
  url: "postgres://localhost/quiz"
redis:
  addr: "localhost:6379"
  db: 2
questions:
  ttl: "5m"
game:
  question_count: 5
  timer_seconds: 20
  poll_interval: "3s"
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
	if cfg.Redis.DB != 2 {
		t.Fatalf("redis db = %d", cfg.Redis.DB)
	}
	if cfg.Game.QuestionCount != 5 || cfg.Game.TimerSeconds != 20 {
		t.Fatalf("game settings = %+v", cfg.Game)
	}
	if got := Duration(cfg.Game.PollInterval, time.Second); got != 3*time.Second {
		t.Fatalf("poll interval = %v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDurationFallback(t *testing.T) {
	if got := Duration("", 2*time.Second); got != 2*time.Second {
		t.Fatalf("empty: %v", got)
	}
	if got := Duration("junk", 2*time.Second); got != 2*time.Second {
		t.Fatalf("malformed: %v", got)
	}
	if got := Duration("90s", 2*time.Second); got != 90*time.Second {
		t.Fatalf("parsed: %v", got)
	}
}
