package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 || cfg.Room.Grace != 60*time.Second || cfg.Room.Capacity != 0 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Match.Policy != "preferences" {
		t.Errorf("match policy = %q", cfg.Match.Policy)
	}
	if cfg.Rate.Limit != 20 || cfg.Rate.Interval != time.Second || cfg.Redis.TTL != 10*time.Minute {
		t.Errorf("rate/redis defaults = %+v %+v", cfg.Rate, cfg.Redis)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	body := "mode: debug\nport: 9000\nroom:\n  grace: 5s\n  capacity: 10\ncors_allow:\n  - https://example.com\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAIRUP_ROOM_GRACE", "15s")
	t.Setenv("PAIRUP_POSTGRES_URL", "postgres://localhost/pairup")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "debug" || cfg.Port != 9000 || cfg.Room.Capacity != 10 {
		t.Errorf("file values = %+v", cfg)
	}
	if cfg.Room.Grace != 15*time.Second {
		t.Errorf("env override grace = %v", cfg.Room.Grace)
	}
	if cfg.Postgres.URL != "postgres://localhost/pairup" {
		t.Errorf("env postgres url = %q", cfg.Postgres.URL)
	}
	if len(cfg.CORSAllow) != 1 || cfg.CORSAllow[0] != "https://example.com" {
		t.Errorf("cors = %v", cfg.CORSAllow)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Config{Port: 0, PingPeriod: time.Second, Room: RoomConfig{Grace: 0, Capacity: -1}, Match: MatchConfig{Policy: "random"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}
