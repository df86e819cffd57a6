package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileMissing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ControlAddr != "127.0.0.1:5555" {
		t.Errorf("ControlAddr = %q", cfg.ControlAddr)
	}
	if cfg.StreamAddr != "127.0.0.1:5557" {
		t.Errorf("StreamAddr = %q", cfg.StreamAddr)
	}
	if cfg.Interval() != 500*time.Millisecond {
		t.Errorf("Interval = %v", cfg.Interval())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "control_addr: 10.0.0.1:6000\npoll_interval: 2s\nmetrics_addr: :9300\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ControlAddr != "10.0.0.1:6000" {
		t.Errorf("ControlAddr = %q", cfg.ControlAddr)
	}
	// Unset fields keep their defaults.
	if cfg.StreamAddr != "127.0.0.1:5557" {
		t.Errorf("StreamAddr = %q", cfg.StreamAddr)
	}
	if cfg.Interval() != 2*time.Second {
		t.Errorf("Interval = %v", cfg.Interval())
	}
	if cfg.MetricsAddr != ":9300" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("control_addr: [not, a, string"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestIntervalFallback(t *testing.T) {
	cfg := &Config{PollInterval: "banana"}
	if cfg.Interval() != 500*time.Millisecond {
		t.Errorf("Interval = %v, want 500ms fallback", cfg.Interval())
	}
	cfg.PollInterval = "-1s"
	if cfg.Interval() != 500*time.Millisecond {
		t.Errorf("Interval = %v, want 500ms fallback for negative", cfg.Interval())
	}
}
