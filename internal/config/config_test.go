package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
	if cfg.MinDuration != 60*time.Second || cfg.MaxDuration != 120*time.Second {
		t.Fatalf("unexpected window %s–%s", cfg.MinDuration, cfg.MaxDuration)
	}
	if cfg.FFprobePath != "ffprobe" || cfg.FFmpegPath != "ffmpeg" {
		t.Fatalf("unexpected binary paths %q %q", cfg.FFprobePath, cfg.FFmpegPath)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("UMSINDO_ADDR", ":9999")
	t.Setenv("UMSINDO_MIN_DURATION", "45s")
	// Bare integers are read as seconds for convenience.
	t.Setenv("UMSINDO_MAX_DURATION", "90")
	t.Setenv("UMSINDO_MAX_FILE_BYTES", "1024")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
	if cfg.MinDuration != 45*time.Second || cfg.MaxDuration != 90*time.Second {
		t.Fatalf("unexpected window %s–%s", cfg.MinDuration, cfg.MaxDuration)
	}
	if cfg.MaxFileBytes != 1024 {
		t.Fatalf("unexpected max file bytes %d", cfg.MaxFileBytes)
	}
}

func TestLoadRejectsInvertedWindow(t *testing.T) {
	t.Setenv("UMSINDO_MIN_DURATION", "60s")
	t.Setenv("UMSINDO_MAX_DURATION", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxDuration < cfg.MinDuration {
		t.Fatalf("window left inverted: %s–%s", cfg.MinDuration, cfg.MaxDuration)
	}
}
