// Package config centralizes how umsindo reads environment variables and
// exposes them as strongly typed Go values.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration for the service and the
// reprocessing job. Both entry points load the same struct so the duration
// policy and file locations cannot drift between them.
type Config struct {
	Addr         string
	DataFile     string
	UploadDir    string
	MaxFileBytes int64

	// MinDuration/MaxDuration bound the admissible duration window. The
	// bounds are configuration, not constants: the policy has changed before
	// and will change again.
	MinDuration time.Duration
	MaxDuration time.Duration

	FFprobePath  string
	FFmpegPath   string
	ProbeTimeout time.Duration
	ThumbTimeout time.Duration

	// AdminSecret gates the moderation endpoints. Dev-grade protection only.
	AdminSecret string
}

const (
	defaultAddr         = ":8080"
	defaultDataFile     = "data/submissions.json"
	defaultUploadDir    = "public/uploads"
	defaultMaxFileBytes = 200 << 20 // 200 MiB
	defaultMinDuration  = 60 * time.Second
	defaultMaxDuration  = 120 * time.Second
	defaultProbeTimeout = 30 * time.Second
	defaultThumbTimeout = 60 * time.Second
	defaultAdminSecret  = "letmein"
)

// Load reads configuration from environment variables falling back to
// defaults. It follows Go's convention of returning (value, error) so callers
// can handle failures rather than panicking.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:         readEnv("UMSINDO_ADDR", defaultAddr),
		DataFile:     readEnv("UMSINDO_DATA_FILE", defaultDataFile),
		UploadDir:    readEnv("UMSINDO_UPLOAD_DIR", defaultUploadDir),
		MaxFileBytes: parseInt64("UMSINDO_MAX_FILE_BYTES", defaultMaxFileBytes),
		MinDuration:  parseDuration("UMSINDO_MIN_DURATION", defaultMinDuration),
		MaxDuration:  parseDuration("UMSINDO_MAX_DURATION", defaultMaxDuration),
		FFprobePath:  readEnv("UMSINDO_FFPROBE", "ffprobe"),
		FFmpegPath:   readEnv("UMSINDO_FFMPEG", "ffmpeg"),
		ProbeTimeout: parseDuration("UMSINDO_PROBE_TIMEOUT", defaultProbeTimeout),
		ThumbTimeout: parseDuration("UMSINDO_THUMB_TIMEOUT", defaultThumbTimeout),
		AdminSecret:  readEnv("UMSINDO_ADMIN_SECRET", defaultAdminSecret),
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = defaultMaxFileBytes
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = defaultMinDuration
	}
	if cfg.MaxDuration < cfg.MinDuration {
		cfg.MaxDuration = defaultMaxDuration
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.ThumbTimeout <= 0 {
		cfg.ThumbTimeout = defaultThumbTimeout
	}
	return cfg, nil
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

// parseDuration understands time.ParseDuration inputs like "90s" or "2m" and,
// for convenience, bare integers interpreted as seconds.
func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}
