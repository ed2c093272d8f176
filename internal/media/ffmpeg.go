// Package media drives the external ffprobe/ffmpeg binaries for duration
// probing and still-frame extraction. One component serves both the live
// ingestion pipeline and the batch reprocessing job so offsets, dimensions,
// and naming cannot drift between the two call sites.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Prober extracts the duration, in seconds, of a stored media file. A probe
// never mutates the file.
type Prober interface {
	Probe(ctx context.Context, path string) (float64, error)
}

// Thumbnailer extracts a single still frame at the given offset into the
// media, scaled and cropped to the variant's dimensions.
type Thumbnailer interface {
	Generate(ctx context.Context, src, dst string, v Variant, offset time.Duration) error
}

// Variant describes one thumbnail target.
type Variant struct {
	Name   string
	Filter string
}

var (
	// Wide is the 16:9 gallery thumbnail.
	Wide = Variant{Name: "wide", Filter: "scale=1280:720:force_original_aspect_ratio=increase,crop=1280:720"}
	// Square is the grid thumbnail.
	Square = Variant{Name: "square", Filter: "scale=600:600:force_original_aspect_ratio=increase,crop=600:600"}
)

// ThumbName derives the co-located thumbnail file name for a blob.
func (v Variant) ThumbName(blobName string) string {
	base := strings.TrimSuffix(blobName, filepath.Ext(blobName))
	return fmt.Sprintf("%s-thumb-%s.jpg", base, v.Name)
}

// ProbeError reports a failed or empty duration probe.
type ProbeError struct {
	Path   string
	Output string
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("probe %s: %s", e.Path, e.Output)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// ThumbnailError reports a failed frame extraction. Callers treat it as
// non-fatal to the overall submission.
type ThumbnailError struct {
	Variant string
	Output  string
	Err     error
}

func (e *ThumbnailError) Error() string {
	return fmt.Sprintf("thumbnail %s: %v", e.Variant, e.Err)
}

func (e *ThumbnailError) Unwrap() error { return e.Err }

// FFmpeg invokes the ffprobe and ffmpeg binaries. It implements both Prober
// and Thumbnailer.
type FFmpeg struct {
	ffprobe      string
	ffmpeg       string
	probeTimeout time.Duration
	thumbTimeout time.Duration
	logger       *zap.Logger
}

// NewFFmpeg returns an FFmpeg using the given binary paths and per-invocation
// timeouts.
func NewFFmpeg(ffprobePath, ffmpegPath string, probeTimeout, thumbTimeout time.Duration, logger *zap.Logger) *FFmpeg {
	return &FFmpeg{
		ffprobe:      ffprobePath,
		ffmpeg:       ffmpegPath,
		probeTimeout: probeTimeout,
		thumbTimeout: thumbTimeout,
		logger:       logger,
	}
}

// Probe runs ffprobe and returns the container duration in seconds. A file
// with no duration-bearing metadata (non-media or corrupt) yields a
// ProbeError.
func (f *FFmpeg) Probe(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		stderr := ""
		if errors.As(err, &exitErr) {
			stderr = strings.TrimSpace(string(exitErr.Stderr))
		}
		f.logger.Warn("ffprobe failed", zap.String("path", path), zap.String("stderr", stderr), zap.Error(err))
		return 0, &ProbeError{Path: path, Output: stderr, Err: err}
	}
	dur, err := parseProbeDuration(out)
	if err != nil {
		return 0, &ProbeError{Path: path, Output: string(out), Err: err}
	}
	return dur, nil
}

func parseProbeDuration(out []byte) (float64, error) {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("decode probe output: %w", err)
	}
	if probe.Format.Duration == "" {
		return 0, errors.New("no duration in probe output")
	}
	dur, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", probe.Format.Duration, err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("non-positive duration %v", dur)
	}
	return dur, nil
}

// Generate extracts one frame at the given offset and writes it to dst.
func (f *FFmpeg) Generate(ctx context.Context, src, dst string, v Variant, offset time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, f.thumbTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.ffmpeg,
		"-y",
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", offset.Seconds()),
		"-i", src,
		"-vframes", "1",
		"-vf", v.Filter,
		"-q:v", "2",
		dst,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		f.logger.Warn("ffmpeg thumbnail failed",
			zap.String("variant", v.Name),
			zap.String("src", src),
			zap.String("output", strings.TrimSpace(string(out))),
			zap.Error(err),
		)
		return &ThumbnailError{Variant: v.Name, Output: string(out), Err: err}
	}
	// ffmpeg can exit zero without producing a frame (e.g. seeking past the
	// end of a stream), so confirm the file landed.
	if _, statErr := os.Stat(dst); statErr != nil {
		return &ThumbnailError{Variant: v.Name, Output: string(out), Err: statErr}
	}
	return nil
}
