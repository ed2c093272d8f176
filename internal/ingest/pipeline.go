// Package ingest orchestrates intake of a single uploaded media file: store
// the blob, probe its duration, enforce the admissible window, derive
// thumbnails best-effort, and persist the submission record.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dmarais/umsindo/internal/blob"
	"github.com/dmarais/umsindo/internal/media"
	"github.com/dmarais/umsindo/internal/metrics"
	"github.com/dmarais/umsindo/internal/model"
	"github.com/dmarais/umsindo/internal/store"
)

const (
	maxArtistLen = 100
	maxTitleLen  = 140

	defaultArtist = "Unknown"
	defaultTitle  = "Untitled"

	// thumbOffsetFraction is where in the media the still frame is taken.
	thumbOffsetFraction = 0.5
)

// ErrNoFile signals that the intake carried no media file.
var ErrNoFile = errors.New("no media file supplied")

// ValidationError rejects a submission on duration policy grounds. It carries
// the observed duration and the admissible window so the caller can explain
// the rejection.
type ValidationError struct {
	Reason          string
	DurationSeconds float64
	Min             time.Duration
	Max             time.Duration
	Err             error
}

func (e *ValidationError) Error() string {
	if e.Err != nil && e.DurationSeconds == 0 {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %.0fs outside admissible window %.0f-%.0fs",
		e.Reason, e.DurationSeconds, e.Min.Seconds(), e.Max.Seconds())
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StorageError wraps a blob or record persistence failure.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %v", e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// Request carries one intake: a readable temp file path, the original
// filename supplied by the uploader, and the two text fields.
type Request struct {
	TempPath     string
	OriginalName string
	Artist       string
	Title        string
}

// Pipeline wires the blob store, the media prober/thumbnailer, and the
// submission store into the intake flow.
type Pipeline struct {
	blobs  *blob.Store
	prober media.Prober
	thumbs media.Thumbnailer
	subs   *store.Store
	min    time.Duration
	max    time.Duration
	logger *zap.Logger
}

// New returns a Pipeline enforcing the [min, max] duration window.
func New(blobs *blob.Store, prober media.Prober, thumbs media.Thumbnailer, subs *store.Store, min, max time.Duration, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		blobs:  blobs,
		prober: prober,
		thumbs: thumbs,
		subs:   subs,
		min:    min,
		max:    max,
		logger: logger,
	}
}

// Ingest runs the full intake for one upload and returns the persisted
// submission. On a duration rejection the already-stored blob is deleted
// before the error is returned; thumbnail failures never fail the call.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (model.Submission, error) {
	if req.TempPath == "" {
		metrics.Ingestions.WithLabelValues("rejected").Inc()
		return model.Submission{}, ErrNoFile
	}

	b, err := p.blobs.Store(req.TempPath, req.OriginalName)
	if err != nil {
		metrics.Ingestions.WithLabelValues("failed").Inc()
		return model.Submission{}, &StorageError{Err: err}
	}

	duration, err := p.prober.Probe(ctx, b.Path)
	if err != nil {
		// The blob is unusable; remove it before surfacing the rejection.
		// Delete is best-effort and never blocks the response.
		p.blobs.Delete(b.Name)
		metrics.Ingestions.WithLabelValues("rejected").Inc()
		return model.Submission{}, &ValidationError{Reason: "duration probe failed", Min: p.min, Max: p.max, Err: err}
	}

	if d := time.Duration(duration * float64(time.Second)); d < p.min || d > p.max {
		p.blobs.Delete(b.Name)
		metrics.Ingestions.WithLabelValues("rejected").Inc()
		return model.Submission{}, &ValidationError{
			Reason:          "duration out of range",
			DurationSeconds: duration,
			Min:             p.min,
			Max:             p.max,
		}
	}

	offset := time.Duration(duration * thumbOffsetFraction * float64(time.Second))
	rec := model.Submission{
		Artist:          sanitizeText(req.Artist, maxArtistLen, defaultArtist),
		Title:           sanitizeText(req.Title, maxTitleLen, defaultTitle),
		FileURL:         b.URL,
		DurationSeconds: int(math.Round(duration)),
		ThumbnailWide:   p.generateThumb(ctx, b, media.Wide, offset),
		ThumbnailSquare: p.generateThumb(ctx, b, media.Square, offset),
	}

	saved, err := p.subs.Create(rec)
	if err != nil {
		metrics.Ingestions.WithLabelValues("failed").Inc()
		return model.Submission{}, &StorageError{Err: err}
	}
	metrics.Ingestions.WithLabelValues("accepted").Inc()
	p.logger.Info("submission ingested",
		zap.Int64("id", saved.ID),
		zap.String("file", saved.FileURL),
		zap.Int("duration_seconds", saved.DurationSeconds),
	)
	return saved, nil
}

// generateThumb derives one thumbnail variant, returning its public locator
// or an empty string when generation failed.
func (p *Pipeline) generateThumb(ctx context.Context, b blob.Blob, v media.Variant, offset time.Duration) string {
	name := v.ThumbName(b.Name)
	if err := p.thumbs.Generate(ctx, b.Path, p.blobs.Path(name), v, offset); err != nil {
		metrics.ThumbnailFailures.WithLabelValues(v.Name).Inc()
		p.logger.Warn("thumbnail generation failed",
			zap.String("variant", v.Name),
			zap.String("blob", b.Name),
			zap.Error(err),
		)
		return ""
	}
	return p.blobs.URL(name)
}

// sanitizeText trims surrounding whitespace, truncates to the bound, and
// substitutes the default for empty input.
func sanitizeText(s string, maxLen int, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if runes := []rune(s); len(runes) > maxLen {
		s = strings.TrimSpace(string(runes[:maxLen]))
	}
	return s
}
