// Package reprocess walks the submission store and backfills missing probe
// data and thumbnails for previously stored records. The job is additive
// only: it never rejects or deletes a record, and it persists after each
// touched record so partial progress survives a mid-run failure.
package reprocess

import (
	"context"
	"math"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/dmarais/umsindo/internal/blob"
	"github.com/dmarais/umsindo/internal/media"
	"github.com/dmarais/umsindo/internal/metrics"
	"github.com/dmarais/umsindo/internal/model"
	"github.com/dmarais/umsindo/internal/store"
)

// thumbOffsetFraction matches the live pipeline's seek point.
const thumbOffsetFraction = 0.5

// Job backfills derivatives over the same store, blob directory, and media
// contracts as the live service.
type Job struct {
	blobs  *blob.Store
	prober media.Prober
	thumbs media.Thumbnailer
	subs   *store.Store
	logger *zap.Logger
}

// New returns a Job.
func New(blobs *blob.Store, prober media.Prober, thumbs media.Thumbnailer, subs *store.Store, logger *zap.Logger) *Job {
	return &Job{blobs: blobs, prober: prober, thumbs: thumbs, subs: subs, logger: logger}
}

// Run processes every record missing derivatives and returns how many were
// updated. Records with both thumbnails already present are skipped without
// touching disk or invoking any external process.
func (j *Job) Run(ctx context.Context) (int, error) {
	all, err := j.subs.List("")
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, rec := range all {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if rec.FileURL == "" {
			continue
		}
		if rec.ThumbnailWide != "" && rec.ThumbnailSquare != "" {
			continue
		}

		path, ok := j.blobs.ResolveURL(rec.FileURL)
		if !ok {
			j.logger.Warn("blob missing, skipping record",
				zap.Int64("id", rec.ID),
				zap.String("file", rec.FileURL),
			)
			continue
		}

		if patch := j.backfill(ctx, rec, path); !patch.Empty() {
			if _, err := j.subs.UpdateByID(rec.ID, patch.Patch); err != nil {
				j.logger.Error("persist backfill failed", zap.Int64("id", rec.ID), zap.Error(err))
				continue
			}
			metrics.ReprocessedRecords.Inc()
			updated++
			j.logger.Info("record backfilled", zap.Int64("id", rec.ID))
		}
	}
	return updated, nil
}

// backfillPatch wraps a store patch with an emptiness check.
type backfillPatch struct {
	store.Patch
}

func (p backfillPatch) Empty() bool {
	return p.DurationSeconds == nil && p.ThumbnailWide == nil && p.ThumbnailSquare == nil
}

// backfill probes a missing duration and attempts each missing thumbnail
// variant, all best-effort.
func (j *Job) backfill(ctx context.Context, rec model.Submission, path string) backfillPatch {
	var patch backfillPatch

	duration := float64(rec.DurationSeconds)
	if rec.DurationSeconds == 0 {
		probed, err := j.prober.Probe(ctx, path)
		if err != nil {
			// Non-fatal here: the record was admitted once already.
			j.logger.Warn("probe failed during backfill", zap.Int64("id", rec.ID), zap.Error(err))
		} else {
			duration = probed
			rounded := int(math.Round(probed))
			patch.DurationSeconds = &rounded
		}
	}

	// With no known duration the frame is taken at the start of the stream.
	offset := time.Duration(duration * thumbOffsetFraction * float64(time.Second))

	name := blobName(rec.FileURL)
	if rec.ThumbnailWide == "" {
		if url := j.generateThumb(ctx, rec.ID, name, path, media.Wide, offset); url != "" {
			patch.ThumbnailWide = &url
		}
	}
	if rec.ThumbnailSquare == "" {
		if url := j.generateThumb(ctx, rec.ID, name, path, media.Square, offset); url != "" {
			patch.ThumbnailSquare = &url
		}
	}
	return patch
}

func (j *Job) generateThumb(ctx context.Context, id int64, blobName, src string, v media.Variant, offset time.Duration) string {
	name := v.ThumbName(blobName)
	if err := j.thumbs.Generate(ctx, src, j.blobs.Path(name), v, offset); err != nil {
		metrics.ThumbnailFailures.WithLabelValues(v.Name).Inc()
		j.logger.Warn("thumbnail backfill failed",
			zap.Int64("id", id),
			zap.String("variant", v.Name),
			zap.Error(err),
		)
		return ""
	}
	return j.blobs.URL(name)
}

func blobName(fileURL string) string {
	return path.Base(fileURL)
}
