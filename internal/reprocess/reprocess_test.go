package reprocess

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dmarais/umsindo/internal/blob"
	"github.com/dmarais/umsindo/internal/media"
	"github.com/dmarais/umsindo/internal/model"
	"github.com/dmarais/umsindo/internal/store"
)

type fakeProber struct {
	duration float64
	err      error
	calls    int
}

func (f *fakeProber) Probe(ctx context.Context, path string) (float64, error) {
	f.calls++
	return f.duration, f.err
}

type fakeThumbnailer struct {
	err     error
	calls   int
	offsets []time.Duration
}

func (f *fakeThumbnailer) Generate(ctx context.Context, src, dst string, v media.Variant, offset time.Duration) error {
	f.calls++
	f.offsets = append(f.offsets, offset)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dst, []byte("jpeg"), 0o644)
}

type fixture struct {
	job    *Job
	blobs  *blob.Store
	subs   *store.Store
	prober *fakeProber
	thumbs *fakeThumbnailer
}

func newFixture(t *testing.T, prober *fakeProber, thumbs *fakeThumbnailer) *fixture {
	t.Helper()
	dir := t.TempDir()
	blobs, err := blob.NewStore(filepath.Join(dir, "uploads"), zap.NewNop())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	subs, err := store.New(filepath.Join(dir, "submissions.json"))
	if err != nil {
		t.Fatalf("submission store: %v", err)
	}
	return &fixture{
		job:    New(blobs, prober, thumbs, subs, zap.NewNop()),
		blobs:  blobs,
		subs:   subs,
		prober: prober,
		thumbs: thumbs,
	}
}

// seedRecord creates a submission whose primary blob exists on disk.
func (fx *fixture) seedRecord(t *testing.T, name string) model.Submission {
	t.Helper()
	if err := os.WriteFile(fx.blobs.Path(name), []byte("fake media"), 0o644); err != nil {
		t.Fatalf("write blob: %v", err)
	}
	rec, err := fx.subs.Create(model.Submission{FileURL: fx.blobs.URL(name)})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	return rec
}

func TestRunBackfillsDurationAndThumbnails(t *testing.T) {
	fx := newFixture(t, &fakeProber{duration: 95.6}, &fakeThumbnailer{})
	rec := fx.seedRecord(t, "100-clip.mp4")

	updated, err := fx.job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 updated, got %d", updated)
	}

	all, err := fx.subs.List("")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := all[0]
	if got.ID != rec.ID {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.DurationSeconds != 96 {
		t.Fatalf("expected probed duration 96, got %d", got.DurationSeconds)
	}
	if got.ThumbnailWide != fx.blobs.URL("100-clip-thumb-wide.jpg") {
		t.Fatalf("unexpected wide locator %q", got.ThumbnailWide)
	}
	if got.ThumbnailSquare != fx.blobs.URL("100-clip-thumb-square.jpg") {
		t.Fatalf("unexpected square locator %q", got.ThumbnailSquare)
	}
	// Seek point is the midpoint of the probed duration.
	want := time.Duration(95.6 * 0.5 * float64(time.Second))
	for _, off := range fx.thumbs.offsets {
		if off != want {
			t.Fatalf("expected offset %s, got %s", want, off)
		}
	}
}

func TestRunSkipsCompleteRecordsWithoutTouchingAnything(t *testing.T) {
	fx := newFixture(t, &fakeProber{duration: 80}, &fakeThumbnailer{})
	rec := fx.seedRecord(t, "200-done.mp4")
	wide := fx.blobs.URL("200-done-thumb-wide.jpg")
	square := fx.blobs.URL("200-done-thumb-square.jpg")
	if _, err := fx.subs.UpdateByID(rec.ID, store.Patch{ThumbnailWide: &wide, ThumbnailSquare: &square}); err != nil {
		t.Fatalf("seed thumbnails: %v", err)
	}

	updated, err := fx.job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if updated != 0 {
		t.Fatalf("expected no updates, got %d", updated)
	}
	if fx.prober.calls != 0 || fx.thumbs.calls != 0 {
		t.Fatalf("expected no external invocations, got probe=%d thumb=%d", fx.prober.calls, fx.thumbs.calls)
	}
}

func TestRunSkipsRecordsWithMissingBlob(t *testing.T) {
	fx := newFixture(t, &fakeProber{duration: 80}, &fakeThumbnailer{})
	if _, err := fx.subs.Create(model.Submission{FileURL: blob.PublicPrefix + "/gone.mp4"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := fx.job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if updated != 0 {
		t.Fatalf("expected no updates, got %d", updated)
	}
	// The record survives; reprocessing is additive only.
	all, err := fx.subs.List("")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected record kept, got %d", len(all))
	}
}

func TestRunProbeFailureStillAttemptsThumbnails(t *testing.T) {
	fx := newFixture(t, &fakeProber{err: errors.New("unreadable")}, &fakeThumbnailer{})
	rec := fx.seedRecord(t, "300-clip.mp4")

	updated, err := fx.job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 updated, got %d", updated)
	}
	all, err := fx.subs.List("")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := all[0]
	if got.ID != rec.ID || got.DurationSeconds != 0 {
		t.Fatalf("expected duration left absent, got %+v", got)
	}
	if got.ThumbnailWide == "" || got.ThumbnailSquare == "" {
		t.Fatalf("expected thumbnails despite probe failure: %+v", got)
	}
	// Unknown duration falls back to the start of the stream.
	for _, off := range fx.thumbs.offsets {
		if off != 0 {
			t.Fatalf("expected zero offset, got %s", off)
		}
	}
}

func TestRunFillsOnlyMissingVariant(t *testing.T) {
	fx := newFixture(t, &fakeProber{duration: 70}, &fakeThumbnailer{})
	rec := fx.seedRecord(t, "400-clip.mp4")
	dur := 70
	wide := fx.blobs.URL("400-clip-thumb-wide.jpg")
	if _, err := fx.subs.UpdateByID(rec.ID, store.Patch{DurationSeconds: &dur, ThumbnailWide: &wide}); err != nil {
		t.Fatalf("seed wide thumbnail: %v", err)
	}

	updated, err := fx.job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 updated, got %d", updated)
	}
	if fx.prober.calls != 0 {
		t.Fatalf("expected no probe for known duration, got %d", fx.prober.calls)
	}
	if fx.thumbs.calls != 1 {
		t.Fatalf("expected only the square variant attempted, got %d", fx.thumbs.calls)
	}
}
