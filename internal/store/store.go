// Package store persists the submission collection as a single human-readable
// JSON file. Every mutation reads the whole collection, applies the change,
// and writes the file back via an atomic swap. A single mutex serializes all
// operations so concurrent read-modify-write cycles cannot interleave and
// lose updates.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmarais/umsindo/internal/model"
)

var (
	// ErrNotFound is returned when no submission has the requested id.
	ErrNotFound = errors.New("submission not found")
	// ErrAlreadyModerated is returned when a moderation action targets a
	// submission that already left the pending state.
	ErrAlreadyModerated = errors.New("submission already moderated")
)

// Patch names the fields UpdateByID may change. Nil fields are left
// untouched, giving shallow-merge semantics over the stored record.
type Patch struct {
	Status          *model.Status
	DurationSeconds *int
	ThumbnailWide   *string
	ThumbnailSquare *string
}

func (p Patch) apply(rec *model.Submission) {
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.DurationSeconds != nil {
		rec.DurationSeconds = *p.DurationSeconds
	}
	if p.ThumbnailWide != nil {
		rec.ThumbnailWide = *p.ThumbnailWide
	}
	if p.ThumbnailSquare != nil {
		rec.ThumbnailSquare = *p.ThumbnailSquare
	}
}

// Store is the flat-file submission repository. The zero value is not usable;
// construct with New.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a Store rooted at path, creating the parent directory if
// needed. A missing file is an empty collection.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return &Store{path: path}, nil
}

// Create assigns the id and creation timestamp, forces the status to pending,
// appends the record, and persists the whole collection.
func (s *Store) Create(rec model.Submission) (model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return model.Submission{}, err
	}
	var maxID int64
	for _, r := range all {
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	rec.ID = maxID + 1
	rec.Status = model.StatusPending
	rec.CreatedAt = time.Now().UTC()
	all = append(all, rec)
	if err := s.writeAll(all); err != nil {
		return model.Submission{}, err
	}
	return rec, nil
}

// List returns all submissions in creation order. A non-empty status filters
// to records in that state.
func (s *Store) List(status model.Status) ([]model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	if status == "" {
		return all, nil
	}
	filtered := make([]model.Submission, 0, len(all))
	for _, r := range all {
		if r.Status == status {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// UpdateByID shallow-merges the patch into the record with the given id and
// persists the collection. The collection is untouched when the id is
// unknown.
func (s *Store) UpdateByID(id int64, patch Patch) (model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(id, func(rec *model.Submission) error {
		patch.apply(rec)
		return nil
	})
}

// Approve transitions a pending submission to approved.
func (s *Store) Approve(id int64) (model.Submission, error) {
	return s.transition(id, model.StatusApproved)
}

// Reject transitions a pending submission to rejected.
func (s *Store) Reject(id int64) (model.Submission, error) {
	return s.transition(id, model.StatusRejected)
}

// transition enforces the moderation state machine: only pending submissions
// may move, and only to a terminal state. The check and the write happen
// under the same lock.
func (s *Store) transition(id int64, to model.Status) (model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(id, func(rec *model.Submission) error {
		if !model.CanTransition(rec.Status, to) {
			return fmt.Errorf("%w: submission %d is %s", ErrAlreadyModerated, rec.ID, rec.Status)
		}
		rec.Status = to
		return nil
	})
}

// update applies fn to the matching record and persists. Callers must hold
// the lock.
func (s *Store) update(id int64, fn func(*model.Submission) error) (model.Submission, error) {
	all, err := s.readAll()
	if err != nil {
		return model.Submission{}, err
	}
	for i := range all {
		if all[i].ID != id {
			continue
		}
		if err := fn(&all[i]); err != nil {
			return model.Submission{}, err
		}
		if err := s.writeAll(all); err != nil {
			return model.Submission{}, err
		}
		return all[i], nil
	}
	return model.Submission{}, ErrNotFound
}

func (s *Store) readAll() ([]model.Submission, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read submissions: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var all []model.Submission
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}
	return all, nil
}

// writeAll rewrites the whole collection through a same-directory temp file
// and rename, so readers never observe a partially written file.
func (s *Store) writeAll(all []model.Submission) error {
	if all == nil {
		all = []model.Submission{}
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode submissions: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".submissions.json.tmp-*")
	if err != nil {
		return fmt.Errorf("create store temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write submissions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync submissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close submissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("swap submissions: %w", err)
	}
	return nil
}
