// Package blob stores uploaded media and derived thumbnails in a single flat
// directory addressed by generated file names. Files are moved into place via
// a same-directory temp file and rename, so a partially written blob is never
// visible at its public locator.
package blob

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PublicPrefix is the URL prefix under which blobs are served.
const PublicPrefix = "/uploads"

var whitespaceRun = regexp.MustCompile(`\s+`)

// Blob identifies one stored file.
type Blob struct {
	// Name is the generated file name inside the store directory.
	Name string
	// URL is the public locator persisted on submission records.
	URL string
	// Path is the absolute or working-directory-relative filesystem path.
	Path string
}

// Store is a filesystem blob store rooted at a single directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates the target directory if missing and returns a Store.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Store moves the file at tempPath into the store under a generated,
// collision-resistant name derived from the ingestion timestamp and a
// sanitized form of the original name. The contents are first copied to a
// hidden temp file in the target directory and then renamed into place.
func (s *Store) Store(tempPath, originalName string) (Blob, error) {
	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), sanitizeName(originalName))
	dst := filepath.Join(s.dir, name)

	src, err := os.Open(tempPath)
	if err != nil {
		return Blob{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	// Same-directory temp file keeps the final rename atomic even when the
	// upload temp lives on another filesystem.
	tmp, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return Blob{}, fmt.Errorf("create blob temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		return Blob{}, fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return Blob{}, fmt.Errorf("sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Blob{}, fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return Blob{}, fmt.Errorf("rename blob into place: %w", err)
	}
	return Blob{Name: name, URL: PublicPrefix + "/" + name, Path: dst}, nil
}

// Delete removes a blob by name. A locator that no longer resolves to a file
// is treated as already absent.
func (s *Store) Delete(name string) {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("blob delete failed", zap.String("name", name), zap.Error(err))
		return
	}
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("blob already absent", zap.String("name", name))
	}
}

// Path returns the filesystem path a blob name maps to. The file may or may
// not exist.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// URL returns the public locator for a blob name.
func (s *Store) URL(name string) string {
	return PublicPrefix + "/" + filepath.Base(name)
}

// ResolveURL maps a public locator back to a filesystem path, reporting
// whether the blob actually exists on disk.
func (s *Store) ResolveURL(fileURL string) (string, bool) {
	name := strings.TrimPrefix(fileURL, PublicPrefix+"/")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return "", false
	}
	path := s.Path(name)
	if _, err := os.Stat(path); err != nil {
		return path, false
	}
	return path, true
}

// sanitizeName keeps only the base name of the original file and collapses
// whitespace runs to a single separator.
func sanitizeName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = whitespaceRun.ReplaceAllString(base, "-")
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "upload"
	}
	return base
}
