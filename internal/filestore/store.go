package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
)

var (
	ErrTooLarge    = errors.New("file_too_large")
	ErrInvalidName = errors.New("invalid_file_name")
)

// Store keeps uploaded files in a single local directory.
type Store struct {
	dir string
}

// New creates dir when missing.
func New(dir string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("filestore directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save streams r into a new file named after originalName and returns the
// stored name and size. A limit <= 0 disables the size check.
func (s *Store) Save(ctx context.Context, originalName string, r io.Reader, limit int64) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	name := StoredName(originalName)
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", name, err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	written, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write %s: %w", name, copyErr)
	case closeErr != nil:
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("close %s: %w", name, closeErr)
	case limit > 0 && written > limit:
		_ = os.Remove(path)
		return "", 0, ErrTooLarge
	}
	return name, written, nil
}

func (s *Store) Open(name string) (*os.File, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Path resolves a stored name inside the store directory.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}

// Remove deletes a stored file. Missing files are ignored.
func (s *Store) Remove(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// StoredName builds "<ULID>-<slug><ext>" from an uploaded file name.
func StoredName(originalName string) string {
	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(base))
	stem := slug.Make(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		stem = "upload"
	}
	return ulid.Make().String() + "-" + stem + sanitizeExt(ext)
}

func sanitizeExt(ext string) string {
	var b strings.Builder
	for _, r := range ext {
		if r == '.' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() <= 1 {
		return ""
	}
	return b.String()
}
