// Package storage keeps payment proof files. The rental services only see
// FileStorage, so the backing file system can be swapped in tests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrNotFound is returned when a reference does not name a stored file.
var ErrNotFound = errors.New("stored file not found")

// FileStorage stores opaque files and hands back a reference to them.
type FileStorage interface {
	Store(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
	Exists(ctx context.Context, ref string) (bool, error)
	// Open returns the content of a stored file. The caller closes it.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// LocalStorage writes files below a root directory on an afero file system.
type LocalStorage struct {
	fs   afero.Fs
	root string
}

// NewLocalStorage creates the root directory if needed.
func NewLocalStorage(fs afero.Fs, root string) (*LocalStorage, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", root, err)
	}
	return &LocalStorage{fs: fs, root: root}, nil
}

// NewOSStorage is LocalStorage on the real file system.
func NewOSStorage(root string) (*LocalStorage, error) {
	return NewLocalStorage(afero.NewOsFs(), root)
}

// Store saves r under a fresh name that keeps the extension of name.
// The returned reference is the file name relative to the root.
func (s *LocalStorage) Store(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := uuid.New().String() + strings.ToLower(filepath.Ext(name))
	f, err := s.fs.OpenFile(s.path(ref), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", ref, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = s.fs.Remove(s.path(ref))
		return "", fmt.Errorf("failed to write %s: %w", ref, err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(s.path(ref))
		return "", fmt.Errorf("failed to close %s: %w", ref, err)
	}
	return ref, nil
}

// Delete removes a stored file. Deleting a missing file returns ErrNotFound.
func (s *LocalStorage) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ok, err := s.Exists(ctx, ref)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if err := s.fs.Remove(s.path(ref)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", ref, err)
	}
	return nil
}

func (s *LocalStorage) Exists(_ context.Context, ref string) (bool, error) {
	if ref == "" {
		return false, nil
	}
	return afero.Exists(s.fs, s.path(ref))
}

// Open returns the content of a stored file. A missing file returns ErrNotFound.
func (s *LocalStorage) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ref == "" {
		return nil, ErrNotFound
	}
	f, err := s.fs.Open(s.path(ref))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// path keeps references inside root.
func (s *LocalStorage) path(ref string) string {
	return filepath.Join(s.root, filepath.Base(ref))
}
