// Package storage persists opaque byte blobs on the local filesystem or in
// S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/petrorag/petrorag/internal/domain"
)

// Blob is a single named byte payload. Read returns domain.ErrStoreNotFound
// when nothing has been written yet.
type Blob interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// FileBlob stores the payload in one file on disk.
type FileBlob struct {
	path string
}

// NewFileBlob creates a blob backed by path.
func NewFileBlob(path string) *FileBlob {
	return &FileBlob{path: path}
}

func (b *FileBlob) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrStoreNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}
	return data, nil
}

// Write replaces the file atomically via a temp file and rename, creating
// parent directories as needed.
func (b *FileBlob) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", b.path, err)
	}
	return nil
}

func (b *FileBlob) String() string {
	return b.path
}

// Mirror reads from the first blob that has a payload and writes to all of
// them.
type Mirror struct {
	blobs []Blob
}

// NewMirror creates a Mirror over blobs, in read preference order.
func NewMirror(blobs ...Blob) *Mirror {
	return &Mirror{blobs: blobs}
}

func (m *Mirror) Read(ctx context.Context) ([]byte, error) {
	var firstErr error
	for _, b := range m.blobs {
		data, err := b.Read(ctx)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if firstErr == nil || errors.Is(firstErr, domain.ErrStoreNotFound) {
			firstErr = err
		}
	}
	if firstErr == nil {
		return nil, domain.ErrStoreNotFound
	}
	return nil, firstErr
}

func (m *Mirror) Write(ctx context.Context, data []byte) error {
	var errs []error
	for _, b := range m.blobs {
		if err := b.Write(ctx, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
