package embedding

import (
	"context"

	"github.com/petrorag/petrorag/internal/storage"
)

// Save encodes store and writes it to blob.
func Save(ctx context.Context, blob storage.Blob, store *Store) error {
	data, err := Marshal(store)
	if err != nil {
		return err
	}
	return blob.Write(ctx, data)
}

// Load reads and decodes a store from blob. A missing blob returns
// domain.ErrStoreNotFound; an undecodable one returns a StoreCorrupt error.
func Load(ctx context.Context, blob storage.Blob) (*Store, error) {
	data, err := blob.Read(ctx)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// SaveFile writes store to a file at path.
func SaveFile(ctx context.Context, path string, store *Store) error {
	return Save(ctx, storage.NewFileBlob(path), store)
}

// LoadFile reads a store from the file at path.
func LoadFile(ctx context.Context, path string) (*Store, error) {
	return Load(ctx, storage.NewFileBlob(path))
}
