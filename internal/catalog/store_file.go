package catalog

import (
	"context"
	"fmt"
	"os"
)

// FileStore serves a static catalog document from disk. The file is read on
// every call so edits show up on the next page view.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Ping(ctx context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Decode(data)
}

func (s *FileStore) Get(ctx context.Context, id string) (Product, bool, error) {
	products, err := s.List(ctx)
	if err != nil {
		return Product{}, false, err
	}
	p, ok := Find(products, id)
	return p, ok, nil
}
