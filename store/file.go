package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/SirZenith/gimme/gallery"
)

// FileStore keeps gallery map in a JSON file.
type FileStore struct {
	lock sync.Mutex
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Save(ctx context.Context, m gallery.GalleryMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if m == nil {
		m = gallery.GalleryMap{}
	}

	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to convert gallery map to JSON: %s", err)
	}

	if dir := filepath.Dir(s.Path); dir != "" {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state directory %s: %s", dir, err)
		}
	}

	// write to temporary file first, so a crash never leaves half written state
	tmpPath := s.Path + ".tmp"
	if err = os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file %s: %s", tmpPath, err)
	}

	if err = os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("failed to replace state file %s: %s", s.Path, err)
	}

	return nil
}

// Load returns empty map when state file does not exist yet.
func (s *FileStore) Load(ctx context.Context) (gallery.GalleryMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return gallery.GalleryMap{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %s", s.Path, err)
	}

	m := gallery.GalleryMap{}
	if err = json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %s", s.Path, err)
	}

	return m, nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	err := os.Remove(s.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove state file %s: %s", s.Path, err)
	}

	return nil
}

func (s *FileStore) Close() error {
	return nil
}
