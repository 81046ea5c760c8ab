// Package storage is the cover-art content store: image bytes keyed by
// filename under a single configured directory.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pieterkdevilliers/music-db/internal/constants"
)

type ArtStore struct {
	dir string
}

func NewArtStore(dir string) (*ArtStore, error) {
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create art dir: %w", err)
	}
	return &ArtStore{dir: dir}, nil
}

// Filename returns the deterministic art filename for an album.
func (s *ArtStore) Filename(albumID int64) string {
	return fmt.Sprintf("%d%s", albumID, constants.ExtJPG)
}

func (s *ArtStore) Write(filename string, data []byte) error {
	return os.WriteFile(filepath.Join(s.dir, filename), data, constants.FilePermissions)
}

func (s *ArtStore) Exists(filename string) bool {
	_, err := os.Stat(filepath.Join(s.dir, filename))
	return err == nil
}

func (s *ArtStore) Remove(filename string) error {
	err := os.Remove(filepath.Join(s.dir, filename))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *ArtStore) Path(filename string) string {
	return filepath.Join(s.dir, filename)
}
