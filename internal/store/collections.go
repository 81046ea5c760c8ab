package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/pieterkdevilliers/music-db/internal/domain"
)

func (db *DB) CreateCollection(name string) (*domain.Collection, error) {
	res, err := db.Exec(`INSERT INTO collections (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.GetCollection(id)
}

func (db *DB) GetCollection(id int64) (*domain.Collection, error) {
	var c domain.Collection
	err := db.Get(&c, `SELECT * FROM collections WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AddAlbumToCollection links an album into a collection. Adding the same
// album twice is a no-op success.
func (db *DB) AddAlbumToCollection(collectionID, albumID int64) error {
	_, err := db.Exec(
		`INSERT OR IGNORE INTO collection_albums (collection_id, album_id) VALUES (?, ?)`,
		collectionID, albumID)
	return err
}

// ListCollectionAlbums returns the collection's albums ordered by title,
// fixing a deterministic order for batch enrichment.
func (db *DB) ListCollectionAlbums(collectionID int64) ([]domain.AlbumRef, error) {
	var refs []domain.AlbumRef
	err := db.Select(&refs, `
		SELECT a.id, a.title, a.artist
		FROM albums a
		JOIN collection_albums ca ON ca.album_id = a.id
		WHERE ca.collection_id = ?
		ORDER BY a.title COLLATE NOCASE`, collectionID)
	return refs, err
}

func (db *DB) CountCollectionAlbums(collectionID int64) (int, error) {
	var n int
	err := db.Get(&n, `SELECT COUNT(*) FROM collection_albums WHERE collection_id = ?`, collectionID)
	return n, err
}
