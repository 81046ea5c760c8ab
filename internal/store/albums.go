package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/pieterkdevilliers/music-db/internal/domain"
)

// FindAlbumByTitleArtist looks up an album by its case-insensitive
// (title, artist) identity key. Returns (nil, nil) when no match exists.
func (db *DB) FindAlbumByTitleArtist(title, artist string) (*domain.Album, error) {
	query := `SELECT * FROM albums
		WHERE title = ? COLLATE NOCASE AND artist = ? COLLATE NOCASE`

	var album domain.Album
	err := db.Get(&album, query, title, artist)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find album: %w", err)
	}
	return &album, nil
}

func (db *DB) GetAlbum(id int64) (*domain.Album, error) {
	var album domain.Album
	err := db.Get(&album, `SELECT * FROM albums WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &album, nil
}

func (db *DB) CreateAlbum(album *domain.Album) error {
	query := `INSERT INTO albums (title, artist, release_year, producer, record_label_id, tracks, art_path)
		VALUES (:title, :artist, :release_year, :producer, :record_label_id, :tracks, :art_path)`

	res, err := db.NamedExec(query, album)
	if err != nil {
		return fmt.Errorf("failed to create album: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read album id: %w", err)
	}
	album.ID = id
	return nil
}

// ReplaceTracks overwrites the album's track list unconditionally: tracks
// always reflect the most recent scan.
func (db *DB) ReplaceTracks(albumID int64, tracks []string) error {
	_, err := db.Exec(`UPDATE albums SET tracks = ? WHERE id = ?`,
		domain.StringSlice(tracks), albumID)
	return err
}

// SetReleaseYearIfNull fills release_year only when currently null.
// Returns true if the value was set.
func (db *DB) SetReleaseYearIfNull(albumID int64, year int) (bool, error) {
	res, err := db.Exec(
		`UPDATE albums SET release_year = ? WHERE id = ? AND release_year IS NULL`,
		year, albumID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *DB) SetProducerIfNull(albumID int64, producer string) (bool, error) {
	res, err := db.Exec(
		`UPDATE albums SET producer = ? WHERE id = ? AND producer IS NULL`,
		producer, albumID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *DB) SetRecordLabelIfNull(albumID, labelID int64) (bool, error) {
	res, err := db.Exec(
		`UPDATE albums SET record_label_id = ? WHERE id = ? AND record_label_id IS NULL`,
		labelID, albumID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetArtPathIfNull fills art_path only when currently absent. The IS NULL
// guard runs at write time, so a concurrent manual upload cannot be
// clobbered by a late import or resolver write.
func (db *DB) SetArtPathIfNull(albumID int64, artPath string) (bool, error) {
	res, err := db.Exec(
		`UPDATE albums SET art_path = ? WHERE id = ? AND art_path IS NULL`,
		artPath, albumID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *DB) ListAlbums() ([]domain.Album, error) {
	var albums []domain.Album
	err := db.Select(&albums, `SELECT * FROM albums ORDER BY title COLLATE NOCASE`)
	return albums, err
}

func (db *DB) DeleteAlbum(id int64) (bool, error) {
	res, err := db.Exec(`DELETE FROM albums WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetAlbumCredits loads an album with its record label name and all linked
// entities, the shape the enrichment engine and manual edits operate on.
func (db *DB) GetAlbumCredits(albumID int64) (*domain.AlbumCredits, error) {
	album, err := db.GetAlbum(albumID)
	if err != nil {
		return nil, err
	}
	if album == nil {
		return nil, nil
	}

	ac := &domain.AlbumCredits{Album: *album}

	if album.RecordLabelID != nil {
		if err := db.Get(&ac.Label,
			`SELECT name FROM record_labels WHERE id = ?`, *album.RecordLabelID); err != nil {
			return nil, fmt.Errorf("failed to load record label: %w", err)
		}
	}

	err = db.Select(&ac.Musicians, `
		SELECT m.name AS name, am.instrument AS instrument
		FROM album_musicians am
		JOIN musicians m ON m.id = am.musician_id
		WHERE am.album_id = ?
		ORDER BY m.name COLLATE NOCASE, am.instrument COLLATE NOCASE`, albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to load musicians: %w", err)
	}

	err = db.Select(&ac.Personnel, `
		SELECT p.name AS name, ap.role AS role
		FROM album_personnel ap
		JOIN persons p ON p.id = ap.person_id
		WHERE ap.album_id = ?
		ORDER BY p.name COLLATE NOCASE, ap.role COLLATE NOCASE`, albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to load personnel: %w", err)
	}

	err = db.Select(&ac.Details, `
		SELECT d.name AS name, ad.detail_type AS detail_type
		FROM album_details ad
		JOIN details d ON d.id = ad.detail_id
		WHERE ad.album_id = ?
		ORDER BY d.name COLLATE NOCASE, ad.detail_type COLLATE NOCASE`, albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to load details: %w", err)
	}

	return ac, nil
}
