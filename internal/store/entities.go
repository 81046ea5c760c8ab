package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/pieterkdevilliers/music-db/internal/domain"
)

// Linked entities (musicians, persons, details, record labels) are global
// and deduplicated by case-insensitive exact name match. The NOCASE collation
// on the name column makes the plain equality lookup case-insensitive.

func (db *DB) GetOrCreateRecordLabel(name string) (int64, error) {
	return getOrCreateByName(db.DB, "record_labels", name)
}

// execer covers both *sqlx.DB and *sqlx.Tx.
type execer interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func getOrCreateByName(e execer, table, name string) (int64, error) {
	var id int64
	err := e.Get(&id, `SELECT id FROM `+table+` WHERE name = ?`, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up %s: %w", table, err)
	}

	res, err := e.Exec(`INSERT INTO `+table+` (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return res.LastInsertId()
}

// ReplaceMusicianLinks replaces the album's full musician link set. The
// delete and re-insert run in one transaction, so a failure mid-replace
// cannot leave the album with an empty link set.
func (db *DB) ReplaceMusicianLinks(albumID int64, credits []domain.MusicianCredit) error {
	return db.inTx(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`DELETE FROM album_musicians WHERE album_id = ?`, albumID); err != nil {
			return err
		}
		for _, c := range credits {
			musicianID, err := getOrCreateByName(tx, "musicians", c.Name)
			if err != nil {
				return err
			}
			_, err = tx.Exec(
				`INSERT OR IGNORE INTO album_musicians (album_id, musician_id, instrument) VALUES (?, ?, ?)`,
				albumID, musicianID, c.Instrument)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplacePersonnelLinks replaces the album's full personnel link set.
func (db *DB) ReplacePersonnelLinks(albumID int64, credits []domain.PersonnelCredit) error {
	return db.inTx(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`DELETE FROM album_personnel WHERE album_id = ?`, albumID); err != nil {
			return err
		}
		for _, c := range credits {
			personID, err := getOrCreateByName(tx, "persons", c.Name)
			if err != nil {
				return err
			}
			_, err = tx.Exec(
				`INSERT OR IGNORE INTO album_personnel (album_id, person_id, role) VALUES (?, ?, ?)`,
				albumID, personID, c.Role)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceDetailLinks replaces the album's full detail link set.
func (db *DB) ReplaceDetailLinks(albumID int64, credits []domain.DetailCredit) error {
	return db.inTx(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`DELETE FROM album_details WHERE album_id = ?`, albumID); err != nil {
			return err
		}
		for _, c := range credits {
			detailID, err := getOrCreateByName(tx, "details", c.Value)
			if err != nil {
				return err
			}
			_, err = tx.Exec(
				`INSERT OR IGNORE INTO album_details (album_id, detail_id, detail_type) VALUES (?, ?, ?)`,
				albumID, detailID, c.Type)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) inTx(fn func(tx *sqlx.Tx) error) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// AllMusicianNames returns every musician name, ordered case-insensitively.
func (db *DB) AllMusicianNames() ([]string, error) {
	return db.allNames("musicians")
}

func (db *DB) AllPersonNames() ([]string, error) {
	return db.allNames("persons")
}

func (db *DB) AllDetailNames() ([]string, error) {
	return db.allNames("details")
}

func (db *DB) allNames(table string) ([]string, error) {
	var names []string
	err := db.Select(&names, `SELECT name FROM `+table+` ORDER BY name COLLATE NOCASE`)
	return names, err
}
