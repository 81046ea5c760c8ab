// Package app holds the import and enrichment engines. Every import
// source funnels album units through the same upsert gateway so the
// catalog rules live in one place regardless of where the data came from.
package app

import (
	"fmt"

	"github.com/pieterkdevilliers/music-db/internal/domain"
	"github.com/pieterkdevilliers/music-db/internal/logger"
	"github.com/pieterkdevilliers/music-db/internal/storage"
	"github.com/pieterkdevilliers/music-db/internal/store"
)

// UpsertGateway applies one album unit to the catalog. Albums are
// identified by (title, artist) ignoring case. Re-imports refresh the
// track list but never overwrite release year, record label, or art once
// those are set.
type UpsertGateway struct {
	db  *store.DB
	art *storage.ArtStore
	log *logger.Logger
}

func NewUpsertGateway(db *store.DB, art *storage.ArtStore, log *logger.Logger) *UpsertGateway {
	return &UpsertGateway{db: db, art: art, log: log.WithComponent("upsert")}
}

// UpsertResult reports what the gateway did with one unit.
type UpsertResult struct {
	AlbumID int64
	Created bool
	HasArt  bool
}

// Upsert inserts or refreshes one album. On an existing album the track
// list is replaced wholesale while the fill-once fields are written only
// where still null. The image write failing never fails the unit.
func (g *UpsertGateway) Upsert(unit domain.AlbumUnit) (UpsertResult, error) {
	existing, err := g.db.FindAlbumByTitleArtist(unit.Title, unit.Artist)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("lookup album: %w", err)
	}
	if existing != nil {
		return g.refresh(existing, unit)
	}
	return g.create(unit)
}

func (g *UpsertGateway) create(unit domain.AlbumUnit) (UpsertResult, error) {
	album := &domain.Album{
		Title:       unit.Title,
		Artist:      unit.Artist,
		ReleaseYear: unit.ReleaseYear,
		Tracks:      unit.Tracks,
	}
	if unit.RecordLabel != "" {
		labelID, err := g.db.GetOrCreateRecordLabel(unit.RecordLabel)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("record label: %w", err)
		}
		album.RecordLabelID = &labelID
	}
	if err := g.db.CreateAlbum(album); err != nil {
		return UpsertResult{}, fmt.Errorf("create album: %w", err)
	}

	result := UpsertResult{AlbumID: album.ID, Created: true}
	result.HasArt = g.writeArt(album.ID, unit.ImageBytes)

	g.log.Debug("album created", "album_id", album.ID, "title", unit.Title, "artist", unit.Artist)
	return result, nil
}

func (g *UpsertGateway) refresh(existing *domain.Album, unit domain.AlbumUnit) (UpsertResult, error) {
	if err := g.db.ReplaceTracks(existing.ID, unit.Tracks); err != nil {
		return UpsertResult{}, fmt.Errorf("replace tracks: %w", err)
	}
	if unit.ReleaseYear != nil {
		if _, err := g.db.SetReleaseYearIfNull(existing.ID, *unit.ReleaseYear); err != nil {
			return UpsertResult{}, fmt.Errorf("set release year: %w", err)
		}
	}
	if unit.RecordLabel != "" && existing.RecordLabelID == nil {
		labelID, err := g.db.GetOrCreateRecordLabel(unit.RecordLabel)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("record label: %w", err)
		}
		if _, err := g.db.SetRecordLabelIfNull(existing.ID, labelID); err != nil {
			return UpsertResult{}, fmt.Errorf("set record label: %w", err)
		}
	}

	result := UpsertResult{AlbumID: existing.ID}
	if existing.ArtPath != nil {
		result.HasArt = true
	} else {
		result.HasArt = g.writeArt(existing.ID, unit.ImageBytes)
	}

	g.log.Debug("album refreshed", "album_id", existing.ID, "title", unit.Title, "artist", unit.Artist)
	return result, nil
}

// writeArt stores the image and records its path unless art is already on
// file. Returns whether the album now has art.
func (g *UpsertGateway) writeArt(albumID int64, image []byte) bool {
	if len(image) == 0 {
		return false
	}
	filename := g.art.Filename(albumID)
	if err := g.art.Write(filename, image); err != nil {
		g.log.Warn("write album art failed", "album_id", albumID, "error", err)
		return false
	}
	set, err := g.db.SetArtPathIfNull(albumID, filename)
	if err != nil {
		g.log.Warn("record album art failed", "album_id", albumID, "error", err)
		return false
	}
	return set
}
