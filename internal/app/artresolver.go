package app

import (
	"context"

	"github.com/pieterkdevilliers/music-db/internal/logger"
	"github.com/pieterkdevilliers/music-db/internal/musicbrainz"
	"github.com/pieterkdevilliers/music-db/internal/storage"
	"github.com/pieterkdevilliers/music-db/internal/store"
)

// ArtResolver fetches cover art from the archive when an import source
// supplied none. Failures are soft: an album without art is a normal
// outcome, not an error.
type ArtResolver struct {
	db  *store.DB
	mb  *musicbrainz.Client
	art *storage.ArtStore
	log *logger.Logger
}

func NewArtResolver(db *store.DB, mb *musicbrainz.Client, art *storage.ArtStore, log *logger.Logger) *ArtResolver {
	return &ArtResolver{db: db, mb: mb, art: art, log: log.WithComponent("art_resolver")}
}

// Resolve looks up the album on the archive and stores the front cover of
// the best search match. Returns whether art is now on file.
func (r *ArtResolver) Resolve(ctx context.Context, albumID int64, title, artist string) bool {
	candidates, err := r.mb.SearchReleases(ctx, title, artist)
	if err != nil {
		r.log.Warn("release search failed", "album_id", albumID, "error", err)
		return false
	}
	if len(candidates) == 0 {
		return false
	}

	image, err := r.mb.DownloadCoverArt(ctx, candidates[0].MBID)
	if err != nil {
		r.log.Warn("cover art download failed", "album_id", albumID, "error", err)
		return false
	}
	if len(image) == 0 {
		return false
	}

	filename := r.art.Filename(albumID)
	if err := r.art.Write(filename, image); err != nil {
		r.log.Warn("write cover art failed", "album_id", albumID, "error", err)
		return false
	}
	set, err := r.db.SetArtPathIfNull(albumID, filename)
	if err != nil {
		r.log.Warn("record cover art failed", "album_id", albumID, "error", err)
		return false
	}
	if set {
		r.log.Debug("cover art resolved", "album_id", albumID, "mbid", candidates[0].MBID)
	}
	return set
}
