package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pieterkdevilliers/music-db/internal/constants"
	"github.com/pieterkdevilliers/music-db/internal/domain"
	"github.com/pieterkdevilliers/music-db/internal/logger"
	"github.com/pieterkdevilliers/music-db/internal/roon"
	"github.com/pieterkdevilliers/music-db/internal/store"
)

// ErrNotAuthorized is returned when a library import is requested before
// the core has approved this extension.
var ErrNotAuthorized = errors.New("library core not authorized")

// LibImporter pulls albums out of a connected library core through its
// cursor-based browse API.
type LibImporter struct {
	db       *store.DB
	client   *roon.Client
	gateway  *UpsertGateway
	art      *ArtResolver
	enricher *Enricher
	tracker  *Tracker
	log      *logger.Logger
}

func NewLibImporter(db *store.DB, client *roon.Client, gateway *UpsertGateway, art *ArtResolver, enricher *Enricher, tracker *Tracker, log *logger.Logger) *LibImporter {
	return &LibImporter{
		db:       db,
		client:   client,
		gateway:  gateway,
		art:      art,
		enricher: enricher,
		tracker:  tracker,
		log:      log.WithComponent("library_import"),
	}
}

// Start claims the job slot and launches the import. With autoEnrich set
// and a collection given, an enrichment run over that collection is
// started when the import completes normally.
func (im *LibImporter) Start(collectionID *int64, autoEnrich bool) (string, error) {
	if !im.client.Authorized() {
		return "", ErrNotAuthorized
	}
	if collectionID != nil {
		coll, err := im.db.GetCollection(*collectionID)
		if err != nil {
			return "", fmt.Errorf("lookup collection: %w", err)
		}
		if coll == nil {
			return "", fmt.Errorf("collection %d not found", *collectionID)
		}
	}

	jobID, err := im.tracker.Begin()
	if err != nil {
		return "", err
	}

	go im.run(jobID, collectionID, autoEnrich)
	return jobID, nil
}

func (im *LibImporter) run(jobID string, collectionID *int64, autoEnrich bool) {
	log := im.log.WithJob(jobID, string(domain.JobKindLibraryImport))
	defer func() {
		if r := recover(); r != nil {
			log.Error("import panicked", "panic", r)
			im.tracker.Fail(fmt.Sprintf("internal error: %v", r))
		}
	}()

	ctx := context.Background()

	albums, err := im.listAlbums(ctx)
	if err != nil {
		log.Error("album listing failed", "error", err)
		im.tracker.Fail(fmt.Sprintf("list albums: %v", err))
		return
	}
	// The enumerated count is the denominator; the core's reported total
	// can disagree with what the listing actually returns.
	im.tracker.Run(len(albums))
	log.Info("import started", "albums", len(albums))

	for _, entry := range albums {
		if im.tracker.Cancelled() {
			log.Info("import cancelled", "done", im.tracker.Snapshot().Done)
			im.tracker.Finish(domain.JobStatusCancelled)
			return
		}
		im.importAlbum(ctx, entry, collectionID, log)
	}

	snap := im.tracker.Snapshot()
	log.Info("import finished",
		"imported", snap.Imported, "updated", snap.Updated,
		"skipped", snap.Skipped, "errors", snap.Errors)
	im.tracker.Finish(domain.JobStatusDone)

	if autoEnrich && collectionID != nil {
		if _, err := im.enricher.StartCollection(*collectionID); err != nil {
			log.Warn("auto enrichment not started", "error", err)
		}
	}
}

// listAlbums enumerates the full album level page by page before any
// drilling, so the total is known up front and drills can reset the
// cursor freely.
func (im *LibImporter) listAlbums(ctx context.Context) ([]roon.Item, error) {
	if _, err := im.client.ResetBrowse(ctx); err != nil {
		return nil, err
	}
	var albums []roon.Item
	offset := 0
	for {
		page, err := im.client.LoadPage(ctx, offset, constants.DefaultLibraryPageSize)
		if err != nil {
			return nil, err
		}
		albums = append(albums, page...)
		if len(page) < constants.DefaultLibraryPageSize {
			return albums, nil
		}
		offset += constants.DefaultLibraryPageSize
	}
}

func (im *LibImporter) importAlbum(ctx context.Context, entry roon.Item, collectionID *int64, log *logger.Logger) {
	title := strings.TrimSpace(entry.Title)
	artist := strings.TrimSpace(entry.Subtitle)
	im.tracker.SetCurrent(title)

	// Action rows and separators in the listing carry no item key or
	// title; they are not albums.
	if entry.ItemKey == "" || title == "" {
		im.tracker.UnitDone(OutcomeSkipped)
		return
	}
	if artist == "" {
		artist = "Unknown"
	}

	tracks, image, err := im.client.FetchAlbumDetail(ctx, entry.ItemKey, entry.ImageKey)
	if err != nil {
		log.Warn("album detail failed", "title", title, "error", err)
		im.tracker.AddError(fmt.Sprintf("%s: %v", title, err))
		im.tracker.UnitDone(OutcomeErrored)
		return
	}

	unit := domain.AlbumUnit{
		Title:      title,
		Artist:     artist,
		Tracks:     tracks,
		ImageBytes: image,
	}

	result, err := im.gateway.Upsert(unit)
	if err != nil {
		log.Warn("upsert failed", "album", unit.Label(), "error", err)
		im.tracker.AddError(fmt.Sprintf("%s: %v", unit.Label(), err))
		im.tracker.UnitDone(OutcomeErrored)
		return
	}

	if !result.HasArt {
		im.art.Resolve(ctx, result.AlbumID, title, artist)
	}

	if collectionID != nil {
		if err := im.db.AddAlbumToCollection(*collectionID, result.AlbumID); err != nil {
			log.Warn("collection link failed", "album_id", result.AlbumID, "error", err)
			im.tracker.AddError(fmt.Sprintf("%s: collection link: %v", unit.Label(), err))
		}
	}

	if result.Created {
		im.tracker.UnitDone(OutcomeImported)
	} else {
		im.tracker.UnitDone(OutcomeUpdated)
	}
}
