package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pieterkdevilliers/music-db/internal/constants"
	"github.com/pieterkdevilliers/music-db/internal/domain"
	"github.com/pieterkdevilliers/music-db/internal/logger"
	"github.com/pieterkdevilliers/music-db/internal/store"
)

// ErrBadPath is returned when the scan root does not exist or is not a
// directory.
var ErrBadPath = errors.New("path is not a directory")

// FSImporter walks a directory tree and imports every directory holding at
// least one audio file as an album.
type FSImporter struct {
	db      *store.DB
	gateway *UpsertGateway
	art     *ArtResolver
	tracker *Tracker
	log     *logger.Logger
}

func NewFSImporter(db *store.DB, gateway *UpsertGateway, art *ArtResolver, tracker *Tracker, log *logger.Logger) *FSImporter {
	return &FSImporter{
		db:      db,
		gateway: gateway,
		art:     art,
		tracker: tracker,
		log:     log.WithComponent("fs_import"),
	}
}

// Start validates the inputs, claims the job slot, and launches the scan
// in the background. Validation happens before the claim so a bad request
// never occupies the slot.
func (im *FSImporter) Start(rootPath string, collectionID *int64) (string, error) {
	info, err := os.Stat(rootPath)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrBadPath, rootPath)
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

	go im.run(jobID, rootPath, collectionID)
	return jobID, nil
}

func (im *FSImporter) run(jobID, rootPath string, collectionID *int64) {
	log := im.log.WithJob(jobID, string(domain.JobKindFSImport))
	defer func() {
		if r := recover(); r != nil {
			log.Error("import panicked", "panic", r)
			im.tracker.Fail(fmt.Sprintf("internal error: %v", r))
		}
	}()

	ctx := context.Background()

	dirs, err := collectAlbumDirs(rootPath)
	if err != nil {
		log.Error("scan failed", "error", err)
		im.tracker.Fail(fmt.Sprintf("scan %s: %v", rootPath, err))
		return
	}
	im.tracker.Run(len(dirs))
	log.Info("import started", "path", rootPath, "albums", len(dirs))

	for _, dir := range dirs {
		if im.tracker.Cancelled() {
			log.Info("import cancelled", "done", im.tracker.Snapshot().Done)
			im.tracker.Finish(domain.JobStatusCancelled)
			return
		}
		im.importDir(ctx, dir, collectionID, log)
	}

	snap := im.tracker.Snapshot()
	log.Info("import finished",
		"imported", snap.Imported, "updated", snap.Updated, "errors", snap.Errors)
	im.tracker.Finish(domain.JobStatusDone)
}

// importDir processes one album directory. Errors are recorded against
// the unit and the walk continues.
func (im *FSImporter) importDir(ctx context.Context, dir albumDir, collectionID *int64, log *logger.Logger) {
	im.tracker.SetCurrent(filepath.Base(dir.path))

	unit, err := scanAlbumDir(dir.path, dir.files)
	if err != nil {
		log.Warn("scan album failed", "dir", dir.path, "error", err)
		im.tracker.AddError(fmt.Sprintf("%s: %v", filepath.Base(dir.path), err))
		im.tracker.UnitDone(OutcomeErrored)
		return
	}

	result, err := im.gateway.Upsert(unit)
	if err != nil {
		log.Warn("upsert failed", "album", unit.Label(), "error", err)
		im.tracker.AddError(fmt.Sprintf("%s: %v", unit.Label(), err))
		im.tracker.UnitDone(OutcomeErrored)
		return
	}

	if !result.HasArt {
		im.art.Resolve(ctx, result.AlbumID, unit.Title, unit.Artist)
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

type albumDir struct {
	path  string
	files []string
}

// collectAlbumDirs finds every directory under root with at least one
// audio file, sorted by path for a stable processing order.
func collectAlbumDirs(root string) ([]albumDir, error) {
	byDir := make(map[string][]string)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if constants.AudioExtensions[strings.ToLower(filepath.Ext(path))] {
			dir := filepath.Dir(path)
			byDir[dir] = append(byDir[dir], d.Name())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dirs := make([]albumDir, 0, len(byDir))
	for dir, files := range byDir {
		dirs = append(dirs, albumDir{path: dir, files: files})
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].path < dirs[j].path })
	return dirs, nil
}
