package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pieterkdevilliers/music-db/internal/constants"
	"github.com/pieterkdevilliers/music-db/internal/domain"
	"github.com/pieterkdevilliers/music-db/internal/llm"
	"github.com/pieterkdevilliers/music-db/internal/logger"
	"github.com/pieterkdevilliers/music-db/internal/store"
)

// ErrLLMNotConfigured is returned when enrichment is requested without an
// API key.
var ErrLLMNotConfigured = errors.New("llm not configured")

// Enricher merges model-researched credits into the catalog. Single-album
// and collection runs share one tracker, so only one enrichment is in
// flight regardless of scope.
type Enricher struct {
	db      *store.DB
	client  *llm.Client
	tracker *Tracker
	log     *logger.Logger
}

func NewEnricher(db *store.DB, client *llm.Client, tracker *Tracker, log *logger.Logger) *Enricher {
	return &Enricher{
		db:      db,
		client:  client,
		tracker: tracker,
		log:     log.WithComponent("enrichment"),
	}
}

// StartAlbum launches an enrichment run over a single album.
func (e *Enricher) StartAlbum(albumID int64) (string, error) {
	if !e.client.Configured() {
		return "", ErrLLMNotConfigured
	}
	album, err := e.db.GetAlbum(albumID)
	if err != nil {
		return "", fmt.Errorf("lookup album: %w", err)
	}
	if album == nil {
		return "", fmt.Errorf("album %d not found", albumID)
	}

	jobID, err := e.tracker.Begin()
	if err != nil {
		return "", err
	}

	refs := []domain.AlbumRef{{ID: album.ID, Title: album.Title, Artist: album.Artist}}
	go e.run(jobID, refs)
	return jobID, nil
}

// StartCollection launches an enrichment run over every album in a
// collection, in title order. The membership is snapshotted before the
// run starts so the denominator is fixed.
func (e *Enricher) StartCollection(collectionID int64) (string, error) {
	if !e.client.Configured() {
		return "", ErrLLMNotConfigured
	}
	coll, err := e.db.GetCollection(collectionID)
	if err != nil {
		return "", fmt.Errorf("lookup collection: %w", err)
	}
	if coll == nil {
		return "", fmt.Errorf("collection %d not found", collectionID)
	}
	refs, err := e.db.ListCollectionAlbums(collectionID)
	if err != nil {
		return "", fmt.Errorf("list collection albums: %w", err)
	}

	jobID, err := e.tracker.Begin()
	if err != nil {
		return "", err
	}

	go e.run(jobID, refs)
	return jobID, nil
}

func (e *Enricher) run(jobID string, refs []domain.AlbumRef) {
	log := e.log.WithJob(jobID, string(domain.JobKindEnrichment))
	defer func() {
		if r := recover(); r != nil {
			log.Error("enrichment panicked", "panic", r)
			e.tracker.Fail(fmt.Sprintf("internal error: %v", r))
		}
	}()

	ctx := context.Background()
	e.tracker.Run(len(refs))
	log.Info("enrichment started", "albums", len(refs))

	for _, ref := range refs {
		if e.tracker.Cancelled() {
			log.Info("enrichment cancelled", "done", e.tracker.Snapshot().Done)
			e.tracker.Finish(domain.JobStatusCancelled)
			return
		}
		e.tracker.SetCurrent(ref.Title)

		changed, err := e.EnrichAlbum(ctx, ref.ID)
		switch {
		case err != nil:
			log.Warn("enrichment failed", "album_id", ref.ID, "title", ref.Title, "error", err)
			e.tracker.AddError(fmt.Sprintf("%s: %v", ref.Title, err))
			e.tracker.UnitDone(OutcomeErrored)
		case changed:
			e.tracker.UnitDone(OutcomeEnriched)
		default:
			e.tracker.UnitDone(OutcomeSkipped)
		}
	}

	snap := e.tracker.Snapshot()
	log.Info("enrichment finished", "enriched", snap.Enriched, "skipped", snap.Skipped, "errors", snap.Errors)
	e.tracker.Finish(domain.JobStatusDone)
}

// EnrichAlbum asks the model for credits on one album and merges them in.
// Returns whether anything changed. The merge never overwrites: the
// producer is filled only when absent, and every credit list grows by
// additions deduplicated against what is already on file.
func (e *Enricher) EnrichAlbum(ctx context.Context, albumID int64) (bool, error) {
	credits, err := e.db.GetAlbumCredits(albumID)
	if err != nil {
		return false, fmt.Errorf("load credits: %w", err)
	}
	if credits == nil {
		return false, fmt.Errorf("album %d not found", albumID)
	}

	catalogMusicians, catalogPeople, catalogDetails, err := e.catalogNames()
	if err != nil {
		return false, err
	}

	known := llm.AlbumContext{
		ReleaseYear:      credits.Album.ReleaseYear,
		Producer:         credits.Album.Producer,
		Musicians:        musicianNames(credits.Musicians),
		Personnel:        personnelNames(credits.Personnel),
		Details:          detailValues(credits.Details),
		CatalogMusicians: catalogMusicians,
		CatalogPeople:    catalogPeople,
		CatalogDetails:   catalogDetails,
	}

	facts, err := e.client.AlbumCredits(ctx, credits.Album.Title, credits.Album.Artist, known)
	if err != nil {
		return false, err
	}

	changed := false

	if credits.Album.Producer == nil && facts.Producer != nil {
		if producer := strings.TrimSpace(*facts.Producer); producer != "" {
			set, err := e.db.SetProducerIfNull(albumID, producer)
			if err != nil {
				return changed, fmt.Errorf("set producer: %w", err)
			}
			changed = changed || set
		}
	}

	if merged, grew := mergeMusicians(credits.Musicians, facts.Musicians); grew {
		if err := e.db.ReplaceMusicianLinks(albumID, merged); err != nil {
			return changed, fmt.Errorf("replace musicians: %w", err)
		}
		changed = true
	}
	if merged, grew := mergePersonnel(credits.Personnel, facts.Personnel); grew {
		if err := e.db.ReplacePersonnelLinks(albumID, merged); err != nil {
			return changed, fmt.Errorf("replace personnel: %w", err)
		}
		changed = true
	}
	if merged, grew := mergeDetails(credits.Details, facts.OtherDetails); grew {
		if err := e.db.ReplaceDetailLinks(albumID, merged); err != nil {
			return changed, fmt.Errorf("replace details: %w", err)
		}
		changed = true
	}

	return changed, nil
}

// catalogNames loads every entity name on file, capped per list, so the
// model can normalise spelling variants onto existing records instead of
// minting near-duplicate entities.
func (e *Enricher) catalogNames() (musicians, people, details []string, err error) {
	musicians, err = e.db.AllMusicianNames()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load musician names: %w", err)
	}
	people, err = e.db.AllPersonNames()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load person names: %w", err)
	}
	details, err = e.db.AllDetailNames()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load detail names: %w", err)
	}
	return capNames(musicians), capNames(people), capNames(details), nil
}

func capNames(names []string) []string {
	if len(names) > constants.MaxPromptNames {
		return names[:constants.MaxPromptNames]
	}
	return names
}

// mergeMusicians dedupes on name alone, case-insensitively: a musician
// already credited keeps their existing instrument even when the model
// reports a different one.
func mergeMusicians(existing []domain.MusicianCredit, facts []llm.MusicianFact) ([]domain.MusicianCredit, bool) {
	seen := make(map[string]bool, len(existing))
	for _, credit := range existing {
		seen[strings.ToLower(credit.Name)] = true
	}
	merged := append([]domain.MusicianCredit(nil), existing...)
	grew := false
	for _, fact := range facts {
		name := strings.TrimSpace(fact.Name)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		merged = append(merged, domain.MusicianCredit{Name: name, Instrument: strings.TrimSpace(fact.Instrument)})
		grew = true
	}
	return merged, grew
}

// mergePersonnel dedupes on the (name, role) pair, so one person may hold
// several roles.
func mergePersonnel(existing []domain.PersonnelCredit, facts []llm.PersonnelFact) ([]domain.PersonnelCredit, bool) {
	seen := make(map[string]bool, len(existing))
	for _, credit := range existing {
		seen[pairKey(credit.Name, credit.Role)] = true
	}
	merged := append([]domain.PersonnelCredit(nil), existing...)
	grew := false
	for _, fact := range facts {
		name := strings.TrimSpace(fact.Name)
		role := strings.TrimSpace(fact.Role)
		if name == "" || role == "" || seen[pairKey(name, role)] {
			continue
		}
		seen[pairKey(name, role)] = true
		merged = append(merged, domain.PersonnelCredit{Name: name, Role: role})
		grew = true
	}
	return merged, grew
}

// mergeDetails dedupes on the (value, type) pair.
func mergeDetails(existing []domain.DetailCredit, facts []llm.DetailFact) ([]domain.DetailCredit, bool) {
	seen := make(map[string]bool, len(existing))
	for _, credit := range existing {
		seen[pairKey(credit.Value, credit.Type)] = true
	}
	merged := append([]domain.DetailCredit(nil), existing...)
	grew := false
	for _, fact := range facts {
		value := strings.TrimSpace(fact.Value)
		kind := strings.TrimSpace(fact.Type)
		if value == "" || kind == "" || seen[pairKey(value, kind)] {
			continue
		}
		seen[pairKey(value, kind)] = true
		merged = append(merged, domain.DetailCredit{Value: value, Type: kind})
		grew = true
	}
	return merged, grew
}

func pairKey(a, b string) string {
	return strings.ToLower(a) + "\x00" + strings.ToLower(b)
}

func musicianNames(credits []domain.MusicianCredit) []string {
	names := make([]string, 0, len(credits))
	for _, c := range credits {
		names = append(names, c.Name)
	}
	return names
}

func personnelNames(credits []domain.PersonnelCredit) []string {
	names := make([]string, 0, len(credits))
	for _, c := range credits {
		names = append(names, c.Name+" ("+c.Role+")")
	}
	return names
}

func detailValues(credits []domain.DetailCredit) []string {
	values := make([]string, 0, len(credits))
	for _, c := range credits {
		values = append(values, c.Value)
	}
	return values
}
