package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pieterkdevilliers/music-db/internal/domain"
	"github.com/pieterkdevilliers/music-db/internal/llm"
	"github.com/pieterkdevilliers/music-db/internal/logger"
	"github.com/pieterkdevilliers/music-db/internal/roon"
	"github.com/pieterkdevilliers/music-db/internal/storage"
	"github.com/pieterkdevilliers/music-db/internal/store"
)

// fakeLibraryCore serves the cursor-based browse protocol with a fixed
// album level.
type fakeLibraryCore struct {
	t       *testing.T
	albums  []roon.Item
	tracks  map[string][]roon.Item
	current []roon.Item
}

func (f *fakeLibraryCore) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		f.respond(w, map[string]string{"core_name": "Test Core"})
	})
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		f.respond(w, map[string]string{"token": "test-token"})
	})
	mux.HandleFunc("/browse", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PopAll  bool   `json:"pop_all"`
			ItemKey string `json:"item_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("decode browse request: %v", err)
		}
		if req.PopAll {
			f.current = f.albums
		} else if req.ItemKey != "" {
			f.current = f.tracks[req.ItemKey]
		}
		f.respond(w, map[string]interface{}{"list": map[string]int{"count": len(f.current)}})
	})
	mux.HandleFunc("/load", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Offset int `json:"offset"`
			Count  int `json:"count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("decode load request: %v", err)
		}
		end := req.Offset + req.Count
		if end > len(f.current) {
			end = len(f.current)
		}
		start := req.Offset
		if start > len(f.current) {
			start = len(f.current)
		}
		f.respond(w, map[string]interface{}{"items": f.current[start:end]})
	})
	return mux
}

func (f *fakeLibraryCore) respond(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		f.t.Errorf("encode response: %v", err)
	}
}

func testLibImporter(t *testing.T, core *fakeLibraryCore) (*LibImporter, *store.DB, *Tracker) {
	t.Helper()

	server := httptest.NewServer(core.handler())
	t.Cleanup(server.Close)
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	roonClient := roon.NewClient(filepath.Join(t.TempDir(), "token.json"), logger.Default())
	roonClient.Connect(u.Hostname(), port)
	roonClient.GetStatus(context.Background())

	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	art, err := storage.NewArtStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to init art store: %v", err)
	}

	log := logger.Default()
	gateway := NewUpsertGateway(db, art, log)
	resolver := NewArtResolver(db, emptyMusicBrainz(t), art, log)
	enricher := NewEnricher(db, llm.NewClient(llm.Config{}), NewTracker(domain.JobKindEnrichment), log)
	tracker := NewTracker(domain.JobKindLibraryImport)
	importer := NewLibImporter(db, roonClient, gateway, resolver, enricher, tracker, log)
	return importer, db, tracker
}

func TestLibImporter_ImportsAlbums(t *testing.T) {
	core := &fakeLibraryCore{
		t: t,
		albums: []roon.Item{
			{Title: "Kind of Blue", Subtitle: "Miles Davis", ItemKey: "k1"},
			{Title: "Settings"}, // action row without an item key
			{Title: "A Love Supreme", Subtitle: "John Coltrane", ItemKey: "k2"},
		},
		tracks: map[string][]roon.Item{
			"k1": {{Title: "1. So What"}, {Title: "2. Freddie Freeloader"}},
			"k2": {{Title: "1. Acknowledgement"}},
		},
	}
	importer, db, tracker := testLibImporter(t, core)

	jobID, err := importer.Start(nil, false)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if jobID == "" {
		t.Fatal("Expected a job id")
	}

	waitForTerminal(t, tracker)

	snap := tracker.Snapshot()
	if snap.Status != domain.JobStatusDone {
		t.Fatalf("Expected done, got %s (errors: %v)", snap.Status, snap.ErrorList)
	}
	if snap.Total != 3 {
		t.Errorf("Expected denominator 3 from the actual listing, got %d", snap.Total)
	}
	if snap.Imported != 2 || snap.Skipped != 1 {
		t.Errorf("Expected 2 imported and 1 skipped, got %+v", snap)
	}

	album, err := db.FindAlbumByTitleArtist("Kind of Blue", "Miles Davis")
	if err != nil || album == nil {
		t.Fatalf("Expected imported album, got %v (err=%v)", album, err)
	}
	if len(album.Tracks) != 2 || album.Tracks[0] != "So What" {
		t.Errorf("Unexpected tracks: %v", album.Tracks)
	}
}

func TestLibImporter_RequiresAuthorization(t *testing.T) {
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	defer db.Close()

	art, _ := storage.NewArtStore(t.TempDir())
	log := logger.Default()
	roonClient := roon.NewClient(filepath.Join(t.TempDir(), "token.json"), log)

	importer := NewLibImporter(db, roonClient,
		NewUpsertGateway(db, art, log),
		NewArtResolver(db, emptyMusicBrainz(t), art, log),
		NewEnricher(db, llm.NewClient(llm.Config{}), NewTracker(domain.JobKindEnrichment), log),
		NewTracker(domain.JobKindLibraryImport), log)

	if _, err := importer.Start(nil, false); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("Expected ErrNotAuthorized, got %v", err)
	}
}
