package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/pieterkdevilliers/music-db/internal/app"
	"github.com/pieterkdevilliers/music-db/internal/domain"
	"github.com/pieterkdevilliers/music-db/internal/llm"
	"github.com/pieterkdevilliers/music-db/internal/logger"
	"github.com/pieterkdevilliers/music-db/internal/musicbrainz"
	"github.com/pieterkdevilliers/music-db/internal/roon"
	"github.com/pieterkdevilliers/music-db/internal/storage"
	"github.com/pieterkdevilliers/music-db/internal/store"
)

func testRouter(t *testing.T) (*chi.Mux, *store.DB) {
	t.Helper()

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
	mbClient := musicbrainz.NewClient("http://127.0.0.1:0", "http://127.0.0.1:0")
	roonClient := roon.NewClient(filepath.Join(t.TempDir(), "token.json"), log)
	llmClient := llm.NewClient(llm.Config{})

	fsTracker := app.NewTracker(domain.JobKindFSImport)
	libTracker := app.NewTracker(domain.JobKindLibraryImport)
	enrTracker := app.NewTracker(domain.JobKindEnrichment)

	gateway := app.NewUpsertGateway(db, art, log)
	resolver := app.NewArtResolver(db, mbClient, art, log)
	enricher := app.NewEnricher(db, llmClient, enrTracker, log)
	fsImporter := app.NewFSImporter(db, gateway, resolver, fsTracker, log)
	libImporter := app.NewLibImporter(db, roonClient, gateway, resolver, enricher, libTracker, log)

	r := chi.NewRouter()
	h := NewHandler(db, art, fsImporter, libImporter, enricher,
		fsTracker, libTracker, enrTracker, roonClient, mbClient, log)
	h.RegisterRoutes(r)
	return r, db
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStartFSImport_BadPath(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, "POST", "/import/fs/start", map[string]string{"path": "/does/not/exist"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, "POST", "/import/fs/start", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing path, got %d", w.Code)
	}
}

func TestFSImportProgressAndCancel(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, "GET", "/import/fs/progress", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var progress domain.Progress
	if err := json.Unmarshal(w.Body.Bytes(), &progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if progress.Status != domain.JobStatusIdle {
		t.Errorf("Expected idle, got %s", progress.Status)
	}

	// Nothing running: cancel conflicts.
	w = doJSON(t, r, "POST", "/import/fs/cancel", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for cancel without a job, got %d", w.Code)
	}
}

func TestStartLibraryImport_NotAuthorized(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, "POST", "/import/library/start", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 when core not authorized, got %d: %s", w.Code, w.Body.String())
	}
}

func TestEnrichAlbum_NoAPIKey(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, "POST", "/enrichment/album/1", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 without LLM key, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, "POST", "/enrichment/album/not-a-number", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad id, got %d", w.Code)
	}
}

func TestAlbumEndpoints(t *testing.T) {
	r, db := testRouter(t)

	album := &domain.Album{Title: "Kind of Blue", Artist: "Miles Davis", Tracks: domain.StringSlice{"So What"}}
	if err := db.CreateAlbum(album); err != nil {
		t.Fatalf("CreateAlbum failed: %v", err)
	}

	w := doJSON(t, r, "GET", "/albums/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var albums []domain.Album
	if err := json.Unmarshal(w.Body.Bytes(), &albums); err != nil {
		t.Fatalf("decode albums: %v", err)
	}
	if len(albums) != 1 {
		t.Fatalf("Expected 1 album, got %d", len(albums))
	}

	w = doJSON(t, r, "GET", "/albums/99999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing album, got %d", w.Code)
	}

	w = doJSON(t, r, "DELETE", "/albums/"+itoa(album.ID), nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 delete, got %d", w.Code)
	}
	w = doJSON(t, r, "DELETE", "/albums/"+itoa(album.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for double delete, got %d", w.Code)
	}
}

func TestCollectionEndpoints(t *testing.T) {
	r, db := testRouter(t)

	w := doJSON(t, r, "POST", "/collections/", map[string]string{"name": "Jazz"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var coll domain.Collection
	if err := json.Unmarshal(w.Body.Bytes(), &coll); err != nil {
		t.Fatalf("decode collection: %v", err)
	}

	album := &domain.Album{Title: "Kind of Blue", Artist: "Miles Davis"}
	if err := db.CreateAlbum(album); err != nil {
		t.Fatalf("CreateAlbum failed: %v", err)
	}
	if err := db.AddAlbumToCollection(coll.ID, album.ID); err != nil {
		t.Fatalf("AddAlbumToCollection failed: %v", err)
	}

	w = doJSON(t, r, "GET", "/collections/"+itoa(coll.ID)+"/albums", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var refs []domain.AlbumRef
	if err := json.Unmarshal(w.Body.Bytes(), &refs); err != nil {
		t.Fatalf("decode refs: %v", err)
	}
	if len(refs) != 1 || refs[0].Title != "Kind of Blue" {
		t.Errorf("Unexpected refs: %+v", refs)
	}

	w = doJSON(t, r, "GET", "/collections/99999/albums", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing collection, got %d", w.Code)
	}

	w = doJSON(t, r, "POST", "/collections/", map[string]string{"name": "  "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for blank name, got %d", w.Code)
	}
}

func TestSearchMusicBrainz_RequiresParams(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, "GET", "/musicbrainz/search?title=Kind+of+Blue", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without artist, got %d", w.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
