package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pieterkdevilliers/music-db/internal/domain"
	"github.com/pieterkdevilliers/music-db/internal/llm"
	"github.com/pieterkdevilliers/music-db/internal/logger"
	"github.com/pieterkdevilliers/music-db/internal/store"
)

// fakeLLMServer answers every chat completion with the given JSON content.
func fakeLLMServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode fake response: %v", err)
		}
	}))
}

func TestEnricher_EnrichAlbum(t *testing.T) {
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	defer db.Close()

	existingProducer := "Teo Macero"
	album := &domain.Album{Title: "Bitches Brew", Artist: "Miles Davis", Producer: &existingProducer}
	if err := db.CreateAlbum(album); err != nil {
		t.Fatalf("CreateAlbum failed: %v", err)
	}
	if err := db.ReplaceMusicianLinks(album.ID, []domain.MusicianCredit{
		{Name: "Miles Davis", Instrument: "trumpet"},
	}); err != nil {
		t.Fatalf("ReplaceMusicianLinks failed: %v", err)
	}

	server := fakeLLMServer(t, `{
		"producer": "Someone Else",
		"musicians": [
			{"name": "miles davis", "instrument": "trumpet"},
			{"name": "Wayne Shorter", "instrument": "soprano saxophone"}
		],
		"personnel": [{"name": "Mati Klarwein", "role": "cover art"}],
		"other_details": [{"value": "Columbia Studio B", "type": "recording studio"}]
	}`)
	defer server.Close()

	client := llm.NewClient(llm.Config{APIKey: "test-key", BaseURL: server.URL})
	tracker := NewTracker(domain.JobKindEnrichment)
	enricher := NewEnricher(db, client, tracker, logger.Default())

	changed, err := enricher.EnrichAlbum(context.Background(), album.ID)
	if err != nil {
		t.Fatalf("EnrichAlbum failed: %v", err)
	}
	if !changed {
		t.Error("Expected changes from new credits")
	}

	credits, _ := db.GetAlbumCredits(album.ID)
	if *credits.Album.Producer != "Teo Macero" {
		t.Errorf("Expected producer preserved, got %s", *credits.Album.Producer)
	}
	if len(credits.Musicians) != 2 {
		t.Fatalf("Expected 2 musicians, got %d", len(credits.Musicians))
	}
	if len(credits.Personnel) != 1 || credits.Personnel[0].Name != "Mati Klarwein" {
		t.Errorf("Unexpected personnel: %+v", credits.Personnel)
	}
	if len(credits.Details) != 1 {
		t.Errorf("Expected 1 detail, got %d", len(credits.Details))
	}

	// A second pass with identical facts is a no-op.
	changed, err = enricher.EnrichAlbum(context.Background(), album.ID)
	if err != nil {
		t.Fatalf("Second EnrichAlbum failed: %v", err)
	}
	if changed {
		t.Error("Expected no changes on identical facts")
	}
}

func TestEnricher_PromptCarriesCatalogNames(t *testing.T) {
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	defer db.Close()

	first := &domain.Album{Title: "Hysteria", Artist: "Def Leppard"}
	if err := db.CreateAlbum(first); err != nil {
		t.Fatalf("CreateAlbum failed: %v", err)
	}
	if err := db.ReplaceMusicianLinks(first.ID, []domain.MusicianCredit{
		{Name: "Phil Collen", Instrument: "guitar"},
	}); err != nil {
		t.Fatalf("ReplaceMusicianLinks failed: %v", err)
	}
	if err := db.ReplacePersonnelLinks(first.ID, []domain.PersonnelCredit{
		{Name: "Mutt Lange", Role: "producer"},
	}); err != nil {
		t.Fatalf("ReplacePersonnelLinks failed: %v", err)
	}
	if err := db.ReplaceDetailLinks(first.ID, []domain.DetailCredit{
		{Value: "Wisseloord Studios", Type: "recording studio"},
	}); err != nil {
		t.Fatalf("ReplaceDetailLinks failed: %v", err)
	}

	year := 1992
	second := &domain.Album{Title: "Adrenalize", Artist: "Def Leppard", ReleaseYear: &year}
	if err := db.CreateAlbum(second); err != nil {
		t.Fatalf("CreateAlbum failed: %v", err)
	}

	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request body: %v", err)
		}
		gotBody = string(body)
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": `{"musicians": [], "personnel": [], "other_details": []}`}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode fake response: %v", err)
		}
	}))
	defer server.Close()

	client := llm.NewClient(llm.Config{APIKey: "test-key", BaseURL: server.URL})
	enricher := NewEnricher(db, client, NewTracker(domain.JobKindEnrichment), logger.Default())

	if _, err := enricher.EnrichAlbum(context.Background(), second.ID); err != nil {
		t.Fatalf("EnrichAlbum failed: %v", err)
	}

	for _, want := range []string{"Phil Collen", "Mutt Lange", "Wisseloord Studios", "1992"} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("Expected request to mention %q, body: %s", want, gotBody)
		}
	}
}

func TestEnricher_StartRequiresAPIKey(t *testing.T) {
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	defer db.Close()

	client := llm.NewClient(llm.Config{})
	enricher := NewEnricher(db, client, NewTracker(domain.JobKindEnrichment), logger.Default())

	if _, err := enricher.StartAlbum(1); err != ErrLLMNotConfigured {
		t.Errorf("Expected ErrLLMNotConfigured, got %v", err)
	}
}
