package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pieterkdevilliers/music-db/internal/constants"
)

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/import/fs", func(r chi.Router) {
		r.Post("/start", h.StartFSImport)
		r.Post("/cancel", h.CancelFSImport)
		r.Get("/progress", h.FSImportProgress)
	})

	r.Route("/import/library", func(r chi.Router) {
		r.Post("/connect", h.ConnectLibrary)
		r.Get("/status", h.LibraryStatus)
		r.Get("/probe", h.ProbeLibrary)
		r.Post("/start", h.StartLibraryImport)
		r.Post("/cancel", h.CancelLibraryImport)
		r.Get("/progress", h.LibraryImportProgress)
	})

	r.Route("/enrichment", func(r chi.Router) {
		r.Post("/album/{id}", h.EnrichAlbum)
		r.Post("/collection/{id}", h.EnrichCollection)
		r.Post("/cancel", h.CancelEnrichment)
		r.Get("/progress", h.EnrichmentProgress)
	})

	r.Route("/albums", func(r chi.Router) {
		r.Get("/", h.ListAlbums)
		r.Get("/{id}", h.GetAlbum)
		r.Delete("/{id}", h.DeleteAlbum)
	})

	r.Route("/collections", func(r chi.Router) {
		r.Post("/", h.CreateCollection)
		r.Get("/{id}/albums", h.ListCollectionAlbums)
	})

	r.Get("/musicbrainz/search", h.SearchMusicBrainz)
	r.Get("/musicbrainz/release/{mbid}", h.GetMusicBrainzRelease)
}

// --- filesystem import ---

func (h *Handler) StartFSImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path         string `json:"path"`
		CollectionID *int64 `json:"collection_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		h.writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	jobID, err := h.FSImporter.Start(req.Path, req.CollectionID)
	if err != nil {
		h.startError(w, err)
		return
	}
	h.accepted(w, jobID)
}

func (h *Handler) CancelFSImport(w http.ResponseWriter, r *http.Request) {
	if !h.FSTracker.RequestCancel() {
		h.writeError(w, http.StatusConflict, "no import in progress")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cancel_requested"})
}

func (h *Handler) FSImportProgress(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.FSTracker.Snapshot())
}

// --- library import ---

func (h *Handler) ConnectLibrary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Host) == "" {
		h.writeError(w, http.StatusBadRequest, "host is required")
		return
	}
	if req.Port == 0 {
		req.Port = constants.DefaultRoonPort
	}

	h.Roon.Connect(req.Host, req.Port)
	h.writeJSON(w, http.StatusOK, h.Roon.GetStatus(r.Context()))
}

func (h *Handler) LibraryStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Roon.GetStatus(r.Context()))
}

func (h *Handler) ProbeLibrary(w http.ResponseWriter, r *http.Request) {
	count := 3
	if v := r.URL.Query().Get("count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			count = n
		}
	}
	result, err := h.Roon.Probe(r.Context(), count)
	if err != nil {
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) StartLibraryImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CollectionID *int64 `json:"collection_id"`
		AutoEnrich   bool   `json:"auto_enrich"`
	}
	// An empty body means a plain import with no collection.
	_ = json.NewDecoder(r.Body).Decode(&req)

	jobID, err := h.LibImporter.Start(req.CollectionID, req.AutoEnrich)
	if err != nil {
		h.startError(w, err)
		return
	}
	h.accepted(w, jobID)
}

func (h *Handler) CancelLibraryImport(w http.ResponseWriter, r *http.Request) {
	if !h.LibTracker.RequestCancel() {
		h.writeError(w, http.StatusConflict, "no import in progress")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cancel_requested"})
}

func (h *Handler) LibraryImportProgress(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.LibTracker.Snapshot())
}

// --- enrichment ---

func (h *Handler) EnrichAlbum(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid album id")
		return
	}
	jobID, err := h.Enricher.StartAlbum(id)
	if err != nil {
		h.startError(w, err)
		return
	}
	h.accepted(w, jobID)
}

func (h *Handler) EnrichCollection(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid collection id")
		return
	}
	jobID, err := h.Enricher.StartCollection(id)
	if err != nil {
		h.startError(w, err)
		return
	}
	h.accepted(w, jobID)
}

func (h *Handler) CancelEnrichment(w http.ResponseWriter, r *http.Request) {
	if !h.EnrTracker.RequestCancel() {
		h.writeError(w, http.StatusConflict, "no enrichment in progress")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cancel_requested"})
}

func (h *Handler) EnrichmentProgress(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.EnrTracker.Snapshot())
}

// --- catalog ---

func (h *Handler) ListAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := h.DB.ListAlbums()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, albums)
}

func (h *Handler) GetAlbum(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid album id")
		return
	}
	credits, err := h.DB.GetAlbumCredits(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if credits == nil {
		h.writeError(w, http.StatusNotFound, "album not found")
		return
	}
	h.writeJSON(w, http.StatusOK, credits)
}

func (h *Handler) DeleteAlbum(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid album id")
		return
	}
	album, err := h.DB.GetAlbum(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if album == nil {
		h.writeError(w, http.StatusNotFound, "album not found")
		return
	}
	if _, err := h.DB.DeleteAlbum(id); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if album.ArtPath != nil {
		if err := h.Art.Remove(*album.ArtPath); err != nil {
			h.Log.Warn("remove album art failed", "album_id", id, "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	coll, err := h.DB.CreateCollection(strings.TrimSpace(req.Name))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, coll)
}

func (h *Handler) ListCollectionAlbums(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid collection id")
		return
	}
	coll, err := h.DB.GetCollection(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if coll == nil {
		h.writeError(w, http.StatusNotFound, "collection not found")
		return
	}
	albums, err := h.DB.ListCollectionAlbums(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, albums)
}

// --- musicbrainz ---

func (h *Handler) SearchMusicBrainz(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	artist := strings.TrimSpace(r.URL.Query().Get("artist"))
	if title == "" || artist == "" {
		h.writeError(w, http.StatusBadRequest, "title and artist are required")
		return
	}
	results, err := h.MusicBrainz.SearchReleases(r.Context(), title, artist)
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, results)
}

func (h *Handler) GetMusicBrainzRelease(w http.ResponseWriter, r *http.Request) {
	mbid := chi.URLParam(r, "mbid")
	release, err := h.MusicBrainz.GetRelease(r.Context(), mbid)
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if release == nil {
		h.writeError(w, http.StatusNotFound, "release not found")
		return
	}
	h.writeJSON(w, http.StatusOK, release)
}
