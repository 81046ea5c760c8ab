// Package handlers exposes the import, enrichment, and catalog operations
// over HTTP. Responses are JSON; long-running work is accepted with 202
// and observed through the progress endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pieterkdevilliers/music-db/internal/app"
	"github.com/pieterkdevilliers/music-db/internal/logger"
	"github.com/pieterkdevilliers/music-db/internal/musicbrainz"
	"github.com/pieterkdevilliers/music-db/internal/roon"
	"github.com/pieterkdevilliers/music-db/internal/storage"
	"github.com/pieterkdevilliers/music-db/internal/store"
)

type Handler struct {
	DB          *store.DB
	Art         *storage.ArtStore
	FSImporter  *app.FSImporter
	LibImporter *app.LibImporter
	Enricher    *app.Enricher
	FSTracker   *app.Tracker
	LibTracker  *app.Tracker
	EnrTracker  *app.Tracker
	Roon        *roon.Client
	MusicBrainz *musicbrainz.Client
	Log         *logger.Logger
}

func NewHandler(db *store.DB, art *storage.ArtStore, fs *app.FSImporter, lib *app.LibImporter, enr *app.Enricher,
	fsTracker, libTracker, enrTracker *app.Tracker,
	roonClient *roon.Client, mb *musicbrainz.Client, log *logger.Logger) *Handler {
	return &Handler{
		DB:          db,
		Art:         art,
		FSImporter:  fs,
		LibImporter: lib,
		Enricher:    enr,
		FSTracker:   fsTracker,
		LibTracker:  libTracker,
		EnrTracker:  enrTracker,
		Roon:        roonClient,
		MusicBrainz: mb,
		Log:         log.WithComponent("http"),
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Warn("encode response failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// startError maps job-start failures onto status codes: a busy slot and a
// missing authorization are conflicts, a bad input is a bad request.
func (h *Handler) startError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrAlreadyRunning):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrNotAuthorized), errors.Is(err, app.ErrLLMNotConfigured):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrBadPath):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) accepted(w http.ResponseWriter, jobID string) {
	h.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "started"})
}
