package domain

import (
	"time"
)

type JobKind string

const (
	JobKindFSImport      JobKind = "fs_import"
	JobKindLibraryImport JobKind = "library_import"
	JobKindEnrichment    JobKind = "enrichment"
)

type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusStarting  JobStatus = "starting"
	JobStatusRunning   JobStatus = "running"
	JobStatusDone      JobStatus = "done"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusError     JobStatus = "error"
)

// Terminal reports whether the status is a final one: a terminal progress
// record is never mutated again, only replaced by the next job's start.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusCancelled || s == JobStatusError
}

// Progress is a point-in-time snapshot of a background job. Snapshots are
// copies and safe to hand out to any number of pollers.
type Progress struct {
	JobID           string    `json:"job_id,omitempty"`
	Status          JobStatus `json:"status"`
	Total           int       `json:"total"`
	Done            int       `json:"done"`
	Imported        int       `json:"imported"`
	Updated         int       `json:"updated"`
	Enriched        int       `json:"enriched"`
	Skipped         int       `json:"skipped"`
	Errors          int       `json:"errors"`
	ErrorList       []string  `json:"error_list"`
	Current         string    `json:"current,omitempty"`
	CancelRequested bool      `json:"cancel_requested"`
}

// Album is a persisted catalog entry. The identity key for import matching
// is the case-insensitive (Title, Artist) pair, not any external ID: the
// same physical album may be discovered via different sources.
type Album struct {
	ID            int64       `json:"id" db:"id"`
	Title         string      `json:"title" db:"title"`
	Artist        string      `json:"artist" db:"artist"`
	ReleaseYear   *int        `json:"release_year" db:"release_year"`
	Producer      *string     `json:"producer" db:"producer"`
	RecordLabelID *int64      `json:"record_label_id" db:"record_label_id"`
	Tracks        StringSlice `json:"tracks" db:"tracks"`
	ArtPath       *string     `json:"art_path" db:"art_path"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// AlbumUnit is an ephemeral, source-agnostic bundle of metadata discovered
// by a scanner. It is consumed by the upsert gateway and never persisted
// directly.
type AlbumUnit struct {
	Title       string
	Artist      string
	ReleaseYear *int
	RecordLabel string
	Tracks      []string
	ImageBytes  []byte
}

// Label returns the human-readable form used for progress display and
// error messages.
func (u AlbumUnit) Label() string {
	if u.Artist == "" {
		return u.Title
	}
	return u.Title + " — " + u.Artist
}

// MusicianCredit links a musician name to an instrument on one album.
type MusicianCredit struct {
	Name       string `json:"musician_name" db:"name"`
	Instrument string `json:"instrument" db:"instrument"`
}

// PersonnelCredit links a person name to a production/technical role.
type PersonnelCredit struct {
	Name string `json:"person_name" db:"name"`
	Role string `json:"role" db:"role"`
}

// DetailCredit is a free-form album fact (e.g. a recording studio) with a
// category tag.
type DetailCredit struct {
	Value string `json:"detail_name" db:"name"`
	Type  string `json:"detail_type" db:"detail_type"`
}

// AlbumCredits is an album together with its linked entities, the shape
// both the enrichment engine and manual edits operate on.
type AlbumCredits struct {
	Album     Album
	Label     string
	Musicians []MusicianCredit
	Personnel []PersonnelCredit
	Details   []DetailCredit
}

// AlbumRef is the minimal listing row used to fix a batch denominator
// before processing begins.
type AlbumRef struct {
	ID     int64  `db:"id"`
	Title  string `db:"title"`
	Artist string `db:"artist"`
}

type Collection struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
