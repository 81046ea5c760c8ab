// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort            = "8080"
	DefaultDBPath          = "musicdb.db"
	DefaultArtDir          = "data/album_art"
	DefaultMusicBrainzURL  = "https://musicbrainz.org/ws/2"
	DefaultCoverArtURL     = "https://coverartarchive.org"
	DefaultRoonPort        = 9330
	DefaultRoonTokenPath   = "data/roon_token.json"
	DefaultLLMModel        = "claude-sonnet-4-6"
	DefaultLLMBaseURL      = "https://openrouter.ai/api/v1/chat/completions"
	DefaultHTTPTimeout     = 10 * time.Second
	ImageHTTPTimeout       = 15 * time.Second
	DefaultRetryCount      = 3
	DefaultRetryBase       = 1 * time.Second
	DefaultLibraryPageSize = 100
	TrackPageSize          = 100
)

// AudioExtensions are the file extensions that qualify a directory as an
// album during a filesystem import.
var AudioExtensions = map[string]bool{
	".flac": true,
	".mp3":  true,
	".m4a":  true,
	".aiff": true,
	".aif":  true,
	".ogg":  true,
	".wav":  true,
}

// CoverFilenames are well-known cover-art filenames looked for inside an
// album directory, in priority order.
var CoverFilenames = []string{
	"cover.jpg", "cover.jpeg",
	"folder.jpg", "folder.jpeg",
	"front.jpg", "front.jpeg",
	"albumart.jpg", "albumart.jpeg",
	"AlbumArt.jpg",
	"cover.png", "folder.png",
}

// Jobs
const (
	// MaxJobErrors bounds the per-job error list; older entries are dropped.
	MaxJobErrors = 50
	// MaxPromptNames caps each known-name list sent to the model.
	MaxPromptNames = 200
)

// File Extensions
const (
	ExtFLAC = ".flac"
	ExtMP3  = ".mp3"
	ExtJPG  = ".jpg"
)

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)
