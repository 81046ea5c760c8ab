package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"

	"github.com/pieterkdevilliers/music-db/internal/constants"
	"github.com/pieterkdevilliers/music-db/internal/domain"
)

// scanAlbumDir reads one album directory into an import unit. Album-level
// fields come from the first readable audio file; untagged files degrade
// to directory and filename fallbacks rather than failing the unit.
func scanAlbumDir(dir string, files []string) (domain.AlbumUnit, error) {
	sort.Strings(files)

	unit := domain.AlbumUnit{
		Title:  filepath.Base(dir),
		Artist: "Unknown",
	}

	albumFieldsSet := false
	for _, file := range files {
		path := filepath.Join(dir, file)
		meta := readTags(path)

		if !albumFieldsSet && meta != nil {
			if album := strings.TrimSpace(meta.Album()); album != "" {
				unit.Title = album
			}
			if artist := firstNonBlank(meta.AlbumArtist(), meta.Artist()); artist != "" {
				unit.Artist = artist
			}
			if year := meta.Year(); year > 0 {
				y := year
				unit.ReleaseYear = &y
			}
			albumFieldsSet = true
		}

		title := ""
		if meta != nil {
			title = strings.TrimSpace(meta.Title())
		}
		if title == "" {
			title = stemOf(file)
		}
		unit.Tracks = append(unit.Tracks, title)

		if unit.RecordLabel == "" {
			unit.RecordLabel = readLabel(path)
		}
	}

	if len(unit.Tracks) == 0 {
		return unit, fmt.Errorf("no readable audio files in %s", dir)
	}

	unit.ImageBytes = findArt(dir, files)
	return unit, nil
}

// readTags parses one file's tags, returning nil when the file is
// unreadable or untagged.
func readTags(path string) tag.Metadata {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() {
		_ = f.Close()
	}()
	meta, err := tag.ReadFrom(f)
	if err != nil {
		return nil
	}
	return meta
}

// readLabel pulls the record label from format-specific tags: the
// ORGANIZATION or LABEL vorbis comment on FLAC, the TPUB frame on MP3.
func readLabel(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case constants.ExtFLAC:
		return flacLabel(path)
	case constants.ExtMP3:
		return mp3Label(path)
	}
	return ""
}

func flacLabel(path string) string {
	f, err := goflac.ParseFile(path)
	if err != nil {
		return ""
	}
	for _, block := range f.Meta {
		if block.Type != goflac.VorbisComment {
			continue
		}
		comment, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			continue
		}
		for _, field := range []string{"ORGANIZATION", "LABEL", "PUBLISHER"} {
			if values, err := comment.Get(field); err == nil && len(values) > 0 {
				if label := strings.TrimSpace(values[0]); label != "" {
					return label
				}
			}
		}
	}
	return ""
}

func mp3Label(path string) string {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{"TPUB"}})
	if err != nil {
		return ""
	}
	defer func() {
		_ = t.Close()
	}()
	return strings.TrimSpace(t.GetTextFrame("TPUB").Text)
}

// findArt picks cover art for the directory in priority order: a FLAC
// front-cover picture block, any embedded picture, a well-known cover
// filename, then any image file.
func findArt(dir string, files []string) []byte {
	for _, file := range files {
		if strings.ToLower(filepath.Ext(file)) == constants.ExtFLAC {
			if img := flacFrontCover(filepath.Join(dir, file)); img != nil {
				return img
			}
		}
	}
	for _, file := range files {
		if img := embeddedPicture(filepath.Join(dir, file)); img != nil {
			return img
		}
	}
	for _, name := range constants.CoverFilenames {
		if img := readImageFile(filepath.Join(dir, name)); img != nil {
			return img
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".jpg" || ext == ".jpeg" || ext == ".png" {
			if img := readImageFile(filepath.Join(dir, entry.Name())); img != nil {
				return img
			}
		}
	}
	return nil
}

func flacFrontCover(path string) []byte {
	f, err := goflac.ParseFile(path)
	if err != nil {
		return nil
	}
	for _, block := range f.Meta {
		if block.Type != goflac.Picture {
			continue
		}
		pic, err := flacpicture.ParseFromMetaDataBlock(*block)
		if err != nil {
			continue
		}
		if pic.PictureType == flacpicture.PictureTypeFrontCover && len(pic.ImageData) > 0 {
			return pic.ImageData
		}
	}
	return nil
}

// embeddedPicture returns any picture embedded in the file, regardless of
// its declared type.
func embeddedPicture(path string) []byte {
	switch strings.ToLower(filepath.Ext(path)) {
	case constants.ExtMP3:
		t, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{"APIC"}})
		if err != nil {
			return nil
		}
		defer func() {
			_ = t.Close()
		}()
		for _, frame := range t.GetFrames(t.CommonID("Attached picture")) {
			if pic, ok := frame.(id3v2.PictureFrame); ok && len(pic.Picture) > 0 {
				return pic.Picture
			}
		}
		return nil
	default:
		meta := readTags(path)
		if meta == nil {
			return nil
		}
		if pic := meta.Picture(); pic != nil && len(pic.Data) > 0 {
			return pic.Data
		}
		return nil
	}
}

func readImageFile(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return nil
	}
	return data
}

func stemOf(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
