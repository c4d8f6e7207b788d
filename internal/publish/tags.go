package publish

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// AudioExtensions lists the file types accepted for upload.
var AudioExtensions = []string{".mp3", ".flac", ".m4a", ".ogg", ".wav", ".opus", ".aac", ".mp4", ".m4v", ".webm"}

// IsMediaFile reports whether path has a supported extension.
func IsMediaFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range AudioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// FromFile reads the media file at path into sub and fills blank fields from its tags.
//
// Title falls back to the file name. Tag read failures are not errors; files without tags simply
// keep the caller's values.
func FromFile(path string, sub Submission) (Submission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sub, fmt.Errorf("failed to read %s: %w", path, err)
	}
	sub.File = &Asset{Name: filepath.Base(path), Data: data}

	if md, err := tag.ReadFrom(bytes.NewReader(data)); err == nil {
		applyTags(&sub, md)
	}

	if strings.TrimSpace(sub.Title) == "" {
		base := filepath.Base(path)
		sub.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return sub, nil
}

func applyTags(sub *Submission, md tag.Metadata) {
	if sub.Title == "" {
		sub.Title = md.Title()
	}
	if sub.Author == "" {
		sub.Author = firstNonEmpty(md.Artist(), md.AlbumArtist(), md.Composer())
	}
	if sub.Album == "" {
		sub.Album = md.Album()
	}
	if sub.Category == "" {
		sub.Category = md.Genre()
	}
	if sub.Cover.Empty() {
		if pic := md.Picture(); pic != nil && len(pic.Data) > 0 {
			name := "cover"
			if pic.Ext != "" {
				name += "." + pic.Ext
			}
			sub.Cover = &Asset{Name: name, Data: pic.Data}
		}
	}
}
