package models

import (
	"fmt"
	"strings"
)

// ContentType is the kind of media a publish job carries.
type ContentType string

const (
	ContentAudio     ContentType = "AUDIO"
	ContentPodcast   ContentType = "PODCAST"
	ContentAudiobook ContentType = "AUDIOBOOK"
)

// String returns the string representation of ContentType
func (c ContentType) String() string {
	return string(c)
}

// ParseContentType converts a case-insensitive content type name.
func ParseContentType(s string) (ContentType, error) {
	ct := ContentType(strings.ToUpper(strings.TrimSpace(s)))
	switch ct {
	case ContentAudio, ContentPodcast, ContentAudiobook:
		return ct, nil
	case "SONG", "MUSIC":
		return ContentAudio, nil
	default:
		return "", fmt.Errorf("unknown content type %q", s)
	}
}
