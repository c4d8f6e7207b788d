package publish

import "strings"

// metadataKeys is the key order of the description metadata string.
var metadataKeys = []string{"title", "author", "category", "mood", "language", "notes", "album"}

// Metadata is the key=value block embedded in a primary asset's description.
type Metadata struct {
	Title    string
	Author   string
	Category string
	Mood     string
	Language string
	Notes    string
	Album    string
}

func (m Metadata) values() map[string]string {
	return map[string]string{
		"title":    m.Title,
		"author":   m.Author,
		"category": m.Category,
		"mood":     m.Mood,
		"language": m.Language,
		"notes":    m.Notes,
		"album":    m.Album,
	}
}

// MetadataFromSubmission copies the description fields of a submission.
func MetadataFromSubmission(sub Submission) Metadata {
	return Metadata{
		Title:    sub.Title,
		Author:   sub.Author,
		Category: sub.Category,
		Mood:     sub.Mood,
		Language: sub.Language,
		Notes:    sub.Notes,
		Album:    sub.Album,
	}
}

// sanitizeValue strips the delimiters ";" and "=" and surrounding whitespace.
func sanitizeValue(v string) string {
	v = strings.NewReplacer(";", "", "=", "").Replace(v)
	return strings.TrimSpace(v)
}

// FormatMetadata encodes m as "key=value;" pairs. Empty values are omitted.
func FormatMetadata(m Metadata) string {
	values := m.values()
	var b strings.Builder
	for _, key := range metadataKeys {
		v := sanitizeValue(values[key])
		if v == "" {
			continue
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte(';')
	}
	return b.String()
}

// ParseMetadata decodes a description written by [FormatMetadata]. Unknown keys are ignored.
func ParseMetadata(s string) Metadata {
	var m Metadata
	for _, pair := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "title":
			m.Title = value
		case "author":
			m.Author = value
		case "category":
			m.Category = value
		case "mood":
			m.Mood = value
		case "language":
			m.Language = value
		case "notes":
			m.Notes = value
		case "album":
			m.Album = value
		}
	}
	return m
}
