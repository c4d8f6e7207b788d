package publish

import (
	"strings"

	"github.com/google/uuid"
)

const (
	identifierTitleLength = 20
	suffixLength          = 8
)

// Sanitize lowercases s, replaces every character outside [a-z0-9] with "_" and trims trailing "_".
func Sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// RandomSuffix returns 8 random lowercase hex characters.
func RandomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLength]
}

// NewIdentifier builds prefix + Sanitize(title)[:20] + "_" + suffix.
func NewIdentifier(prefix, title, suffix string) string {
	base := Sanitize(title)
	if len(base) > identifierTitleLength {
		base = base[:identifierTitleLength]
	}
	return prefix + base + "_" + suffix
}

// Filename derives a resource filename from the title and the original extension.
func Filename(title, ext string) string {
	base := Sanitize(title)
	if base == "" {
		base = "untitled"
	}
	return base + ext
}
