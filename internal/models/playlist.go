package models

import "fmt"

// TargetKind discriminates [PlaylistTarget] variants.
type TargetKind int

const (
	TargetExisting TargetKind = iota
	TargetNew
)

func (k TargetKind) String() string {
	switch k {
	case TargetExisting:
		return "existing"
	case TargetNew:
		return "new"
	default:
		return ""
	}
}

// PlaylistTarget declares that a published song should be added to a playlist.
//
// EXISTING targets carry PlaylistID; NEW targets carry Title, Description and a
// SharedKey so that several jobs of one batch converge on a single new playlist.
type PlaylistTarget struct {
	Kind        TargetKind
	PlaylistID  string
	Title       string
	Description string
	SharedKey   string
}

// ExistingPlaylist targets an already published playlist.
func ExistingPlaylist(playlistID string) PlaylistTarget {
	return PlaylistTarget{Kind: TargetExisting, PlaylistID: playlistID}
}

// NewPlaylist targets a playlist created once the queue drains.
//
// An empty sharedKey falls back to the title.
func NewPlaylist(title, description, sharedKey string) PlaylistTarget {
	if sharedKey == "" {
		sharedKey = title
	}
	return PlaylistTarget{Kind: TargetNew, Title: title, Description: description, SharedKey: sharedKey}
}

// Key identifies the accumulator bucket for this target within one owner.
func (t PlaylistTarget) Key() string {
	if t.Kind == TargetNew {
		return "new:" + t.SharedKey
	}
	return "existing:" + t.PlaylistID
}

// Validate checks the variant specific fields.
func (t PlaylistTarget) Validate() error {
	switch t.Kind {
	case TargetExisting:
		if t.PlaylistID == "" {
			return fmt.Errorf("existing playlist target requires a playlist id")
		}
	case TargetNew:
		if t.Title == "" {
			return fmt.Errorf("new playlist target requires a title")
		}
		if t.SharedKey == "" {
			return fmt.Errorf("new playlist target requires a shared key")
		}
	default:
		return fmt.Errorf("unknown playlist target kind %d", t.Kind)
	}
	return nil
}

// SongReference is a playlist entry pointing at a published song.
type SongReference struct {
	Identifier string  `json:"identifier"`
	Name       string  `json:"name"`
	Service    Service `json:"service"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
}

// Ref returns the resource address of the referenced song.
func (s SongReference) Ref() ResourceRef {
	return NewResourceRef(s.Name, s.Service, s.Identifier)
}

// PlaylistDocument is the JSON document published under [ServicePlaylist].
type PlaylistDocument struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Image       string          `json:"image,omitempty"`
	Songs       []SongReference `json:"songs"`
}

// HasSong reports whether the playlist already contains identifier.
func (p *PlaylistDocument) HasSong(identifier string) bool {
	for _, s := range p.Songs {
		if s.Identifier == identifier {
			return true
		}
	}
	return false
}

// Merge appends songs not already present, keeping existing order first.
// Returns the number of songs added.
func (p *PlaylistDocument) Merge(songs []SongReference) int {
	added := 0
	for _, s := range songs {
		if p.HasSong(s.Identifier) {
			continue
		}
		p.Songs = append(p.Songs, s)
		added++
	}
	return added
}
