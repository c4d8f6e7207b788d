package models

import (
	"fmt"
	"time"
)

// Favorite is a locally persisted favorited song.
type Favorite struct {
	Identifier string    `json:"identifier"`
	Name       string    `json:"name"`
	Service    Service   `json:"service"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Validate checks that the favorite points at a resource.
func (f *Favorite) Validate() error {
	if f.Identifier == "" {
		return fmt.Errorf("identifier is required")
	}
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// FavoriteFromSong converts a playlist entry into a [Favorite].
func FavoriteFromSong(s SongReference) *Favorite {
	return &Favorite{
		Identifier: s.Identifier,
		Name:       s.Name,
		Service:    s.Service,
		Title:      s.Title,
		Author:     s.Author,
	}
}

// FavoritePlaylist is a locally persisted favorited playlist.
type FavoritePlaylist struct {
	Identifier  string    `json:"identifier"`
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Validate checks that the favorite points at a playlist.
func (f *FavoritePlaylist) Validate() error {
	if f.Identifier == "" {
		return fmt.Errorf("identifier is required")
	}
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}
