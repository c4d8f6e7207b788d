package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/earbump/internal/models"
)

// FavoritesRepository persists favorited songs ([models.Favorite]) and playlists ([models.FavoritePlaylist]).
type FavoritesRepository struct {
	db *sql.DB
}

// NewFavoritesRepository creates a new [FavoritesRepository] with the given database connection
func NewFavoritesRepository(db *sql.DB) *FavoritesRepository {
	return &FavoritesRepository{db: db}
}

// AddSong favorites a song. Re-adding keeps the original creation time.
func (r *FavoritesRepository) AddSong(fav *models.Favorite) error {
	if err := fav.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if fav.Service == "" {
		fav.Service = models.ServiceAudio
	}
	fav.CreatedAt = timestamp(fav.CreatedAt)

	query := `
		INSERT INTO favorite_songs (identifier, name, service, title, author, created_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET name = excluded.name, service = excluded.service,
			title = excluded.title, author = excluded.author
	`

	_, err := r.db.Exec(query, fav.Identifier, fav.Name, fav.Service.String(), fav.Title, fav.Author, fav.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert favorite song: %w", err)
	}
	return nil
}

// RemoveSong removes a favorited song. Removing a song that is not a favorite is a no-op.
func (r *FavoritesRepository) RemoveSong(identifier string) error {
	if _, err := r.db.Exec(`DELETE FROM favorite_songs WHERE identifier = ?`, identifier); err != nil {
		return fmt.Errorf("failed to delete favorite song: %w", err)
	}
	return nil
}

// IsSongFavorite reports whether identifier is a favorited song.
func (r *FavoritesRepository) IsSongFavorite(identifier string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM favorite_songs WHERE identifier = ?)`, identifier).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check favorite song: %w", err)
	}
	return exists, nil
}

// GetSong retrieves a favorited song by identifier.
func (r *FavoritesRepository) GetSong(identifier string) (*models.Favorite, error) {
	query := `
		SELECT identifier, name, service, title, author, created_at
		FROM favorite_songs
		WHERE identifier = ?
	`
	fav, err := scanFavorite(r.db.QueryRow(query, identifier))
	if err != nil {
		return nil, notFound(err, "favorite song", identifier)
	}
	return fav, nil
}

// ListSongs returns all favorited songs, most recent first.
func (r *FavoritesRepository) ListSongs() ([]*models.Favorite, error) {
	query := `
		SELECT identifier, name, service, title, author, created_at
		FROM favorite_songs
		ORDER BY created_at DESC, identifier
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorite songs: %w", err)
	}
	defer rows.Close()

	var favorites []*models.Favorite
	for rows.Next() {
		fav, err := scanFavorite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan favorite song: %w", err)
		}
		favorites = append(favorites, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating favorite songs: %w", err)
	}
	return favorites, nil
}

// AddPlaylist favorites a playlist. Re-adding keeps the original creation time.
func (r *FavoritesRepository) AddPlaylist(fav *models.FavoritePlaylist) error {
	if err := fav.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	fav.CreatedAt = timestamp(fav.CreatedAt)

	query := `
		INSERT INTO favorite_playlists (identifier, name, title, description, image, created_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET name = excluded.name, title = excluded.title,
			description = excluded.description, image = excluded.image
	`

	_, err := r.db.Exec(query, fav.Identifier, fav.Name, fav.Title, fav.Description, fav.Image, fav.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert favorite playlist: %w", err)
	}
	return nil
}

// RemovePlaylist removes a favorited playlist. Removing an unknown playlist is a no-op.
func (r *FavoritesRepository) RemovePlaylist(identifier string) error {
	if _, err := r.db.Exec(`DELETE FROM favorite_playlists WHERE identifier = ?`, identifier); err != nil {
		return fmt.Errorf("failed to delete favorite playlist: %w", err)
	}
	return nil
}

// ListPlaylists returns all favorited playlists, most recent first.
func (r *FavoritesRepository) ListPlaylists() ([]*models.FavoritePlaylist, error) {
	query := `
		SELECT identifier, name, title, description, image, created_at
		FROM favorite_playlists
		ORDER BY created_at DESC, identifier
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorite playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.FavoritePlaylist
	for rows.Next() {
		var p models.FavoritePlaylist
		if err := rows.Scan(&p.Identifier, &p.Name, &p.Title, &p.Description, &p.Image, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite playlist: %w", err)
		}
		playlists = append(playlists, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating favorite playlists: %w", err)
	}
	return playlists, nil
}

func scanFavorite(s rowScanner) (*models.Favorite, error) {
	var (
		fav     models.Favorite
		service string
	)
	if err := s.Scan(&fav.Identifier, &fav.Name, &service, &fav.Title, &fav.Author, &fav.CreatedAt); err != nil {
		return nil, err
	}
	fav.Service = models.Service(service)
	return &fav, nil
}
