// Package repositories implements SQLite persistence for local client state.
//
// Key Implementations:
//   - [FavoritesRepository] : Favorited songs and playlists, keyed by resource identifier
//   - [PublishedRepository] : History of resources published from this client
//
// Writes are idempotent: re-adding a favorite keeps its original creation time and refreshes the display
// fields, and re-recording a published resource updates its title and timestamp.
//
// [PublishedRepository] satisfies tasks.PublishRecorder so the publish queue can record its output directly.
package repositories
