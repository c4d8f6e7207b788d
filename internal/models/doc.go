// Package models defines the value types shared by the download coordinator, the publish queue and the persistence layer.
//
// The package contains three groups of types:
//
// 1. Resource addressing: a resource on the network is identified by owner name, service and identifier
//   - [Service] : AUDIO, VIDEO, PLAYLIST, DOCUMENT or THUMBNAIL
//   - [ResourceRef] : the (name, service, identifier) triple
//   - [ResourcePayload] : one resource of a publish bundle
//   - [ResourceStatus] : replication progress probe returned by the node
//   - [ResourceSummary] / [SearchQuery] : resource search
//
// 2. Download tracking
//   - [DownloadRecord] : one record per identifier, mutated by the status poller
//   - [DownloadStatus] : REQUESTED → FETCHING_URL → TRANSFERRING ⇄ STALLED_REFETCHING → READY, or FAILED
//
// 3. Playlists and favorites
//   - [PlaylistTarget] : tagged union of EXISTING and NEW playlist intents
//   - [SongReference] / [PlaylistDocument] : the published playlist format
//   - [Favorite] / [FavoritePlaylist] : locally persisted favorites
package models
