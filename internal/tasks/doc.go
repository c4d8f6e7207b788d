// Package tasks publishes batches of media jobs and the playlists they feed, with real-time progress reporting.
//
// # Publish Queue
//
// [PublishQueue] holds jobs in FIFO order and publishes them one at a time from a single drain goroutine:
//
//  1. [PublishQueue.Enqueue] : Validate jobs, resolve the publisher identity and register playlist targets
//  2. Drain loop : For each job, re-check the identity, build the resource bundle with [publish.Build],
//     publish it and verify that the node acknowledged exactly the submitted identifiers
//  3. Flush : When the FIFO empties, every playlist accumulated during the run is written once
//
// A failed job is reported and the run continues with the next one. Losing (or switching) the publisher
// identity fails every remaining job and discards all accumulated playlist entries.
//
// # Playlist Aggregation
//
// [PlaylistAggregator] collects published songs per owner and [models.PlaylistTarget]. NEW targets sharing a
// key converge on one new playlist; EXISTING targets are read once, merged without duplicates and written back.
//
// # Progress Reporting
//
// # All queue runs use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking. Per-job and per-playlist outcomes are delivered to the
// optional [ReportFunc].
//
// # Publish Recording
//
// The optional [PublishRecorder] interface persists every published song and playlist.
//
// Resources are recorded silently (errors ignored) to avoid disrupting a run.
package tasks
