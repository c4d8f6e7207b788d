package models

import "time"

// DownloadStatus is the lifecycle state of a requested resource download.
type DownloadStatus string

const (
	// DownloadRequested means a record exists but no network call has returned yet
	DownloadRequested DownloadStatus = "REQUESTED"

	// DownloadFetchingURL means the playable URL is still being resolved
	DownloadFetchingURL DownloadStatus = "FETCHING_URL"

	// DownloadTransferring means the network is replicating the resource
	DownloadTransferring DownloadStatus = "TRANSFERRING"

	// DownloadStalledRefetching means progress stopped and a re-fetch nudge was issued
	DownloadStalledRefetching DownloadStatus = "STALLED_REFETCHING"

	// DownloadReady means the resource is fully available locally
	DownloadReady DownloadStatus = "READY"

	// DownloadFailed means the download was abandoned or cannot complete
	DownloadFailed DownloadStatus = "FAILED"
)

// String returns the string representation of DownloadStatus
func (s DownloadStatus) String() string {
	return string(s)
}

// IsTerminal returns true once no further polling happens for the record.
func (s DownloadStatus) IsTerminal() bool {
	return s == DownloadReady || s == DownloadFailed
}

// IsActive returns true while a poller owns the record.
func (s DownloadStatus) IsActive() bool {
	return !s.IsTerminal()
}

// DownloadMetadata is the display information supplied with a download request.
type DownloadMetadata struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// DownloadRecord tracks one requested resource, keyed by identifier.
//
// Records are never removed during a session; a READY record acts as a cache hit.
// Version increases on every committed change, so consumers can drop snapshots that arrive out of order.
type DownloadRecord struct {
	Ref           ResourceRef    `json:"ref"`
	Status        DownloadStatus `json:"status"`
	PercentLoaded float64        `json:"percentLoaded"`
	URL           string         `json:"url,omitempty"`
	Title         string         `json:"title"`
	Author        string         `json:"author"`
	Error         string         `json:"error,omitempty"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Version       uint64         `json:"version"`
}

// StaleAgainst reports whether r is older than current.
func (r DownloadRecord) StaleAgainst(current DownloadRecord) bool {
	return r.Version < current.Version
}

// Playable reports whether the record is READY with a resolved URL.
func (r DownloadRecord) Playable() bool {
	return r.Status == DownloadReady && r.URL != ""
}

// DisplayTitle returns the title, falling back to the identifier.
func (r DownloadRecord) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Ref.Identifier
}
