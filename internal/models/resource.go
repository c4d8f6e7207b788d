package models

import "time"

// ResourcePayload is one resource of a publish bundle.
type ResourcePayload struct {
	Ref         ResourceRef
	Title       string
	Description string
	Tags        []string
	Filename    string
	Data        []byte
}

// Node replication status values returned by the resource status probe.
const (
	NodeStatusNotPublished = "NOT_PUBLISHED"
	NodeStatusPublished    = "PUBLISHED"
	NodeStatusNotStarted   = "NOT_STARTED"
	NodeStatusDownloading  = "DOWNLOADING"
	NodeStatusDownloaded   = "DOWNLOADED"
	NodeStatusBuilding     = "BUILDING"
	NodeStatusReady        = "READY"
	NodeStatusMissingData  = "MISSING_DATA"
	NodeStatusBuildFailed  = "BUILD_FAILED"
	NodeStatusUnsupported  = "UNSUPPORTED"
	NodeStatusBlocked      = "BLOCKED"
)

// ResourceStatus is the replication progress probe of a resource.
type ResourceStatus struct {
	Status          string   `json:"status"`
	ID              string   `json:"id,omitempty"`
	Title           string   `json:"title,omitempty"`
	Description     string   `json:"description,omitempty"`
	PercentLoaded   *float64 `json:"percentLoaded,omitempty"`
	LocalChunkCount int      `json:"localChunkCount,omitempty"`
	TotalChunkCount int      `json:"totalChunkCount,omitempty"`
}

// IsReady reports whether the node considers the resource fully built.
func (s ResourceStatus) IsReady() bool {
	return s.Status == NodeStatusReady
}

// IsUnavailable reports statuses from which the resource can never become ready.
//
// NOT_PUBLISHED is not one of them: a fresh publish may not have reached the local node yet.
func (s ResourceStatus) IsUnavailable() bool {
	switch s.Status {
	case NodeStatusUnsupported, NodeStatusBlocked:
		return true
	default:
		return false
	}
}

// ResourceMetadata is the optional metadata block of a search result.
type ResourceMetadata struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// ResourceSummary is a single search result.
type ResourceSummary struct {
	Name       string            `json:"name"`
	Service    Service           `json:"service"`
	Identifier string            `json:"identifier"`
	Metadata   *ResourceMetadata `json:"metadata,omitempty"`
	Size       int64             `json:"size"`
	Created    int64             `json:"created"`
	Updated    int64             `json:"updated,omitempty"`
}

// Ref returns the resource address of the result.
func (s ResourceSummary) Ref() ResourceRef {
	return NewResourceRef(s.Name, s.Service, s.Identifier)
}

// CreatedAt converts the millisecond creation timestamp.
func (s ResourceSummary) CreatedAt() time.Time {
	return time.UnixMilli(s.Created)
}

// SearchQuery describes a resource search.
type SearchQuery struct {
	Service         Service
	Query           string
	Name            string
	Limit           int
	Offset          int
	Reverse         bool
	IncludeMetadata bool
}

// PublishedResource is a locally remembered resource published from this client.
type PublishedResource struct {
	Ref         ResourceRef `json:"ref"`
	Title       string      `json:"title"`
	PublishedAt time.Time   `json:"publishedAt"`
}
