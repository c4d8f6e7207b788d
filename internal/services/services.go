// Network and identity boundaries
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/shared"
)

// Network is the boundary to the content network node.
//
// Every call may fail transiently and publish does not imply immediate availability.
type Network interface {
	// Publish publishes a multi-resource bundle and returns the identifiers the node accepted.
	Publish(ctx context.Context, resources []models.ResourcePayload) ([]string, error)

	// FetchResource retrieves and decodes the raw bytes of a published resource.
	FetchResource(ctx context.Context, ref models.ResourceRef) ([]byte, error)

	// FetchResourceStatus probes replication progress.
	FetchResourceStatus(ctx context.Context, ref models.ResourceRef) (*models.ResourceStatus, error)

	// FetchResourceProperties re-requests resource properties, nudging the node to retry replication.
	FetchResourceProperties(ctx context.Context, ref models.ResourceRef) error

	// FetchResourceURL resolves a locally servable URL.
	// Returns [shared.ErrResourceNotFound] when the resource is not published.
	FetchResourceURL(ctx context.Context, ref models.ResourceRef) (string, error)

	// Search lists resources matching the query.
	Search(ctx context.Context, query models.SearchQuery) ([]models.ResourceSummary, error)
}

// Identity resolves the name resources are published under.
type Identity interface {
	// ActiveName returns the current publisher name or [shared.ErrIdentityUnavailable].
	ActiveName(ctx context.Context) (string, error)
}

// StaticIdentity is an [Identity] backed by a configured name.
type StaticIdentity string

// ActiveName returns the configured name.
func (s StaticIdentity) ActiveName(ctx context.Context) (string, error) {
	if s == "" {
		return "", shared.ErrIdentityUnavailable
	}
	return string(s), nil
}

// FetchPlaylist fetches and decodes a playlist document.
//
// A missing resource is reported as [shared.ErrPlaylistNotFound]; other fetch errors pass through.
func FetchPlaylist(ctx context.Context, n Network, ref models.ResourceRef) (*models.PlaylistDocument, error) {
	data, err := n.FetchResource(ctx, ref)
	if errors.Is(err, shared.ErrResourceNotFound) {
		return nil, fmt.Errorf("%w: %v", shared.ErrPlaylistNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist %s: %w", ref.Identifier, err)
	}

	var doc models.PlaylistDocument
	if err := shared.UnmarshalJSON(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode playlist %s: %w", ref.Identifier, err)
	}
	return &doc, nil
}
