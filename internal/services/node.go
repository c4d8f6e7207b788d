// Content network node [Network] implementation
//
// Talks to the node's arbitrary-resource REST API.
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/shared"
)

// NodeService implements [Network] against a node's HTTP API.
type NodeService struct {
	api *APIService
}

var _ Network = (*NodeService)(nil)

// NewNodeService creates a node client over the given transport.
func NewNodeService(api *APIService) *NodeService {
	return &NodeService{api: api}
}

func resourcePath(prefix string, ref models.ResourceRef) string {
	return fmt.Sprintf("%s/%s/%s/%s",
		prefix,
		url.PathEscape(ref.Service.String()),
		url.PathEscape(ref.Name),
		url.PathEscape(ref.Identifier),
	)
}

// Publish uploads each resource of the bundle in order.
//
// Calls POST /arbitrary/{service}/{name}/{identifier}/base64 per resource. The node offers no
// bundle transaction, so on failure the identifiers accepted so far are returned with the error.
func (n *NodeService) Publish(ctx context.Context, resources []models.ResourcePayload) ([]string, error) {
	if len(resources) == 0 {
		return nil, fmt.Errorf("%w: empty publish bundle", shared.ErrInvalidInput)
	}

	accepted := make([]string, 0, len(resources))
	for _, res := range resources {
		if err := res.Ref.Validate(); err != nil {
			return accepted, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}

		query := url.Values{}
		if res.Title != "" {
			query.Set("title", res.Title)
		}
		if res.Description != "" {
			query.Set("description", res.Description)
		}
		if res.Filename != "" {
			query.Set("filename", res.Filename)
		}
		for _, tag := range res.Tags {
			query.Add("tags", tag)
		}

		encoded := base64.StdEncoding.EncodeToString(res.Data)
		resp, err := n.api.Post(ctx, resourcePath("/arbitrary", res.Ref)+"/base64", query, "text/plain", []byte(encoded))
		if err != nil {
			return accepted, fmt.Errorf("publish %s: %w", res.Ref, err)
		}
		if err := resp.Err(); err != nil {
			return accepted, fmt.Errorf("publish %s: %w", res.Ref, err)
		}

		accepted = append(accepted, res.Ref.Identifier)
	}

	return accepted, nil
}

// FetchResource retrieves a resource's data.
//
// Calls GET /arbitrary/{service}/{name}/{identifier}?encoding=base64.
func (n *NodeService) FetchResource(ctx context.Context, ref models.ResourceRef) ([]byte, error) {
	query := url.Values{"encoding": {"base64"}}
	resp, err := n.api.Get(ctx, resourcePath("/arbitrary", ref), query)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == 404 {
		return nil, fmt.Errorf("%w: %s", shared.ErrResourceNotFound, ref)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	decoded, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(resp.Body)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode resource %s: %w", ref, err)
	}
	return decoded, nil
}

// FetchResourceStatus probes replication progress.
//
// Calls GET /arbitrary/resource/status/{service}/{name}/{identifier}?build=true.
func (n *NodeService) FetchResourceStatus(ctx context.Context, ref models.ResourceRef) (*models.ResourceStatus, error) {
	query := url.Values{"build": {"true"}}
	resp, err := n.api.Get(ctx, resourcePath("/arbitrary/resource/status", ref), query)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var status models.ResourceStatus
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &status, nil
}

// FetchResourceProperties re-requests resource properties.
//
// Calls GET /arbitrary/resource/properties/{service}/{name}/{identifier}; the body is discarded.
func (n *NodeService) FetchResourceProperties(ctx context.Context, ref models.ResourceRef) error {
	resp, err := n.api.Get(ctx, resourcePath("/arbitrary/resource/properties", ref), nil)
	if err != nil {
		return err
	}
	return resp.Err()
}

// FetchResourceURL resolves the node URL the resource is served from.
func (n *NodeService) FetchResourceURL(ctx context.Context, ref models.ResourceRef) (string, error) {
	status, err := n.FetchResourceStatus(ctx, ref)
	if err != nil {
		return "", err
	}
	if status.Status == models.NodeStatusNotPublished {
		return "", fmt.Errorf("%w: %s", shared.ErrResourceNotFound, ref)
	}
	return n.api.BaseURL() + resourcePath("/arbitrary", ref), nil
}

// Search lists resources.
//
// Calls GET /arbitrary/resources/search.
func (n *NodeService) Search(ctx context.Context, q models.SearchQuery) ([]models.ResourceSummary, error) {
	query := url.Values{}
	if q.Service != "" {
		query.Set("service", q.Service.String())
	}
	if q.Query != "" {
		query.Set("query", q.Query)
	}
	if q.Name != "" {
		query.Set("name", q.Name)
		query.Set("exactmatchnames", "true")
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		query.Set("offset", strconv.Itoa(q.Offset))
	}
	query.Set("reverse", strconv.FormatBool(q.Reverse))
	query.Set("includemetadata", strconv.FormatBool(q.IncludeMetadata))

	resp, err := n.api.Get(ctx, "/arbitrary/resources/search", query)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var results []models.ResourceSummary
	if err := json.Unmarshal(resp.Body, &results); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}
	return results, nil
}

// IsNotFound reports whether err means the resource does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, shared.ErrResourceNotFound) || errors.Is(err, shared.ErrPlaylistNotFound)
}
