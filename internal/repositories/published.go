package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/earbump/internal/models"
)

// PublishedRepository records resources published from this client.
type PublishedRepository struct {
	db *sql.DB
}

// NewPublishedRepository creates a new [PublishedRepository] with the given database connection
func NewPublishedRepository(db *sql.DB) *PublishedRepository {
	return &PublishedRepository{db: db}
}

// SavePublished inserts or refreshes a published resource.
func (r *PublishedRepository) SavePublished(ctx context.Context, res models.PublishedResource) error {
	if err := res.Ref.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO published_resources (identifier, name, service, title, published_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name, service, identifier) DO UPDATE SET title = excluded.title, published_at = excluded.published_at
	`

	_, err := r.db.ExecContext(ctx, query,
		res.Ref.Identifier, res.Ref.Name, res.Ref.Service.String(), res.Title, timestamp(res.PublishedAt))
	if err != nil {
		return fmt.Errorf("failed to record published resource: %w", err)
	}
	return nil
}

// ListPublished returns published resources of service, most recent first. An empty service lists everything.
func (r *PublishedRepository) ListPublished(ctx context.Context, service models.Service) ([]models.PublishedResource, error) {
	query := `
		SELECT identifier, name, service, title, published_at
		FROM published_resources
		WHERE (? = '' OR service = ?)
		ORDER BY published_at DESC, identifier
	`

	rows, err := r.db.QueryContext(ctx, query, service.String(), service.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list published resources: %w", err)
	}
	defer rows.Close()

	var resources []models.PublishedResource
	for rows.Next() {
		var (
			res models.PublishedResource
			svc string
		)
		if err := rows.Scan(&res.Ref.Identifier, &res.Ref.Name, &svc, &res.Title, &res.PublishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan published resource: %w", err)
		}
		res.Ref.Service = models.Service(svc)
		resources = append(resources, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating published resources: %w", err)
	}
	return resources, nil
}
