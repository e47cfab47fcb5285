package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// WebhookMapping associates an Asana resource and its webhook subscription
// with the Slack channel that receives its notifications.
type WebhookMapping struct {
	ResourceID  string
	WebhookID   string
	RoomID      string
	CreatedBy   string // Slack user who registered the webhook
	CreatedAt   time.Time
	AutoCreated bool
}

// PutMapping inserts or replaces the canonical mapping for a resource.
func (s *Store) PutMapping(ctx context.Context, m WebhookMapping) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_mappings (resource_id, webhook_id, room_id, created_by, created_at, auto_created)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(resource_id) DO UPDATE SET
			webhook_id = excluded.webhook_id,
			room_id = excluded.room_id,
			created_by = excluded.created_by,
			created_at = excluded.created_at,
			auto_created = excluded.auto_created;`,
		m.ResourceID, m.WebhookID, m.RoomID, m.CreatedBy, m.CreatedAt, m.AutoCreated)
	return err
}

// MappingByResourceID returns the mapping for a resource, or nil when none
// is registered.
func (s *Store) MappingByResourceID(ctx context.Context, resourceID string) (*WebhookMapping, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT resource_id, webhook_id, room_id, created_by, created_at, auto_created
		FROM webhook_mappings WHERE resource_id = ?;`, resourceID)
	return scanMapping(row)
}

// MappingByWebhookID returns the mapping owned by a webhook subscription, or
// nil when none is registered.
func (s *Store) MappingByWebhookID(ctx context.Context, webhookID string) (*WebhookMapping, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT resource_id, webhook_id, room_id, created_by, created_at, auto_created
		FROM webhook_mappings WHERE webhook_id = ? LIMIT 1;`, webhookID)
	return scanMapping(row)
}

// DeleteMappingByWebhookID removes the bookkeeping for a deleted webhook.
func (s *Store) DeleteMappingByWebhookID(ctx context.Context, webhookID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM webhook_mappings WHERE webhook_id = ?;`, webhookID)
	return err
}

// ListMappings returns all registered mappings ordered by creation time.
func (s *Store) ListMappings(ctx context.Context) ([]WebhookMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT resource_id, webhook_id, room_id, created_by, created_at, auto_created
		FROM webhook_mappings ORDER BY created_at;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var mappings []WebhookMapping
	for rows.Next() {
		var m WebhookMapping
		if err := rows.Scan(&m.ResourceID, &m.WebhookID, &m.RoomID, &m.CreatedBy, &m.CreatedAt, &m.AutoCreated); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

func scanMapping(row *sql.Row) (*WebhookMapping, error) {
	var m WebhookMapping
	err := row.Scan(&m.ResourceID, &m.WebhookID, &m.RoomID, &m.CreatedBy, &m.CreatedAt, &m.AutoCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
