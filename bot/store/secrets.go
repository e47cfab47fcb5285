package store

import (
	"context"
	"time"
)

// secretsPerScope bounds how many secrets are retained per webhook scope.
// Keeping the previous secret tolerates the rotation window where Asana may
// still sign deliveries with the old value.
const secretsPerScope = 2

// PutSecret records a handshake secret. webhookID may be empty when the
// delivery did not identify its webhook. Older secrets beyond the retention
// bound are removed in the same transaction.
func (s *Store) PutSecret(ctx context.Context, webhookID, secret string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO webhook_secrets (webhook_id, secret, created_at) VALUES (?, ?, ?);`,
		webhookID, secret, now); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM webhook_secrets
		WHERE webhook_id = ? AND id NOT IN (
			SELECT id FROM webhook_secrets WHERE webhook_id = ?
			ORDER BY id DESC LIMIT ?
		);`, webhookID, webhookID, secretsPerScope); err != nil {
		return err
	}

	return tx.Commit()
}

// SecretCandidates returns every secret an inbound delivery could be signed
// with: secrets scoped to the delivery's webhook first, then unscoped ones,
// newest first within each group.
func (s *Store) SecretCandidates(ctx context.Context, webhookID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT secret FROM webhook_secrets
		WHERE webhook_id = ? OR webhook_id = ''
		ORDER BY (webhook_id = ?) DESC, id DESC;`, webhookID, webhookID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var secrets []string
	for rows.Next() {
		var secret string
		if err := rows.Scan(&secret); err != nil {
			return nil, err
		}
		secrets = append(secrets, secret)
	}
	return secrets, rows.Err()
}
