package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ChannelStore = (*ChannelStore)(nil)

// ChannelStore implements driven.ChannelStore using PostgreSQL
type ChannelStore struct {
	db *DB
}

// NewChannelStore creates a new ChannelStore
func NewChannelStore(db *DB) *ChannelStore {
	return &ChannelStore{db: db}
}

const channelColumns = `id, channel_id, resource_id, folder_id, webhook_url,
	expiration, status, created_at, updated_at`

// Activate deactivates the folder's other active channels and upserts channel
// in one transaction. A transaction-scoped advisory lock on the folder
// serialises concurrent activations, including a folder's first one where
// there are no rows yet to lock.
func (s *ChannelStore) Activate(ctx context.Context, channel *domain.WebhookChannel) (int, error) {
	var deactivated int64
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`,
			lockID("channel-folder:"+channel.FolderID)); err != nil {
			return fmt.Errorf("lock folder %s: %w", channel.FolderID, err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE webhook_channels
			SET status = $1, updated_at = NOW()
			WHERE folder_id = $2 AND status = $3 AND channel_id <> $4`,
			string(domain.ChannelStatusInactive), channel.FolderID,
			string(domain.ChannelStatusActive), channel.ChannelID)
		if err != nil {
			return fmt.Errorf("deactivate folder channels: %w", err)
		}
		if deactivated, err = result.RowsAffected(); err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO webhook_channels (`+channelColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (channel_id) DO UPDATE SET
				resource_id = EXCLUDED.resource_id,
				webhook_url = EXCLUDED.webhook_url,
				expiration = EXCLUDED.expiration,
				status = EXCLUDED.status,
				updated_at = EXCLUDED.updated_at`,
			channel.ID,
			channel.ChannelID,
			channel.ResourceID,
			channel.FolderID,
			channel.WebhookURL,
			channel.Expiration,
			string(channel.Status),
			channel.CreatedAt,
			channel.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert channel: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(deactivated), nil
}

// Get retrieves a channel by its channel id
func (s *ChannelStore) Get(ctx context.Context, channelID string) (*domain.WebhookChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM webhook_channels WHERE channel_id = $1`
	return s.getOne(ctx, query, channelID)
}

// GetActiveByFolder retrieves the newest active channel for a folder
func (s *ChannelStore) GetActiveByFolder(ctx context.Context, folderID string) (*domain.WebhookChannel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM webhook_channels
		WHERE folder_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.getOne(ctx, query, folderID, string(domain.ChannelStatusActive))
}

func (s *ChannelStore) getOne(ctx context.Context, query string, args ...any) (*domain.WebhookChannel, error) {
	channel, err := scanChannel(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query channel: %w", err)
	}
	return channel, nil
}

// ListActive retrieves all active channels
func (s *ChannelStore) ListActive(ctx context.Context) ([]*domain.WebhookChannel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM webhook_channels
		WHERE status = $1
		ORDER BY expiration ASC
	`
	return s.list(ctx, query, string(domain.ChannelStatusActive))
}

// ListExpiring retrieves active channels expiring at or before beforeMs
func (s *ChannelStore) ListExpiring(ctx context.Context, beforeMs int64) ([]*domain.WebhookChannel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM webhook_channels
		WHERE status = $1 AND expiration <= $2
		ORDER BY expiration ASC
	`
	return s.list(ctx, query, string(domain.ChannelStatusActive), beforeMs)
}

func (s *ChannelStore) list(ctx context.Context, query string, args ...any) ([]*domain.WebhookChannel, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var channels []*domain.WebhookChannel
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, channel)
	}
	return channels, rows.Err()
}

// Deactivate marks one channel inactive
func (s *ChannelStore) Deactivate(ctx context.Context, channelID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE webhook_channels SET status = $1, updated_at = NOW()
		WHERE channel_id = $2`,
		string(domain.ChannelStatusInactive), channelID)
	if err != nil {
		return fmt.Errorf("deactivate channel: %w", err)
	}
	return requireRow(result)
}

// Delete removes a channel record
func (s *ChannelStore) Delete(ctx context.Context, channelID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM webhook_channels WHERE channel_id = $1`, channelID)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return requireRow(result)
}

// requireRow maps a zero-row update to domain.ErrNotFound
func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanChannel(row rowScanner) (*domain.WebhookChannel, error) {
	var c domain.WebhookChannel
	var status string
	err := row.Scan(
		&c.ID,
		&c.ChannelID,
		&c.ResourceID,
		&c.FolderID,
		&c.WebhookURL,
		&c.Expiration,
		&status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = domain.ChannelStatus(status)
	return &c, nil
}
