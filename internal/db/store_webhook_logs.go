package db

import (
	"context"
	"fmt"
	"time"

	"github.com/sellforge/sellforge/internal/models"
)

// CreateWebhookLog records an inbound provider event.
func (db *DB) CreateWebhookLog(ctx context.Context, l *models.WebhookLog) error {
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO webhook_logs (event_type, event_id, payload, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, l.EventType, l.EventID, l.Payload, string(l.Status), l.ErrorMessage, l.CreatedAt,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("create webhook log: %w", err)
	}
	return nil
}

// UpdateWebhookLogStatus transitions a webhook log's status, recording an
// error message for failed deliveries.
func (db *DB) UpdateWebhookLogStatus(ctx context.Context, id int64, status models.WebhookLogStatus, errorMessage string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE webhook_logs SET status = $2, error_message = $3 WHERE id = $1
	`, id, string(status), errorMessage)
	if err != nil {
		return fmt.Errorf("update webhook log status: %w", err)
	}
	return nil
}

// ListUnresolvedWebhookLogs returns failed deliveries, plus deliveries
// stuck in the received state longer than stuckAfter. The reconciler
// replays these to repair partial fulfillment.
func (db *DB) ListUnresolvedWebhookLogs(ctx context.Context, stuckAfter time.Duration, limit int) ([]*models.WebhookLog, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, event_type, event_id, payload, status, error_message, created_at
		FROM webhook_logs
		WHERE status = 'failed'
		   OR (status = 'received' AND created_at < $1)
		ORDER BY created_at
		LIMIT $2
	`, time.Now().Add(-stuckAfter), limit)
	if err != nil {
		return nil, fmt.Errorf("list unresolved webhook logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.WebhookLog
	for rows.Next() {
		var l models.WebhookLog
		var statusStr string
		err := rows.Scan(&l.ID, &l.EventType, &l.EventID, &l.Payload, &statusStr, &l.ErrorMessage, &l.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan webhook log: %w", err)
		}
		l.Status = models.WebhookLogStatus(statusStr)
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
