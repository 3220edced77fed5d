// internal/infra/database/postgres_message_log_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"homework_reminder_bot/internal/domain/delivery"

	"github.com/google/uuid"
)

type PostgresMessageLogRepository struct {
	db *sql.DB
}

func NewPostgresMessageLogRepository(db *sql.DB) *PostgresMessageLogRepository {
	return &PostgresMessageLogRepository{db: db}
}

func (r *PostgresMessageLogRepository) Create(ctx context.Context, msgLog *delivery.MessageLog) error {
	query := `INSERT INTO message_logs (user_id, reminder_id, channel, message_type, recipient, content, status, cost_usd)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		msgLog.UserID, msgLog.ReminderID, msgLog.Channel, msgLog.MessageType,
		msgLog.Recipient, msgLog.Content, msgLog.Status, msgLog.CostUSD,
	).Scan(&msgLog.ID, &msgLog.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating message log: %w", err)
	}
	return nil
}

func (r *PostgresMessageLogRepository) MarkSent(ctx context.Context, id uuid.UUID, externalID string, costUSD float64, at time.Time) error {
	query := `UPDATE message_logs
               SET status = $1, external_id = $2, cost_usd = $3, sent_at = $4
               WHERE id = $5 AND status = $6`
	_, err := r.db.ExecContext(ctx, query, delivery.StatusSent, externalID, costUSD, at, id, delivery.StatusPending)
	if err != nil {
		return fmt.Errorf("error marking message log sent: %w", err)
	}
	return nil
}

func (r *PostgresMessageLogRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE message_logs SET status = $1 WHERE id = $2 AND status = $3`
	_, err := r.db.ExecContext(ctx, query, delivery.StatusFailed, id, delivery.StatusPending)
	if err != nil {
		return fmt.Errorf("error marking message log failed: %w", err)
	}
	return nil
}

func (r *PostgresMessageLogRepository) CountFailedForReminder(ctx context.Context, reminderID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM message_logs WHERE reminder_id = $1 AND status = $2`
	var count int
	if err := r.db.QueryRowContext(ctx, query, reminderID, delivery.StatusFailed).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting failed attempts: %w", err)
	}
	return count, nil
}

func (r *PostgresMessageLogRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*delivery.MessageLog, error) {
	query := `SELECT id, user_id, reminder_id, channel, message_type, recipient, content, status, external_id, cost_usd, sent_at, created_at
               FROM message_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying message logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*delivery.MessageLog, 0)
	for rows.Next() {
		msgLog := delivery.MessageLog{}
		if err := rows.Scan(
			&msgLog.ID, &msgLog.UserID, &msgLog.ReminderID, &msgLog.Channel,
			&msgLog.MessageType, &msgLog.Recipient, &msgLog.Content, &msgLog.Status,
			&msgLog.ExternalID, &msgLog.CostUSD, &msgLog.SentAt, &msgLog.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning message log row: %w", err)
		}
		logs = append(logs, &msgLog)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message log rows: %w", err)
	}
	return logs, nil
}
