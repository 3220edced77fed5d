// internal/infra/database/postgres_reminder_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"homework_reminder_bot/internal/domain/reminder"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrReminderNotFound = errors.New("reminder not found")
	// ErrDuplicateReminderTier signals the unique index on
	// (homework_id, user_id, tier, tier_key) rejected the insert. The
	// scheduler treats it as "already scheduled", not a failure.
	ErrDuplicateReminderTier = errors.New("reminder tier already scheduled")
	// ErrReminderAlreadySent means the compare-and-set on the sent flag lost
	// to a concurrent dispatch.
	ErrReminderAlreadySent = errors.New("reminder already sent")
)

const pqUniqueViolation = "23505"

type PostgresReminderRepository struct {
	db *sql.DB
}

func NewPostgresReminderRepository(db *sql.DB) *PostgresReminderRepository {
	return &PostgresReminderRepository{db: db}
}

func (r *PostgresReminderRepository) Create(ctx context.Context, rem *reminder.Reminder) error {
	query := `INSERT INTO reminders (homework_id, user_id, tier, tier_key, remind_at, message, sent)
               VALUES ($1, $2, $3, $4, $5, $6, FALSE)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		rem.HomeworkID, rem.UserID, rem.Tier, rem.TierKey, rem.RemindAt, rem.Message,
	).Scan(&rem.ID, &rem.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrDuplicateReminderTier
		}
		return fmt.Errorf("error creating reminder: %w", err)
	}
	return nil
}

const reminderColumns = `r.id, r.homework_id, r.user_id, r.tier, r.tier_key, r.remind_at,
               r.message, r.sent, r.sent_at, r.created_at`

func scanReminder(scanner interface{ Scan(...any) error }) (*reminder.Reminder, error) {
	rem := reminder.Reminder{}
	err := scanner.Scan(
		&rem.ID, &rem.HomeworkID, &rem.UserID, &rem.Tier, &rem.TierKey,
		&rem.RemindAt, &rem.Message, &rem.Sent, &rem.SentAt, &rem.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rem, nil
}

// ListUnsent orders by the owning homework's due date so the most urgent
// items go out first within a tick. Homework completed after the reminder
// was created drops out of the result.
func (r *PostgresReminderRepository) ListUnsent(ctx context.Context, dueBy time.Time) ([]*reminder.Reminder, error) {
	query := `SELECT ` + reminderColumns + `
               FROM reminders r
               JOIN homework h ON h.id = r.homework_id
               WHERE r.sent = FALSE AND r.remind_at <= $1 AND h.status != 'completed'
               ORDER BY h.due_date ASC NULLS LAST, r.created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, dueBy)
	if err != nil {
		return nil, fmt.Errorf("error querying unsent reminders: %w", err)
	}
	defer rows.Close()

	reminders := make([]*reminder.Reminder, 0)
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning reminder row: %w", err)
		}
		reminders = append(reminders, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminder rows: %w", err)
	}
	return reminders, nil
}

func (r *PostgresReminderRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE reminders SET sent = TRUE, sent_at = $1 WHERE id = $2 AND sent = FALSE`
	res, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("error marking reminder sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM reminders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("error verifying reminder existence: %w", err)
		}
		if !exists {
			return ErrReminderNotFound
		}
		return ErrReminderAlreadySent
	}
	return nil
}

func (r *PostgresReminderRepository) GetByID(ctx context.Context, id uuid.UUID) (*reminder.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders r WHERE r.id = $1`
	rem, err := scanReminder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("error getting reminder by ID: %w", err)
	}
	return rem, nil
}
