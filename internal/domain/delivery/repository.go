package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for message logs.
type Repository interface {
	Create(ctx context.Context, log *MessageLog) error

	// MarkSent records the provider acknowledgment on a pending log row.
	MarkSent(ctx context.Context, id uuid.UUID, externalID string, costUSD float64, at time.Time) error

	// MarkFailed closes a pending log row as failed. The row is never
	// reopened; a retry creates a fresh row.
	MarkFailed(ctx context.Context, id uuid.UUID) error

	// CountFailedForReminder returns how many failed send attempts exist
	// for one reminder, used to enforce the per-tier retry cap.
	CountFailedForReminder(ctx context.Context, reminderID uuid.UUID) (int, error)

	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*MessageLog, error)
}
