package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for reminders. The duplicate-tier check is
// the store's job: Create must be atomic with respect to concurrent
// scheduler runs.
type Repository interface {
	// Create inserts a new unsent reminder. Returns the repository's
	// duplicate-tier error when a reminder for the same (homework, user,
	// tier, tier key) already exists, sent or not.
	Create(ctx context.Context, r *Reminder) error

	// ListUnsent returns unsent reminders scheduled at or before the given
	// time, ordered by the owning homework's due date ascending. Reminders
	// whose homework has since been completed are excluded: nobody gets
	// messaged about finished work.
	ListUnsent(ctx context.Context, dueBy time.Time) ([]*Reminder, error)

	// MarkSent flips the sent flag using the flag itself as a
	// compare-and-set guard. Returns the repository's already-sent error
	// when another dispatch won the race.
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error

	GetByID(ctx context.Context, id uuid.UUID) (*Reminder, error)
}
