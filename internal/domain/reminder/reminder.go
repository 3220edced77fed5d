package reminder

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Tier names an escalation stage of the reminder state machine.
type Tier string

const (
	// TierDayBefore fires once when the due date is less than a day away.
	TierDayBefore Tier = "REMINDER_1D"
	// TierDueDay fires once on the due day itself.
	TierDueDay Tier = "REMINDER_DUE"
	// TierOverdueDaily re-fires every day past the due date until the
	// homework is completed.
	TierOverdueDaily Tier = "OVERDUE_DAILY"
)

// Reminder is one scheduled notification for one homework item and one
// recipient. At most one reminder may exist per (homework, recipient, tier,
// tier key); the daily overdue tier distinguishes its re-fires by TierKey.
type Reminder struct {
	ID         uuid.UUID
	HomeworkID uuid.UUID
	UserID     uuid.UUID
	Tier       Tier
	TierKey    string // "" for one-shot tiers, "day-N" for overdue re-fires
	RemindAt   time.Time
	Message    string
	Sent       bool
	SentAt     sql.NullTime
	CreatedAt  time.Time
}
