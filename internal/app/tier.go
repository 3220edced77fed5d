// internal/app/tier.go
package app

import (
	"fmt"
	"time"

	"homework_reminder_bot/internal/domain/homework"
	"homework_reminder_bot/internal/domain/reminder"
)

// TierFor computes the escalation tier applicable to a homework item at a
// given instant. It is a pure function of wall-clock time, due date and
// status, so the scheduler's transition rules are testable without a store
// or a channel.
//
// The tier key distinguishes re-fires of the daily overdue tier; it is empty
// for the one-shot tiers.
func TierFor(now, dueDate time.Time, status homework.Status) (reminder.Tier, string, bool) {
	if status == homework.StatusCompleted || dueDate.IsZero() {
		return "", "", false
	}
	switch {
	case now.Before(dueDate.Add(-24 * time.Hour)):
		return "", "", false
	case now.Before(dueDate):
		return reminder.TierDayBefore, "", true
	case now.Before(dueDate.Add(24 * time.Hour)):
		return reminder.TierDueDay, "", true
	default:
		days := int(now.Sub(dueDate).Hours() / 24)
		return reminder.TierOverdueDaily, fmt.Sprintf("day-%d", days), true
	}
}
