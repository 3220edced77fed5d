// internal/app/messages.go
package app

import (
	"fmt"
	"time"

	"homework_reminder_bot/internal/domain/homework"
	"homework_reminder_bot/internal/domain/reminder"
)

// RenderReminder produces the notification text for one tier in the
// recipient's preferred language. Unknown languages fall back to English.
func RenderReminder(tier reminder.Tier, hw *homework.Homework, language string, now time.Time) string {
	due := hw.DueDate.Time
	switch tier {
	case reminder.TierDayBefore:
		switch language {
		case "zh":
			return fmt.Sprintf("⏰ 明天截止：%s（%s）", hw.Title, hw.Subject)
		case "ms":
			return fmt.Sprintf("⏰ Esok tarikh akhir: %s (%s)", hw.Title, hw.Subject)
		default:
			return fmt.Sprintf("⏰ Tomorrow's deadline: %s (%s)", hw.Title, hw.Subject)
		}
	case reminder.TierDueDay:
		switch language {
		case "zh":
			return fmt.Sprintf("🔔 今天截止：%s（%s）", hw.Title, hw.Subject)
		case "ms":
			return fmt.Sprintf("🔔 Perlu dihantar hari ini: %s (%s)", hw.Title, hw.Subject)
		default:
			return fmt.Sprintf("🔔 Due today: %s (%s)", hw.Title, hw.Subject)
		}
	default:
		daysLate := int(now.Sub(due).Hours() / 24)
		if daysLate < 1 {
			daysLate = 1
		}
		switch language {
		case "zh":
			return fmt.Sprintf("❗ 作业已逾期 %d 天：%s（%s），截止日期 %s", daysLate, hw.Title, hw.Subject, due.Format("1月2日"))
		case "ms":
			return fmt.Sprintf("❗ Lewat %d hari: %s (%s), tarikh akhir %s", daysLate, hw.Title, hw.Subject, due.Format("2 Jan"))
		default:
			return fmt.Sprintf("❗ Overdue by %d day(s): %s (%s), was due %s", daysLate, hw.Title, hw.Subject, due.Format("2 Jan"))
		}
	}
}
