package homework

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status tracks where a homework item sits in its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusOverdue    Status = "overdue"
)

const (
	MinPriority = 1
	MaxPriority = 5
)

// Homework is the aggregate root for one extracted assignment. OCRResult rows
// are owned by it and live or die with it.
type Homework struct {
	ID          uuid.UUID
	StudentID   uuid.UUID
	TeacherID   uuid.NullUUID // unset when a parent submitted the photo
	Subject     string
	Title       string
	Description string
	RawText     string
	DueDate     sql.NullTime
	Status      Status
	Priority    int // 1..5, 5 = most urgent
	ImageURLs   []string
	AIEnhanced  bool
	AISummary   sql.NullString
	AIKeywords  []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt sql.NullTime
}

// ClampPriority forces a priority estimate into the valid 1..5 range.
func ClampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

// CanTransitionTo reports whether a status change is legal. Completed is
// terminal; overdue may be entered from any non-completed state.
func (s Status) CanTransitionTo(next Status) bool {
	if s == StatusCompleted {
		return false
	}
	switch next {
	case StatusInProgress:
		return s == StatusPending
	case StatusCompleted:
		return true
	case StatusOverdue:
		return s != StatusOverdue
	default:
		return false
	}
}

// IsOpen reports whether the item still needs reminders.
func (s Status) IsOpen() bool {
	return s != StatusCompleted
}
