package delivery

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Channel identifies a notification transport.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWhatsApp Channel = "whatsapp"
)

// Status is the delivery state of a single send attempt. Transitions are
// pending -> sent or pending -> failed only; a failed attempt is retried by
// creating a new log row, never by mutating the failed one.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// MessageLog is the audit record for one attempted notification. It outlives
// the homework and reminder it was produced for, and keeps a nullable user
// reference so cost accounting survives user removal.
type MessageLog struct {
	ID          uuid.UUID
	UserID      uuid.NullUUID
	ReminderID  uuid.NullUUID
	Channel     Channel
	MessageType string
	Recipient   string
	Content     string
	Status      Status
	ExternalID  sql.NullString
	CostUSD     float64
	SentAt      sql.NullTime
	CreatedAt   time.Time
}
