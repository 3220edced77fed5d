package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Role distinguishes the two account kinds the bot talks to.
type Role string

const (
	RoleParent  Role = "parent"
	RoleTeacher Role = "teacher"
)

// User is a parent or teacher account with its notification endpoints.
type User struct {
	ID                   uuid.UUID
	TelegramID           sql.NullInt64
	WhatsAppPhone        sql.NullString
	Name                 string
	Role                 Role
	PreferredLanguage    string // "en", "zh" or "ms"
	Timezone             string
	NotificationsEnabled bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Student links a child to the parent who receives their reminders.
type Student struct {
	ID        uuid.UUID
	Name      string
	ParentID  uuid.UUID
	CreatedAt time.Time
}
