package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for users and students.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)

	CreateStudent(ctx context.Context, s *Student) error
	GetStudentByID(ctx context.Context, id uuid.UUID) (*Student, error)
	ListStudentsByParent(ctx context.Context, parentID uuid.UUID) ([]*Student, error)
}
