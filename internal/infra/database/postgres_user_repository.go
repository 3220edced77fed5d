// internal/infra/database/postgres_user_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"homework_reminder_bot/internal/domain/user"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrStudentNotFound = errors.New("student not found")
)

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	query := `INSERT INTO users (telegram_id, whatsapp_phone, name, role, preferred_language, timezone, notifications_enabled)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		u.TelegramID, u.WhatsAppPhone, u.Name, u.Role,
		u.PreferredLanguage, u.Timezone, u.NotificationsEnabled,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

const userColumns = `id, telegram_id, whatsapp_phone, name, role, preferred_language, timezone,
               notifications_enabled, created_at, updated_at`

func scanUser(scanner interface{ Scan(...any) error }) (*user.User, error) {
	u := user.User{}
	err := scanner.Scan(
		&u.ID, &u.TelegramID, &u.WhatsAppPhone, &u.Name, &u.Role,
		&u.PreferredLanguage, &u.Timezone, &u.NotificationsEnabled,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by ID: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by telegram ID: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) CreateStudent(ctx context.Context, s *user.Student) error {
	query := `INSERT INTO students (name, parent_id) VALUES ($1, $2) RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, s.Name, s.ParentID).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating student: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetStudentByID(ctx context.Context, id uuid.UUID) (*user.Student, error) {
	query := `SELECT id, name, parent_id, created_at FROM students WHERE id = $1`
	s := user.Student{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Name, &s.ParentID, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("error getting student by ID: %w", err)
	}
	return &s, nil
}

func (r *PostgresUserRepository) ListStudentsByParent(ctx context.Context, parentID uuid.UUID) ([]*user.Student, error) {
	query := `SELECT id, name, parent_id, created_at FROM students WHERE parent_id = $1 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("error querying students by parent: %w", err)
	}
	defer rows.Close()

	students := make([]*user.Student, 0)
	for rows.Next() {
		s := user.Student{}
		if err := rows.Scan(&s.ID, &s.Name, &s.ParentID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning student row: %w", err)
		}
		students = append(students, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating student rows: %w", err)
	}
	return students, nil
}
