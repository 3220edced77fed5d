// internal/infra/database/postgres_homework_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"homework_reminder_bot/internal/domain/homework"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrHomeworkNotFound = fmt.Errorf("homework not found")

type PostgresHomeworkRepository struct {
	db *sql.DB
}

func NewPostgresHomeworkRepository(db *sql.DB) *PostgresHomeworkRepository {
	return &PostgresHomeworkRepository{db: db}
}

// CreateWithResults persists the homework row and all of its OCR evidence in
// one transaction so they appear together or not at all.
func (r *PostgresHomeworkRepository) CreateWithResults(ctx context.Context, hw *homework.Homework, results []*homework.OCRResult) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for homework create: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	query := `INSERT INTO homework
               (student_id, teacher_id, subject, title, description, raw_text, due_date, status, priority,
                image_urls, ai_enhanced, ai_summary, ai_keywords)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
               RETURNING id, created_at, updated_at`
	err = txn.QueryRowContext(ctx, query,
		hw.StudentID, hw.TeacherID, hw.Subject, hw.Title, hw.Description, hw.RawText,
		hw.DueDate, hw.Status, hw.Priority, pq.Array(hw.ImageURLs), hw.AIEnhanced,
		hw.AISummary, pq.Array(hw.AIKeywords),
	).Scan(&hw.ID, &hw.CreatedAt, &hw.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating homework: %w", err)
	}

	stmt, err := txn.PrepareContext(ctx, ocrResultInsert)
	if err != nil {
		return fmt.Errorf("failed to prepare OCR result insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range results {
		res.HomeworkID = uuid.NullUUID{UUID: hw.ID, Valid: true}
		if err := insertOCRResult(ctx, stmt, res); err != nil {
			return err
		}
	}

	return txn.Commit()
}

const ocrResultInsert = `INSERT INTO ocr_results
               (homework_id, image_path, extracted_text, confidence, language, engine, processing_time_ms)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               RETURNING id, created_at`

func insertOCRResult(ctx context.Context, stmt *sql.Stmt, res *homework.OCRResult) error {
	err := stmt.QueryRowContext(ctx,
		res.HomeworkID, res.ImagePath, res.ExtractedText, res.Confidence,
		res.Language, res.Engine, res.ProcessingTime.Milliseconds(),
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting OCR result (engine %s, image %s): %w", res.Engine, res.ImagePath, err)
	}
	return nil
}

// SaveResults persists audit rows for a failed extraction; there is no
// homework row to attach them to.
func (r *PostgresHomeworkRepository) SaveResults(ctx context.Context, results []*homework.OCRResult) error {
	if len(results) == 0 {
		return nil
	}
	stmt, err := r.db.PrepareContext(ctx, ocrResultInsert)
	if err != nil {
		return fmt.Errorf("failed to prepare OCR result insert: %w", err)
	}
	defer stmt.Close()
	for _, res := range results {
		if err := insertOCRResult(ctx, stmt, res); err != nil {
			return err
		}
	}
	return nil
}

const homeworkColumns = `id, student_id, teacher_id, subject, title, description, raw_text, due_date,
               status, priority, image_urls, ai_enhanced, ai_summary, ai_keywords,
               created_at, updated_at, completed_at`

func scanHomework(scanner interface{ Scan(...any) error }) (*homework.Homework, error) {
	hw := homework.Homework{}
	err := scanner.Scan(
		&hw.ID, &hw.StudentID, &hw.TeacherID, &hw.Subject, &hw.Title, &hw.Description,
		&hw.RawText, &hw.DueDate, &hw.Status, &hw.Priority, pq.Array(&hw.ImageURLs),
		&hw.AIEnhanced, &hw.AISummary, pq.Array(&hw.AIKeywords),
		&hw.CreatedAt, &hw.UpdatedAt, &hw.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &hw, nil
}

func (r *PostgresHomeworkRepository) GetByID(ctx context.Context, id uuid.UUID) (*homework.Homework, error) {
	query := `SELECT ` + homeworkColumns + ` FROM homework WHERE id = $1`
	hw, err := scanHomework(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrHomeworkNotFound
		}
		return nil, fmt.Errorf("error getting homework by ID: %w", err)
	}
	return hw, nil
}

func (r *PostgresHomeworkRepository) ListByStudent(ctx context.Context, studentID uuid.UUID, status homework.Status) ([]*homework.Homework, error) {
	query := `SELECT ` + homeworkColumns + ` FROM homework WHERE student_id = $1`
	args := []any{studentID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY due_date NULLS LAST`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying homework by student: %w", err)
	}
	defer rows.Close()
	return collectHomework(rows)
}

func (r *PostgresHomeworkRepository) ListRemindable(ctx context.Context, from, to time.Time) ([]*homework.Homework, error) {
	query := `SELECT ` + homeworkColumns + ` FROM homework
               WHERE status != $1 AND due_date IS NOT NULL AND due_date BETWEEN $2 AND $3
               ORDER BY due_date ASC`
	rows, err := r.db.QueryContext(ctx, query, homework.StatusCompleted, from, to)
	if err != nil {
		return nil, fmt.Errorf("error querying remindable homework: %w", err)
	}
	defer rows.Close()
	return collectHomework(rows)
}

func collectHomework(rows *sql.Rows) ([]*homework.Homework, error) {
	items := make([]*homework.Homework, 0)
	for rows.Next() {
		hw, err := scanHomework(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning homework row: %w", err)
		}
		items = append(items, hw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating homework rows: %w", err)
	}
	return items, nil
}

// MarkCompleted is idempotent: the status guard keeps completed_at from
// being rewritten on a second call.
func (r *PostgresHomeworkRepository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE homework
               SET status = $1, completed_at = $2, updated_at = NOW()
               WHERE id = $3 AND status != $1`
	res, err := r.db.ExecContext(ctx, query, homework.StatusCompleted, at, id)
	if err != nil {
		return fmt.Errorf("error marking homework completed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Already completed or missing; distinguish for the caller.
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM homework WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("error verifying homework existence: %w", err)
		}
		if !exists {
			return ErrHomeworkNotFound
		}
	}
	return nil
}

func (r *PostgresHomeworkRepository) MarkOverdue(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE homework
               SET status = $1, updated_at = NOW()
               WHERE id = $2 AND status IN ($3, $4)`
	_, err := r.db.ExecContext(ctx, query, homework.StatusOverdue, id, homework.StatusPending, homework.StatusInProgress)
	if err != nil {
		return fmt.Errorf("error marking homework overdue: %w", err)
	}
	return nil
}

func (r *PostgresHomeworkRepository) ListResults(ctx context.Context, homeworkID uuid.UUID) ([]*homework.OCRResult, error) {
	query := `SELECT id, homework_id, image_path, extracted_text, confidence, language, engine, processing_time_ms, created_at
               FROM ocr_results WHERE homework_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, homeworkID)
	if err != nil {
		return nil, fmt.Errorf("error querying OCR results: %w", err)
	}
	defer rows.Close()

	results := make([]*homework.OCRResult, 0)
	for rows.Next() {
		res := homework.OCRResult{}
		var ms int64
		if err := rows.Scan(
			&res.ID, &res.HomeworkID, &res.ImagePath, &res.ExtractedText,
			&res.Confidence, &res.Language, &res.Engine, &ms, &res.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning OCR result row: %w", err)
		}
		res.ProcessingTime = time.Duration(ms) * time.Millisecond
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating OCR result rows: %w", err)
	}
	return results, nil
}
