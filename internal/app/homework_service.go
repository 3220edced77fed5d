// internal/app/homework_service.go
package app

import (
	"context"
	"log"
	"time"

	"homework_reminder_bot/internal/domain/homework"

	"github.com/google/uuid"
)

// Statistics summarizes one student's homework.
type Statistics struct {
	Total          int
	Completed      int
	Pending        int
	Overdue        int
	CompletionRate float64 // percent
}

// HomeworkService holds the operations the command layer calls directly.
type HomeworkService struct {
	homeworkRepo homework.Repository
	logger       *log.Logger
}

func NewHomeworkService(homeworkRepo homework.Repository, logger *log.Logger) *HomeworkService {
	return &HomeworkService{homeworkRepo: homeworkRepo, logger: logger}
}

// MarkComplete transitions a homework item to its terminal state and halts
// further reminder generation. Completing an already completed item is a
// no-op.
func (s *HomeworkService) MarkComplete(ctx context.Context, homeworkID uuid.UUID) error {
	if err := s.homeworkRepo.MarkCompleted(ctx, homeworkID, time.Now()); err != nil {
		return err
	}
	s.logger.Printf("INFO: homework %s marked completed", homeworkID)
	return nil
}

// ListByStudent returns a student's homework, optionally filtered by status
// (empty status means all).
func (s *HomeworkService) ListByStudent(ctx context.Context, studentID uuid.UUID, status homework.Status) ([]*homework.Homework, error) {
	return s.homeworkRepo.ListByStudent(ctx, studentID, status)
}

// Stats computes completion statistics for one student.
func (s *HomeworkService) Stats(ctx context.Context, studentID uuid.UUID) (Statistics, error) {
	all, err := s.homeworkRepo.ListByStudent(ctx, studentID, "")
	if err != nil {
		return Statistics{}, err
	}
	stats := Statistics{Total: len(all)}
	for _, hw := range all {
		switch hw.Status {
		case homework.StatusCompleted:
			stats.Completed++
		case homework.StatusPending, homework.StatusInProgress:
			stats.Pending++
		case homework.StatusOverdue:
			stats.Overdue++
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total) * 100
	}
	return stats, nil
}
