// internal/app/fakes_test.go
//
// In-memory repository and channel fakes shared by the service tests.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homework_reminder_bot/internal/domain/delivery"
	"homework_reminder_bot/internal/domain/homework"
	"homework_reminder_bot/internal/domain/reminder"
	"homework_reminder_bot/internal/domain/user"

	"github.com/google/uuid"
)

var errDuplicateTier = errors.New("duplicate reminder tier")

func isDuplicateTier(err error) bool { return errors.Is(err, errDuplicateTier) }

type memHomeworkRepo struct {
	items map[uuid.UUID]*homework.Homework
	saved []*homework.OCRResult
}

func newMemHomeworkRepo() *memHomeworkRepo {
	return &memHomeworkRepo{items: make(map[uuid.UUID]*homework.Homework)}
}

func (r *memHomeworkRepo) add(hw *homework.Homework) *homework.Homework {
	if hw.ID == uuid.Nil {
		hw.ID = uuid.New()
	}
	r.items[hw.ID] = hw
	return hw
}

func (r *memHomeworkRepo) CreateWithResults(ctx context.Context, hw *homework.Homework, results []*homework.OCRResult) error {
	hw.ID = uuid.New()
	hw.CreatedAt = time.Now()
	r.items[hw.ID] = hw
	for _, res := range results {
		res.HomeworkID = uuid.NullUUID{UUID: hw.ID, Valid: true}
		r.saved = append(r.saved, res)
	}
	return nil
}

func (r *memHomeworkRepo) SaveResults(ctx context.Context, results []*homework.OCRResult) error {
	r.saved = append(r.saved, results...)
	return nil
}

func (r *memHomeworkRepo) GetByID(ctx context.Context, id uuid.UUID) (*homework.Homework, error) {
	hw, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("homework %s not found", id)
	}
	return hw, nil
}

func (r *memHomeworkRepo) ListByStudent(ctx context.Context, studentID uuid.UUID, status homework.Status) ([]*homework.Homework, error) {
	var out []*homework.Homework
	for _, hw := range r.items {
		if hw.StudentID != studentID {
			continue
		}
		if status != "" && hw.Status != status {
			continue
		}
		out = append(out, hw)
	}
	return out, nil
}

func (r *memHomeworkRepo) ListRemindable(ctx context.Context, from, to time.Time) ([]*homework.Homework, error) {
	var out []*homework.Homework
	for _, hw := range r.items {
		if hw.Status == homework.StatusCompleted || !hw.DueDate.Valid {
			continue
		}
		if hw.DueDate.Time.Before(from) || hw.DueDate.Time.After(to) {
			continue
		}
		out = append(out, hw)
	}
	return out, nil
}

func (r *memHomeworkRepo) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	hw, ok := r.items[id]
	if !ok {
		return fmt.Errorf("homework %s not found", id)
	}
	if hw.Status != homework.StatusCompleted {
		hw.Status = homework.StatusCompleted
		hw.CompletedAt.Time, hw.CompletedAt.Valid = at, true
	}
	return nil
}

func (r *memHomeworkRepo) MarkOverdue(ctx context.Context, id uuid.UUID) error {
	hw, ok := r.items[id]
	if !ok {
		return fmt.Errorf("homework %s not found", id)
	}
	if hw.Status == homework.StatusPending || hw.Status == homework.StatusInProgress {
		hw.Status = homework.StatusOverdue
	}
	return nil
}

func (r *memHomeworkRepo) ListResults(ctx context.Context, homeworkID uuid.UUID) ([]*homework.OCRResult, error) {
	var out []*homework.OCRResult
	for _, res := range r.saved {
		if res.HomeworkID.Valid && res.HomeworkID.UUID == homeworkID {
			out = append(out, res)
		}
	}
	return out, nil
}

type memReminderRepo struct {
	reminders []*reminder.Reminder
	// homework, when set, backs the completed-homework exclusion in
	// ListUnsent, mirroring the store's join.
	homework *memHomeworkRepo
}

func tierKeyOf(r *reminder.Reminder) string {
	return fmt.Sprintf("%s|%s|%s|%s", r.HomeworkID, r.UserID, r.Tier, r.TierKey)
}

func (r *memReminderRepo) Create(ctx context.Context, rem *reminder.Reminder) error {
	for _, existing := range r.reminders {
		if tierKeyOf(existing) == tierKeyOf(rem) {
			return errDuplicateTier
		}
	}
	rem.ID = uuid.New()
	rem.CreatedAt = time.Now()
	r.reminders = append(r.reminders, rem)
	return nil
}

func (r *memReminderRepo) ListUnsent(ctx context.Context, dueBy time.Time) ([]*reminder.Reminder, error) {
	var out []*reminder.Reminder
	for _, rem := range r.reminders {
		if rem.Sent || rem.RemindAt.After(dueBy) {
			continue
		}
		if r.homework != nil {
			if hw, ok := r.homework.items[rem.HomeworkID]; ok && hw.Status == homework.StatusCompleted {
				continue
			}
		}
		out = append(out, rem)
	}
	return out, nil
}

func (r *memReminderRepo) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	for _, rem := range r.reminders {
		if rem.ID == id {
			if rem.Sent {
				return errors.New("already sent")
			}
			rem.Sent = true
			rem.SentAt.Time, rem.SentAt.Valid = at, true
			return nil
		}
	}
	return fmt.Errorf("reminder %s not found", id)
}

func (r *memReminderRepo) GetByID(ctx context.Context, id uuid.UUID) (*reminder.Reminder, error) {
	for _, rem := range r.reminders {
		if rem.ID == id {
			return rem, nil
		}
	}
	return nil, fmt.Errorf("reminder %s not found", id)
}

func (r *memReminderRepo) sentCount() int {
	n := 0
	for _, rem := range r.reminders {
		if rem.Sent {
			n++
		}
	}
	return n
}

type memUserRepo struct {
	users    map[uuid.UUID]*user.User
	students map[uuid.UUID]*user.Student
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		users:    make(map[uuid.UUID]*user.User),
		students: make(map[uuid.UUID]*user.Student),
	}
}

func (r *memUserRepo) addParent(u *user.User) *user.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.users[u.ID] = u
	return u
}

func (r *memUserRepo) addStudent(s *user.Student) *user.Student {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.students[s.ID] = s
	return s
}

func (r *memUserRepo) Create(ctx context.Context, u *user.User) error {
	u.ID = uuid.New()
	r.users[u.ID] = u
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}
	return u, nil
}

func (r *memUserRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*user.User, error) {
	for _, u := range r.users {
		if u.TelegramID.Valid && u.TelegramID.Int64 == telegramID {
			return u, nil
		}
	}
	return nil, fmt.Errorf("telegram user %d not found", telegramID)
}

func (r *memUserRepo) CreateStudent(ctx context.Context, s *user.Student) error {
	s.ID = uuid.New()
	r.students[s.ID] = s
	return nil
}

func (r *memUserRepo) GetStudentByID(ctx context.Context, id uuid.UUID) (*user.Student, error) {
	s, ok := r.students[id]
	if !ok {
		return nil, fmt.Errorf("student %s not found", id)
	}
	return s, nil
}

func (r *memUserRepo) ListStudentsByParent(ctx context.Context, parentID uuid.UUID) ([]*user.Student, error) {
	var out []*user.Student
	for _, s := range r.students {
		if s.ParentID == parentID {
			out = append(out, s)
		}
	}
	return out, nil
}

type memDeliveryRepo struct {
	logs []*delivery.MessageLog
}

func (r *memDeliveryRepo) Create(ctx context.Context, msgLog *delivery.MessageLog) error {
	msgLog.ID = uuid.New()
	msgLog.CreatedAt = time.Now()
	r.logs = append(r.logs, msgLog)
	return nil
}

func (r *memDeliveryRepo) MarkSent(ctx context.Context, id uuid.UUID, externalID string, costUSD float64, at time.Time) error {
	for _, l := range r.logs {
		if l.ID == id {
			l.Status = delivery.StatusSent
			l.ExternalID.String, l.ExternalID.Valid = externalID, true
			l.CostUSD = costUSD
			l.SentAt.Time, l.SentAt.Valid = at, true
			return nil
		}
	}
	return fmt.Errorf("log %s not found", id)
}

func (r *memDeliveryRepo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	for _, l := range r.logs {
		if l.ID == id {
			l.Status = delivery.StatusFailed
			return nil
		}
	}
	return fmt.Errorf("log %s not found", id)
}

func (r *memDeliveryRepo) CountFailedForReminder(ctx context.Context, reminderID uuid.UUID) (int, error) {
	n := 0
	for _, l := range r.logs {
		if l.ReminderID.Valid && l.ReminderID.UUID == reminderID && l.Status == delivery.StatusFailed {
			n++
		}
	}
	return n, nil
}

func (r *memDeliveryRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*delivery.MessageLog, error) {
	var out []*delivery.MessageLog
	for _, l := range r.logs {
		if l.UserID.Valid && l.UserID.UUID == userID {
			out = append(out, l)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// scriptedSender delivers successfully after failing its first failFirst
// calls.
type scriptedSender struct {
	channel   delivery.Channel
	failFirst int
	calls     int
	delivered []string
}

func (s *scriptedSender) Channel() delivery.Channel { return s.channel }

func (s *scriptedSender) Deliver(ctx context.Context, recipient, content string) (delivery.Receipt, error) {
	s.calls++
	if s.calls <= s.failFirst {
		return delivery.Receipt{}, errors.New("transport down")
	}
	s.delivered = append(s.delivered, content)
	return delivery.Receipt{ExternalID: fmt.Sprintf("msg-%d", s.calls), CostUSD: 0.001}, nil
}
