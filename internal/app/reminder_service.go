// internal/app/reminder_service.go
package app

import (
	"context"
	"errors"
	"log"
	"time"

	"homework_reminder_bot/internal/domain/delivery"
	"homework_reminder_bot/internal/domain/homework"
	"homework_reminder_bot/internal/domain/reminder"
	"homework_reminder_bot/internal/domain/user"
)

// ReminderProcessor is what the cron driver calls on every tick.
type ReminderProcessor interface {
	ProcessTick(ctx context.Context) error
	// SweepOverdue flips past-due homework to overdue without sending
	// anything, so statuses are fresh before the first tick of the day.
	SweepOverdue(ctx context.Context) error
}

// SchedulerConfig carries the tunables of the tick loop.
type SchedulerConfig struct {
	// Lookback bounds how far past the due date the scan reaches; overdue
	// escalation stops silently for items older than this.
	Lookback time.Duration
	// Lookahead bounds how early reminders can be considered. It only
	// needs to cover the earliest tier.
	Lookahead time.Duration
	// MaxSendAttempts caps failed delivery retries per reminder; after
	// exhaustion the tier is abandoned.
	MaxSendAttempts int
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Lookback:        14 * 24 * time.Hour,
		Lookahead:       36 * time.Hour,
		MaxSendAttempts: 3,
	}
}

// ReminderService derives due reminders from homework state on every tick
// and hands them to the dispatcher. Ticks are idempotent: the store's
// duplicate-tier guarantee makes re-running a tick a no-op.
type ReminderService struct {
	homeworkRepo homework.Repository
	reminderRepo reminder.Repository
	userRepo     user.Repository
	deliveryRepo delivery.Repository
	dispatcher   Dispatcher
	isDuplicate  func(error) bool
	cfg          SchedulerConfig
	now          func() time.Time
	logger       *log.Logger
}

func NewReminderService(
	homeworkRepo homework.Repository,
	reminderRepo reminder.Repository,
	userRepo user.Repository,
	deliveryRepo delivery.Repository,
	dispatcher Dispatcher,
	isDuplicate func(error) bool,
	cfg SchedulerConfig,
	logger *log.Logger,
) *ReminderService {
	return &ReminderService{
		homeworkRepo: homeworkRepo,
		reminderRepo: reminderRepo,
		userRepo:     userRepo,
		deliveryRepo: deliveryRepo,
		dispatcher:   dispatcher,
		isDuplicate:  isDuplicate,
		cfg:          cfg,
		now:          time.Now,
		logger:       logger,
	}
}

// WithClock overrides the time source. Tests only.
func (s *ReminderService) WithClock(now func() time.Time) *ReminderService {
	s.now = now
	return s
}

// ProcessTick is the scheduler entry point: derive reminders for every
// non-completed homework in the window, then dispatch everything unsent.
// Each item is processed in isolation; one failure never blocks the batch.
func (s *ReminderService) ProcessTick(ctx context.Context) error {
	now := s.now()
	items, err := s.homeworkRepo.ListRemindable(ctx, now.Add(-s.cfg.Lookback), now.Add(s.cfg.Lookahead))
	if err != nil {
		return err
	}
	s.logger.Printf("INFO: reminder tick at %s, %d homework items in window", now.Format(time.RFC3339), len(items))

	for _, hw := range items {
		if err := s.deriveReminder(ctx, hw, now); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Printf("ERROR: deriving reminder for homework %s: %v", hw.ID, err)
		}
	}

	return s.dispatchUnsent(ctx, now)
}

// deriveReminder applies the tier state machine to one homework item,
// creating at most one new unsent reminder.
func (s *ReminderService) deriveReminder(ctx context.Context, hw *homework.Homework, now time.Time) error {
	if !hw.DueDate.Valid {
		return nil
	}
	tier, tierKey, ok := TierFor(now, hw.DueDate.Time, hw.Status)
	if !ok {
		return nil
	}

	// Past the due date the homework itself goes overdue, alongside the
	// escalation reminders.
	if !now.Before(hw.DueDate.Time) && (hw.Status == homework.StatusPending || hw.Status == homework.StatusInProgress) {
		if err := s.homeworkRepo.MarkOverdue(ctx, hw.ID); err != nil {
			return err
		}
		s.logger.Printf("INFO: homework %s marked overdue", hw.ID)
	}

	student, err := s.userRepo.GetStudentByID(ctx, hw.StudentID)
	if err != nil {
		return err
	}
	parent, err := s.userRepo.GetByID(ctx, student.ParentID)
	if err != nil {
		return err
	}
	if !parent.NotificationsEnabled {
		return nil
	}

	rem := &reminder.Reminder{
		HomeworkID: hw.ID,
		UserID:     parent.ID,
		Tier:       tier,
		TierKey:    tierKey,
		RemindAt:   now,
		Message:    RenderReminder(tier, hw, parent.PreferredLanguage, now),
	}
	if err := s.reminderRepo.Create(ctx, rem); err != nil {
		if s.isDuplicate != nil && s.isDuplicate(err) {
			// Tier already represented, sent or pending. Nothing to do.
			return nil
		}
		return err
	}
	s.logger.Printf("INFO: reminder %s created (homework %s, tier %s%s)", rem.ID, hw.ID, tier, suffixKey(tierKey))
	return nil
}

// SweepOverdue walks the reminder window and marks past-due open homework
// overdue. It runs after midnight, hours before the first reminder tick, so
// status queries reflect the new day without any message going out at that
// hour.
func (s *ReminderService) SweepOverdue(ctx context.Context) error {
	now := s.now()
	items, err := s.homeworkRepo.ListRemindable(ctx, now.Add(-s.cfg.Lookback), now)
	if err != nil {
		return err
	}
	flipped := 0
	for _, hw := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !hw.DueDate.Valid || now.Before(hw.DueDate.Time) {
			continue
		}
		if hw.Status != homework.StatusPending && hw.Status != homework.StatusInProgress {
			continue
		}
		if err := s.homeworkRepo.MarkOverdue(ctx, hw.ID); err != nil {
			s.logger.Printf("ERROR: overdue sweep for homework %s: %v", hw.ID, err)
			continue
		}
		flipped++
	}
	s.logger.Printf("INFO: overdue sweep at %s, %d item(s) marked overdue", now.Format(time.RFC3339), flipped)
	return nil
}

// dispatchUnsent sends every due unsent reminder whose retry budget is not
// exhausted. The repository returns them in ascending due-date order so the
// most urgent items go out first.
func (s *ReminderService) dispatchUnsent(ctx context.Context, now time.Time) error {
	unsent, err := s.reminderRepo.ListUnsent(ctx, now)
	if err != nil {
		return err
	}
	for _, rem := range unsent {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempts, err := s.deliveryRepo.CountFailedForReminder(ctx, rem.ID)
		if err != nil {
			s.logger.Printf("ERROR: counting attempts for reminder %s: %v", rem.ID, err)
			continue
		}
		if attempts >= s.cfg.MaxSendAttempts {
			s.logger.Printf("WARN: reminder %s abandoned after %d failed attempts", rem.ID, attempts)
			continue
		}
		if _, err := s.dispatcher.Send(ctx, rem); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			s.logger.Printf("WARN: dispatch of reminder %s failed (attempt %d of %d): %v",
				rem.ID, attempts+1, s.cfg.MaxSendAttempts, err)
		}
	}
	return nil
}

func suffixKey(key string) string {
	if key == "" {
		return ""
	}
	return "/" + key
}
