package scheduler

import (
	"context"
	"homework_reminder_bot/internal/app" // For ReminderProcessor interface
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

type ReminderScheduler struct {
	cronEngine           *cron.Cron
	processor            app.ReminderProcessor // Using the interface
	logger               *log.Logger
	cronSpecReminderTick string
	cronSpecOverdueSweep string
}

func NewReminderScheduler(
	processor app.ReminderProcessor,
	logger *log.Logger,
	location *time.Location,
	cronSpecReminderTick string, // e.g., "0 8,13,18 * * *" (three checks a day)
	cronSpecOverdueSweep string, // e.g., "30 0 * * *" (shortly after midnight)
) *ReminderScheduler {
	return &ReminderScheduler{
		// Jobs never overlap themselves: a slow tick makes the next firing
		// skip instead of dispatching the same reminders concurrently.
		cronEngine: cron.New(
			cron.WithLocation(location),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
		),
		processor:            processor,
		logger:               logger,
		cronSpecReminderTick: cronSpecReminderTick,
		cronSpecOverdueSweep: cronSpecOverdueSweep,
	}
}

func (s *ReminderScheduler) Start() {
	s.logger.Println("INFO: Starting reminder scheduler...")

	// Job deriving and dispatching reminders
	_, err := s.cronEngine.AddFunc(s.cronSpecReminderTick, func() {
		s.logger.Println("INFO: Cron job triggered for reminder tick.")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute) // Context for the job
		defer cancel()
		if err := s.processor.ProcessTick(ctx); err != nil {
			s.logger.Printf("ERROR: Error during reminder tick: %v", err)
		}
	})
	if err != nil {
		s.logger.Fatalf("FATAL: Could not add reminder tick cron job: %v", err)
	}

	// Job flipping past-due homework to overdue before the day's first tick
	_, err = s.cronEngine.AddFunc(s.cronSpecOverdueSweep, func() {
		s.logger.Println("INFO: Cron job triggered for overdue sweep.")
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		if err := s.processor.SweepOverdue(ctx); err != nil {
			s.logger.Printf("ERROR: Error during overdue sweep: %v", err)
		}
	})
	if err != nil {
		s.logger.Fatalf("FATAL: Could not add overdue sweep cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.Println("INFO: Reminder scheduler started with jobs.")
}

func (s *ReminderScheduler) Stop() {
	s.logger.Println("INFO: Stopping reminder scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Println("INFO: Reminder scheduler gracefully stopped.")
}
