// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"homework_reminder_bot/internal/app"
	"homework_reminder_bot/internal/domain/homework"
	"homework_reminder_bot/internal/domain/user"
	idb "homework_reminder_bot/internal/infra/database" // For ErrUserNotFound

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	userRepo user.Repository,
	extractionService *app.ExtractionService,
	homeworkService *app.HomeworkService,
	baseLogger *logrus.Entry, // For contextual logging
) {
	startLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		_, err := userRepo.GetByTelegramID(ctx, senderID)
		if err == nil {
			return c.Send(fmt.Sprintf("Welcome back, %s! Send me a photo of your child's homework and I will track it. Use /help for the full command list.", c.Sender().FirstName))
		}
		if !errors.Is(err, idb.ErrUserNotFound) {
			logCtx.WithError(err).Error("Error checking user status for /start command")
			return c.Send("Something went wrong while checking your account. Please try again later.")
		}

		newUser := &user.User{
			TelegramID:           sql.NullInt64{Int64: senderID, Valid: true},
			Name:                 strings.TrimSpace(c.Sender().FirstName + " " + c.Sender().LastName),
			Role:                 user.RoleParent,
			PreferredLanguage:    normalizeLanguage(c.Sender().LanguageCode),
			Timezone:             "Asia/Singapore",
			NotificationsEnabled: true,
		}
		if err := userRepo.Create(ctx, newUser); err != nil {
			logCtx.WithError(err).Error("Error registering new parent")
			return c.Send("Something went wrong while registering you. Please try again later.")
		}
		logCtx.WithField("user_id", newUser.ID).Info("New parent registered")
		return c.Send("Hi! I track your child's homework from photos and remind you before it is due.\n\nFirst, add your child with:\n/add_student <name>\n\nThen just send me a photo of the homework.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		var helpText strings.Builder
		helpText.WriteString("What I can do:\n\n")
		helpText.WriteString("Send a photo of homework and I will read it, file it and remind you before it is due.\n\n")
		helpText.WriteString("`/add_student <name>`\n - Add a child. Photo captions with their name route homework to them.\n\n")
		helpText.WriteString("`/list`\n - Show open homework for your children.\n\n")
		helpText.WriteString("`/done <number>`\n - Mark an item from /list as completed.\n\n")
		helpText.WriteString("`/stats`\n - Completion statistics per child.\n\n")
		helpText.WriteString("`/help`\n - Show this message.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})

	studentLogger := baseLogger.WithField("handler_group", "students")

	b.Handle("/add_student", func(c telebot.Context) error {
		logCtx := studentLogger.WithField("command", "/add_student").WithField("sender_id", c.Sender().ID)
		parent, err := requireParent(ctx, c, userRepo)
		if err != nil {
			return nil // requireParent already replied
		}
		name := strings.TrimSpace(c.Message().Payload)
		if name == "" {
			return c.Send("Usage: /add_student <name>")
		}
		student := &user.Student{Name: name, ParentID: parent.ID}
		if err := userRepo.CreateStudent(ctx, student); err != nil {
			logCtx.WithError(err).Error("Error creating student")
			return c.Send("Could not add the student. Please try again later.")
		}
		logCtx.WithField("student_id", student.ID).Info("Student added")
		return c.Send(fmt.Sprintf("Added %s. Send me a photo of their homework any time.", name))
	})

	homeworkLogger := baseLogger.WithField("handler_group", "homework")

	b.Handle("/list", func(c telebot.Context) error {
		parent, err := requireParent(ctx, c, userRepo)
		if err != nil {
			return nil
		}
		items, err := openHomework(ctx, userRepo, homeworkService, parent.ID)
		if err != nil {
			homeworkLogger.WithError(err).Error("Error listing homework")
			return c.Send("Could not load the homework list. Please try again later.")
		}
		if len(items) == 0 {
			return c.Send("No open homework. Enjoy the free evening!")
		}
		var reply strings.Builder
		reply.WriteString("Open homework:\n")
		for i, item := range items {
			reply.WriteString(fmt.Sprintf("\n%d. %s", i+1, formatItem(item)))
		}
		reply.WriteString("\n\nMark one done with /done <number>.")
		return c.Send(reply.String())
	})

	b.Handle("/done", func(c telebot.Context) error {
		logCtx := homeworkLogger.WithField("command", "/done").WithField("sender_id", c.Sender().ID)
		parent, err := requireParent(ctx, c, userRepo)
		if err != nil {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(c.Message().Payload))
		if err != nil || n < 1 {
			return c.Send("Usage: /done <number> — the number from /list.")
		}
		items, err := openHomework(ctx, userRepo, homeworkService, parent.ID)
		if err != nil {
			logCtx.WithError(err).Error("Error listing homework for /done")
			return c.Send("Could not load the homework list. Please try again later.")
		}
		if n > len(items) {
			return c.Send(fmt.Sprintf("There are only %d open items. Check /list again.", len(items)))
		}
		target := items[n-1]
		if err := homeworkService.MarkComplete(ctx, target.Homework.ID); err != nil {
			logCtx.WithError(err).WithField("homework_id", target.Homework.ID).Error("Error marking homework complete")
			return c.Send("Could not mark it as done. Please try again later.")
		}
		return c.Send(fmt.Sprintf("Done! %q is completed. Reminders for it stop now.", target.Homework.Title))
	})

	b.Handle("/stats", func(c telebot.Context) error {
		parent, err := requireParent(ctx, c, userRepo)
		if err != nil {
			return nil
		}
		students, err := userRepo.ListStudentsByParent(ctx, parent.ID)
		if err != nil {
			homeworkLogger.WithError(err).Error("Error listing students for /stats")
			return c.Send("Could not load statistics. Please try again later.")
		}
		if len(students) == 0 {
			return c.Send("No children added yet. Use /add_student <name> first.")
		}
		var reply strings.Builder
		reply.WriteString("Homework statistics:\n")
		for _, s := range students {
			stats, err := homeworkService.Stats(ctx, s.ID)
			if err != nil {
				homeworkLogger.WithError(err).WithField("student_id", s.ID).Error("Error computing stats")
				continue
			}
			reply.WriteString(fmt.Sprintf("\n%s: %d total, %d completed, %d pending, %d overdue (%.0f%% done)",
				s.Name, stats.Total, stats.Completed, stats.Pending, stats.Overdue, stats.CompletionRate))
		}
		return c.Send(reply.String())
	})

	RegisterPhotoHandler(ctx, b, userRepo, extractionService, baseLogger)
}

// requireParent resolves the sender to a registered parent, replying with a
// registration hint when unknown. The error return only signals "already
// handled" to the command body.
func requireParent(ctx context.Context, c telebot.Context, userRepo user.Repository) (*user.User, error) {
	u, err := userRepo.GetByTelegramID(ctx, c.Sender().ID)
	if err != nil {
		if errors.Is(err, idb.ErrUserNotFound) {
			_ = c.Send("I don't know you yet. Send /start first.")
		} else {
			_ = c.Send("Something went wrong while checking your account. Please try again later.")
		}
		return nil, err
	}
	return u, nil
}

// listedItem pairs a homework row with the student's display name for /list
// and /done numbering.
type listedItem struct {
	Homework    *homework.Homework
	StudentName string
}

// openHomework flattens the parent's students into one stable numbered list,
// students in name order, items in due-date order within a student.
func openHomework(ctx context.Context, userRepo user.Repository, homeworkService *app.HomeworkService, parentID uuid.UUID) ([]listedItem, error) {
	students, err := userRepo.ListStudentsByParent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	var items []listedItem
	for _, s := range students {
		all, err := homeworkService.ListByStudent(ctx, s.ID, "")
		if err != nil {
			return nil, err
		}
		for _, hw := range all {
			if hw.Status.IsOpen() {
				items = append(items, listedItem{Homework: hw, StudentName: s.Name})
			}
		}
	}
	return items, nil
}

func formatItem(item listedItem) string {
	hw := item.Homework
	line := fmt.Sprintf("[%s] %s — %s", hw.Subject, hw.Title, item.StudentName)
	if hw.DueDate.Valid {
		line += fmt.Sprintf(" (due %s)", hw.DueDate.Time.Format("Mon 2 Jan"))
	}
	if hw.Status == homework.StatusOverdue {
		line += " OVERDUE"
	}
	return line
}

// normalizeLanguage maps a Telegram language code onto the three languages
// reminders are rendered in.
func normalizeLanguage(code string) string {
	switch {
	case strings.HasPrefix(code, "zh"):
		return "zh"
	case strings.HasPrefix(code, "ms"):
		return "ms"
	default:
		return "en"
	}
}
