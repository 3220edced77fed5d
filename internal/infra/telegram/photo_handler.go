// internal/infra/telegram/photo_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"homework_reminder_bot/internal/app"
	"homework_reminder_bot/internal/domain/user"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// submissionTimeout bounds one full extraction run: every OCR provider,
// the structuring call with its retry, and the database writes.
const submissionTimeout = 2 * time.Minute

func RegisterPhotoHandler(
	ctx context.Context,
	b *telebot.Bot,
	userRepo user.Repository,
	extractionService *app.ExtractionService,
	baseLogger *logrus.Entry,
) {
	photoLogger := baseLogger.WithField("handler_group", "photo_submission")

	b.Handle(telebot.OnPhoto, func(c telebot.Context) error {
		logCtx := photoLogger.WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing homework photo")

		parent, err := requireParent(ctx, c, userRepo)
		if err != nil {
			return nil
		}
		student, err := resolveStudent(ctx, userRepo, parent.ID, c.Message().Caption)
		if err != nil {
			if errors.Is(err, errNoStudents) {
				return c.Send("Add your child first with /add_student <name>, then resend the photo.")
			}
			logCtx.WithError(err).Error("Error resolving student for photo")
			return c.Send("Something went wrong. Please try again later.")
		}

		photo := c.Message().Photo
		file, err := b.FileByID(photo.FileID)
		if err != nil {
			logCtx.WithError(err).Error("Error resolving photo file")
			return c.Send("I could not download that photo. Please resend it.")
		}
		fileURL := fmt.Sprintf("%s/file/bot%s/%s", b.URL, b.Token, file.FilePath)

		if err := c.Send("Reading the homework, give me a few seconds..."); err != nil {
			logCtx.WithError(err).Warn("Could not send progress message")
		}

		submitCtx, cancel := context.WithTimeout(ctx, submissionTimeout)
		defer cancel()
		hw, err := extractionService.Submit(submitCtx, []string{fileURL}, student.ID, uuid.NullUUID{})
		if err != nil {
			if errors.Is(err, app.ErrExtractionFailed) {
				logCtx.Warn("Extraction produced no usable text")
				return c.Send("I could not read any text from that photo. Please retake it with better lighting and resend.")
			}
			logCtx.WithError(err).Error("Extraction pipeline failed")
			return c.Send("Something went wrong while reading the homework. Please try again later.")
		}

		logCtx.WithField("homework_id", hw.ID).Info("Homework created from photo")
		var reply strings.Builder
		reply.WriteString(fmt.Sprintf("Got it! Filed under %s for %s:\n\n%s", hw.Subject, student.Name, hw.Title))
		if hw.AISummary.Valid {
			reply.WriteString("\n" + hw.AISummary.String)
		}
		if hw.DueDate.Valid {
			reply.WriteString(fmt.Sprintf("\n\nDue %s. I will remind you before then.", hw.DueDate.Time.Format("Monday 2 Jan")))
		} else {
			reply.WriteString("\n\nI could not find a due date. It is on the /list without reminders.")
		}
		return c.Send(reply.String())
	})
}

var errNoStudents = errors.New("parent has no students")

// resolveStudent picks which child a photo belongs to: a caption mentioning a
// child's name wins, otherwise the parent's first (often only) child.
func resolveStudent(ctx context.Context, userRepo user.Repository, parentID uuid.UUID, caption string) (*user.Student, error) {
	students, err := userRepo.ListStudentsByParent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, errNoStudents
	}
	if caption != "" {
		lowered := strings.ToLower(caption)
		for _, s := range students {
			if strings.Contains(lowered, strings.ToLower(s.Name)) {
				return s, nil
			}
		}
	}
	return students[0], nil
}
