// internal/app/dispatch_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"homework_reminder_bot/internal/domain/delivery"
	"homework_reminder_bot/internal/domain/reminder"
	"homework_reminder_bot/internal/domain/user"

	"github.com/google/uuid"
)

// ErrDeliveryFailed wraps a channel transport failure. The reminder stays
// unsent so a later tick can retry within the cap.
var ErrDeliveryFailed = errors.New("delivery failed")

// ErrNoChannel means the recipient has no usable notification endpoint.
var ErrNoChannel = errors.New("recipient has no configured notification channel")

// Dispatcher sends one reminder through the recipient's preferred channel
// and records the outcome.
type Dispatcher interface {
	Send(ctx context.Context, rem *reminder.Reminder) (*delivery.MessageLog, error)
}

// DispatcherImpl implements Dispatcher over a set of channel senders.
type DispatcherImpl struct {
	senders  map[delivery.Channel]delivery.Sender
	logRepo  delivery.Repository
	remRepo  reminder.Repository
	userRepo user.Repository
	logger   *log.Logger
}

func NewDispatcherImpl(
	senders []delivery.Sender,
	logRepo delivery.Repository,
	remRepo reminder.Repository,
	userRepo user.Repository,
	logger *log.Logger,
) *DispatcherImpl {
	byChannel := make(map[delivery.Channel]delivery.Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &DispatcherImpl{
		senders:  byChannel,
		logRepo:  logRepo,
		remRepo:  remRepo,
		userRepo: userRepo,
		logger:   logger,
	}
}

// Send creates a pending MessageLog, invokes the channel and closes the log
// as sent or failed. A failed attempt leaves the reminder unsent; a new log
// row is created on the next attempt, never reusing the failed one.
func (d *DispatcherImpl) Send(ctx context.Context, rem *reminder.Reminder) (*delivery.MessageLog, error) {
	if rem.Sent {
		return nil, nil
	}
	recipient, err := d.userRepo.GetByID(ctx, rem.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipient %s: %w", rem.UserID, err)
	}

	channel, address, err := resolveChannel(recipient, d.senders)
	if err != nil {
		return nil, err
	}

	msgLog := &delivery.MessageLog{
		UserID:      uuid.NullUUID{UUID: recipient.ID, Valid: true},
		ReminderID:  uuid.NullUUID{UUID: rem.ID, Valid: true},
		Channel:     channel,
		MessageType: "homework_reminder",
		Recipient:   address,
		Content:     rem.Message,
		Status:      delivery.StatusPending,
	}
	if err := d.logRepo.Create(ctx, msgLog); err != nil {
		return nil, fmt.Errorf("failed to create message log: %w", err)
	}

	receipt, sendErr := d.senders[channel].Deliver(ctx, address, rem.Message)
	if sendErr != nil {
		if err := d.logRepo.MarkFailed(ctx, msgLog.ID); err != nil {
			d.logger.Printf("ERROR: could not mark message log %s failed: %v", msgLog.ID, err)
		}
		msgLog.Status = delivery.StatusFailed
		return msgLog, fmt.Errorf("%w via %s: %v", ErrDeliveryFailed, channel, sendErr)
	}

	now := time.Now()
	if err := d.logRepo.MarkSent(ctx, msgLog.ID, receipt.ExternalID, receipt.CostUSD, now); err != nil {
		d.logger.Printf("ERROR: could not mark message log %s sent: %v", msgLog.ID, err)
	}
	msgLog.Status = delivery.StatusSent

	// The sent flag doubles as the compare-and-set guard against a
	// concurrent dispatch of the same reminder.
	if err := d.remRepo.MarkSent(ctx, rem.ID, now); err != nil {
		d.logger.Printf("WARN: reminder %s sent-flag update: %v", rem.ID, err)
	}
	d.logger.Printf("INFO: reminder %s delivered via %s (external id %s, cost $%.4f)",
		rem.ID, channel, receipt.ExternalID, receipt.CostUSD)
	return msgLog, nil
}

// resolveChannel picks the recipient's channel: WhatsApp when a phone is on
// file, Telegram otherwise, restricted to the senders actually configured.
func resolveChannel(u *user.User, senders map[delivery.Channel]delivery.Sender) (delivery.Channel, string, error) {
	if u.WhatsAppPhone.Valid && u.WhatsAppPhone.String != "" {
		if _, ok := senders[delivery.ChannelWhatsApp]; ok {
			return delivery.ChannelWhatsApp, u.WhatsAppPhone.String, nil
		}
	}
	if u.TelegramID.Valid && u.TelegramID.Int64 != 0 {
		if _, ok := senders[delivery.ChannelTelegram]; ok {
			return delivery.ChannelTelegram, strconv.FormatInt(u.TelegramID.Int64, 10), nil
		}
	}
	return "", "", fmt.Errorf("%w: user %s", ErrNoChannel, u.ID)
}
