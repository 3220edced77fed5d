// internal/infra/telegram/sender.go
package telegram

import (
	"context"
	"fmt"
	"strconv"

	"homework_reminder_bot/internal/domain/delivery"

	"gopkg.in/telebot.v3"
)

// Sender implements delivery.Sender over the gopkg.in/telebot.v3 library.
type Sender struct {
	bot *telebot.Bot
}

func NewSender(b *telebot.Bot) *Sender {
	return &Sender{bot: b}
}

func (s *Sender) Channel() delivery.Channel { return delivery.ChannelTelegram }

// Deliver sends a text message to the chat identified by recipient. Telegram
// bot messages carry no per-message cost, and the API's message ID is the
// delivery receipt.
func (s *Sender) Deliver(ctx context.Context, recipient, content string) (delivery.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return delivery.Receipt{}, err
	}
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return delivery.Receipt{}, fmt.Errorf("invalid telegram chat id %q: %w", recipient, err)
	}
	msg, err := s.bot.Send(&telebot.User{ID: chatID}, content)
	if err != nil {
		return delivery.Receipt{}, err
	}
	return delivery.Receipt{ExternalID: strconv.Itoa(msg.ID)}, nil
}
