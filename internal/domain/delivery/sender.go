package delivery

import "context"

// Receipt is a channel provider's acknowledgment of one delivered message.
type Receipt struct {
	ExternalID string
	CostUSD    float64
}

// Sender abstracts one notification channel. Implementations wrap the
// concrete transport (Telegram bot API, WhatsApp Cloud API, ...) behind a
// uniform deliver call so the dispatcher never depends on vendor specifics.
type Sender interface {
	Channel() Channel
	Deliver(ctx context.Context, recipient, content string) (Receipt, error)
}
