// Package notify is the outbound push channel to the remote responders'
// messaging app. Every push is fire-and-forget: failures are logged and
// never surfaced to the orchestrator.
package notify

import (
	"context"

	"github.com/skomatsu/stella/pkg/logger"
)

// ContactCard carries a collected visitor contact for a tap-to-call
// push
type ContactCard struct {
	Name  string
	Phone string
	Body  string
	Title string
}

// Notifier pushes messages to remote parties
type Notifier interface {
	// PushCheckAvailability sends the availability question with the
	// three reply buttons
	PushCheckAvailability(ctx context.Context, partyID, message, title string)

	// PushText sends a plain text message
	PushText(ctx context.Context, partyID, text string)

	// PushContactCard sends the visitor's details with a call action
	PushContactCard(ctx context.Context, partyID string, card ContactCard)

	// PushNote sends a titled note (used for recorded messages)
	PushNote(ctx context.Context, partyID, title, body string)

	// Reply answers an inbound webhook event using its reply token
	Reply(ctx context.Context, replyToken, text string)
}

// Nop is a disabled notifier that only logs. Used when the push channel
// is turned off in config and in tests.
type Nop struct {
	logger *logger.Logger
}

// NewNop creates a logging-only notifier
func NewNop(log *logger.Logger) *Nop {
	return &Nop{logger: log.Named("notify")}
}

func (n *Nop) PushCheckAvailability(_ context.Context, partyID, message, _ string) {
	n.logger.Info("Push channel disabled, availability request not sent",
		logger.String("party_id", partyID),
		logger.String("message", message))
}

func (n *Nop) PushText(_ context.Context, partyID, text string) {
	n.logger.Info("Push channel disabled, text not sent",
		logger.String("party_id", partyID),
		logger.String("text", text))
}

func (n *Nop) PushContactCard(_ context.Context, partyID string, card ContactCard) {
	n.logger.Info("Push channel disabled, contact card not sent",
		logger.String("party_id", partyID),
		logger.String("phone", card.Phone))
}

func (n *Nop) PushNote(_ context.Context, partyID, title, _ string) {
	n.logger.Info("Push channel disabled, note not sent",
		logger.String("party_id", partyID),
		logger.String("title", title))
}

func (n *Nop) Reply(_ context.Context, _, text string) {
	n.logger.Info("Push channel disabled, reply not sent",
		logger.String("text", text))
}
