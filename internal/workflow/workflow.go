// Package workflow implements the conversation state machines behind
// each entry button and the controller that locks the message router
// into the active one until it reaches a terminal state.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/skomatsu/stella/internal/ai"
	"github.com/skomatsu/stella/internal/config"
	"github.com/skomatsu/stella/internal/dialogue"
	"github.com/skomatsu/stella/internal/negotiation"
	"github.com/skomatsu/stella/internal/notify"
	"github.com/skomatsu/stella/internal/session"
	"github.com/skomatsu/stella/internal/transport"
	"github.com/skomatsu/stella/pkg/logger"
)

// ErrAborted signals that a step terminated without a reply: the
// session ended underneath it or the step closed it on its own. The
// controller must not send anything when it sees this.
var ErrAborted = errors.New("workflow aborted")

// Outbound delivers messages to the connected avatar front-end
type Outbound interface {
	Send(msg *transport.Message)
}

// Workflow is one locked conversation flow. Step consumes a visitor
// utterance and returns the avatar's next reply; an empty reply with a
// nil error means the step already sent everything it had to say.
type Workflow interface {
	Name() string
	Step(ctx context.Context, input string, mode config.Mode) (string, error)
}

// PartyDirectory resolves which remote parties a workflow may contact.
// Primary is the main responder's devices, Secondary joins only in
// partially-available mode and only for buttons that allow it.
type PartyDirectory struct {
	Primary   []string
	Secondary []string
}

// Resolve returns the party IDs to notify for the given entry button
// in the given mode
func (p PartyDirectory) Resolve(buttonID string, mode config.Mode) []string {
	parties := append([]string(nil), p.Primary...)
	if mode != config.ModePartial {
		return parties
	}
	for _, group := range dialogue.ButtonParties[buttonID] {
		if group == "user2" {
			return append(parties, p.Secondary...)
		}
	}
	return parties
}

// MainParty is the target for contact cards and recorded messages
func (p PartyDirectory) MainParty() string {
	if len(p.Primary) > 0 {
		return p.Primary[0]
	}
	return ""
}

// Deps bundles everything a workflow step touches
type Deps struct {
	Sessions   *session.Manager
	Negotiator *negotiation.Negotiator
	Notifier   notify.Notifier
	Classifier ai.IntentClassifier
	Extractor  ai.Extractor
	Modes      *config.ModeStore
	Out        Outbound
	Parties    PartyDirectory

	// TurnTimeout bounds every wait for the next visitor utterance
	TurnTimeout time.Duration

	Logger *logger.Logger
}

// base carries the send and wait plumbing shared by the workflows
type base struct {
	deps Deps
	log  *logger.Logger
}

// say sends a chat line and records it in the session transcript
func (b *base) say(msg string) {
	b.deps.Sessions.Context().AddMemory("", msg)
	b.deps.Out.Send(transport.Chat(msg))
}

func (b *base) sendAction(actionType string) {
	b.deps.Out.Send(transport.NewAction(actionType, nil))
}

func (b *base) sendActionWithParams(actionType string, params *transport.UserProfile) {
	b.deps.Out.Send(transport.NewAction(actionType, params))
}

// sendChatAction sends a chat line with an attached screen directive
// carrying the current profile snapshot
func (b *base) sendChatAction(msg, actionType string) {
	sc := b.deps.Sessions.Context()
	if msg != "" {
		sc.AddMemory("", msg)
	}
	b.deps.Out.Send(transport.ChatAction(msg, actionType, b.profile(sc)))
}

func (b *base) sendConfirmAction(caption, actionType string) {
	b.deps.Out.Send(transport.ConfirmAction(caption, actionType, nil))
}

func (b *base) profile(sc *session.Context) *transport.UserProfile {
	return &transport.UserProfile{
		Name:    sc.Name,
		Contact: sc.Phone,
		Purpose: sc.Purpose,
	}
}

// waitReply suspends until the visitor's next utterance or a timeout.
// Session termination while waiting surfaces as ErrAborted. Utterances
// are recorded in the transcript before they are returned.
func (b *base) waitReply(ctx context.Context) (session.WaitResult, error) {
	res, err := b.deps.Sessions.Turn().Wait(ctx, b.deps.TurnTimeout)
	if err != nil {
		b.log.Error("Turn wait failed", logger.Error(err))
		return session.WaitResult{}, ErrAborted
	}
	switch res.Kind {
	case session.WaitEnded:
		b.log.Info("Session ended while waiting for the visitor")
		return res, ErrAborted
	case session.WaitUtterance:
		b.deps.Sessions.Context().AddMemory(res.Text, "")
	}
	return res, nil
}
