package workflow

import (
	"context"

	"github.com/skomatsu/stella/internal/config"
	"github.com/skomatsu/stella/internal/dialogue"
	"github.com/skomatsu/stella/internal/negotiation"
	"github.com/skomatsu/stella/internal/session"
	"github.com/skomatsu/stella/internal/transport"
	"github.com/skomatsu/stella/pkg/logger"
)

// Delivery handles the courier button. No identity gathering happens:
// the parcel either gets a human within the window or the courier is
// asked to leave a redelivery notice. Contact collection never starts.
type Delivery struct {
	base
}

// NewDelivery creates a delivery workflow bound to one session
func NewDelivery(deps Deps) *Delivery {
	return &Delivery{base: base{deps: deps, log: deps.Logger.Named("delivery")}}
}

// Name implements Workflow
func (w *Delivery) Name() string { return "delivery" }

// Step implements Workflow
func (w *Delivery) Step(ctx context.Context, input string, mode config.Mode) (string, error) {
	sc := w.deps.Sessions.Context()
	sc.Purpose = dialogue.FixedPurpose(dialogue.ButtonDelivery)

	if sc.State == session.StateCheckAvailability {
		return w.contactParties(ctx, mode)
	}
	return w.decideContactWay(ctx, mode)
}

func (w *Delivery) decideContactWay(ctx context.Context, mode config.Mode) (string, error) {
	sc := w.deps.Sessions.Context()
	if mode == config.ModeAway {
		w.deps.Notifier.PushText(ctx, w.deps.Parties.MainParty(), dialogue.DeliveryAwayNotice)
		return w.closeWith(dialogue.UnavailableDeliveryMessage), nil
	}

	sc.State = session.StateCheckAvailability
	if mode == config.ModeHome {
		w.sendAction(transport.ActionChooseContact)
		w.say(dialogue.DecideContactMessage)
		return "", nil
	}
	return w.contactParties(ctx, mode)
}

func (w *Delivery) contactParties(ctx context.Context, mode config.Mode) (string, error) {
	sc := w.deps.Sessions.Context()
	w.sendAction(transport.ActionShowWait)
	w.say(dialogue.WaitMessage)

	parties := w.deps.Parties.Resolve(sc.ButtonID, mode)
	result, err := w.deps.Negotiator.Negotiate(ctx, parties,
		dialogue.DeliveryAvailabilityRequest, dialogue.ButtonTitle(sc.ButtonID))
	if err != nil {
		return "", ErrAborted
	}
	w.log.Info("Delivery negotiation resolved",
		logger.String("response", result.Response))

	switch result.Response {
	case negotiation.ResponseNow:
		w.sendAction(transport.ActionShowTop)
		w.deps.Sessions.End()
		return dialogue.Available(result.PersonLabel), nil

	case negotiation.ResponseSoon:
		w.sendConfirmAction(dialogue.AskWaitText, transport.ActionShowConfirmYesNo)
		w.say(dialogue.Wait2Min(result.PersonLabel))
		agreed, err := w.waitConsent(ctx)
		if err != nil {
			return "", err
		}
		if agreed {
			return w.closeWith(dialogue.CanWait2MinMessage), nil
		}
		return w.closeWith(dialogue.UnavailableDeliveryMessage), nil

	default:
		return w.closeWith(dialogue.UnavailableDeliveryMessage), nil
	}
}

// closeWith ends the session behind the sorry screen and hands the
// closing line back to the controller
func (w *Delivery) closeWith(msg string) string {
	w.sendAction(transport.ActionShowTop)
	w.sendAction(transport.ActionShowSorry)
	w.deps.Sessions.End()
	return msg
}
