package workflow

import (
	"context"
	"regexp"
	"strings"

	"github.com/skomatsu/stella/internal/ai"
	"github.com/skomatsu/stella/internal/config"
	"github.com/skomatsu/stella/internal/dialogue"
	"github.com/skomatsu/stella/internal/negotiation"
	"github.com/skomatsu/stella/internal/notify"
	"github.com/skomatsu/stella/internal/session"
	"github.com/skomatsu/stella/internal/transport"
	"github.com/skomatsu/stella/pkg/logger"
)

// purposeSeparators strips punctuation and whitespace before the
// purpose is matched against the redirect keywords
var purposeSeparators = regexp.MustCompile(`[,、\s　]`)

// CallPerson is the handoff workflow behind the general, offering,
// facilities and trade-vendor buttons: gather who and why, confirm,
// negotiate availability with the responders, and fall back to contact
// collection when nobody can come.
type CallPerson struct {
	base
	firstRun bool
}

// NewCallPerson creates a call-person workflow bound to one session
func NewCallPerson(deps Deps) *CallPerson {
	return &CallPerson{
		base:     base{deps: deps, log: deps.Logger.Named("callperson")},
		firstRun: true,
	}
}

// Name implements Workflow
func (w *CallPerson) Name() string { return "call_person" }

// Step implements Workflow, dispatching on the conversation state
func (w *CallPerson) Step(ctx context.Context, input string, mode config.Mode) (string, error) {
	switch w.deps.Sessions.Context().State {
	case session.StateConfirmUserInfo:
		return w.showConfirmInfo(ctx, mode)
	case session.StateCheckAvailability:
		return w.contactParties(ctx, mode)
	case session.StateGatherContactInfo:
		return w.gatherContactInfo(ctx, input)
	default:
		return w.gatherInfo(ctx, input, mode)
	}
}

func (w *CallPerson) gatherInfo(ctx context.Context, input string, mode config.Mode) (string, error) {
	sc := w.deps.Sessions.Context()

	if sc.ButtonID == dialogue.ButtonGyosha {
		name, purpose := w.deps.Extractor.ExtractVendorNamePurpose(ctx, input)
		if name != "" && sc.Name == "" {
			sc.Name = name
		}
		if purpose != "" && sc.Purpose == "" {
			sc.Purpose = purpose
		}
	} else {
		if w.firstRun && sc.ButtonID != dialogue.ButtonGeneral {
			if fixed := dialogue.FixedPurpose(sc.ButtonID); fixed != "" {
				sc.Purpose = fixed
				sc.NameRetry++
			}
			w.firstRun = false
		}
		name, purpose := w.deps.Extractor.ExtractNamePurpose(ctx, input)
		if name != "" && sc.Name == "" {
			sc.Name = name
		}
		if purpose != "" && sc.Purpose == "" {
			if reply, intercepted, err := w.interceptPurpose(purpose); intercepted {
				return reply, err
			}
			sc.Purpose = purpose
		}
	}

	if sc.Purpose == "" && sc.PurposeRetry < session.MaxPurposeRetries {
		sc.PurposeRetry++
		if sc.PurposeRetry == 1 {
			return dialogue.AskPurposeRetryMessage, nil
		}
		return dialogue.AskRetry("ご用件"), nil
	}

	if sc.Name == "" && sc.NameRetry < session.MaxNameRetries {
		sc.NameRetry++
		if sc.NameRetry < session.MaxNameRetries {
			return w.askName(sc), nil
		}
		// Speech failed twice, switch to the on-screen keyboard
		w.sendAction(transport.ActionShowName)
		w.sendAction(transport.ActionShowKeyboard)
		return dialogue.AskKeyboardMessage, nil
	}

	sc.State = session.StateConfirmUserInfo
	return w.showConfirmInfo(ctx, mode)
}

// interceptPurpose redirects the graveyard inquiries handled by an
// outside company and flags the pet memorial screen. Redirects close
// the session before any handoff starts.
func (w *CallPerson) interceptPurpose(purpose string) (reply string, intercepted bool, err error) {
	normalized := purposeSeparators.ReplaceAllString(purpose, "")
	switch {
	case strings.Contains(normalized, "睡蓮"):
		w.say(dialogue.SuirenRedirectMessage)
		w.sendActionWithParams(transport.ActionShowBochi, &transport.UserProfile{Purpose: "睡蓮墓地については、"})
		w.sendAction(transport.ActionEndSession)
		return "", true, ErrAborted
	case strings.Contains(normalized, "樹木葬"):
		w.say(dialogue.JumokusoRedirectMessage)
		w.sendActionWithParams(transport.ActionShowBochi, &transport.UserProfile{Purpose: "樹木葬墓地については、"})
		w.sendAction(transport.ActionEndSession)
		return "", true, ErrAborted
	case strings.Contains(normalized, "ペット供養"):
		w.sendAction(transport.ActionShowPet)
	}
	return "", false, nil
}

func (w *CallPerson) askName(sc *session.Context) string {
	if sc.ButtonID == dialogue.ButtonGyosha {
		if sc.NameRetry == 1 {
			return dialogue.AskCompanyNameMessage
		}
		return dialogue.AskRetry("会社名とお名前")
	}
	if sc.NameRetry == 1 {
		if strings.Contains(sc.Purpose, "お焚き上げ") {
			return dialogue.AskOtakiageMessage
		}
		return dialogue.AskNameMessage
	}
	return dialogue.AskRetry("お名前")
}

func (w *CallPerson) showConfirmInfo(ctx context.Context, mode config.Mode) (string, error) {
	sc := w.deps.Sessions.Context()
	confirm := dialogue.ConfirmMessageDefault
	switch {
	case sc.Name != "" && sc.Purpose != "":
		confirm = dialogue.Confirm(sc.Name, sc.Purpose)
	case sc.Name != "":
		confirm = dialogue.ConfirmNameOnly(sc.Name)
	case sc.Purpose != "":
		confirm = dialogue.ConfirmPurposeOnly(sc.Purpose)
	}

	for {
		w.sendChatAction(confirm, transport.ActionShowConfirmInfo)
		res, err := w.waitReply(ctx)
		if err != nil {
			return "", err
		}
		if res.Kind == session.WaitTimeout {
			return w.handleTimeout(dialogue.TimeoutMessage), nil
		}
		intent := w.deps.Classifier.ClassifyCorrection(ctx, res.Text)
		w.log.Info("Info confirmation reply",
			logger.String("reply", res.Text),
			logger.String("intent", intent))
		switch intent {
		case ai.IntentConfirmation:
			sc.State = session.StateCheckAvailability
			if mode == config.ModeHome ||
				(mode == config.ModePartial && sc.ButtonID == dialogue.ButtonGeneral) {
				w.sendAction(transport.ActionChooseContact)
				w.say(dialogue.DecideContactMessage)
				return "", nil
			}
			return w.contactParties(ctx, mode)
		case ai.IntentCorrection:
			// Corrections arrive through the confirm screen's fields
			confirm = dialogue.CorrectInfoMessage
		default:
			confirm = dialogue.ConfirmRetryMessage
		}
	}
}

func (w *CallPerson) contactParties(ctx context.Context, mode config.Mode) (string, error) {
	sc := w.deps.Sessions.Context()
	parties := w.deps.Parties.Resolve(sc.ButtonID, mode)
	w.log.Info("Resolving contact line",
		logger.String("mode", string(mode)),
		logger.String("button_id", sc.ButtonID),
		logger.Int("parties", len(parties)))

	if (mode != config.ModeHome && mode != config.ModePartial) || len(parties) == 0 {
		w.sendConfirmAction(dialogue.AskPhoneText, transport.ActionShowConfirmYesNo)
		w.say(dialogue.Unavailable("ご連絡先"))
		return w.handleUnavailable(ctx)
	}

	w.sendAction(transport.ActionShowWait)
	w.say(dialogue.WaitMessage)
	result, err := w.deps.Negotiator.Negotiate(ctx, parties,
		dialogue.CheckAvailabilityRequest(sc.Name, sc.Purpose),
		dialogue.ButtonTitle(sc.ButtonID))
	if err != nil {
		return "", ErrAborted
	}

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
			w.sendAction(transport.ActionShowTop)
			w.sendAction(transport.ActionShowSorry)
			w.deps.Sessions.End()
			return dialogue.CanWait2MinMessage, nil
		}
		w.sendConfirmAction(dialogue.AskPhoneText, transport.ActionShowConfirmYesNo)
		w.say(dialogue.CannotWait2Min("ご連絡先"))
		return w.handleUnavailable(ctx)

	default:
		w.sendConfirmAction(dialogue.AskPhoneText, transport.ActionShowConfirmYesNo)
		w.say(dialogue.Unavailable("ご連絡先"))
		return w.handleUnavailable(ctx)
	}
}

func (w *CallPerson) gatherContactInfo(ctx context.Context, input string) (string, error) {
	sc := w.deps.Sessions.Context()
	if prompt := w.extractPhoneStep(ctx, sc, input); prompt != "" {
		return prompt, nil
	}
	if sc.Phone == "" {
		return w.endAskPhone(sc), nil
	}

	w.sendChatAction(dialogue.ConfirmMessagePhone, transport.ActionShowConfirmInfo)
	for {
		res, err := w.waitReply(ctx)
		if err != nil {
			return "", err
		}
		if res.Kind == session.WaitTimeout {
			return w.handleTimeout(dialogue.EndAskPhone("")), nil
		}
		switch w.deps.Classifier.ClassifyCorrection(ctx, res.Text) {
		case ai.IntentUnknown:
			w.say(dialogue.ConfirmRetryMessage)
		case ai.IntentCorrection:
			w.say(dialogue.CorrectInfoMessage)
		default:
			suffix := w.sonaemonoSuffix(sc)
			var closing string
			if sc.PhoneCorrect {
				w.deps.Notifier.PushContactCard(ctx, w.deps.Parties.MainParty(), notify.ContactCard{
					Name:  sc.Name,
					Phone: sc.Phone,
					Body:  dialogue.ContactCardBody(sc.Name, sc.Purpose),
					Title: dialogue.ButtonTitle(sc.ButtonID),
				})
				closing = dialogue.ApologyCallback(suffix)
			} else {
				closing = dialogue.EndAskPhone(suffix)
			}
			w.sendAction(transport.ActionShowTop)
			w.sendAction(transport.ActionShowSorry)
			sc.WorkflowActive = false
			w.deps.Sessions.End()
			return closing, nil
		}
	}
}
