package workflow

import (
	"context"

	"github.com/skomatsu/stella/internal/ai"
	"github.com/skomatsu/stella/internal/dialogue"
	"github.com/skomatsu/stella/internal/session"
	"github.com/skomatsu/stella/internal/transport"
)

// handleTimeout closes the session after the visitor stayed silent:
// top menu, end directive, session finalized. Returns the closing line
// for the caller to deliver.
func (b *base) handleTimeout(endMessage string) string {
	b.sendAction(transport.ActionShowTop)
	b.sendAction(transport.ActionEndSession)
	b.deps.Sessions.Context().WorkflowActive = false
	b.deps.Sessions.End()
	return endMessage
}

// sonaemonoSuffix is the offering-shelf notice appended to closing
// lines for the offering button
func (b *base) sonaemonoSuffix(sc *session.Context) string {
	if sc.ButtonID == dialogue.ButtonTsuke {
		return dialogue.SonaemonoMessage
	}
	return ""
}

// waitConsent runs the two-minute wait-consent loop and reports
// whether the visitor agreed to wait. A timeout closes the session and
// delivers the closing line itself.
func (b *base) waitConsent(ctx context.Context) (bool, error) {
	for {
		res, err := b.waitReply(ctx)
		if err != nil {
			return false, err
		}
		if res.Kind == session.WaitTimeout {
			b.say(b.handleTimeout(dialogue.TimeoutMessage))
			return false, ErrAborted
		}
		switch b.deps.Classifier.ClassifyYesNo(ctx, res.Text) {
		case ai.IntentConfirmation:
			return true, nil
		case ai.IntentDecline:
			return false, nil
		default:
			b.say(dialogue.ConfirmRetryMessage)
		}
	}
}

// handleUnavailable asks whether the visitor will leave a contact and
// either pivots into contact gathering or closes with an apology
func (b *base) handleUnavailable(ctx context.Context) (string, error) {
	sc := b.deps.Sessions.Context()
	sc.State = session.StateGatherContactInfo
	for {
		res, err := b.waitReply(ctx)
		if err != nil {
			return "", err
		}
		if res.Kind == session.WaitTimeout {
			return b.handleTimeout(dialogue.TimeoutMessage), nil
		}
		switch b.deps.Classifier.ClassifyYesNo(ctx, res.Text) {
		case ai.IntentConfirmation:
			sc.PhoneRetry++
			b.sendAction(transport.ActionShowConversation)
			return dialogue.AskPhoneMessage, nil
		case ai.IntentDecline:
			b.sendAction(transport.ActionShowTop)
			b.sendAction(transport.ActionShowSorry)
			sc.WorkflowActive = false
			suffix := b.sonaemonoSuffix(sc)
			b.deps.Sessions.End()
			return dialogue.Apology(suffix), nil
		default:
			b.say(dialogue.ConfirmRetryMessage)
		}
	}
}

// extractPhoneStep runs one attempt of the phone extraction ladder.
// It returns the next re-prompt, or "" once a phone is stored or the
// retries ran out.
func (b *base) extractPhoneStep(ctx context.Context, sc *session.Context, input string) string {
	if sc.Phone != "" || sc.PhoneRetry > session.MaxPhoneRetries {
		return ""
	}
	phone, outcome := b.deps.Extractor.ExtractPhone(ctx, input)
	switch outcome {
	case ai.PhoneValid:
		sc.Phone = phone
		sc.PhoneCorrect = true
		return ""
	case ai.PhoneInvalid:
		sc.PhoneRetry++
		b.sendAction(transport.ActionShowPhone)
		b.sendAction(transport.ActionShowNumKeyboard)
		return dialogue.AskPhoneKeyboardMessage
	default:
		sc.PhoneRetry++
		b.sendAction(transport.ActionShowPhone)
		b.sendAction(transport.ActionShowNumKeyboard)
		if sc.PhoneRetry == 2 {
			return dialogue.AskKeyboardMessage
		}
		return dialogue.AskCorrectPhoneMessage
	}
}

// endAskPhone closes the session after the phone could not be
// collected at all
func (b *base) endAskPhone(sc *session.Context) string {
	sc.WorkflowActive = false
	b.sendAction(transport.ActionShowTop)
	b.deps.Sessions.End()
	return dialogue.EndAskPhone("")
}
