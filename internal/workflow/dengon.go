package workflow

import (
	"context"

	"github.com/skomatsu/stella/internal/ai"
	"github.com/skomatsu/stella/internal/config"
	"github.com/skomatsu/stella/internal/dialogue"
	"github.com/skomatsu/stella/internal/notify"
	"github.com/skomatsu/stella/internal/session"
	"github.com/skomatsu/stella/internal/transport"
	"github.com/skomatsu/stella/pkg/logger"
)

// Dengon records a message for the main responder. The visitor's first
// utterance becomes the message body, the name is gathered with the
// usual ladder, and a callback number is collected only on request.
type Dengon struct {
	base
}

// NewDengon creates a message-taking workflow bound to one session
func NewDengon(deps Deps) *Dengon {
	return &Dengon{base: base{deps: deps, log: deps.Logger.Named("dengon")}}
}

// Name implements Workflow
func (w *Dengon) Name() string { return "dengon" }

// Step implements Workflow
func (w *Dengon) Step(ctx context.Context, input string, mode config.Mode) (string, error) {
	switch w.deps.Sessions.Context().State {
	case session.StateGatherContactInfo:
		return w.gatherContactInfo(ctx, input)
	case session.StateConfirmUserInfo:
		return w.showConfirmInfo(ctx)
	default:
		return w.gatherInfo(ctx, input)
	}
}

func (w *Dengon) gatherInfo(ctx context.Context, input string) (string, error) {
	sc := w.deps.Sessions.Context()

	name, _ := w.deps.Extractor.ExtractVendorNamePurpose(ctx, input)
	if sc.Purpose == "" {
		// The whole utterance is the message body
		sc.Purpose = input
	}
	if name != "" && sc.Name == "" {
		sc.Name = name
	}

	if sc.Name == "" && sc.NameRetry < session.MaxNameRetries {
		sc.NameRetry++
		if sc.NameRetry < session.MaxNameRetries {
			if sc.NameRetry == 1 {
				return dialogue.AskNameMessage, nil
			}
			return dialogue.AskRetry("お名前"), nil
		}
		w.sendAction(transport.ActionShowName)
		w.sendAction(transport.ActionShowKeyboard)
		return dialogue.AskKeyboardMessage, nil
	}

	w.sendConfirmAction(dialogue.AskNeedCallbackText, transport.ActionShowConfirmYesNo)
	w.say(dialogue.ConfirmNeedCallbackMessage)
	return w.checkNeedCallback(ctx)
}

func (w *Dengon) checkNeedCallback(ctx context.Context) (string, error) {
	sc := w.deps.Sessions.Context()
	sc.State = session.StateGatherContactInfo
	for {
		res, err := w.waitReply(ctx)
		if err != nil {
			return "", err
		}
		if res.Kind == session.WaitTimeout {
			return w.handleTimeout(dialogue.TimeoutMessage), nil
		}
		switch w.deps.Classifier.ClassifyYesNo(ctx, res.Text) {
		case ai.IntentConfirmation:
			sc.PhoneRetry++
			w.sendAction(transport.ActionShowConversation)
			return dialogue.AskPhoneMessage, nil
		case ai.IntentDecline:
			sc.State = session.StateConfirmUserInfo
			return w.showConfirmInfo(ctx)
		default:
			w.say(dialogue.ConfirmRetryMessage)
		}
	}
}

func (w *Dengon) gatherContactInfo(ctx context.Context, input string) (string, error) {
	sc := w.deps.Sessions.Context()
	if prompt := w.extractPhoneStep(ctx, sc, input); prompt != "" {
		return prompt, nil
	}
	if sc.Phone == "" {
		return w.endAskPhone(sc), nil
	}

	w.sendChatAction("", transport.ActionShowConfirmDengon)
	w.say(dialogue.ConfirmDengon(sc.Name))
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
			body := dialogue.DengonRequest(sc.Name, sc.Purpose)
			target := w.deps.Parties.MainParty()
			var closing string
			if sc.PhoneCorrect {
				w.deps.Notifier.PushContactCard(ctx, target, notify.ContactCard{
					Name:  sc.Name,
					Phone: sc.Phone,
					Body:  body,
					Title: dialogue.ButtonTitle(sc.ButtonID),
				})
				closing = dialogue.DengonMessage
			} else {
				w.deps.Notifier.PushNote(ctx, target, dialogue.ButtonTitle(sc.ButtonID), body)
				closing = dialogue.EndAskPhoneDengonMessage
			}
			w.sendAction(transport.ActionShowTop)
			sc.WorkflowActive = false
			w.deps.Sessions.End()
			return closing, nil
		}
	}
}

func (w *Dengon) showConfirmInfo(ctx context.Context) (string, error) {
	sc := w.deps.Sessions.Context()
	confirm := dialogue.ConfirmMessageDefault
	if sc.Name != "" || sc.Purpose != "" {
		confirm = dialogue.ConfirmDengon(sc.Name)
	}

	w.sendChatAction("", transport.ActionShowConfirmDengon)
	w.say(confirm)
	return w.sendDengon(ctx)
}

func (w *Dengon) sendDengon(ctx context.Context) (string, error) {
	sc := w.deps.Sessions.Context()
	for {
		res, err := w.waitReply(ctx)
		if err != nil {
			return "", err
		}
		if res.Kind == session.WaitTimeout {
			return w.handleTimeout(dialogue.TimeoutMessage), nil
		}
		intent := w.deps.Classifier.ClassifyCorrection(ctx, res.Text)
		w.log.Info("Message confirmation reply",
			logger.String("reply", res.Text),
			logger.String("intent", intent))
		switch intent {
		case ai.IntentConfirmation:
			w.deps.Notifier.PushNote(ctx, w.deps.Parties.MainParty(),
				dialogue.ButtonTitle(sc.ButtonID), dialogue.DengonRequest(sc.Name, sc.Purpose))
			w.sendAction(transport.ActionShowTop)
			sc.WorkflowActive = false
			w.deps.Sessions.End()
			return dialogue.DengonMessage, nil
		case ai.IntentCorrection:
			w.say(dialogue.CorrectInfoMessage)
		default:
			w.say(dialogue.ConfirmRetryMessage)
		}
	}
}
