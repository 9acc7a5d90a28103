package workflow

import (
	"github.com/skomatsu/stella/internal/ai"
	"github.com/skomatsu/stella/internal/config"
	"github.com/skomatsu/stella/internal/dialogue"
	"github.com/skomatsu/stella/internal/session"
	"github.com/skomatsu/stella/internal/transport"
	"github.com/skomatsu/stella/pkg/logger"
)

// Handler adapts inbound transport messages to the session machinery.
// Chat lands on the outstanding turn wait when one exists, otherwise
// it starts a workflow step. Actions mutate the session directly.
type Handler struct {
	controller *Controller
	sessions   *session.Manager
	modes      *config.ModeStore
	out        Outbound
	logger     *logger.Logger
}

// NewHandler creates the inbound message handler
func NewHandler(controller *Controller, sessions *session.Manager, modes *config.ModeStore, out Outbound, log *logger.Logger) *Handler {
	return &Handler{
		controller: controller,
		sessions:   sessions,
		modes:      modes,
		out:        out,
		logger:     log.Named("handler"),
	}
}

// HandleMessage implements transport.MessageHandler
func (h *Handler) HandleMessage(_ *transport.Client, msg *transport.Message) {
	switch msg.Type {
	case transport.MessageTypeChat:
		h.handleChat(msg.Message)
	case transport.MessageTypeAction:
		h.handleAction(msg.InboundAction(), msg.InboundParams())
	case transport.MessageTypeChatAction:
		if msg.InboundAction() == transport.ActionStartSession {
			// The chat part carries the pressed button's ID
			h.startSession(msg.Message)
			return
		}
		h.handleAction(msg.InboundAction(), msg.InboundParams())
	}
}

// HandleIdle shows the top menu when the kiosk sat untouched outside a
// session. Wire it to the hub's idle callback.
func (h *Handler) HandleIdle() {
	if h.sessions.Active() {
		return
	}
	h.out.Send(transport.NewAction(transport.ActionShowTop, nil))
}

func (h *Handler) handleChat(text string) {
	if !h.sessions.Active() {
		h.logger.Info("Chat outside a session, ignoring")
		return
	}
	// A step waiting on the turn channel consumes the utterance
	// directly; only unclaimed utterances start a new step.
	if h.sessions.Turn().Deliver(text) {
		return
	}
	// The step runs under the session's context so ending the session
	// unwinds it, including a negotiation window in progress.
	go h.controller.HandleUtterance(h.sessions.SessionContext(), text)
}

func (h *Handler) handleAction(actionType string, params *transport.UserProfile) {
	switch actionType {
	case transport.ActionStartSession:
		h.startSession(params.Name)
		return
	case transport.ActionCheckCurrentMode:
		h.replyCurrentMode()
		return
	case transport.ActionSetLanguage:
		if params.Name != "" {
			h.modes.SetLanguage(params.Name)
		}
		return
	case transport.ActionTouch:
		h.sessions.Turn().Touch()
		return
	}

	// Everything below mutates the active session
	if !h.sessions.Active() {
		h.logger.Info("Action outside a session, ignoring",
			logger.String("action", actionType))
		return
	}
	sc := h.sessions.Context()

	switch actionType {
	case transport.ActionEndSession:
		h.controller.EndSession()
		h.out.Send(transport.NewAction(transport.ActionEndSession, nil))

	case transport.ActionInputName:
		if params.Name != "" {
			sc.Name = params.Name
			sc.AddMemory(params.Name, "")
		}

	case transport.ActionInputPhone:
		if params.Contact != "" {
			h.storePhone(sc, params.Contact)
			sc.AddMemory(params.Contact, "")
		}

	case transport.ActionShowConfirmInfo:
		// The confirm screen sends back the edited fields
		if params.Purpose != "" {
			sc.Purpose = params.Purpose
		}
		if params.Name != "" {
			sc.Name = params.Name
		}
		if params.Contact != "" {
			h.storePhone(sc, params.Contact)
		}

	default:
		h.logger.Info("Unhandled action", logger.String("action", actionType))
	}
}

func (h *Handler) storePhone(sc *session.Context, contact string) {
	if ai.IsValidJapanesePhoneNumber(contact) {
		sc.Phone = contact
		sc.PhoneCorrect = true
		return
	}
	sc.PhoneCorrect = false
	h.logger.Warn("Rejected malformed contact input",
		logger.String("contact", contact))
}

func (h *Handler) startSession(buttonID string) {
	h.controller.StartSession(buttonID)
	greeting := dialogue.Greet(h.modes.Language())
	h.sessions.Context().AddMemory("", greeting)
	h.out.Send(transport.Chat(greeting))
}

func (h *Handler) replyCurrentMode() {
	mode := h.modes.Mode()
	h.logger.Info("Current mode requested", logger.String("mode", string(mode)))
	if mode == config.ModeHome || mode == config.ModePartial {
		h.out.Send(transport.ChatAction(dialogue.MessageForDirectCall, transport.ActionShowPhonePage, nil))
		return
	}
	h.out.Send(transport.ChatAction(dialogue.ReplyMessageForYoyakuNashi, transport.ActionShowTop, nil))
}
