package api

import (
	"encoding/json"
	"net/http"

	"github.com/skomatsu/stella/internal/config"
	"github.com/skomatsu/stella/internal/dialogue"
	"github.com/skomatsu/stella/internal/negotiation"
	"github.com/skomatsu/stella/internal/notify"
	"github.com/skomatsu/stella/pkg/logger"
)

// webhookEvent is one event in the vendor webhook payload
type webhookEvent struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Source     struct {
		UserID string `json:"userId"`
	} `json:"source"`
	Message struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

// WebhookHandler processes inbound messages from the remote parties'
// messaging app: availability replies during a negotiation and mode
// switch commands.
type WebhookHandler struct {
	store    *negotiation.Store
	notifier notify.Notifier
	modes    *config.ModeStore
	parties  []string
	labels   map[string]string
	logger   *logger.Logger
}

// NewWebhookHandler creates a webhook handler. parties lists every
// known party ID for mode change fan-out; labels maps party IDs to the
// display names used in mode change notices.
func NewWebhookHandler(store *negotiation.Store, notifier notify.Notifier, modes *config.ModeStore, parties []string, labels map[string]string, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		store:    store,
		notifier: notifier,
		modes:    modes,
		parties:  parties,
		labels:   labels,
		logger:   log.Named("webhook"),
	}
}

// Handle processes one webhook delivery. The vendor expects a 200
// regardless of how individual events were handled.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Events []webhookEvent `json:"events"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Error("Failed to decode webhook payload", logger.Error(err))
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	for _, event := range payload.Events {
		if event.Type != "message" || event.Message.Type != "text" {
			continue
		}
		h.handleText(r, event)
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) handleText(r *http.Request, event webhookEvent) {
	userID := event.Source.UserID
	text := event.Message.Text

	h.logger.Info("Webhook message received",
		logger.String("party_id", userID),
		logger.String("text", text))

	if ack, ok := dialogue.AvailabilityAcks[text]; ok {
		h.store.SetResponse(userID, text)
		h.notifier.Reply(r.Context(), event.ReplyToken, ack)
		return
	}

	if mode := config.Mode(text); config.ValidMode(mode) {
		h.changeMode(r, event, mode)
		return
	}

	h.notifier.Reply(r.Context(), event.ReplyToken, dialogue.UnknownRequestReply)
}

// changeMode switches the reception mode, acknowledges the sender, and
// notifies every other party who made the change.
func (h *WebhookHandler) changeMode(r *http.Request, event webhookEvent, mode config.Mode) {
	h.modes.SetMode(mode)
	h.logger.Info("Reception mode changed via webhook",
		logger.String("party_id", event.Source.UserID),
		logger.String("mode", string(mode)))

	h.notifier.Reply(r.Context(), event.ReplyToken, dialogue.ModeChanged(string(mode)))

	label := h.labels[event.Source.UserID]
	if label == "" {
		label = event.Source.UserID
	}
	notice := dialogue.ModeChangeNotice(label, string(mode))
	for _, partyID := range h.parties {
		if partyID == event.Source.UserID {
			continue
		}
		h.notifier.PushText(r.Context(), partyID, notice)
	}
}
