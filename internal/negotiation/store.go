package negotiation

import (
	"sync"
	"time"

	"github.com/skomatsu/stella/pkg/logger"
)

// Availability reply labels in rank order, best first
const (
	ResponseNow    = "今すぐ対応する"
	ResponseSoon   = "2分以内に対応する"
	ResponseCannot = "対応出来ない"
)

var rankOrder = []string{ResponseNow, ResponseSoon, ResponseCannot}

// KnownResponse reports whether label is one of the recognized
// availability replies. Anything else is treated as silence.
func KnownResponse(label string) bool {
	for _, known := range rankOrder {
		if label == known {
			return true
		}
	}
	return false
}

// Response is one party's recorded availability reply
type Response struct {
	Label      string
	ReceivedAt time.Time
}

// Store holds per-party availability replies. Replies are accepted only
// within the window after the request was sent, duplicates are
// suppressed, and Pop consumes atomically so a reply is never ranked
// twice.
type Store struct {
	mu        sync.Mutex
	window    time.Duration
	sentAt    map[string]time.Time
	responses map[string]Response

	now    func() time.Time
	logger *logger.Logger
}

// NewStore creates a store accepting replies for the given window
func NewStore(window time.Duration, log *logger.Logger) *Store {
	return &Store{
		window:    window,
		sentAt:    make(map[string]time.Time),
		responses: make(map[string]Response),
		now:       time.Now,
		logger:    log.Named("availability"),
	}
}

// MarkSent stamps the time an availability request went out to a party.
// The reply window for that party starts here.
func (s *Store) MarkSent(partyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentAt[partyID] = s.now()
}

// SetResponse records a party's reply. It reports whether the reply was
// accepted. Replies are rejected when no request was sent to the party,
// when the window has expired, when the label is unrecognized, or when
// it duplicates the stored reply. A different reply within the window
// overwrites the stored one.
func (s *Store) SetResponse(partyID, label string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sent, ok := s.sentAt[partyID]
	if !ok {
		s.logger.Info("No availability request outstanding for party, reply ignored",
			logger.String("party_id", partyID))
		return false
	}
	now := s.now()
	if now.Sub(sent) > s.window {
		s.logger.Info("Reply arrived after the window, ignored",
			logger.String("party_id", partyID),
			logger.String("response", label))
		return false
	}
	if !KnownResponse(label) {
		s.logger.Warn("Unrecognized availability reply, treated as silence",
			logger.String("party_id", partyID),
			logger.String("response", label))
		return false
	}
	if current, ok := s.responses[partyID]; ok && current.Label == label {
		s.logger.Info("Duplicate reply ignored",
			logger.String("party_id", partyID),
			logger.String("response", label))
		return false
	}

	s.responses[partyID] = Response{Label: label, ReceivedAt: now}
	s.logger.Info("Availability reply stored",
		logger.String("party_id", partyID),
		logger.String("response", label))
	return true
}

// Pop atomically consumes a party's reply along with its request stamp.
// A popped reply can never be observed again.
func (s *Store) Pop(partyID string) (Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sentAt, partyID)
	resp, ok := s.responses[partyID]
	if ok {
		delete(s.responses, partyID)
	}
	return resp, ok
}

// ClearAll drops every stamp and reply
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentAt = make(map[string]time.Time)
	s.responses = make(map[string]Response)
}
