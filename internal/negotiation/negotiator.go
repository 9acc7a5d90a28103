package negotiation

import (
	"context"
	"fmt"
	"time"

	"github.com/skomatsu/stella/pkg/logger"
)

// PersonAvailable is the outcome label returned when at least one party
// replied within the window
const PersonAvailable = "対応できるもの"

// Notifier is the outbound push channel the negotiator needs. Failures
// are the implementation's problem; the negotiator treats an unreached
// party as silent.
type Notifier interface {
	PushCheckAvailability(ctx context.Context, partyID, message, title string)
	PushText(ctx context.Context, partyID, text string)
}

// Result is the outcome of one negotiation round
type Result struct {
	// PersonLabel is PersonAvailable when anyone replied, "" on silence
	PersonLabel string
	// Response is the best-ranked reply, ResponseCannot on silence
	Response string
}

// Negotiator fans an availability request out to remote parties,
// collects their replies for a fixed window, and ranks the outcome.
type Negotiator struct {
	store    *Store
	notifier Notifier
	window   time.Duration
	labels   map[string]string
	logger   *logger.Logger

	// sleep is the window wait, replaceable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewNegotiator creates a negotiator over the given store and push
// channel. labels maps party IDs to the display names used in reply
// notices to the other parties.
func NewNegotiator(store *Store, notifier Notifier, window time.Duration, labels map[string]string, log *logger.Logger) *Negotiator {
	return &Negotiator{
		store:    store,
		notifier: notifier,
		window:   window,
		labels:   labels,
		logger:   log.Named("negotiator"),
		sleep:    sleepCtx,
	}
}

// Negotiate sends message to every party, waits the full window, then
// consumes and ranks the recorded replies. Replies are popped in party
// order; each one triggers a notice to the other parties naming the
// replier. Ranking is ResponseNow over ResponseSoon over ResponseCannot
// with first-received tie-break. Silence resolves to ("", ResponseCannot).
// A cancelled context aborts the round and returns an error.
func (n *Negotiator) Negotiate(ctx context.Context, parties []string, message, title string) (Result, error) {
	for _, partyID := range parties {
		n.notifier.PushCheckAvailability(ctx, partyID, message, title)
		n.store.MarkSent(partyID)
	}
	n.logger.Info("Availability request sent",
		logger.Int("parties", len(parties)),
		logger.Duration("window", n.window))

	// The window is a plain deadline. Visitor input during it is handled
	// by the enclosing workflow and never shortens the wait.
	if err := n.sleep(ctx, n.window); err != nil {
		n.logger.Info("Negotiation cancelled", logger.Error(err))
		return Result{}, fmt.Errorf("negotiation aborted: %w", err)
	}

	type candidate struct {
		partyID string
		resp    Response
	}
	var candidates []candidate
	for i, partyID := range parties {
		resp, ok := n.store.Pop(partyID)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{partyID: partyID, resp: resp})

		notice := fmt.Sprintf("%sは「%s」と返信しました。", n.partyLabel(partyID), resp.Label)
		for j, other := range parties {
			if i == j {
				continue
			}
			n.notifier.PushText(ctx, other, notice)
		}
	}

	if len(candidates) == 0 {
		n.logger.Info("No replies within the window")
		return Result{PersonLabel: "", Response: ResponseCannot}, nil
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		switch {
		case rankIndex(c.resp.Label) < rankIndex(best.resp.Label):
			best = c
		case rankIndex(c.resp.Label) == rankIndex(best.resp.Label) &&
			c.resp.ReceivedAt.Before(best.resp.ReceivedAt):
			best = c
		}
	}
	n.logger.Info("Negotiation resolved",
		logger.String("party_id", best.partyID),
		logger.String("response", best.resp.Label),
		logger.Int("replies", len(candidates)))
	return Result{PersonLabel: PersonAvailable, Response: best.resp.Label}, nil
}

func (n *Negotiator) partyLabel(partyID string) string {
	if label, ok := n.labels[partyID]; ok {
		return label
	}
	return partyID
}

func rankIndex(label string) int {
	for i, known := range rankOrder {
		if label == known {
			return i
		}
	}
	return len(rankOrder)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
