package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/skomatsu/stella/pkg/logger"
)

// ErrWaitInProgress is returned when a second Wait is attempted while
// one is already outstanding. The orchestrator runs one step at a time,
// so this always indicates a programming error in the caller.
var ErrWaitInProgress = errors.New("a wait is already outstanding for this session")

// WaitKind discriminates the possible outcomes of TurnChannel.Wait
type WaitKind int

const (
	// WaitUtterance means the visitor said something; Text carries it
	WaitUtterance WaitKind = iota
	// WaitEnded means the session was terminated while waiting
	WaitEnded
	// WaitTimeout means the visitor stayed silent past the deadline
	WaitTimeout
)

// WaitResult is the single outcome of one Wait call
type WaitResult struct {
	Kind WaitKind
	Text string
}

// TurnChannel lets a workflow step suspend until the next visitor
// utterance, a keep-alive touch, a timeout, or session termination.
// Touch resets the countdown without waking the waiter. At most one
// Wait may be outstanding at a time.
type TurnChannel struct {
	mu         sync.Mutex
	waiting    bool
	utterances chan string
	touches    chan struct{}
	end        chan struct{}

	logger *logger.Logger
}

// NewTurnChannel creates an armed turn channel ready for a session
func NewTurnChannel(log *logger.Logger) *TurnChannel {
	return &TurnChannel{
		utterances: make(chan string, 1),
		touches:    make(chan struct{}, 1),
		end:        make(chan struct{}),
		logger:     log.Named("turn"),
	}
}

// Wait suspends until one of: the session ends (WaitEnded), the visitor
// speaks (WaitUtterance with trimmed text), or timeout elapses
// (WaitTimeout). A touch signal restarts the countdown and keeps
// waiting. The end signal wins any race with a simultaneous utterance
// or timeout. Context cancellation is treated as session end.
func (t *TurnChannel) Wait(ctx context.Context, timeout time.Duration) (WaitResult, error) {
	t.mu.Lock()
	if t.waiting {
		t.mu.Unlock()
		return WaitResult{}, ErrWaitInProgress
	}
	// Drop anything left over from a previous wait's loser race
	select {
	case <-t.utterances:
	default:
	}
	select {
	case <-t.touches:
	default:
	}
	t.waiting = true
	end := t.end
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.waiting = false
		t.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer stopTimer(timer)

	for {
		// End takes priority over any other ready event
		select {
		case <-end:
			t.logger.Info("Session end detected, aborting wait")
			return WaitResult{Kind: WaitEnded}, nil
		default:
		}

		select {
		case <-end:
			t.logger.Info("Session end detected, aborting wait")
			return WaitResult{Kind: WaitEnded}, nil
		case <-ctx.Done():
			t.logger.Info("Wait cancelled", logger.Error(ctx.Err()))
			return WaitResult{Kind: WaitEnded}, nil
		case text := <-t.utterances:
			return WaitResult{Kind: WaitUtterance, Text: strings.TrimSpace(text)}, nil
		case <-t.touches:
			t.logger.Debug("Touch received, restarting countdown",
				logger.Duration("timeout", timeout))
			stopTimer(timer)
			timer.Reset(timeout)
		case <-timer.C:
			t.logger.Info("Visitor response timed out",
				logger.Duration("timeout", timeout))
			return WaitResult{Kind: WaitTimeout}, nil
		}
	}
}

// Deliver hands a visitor utterance to an outstanding Wait. It reports
// false when no Wait is outstanding, in which case the caller routes
// the utterance through the controller instead.
func (t *TurnChannel) Deliver(text string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.waiting {
		return false
	}
	select {
	case t.utterances <- text:
		return true
	default:
		// The waiter is already resolving with another event
		return false
	}
}

// Touch resets the countdown of an outstanding Wait. Outside a Wait it
// is a no-op.
func (t *TurnChannel) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.waiting {
		return
	}
	select {
	case t.touches <- struct{}{}:
	default:
	}
}

// Waiting reports whether a Wait is currently outstanding
func (t *TurnChannel) Waiting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waiting
}

// End signals session termination to any outstanding Wait and to every
// Wait attempted before the next Reset. Safe to call repeatedly.
func (t *TurnChannel) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.end:
	default:
		close(t.end)
	}
}

// Reset re-arms the channel for a new session, clearing the end signal
// and any queued events
func (t *TurnChannel) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.utterances:
	default:
	}
	select {
	case <-t.touches:
	default:
	}
	select {
	case <-t.end:
		t.end = make(chan struct{})
	default:
	}
}

func stopTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
