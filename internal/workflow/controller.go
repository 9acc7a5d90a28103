package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/skomatsu/stella/internal/dialogue"
	"github.com/skomatsu/stella/internal/transport"
	"github.com/skomatsu/stella/pkg/logger"
)

// factories build the workflow bound to a session when it starts.
// Fresh instances per session keep per-run state like the first-pass
// purpose preset out of the shared dependencies.
var factories = map[string]func(Deps) Workflow{
	"call_person": func(d Deps) Workflow { return NewCallPerson(d) },
	"delivery":    func(d Deps) Workflow { return NewDelivery(d) },
	"dengon":      func(d Deps) Workflow { return NewDengon(d) },
}

// workflowForButton maps an entry button to the workflow that owns it
func workflowForButton(buttonID string) string {
	switch buttonID {
	case dialogue.ButtonDelivery:
		return "delivery"
	case dialogue.ButtonDengon:
		return "dengon"
	default:
		return "call_person"
	}
}

// Controller routes visitor utterances into the workflow locked to the
// active session. While the lock is held, free routing is suspended:
// every utterance goes to the bound workflow and nowhere else. At most
// one step runs at a time; utterances arriving mid-step are dropped.
type Controller struct {
	mu       sync.Mutex
	inFlight bool
	stepDone chan struct{}
	bound    Workflow

	deps   Deps
	logger *logger.Logger
}

// NewController creates a controller over the shared dependencies
func NewController(deps Deps) *Controller {
	return &Controller{
		deps:   deps,
		logger: deps.Logger.Named("controller"),
	}
}

// StartSession begins a new session for the given entry button, binds
// its workflow, and engages the routing lock. Any prior session is
// ended first, through the same path EndSession takes, and the call
// blocks until its in-flight step has unwound so a stale step can
// neither consume the new session's events nor end it.
func (c *Controller) StartSession(buttonID string) {
	c.unwindPrior()

	c.mu.Lock()
	defer c.mu.Unlock()

	sc := c.deps.Sessions.Start(buttonID)
	name := workflowForButton(buttonID)
	c.bound = factories[name](c.deps)
	sc.WorkflowActive = true
	sc.LastToolName = name
	c.logger.Info("Workflow bound",
		logger.String("session_id", sc.SessionID),
		logger.String("workflow", name))
}

// EndSession releases the bound workflow and finishes the session
func (c *Controller) EndSession() {
	c.mu.Lock()
	c.bound = nil
	c.mu.Unlock()
	c.deps.Sessions.End()
}

// unwindPrior ends any open session and waits for its in-flight step
// to finish. Ending the session cancels the step's context and fires
// the turn channel's end signal, so the wait is bounded by how fast
// the step observes those.
func (c *Controller) unwindPrior() {
	c.mu.Lock()
	c.bound = nil
	done := c.stepDone
	inFlight := c.inFlight
	c.mu.Unlock()

	c.deps.Sessions.End()
	if inFlight && done != nil {
		c.logger.Info("Waiting for the previous workflow step to unwind")
		<-done
	}
}

// HandleUtterance runs one workflow step for a visitor utterance that
// no outstanding wait consumed. Blocks until the step finishes; run it
// on its own goroutine.
func (c *Controller) HandleUtterance(ctx context.Context, input string) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		c.logger.Warn("A workflow step is already running, dropping utterance")
		return
	}
	sc := c.deps.Sessions.Context()
	if !sc.Active() {
		c.mu.Unlock()
		c.logger.Info("No active session, ignoring utterance")
		return
	}
	wf := c.bound
	if !sc.WorkflowActive || wf == nil {
		c.mu.Unlock()
		c.logger.Warn("No workflow holds the routing lock, failing closed",
			logger.String("last_tool", sc.LastToolName))
		sc.AddMemory(input, dialogue.RoutingFallbackMessage)
		c.deps.Out.Send(transport.Chat(dialogue.RoutingFallbackMessage))
		return
	}
	c.inFlight = true
	done := make(chan struct{})
	c.stepDone = done
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.stepDone = nil
		c.mu.Unlock()
		close(done)
	}()

	sc.LastToolName = wf.Name()
	sc.AddMemory(input, "")
	mode := c.deps.Modes.Mode()

	reply, err := wf.Step(ctx, input, mode)
	if err != nil {
		if !errors.Is(err, ErrAborted) {
			c.logger.Error("Workflow step failed", logger.Error(err))
		}
		// The session is over either way; make sure it is finalized
		// and say nothing.
		c.deps.Sessions.End()
		return
	}
	if reply == "" {
		return
	}
	reply = strings.Trim(reply, "「」")
	if c.deps.Sessions.Active() {
		c.deps.Sessions.Context().AddMemory("", reply)
	}
	c.deps.Out.Send(transport.Chat(reply))
}

// Busy reports whether a workflow step is currently running
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}
