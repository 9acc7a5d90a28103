package session

import (
	"time"
)

// ConversationState tracks where a visitor is in the handoff flow
type ConversationState string

const (
	StateGatherUserInfo    ConversationState = "GATHER_USER_INFO"
	StateConfirmUserInfo   ConversationState = "CONFIRM_USER_INFO"
	StateCheckAvailability ConversationState = "CHECK_AVAILABILITY"
	StateGatherContactInfo ConversationState = "GATHER_CONTACT_INFO"
)

// Retry ceilings per gathered field. Once a ceiling is reached the
// workflow switches to an explicit input fallback or terminates.
const (
	MaxNameRetries    = 3
	MaxPurposeRetries = 2
	MaxPhoneRetries   = 3
)

// MemoryEntry is one visitor/avatar exchange in arrival order
type MemoryEntry struct {
	Visitor string
	Avatar  string
}

// Context holds the mutable state of one visitor session. It is
// exclusively owned by the active workflow; nothing else writes it
// while a session is in progress.
type Context struct {
	SessionID string
	StartTime time.Time
	EndTime   time.Time

	State    ConversationState
	ButtonID string

	Name    string
	Purpose string
	Phone   string
	// PhoneCorrect is true only after the stored phone passed format
	// validation. A phone value is never dispatched without it.
	PhoneCorrect bool

	NameRetry    int
	PurposeRetry int
	PhoneRetry   int

	// WorkflowActive locks the router into the active workflow until
	// the workflow reaches a terminal state and clears it.
	WorkflowActive bool
	LastToolName   string

	memoryLog []MemoryEntry
}

// NewContext returns a context in its initial state
func NewContext() *Context {
	return &Context{State: StateGatherUserInfo}
}

// AddMemory appends one exchange to the transcript
func (c *Context) AddMemory(visitor, avatar string) {
	c.memoryLog = append(c.memoryLog, MemoryEntry{Visitor: visitor, Avatar: avatar})
}

// Memory returns the transcript in insertion order
func (c *Context) Memory() []MemoryEntry {
	return c.memoryLog
}

// Active reports whether a session is currently in progress
func (c *Context) Active() bool {
	return c.SessionID != ""
}

// Reset clears the context back to the unset state
func (c *Context) Reset() {
	*c = Context{State: StateGatherUserInfo}
}
