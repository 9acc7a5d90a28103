package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/skomatsu/stella/pkg/logger"
)

const timestampLayout = "2006-01-02 15:04:05"

// Store persists finished sessions. Implemented by the SQLite storage;
// a nil Store disables database persistence.
type Store interface {
	SaveSession(ctx context.Context, sc *Context) error
}

// Manager owns the single active session: it allocates session IDs,
// brackets the session with start/end, and flushes the per-session log
// file plus the database record when a session finishes.
type Manager struct {
	mu      sync.Mutex
	ctx     *Context
	turn    *TurnChannel
	counter map[string]int

	stepCtx context.Context
	cancel  context.CancelFunc

	store        Store
	logDir       string
	buttonTitles map[string]string
	logger       *logger.Logger
}

// NewManager creates a session manager writing per-session log files
// under logDir. store may be nil. buttonTitles maps entry-point button
// IDs to the display titles recorded in the log file.
func NewManager(store Store, logDir string, buttonTitles map[string]string, log *logger.Logger) *Manager {
	// Outside a session the step context is already cancelled so any
	// stale step that picks it up aborts immediately
	stepCtx, cancel := context.WithCancel(context.Background())
	cancel()
	return &Manager{
		ctx:          NewContext(),
		turn:         NewTurnChannel(log),
		counter:      make(map[string]int),
		stepCtx:      stepCtx,
		cancel:       cancel,
		store:        store,
		logDir:       logDir,
		buttonTitles: buttonTitles,
		logger:       log.Named("session"),
	}
}

// Turn returns the turn-synchronization channel for the active session
func (m *Manager) Turn() *TurnChannel {
	return m.turn
}

// Context returns the current session context. Outside a session the
// context is in its unset state.
func (m *Manager) Context() *Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx
}

// SessionContext returns a context cancelled when the current session
// ends or is replaced. Outside a session it is already cancelled.
// Workflow steps run under it so negotiation windows and other
// blocking work unwind as soon as the session goes away.
func (m *Manager) SessionContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stepCtx
}

// Active reports whether a session is in progress
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx.Active()
}

// Start begins a new session, first ending and persisting any prior
// session that was still open. A wait parked on the turn channel is
// released with the end signal before the channel is re-armed, so the
// old step cannot consume events meant for the new session. Returns
// the fresh context.
func (m *Manager) Start(buttonID string) *Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Active() {
		m.logger.Info("Finalizing previous session before starting a new one",
			logger.String("session_id", m.ctx.SessionID))
		m.turn.End()
		m.cancel()
		m.finalizeLocked()
	}

	m.ctx.Reset()
	m.turn.Reset()
	m.stepCtx, m.cancel = context.WithCancel(context.Background())
	m.ctx.SessionID = m.generateSessionID()
	m.ctx.StartTime = time.Now().Truncate(time.Second)
	m.ctx.ButtonID = buttonID

	m.logger.Info("Session started",
		logger.String("session_id", m.ctx.SessionID),
		logger.String("button_id", buttonID))
	return m.ctx
}

// End finishes the active session: it aborts any outstanding wait,
// stamps the end time, writes the log file, stores the session, and
// resets the context. Calling End with no active session is a no-op.
func (m *Manager) End() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ctx.Active() {
		return
	}
	m.turn.End()
	m.cancel()
	m.logger.Info("Ending session", logger.String("session_id", m.ctx.SessionID))
	m.finalizeLocked()
	m.ctx.Reset()
}

// finalizeLocked stamps the end time, flushes the session log file and
// persists the record. Caller holds m.mu.
func (m *Manager) finalizeLocked() {
	if m.ctx.EndTime.IsZero() {
		m.ctx.EndTime = time.Now().Truncate(time.Second)
	}
	if err := m.writeSessionLog(m.ctx); err != nil {
		m.logger.Error("Failed to write session log file",
			logger.String("session_id", m.ctx.SessionID),
			logger.Error(err))
	}
	if m.store != nil {
		if err := m.store.SaveSession(context.Background(), m.ctx); err != nil {
			m.logger.Error("Failed to persist session",
				logger.String("session_id", m.ctx.SessionID),
				logger.Error(err))
		}
	}
}

// generateSessionID produces session_YYYYMMDD_HHMMSS_N where N is a
// monotonic counter scoped to the current date. Caller holds m.mu.
func (m *Manager) generateSessionID() string {
	now := time.Now()
	dateStr := now.Format("20060102")
	timeStr := now.Format("150405")
	m.counter[dateStr]++
	return fmt.Sprintf("session_%s_%s_%d", dateStr, timeStr, m.counter[dateStr])
}

// writeSessionLog writes one log file per session with the visitor's
// details and the deduplicated transcript.
func (m *Manager) writeSessionLog(sc *Context) error {
	if err := os.MkdirAll(m.logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create session log directory: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "セッションID  : %s\n", sc.SessionID)
	fmt.Fprintf(&b, "開始時刻  : %s\n", sc.StartTime.Format(timestampLayout))
	if sc.EndTime.IsZero() {
		fmt.Fprintf(&b, "終了時刻  : 進行中\n")
	} else {
		fmt.Fprintf(&b, "終了時刻  : %s\n", sc.EndTime.Format(timestampLayout))
	}
	fmt.Fprintf(&b, "選択したボタン    : %s\n", m.buttonTitle(sc.ButtonID))
	fmt.Fprintf(&b, "来訪者氏名    : %s\n", orNotProvided(sc.Name))
	fmt.Fprintf(&b, "来訪目的  : %s\n", orNotProvided(sc.Purpose))
	fmt.Fprintf(&b, "連絡先    : %s\n", orNotProvided(sc.Phone))
	b.WriteString("\n会話ログ :\n")

	// Consecutive duplicate lines are collapsed so repeated prompts do
	// not clutter the transcript
	previous := ""
	for _, entry := range sc.Memory() {
		if v := strings.TrimSpace(entry.Visitor); v != "" {
			line := "来訪者: " + v
			if line != previous {
				b.WriteString(line + "\n")
				previous = line
			}
		}
		if a := strings.TrimSpace(entry.Avatar); a != "" {
			line := "アバター: " + a
			if line != previous {
				b.WriteString(line + "\n")
				previous = line
			}
		}
	}

	path := filepath.Join(m.logDir, sc.SessionID+".log")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write session log: %w", err)
	}
	m.logger.Info("Session log written", logger.String("path", path))
	return nil
}

func (m *Manager) buttonTitle(buttonID string) string {
	if title, ok := m.buttonTitles[buttonID]; ok {
		return title
	}
	return "一般会話"
}

func orNotProvided(value string) string {
	if strings.TrimSpace(value) == "" {
		return "未入力"
	}
	return value
}
