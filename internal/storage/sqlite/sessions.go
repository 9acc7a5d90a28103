package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skomatsu/stella/internal/session"
	"github.com/skomatsu/stella/pkg/logger"
	_ "modernc.org/sqlite"
)

// TranscriptLine is one visitor/avatar exchange of a stored session
type TranscriptLine struct {
	Visitor string `json:"visitor,omitempty"`
	Avatar  string `json:"avatar,omitempty"`
}

// SessionRecord represents a finished visitor session in the database
type SessionRecord struct {
	SessionID    string           `json:"session_id"`
	ButtonID     string           `json:"button_id"`
	StartedAt    time.Time        `json:"started_at"`
	EndedAt      time.Time        `json:"ended_at"`
	VisitorName  string           `json:"visitor_name,omitempty"`
	Purpose      string           `json:"purpose,omitempty"`
	Phone        string           `json:"phone,omitempty"`
	PhoneCorrect bool             `json:"phone_correct"`
	Transcript   []TranscriptLine `json:"transcript,omitempty"`
}

// SessionStorage handles storage of finished visitor sessions
type SessionStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSessionStorage creates a new SQLite-based session storage
func NewSessionStorage(dbPath string, log *logger.Logger) (*SessionStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	storage := &SessionStorage{
		db:     db,
		logger: storageLogger,
	}

	if err := storage.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// Close closes the underlying database
func (s *SessionStorage) Close() error {
	return s.db.Close()
}

// initDB initializes the database tables
func (s *SessionStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			button_id TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP NOT NULL,
			visitor_name TEXT,
			purpose TEXT,
			phone TEXT,
			phone_correct BOOLEAN NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS session_transcripts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			visitor TEXT,
			avatar TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create session_transcripts table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`)
	if err != nil {
		return fmt.Errorf("failed to create started_at index: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_transcripts_session_id ON session_transcripts(session_id)`)
	if err != nil {
		return fmt.Errorf("failed to create session_id index: %w", err)
	}

	return nil
}

// SaveSession persists a finished session and its transcript. It
// implements the session manager's Store interface. Saving the same
// session twice replaces the earlier record.
func (s *SessionStorage) SaveSession(ctx context.Context, sc *session.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions
		(session_id, button_id, started_at, ended_at, visitor_name, purpose, phone, phone_correct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.SessionID,
		sc.ButtonID,
		sc.StartTime.Format(time.RFC3339),
		sc.EndTime.Format(time.RFC3339),
		sc.Name,
		sc.Purpose,
		sc.Phone,
		sc.PhoneCorrect,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM session_transcripts WHERE session_id = ?`, sc.SessionID)
	if err != nil {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}

	for i, entry := range sc.Memory() {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO session_transcripts (session_id, seq, visitor, avatar) VALUES (?, ?, ?, ?)`,
			sc.SessionID, i, entry.Visitor, entry.Avatar,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transcript line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}

	s.logger.Info("Session persisted",
		logger.String("session_id", sc.SessionID),
		logger.Int("transcript_lines", len(sc.Memory())))
	return nil
}

// GetSession returns one session with its transcript, or nil when the
// session does not exist
func (s *SessionStorage) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, button_id, started_at, ended_at, visitor_name, purpose, phone, phone_correct
		FROM sessions WHERE session_id = ?`,
		sessionID,
	)

	record, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT visitor, avatar FROM session_transcripts WHERE session_id = ? ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var visitor, avatar sql.NullString
		if err := rows.Scan(&visitor, &avatar); err != nil {
			return nil, fmt.Errorf("failed to scan transcript line: %w", err)
		}
		record.Transcript = append(record.Transcript, TranscriptLine{
			Visitor: visitor.String,
			Avatar:  avatar.String,
		})
	}

	return record, rows.Err()
}

// ListSessions returns the most recent sessions, newest first, without
// transcripts
func (s *SessionStorage) ListSessions(ctx context.Context, limit int) ([]*SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, button_id, started_at, ended_at, visitor_name, purpose, phone, phone_correct
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var records []*SessionRecord
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// scanner covers both sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*SessionRecord, error) {
	var record SessionRecord
	var startedAt, endedAt string
	var name, purpose, phone sql.NullString

	if err := row.Scan(
		&record.SessionID,
		&record.ButtonID,
		&startedAt,
		&endedAt,
		&name,
		&purpose,
		&phone,
		&record.PhoneCorrect,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	var err error
	record.StartedAt, err = time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	record.EndedAt, err = time.Parse(time.RFC3339, endedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ended_at: %w", err)
	}

	record.VisitorName = name.String
	record.Purpose = purpose.String
	record.Phone = phone.String

	return &record, nil
}
