package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skomatsu/stella/internal/dialogue"
	"github.com/skomatsu/stella/internal/session"
	"github.com/skomatsu/stella/pkg/logger"
)

func newTestStorage(t *testing.T) *SessionStorage {
	t.Helper()
	storage, err := NewSessionStorage(filepath.Join(t.TempDir(), "test.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	return storage
}

func testSession(id string, start time.Time) *session.Context {
	sc := session.NewContext()
	sc.SessionID = id
	sc.ButtonID = "button_1"
	sc.StartTime = start
	sc.EndTime = start.Add(3 * time.Minute)
	sc.Name = "田中"
	sc.Purpose = "法事の相談"
	sc.Phone = "090-1234-5678"
	sc.PhoneCorrect = true
	sc.AddMemory("こんにちは", "")
	sc.AddMemory("", "いらっしゃいませ")
	return sc
}

func TestSessionRoundTrip(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC)
	require.NoError(t, storage.SaveSession(ctx, testSession("session_20260830_101500_1", start)))

	record, err := storage.GetSession(ctx, "session_20260830_101500_1")
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "button_1", record.ButtonID)
	require.Equal(t, "田中", record.VisitorName)
	require.Equal(t, "法事の相談", record.Purpose)
	require.Equal(t, "090-1234-5678", record.Phone)
	require.True(t, record.PhoneCorrect)
	require.True(t, record.StartedAt.Equal(start))
	require.True(t, record.EndedAt.Equal(start.Add(3*time.Minute)))

	require.Len(t, record.Transcript, 2)
	require.Equal(t, "こんにちは", record.Transcript[0].Visitor)
	require.Equal(t, "いらっしゃいませ", record.Transcript[1].Avatar)
}

func TestLiveSessionTranscriptReconstructsConversation(t *testing.T) {
	storage := newTestStorage(t)
	manager := session.NewManager(storage, t.TempDir(), dialogue.ButtonTitles, logger.NewNop())

	sc := manager.Start(dialogue.ButtonGeneral)
	sc.AddMemory("", dialogue.Greet("ja"))
	sc.AddMemory("田中です。法事の相談で来ました。", "")
	sc.AddMemory("", dialogue.Confirm("田中", "法事の相談"))
	sc.AddMemory("はい", "")
	sc.AddMemory("", dialogue.Unavailable("ご連絡先"))
	sc.Name = "田中"
	sc.Purpose = "法事の相談"

	id := sc.SessionID
	live := append([]session.MemoryEntry(nil), sc.Memory()...)
	manager.End()

	// The stored transcript replays the live exchange line for line
	record, err := storage.GetSession(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "田中", record.VisitorName)
	require.Equal(t, "法事の相談", record.Purpose)
	require.Len(t, record.Transcript, len(live))
	for i, entry := range live {
		require.Equal(t, entry.Visitor, record.Transcript[i].Visitor)
		require.Equal(t, entry.Avatar, record.Transcript[i].Avatar)
	}
}

func TestGetSessionMissing(t *testing.T) {
	storage := newTestStorage(t)

	record, err := storage.GetSession(context.Background(), "session_20260830_000000_1")
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestSaveSessionReplacesEarlierRecord(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC)
	sc := testSession("session_20260830_101500_1", start)
	require.NoError(t, storage.SaveSession(ctx, sc))

	sc.Purpose = "納骨の相談"
	sc.AddMemory("納骨についてです", "")
	require.NoError(t, storage.SaveSession(ctx, sc))

	record, err := storage.GetSession(ctx, sc.SessionID)
	require.NoError(t, err)
	require.Equal(t, "納骨の相談", record.Purpose)
	require.Len(t, record.Transcript, 3)

	records, err := storage.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestListSessionsNewestFirstWithLimit(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		start := base.Add(time.Duration(i) * time.Hour)
		id := fmt.Sprintf("session_20260830_%02d0000_1", 9+i)
		require.NoError(t, storage.SaveSession(ctx, testSession(id, start)))
	}

	records, err := storage.ListSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.True(t, records[0].StartedAt.After(records[1].StartedAt))
	require.Empty(t, records[0].Transcript)
}
