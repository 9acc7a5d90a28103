package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skomatsu/stella/internal/config"
	"github.com/skomatsu/stella/internal/dialogue"
	"github.com/skomatsu/stella/internal/session"
	"github.com/skomatsu/stella/internal/transport"
)

func newTestHandler(t *testing.T) (*Handler, *testEnv, *Controller) {
	t.Helper()
	env := newTestEnv(t, time.Second)
	ctrl := NewController(env.deps)
	h := NewHandler(ctrl, env.deps.Sessions, env.deps.Modes, env.out, env.deps.Logger)
	return h, env, ctrl
}

func TestHandlerStartSessionGreets(t *testing.T) {
	h, env, _ := newTestHandler(t)

	h.HandleMessage(nil, &transport.Message{
		Type:    transport.MessageTypeChatAction,
		Message: dialogue.ButtonGeneral,
		Action:  &transport.Action{ActionType: transport.ActionStartSession},
	})

	sc := env.deps.Sessions.Context()
	require.True(t, sc.Active())
	require.Equal(t, dialogue.ButtonGeneral, sc.ButtonID)
	require.Contains(t, env.out.chats(), dialogue.Greet("ja"))
}

func TestHandlerChatFeedsOutstandingWait(t *testing.T) {
	h, env, _ := newTestHandler(t)
	env.deps.Sessions.Start(dialogue.ButtonGeneral)

	type waitOut struct {
		res session.WaitResult
		err error
	}
	ch := make(chan waitOut, 1)
	go func() {
		res, err := env.deps.Sessions.Turn().Wait(context.Background(), time.Second)
		ch <- waitOut{res, err}
	}()
	require.Eventually(t, func() bool {
		return env.deps.Sessions.Turn().Waiting()
	}, time.Second, 5*time.Millisecond)

	h.HandleMessage(nil, &transport.Message{Type: transport.MessageTypeChat, Message: "はい"})

	out := <-ch
	require.NoError(t, out.err)
	require.Equal(t, session.WaitUtterance, out.res.Kind)
	require.Equal(t, "はい", out.res.Text)
}

func TestHandlerChatStartsWorkflowStepWhenNobodyWaits(t *testing.T) {
	h, env, _ := newTestHandler(t)
	h.HandleMessage(nil, &transport.Message{
		Type:    transport.MessageTypeChatAction,
		Message: dialogue.ButtonGeneral,
		Action:  &transport.Action{ActionType: transport.ActionStartSession},
	})

	h.HandleMessage(nil, &transport.Message{Type: transport.MessageTypeChat, Message: "えっと"})

	require.Eventually(t, func() bool {
		for _, c := range env.out.chats() {
			if c == dialogue.AskPurposeRetryMessage {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandlerChatOutsideSessionIgnored(t *testing.T) {
	h, env, _ := newTestHandler(t)
	h.HandleMessage(nil, &transport.Message{Type: transport.MessageTypeChat, Message: "こんにちは"})
	require.Empty(t, env.out.chats())
}

func TestHandlerEndSessionAction(t *testing.T) {
	h, env, _ := newTestHandler(t)
	h.HandleMessage(nil, &transport.Message{
		Type:       transport.MessageTypeAction,
		ActionType: transport.ActionStartSession,
		Params:     &transport.UserProfile{Name: dialogue.ButtonGeneral},
	})
	require.True(t, env.deps.Sessions.Active())

	h.HandleMessage(nil, &transport.Message{
		Type:       transport.MessageTypeAction,
		ActionType: transport.ActionEndSession,
	})
	require.False(t, env.deps.Sessions.Active())
	require.Contains(t, env.out.actions(), transport.ActionEndSession)
}

func TestHandlerInputActionsUpdateTheSession(t *testing.T) {
	h, env, _ := newTestHandler(t)
	env.deps.Sessions.Start(dialogue.ButtonGeneral)
	sc := env.deps.Sessions.Context()

	h.HandleMessage(nil, &transport.Message{
		Type:       transport.MessageTypeAction,
		ActionType: transport.ActionInputName,
		Params:     &transport.UserProfile{Name: "田中"},
	})
	require.Equal(t, "田中", sc.Name)

	h.HandleMessage(nil, &transport.Message{
		Type:       transport.MessageTypeAction,
		ActionType: transport.ActionInputPhone,
		Params:     &transport.UserProfile{Contact: "090-1234-5678"},
	})
	require.Equal(t, "090-1234-5678", sc.Phone)
	require.True(t, sc.PhoneCorrect)

	// Malformed numbers are rejected, the validation flag drops
	h.HandleMessage(nil, &transport.Message{
		Type:       transport.MessageTypeAction,
		ActionType: transport.ActionInputPhone,
		Params:     &transport.UserProfile{Contact: "12345"},
	})
	require.Equal(t, "090-1234-5678", sc.Phone)
	require.False(t, sc.PhoneCorrect)
}

func TestHandlerConfirmScreenEditsFields(t *testing.T) {
	h, env, _ := newTestHandler(t)
	env.deps.Sessions.Start(dialogue.ButtonGeneral)
	sc := env.deps.Sessions.Context()
	sc.Name = "田中"
	sc.Purpose = "相談"

	h.HandleMessage(nil, &transport.Message{
		Type:       transport.MessageTypeAction,
		ActionType: transport.ActionShowConfirmInfo,
		Params:     &transport.UserProfile{Name: "田仲", Contact: "0312345678"},
	})
	require.Equal(t, "田仲", sc.Name)
	require.Equal(t, "相談", sc.Purpose)
	require.Equal(t, "0312345678", sc.Phone)
	require.True(t, sc.PhoneCorrect)
}

func TestHandlerTouchOutsideWaitIsHarmless(t *testing.T) {
	h, env, _ := newTestHandler(t)
	env.deps.Sessions.Start(dialogue.ButtonGeneral)
	h.HandleMessage(nil, &transport.Message{
		Type:       transport.MessageTypeAction,
		ActionType: transport.ActionTouch,
	})
	require.True(t, env.deps.Sessions.Active())
}

func TestHandlerCheckCurrentMode(t *testing.T) {
	h, env, _ := newTestHandler(t)

	env.deps.Modes.SetMode(config.ModeHome)
	h.HandleMessage(nil, &transport.Message{
		Type:       transport.MessageTypeAction,
		ActionType: transport.ActionCheckCurrentMode,
	})
	require.Contains(t, env.out.chats(), dialogue.MessageForDirectCall)
	require.Contains(t, env.out.actions(), transport.ActionShowPhonePage)

	env.deps.Modes.SetMode(config.ModeAway)
	h.HandleMessage(nil, &transport.Message{
		Type:       transport.MessageTypeAction,
		ActionType: transport.ActionCheckCurrentMode,
	})
	require.Contains(t, env.out.chats(), dialogue.ReplyMessageForYoyakuNashi)
	require.Contains(t, env.out.actions(), transport.ActionShowTop)
}

func TestHandlerSetLanguage(t *testing.T) {
	h, env, _ := newTestHandler(t)
	h.HandleMessage(nil, &transport.Message{
		Type:       transport.MessageTypeAction,
		ActionType: transport.ActionSetLanguage,
		Params:     &transport.UserProfile{Name: "en"},
	})
	require.Equal(t, "en", env.deps.Modes.Language())
}

func TestHandlerIdleShowsTopMenuOutsideSession(t *testing.T) {
	h, env, _ := newTestHandler(t)

	h.HandleIdle()
	require.Contains(t, env.out.actions(), transport.ActionShowTop)

	// Inside a session the idle reset stays out of the way
	env.deps.Sessions.Start(dialogue.ButtonGeneral)
	before := len(env.out.actions())
	h.HandleIdle()
	require.Len(t, env.out.actions(), before)
}
