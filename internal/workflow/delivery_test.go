package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skomatsu/stella/internal/config"
	"github.com/skomatsu/stella/internal/dialogue"
	"github.com/skomatsu/stella/internal/negotiation"
	"github.com/skomatsu/stella/internal/session"
	"github.com/skomatsu/stella/internal/transport"
)

func TestDeliveryAwayModeLeavesNotice(t *testing.T) {
	env := newTestEnv(t, time.Second)
	env.deps.Sessions.Start(dialogue.ButtonDelivery)
	wf := NewDelivery(env.deps)

	reply, err := wf.Step(context.Background(), "宅急便です", config.ModeAway)
	require.NoError(t, err)
	require.Equal(t, dialogue.UnavailableDeliveryMessage, reply)
	require.False(t, env.deps.Sessions.Active())

	// The responder still hears about the parcel
	require.Len(t, env.notif.texts, 1)
	require.Equal(t, "u1-android", env.notif.texts[0].partyID)
	require.Equal(t, dialogue.DeliveryAwayNotice, env.notif.texts[0].text)
	require.Contains(t, env.out.actions(), transport.ActionShowSorry)
}

func TestDeliveryHomeModeOffersDirectContact(t *testing.T) {
	env := newTestEnv(t, time.Second)
	env.deps.Sessions.Start(dialogue.ButtonDelivery)
	wf := NewDelivery(env.deps)

	reply, err := wf.Step(context.Background(), "宅急便です", config.ModeHome)
	require.NoError(t, err)
	require.Empty(t, reply)
	require.Contains(t, env.out.actions(), transport.ActionChooseContact)
	require.Contains(t, env.out.chats(), dialogue.DecideContactMessage)

	sc := env.deps.Sessions.Context()
	require.Equal(t, session.StateCheckAvailability, sc.State)
	require.Equal(t, dialogue.FixedPurpose(dialogue.ButtonDelivery), sc.Purpose)
	require.True(t, env.deps.Sessions.Active())
}

func TestDeliveryNegotiationSilenceEndsWithNotice(t *testing.T) {
	env := newTestEnv(t, 20*time.Millisecond)
	env.deps.Sessions.Start(dialogue.ButtonDelivery)
	wf := NewDelivery(env.deps)

	reply, err := wf.Step(context.Background(), "宅急便です", config.ModePartial)
	require.NoError(t, err)
	require.Equal(t, dialogue.UnavailableDeliveryMessage, reply)
	require.False(t, env.deps.Sessions.Active())

	// Fixed request text, no identity gathering happened first
	require.NotEmpty(t, env.notif.availability)
	require.Equal(t, dialogue.DeliveryAvailabilityRequest, env.notif.availability[0].text)
}

func TestDeliverySoonReplyWaitConsent(t *testing.T) {
	env := newTestEnv(t, 200*time.Millisecond)
	env.deps.Sessions.Start(dialogue.ButtonDelivery)
	wf := NewDelivery(env.deps)

	go func() {
		for !env.store.SetResponse("u1-iphone", negotiation.ResponseSoon) {
			time.Sleep(5 * time.Millisecond)
		}
	}()

	ch := runStep(wf, "宅急便です", config.ModePartial)
	env.deliver(t, "はい")

	res := env.result(t, ch)
	require.NoError(t, res.err)
	require.Equal(t, dialogue.CanWait2MinMessage, res.reply)
	require.False(t, env.deps.Sessions.Active())
	require.Contains(t, env.out.chats(), dialogue.Wait2Min(negotiation.PersonAvailable))
}

func TestDeliverySoonReplyCannotWait(t *testing.T) {
	env := newTestEnv(t, 200*time.Millisecond)
	env.deps.Sessions.Start(dialogue.ButtonDelivery)
	wf := NewDelivery(env.deps)

	go func() {
		for !env.store.SetResponse("u1-android", negotiation.ResponseSoon) {
			time.Sleep(5 * time.Millisecond)
		}
	}()

	ch := runStep(wf, "宅急便です", config.ModePartial)
	env.deliver(t, "いいえ")

	res := env.result(t, ch)
	require.NoError(t, res.err)
	// No contact collection for couriers, only the redelivery notice
	require.Equal(t, dialogue.UnavailableDeliveryMessage, res.reply)
	require.False(t, env.deps.Sessions.Active())
}
