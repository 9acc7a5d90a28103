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

func TestCallPersonRetryLaddersThenKeyboard(t *testing.T) {
	env := newTestEnv(t, time.Second)
	env.deps.Sessions.Start(dialogue.ButtonGeneral)
	wf := NewCallPerson(env.deps)

	// Nothing extractable: two purpose prompts, then the name ladder
	reply, err := wf.Step(context.Background(), "えっと", config.ModeAway)
	require.NoError(t, err)
	require.Equal(t, dialogue.AskPurposeRetryMessage, reply)

	reply, err = wf.Step(context.Background(), "うーん", config.ModeAway)
	require.NoError(t, err)
	require.Equal(t, dialogue.AskRetry("ご用件"), reply)

	reply, err = wf.Step(context.Background(), "なんだろう", config.ModeAway)
	require.NoError(t, err)
	require.Equal(t, dialogue.AskNameMessage, reply)

	reply, err = wf.Step(context.Background(), "はあ", config.ModeAway)
	require.NoError(t, err)
	require.Equal(t, dialogue.AskRetry("お名前"), reply)

	// Third name attempt switches to the on-screen keyboard exactly once
	reply, err = wf.Step(context.Background(), "ええと", config.ModeAway)
	require.NoError(t, err)
	require.Equal(t, dialogue.AskKeyboardMessage, reply)
	require.Contains(t, env.out.actions(), transport.ActionShowName)
	require.Contains(t, env.out.actions(), transport.ActionShowKeyboard)

	sc := env.deps.Sessions.Context()
	require.Equal(t, session.MaxPurposeRetries, sc.PurposeRetry)
	require.Equal(t, session.MaxNameRetries, sc.NameRetry)
}

func TestCallPersonConfirmThenContactDecline(t *testing.T) {
	env := newTestEnv(t, time.Second)
	env.deps.Sessions.Start(dialogue.ButtonGeneral)
	env.ext.pairs["田中です。法事の相談で来ました。"] = [2]string{"田中", "法事の相談"}
	wf := NewCallPerson(env.deps)

	ch := runStep(wf, "田中です。法事の相談で来ました。", config.ModeAway)

	// The confirm screen shows both extracted fields
	env.deliver(t, "はい")
	require.Contains(t, env.out.chats(), dialogue.Confirm("田中", "法事の相談"))

	// Away mode pivots straight to contact collection; declining closes
	// the session with an apology
	env.deliver(t, "いいえ")
	res := env.result(t, ch)
	require.NoError(t, res.err)
	require.Equal(t, dialogue.Apology(""), res.reply)
	require.False(t, env.deps.Sessions.Active())
	require.Contains(t, env.out.chats(), dialogue.Unavailable("ご連絡先"))
	require.Contains(t, env.out.actions(), transport.ActionShowSorry)
}

func TestCallPersonHomeModeOffersDirectContact(t *testing.T) {
	env := newTestEnv(t, time.Second)
	env.deps.Sessions.Start(dialogue.ButtonGeneral)
	env.ext.pairs["佐藤です。相談です。"] = [2]string{"佐藤", "相談"}
	wf := NewCallPerson(env.deps)

	ch := runStep(wf, "佐藤です。相談です。", config.ModeHome)
	env.deliver(t, "はい")

	res := env.result(t, ch)
	require.NoError(t, res.err)
	require.Empty(t, res.reply)
	require.Contains(t, env.out.actions(), transport.ActionChooseContact)
	require.Contains(t, env.out.chats(), dialogue.DecideContactMessage)
	require.Equal(t, session.StateCheckAvailability, env.deps.Sessions.Context().State)
	require.True(t, env.deps.Sessions.Active())
}

func TestCallPersonNegotiationImmediateResponder(t *testing.T) {
	env := newTestEnv(t, 300*time.Millisecond)
	env.deps.Sessions.Start(dialogue.ButtonSetsubi)
	env.ext.pairs["高橋です。"] = [2]string{"高橋", ""}
	wf := NewCallPerson(env.deps)
	sc := env.deps.Sessions.Context()
	sc.Name = "高橋"
	sc.Purpose = "設備について"
	sc.State = session.StateConfirmUserInfo

	// A responder replies inside the window
	go func() {
		for !env.store.SetResponse("u1-android", negotiation.ResponseNow) {
			time.Sleep(5 * time.Millisecond)
		}
	}()

	ch := runStep(wf, "", config.ModePartial)
	env.deliver(t, "はい")

	res := env.result(t, ch)
	require.NoError(t, res.err)
	require.Equal(t, dialogue.Available(negotiation.PersonAvailable), res.reply)
	require.False(t, env.deps.Sessions.Active())
	require.Contains(t, env.out.chats(), dialogue.WaitMessage)

	// Partial mode with a multi-group button notifies the secondary too
	parties := make([]string, 0, len(env.notif.availability))
	for _, p := range env.notif.availability {
		parties = append(parties, p.partyID)
	}
	require.ElementsMatch(t, []string{"u1-android", "u1-iphone", "u2"}, parties)
}

func TestCallPersonNegotiationSilencePivotsToContact(t *testing.T) {
	env := newTestEnv(t, 20*time.Millisecond)
	env.deps.Sessions.Start(dialogue.ButtonSetsubi)
	wf := NewCallPerson(env.deps)
	sc := env.deps.Sessions.Context()
	sc.Name = "高橋"
	sc.State = session.StateCheckAvailability

	ch := runStep(wf, "", config.ModePartial)
	env.deliver(t, "はい")

	res := env.result(t, ch)
	require.NoError(t, res.err)
	require.Equal(t, dialogue.AskPhoneMessage, res.reply)
	require.Equal(t, session.StateGatherContactInfo, sc.State)
	require.Equal(t, 1, sc.PhoneRetry)
	require.Contains(t, env.out.chats(), dialogue.Unavailable("ご連絡先"))
	require.Contains(t, env.out.actions(), transport.ActionShowConversation)
}

func TestCallPersonPhoneRetriesExhausted(t *testing.T) {
	env := newTestEnv(t, time.Second)
	env.deps.Sessions.Start(dialogue.ButtonGeneral)
	wf := NewCallPerson(env.deps)
	sc := env.deps.Sessions.Context()
	sc.State = session.StateGatherContactInfo
	sc.PhoneRetry = 1

	reply, err := wf.Step(context.Background(), "電話は持っていません", config.ModeAway)
	require.NoError(t, err)
	require.Equal(t, dialogue.AskKeyboardMessage, reply)

	reply, err = wf.Step(context.Background(), "分かりません", config.ModeAway)
	require.NoError(t, err)
	require.Equal(t, dialogue.AskCorrectPhoneMessage, reply)

	reply, err = wf.Step(context.Background(), "ないです", config.ModeAway)
	require.NoError(t, err)
	require.Equal(t, dialogue.AskCorrectPhoneMessage, reply)

	// Ceiling reached: the session closes without a contact
	reply, err = wf.Step(context.Background(), "ないです", config.ModeAway)
	require.NoError(t, err)
	require.Equal(t, dialogue.EndAskPhone(""), reply)
	require.False(t, env.deps.Sessions.Active())
}

func TestCallPersonPhoneConfirmedPushesContactCard(t *testing.T) {
	env := newTestEnv(t, time.Second)
	env.deps.Sessions.Start(dialogue.ButtonTsuke)
	env.ext.phones["090-1234-5678です"] = "090-1234-5678"
	wf := NewCallPerson(env.deps)
	sc := env.deps.Sessions.Context()
	sc.Name = "田中"
	sc.Purpose = "付届けを持ってきた"
	sc.State = session.StateGatherContactInfo
	sc.PhoneRetry = 1

	ch := runStep(wf, "090-1234-5678です", config.ModeAway)
	env.deliver(t, "はい")

	res := env.result(t, ch)
	require.NoError(t, res.err)
	// The offering button appends the shelf notice to the closing line
	require.Equal(t, dialogue.ApologyCallback(dialogue.SonaemonoMessage), res.reply)
	require.False(t, env.deps.Sessions.Active())

	require.Len(t, env.notif.cards, 1)
	require.Equal(t, "u1-android", env.notif.cardTargets[0])
	require.Equal(t, "090-1234-5678", env.notif.cards[0].Phone)
	require.Equal(t, dialogue.ContactCardBody("田中", "付届けを持ってきた"), env.notif.cards[0].Body)
	require.Equal(t, dialogue.ButtonTitles[dialogue.ButtonTsuke], env.notif.cards[0].Title)
}

func TestCallPersonGraveyardRedirectAborts(t *testing.T) {
	env := newTestEnv(t, time.Second)
	env.deps.Sessions.Start(dialogue.ButtonGeneral)
	env.ext.pairs["睡蓮墓地について聞きたい"] = [2]string{"", "睡蓮墓地について"}
	wf := NewCallPerson(env.deps)

	reply, err := wf.Step(context.Background(), "睡蓮墓地について聞きたい", config.ModeAway)
	require.ErrorIs(t, err, ErrAborted)
	require.Empty(t, reply)
	require.Contains(t, env.out.chats(), dialogue.SuirenRedirectMessage)
	require.Contains(t, env.out.actions(), transport.ActionShowBochi)
	require.Contains(t, env.out.actions(), transport.ActionEndSession)
}

func TestCallPersonPetPurposeShowsScreenAndContinues(t *testing.T) {
	env := newTestEnv(t, time.Second)
	env.deps.Sessions.Start(dialogue.ButtonGeneral)
	env.ext.pairs["ペット供養をお願いしたい"] = [2]string{"", "ペット供養"}
	wf := NewCallPerson(env.deps)

	reply, err := wf.Step(context.Background(), "ペット供養をお願いしたい", config.ModeAway)
	require.NoError(t, err)
	require.Equal(t, dialogue.AskNameMessage, reply)
	require.Contains(t, env.out.actions(), transport.ActionShowPet)
	require.Equal(t, "ペット供養", env.deps.Sessions.Context().Purpose)
}

func TestCallPersonConfirmTimeoutClosesSession(t *testing.T) {
	env := newTestEnv(t, time.Second)
	env.deps.TurnTimeout = 30 * time.Millisecond
	env.deps.Sessions.Start(dialogue.ButtonGeneral)
	wf := NewCallPerson(env.deps)
	sc := env.deps.Sessions.Context()
	sc.Name = "田中"
	sc.State = session.StateConfirmUserInfo

	ch := runStep(wf, "", config.ModeAway)
	res := env.result(t, ch)
	require.NoError(t, res.err)
	require.Equal(t, dialogue.TimeoutMessage, res.reply)
	require.False(t, env.deps.Sessions.Active())
	require.Contains(t, env.out.actions(), transport.ActionShowTop)
	require.Contains(t, env.out.actions(), transport.ActionEndSession)
}

func TestCallPersonStatePathFollowsTransitionTable(t *testing.T) {
	env := newTestEnv(t, 300*time.Millisecond)
	env.deps.Sessions.Start(dialogue.ButtonSetsubi)
	env.ext.pairs["高橋です"] = [2]string{"高橋", ""}
	env.ext.phones["090-1234-5678です"] = "090-1234-5678"
	wf := NewCallPerson(env.deps)
	sc := env.deps.Sessions.Context()

	// The flow only ever moves forward through these four states
	allowed := map[session.ConversationState][]session.ConversationState{
		session.StateGatherUserInfo:    {session.StateGatherUserInfo, session.StateConfirmUserInfo},
		session.StateConfirmUserInfo:   {session.StateConfirmUserInfo, session.StateCheckAvailability},
		session.StateCheckAvailability: {session.StateCheckAvailability, session.StateGatherContactInfo},
		session.StateGatherContactInfo: {session.StateGatherContactInfo},
	}
	var observed []session.ConversationState
	record := func() { observed = append(observed, sc.State) }

	record()

	// First pass presets the purpose; the name is still missing
	reply, err := wf.Step(context.Background(), "こんにちは", config.ModePartial)
	require.NoError(t, err)
	require.Equal(t, dialogue.AskRetry("お名前"), reply)
	record()

	// The name arrives and the confirm screen parks on its wait
	ch := runStep(wf, "高橋です", config.ModePartial)
	require.Eventually(t, func() bool {
		return env.deps.Sessions.Turn().Waiting()
	}, time.Second, 5*time.Millisecond)
	record()
	env.deliver(t, "はい")

	// Confirmation opens the availability window
	require.Eventually(t, func() bool {
		return env.notif.availabilityCount() > 0
	}, time.Second, 5*time.Millisecond)
	record()

	// Silence runs the window out and pivots to contact gathering
	require.Eventually(t, func() bool {
		return env.deps.Sessions.Turn().Waiting()
	}, 2*time.Second, 5*time.Millisecond)
	record()
	env.deliver(t, "はい")
	res := env.result(t, ch)
	require.NoError(t, res.err)
	require.Equal(t, dialogue.AskPhoneMessage, res.reply)
	record()

	// The phone round stays in the final state until the session closes
	ch = runStep(wf, "090-1234-5678です", config.ModePartial)
	env.deliver(t, "はい")
	res = env.result(t, ch)
	require.NoError(t, res.err)
	require.False(t, env.deps.Sessions.Active())
	record()

	require.Equal(t, []session.ConversationState{
		session.StateGatherUserInfo,
		session.StateGatherUserInfo,
		session.StateConfirmUserInfo,
		session.StateCheckAvailability,
		session.StateGatherContactInfo,
		session.StateGatherContactInfo,
		session.StateGatherContactInfo,
	}, observed)
	for i := 1; i < len(observed); i++ {
		require.Contains(t, allowed[observed[i-1]], observed[i],
			"transition %s -> %s is not part of the flow", observed[i-1], observed[i])
	}
}

func TestCallPersonPresetPurposeForFacilitiesButton(t *testing.T) {
	env := newTestEnv(t, time.Second)
	env.deps.Sessions.Start(dialogue.ButtonSetsubi)
	wf := NewCallPerson(env.deps)

	// The first pass presets the purpose and burns one name retry
	reply, err := wf.Step(context.Background(), "こんにちは", config.ModeAway)
	require.NoError(t, err)
	require.Equal(t, dialogue.AskRetry("お名前"), reply)
	require.Equal(t, "設備について", env.deps.Sessions.Context().Purpose)
}
