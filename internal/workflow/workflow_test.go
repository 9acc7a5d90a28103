package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skomatsu/stella/internal/ai"
	"github.com/skomatsu/stella/internal/config"
	"github.com/skomatsu/stella/internal/dialogue"
	"github.com/skomatsu/stella/internal/negotiation"
	"github.com/skomatsu/stella/internal/notify"
	"github.com/skomatsu/stella/internal/session"
	"github.com/skomatsu/stella/internal/transport"
	"github.com/skomatsu/stella/pkg/logger"
)

type recordedOut struct {
	mu   sync.Mutex
	msgs []*transport.Message
}

func (o *recordedOut) Send(msg *transport.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
}

// chats returns the chat lines in send order, including the chat part
// of chat_action messages
func (o *recordedOut) chats() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, m := range o.msgs {
		if (m.Type == transport.MessageTypeChat || m.Type == transport.MessageTypeChatAction) && m.Message != "" {
			out = append(out, m.Message)
		}
	}
	return out
}

// actions returns every screen directive kind in send order
func (o *recordedOut) actions() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, m := range o.msgs {
		switch m.Type {
		case transport.MessageTypeAction:
			out = append(out, m.ActionType)
		case transport.MessageTypeChatAction, transport.MessageTypeConfirmAction:
			if m.Action != nil {
				out = append(out, m.Action.ActionType)
			}
		}
	}
	return out
}

// fakeClassifier answers by literal keyword so test scripts stay
// readable
type fakeClassifier struct{}

func (fakeClassifier) ClassifyYesNo(_ context.Context, response string) string {
	switch response {
	case "はい":
		return ai.IntentConfirmation
	case "いいえ":
		return ai.IntentDecline
	default:
		return ai.IntentUnknown
	}
}

func (fakeClassifier) ClassifyCorrection(_ context.Context, response string) string {
	switch response {
	case "はい":
		return ai.IntentConfirmation
	case "違います":
		return ai.IntentCorrection
	default:
		return ai.IntentUnknown
	}
}

// fakeExtractor replays scripted extractions keyed by the utterance
type fakeExtractor struct {
	pairs  map[string][2]string
	vendor map[string][2]string
	phones map[string]string
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		pairs:  make(map[string][2]string),
		vendor: make(map[string][2]string),
		phones: make(map[string]string),
	}
}

func (f *fakeExtractor) ExtractNamePurpose(_ context.Context, input string) (string, string) {
	p := f.pairs[input]
	return p[0], p[1]
}

func (f *fakeExtractor) ExtractVendorNamePurpose(_ context.Context, input string) (string, string) {
	p := f.vendor[input]
	return p[0], p[1]
}

func (f *fakeExtractor) ExtractPhone(_ context.Context, input string) (string, ai.PhoneExtraction) {
	phone, ok := f.phones[input]
	if !ok {
		return "", ai.PhoneAbsent
	}
	if !ai.IsValidJapanesePhoneNumber(phone) {
		return phone, ai.PhoneInvalid
	}
	return phone, ai.PhoneValid
}

type pushedText struct {
	partyID string
	text    string
}

type pushedNote struct {
	partyID string
	title   string
	body    string
}

type fakeNotifier struct {
	mu           sync.Mutex
	availability []pushedText
	texts        []pushedText
	cards        []notify.ContactCard
	cardTargets  []string
	notes        []pushedNote
	replies      []string
}

func (f *fakeNotifier) PushCheckAvailability(_ context.Context, partyID, message, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.availability = append(f.availability, pushedText{partyID, message})
}

func (f *fakeNotifier) PushText(_ context.Context, partyID, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, pushedText{partyID, text})
}

func (f *fakeNotifier) PushContactCard(_ context.Context, partyID string, card notify.ContactCard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cards = append(f.cards, card)
	f.cardTargets = append(f.cardTargets, partyID)
}

func (f *fakeNotifier) PushNote(_ context.Context, partyID, title, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, pushedNote{partyID, title, body})
}

func (f *fakeNotifier) availabilityCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.availability)
}

func (f *fakeNotifier) Reply(_ context.Context, _, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
}

type testEnv struct {
	deps  Deps
	out   *recordedOut
	store *negotiation.Store
	notif *fakeNotifier
	ext   *fakeExtractor
}

func newTestEnv(t *testing.T, window time.Duration) *testEnv {
	t.Helper()
	log := logger.NewNop()
	out := &recordedOut{}
	notif := &fakeNotifier{}
	store := negotiation.NewStore(window, log)
	ext := newFakeExtractor()
	deps := Deps{
		Sessions:    session.NewManager(nil, t.TempDir(), dialogue.ButtonTitles, log),
		Negotiator:  negotiation.NewNegotiator(store, notif, window, nil, log),
		Notifier:    notif,
		Classifier:  fakeClassifier{},
		Extractor:   ext,
		Modes:       config.NewModeStore(config.ReceptionConfig{Mode: string(config.ModeAway), Language: "ja"}),
		Out:         out,
		Parties:     PartyDirectory{Primary: []string{"u1-android", "u1-iphone"}, Secondary: []string{"u2"}},
		TurnTimeout: 2 * time.Second,
		Logger:      log,
	}
	return &testEnv{deps: deps, out: out, store: store, notif: notif, ext: ext}
}

type stepResult struct {
	reply string
	err   error
}

// runStep executes one workflow step on its own goroutine so the test
// can feed the turn channel
func runStep(wf Workflow, input string, mode config.Mode) chan stepResult {
	ch := make(chan stepResult, 1)
	go func() {
		reply, err := wf.Step(context.Background(), input, mode)
		ch <- stepResult{reply: reply, err: err}
	}()
	return ch
}

// deliver feeds a visitor utterance to the outstanding wait, retrying
// until the step actually waits
func (e *testEnv) deliver(t *testing.T, text string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.deps.Sessions.Turn().Deliver(text)
	}, time.Second, 5*time.Millisecond)
}

func (e *testEnv) result(t *testing.T, ch chan stepResult) stepResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(3 * time.Second):
		t.Fatal("workflow step did not finish")
		return stepResult{}
	}
}

func TestPartyDirectoryResolve(t *testing.T) {
	dir := PartyDirectory{Primary: []string{"a", "b"}, Secondary: []string{"c"}}

	// Secondary joins only in partial mode and only for multi-group buttons
	require.Equal(t, []string{"a", "b", "c"}, dir.Resolve(dialogue.ButtonSetsubi, config.ModePartial))
	require.Equal(t, []string{"a", "b"}, dir.Resolve(dialogue.ButtonGeneral, config.ModePartial))
	require.Equal(t, []string{"a", "b"}, dir.Resolve(dialogue.ButtonSetsubi, config.ModeHome))
	require.Equal(t, "a", dir.MainParty())
}
