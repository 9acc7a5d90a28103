package ai

import (
	"context"
	"regexp"
	"strings"

	"github.com/skomatsu/stella/pkg/logger"
)

var (
	yesWords     = []string{"はい", "ええ", "うん", "そうです", "大丈夫", "お願いします", "OK", "ok", "オッケー", "いいよ", "いいです"}
	noWords      = []string{"いいえ", "いえ", "やめ", "だめ", "結構です", "いらない", "不要"}
	correctWords = []string{"違い", "違う", "間違", "直し", "訂正", "修正"}

	phoneCandidateRe = regexp.MustCompile(`0[\d\-]{8,12}`)
)

// Degraded is a no-model fallback used when no Gemini API key is
// configured. Yes/no replies are matched against fixed word lists,
// phone numbers are pulled out by pattern, and name/purpose extraction
// always comes back empty so the workflows fall through their retry
// ladders to the keyboard input.
type Degraded struct {
	logger *logger.Logger
}

// NewDegraded creates the fallback classifier and extractor
func NewDegraded(log *logger.Logger) *Degraded {
	return &Degraded{logger: log.Named("ai-degraded")}
}

func (d *Degraded) ClassifyYesNo(_ context.Context, response string) string {
	if containsAny(response, yesWords) {
		return IntentConfirmation
	}
	if containsAny(response, noWords) {
		return IntentDecline
	}
	return IntentUnknown
}

func (d *Degraded) ClassifyCorrection(_ context.Context, response string) string {
	if containsAny(response, correctWords) {
		return IntentCorrection
	}
	if containsAny(response, yesWords) {
		return IntentConfirmation
	}
	return IntentUnknown
}

func (d *Degraded) ExtractNamePurpose(_ context.Context, _ string) (string, string) {
	return "", ""
}

func (d *Degraded) ExtractVendorNamePurpose(_ context.Context, _ string) (string, string) {
	return "", ""
}

func (d *Degraded) ExtractPhone(_ context.Context, input string) (string, PhoneExtraction) {
	candidate := phoneCandidateRe.FindString(input)
	if candidate == "" {
		return "", PhoneAbsent
	}
	if !IsValidJapanesePhoneNumber(candidate) {
		return "", PhoneInvalid
	}
	return candidate, PhoneValid
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
