// Package dialogue holds every fixed phrase the avatar speaks and the
// entry-button lookup tables. Keeping the wording in one place lets the
// reception staff review it without touching the state machines.
package dialogue

import "fmt"

// Avatar prompts and replies
const (
	TimeoutMessage = "申し訳ございません。応答が確認できなかったため、受付を終了いたします。またのお越しをお待ちしております。"

	AskPurposeRetryMessage = "恐れ入りますが、ご用件をお聞かせいただけますか？"
	AskNameMessage         = "お名前をお聞かせいただけますか？"
	AskCompanyNameMessage  = "会社名とお名前をお聞かせいただけますか？"
	AskOtakiageMessage     = "お焚き上げの受付ですね。恐れ入りますが、お名前をお聞かせいただけますか？"
	AskKeyboardMessage     = "恐れ入りますが、画面のキーボードからご入力をお願いいたします。"

	ConfirmMessageDefault = "お名前とご用件を確認できませんでした。こちらの内容でお間違いないでしょうか？"
	ConfirmRetryMessage   = "恐れ入りますが、「はい」か「いいえ」でお答えいただけますか？"
	CorrectInfoMessage    = "失礼いたしました。恐れ入りますが、もう一度お聞かせいただけますか？"

	DecideContactMessage = "ご希望の連絡方法を画面からお選びください。"
	WaitMessage          = "担当者に確認しております。そのまま少々お待ちください。"
	CanWait2MinMessage   = "ありがとうございます。担当者が参りますので、そのままお待ちください。"

	AskPhoneMessage         = "お電話番号をお聞かせいただけますか？"
	AskPhoneKeyboardMessage = "お電話番号を確認できませんでした。恐れ入りますが、画面の数字キーボードからご入力をお願いいたします。"
	AskCorrectPhoneMessage  = "恐れ入りますが、お電話番号をもう一度ご入力いただけますか？"
	ConfirmMessagePhone     = "ご入力いただいた内容でお間違いないでしょうか？"

	UnavailableDeliveryMessage = "申し訳ございません。ただいま対応できるものがおりません。お手数ですが、不在票のご対応をお願いいたします。"

	ConfirmNeedCallbackMessage = "折り返しのご連絡は必要でしょうか？"
	DengonMessage              = "伝言を承りました。確かにお伝えいたします。またのお越しをお待ちしております。"
	EndAskPhoneDengonMessage   = "伝言を承りました。お電話番号は確認できませんでしたが、確かにお伝えいたします。"

	SonaemonoMessage = "お供え物は玄関先の台にお納めください。"

	MessageForDirectCall       = "担当者にお繋ぎします。画面の通話ボタンを押してお待ちください。"
	ReplyMessageForYoyakuNashi = "申し訳ございません。ただいま不在にしております。改めてご連絡くださいませ。"

	SuirenRedirectMessage   = "睡蓮墓地については、メイスンワーク株式会社へお問合せください。"
	JumokusoRedirectMessage = "じゅもくそう墓地については、メイスンワーク株式会社へお問合せください。"

	RoutingFallbackMessage = "申し訳ございません。うまくお答えできませんでした。お手数ですが、もう一度お聞かせいただけますか？"
)

// Session-opening lines per UI language
var greetMessages = map[string]string{
	"ja": "いらっしゃいませ。本日はどのようなご用件でしょうか？",
	"en": "Welcome. How may I help you today?",
}

// Greet returns the session-opening line for the given language,
// falling back to Japanese
func Greet(lang string) string {
	if msg, ok := greetMessages[lang]; ok {
		return msg
	}
	return greetMessages["ja"]
}

// On-screen confirm dialog captions
const (
	AskPhoneText        = "ご連絡先を伺ってもよろしいですか？"
	AskWaitText         = "2分ほどお待ちいただけますか？"
	AskNeedCallbackText = "折り返しのご連絡は必要ですか？"
)

// AskRetry re-asks for a field the visitor has not given yet
func AskRetry(identity string) string {
	return fmt.Sprintf("恐れ入りますが、%sをもう一度お聞かせいただけますか？", identity)
}

// Confirm presents both gathered fields for the visitor to approve
func Confirm(name, purpose string) string {
	return fmt.Sprintf("%s様、ご用件は「%s」でお間違いないでしょうか？", name, purpose)
}

// ConfirmNameOnly is used when only the name was understood
func ConfirmNameOnly(name string) string {
	return fmt.Sprintf("%s様でお間違いないでしょうか？ご用件は確認できませんでした。", name)
}

// ConfirmPurposeOnly is used when only the purpose was understood
func ConfirmPurposeOnly(purpose string) string {
	return fmt.Sprintf("ご用件は「%s」でお間違いないでしょうか？お名前は確認できませんでした。", purpose)
}

// ConfirmDengon presents the recorded message for approval
func ConfirmDengon(name string) string {
	return fmt.Sprintf("%s様、こちらの内容でお間違いないでしょうか？", name)
}

// Available tells the visitor someone is coming right away
func Available(person string) string {
	return fmt.Sprintf("%sがおりますので、そのままお待ちください。担当者がすぐに参ります。", person)
}

// Wait2Min asks whether the visitor can wait a couple of minutes
func Wait2Min(person string) string {
	return fmt.Sprintf("%sがおりますが、お伺いするまで2分ほどかかります。お待ちいただけますか？", person)
}

// CannotWait2Min acknowledges the visitor cannot wait and pivots to
// collecting a contact field
func CannotWait2Min(identity string) string {
	return fmt.Sprintf("承知いたしました。後ほどご連絡いたしますので、%sを伺ってもよろしいでしょうか？", identity)
}

// Unavailable apologizes and pivots to collecting a contact field
func Unavailable(identity string) string {
	return fmt.Sprintf("申し訳ございません。ただいま対応できるものがおりません。後ほどご連絡いたしますので、%sを伺ってもよろしいでしょうか？", identity)
}

// Apology closes the session when no contact could be collected.
// newLine carries an optional trailing notice (empty for none).
func Apology(newLine string) string {
	return fmt.Sprintf("承知いたしました。お手数をおかけいたしました。%sまたのお越しをお待ちしております。", newLine)
}

// ApologyCallback closes the session promising a callback
func ApologyCallback(newLine string) string {
	return fmt.Sprintf("ありがとうございます。後ほどご連絡いたします。%sまたのお越しをお待ちしております。", newLine)
}

// EndAskPhone closes the session after the phone could not be collected
func EndAskPhone(newLine string) string {
	return fmt.Sprintf("お電話番号を確認できませんでした。申し訳ございませんが、受付を終了いたします。%sまたのお越しをお待ちしております。", newLine)
}

// ModeChanged acknowledges a remote mode switch
func ModeChanged(mode string) string {
	return fmt.Sprintf("モード変更しました:\n%s", mode)
}

// ModeChangeNotice informs the other parties who switched the mode
func ModeChangeNotice(person, mode string) string {
	return fmt.Sprintf("%sが「%s」に変更しました。", person, mode)
}

// CheckAvailabilityRequest builds the availability question pushed to
// remote parties for a call-person handoff, degrading gracefully when a
// field was not understood.
func CheckAvailabilityRequest(name, purpose string) string {
	switch {
	case name != "" && purpose != "":
		return fmt.Sprintf("%s様が「%s」の為に受付に来ています。ご対応できますか？", name, purpose)
	case name != "":
		return fmt.Sprintf("%s様が受付に来ていますが、来訪目的を理解できませんでした。ご対応できますか？", name)
	case purpose != "":
		return fmt.Sprintf("来訪者が「%s」の為に受付に来ていますが、来訪者の名前を理解できませんでした。ご対応できますか？", purpose)
	default:
		return "来訪者が受付に来ていますが、名前と目的を理解できませんでした。ご対応できますか？"
	}
}

// DeliveryAvailabilityRequest is the fixed availability question for a
// delivery handoff
const DeliveryAvailabilityRequest = "郵便・宅急便で対面対応が必要です。対応可能性を連絡してください"

// DeliveryAwayNotice is pushed when a delivery arrives in away mode
const DeliveryAwayNotice = "郵便・宅急便が来ました。"

// DengonRequest builds the message-push body for a recorded message
func DengonRequest(name, purpose string) string {
	switch {
	case name != "" && purpose != "":
		return fmt.Sprintf("%s様が伝言を残しました。伝言内容は「%s」 です。", name, purpose)
	case purpose != "":
		return fmt.Sprintf("来訪者が伝言を残しました。伝言内容は「%s」です。", purpose)
	default:
		return "来訪者が伝言を残したと思いますが、伝言内容は未確認です。"
	}
}

// ContactCardBody builds the contact-card push sent with a collected
// phone number
func ContactCardBody(name, purpose string) string {
	if purpose != "" {
		return fmt.Sprintf("%s様が訪問しました。ご用件は「%s」です。", name, purpose)
	}
	return "ご用件は未確認です。"
}

// Acknowledgements replied to a remote party's availability answer
var AvailabilityAcks = map[string]string{
	"今すぐ対応する":   "ありがとうございます！訪問者に伝えます。",
	"2分以内に対応する": "ありがとうございます！訪問者に伝えます。",
	"対応出来ない":    "分かりました。訪問者に伝えます。",
}

// UnknownRequestReply answers webhook text that is neither an
// availability answer nor a mode command
const UnknownRequestReply = "申し訳ございません。対応できないリクエストです。"
