package dialogue

// Entry-point button IDs sent by the avatar front-end
const (
	ButtonGeneral  = "button_1"
	ButtonTsuke    = "button_2"
	ButtonSetsubi  = "button_3"
	ButtonGyosha   = "button_4"
	ButtonDelivery = "button_5"
	ButtonDengon   = "button_dengon"
)

// ButtonTitles maps entry buttons to the titles shown in pushes and
// recorded in session logs
var ButtonTitles = map[string]string{
	ButtonGeneral:  "ご用件の対応",
	ButtonTsuke:    "付届けの渡し",
	ButtonSetsubi:  "設備の対応",
	ButtonGyosha:   "龍泉寺御用達業者様",
	ButtonDelivery: "郵便・宅急便",
	ButtonDengon:   "伝言",
}

// ButtonTitle returns the display title for a button, "" when unknown
func ButtonTitle(buttonID string) string {
	return ButtonTitles[buttonID]
}

// ButtonParties maps entry buttons to the party groups that may be
// contacted. "user2" in the list means the secondary responder joins in
// partially-available mode.
var ButtonParties = map[string][]string{
	ButtonGeneral:  {"user1"},
	ButtonTsuke:    {"user1", "user2"},
	ButtonSetsubi:  {"user1", "user2"},
	ButtonGyosha:   {"user1", "user2"},
	ButtonDelivery: {"user1", "user2"},
	ButtonDengon:   {"user1"},
}

// FixedPurpose returns the preset purpose for buttons whose intent is
// implied by the button itself, "" when the purpose is gathered from
// the visitor.
func FixedPurpose(buttonID string) string {
	switch buttonID {
	case ButtonTsuke:
		return "付届けを持ってきた"
	case ButtonSetsubi:
		return "設備について"
	case ButtonGyosha:
		return ButtonTitles[ButtonGyosha]
	case ButtonDelivery:
		return "郵便・宅急便で対面対応"
	default:
		return ""
	}
}
