// Package transport carries the realtime channel between the avatar
// front-end and the orchestrator: the wire message kinds and the
// WebSocket hub.
package transport

import (
	"encoding/json"
	"fmt"
)

// Wire message kinds
const (
	MessageTypeChat          = "chat"
	MessageTypeAction        = "action"
	MessageTypeChatAction    = "chat_action"
	MessageTypeConfirmAction = "confirm_action"
)

// Action vocabulary understood by the avatar front-end
const (
	ActionStartSession      = "start_session"
	ActionEndSession        = "end_session"
	ActionShowConversation  = "show_conversation"
	ActionShowConfirmInfo   = "show_confirm_info"
	ActionShowName          = "show_name"
	ActionInputName         = "input_name"
	ActionShowPhone         = "show_phone"
	ActionInputPhone        = "input_phone"
	ActionShowKeyboard      = "show_keyboard"
	ActionShowNumKeyboard   = "show_num_keyboard"
	ActionShowConfirmYesNo  = "show_confirm_yesno"
	ActionShowTop           = "show_top"
	ActionShowSorry         = "show_sorry"
	ActionShowWait          = "show_wait"
	ActionTouch             = "touch_action"
	ActionChooseContact     = "choose_contact"
	ActionShowBochi         = "show_bochi"
	ActionShowPet           = "show_pet"
	ActionShowConfirmDengon = "show_confirm_for_dengon"
	ActionCheckCurrentMode  = "check_current_mode"
	ActionShowPhonePage     = "show_phone_page"
	ActionSetLanguage       = "set_language"
)

// UserProfile is the params object attached to actions. Fields are
// serialized as empty strings rather than omitted; the front-end
// expects all three keys.
type UserProfile struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Purpose string `json:"purpose"`
}

// Action is the structured part of chat_action and confirm_action
// messages
type Action struct {
	ActionType string      `json:"action_type"`
	Params     UserProfile `json:"params"`
}

// Message is one wire message in either direction. Which fields are
// set depends on Type: chat uses Message; action uses ActionType and
// Params; chat_action and confirm_action use Message and Action.
type Message struct {
	Type       string       `json:"type"`
	Message    string       `json:"message,omitempty"`
	ActionType string       `json:"action_type,omitempty"`
	Params     *UserProfile `json:"params,omitempty"`
	Action     *Action      `json:"action,omitempty"`
}

// Chat builds a plain chat message
func Chat(message string) *Message {
	return &Message{Type: MessageTypeChat, Message: message}
}

// NewAction builds an action directive. A nil profile serializes as
// empty params.
func NewAction(actionType string, params *UserProfile) *Message {
	if params == nil {
		params = &UserProfile{}
	}
	return &Message{Type: MessageTypeAction, ActionType: actionType, Params: params}
}

// ChatAction builds a combined chat-plus-action message
func ChatAction(message, actionType string, params *UserProfile) *Message {
	if params == nil {
		params = &UserProfile{}
	}
	return &Message{
		Type:    MessageTypeChatAction,
		Message: message,
		Action:  &Action{ActionType: actionType, Params: *params},
	}
}

// ConfirmAction builds an on-screen confirm dialog message
func ConfirmAction(message, actionType string, params *UserProfile) *Message {
	if params == nil {
		params = &UserProfile{}
	}
	return &Message{
		Type:    MessageTypeConfirmAction,
		Message: message,
		Action:  &Action{ActionType: actionType, Params: *params},
	}
}

// Parse decodes an inbound wire message and validates its kind
func Parse(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	switch msg.Type {
	case MessageTypeChat, MessageTypeAction, MessageTypeChatAction:
		return &msg, nil
	default:
		return nil, fmt.Errorf("unknown message type: %s", msg.Type)
	}
}

// InboundAction returns the action kind of an inbound message,
// regardless of whether it arrived as action or chat_action
func (m *Message) InboundAction() string {
	if m.Type == MessageTypeAction {
		return m.ActionType
	}
	if m.Action != nil {
		return m.Action.ActionType
	}
	return ""
}

// InboundParams returns the params of an inbound message, never nil
func (m *Message) InboundParams() *UserProfile {
	if m.Type == MessageTypeAction && m.Params != nil {
		return m.Params
	}
	if m.Action != nil {
		return &m.Action.Params
	}
	return &UserProfile{}
}
