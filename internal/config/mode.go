package config

import (
	"sync"
)

// Mode is the reception mode: whether the responsible humans are on the
// premises, partially reachable, or away. The values double as the exact
// command strings the vendor webhook accepts for mode switching.
type Mode string

const (
	ModeHome    Mode = "在宅モード"  // humans available on site
	ModePartial Mode = "半在宅モード" // main responder reachable, negotiate first
	ModeAway    Mode = "不在モード"  // nobody on site, contact collection only
)

// ValidMode reports whether m is one of the known reception modes.
func ValidMode(m Mode) bool {
	switch m {
	case ModeHome, ModePartial, ModeAway:
		return true
	}
	return false
}

// ModeStore holds the current reception mode and language. Workflow steps
// take a snapshot at each decision point rather than reading shared state
// mid-step.
type ModeStore struct {
	mu       sync.RWMutex
	mode     Mode
	language string
}

// NewModeStore creates a mode store seeded from the reception config.
func NewModeStore(cfg ReceptionConfig) *ModeStore {
	return &ModeStore{
		mode:     Mode(cfg.Mode),
		language: cfg.Language,
	}
}

// Mode returns the current reception mode.
func (s *ModeStore) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode updates the current reception mode. Unknown modes are rejected.
func (s *ModeStore) SetMode(m Mode) bool {
	if !ValidMode(m) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
	return true
}

// Language returns the current avatar UI language.
func (s *ModeStore) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// SetLanguage updates the avatar UI language.
func (s *ModeStore) SetLanguage(lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = lang
}
