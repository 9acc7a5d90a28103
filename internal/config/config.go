package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server      ServerConfig      `toml:"server"`      // HTTP server settings
	Logging     LoggingConfig     `toml:"logging"`     // Application logging settings
	Storage     StorageConfig     `toml:"storage"`     // Data persistence settings
	Reception   ReceptionConfig   `toml:"reception"`   // Front-desk behaviour settings
	Negotiation NegotiationConfig `toml:"negotiation"` // Availability negotiation settings
	Notifier    NotifierConfig    `toml:"notifier"`    // Remote-party push channel settings
	Gemini      GeminiConfig      `toml:"gemini"`      // Gemini LLM collaborator settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port"`                  // HTTP port for the server
	Host             string `toml:"host"`                  // Host address to bind to
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
	StaticFilesDir   string `toml:"static_files_dir"`      // Directory to serve the avatar front-end from (empty = disabled)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	SQLiteBasePath   string `toml:"sqlite_base_path"`    // Base path for SQLite database files (filename is generated as stella-YYYY-MM-DD.db)
	SessionLogDir    string `toml:"session_log_dir"`     // Directory for per-session transcript log files
	MaxSessionsInAPI int    `toml:"max_sessions_in_api"` // Maximum number of sessions to return in the /api/sessions response
}

// ReceptionConfig contains front-desk behaviour configuration
type ReceptionConfig struct {
	Mode            string `toml:"mode"`                 // Initial reception mode: "在宅モード", "半在宅モード", or "不在モード"
	Language        string `toml:"language"`             // Avatar UI language (e.g. "ja")
	TurnTimeoutSecs int    `toml:"turn_timeout_seconds"` // How long a workflow step waits for the next visitor utterance
	IdleResetSecs   int    `toml:"idle_reset_seconds"`   // Idle time after which the transport shows the top menu outside a session
}

// NegotiationConfig contains availability negotiation configuration
type NegotiationConfig struct {
	WindowSecs int               `toml:"window_seconds"` // How long remote parties have to answer an availability request
	Primary    []string          `toml:"primary"`        // Party IDs always notified (the main responder's devices)
	Secondary  []string          `toml:"secondary"`      // Party IDs additionally notified in partially-available mode
	Labels     map[string]string `toml:"labels"`         // Display labels per party ID used in reply notices
}

// NotifierConfig contains remote-party push channel configuration
type NotifierConfig struct {
	Enabled     bool   `toml:"enabled"`         // Enable or disable outbound pushes (disabled = log only)
	APIBaseURL  string `toml:"api_base_url"`    // Vendor messaging API base (e.g. https://api.line.me/v2/bot)
	AccessToken string `toml:"access_token"`    // Channel access token for the messaging API
	TimeoutSecs int    `toml:"timeout_seconds"` // HTTP timeout for push requests
}

// GeminiConfig contains Gemini LLM collaborator configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`         // Gemini API key
	Model       string  `toml:"model"`           // Model used for intent classification and field extraction
	Temperature float64 `toml:"temperature"`     // Sampling temperature (0 for deterministic classification)
	TimeoutSecs int     `toml:"timeout_seconds"` // Request timeout in seconds
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and applies defaults
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Validate storage config
	if c.Storage.SQLiteBasePath == "" {
		return fmt.Errorf("sqlite_base_path is required")
	}
	if c.Storage.SessionLogDir == "" {
		return fmt.Errorf("session_log_dir is required")
	}
	if c.Storage.MaxSessionsInAPI <= 0 {
		c.Storage.MaxSessionsInAPI = 50
	}

	// Validate reception config
	if err := c.ValidateReception(); err != nil {
		return err
	}

	// Validate negotiation config
	if err := c.ValidateNegotiation(); err != nil {
		return err
	}

	// Validate notifier config
	if c.Notifier.Enabled {
		if c.Notifier.APIBaseURL == "" {
			return fmt.Errorf("notifier api_base_url is required when the notifier is enabled")
		}
		if c.Notifier.AccessToken == "" {
			return fmt.Errorf("notifier access_token is required when the notifier is enabled")
		}
	}
	if c.Notifier.TimeoutSecs <= 0 {
		c.Notifier.TimeoutSecs = 10
	}

	// Gemini settings: features degrade to their fallbacks without a key,
	// so only warn rather than fail
	if c.Gemini.APIKey == "" {
		fmt.Printf("WARN: No Gemini API key provided - intent classification and extraction will be unavailable\n")
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Gemini.TimeoutSecs <= 0 {
		c.Gemini.TimeoutSecs = 30
	}

	return nil
}

// ValidateReception validates the reception configuration
func (c *Config) ValidateReception() error {
	if c.Reception.Mode == "" {
		c.Reception.Mode = string(ModeAway)
	}
	if !ValidMode(Mode(c.Reception.Mode)) {
		return fmt.Errorf("invalid reception mode: %s", c.Reception.Mode)
	}
	if c.Reception.Language == "" {
		c.Reception.Language = "ja"
	}
	if c.Reception.TurnTimeoutSecs <= 0 {
		return fmt.Errorf("turn_timeout_seconds must be a positive integer: %d", c.Reception.TurnTimeoutSecs)
	}
	if c.Reception.IdleResetSecs <= 0 {
		c.Reception.IdleResetSecs = 60
	}
	return nil
}

// ValidateNegotiation validates the negotiation configuration
func (c *Config) ValidateNegotiation() error {
	if c.Negotiation.WindowSecs <= 0 {
		return fmt.Errorf("negotiation window_seconds must be a positive integer: %d", c.Negotiation.WindowSecs)
	}
	if len(c.Negotiation.Primary) == 0 {
		return fmt.Errorf("at least one primary negotiation party is required")
	}
	seen := make(map[string]bool)
	for _, id := range append(append([]string{}, c.Negotiation.Primary...), c.Negotiation.Secondary...) {
		if id == "" {
			return fmt.Errorf("negotiation party IDs must not be empty")
		}
		if seen[id] {
			return fmt.Errorf("duplicate negotiation party ID: %s", id)
		}
		seen[id] = true
	}
	return nil
}
