// Package config defines and loads the IntelliBrowse agent configuration.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the agent service.
type Config struct {
	Server       ServerConfig       `json:"server" mapstructure:"server"`
	Provider     ProviderConfig     `json:"provider" mapstructure:"provider"`
	Agent        AgentConfig        `json:"agent" mapstructure:"agent"`
	Session      SessionConfig      `json:"session" mapstructure:"session"`
	Browser      BrowserConfig      `json:"browser" mapstructure:"browser"`
	ScreenParser ScreenParserConfig `json:"screen_parser" mapstructure:"screen_parser"`
	Document     DocumentConfig     `json:"document" mapstructure:"document"`
	Logging      LoggingConfig      `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds HTTP gateway settings.
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// ProviderConfig selects and configures the model provider.
type ProviderConfig struct {
	Name        string  `json:"name" mapstructure:"name"` // openai, anthropic
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	Model       string  `json:"model" mapstructure:"model"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
}

// AgentConfig bounds the reasoning loop.
type AgentConfig struct {
	MaxTurns     int    `json:"max_turns" mapstructure:"max_turns"`
	SystemPrompt string `json:"system_prompt" mapstructure:"system_prompt"` // optional preamble override
}

// SessionConfig controls the in-memory session store.
type SessionConfig struct {
	IdleTTLMinutes int    `json:"idle_ttl_minutes" mapstructure:"idle_ttl_minutes"`
	SweepSchedule  string `json:"sweep_schedule" mapstructure:"sweep_schedule"`
}

// BrowserConfig configures the browser automation collaborator.
type BrowserConfig struct {
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
	ControlURL     string `json:"control_url" mapstructure:"control_url"` // external CDP endpoint, empty to launch
	Headless       bool   `json:"headless" mapstructure:"headless"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ScreenParserConfig configures the screen-parsing collaborator.
type ScreenParserConfig struct {
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
	Endpoint       string `json:"endpoint" mapstructure:"endpoint"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// DocumentConfig configures the document inlining collaborator.
type DocumentConfig struct {
	Enabled  bool  `json:"enabled" mapstructure:"enabled"`
	MaxBytes int64 `json:"max_bytes" mapstructure:"max_bytes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8420,
		},
		Provider: ProviderConfig{
			Name:        "openai",
			Model:       "gpt-4o",
			Temperature: 0.2,
			MaxTokens:   2048,
		},
		Agent: AgentConfig{
			MaxTurns: 15,
		},
		Session: SessionConfig{
			IdleTTLMinutes: 30,
			SweepSchedule:  "@every 1m",
		},
		Browser: BrowserConfig{
			Enabled:        true,
			Headless:       true,
			TimeoutSeconds: 30,
		},
		ScreenParser: ScreenParserConfig{
			TimeoutSeconds: 30,
		},
		Document: DocumentConfig{
			Enabled:  true,
			MaxBytes: 4 << 20, // 4MB
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be in 1..65535, got %d", c.Server.Port)
	}

	switch c.Provider.Name {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported provider: %s", c.Provider.Name)
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("provider model cannot be empty")
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 1 {
		return fmt.Errorf("provider temperature must be between 0 and 1")
	}
	if c.Provider.MaxTokens < 0 {
		return fmt.Errorf("provider max tokens cannot be negative")
	}

	if c.Agent.MaxTurns <= 0 {
		return fmt.Errorf("agent max turns must be positive")
	}

	if c.Session.IdleTTLMinutes <= 0 {
		return fmt.Errorf("session idle TTL must be positive")
	}

	if c.ScreenParser.Enabled && c.ScreenParser.Endpoint == "" {
		return fmt.Errorf("screen parser endpoint is required when enabled")
	}

	return nil
}

// SessionIdleTTL returns the idle TTL as a duration.
func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.Session.IdleTTLMinutes) * time.Minute
}
