package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading.
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader. An empty path falls back to
// $HOME/.intellibrowse/config.json.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the configuration file, applies INTELLIBROWSE_* environment
// overrides, and returns the merged config. A missing file yields defaults.
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".intellibrowse", "config.json")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("INTELLIBROWSE")
	v.AutomaticEnv()
	bindEnvOverrides(v)

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = apiKeyFromEnv(cfg.Provider.Name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Path returns the resolved config file path, if one was supplied.
func (l *Loader) Path() string {
	return l.configPath
}

// bindEnvOverrides maps the env names viper cannot derive on its own for
// nested keys.
func bindEnvOverrides(v *viper.Viper) {
	_ = v.BindEnv("server.host", "INTELLIBROWSE_SERVER_HOST")
	_ = v.BindEnv("server.port", "INTELLIBROWSE_SERVER_PORT")
	_ = v.BindEnv("provider.name", "INTELLIBROWSE_PROVIDER_NAME")
	_ = v.BindEnv("provider.api_key", "INTELLIBROWSE_PROVIDER_API_KEY")
	_ = v.BindEnv("provider.model", "INTELLIBROWSE_PROVIDER_MODEL")
	_ = v.BindEnv("agent.max_turns", "INTELLIBROWSE_AGENT_MAX_TURNS")
	_ = v.BindEnv("logging.level", "INTELLIBROWSE_LOGGING_LEVEL")
	_ = v.BindEnv("browser.control_url", "INTELLIBROWSE_BROWSER_CONTROL_URL")
	_ = v.BindEnv("screen_parser.endpoint", "INTELLIBROWSE_SCREEN_PARSER_ENDPOINT")
}

// apiKeyFromEnv falls back to the provider's conventional key variable.
func apiKeyFromEnv(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}
