// Package config loads the application configuration from TOML files and
// PLANBOT_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration.
type Config struct {
	Jira struct {
		BaseURL string `koanf:"base_url"`
		Email   string `koanf:"email"`
		Token   string `koanf:"token"`
	} `koanf:"jira"`

	GitHub struct {
		Token string `koanf:"token"`
	} `koanf:"github"`

	Figma struct {
		Token string `koanf:"token"`
	} `koanf:"figma"`

	LLM struct {
		Provider    string  `koanf:"provider"` // claude, gemini, openai, ollama
		Model       string  `koanf:"model"`
		APIKey      string  `koanf:"api_key"`
		BaseURL     string  `koanf:"base_url"`
		Temperature float64 `koanf:"temperature"`
		MaxTokens   int     `koanf:"max_tokens"`
	} `koanf:"llm"`

	Quality struct {
		MinChars int `koanf:"min_chars"`
		MinWords int `koanf:"min_words"`
	} `koanf:"quality"`

	Limits struct {
		MultiCategory    int `koanf:"multi_category"`    // distinct rule categories before the large-plan hint kicks in
		CollectorTimeout int `koanf:"collector_timeout"` // seconds per optional collector
	} `koanf:"limits"`

	Server struct {
		Addr string `koanf:"addr"`
	} `koanf:"server"`

	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

// LoadConfig loads the configuration from a file, falling back to default
// locations and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	k.Load(confmap.Provider(map[string]interface{}{
		"llm.provider":            "claude",
		"llm.model":               "claude-3-5-sonnet-20241022",
		"llm.temperature":         0.7,
		"llm.max_tokens":          8192,
		"quality.min_chars":       50,
		"quality.min_words":       10,
		"limits.multi_category":   3,
		"limits.collector_timeout": 8,
		"server.addr":             ":8230",
		"log.level":               "info",
	}, "."), nil)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./planbot.toml", "$HOME/.planbot.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	k.Load(env.Provider("PLANBOT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "PLANBOT_")), "_", ".", 1)
	}), nil)

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig writes a sample configuration file.
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# planbot configuration

[jira]
base_url = "https://your-org.atlassian.net"
email = "you@example.com"
token = "your-jira-api-token"

[github]
token = "" # optional, enables PR file/comment enrichment

[figma]
token = "" # optional, enables design context

[llm]
provider = "claude" # claude, gemini, openai, or ollama
model = "claude-3-5-sonnet-20241022"
api_key = "your-llm-api-key"
temperature = 0.7

[quality]
min_chars = 50
min_words = 10

[limits]
multi_category = 3
collector_timeout = 8
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate checks that the required credentials are present.
func Validate(config *Config) error {
	if config.Jira.BaseURL == "" {
		return fmt.Errorf("jira base_url is required")
	}
	if config.Jira.Email == "" || config.Jira.Token == "" {
		return fmt.Errorf("jira email and token are required")
	}

	switch config.LLM.Provider {
	case "claude", "gemini", "openai":
		if config.LLM.APIKey == "" {
			return fmt.Errorf("llm api_key is required for provider %s", config.LLM.Provider)
		}
	case "ollama":
		// Local provider needs no key; base_url defaults to localhost.
	default:
		return fmt.Errorf("unsupported llm provider: %s", config.LLM.Provider)
	}

	return nil
}
