package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for RelayBot. It is loaded once at
// startup, validated, and passed by reference into the orchestrator
// and its components; nothing mutates it afterwards.
type Config struct {
	Slack         SlackConfig   `yaml:"slack"`
	Settings      Settings      `yaml:"settings"`
	Channels      []ChannelRule `yaml:"channels"`
	SlashCommands []CommandRule `yaml:"slash_commands"`
}

// SlackConfig holds the Socket Mode credentials.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	AppToken string `yaml:"app_token"` // xapp- token, required for Socket Mode
}

// Settings are global knobs shared by all rules.
type Settings struct {
	LogLevel              string `yaml:"log_level"`
	MaxMessageLength      int    `yaml:"max_message_length"`
	LLMTimeoutSeconds     int    `yaml:"llm_timeout"`
	MaxConcurrentMessages int    `yaml:"max_concurrent_messages"`
	IgnoreBotMessages     *bool  `yaml:"ignore_bot_messages"`
	IgnoreSelf            *bool  `yaml:"ignore_self"`
	MetricsAddr           string `yaml:"metrics_addr"` // optional, e.g. "127.0.0.1:9090"
}

// LLMConfig selects and parameterizes a backend for one rule.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // bedrock | anthropic | openrouter
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Region      string  `yaml:"region"` // bedrock only
	SiteURL     string  `yaml:"site_url"`  // openrouter attribution headers
	SiteName    string  `yaml:"site_name"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"` // default 0.7; zero is a valid explicit setting
}

// TemperatureValue returns the configured sampling temperature, or the
// default when the field is absent.
func (l LLMConfig) TemperatureValue() float64 {
	if l.Temperature == nil {
		return defaultTemperature
	}
	return *l.Temperature
}

// ResponsePolicy shapes how a rule's reply is delivered.
type ResponsePolicy struct {
	ThreadReply *bool  `yaml:"thread_reply"` // default true
	AddReaction string `yaml:"add_reaction"` // emoji name, e.g. "eyes"
}

// InThread reports whether replies should be threaded (the default).
func (p ResponsePolicy) InThread() bool {
	return p.ThreadReply == nil || *p.ThreadReply
}

// ChannelRule binds a monitored channel to a backend, prompt, and
// response policy. Rules are evaluated in declaration order; the first
// match wins.
type ChannelRule struct {
	ChannelID     string         `yaml:"channel_id"`
	ChannelName   string         `yaml:"channel_name"`
	Enabled       *bool          `yaml:"enabled"` // default true
	Keywords      []string       `yaml:"keywords"`
	CaseSensitive bool           `yaml:"case_sensitive"`
	RequireImage  bool           `yaml:"require_image"`
	LLM           LLMConfig      `yaml:"llm"`
	SystemPrompt  string         `yaml:"system_prompt"`
	Response      ResponsePolicy `yaml:"response"`
	Tools         []ToolConfig   `yaml:"tools"`
}

// IsEnabled reports whether the rule participates in matching.
func (r ChannelRule) IsEnabled() bool { return r.Enabled == nil || *r.Enabled }

// CommandRule binds a slash command to a backend and prompt.
type CommandRule struct {
	Command      string       `yaml:"command"`
	Description  string       `yaml:"description"`
	Enabled      *bool        `yaml:"enabled"` // default true
	LLM          LLMConfig    `yaml:"llm"`
	SystemPrompt string       `yaml:"system_prompt"`
	Tools        []ToolConfig `yaml:"tools"`
}

// IsEnabled reports whether the command is registered.
func (r CommandRule) IsEnabled() bool { return r.Enabled == nil || *r.Enabled }

// ToolConfig configures one context-enrichment tool. Type selects the
// implementation; the remaining fields are type-specific.
type ToolConfig struct {
	Type string `yaml:"type"` // openweathermap | rssfeed

	// openweathermap
	APIKey    string   `yaml:"api_key"`
	Location  string   `yaml:"location"`
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
	Units     string   `yaml:"units"`    // imperial | metric | standard
	Language  string   `yaml:"language"` // description language, default "en"

	// rssfeed
	FeedURLs   []string `yaml:"feed_urls"`
	DataFile   string   `yaml:"data_file"` // seen-article database path
	MaxStories int      `yaml:"max_stories"`
}

// Load reads, env-expands, and validates a YAML config file.
// ${VAR} references in the file are replaced from the environment so
// secrets stay out of the config on disk.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	expanded := os.Expand(string(raw), func(key string) string {
		return os.Getenv(key)
	})

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
