package config

import (
	"fmt"
	"strings"
)

// knownProviders are the backend tags the provider factory can build.
var knownProviders = map[string]bool{
	"bedrock":    true,
	"anthropic":  true,
	"openrouter": true,
}

// knownTools are the tool tags the tool factory can build.
var knownTools = map[string]bool{
	"openweathermap": true,
	"rssfeed":        true,
}

// Validate fails fast on configuration the pipeline cannot act on:
// unknown provider or tool tags, missing credentials, malformed rules.
// Disabled rules are still validated so a typo does not hide until the
// rule is re-enabled.
func Validate(c *Config) error {
	if strings.TrimSpace(c.Slack.BotToken) == "" {
		return fmt.Errorf("slack.bot_token is required")
	}
	if strings.TrimSpace(c.Slack.AppToken) == "" {
		return fmt.Errorf("slack.app_token is required")
	}

	for i, ch := range c.Channels {
		where := fmt.Sprintf("channels[%d]", i)
		if ch.ChannelName != "" {
			where = fmt.Sprintf("channel %q", ch.ChannelName)
		}
		if strings.TrimSpace(ch.ChannelID) == "" {
			return fmt.Errorf("%s: channel_id is required", where)
		}
		if strings.TrimSpace(ch.SystemPrompt) == "" {
			return fmt.Errorf("%s: system_prompt is required", where)
		}
		for _, kw := range ch.Keywords {
			if strings.TrimSpace(kw) == "" {
				return fmt.Errorf("%s: keywords must not contain empty entries", where)
			}
		}
		if err := validateLLM(ch.LLM); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		if err := validateTools(ch.Tools); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	}

	seen := make(map[string]bool, len(c.SlashCommands))
	for i, cmd := range c.SlashCommands {
		where := fmt.Sprintf("slash_commands[%d]", i)
		if cmd.Command != "" {
			where = fmt.Sprintf("command %q", cmd.Command)
		}
		if strings.TrimSpace(cmd.Command) == "" {
			return fmt.Errorf("%s: command is required", where)
		}
		// The "/" prefix is normalized in applyDefaults before validation.
		if seen[cmd.Command] {
			return fmt.Errorf("%s: duplicate command", where)
		}
		seen[cmd.Command] = true
		if strings.TrimSpace(cmd.SystemPrompt) == "" {
			return fmt.Errorf("%s: system_prompt is required", where)
		}
		if err := validateLLM(cmd.LLM); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		if err := validateTools(cmd.Tools); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	}

	return nil
}

func validateLLM(llm LLMConfig) error {
	if llm.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if !knownProviders[llm.Provider] {
		return fmt.Errorf("unknown llm provider %q (supported: anthropic, bedrock, openrouter)", llm.Provider)
	}
	if llm.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	switch llm.Provider {
	case "anthropic", "openrouter":
		if llm.APIKey == "" {
			return fmt.Errorf("llm.api_key is required for provider %q", llm.Provider)
		}
	}
	if llm.Temperature != nil && (*llm.Temperature < 0 || *llm.Temperature > 1) {
		return fmt.Errorf("llm.temperature must be between 0 and 1")
	}
	return nil
}

func validateTools(tools []ToolConfig) error {
	for i, t := range tools {
		if t.Type == "" {
			return fmt.Errorf("tools[%d]: type is required", i)
		}
		if !knownTools[t.Type] {
			return fmt.Errorf("tools[%d]: unknown tool type %q", i, t.Type)
		}
		switch t.Type {
		case "openweathermap":
			if t.APIKey == "" {
				return fmt.Errorf("tools[%d]: openweathermap requires api_key", i)
			}
			if t.Location == "" && (t.Latitude == nil || t.Longitude == nil) {
				return fmt.Errorf("tools[%d]: openweathermap requires location or latitude+longitude", i)
			}
		case "rssfeed":
			if len(t.FeedURLs) == 0 {
				return fmt.Errorf("tools[%d]: rssfeed requires at least one feed_urls entry", i)
			}
		}
	}
	return nil
}
