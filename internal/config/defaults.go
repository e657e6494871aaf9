package config

const (
	defaultMaxMessageLength = 10000
	defaultLLMTimeout       = 30
	defaultConcurrency      = 3
	defaultMaxTokens        = 1024
	defaultTemperature      = 0.7
	defaultWeatherUnits     = "imperial"
	defaultWeatherLanguage  = "en"
	defaultSeenDataFile     = "data/seen_articles.db"
	defaultMaxStories       = 10
)

// Defaults returns a Config with global settings populated. Rule-level
// defaults are filled in by applyDefaults after unmarshaling.
func Defaults() *Config {
	return &Config{
		Settings: Settings{
			LogLevel:              "info",
			MaxMessageLength:      defaultMaxMessageLength,
			LLMTimeoutSeconds:     defaultLLMTimeout,
			MaxConcurrentMessages: defaultConcurrency,
		},
	}
}

// applyDefaults fills zero-valued rule fields with their documented
// defaults after YAML unmarshaling.
func (c *Config) applyDefaults() {
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = "info"
	}
	if c.Settings.MaxMessageLength <= 0 {
		c.Settings.MaxMessageLength = defaultMaxMessageLength
	}
	if c.Settings.LLMTimeoutSeconds <= 0 {
		c.Settings.LLMTimeoutSeconds = defaultLLMTimeout
	}
	if c.Settings.MaxConcurrentMessages <= 0 {
		c.Settings.MaxConcurrentMessages = defaultConcurrency
	}

	for i := range c.Channels {
		applyLLMDefaults(&c.Channels[i].LLM)
		applyToolDefaults(c.Channels[i].Tools)
	}
	for i := range c.SlashCommands {
		applyLLMDefaults(&c.SlashCommands[i].LLM)
		applyToolDefaults(c.SlashCommands[i].Tools)
		// Accept "news" as shorthand for "/news".
		if cmd := c.SlashCommands[i].Command; cmd != "" && cmd[0] != '/' {
			c.SlashCommands[i].Command = "/" + cmd
		}
	}
}

func applyLLMDefaults(llm *LLMConfig) {
	if llm.MaxTokens <= 0 {
		llm.MaxTokens = defaultMaxTokens
	}
	if llm.Region == "" {
		llm.Region = "us-east-1"
	}
}

func applyToolDefaults(tools []ToolConfig) {
	for i := range tools {
		t := &tools[i]
		switch t.Type {
		case "openweathermap":
			if t.Units == "" {
				t.Units = defaultWeatherUnits
			}
			if t.Language == "" {
				t.Language = defaultWeatherLanguage
			}
		case "rssfeed":
			if t.DataFile == "" {
				t.DataFile = defaultSeenDataFile
			}
			if t.MaxStories <= 0 {
				t.MaxStories = defaultMaxStories
			}
		}
	}
}
