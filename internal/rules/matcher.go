// Package rules decides, for each inbound event, which configured rule
// (channel monitor or slash command) applies.
package rules

import (
	"log/slog"
	"strings"

	"relaybot/internal/attachment"
	"relaybot/internal/config"
	"relaybot/internal/domain"
)

// ChannelMonitor is a configured channel rule prepared for matching:
// keywords pre-normalized, tools constructed once at load time.
type ChannelMonitor struct {
	Rule  config.ChannelRule
	Tools []domain.Tool

	// keywords pre-lowered for case-insensitive rules
	keywords []string
}

// Command is a prepared slash-command rule.
type Command struct {
	Rule  config.CommandRule
	Tools []domain.Tool
}

// ToolBuilder constructs the tool handles for one rule. Injected so the
// matcher stays independent of concrete tool implementations.
type ToolBuilder func(cfgs []config.ToolConfig) ([]domain.Tool, error)

// Matcher evaluates inbound messages against the configured rules.
// Rules are immutable after construction, so matching is a pure
// function of the rule set and the message.
type Matcher struct {
	monitors []*ChannelMonitor
	commands map[string]*Command
	logger   *slog.Logger
}

// NewMatcher prepares all enabled rules. Lookup is linear in the number
// of channel rules; tens of rules are expected, not thousands.
func NewMatcher(cfg *config.Config, buildTools ToolBuilder, logger *slog.Logger) (*Matcher, error) {
	if buildTools == nil {
		buildTools = func([]config.ToolConfig) ([]domain.Tool, error) { return nil, nil }
	}

	m := &Matcher{
		commands: make(map[string]*Command),
		logger:   logger,
	}

	for _, rule := range cfg.Channels {
		if !rule.IsEnabled() {
			continue
		}
		tools, err := buildTools(rule.Tools)
		if err != nil {
			return nil, err
		}
		mon := &ChannelMonitor{Rule: rule, Tools: tools}
		if !rule.CaseSensitive {
			mon.keywords = make([]string, len(rule.Keywords))
			for i, kw := range rule.Keywords {
				mon.keywords[i] = strings.ToLower(kw)
			}
		} else {
			mon.keywords = rule.Keywords
		}
		m.monitors = append(m.monitors, mon)
	}

	for _, rule := range cfg.SlashCommands {
		if !rule.IsEnabled() {
			continue
		}
		tools, err := buildTools(rule.Tools)
		if err != nil {
			return nil, err
		}
		m.commands[rule.Command] = &Command{Rule: rule, Tools: tools}
	}

	return m, nil
}

// MatchChannel returns the first enabled channel rule satisfied by the
// message, or nil when the message should be ignored. A rule fires when
// its channel id matches, its keyword predicate holds (empty list
// matches everything), and, if require_image is set, the message
// declares at least one supported image attachment.
func (m *Matcher) MatchChannel(msg domain.InboundMessage) *ChannelMonitor {
	for _, mon := range m.monitors {
		if mon.Rule.ChannelID != msg.ChannelID {
			continue
		}
		if !mon.matchesKeywords(msg.Text) {
			continue
		}
		if mon.Rule.RequireImage && !hasImageAttachment(msg.Attachments) {
			continue
		}
		return mon
	}
	return nil
}

// MatchCommand returns the enabled rule for a slash command, matched by
// exact command string, or nil.
func (m *Matcher) MatchCommand(command string) *Command {
	return m.commands[command]
}

// Monitors returns the prepared channel rules in declaration order.
func (m *Matcher) Monitors() []*ChannelMonitor { return m.monitors }

// Commands returns the prepared slash commands.
func (m *Matcher) Commands() map[string]*Command { return m.commands }

func (mon *ChannelMonitor) matchesKeywords(text string) bool {
	if len(mon.keywords) == 0 {
		// Empty keyword list means match everything.
		return true
	}
	search := text
	if !mon.Rule.CaseSensitive {
		search = strings.ToLower(text)
	}
	for _, kw := range mon.keywords {
		if strings.Contains(search, kw) {
			return true
		}
	}
	return false
}

func hasImageAttachment(atts []domain.Attachment) bool {
	for _, a := range atts {
		if attachment.IsSupportedType(a.MIMEType) {
			return true
		}
	}
	return false
}
