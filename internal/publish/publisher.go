// Package publish shapes generated replies and hands them to the chat
// platform via the message bus.
package publish

import (
	"log/slog"
	"unicode/utf8"

	"relaybot/internal/domain"
)

// MaxMessageLength is the longest reply posted back to the chat
// surface; longer backend output is truncated with an indicator.
const MaxMessageLength = 3000

const truncationSuffix = "\n\n... (response truncated)"

// Publisher posts replies according to a rule's response policy.
type Publisher struct {
	bus    domain.MessageBus
	logger *slog.Logger
}

func NewPublisher(bus domain.MessageBus, logger *slog.Logger) *Publisher {
	return &Publisher{bus: bus, logger: logger}
}

// Publish sends text to a channel, threaded under threadTS when
// non-empty. Delivery failures are the channel's to log; there is no
// retry and no further user-visible action possible.
func (p *Publisher) Publish(channel, channelID, threadTS, text string) {
	p.bus.SendOutbound(domain.OutboundMessage{
		Channel:   channel,
		ChannelID: channelID,
		ThreadTS:  threadTS,
		Text:      FormatText(text, MaxMessageLength),
	})
	p.logger.Info("response sent", "channel_id", channelID, "threaded", threadTS != "", "len", len(text))
}

// FormatText enforces the platform length limit, truncating with a
// visible indicator rather than splitting. The cut never lands inside a
// multibyte rune.
func FormatText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	cut := maxLen - len(truncationSuffix)
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + truncationSuffix
}
