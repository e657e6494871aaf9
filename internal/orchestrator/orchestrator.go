// Package orchestrator runs the message pipeline: consume inbound chat
// events, match them against configured rules, enrich and dispatch to
// the rule's LLM backend, and publish the reply.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"relaybot/internal/attachment"
	"relaybot/internal/config"
	"relaybot/internal/domain"
	"relaybot/internal/metrics"
	"relaybot/internal/provider"
	"relaybot/internal/publish"
	"relaybot/internal/rules"
	"relaybot/internal/tool"
)

// fallbackReply is the only text a user ever sees when a backend call
// fails. Provider detail stays in the server logs.
const fallbackReply = "Sorry, I encountered an error processing your request."

const (
	replyCommandNotConfigured = "Sorry, this command is not configured."
	replyMessageTooLong       = "Your message is too long to process. Please shorten it and try again."

	// Placeholder user text when a matched message has no usable text.
	promptAnalyzeImage = "Please analyze this image."
	promptHello        = "Hello"
)

// Orchestrator consumes the bus and drives the pipeline with bounded
// concurrency.
type Orchestrator struct {
	bus       domain.MessageBus
	matcher   *rules.Matcher
	providers *provider.Factory
	resolver  *attachment.Resolver
	enricher  *tool.Enricher
	publisher *publish.Publisher
	reactor   domain.Reactor
	collector *metrics.Collector
	logger    *slog.Logger

	concurrency int
	maxInputLen int
	llmTimeout  time.Duration
	ignoreBots  bool
	ignoreSelf  bool
}

// Config wires the orchestrator's collaborators. Reactor may be nil
// when the channel implementation cannot add reactions.
type Config struct {
	Bus       domain.MessageBus
	Matcher   *rules.Matcher
	Providers *provider.Factory
	Resolver  *attachment.Resolver
	Enricher  *tool.Enricher
	Publisher *publish.Publisher
	Reactor   domain.Reactor
	Collector *metrics.Collector
	Settings  config.Settings
	Logger    *slog.Logger
}

func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		bus:         cfg.Bus,
		matcher:     cfg.Matcher,
		providers:   cfg.Providers,
		resolver:    cfg.Resolver,
		enricher:    cfg.Enricher,
		publisher:   cfg.Publisher,
		reactor:     cfg.Reactor,
		collector:   cfg.Collector,
		logger:      cfg.Logger,
		concurrency: cfg.Settings.MaxConcurrentMessages,
		maxInputLen: cfg.Settings.MaxMessageLength,
		llmTimeout:  time.Duration(cfg.Settings.LLMTimeoutSeconds) * time.Second,
		ignoreBots:  cfg.Settings.IgnoreBotMessages == nil || *cfg.Settings.IgnoreBotMessages,
		ignoreSelf:  cfg.Settings.IgnoreSelf == nil || *cfg.Settings.IgnoreSelf,
	}
}

// Run consumes inbound messages until ctx is cancelled or the bus
// closes, processing at most concurrency messages at a time. Messages
// already in flight are drained before Run returns.
func (o *Orchestrator) Run(ctx context.Context) {
	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup

	inbound := o.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator draining in-flight messages")
			wg.Wait()
			return
		case msg, ok := <-inbound:
			if !ok {
				wg.Wait()
				return
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(m domain.InboundMessage) {
				defer wg.Done()
				defer func() { <-sem }()
				o.process(ctx, m)
			}(msg)
		}
	}
}

func (o *Orchestrator) process(ctx context.Context, msg domain.InboundMessage) {
	if msg.Command != "" {
		o.processCommand(ctx, msg)
		return
	}
	o.processChannelMessage(ctx, msg)
}

func (o *Orchestrator) processChannelMessage(ctx context.Context, msg domain.InboundMessage) {
	if o.ignoreBots && msg.FromBot {
		return
	}
	if o.ignoreSelf && msg.FromSelf {
		return
	}
	if len(msg.Text) > o.maxInputLen {
		o.logger.Warn("dropping oversized message",
			"channel_id", msg.ChannelID,
			"len", len(msg.Text),
			"max", o.maxInputLen,
		)
		return
	}

	mon := o.matcher.MatchChannel(msg)
	if mon == nil {
		return
	}
	o.counter("relaybot_messages_matched_total", "Inbound channel messages matched by a rule").Inc()
	o.logger.Info("message matched rule",
		"channel_id", msg.ChannelID,
		"channel_name", mon.Rule.ChannelName,
		"provider", mon.Rule.LLM.Provider,
	)

	// Resolve images before any visible side effect, so a message whose
	// required images all fail to download is skipped without a dangling
	// reaction.
	var images []domain.ResolvedImage
	if len(msg.Attachments) > 0 {
		images = o.resolver.Resolve(ctx, msg.Attachments)
	}
	if mon.Rule.RequireImage && len(images) == 0 {
		o.logger.Warn("required image could not be resolved, skipping", "channel_id", msg.ChannelID)
		return
	}

	// Acknowledge receipt before the (slow) backend call.
	if emoji := mon.Rule.Response.AddReaction; emoji != "" && o.reactor != nil {
		if err := o.reactor.AddReaction(ctx, msg.ChannelID, msg.MessageTS, emoji); err != nil {
			o.logger.Warn("failed to add reaction", "emoji", emoji, "err", err)
		}
	}

	threadTS := ""
	if mon.Rule.Response.InThread() {
		threadTS = msg.ThreadTS
		if threadTS == "" {
			threadTS = msg.MessageTS
		}
	}

	systemPrompt := o.enrichPrompt(ctx, mon.Rule.SystemPrompt, mon.Tools, msg)

	reply, ok := o.complete(ctx, mon.Rule.LLM, domain.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserText:     userText(msg.Text, images),
		Images:       images,
		Model:        mon.Rule.LLM.Model,
		MaxTokens:    mon.Rule.LLM.MaxTokens,
		Temperature:  mon.Rule.LLM.TemperatureValue(),
	})
	if !ok {
		reply = fallbackReply
	}
	o.publisher.Publish(msg.Channel, msg.ChannelID, threadTS, reply)
}

func (o *Orchestrator) processCommand(ctx context.Context, msg domain.InboundMessage) {
	cmd := o.matcher.MatchCommand(msg.Command)
	if cmd == nil {
		o.publisher.Publish(msg.Channel, msg.ChannelID, "", replyCommandNotConfigured)
		return
	}
	if msg.Text == "" {
		o.publisher.Publish(msg.Channel, msg.ChannelID, "",
			fmt.Sprintf("Please provide text after the command. Usage: `%s <your text>`", msg.Command))
		return
	}
	if len(msg.Text) > o.maxInputLen {
		o.publisher.Publish(msg.Channel, msg.ChannelID, "", replyMessageTooLong)
		return
	}

	o.counter("relaybot_commands_matched_total", "Slash command invocations matched by a rule").Inc()
	o.logger.Info("slash command matched",
		"command", msg.Command,
		"channel_id", msg.ChannelID,
		"provider", cmd.Rule.LLM.Provider,
	)

	systemPrompt := o.enrichPrompt(ctx, cmd.Rule.SystemPrompt, cmd.Tools, msg)

	reply, ok := o.complete(ctx, cmd.Rule.LLM, domain.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserText:     msg.Text,
		Model:        cmd.Rule.LLM.Model,
		MaxTokens:    cmd.Rule.LLM.MaxTokens,
		Temperature:  cmd.Rule.LLM.TemperatureValue(),
	})
	if !ok {
		reply = fallbackReply
	}
	o.publisher.Publish(msg.Channel, msg.ChannelID, "", reply)
}

func (o *Orchestrator) enrichPrompt(ctx context.Context, systemPrompt string, tools []domain.Tool, msg domain.InboundMessage) string {
	enrichment := o.enricher.Enrich(ctx, tools, domain.ToolContext{
		UserInput: msg.Text,
		UserID:    msg.UserID,
		ChannelID: msg.ChannelID,
		Timestamp: msg.Timestamp,
	})
	return tool.AppendEnrichment(systemPrompt, enrichment)
}

// complete dispatches one backend call with the configured timeout. On
// failure it logs the full error server-side and reports !ok so the
// caller substitutes the fallback reply. There is exactly one attempt
// per message; retrying against a slow chat surface only piles up work.
func (o *Orchestrator) complete(ctx context.Context, llm config.LLMConfig, req domain.CompletionRequest) (string, bool) {
	p, err := o.providers.Get(llm)
	if err != nil {
		o.logger.Error("provider construction failed", "provider", llm.Provider, "err", err)
		o.counter("relaybot_backend_errors_total", "Failed LLM backend calls").Inc()
		return "", false
	}

	callCtx, cancel := context.WithTimeout(ctx, o.llmTimeout)
	defer cancel()

	o.counter("relaybot_backend_requests_total", "LLM backend calls dispatched").Inc()
	resp, err := p.Complete(callCtx, req)
	if err != nil {
		o.counter("relaybot_backend_errors_total", "Failed LLM backend calls").Inc()
		if be, ok := domain.AsBackendError(err); ok {
			o.logger.Error("backend call failed",
				"provider", be.Provider,
				"kind", string(be.Kind),
				"model", req.Model,
				"err", be.Err,
			)
		} else {
			o.logger.Error("backend call failed", "provider", p.Name(), "model", req.Model, "err", err)
		}
		return "", false
	}

	return resp.Content, true
}

// userText supplies placeholder text for matched messages that carry
// only an image, or nothing usable at all.
func userText(text string, images []domain.ResolvedImage) string {
	if text != "" {
		return text
	}
	if len(images) > 0 {
		return promptAnalyzeImage
	}
	return promptHello
}

func (o *Orchestrator) counter(name, help string) *metrics.Counter {
	return o.collector.Counter(name, help)
}
