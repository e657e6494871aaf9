// Package channel implements chat event sources. Slack is the only one
// today, connected over Socket Mode.
package channel

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"relaybot/internal/domain"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// Slack implements domain.Channel for Slack using Socket Mode. It also
// provides the reaction and authenticated-download capabilities the
// orchestrator needs.
type Slack struct {
	botToken string
	appToken string
	client   *slack.Client
	socket   *socketmode.Client
	bus      domain.MessageBus
	logger   *slog.Logger
	botUID   string // the bot's own user ID, so the orchestrator can skip self-replies
}

// SlackConfig configures the Slack channel.
type SlackConfig struct {
	BotToken string
	AppToken string
	Logger   *slog.Logger
}

// NewSlack creates a new Slack channel handler.
func NewSlack(cfg SlackConfig) *Slack {
	return &Slack{
		botToken: cfg.BotToken,
		appToken: cfg.AppToken,
		logger:   cfg.Logger,
	}
}

func (s *Slack) Name() string { return "slack" }

// Start connects to Slack via Socket Mode and begins listening for
// message events and slash commands. It blocks until ctx is done.
func (s *Slack) Start(ctx context.Context, bus domain.MessageBus) error {
	s.bus = bus

	api := slack.New(
		s.botToken,
		slack.OptionAppLevelToken(s.appToken),
	)
	s.client = api

	authResp, err := api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.botUID = authResp.UserID
	s.logger.Info("slack bot connected", "user", authResp.User, "user_id", authResp.UserID)

	socketClient := socketmode.New(api)
	s.socket = socketClient

	// Register outbound handler.
	bus.OnOutbound(s.Name(), func(msg domain.OutboundMessage) {
		if msg.Text == "" {
			return
		}
		s.sendMessage(msg.ChannelID, msg.ThreadTS, msg.Text)
	})

	// Event handling goroutine.
	go func() {
		for evt := range socketClient.Events {
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				socketClient.Ack(*evt.Request)
				s.handleEventsAPI(eventsAPIEvent)

			case socketmode.EventTypeSlashCommand:
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				socketClient.Ack(*evt.Request)
				s.handleSlashCommand(cmd)

			default:
				// Acknowledge unknown events to prevent Socket Mode disconnection.
				if evt.Request != nil {
					socketClient.Ack(*evt.Request)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- socketClient.RunContext(ctx)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("slack bot disconnecting")
		return nil
	case err := <-errCh:
		return fmt.Errorf("slack socket mode: %w", err)
	}
}

func (s *Slack) Stop() error { return nil }

func (s *Slack) handleEventsAPI(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}

	// Edits, deletions, joins, and the like are not new conversation.
	if ev.SubType != "" {
		return
	}
	if ev.User == "" && ev.BotID == "" {
		return
	}

	var attachments []domain.Attachment
	for _, f := range ev.Files {
		attachments = append(attachments, domain.Attachment{
			URL:      f.URLPrivate,
			MIMEType: f.Mimetype,
			Filename: f.Name,
		})
	}

	s.logger.Info("slack message received",
		"user", ev.User,
		"channel", ev.Channel,
		"content_len", len(ev.Text),
		"files", len(attachments),
	)

	s.bus.Publish(domain.InboundMessage{
		Channel:     s.Name(),
		ChannelID:   ev.Channel,
		UserID:      ev.User,
		Text:        ev.Text,
		MessageTS:   ev.TimeStamp,
		ThreadTS:    ev.ThreadTimeStamp,
		FromBot:     ev.BotID != "",
		FromSelf:    ev.User != "" && ev.User == s.botUID,
		Attachments: attachments,
		Timestamp:   time.Now(),
	})
}

func (s *Slack) handleSlashCommand(cmd slack.SlashCommand) {
	s.logger.Info("slack slash command",
		"command", cmd.Command,
		"user", cmd.UserID,
		"channel", cmd.ChannelID,
	)

	s.bus.Publish(domain.InboundMessage{
		Channel:   s.Name(),
		ChannelID: cmd.ChannelID,
		UserID:    cmd.UserID,
		Text:      strings.TrimSpace(cmd.Text),
		Command:   cmd.Command,
		Timestamp: time.Now(),
	})
}

// AddReaction attaches an emoji reaction to a message. Best effort; the
// caller logs failures and moves on.
func (s *Slack) AddReaction(ctx context.Context, channelID, messageTS, emoji string) error {
	return s.client.AddReactionContext(ctx, emoji, slack.NewRefToMessage(channelID, messageTS))
}

// DownloadFile fetches a private Slack file using the bot credential.
func (s *Slack) DownloadFile(ctx context.Context, url string) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.client.GetFileContext(ctx, url, &buf); err != nil {
		return nil, fmt.Errorf("download slack file: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Slack) sendMessage(channelID, threadTS, text string) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, _, err := s.client.PostMessage(channelID, opts...)
	if err != nil {
		s.logger.Error("slack send failed", "channel", channelID, "err", err)
	}
}
