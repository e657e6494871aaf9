package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"relaybot/internal/attachment"
	"relaybot/internal/bus"
	"relaybot/internal/channel"
	"relaybot/internal/config"
	"relaybot/internal/metrics"
	"relaybot/internal/orchestrator"
	"relaybot/internal/provider"
	"relaybot/internal/publish"
	"relaybot/internal/rules"
	"relaybot/internal/tool"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "relaybot",
		Short: "RelayBot: Slack to LLM message bridge",
		Long:  "RelayBot monitors Slack channels and slash commands and routes matching messages to configured LLM backends.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config.yaml")

	root.AddCommand(serveCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Slack and start routing messages",
		RunE:  runServe,
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config file, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Info("config valid",
				"path", configPath,
				"channels", len(cfg.Channels),
				"slash_commands", len(cfg.SlashCommands),
			)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("relaybot " + version)
		},
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Settings.LogLevel),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)

	toolFactory := tool.NewFactory(logger)
	defer toolFactory.Close()

	matcher, err := rules.NewMatcher(cfg, toolFactory.BuildAll, logger)
	if err != nil {
		return fmt.Errorf("prepare rules: %w", err)
	}
	logStartupRules(matcher)

	slackCh := channel.NewSlack(channel.SlackConfig{
		BotToken: cfg.Slack.BotToken,
		AppToken: cfg.Slack.AppToken,
		Logger:   logger,
	})

	collector := metrics.NewCollector()
	if cfg.Settings.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.Settings.MetricsAddr, collector)
	}

	orch := orchestrator.New(orchestrator.Config{
		Bus:       messageBus,
		Matcher:   matcher,
		Providers: provider.NewFactory(time.Duration(cfg.Settings.LLMTimeoutSeconds)*time.Second, logger),
		Resolver:  attachment.NewResolver(slackCh, logger),
		Enricher:  tool.NewEnricher(logger),
		Publisher: publish.NewPublisher(messageBus, logger),
		Reactor:   slackCh,
		Collector: collector,
		Settings:  cfg.Settings,
		Logger:    logger,
	})

	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		orch.Run(ctx)
	}()

	go func() {
		if err := slackCh.Start(ctx, messageBus); err != nil {
			logger.Error("slack channel error", "err", err)
			stop()
		}
	}()

	logger.Info("relaybot started. Press Ctrl+C to stop.", "version", version)

	<-ctx.Done()
	logger.Info("shutting down...")

	// Let in-flight messages drain, bounded.
	const shutdownTimeout = 15 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-orchDone
		slackCh.Stop()
		messageBus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

func logStartupRules(matcher *rules.Matcher) {
	for _, mon := range matcher.Monitors() {
		keywords := "ALL"
		if len(mon.Rule.Keywords) > 0 {
			keywords = strings.Join(mon.Rule.Keywords, ", ")
		}
		logger.Info("monitoring channel",
			"channel_id", mon.Rule.ChannelID,
			"channel_name", mon.Rule.ChannelName,
			"keywords", keywords,
			"require_image", mon.Rule.RequireImage,
			"provider", mon.Rule.LLM.Provider,
			"tools", len(mon.Tools),
		)
	}
	for name, cmd := range matcher.Commands() {
		logger.Info("registered slash command",
			"command", name,
			"provider", cmd.Rule.LLM.Provider,
			"tools", len(cmd.Tools),
		)
	}
}

func serveMetrics(ctx context.Context, addr string, collector *metrics.Collector) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server error", "err", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
