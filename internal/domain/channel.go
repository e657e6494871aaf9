package domain

import "context"

// Channel is the interface for a chat event source (Slack today).
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
}

// Reactor adds emoji reactions to messages. Implemented by channels
// that support reactions; used as a best-effort "processing" signal.
type Reactor interface {
	AddReaction(ctx context.Context, channelID, messageTS, emoji string) error
}

// FileFetcher downloads an attachment from the chat platform using the
// platform's credentials.
type FileFetcher interface {
	DownloadFile(ctx context.Context, url string) ([]byte, error)
}
