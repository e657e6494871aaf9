package domain

import (
	"context"
	"time"
)

// ToolContext carries the triggering input into a tool execution.
type ToolContext struct {
	UserInput string
	UserID    string
	ChannelID string
	Timestamp time.Time
}

// Tool is a pluggable context-enrichment step. Execute returns a text
// block to append to the system prompt before backend dispatch.
type Tool interface {
	Name() string
	Execute(ctx context.Context, tc ToolContext) (string, error)
}
