// Package tool implements the context-enrichment steps that run before
// backend dispatch, and the factory that builds them from configuration.
package tool

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"relaybot/internal/domain"
)

// Enricher executes a rule's tools sequentially and assembles their
// output into one enrichment block.
type Enricher struct {
	logger *slog.Logger
}

func NewEnricher(logger *slog.Logger) *Enricher {
	return &Enricher{logger: logger}
}

// Enrich runs each tool in configuration order and concatenates the
// results. It fails open: a failing tool contributes no text and the
// remaining tools still run. The pipeline never aborts a backend call
// because a tool failed.
func (e *Enricher) Enrich(ctx context.Context, tools []domain.Tool, tc domain.ToolContext) string {
	if len(tools) == 0 {
		return ""
	}

	var blocks []string
	for _, t := range tools {
		result, err := t.Execute(ctx, tc)
		if err != nil {
			e.logger.Error("tool execution failed", "tool", t.Name(), "err", err)
			continue
		}
		blocks = append(blocks, fmt.Sprintf("\n--- %s Data ---\n%s", t.Name(), result))
		e.logger.Info("tool completed", "tool", t.Name(), "output_len", len(result))
	}

	return strings.Join(blocks, "\n")
}

// AppendEnrichment attaches a non-empty enrichment block to the system
// prompt.
func AppendEnrichment(systemPrompt, enrichment string) string {
	if enrichment == "" {
		return systemPrompt
	}
	return systemPrompt + "\n\n" + enrichment
}
