package tool

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"relaybot/internal/domain"
)

type fakeTool struct {
	name   string
	result string
	err    error
	calls  int
}

func (f *fakeTool) Name() string { return f.name }

func (f *fakeTool) Execute(context.Context, domain.ToolContext) (string, error) {
	f.calls++
	return f.result, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestEnrich_NoTools(t *testing.T) {
	e := NewEnricher(testLogger())
	if got := e.Enrich(context.Background(), nil, domain.ToolContext{}); got != "" {
		t.Errorf("expected empty enrichment, got %q", got)
	}
}

func TestEnrich_FormatsToolBlocks(t *testing.T) {
	e := NewEnricher(testLogger())
	out := e.Enrich(context.Background(), []domain.Tool{
		&fakeTool{name: "OpenWeatherMap", result: "72F and sunny"},
	}, domain.ToolContext{})

	if !strings.Contains(out, "--- OpenWeatherMap Data ---") {
		t.Errorf("missing tool header: %q", out)
	}
	if !strings.Contains(out, "72F and sunny") {
		t.Errorf("missing tool output: %q", out)
	}
}

func TestEnrich_FailingToolDoesNotBlockOthers(t *testing.T) {
	e := NewEnricher(testLogger())
	broken := &fakeTool{name: "RSSFeed", err: errors.New("feed unreachable")}
	working := &fakeTool{name: "OpenWeatherMap", result: "72F"}

	out := e.Enrich(context.Background(), []domain.Tool{broken, working}, domain.ToolContext{})

	if working.calls != 1 {
		t.Fatalf("second tool should still run, calls=%d", working.calls)
	}
	if strings.Contains(out, "RSSFeed") {
		t.Errorf("failed tool must not contribute a block: %q", out)
	}
	if !strings.Contains(out, "72F") {
		t.Errorf("working tool output missing: %q", out)
	}
}

func TestAppendEnrichment(t *testing.T) {
	if got := AppendEnrichment("base prompt", ""); got != "base prompt" {
		t.Errorf("empty enrichment must leave prompt unchanged, got %q", got)
	}

	got := AppendEnrichment("base prompt", "--- data ---")
	if !strings.HasPrefix(got, "base prompt\n\n") {
		t.Errorf("enrichment should append after a blank line, got %q", got)
	}
	if !strings.HasSuffix(got, "--- data ---") {
		t.Errorf("enrichment missing: %q", got)
	}
}
