package tool

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"relaybot/internal/domain"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test Feed</title>
%s
</channel>
</rss>`

func rssItem(guid, title, desc string) string {
	return fmt.Sprintf(`<item>
<guid>%s</guid>
<title>%s</title>
<link>https://example.com/%s</link>
<description>%s</description>
<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
</item>`, guid, title, guid, desc)
}

func rssServer(t *testing.T, items *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, rssTemplate, *items)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRSSFeedTool_ReturnsNewStories(t *testing.T) {
	items := rssItem("a1", "First story", "Something happened")
	srv := rssServer(t, &items)

	tool := NewRSSFeedTool(RSSFeedConfig{
		FeedURLs: []string{srv.URL},
		Store:    testSeenStore(t),
		Logger:   testLogger(),
	})

	out, err := tool.Execute(context.Background(), domain.ToolContext{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "NEW STORIES (1 articles)") {
		t.Errorf("missing story count header: %q", out)
	}
	if !strings.Contains(out, "First story") {
		t.Errorf("missing story title: %q", out)
	}
	if !strings.Contains(out, "Source: Test Feed") {
		t.Errorf("missing source line: %q", out)
	}
}

func TestRSSFeedTool_DeduplicatesAcrossExecutions(t *testing.T) {
	items := rssItem("a1", "First story", "desc")
	srv := rssServer(t, &items)

	tool := NewRSSFeedTool(RSSFeedConfig{
		FeedURLs: []string{srv.URL},
		Store:    testSeenStore(t),
		Logger:   testLogger(),
	})
	ctx := context.Background()

	if _, err := tool.Execute(ctx, domain.ToolContext{}); err != nil {
		t.Fatal(err)
	}

	// Same feed content again: everything already seen.
	out, err := tool.Execute(ctx, domain.ToolContext{})
	if err != nil {
		t.Fatal(err)
	}
	if out != "No new stories found in the configured RSS feeds." {
		t.Errorf("expected no-new-stories message, got %q", out)
	}

	// A new article shows up: only it is reported.
	items = rssItem("a1", "First story", "desc") + rssItem("a2", "Second story", "more")
	out, err = tool.Execute(ctx, domain.ToolContext{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "First story") {
		t.Errorf("already-seen story reported again: %q", out)
	}
	if !strings.Contains(out, "Second story") {
		t.Errorf("new story missing: %q", out)
	}
}

func TestRSSFeedTool_MaxStoriesLimit(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 5; i++ {
		b.WriteString(rssItem(fmt.Sprintf("id%d", i), fmt.Sprintf("Story %d", i), ""))
	}
	items := b.String()
	srv := rssServer(t, &items)

	tool := NewRSSFeedTool(RSSFeedConfig{
		FeedURLs:   []string{srv.URL},
		MaxStories: 2,
		Store:      testSeenStore(t),
		Logger:     testLogger(),
	})
	ctx := context.Background()

	out, err := tool.Execute(ctx, domain.ToolContext{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "NEW STORIES (2 articles)") {
		t.Errorf("expected limit of 2 stories: %q", out)
	}

	// Stories beyond the limit were still marked seen.
	out, err = tool.Execute(ctx, domain.ToolContext{})
	if err != nil {
		t.Fatal(err)
	}
	if out != "No new stories found in the configured RSS feeds." {
		t.Errorf("overflow stories should not reappear, got %q", out)
	}
}

func TestRSSFeedTool_BrokenFeedFailsOpen(t *testing.T) {
	items := rssItem("ok1", "Good story", "")
	good := rssServer(t, &items)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)

	tool := NewRSSFeedTool(RSSFeedConfig{
		FeedURLs: []string{bad.URL, good.URL},
		Store:    testSeenStore(t),
		Logger:   testLogger(),
	})

	out, err := tool.Execute(context.Background(), domain.ToolContext{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Good story") {
		t.Errorf("healthy feed should still be reported: %q", out)
	}
}

func TestCleanSummary(t *testing.T) {
	got := cleanSummary("<p>Hello   <b>world</b></p>\n\n  extra")
	if got != "Hello world extra" {
		t.Errorf("got %q", got)
	}

	long := strings.Repeat("x", 600)
	got = cleanSummary(long)
	if len(got) != summaryMaxLen {
		t.Errorf("truncated length %d, want %d", len(got), summaryMaxLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncation should end with ellipsis: %q", got[len(got)-10:])
	}
}
