package tool

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"relaybot/internal/domain"
)

const summaryMaxLen = 500

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// RSSFeedTool fetches RSS/Atom feeds and returns stories not reported
// by a previous execution. Seen article ids persist in a SeenStore so
// the de-dup set outlives the process.
type RSSFeedTool struct {
	feedURLs   []string
	maxStories int
	store      *SeenStore
	parser     *gofeed.Parser
	logger     *slog.Logger
}

type RSSFeedConfig struct {
	FeedURLs   []string
	MaxStories int
	Store      *SeenStore
	Logger     *slog.Logger
}

func NewRSSFeedTool(cfg RSSFeedConfig) *RSSFeedTool {
	if cfg.MaxStories <= 0 {
		cfg.MaxStories = 10
	}
	return &RSSFeedTool{
		feedURLs:   cfg.FeedURLs,
		maxStories: cfg.MaxStories,
		store:      cfg.Store,
		parser:     gofeed.NewParser(),
		logger:     cfg.Logger,
	}
}

func (t *RSSFeedTool) Name() string { return "RSSFeed" }

type story struct {
	id        string
	title     string
	link      string
	summary   string
	published time.Time
	source    string
}

func (t *RSSFeedTool) Execute(ctx context.Context, _ domain.ToolContext) (string, error) {
	var stories []story

	// Per-feed fail open: a broken feed never hides the others.
	for _, feedURL := range t.feedURLs {
		fetched, err := t.fetchFeed(ctx, feedURL)
		if err != nil {
			t.logger.Warn("error fetching feed", "url", feedURL, "err", err)
			continue
		}
		stories = append(stories, fetched...)
	}

	if len(stories) == 0 {
		t.logger.Info("no new stories found in RSS feeds")
		return "No new stories found in the configured RSS feeds.", nil
	}

	// Newest first, bounded to maxStories.
	sort.Slice(stories, func(i, j int) bool {
		return stories[i].published.After(stories[j].published)
	})
	limited := stories
	if len(limited) > t.maxStories {
		limited = limited[:t.maxStories]
	}

	ids := make([]string, len(stories))
	for i, s := range stories {
		ids[i] = s.id
	}
	if err := t.store.MarkSeen(ctx, ids); err != nil {
		return "", fmt.Errorf("persist seen articles: %w", err)
	}

	t.logger.Info("found new stories", "total", len(stories), "returned", len(limited))
	return formatStories(limited), nil
}

func (t *RSSFeedTool) fetchFeed(ctx context.Context, feedURL string) ([]story, error) {
	feed, err := t.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	source := feed.Title
	if source == "" {
		source = feedURL
	}

	var stories []story
	for _, item := range feed.Items {
		id := articleID(item)
		seen, err := t.store.Contains(ctx, id)
		if err != nil {
			return nil, err
		}
		if seen {
			continue
		}
		stories = append(stories, story{
			id:        id,
			title:     itemTitle(item),
			link:      item.Link,
			summary:   cleanSummary(item.Description),
			published: publishedAt(item),
			source:    source,
		})
	}
	return stories, nil
}

// articleID prefers the feed's own id, then the link, then a title
// hash, so an article keeps the same identity across fetches.
func articleID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	h := fnv.New64a()
	h.Write([]byte(item.Title))
	return strconv.FormatUint(h.Sum64(), 16)
}

func itemTitle(item *gofeed.Item) string {
	if item.Title == "" {
		return "Untitled"
	}
	return item.Title
}

func publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

// cleanSummary strips HTML tags, collapses whitespace, and truncates.
func cleanSummary(summary string) string {
	clean := htmlTagRe.ReplaceAllString(summary, "")
	clean = strings.Join(strings.Fields(clean), " ")
	if len(clean) > summaryMaxLen {
		clean = clean[:summaryMaxLen-3] + "..."
	}
	return clean
}

func formatStories(stories []story) string {
	var b strings.Builder
	fmt.Fprintf(&b, "NEW STORIES (%d articles):\n\n", len(stories))
	for i, s := range stories {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, s.title)
		fmt.Fprintf(&b, "    Source: %s\n", s.source)
		if !s.published.IsZero() {
			fmt.Fprintf(&b, "    Published: %s\n", s.published.Format(time.RFC3339))
		}
		if s.summary != "" {
			fmt.Fprintf(&b, "    Summary: %s\n", s.summary)
		}
		fmt.Fprintf(&b, "    Link: %s\n\n", s.link)
	}
	return b.String()
}
