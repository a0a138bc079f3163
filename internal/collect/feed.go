package collect

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const maxPerFeed = 20

// FeedEntry represents a parsed feed entry.
type FeedEntry struct {
	URL        string
	Title      string
	Published  time.Time // zero when the feed gives no date
	Summary    string
	Content    string
	ImageURL   string
	Author     string
	Source     string
	CategoryID string
}

// FeedConfig represents a single feed configuration.
type FeedConfig struct {
	URL      string
	Name     string
	Category string
}

// FeedParser parses RSS/Atom feeds.
type FeedParser struct {
	feeds  []FeedConfig
	client *http.Client
}

// NewFeedParser creates a new FeedParser.
func NewFeedParser(feeds []FeedConfig, client *http.Client) *FeedParser {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &FeedParser{feeds: feeds, client: client}
}

// ParseAll parses all configured feeds and returns entries within daysBack.
// A feed that fails to parse is logged and skipped.
func (fp *FeedParser) ParseAll(ctx context.Context, daysBack int, now time.Time) []FeedEntry {
	cutoff := now.AddDate(0, 0, -daysBack)
	var all []FeedEntry

	parser := gofeed.NewParser()
	parser.Client = fp.client
	for _, fc := range fp.feeds {
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		entries, err := parseFeed(ctx, parser, fc, name, cutoff)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			continue
		}
		all = append(all, entries...)
		log.Printf("Parsed %d entries from %s (within %d days)", len(entries), name, daysBack)
	}

	return all
}

func parseFeed(ctx context.Context, parser *gofeed.Parser, fc FeedConfig, sourceName string, cutoff time.Time) ([]FeedEntry, error) {
	feed, err := parser.ParseURLWithContext(fc.URL, ctx)
	if err != nil {
		return nil, err
	}

	var entries []FeedEntry
	for _, item := range feed.Items {
		if len(entries) >= maxPerFeed {
			break
		}

		entry := parseItem(item, sourceName)
		if entry == nil {
			continue
		}
		entry.CategoryID = fc.Category
		if isWithinWindow(entry.Published, cutoff) {
			entries = append(entries, *entry)
		}
	}

	return entries, nil
}

func parseItem(item *gofeed.Item, source string) *FeedEntry {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	if itemURL == "" {
		return nil
	}

	title := strings.TrimSpace(htmlText(item.Title))
	if title == "" {
		return nil
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.UTC()
	}

	entry := &FeedEntry{
		URL:       itemURL,
		Title:     title,
		Published: published,
		Summary:   htmlText(item.Description),
		Content:   htmlText(item.Content),
		Source:    source,
	}
	if item.Author != nil {
		entry.Author = strings.TrimSpace(item.Author.Name)
	}

	switch {
	case item.Image != nil && item.Image.URL != "":
		entry.ImageURL = item.Image.URL
	default:
		for _, enc := range item.Enclosures {
			if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
				entry.ImageURL = enc.URL
				break
			}
		}
	}
	if entry.ImageURL == "" {
		entry.ImageURL = firstImage(item.Content)
	}
	if entry.ImageURL == "" {
		entry.ImageURL = firstImage(item.Description)
	}

	return entry
}

func isWithinWindow(published, cutoff time.Time) bool {
	if published.IsZero() {
		return true // benefit of the doubt
	}
	return !published.Before(cutoff)
}

// htmlText returns the visible text of an HTML fragment with whitespace
// collapsed.
func htmlText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func firstImage(fragment string) string {
	if !strings.Contains(fragment, "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
