// Package collect imports articles from RSS/Atom feeds and NewsAPI as
// draft articles for editors to review.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/TobiSchelling/newsdesk/internal/cms"
	"github.com/TobiSchelling/newsdesk/internal/config"
	"github.com/TobiSchelling/newsdesk/internal/content"
	"github.com/TobiSchelling/newsdesk/internal/fetch"
)

// Result holds the results of an import run.
type Result struct {
	TotalFound  int
	NewArticles int
	Duplicates  int
	Fetched     int
	Failed      int
	Sources     map[string]int
}

// PageFetcher extracts the readable text of an article page.
type PageFetcher interface {
	Page(ctx context.Context, articleURL string) (fetch.Page, error)
}

// Collector orchestrates article import from RSS feeds and NewsAPI.
type Collector struct {
	cms        *cms.Service
	feedParser *FeedParser
	newsClient *NewsAPIClient
	newsQuery  string
	newsCat    string
	fetcher    PageFetcher
	minBody    int
	daysBack   int
	author     string
	now        func() time.Time
}

// NewCollector creates a new article collector writing through svc.
func NewCollector(cfg *config.Config, svc *cms.Service) *Collector {
	imp := cfg.Import
	c := &Collector{
		cms:      svc,
		daysBack: imp.DaysBack,
		author:   imp.Author,
		minBody:  imp.Fetch.MinBody,
		now:      time.Now,
	}

	if len(imp.Feeds) > 0 {
		feeds := make([]FeedConfig, len(imp.Feeds))
		for i, f := range imp.Feeds {
			feeds[i] = FeedConfig{URL: f.URL, Name: f.Name, Category: f.Category}
		}
		c.feedParser = NewFeedParser(feeds, nil)
	}

	if imp.NewsAPI.Enabled {
		c.newsClient = NewNewsAPIClient(imp.NewsAPI.APIKeyEnv, imp.NewsAPI.Language)
		c.newsQuery = imp.NewsAPI.Query
		c.newsCat = imp.NewsAPI.Category
		if c.newsQuery == "" {
			c.newsQuery = "africa"
		}
	}

	if imp.Fetch.Enabled {
		c.fetcher = fetch.New(imp.Fetch.Timeout)
	}

	return c
}

// Collect imports entries from all configured sources. Entries whose
// source URL was imported before are counted as duplicates. Only store
// failures abort the run; source failures are logged and skipped.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	r := &Result{Sources: make(map[string]int)}
	now := c.now()

	var entries []FeedEntry
	if c.feedParser != nil {
		log.Println("Collecting from RSS feeds...")
		entries = append(entries, c.feedParser.ParseAll(ctx, c.daysBack, now)...)
	}

	if c.newsClient != nil && c.newsClient.IsConfigured() {
		log.Println("Collecting from NewsAPI...")
		found, err := c.newsClient.Search(ctx, c.newsQuery, c.daysBack, 100, now)
		if err != nil {
			log.Printf("NewsAPI search failed: %v", err)
		}
		for i := range found {
			found[i].CategoryID = c.newsCat
		}
		entries = append(entries, found...)
	}

	r.TotalFound = len(entries)
	seen := make(map[string]struct{})
	failedDomains := make(map[string]struct{})

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		if _, dup := seen[entry.URL]; dup {
			r.Duplicates++
			continue
		}
		seen[entry.URL] = struct{}{}

		exists, err := c.cms.HasSource(ctx, entry.URL)
		if err != nil {
			return r, err
		}
		if exists {
			r.Duplicates++
			continue
		}

		c.fillBody(ctx, &entry, r, failedDomains)

		if _, err := c.cms.CreateArticle(ctx, c.draft(entry)); err != nil {
			if errors.Is(err, cms.ErrTitleRequired) {
				continue
			}
			return r, fmt.Errorf("importing %s: %w", entry.URL, err)
		}
		r.NewArticles++
		r.Sources[entry.Source]++
	}

	log.Printf("Collection complete: %d found, %d new, %d duplicates", r.TotalFound, r.NewArticles, r.Duplicates)
	return r, nil
}

// fillBody fetches the full page text when the feed only carries a
// short body. After an HTTP error the rest of that domain is skipped.
func (c *Collector) fillBody(ctx context.Context, entry *FeedEntry, r *Result, failedDomains map[string]struct{}) {
	if c.fetcher == nil || len([]rune(entry.body())) >= c.minBody {
		return
	}

	domain := ""
	if u, err := url.Parse(entry.URL); err == nil {
		domain = strings.ToLower(u.Host)
	}
	if _, failed := failedDomains[domain]; failed {
		r.Failed++
		return
	}

	page, err := c.fetcher.Page(ctx, entry.URL)
	if err != nil {
		r.Failed++
		var statusErr *fetch.StatusError
		if errors.As(err, &statusErr) && domain != "" {
			failedDomains[domain] = struct{}{}
			log.Printf("HTTP error for %s, skipping remaining from %s", entry.URL, domain)
		}
		return
	}
	if page.Text == "" {
		r.Failed++
		log.Printf("No extractable content from: %s", entry.URL)
		return
	}

	entry.Content = page.Text
	if entry.ImageURL == "" {
		entry.ImageURL = page.ImageURL
	}
	if entry.Author == "" {
		entry.Author = page.Byline
	}
	r.Fetched++
}

func (c *Collector) draft(e FeedEntry) cms.Draft {
	author := e.Author
	if author == "" {
		author = c.author
	}
	excerpt := e.Summary
	if excerpt != "" {
		excerpt = content.DeriveExcerpt(excerpt)
	}
	return cms.Draft{
		Title:      e.Title,
		Excerpt:    excerpt,
		Body:       e.body(),
		CategoryID: e.CategoryID,
		Author:     author,
		ImageURL:   e.ImageURL,
		Status:     string(content.StatusDraft),
		SourceURL:  e.URL,
		SourceName: e.Source,
	}
}

// body is the longest text the entry carries.
func (e FeedEntry) body() string {
	if len(e.Content) >= len(e.Summary) {
		return e.Content
	}
	return e.Summary
}
