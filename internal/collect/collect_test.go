package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/newsdesk/internal/aggregate"
	"github.com/TobiSchelling/newsdesk/internal/cms"
	"github.com/TobiSchelling/newsdesk/internal/config"
	"github.com/TobiSchelling/newsdesk/internal/content"
	"github.com/TobiSchelling/newsdesk/internal/database"
	"github.com/TobiSchelling/newsdesk/internal/fetch"
	"github.com/TobiSchelling/newsdesk/internal/store"
)

var fixedNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), database.WithPollInterval(0))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

const longDescription = `<p>The regional trade bloc agreed on Monday to remove tariffs on
agricultural goods moving between member states, a decision economists say could lift
cross-border commerce for smallholder farmers. <img src="https://img.example.com/trade.jpg"></p>`

const storyPage = `<!DOCTYPE html>
<html><head><title>Coastal rail line reopens</title></head>
<body>
<nav><a href="/">Home</a></nav>
<article>
<h1>Coastal rail line reopens</h1>
<p>The coastal rail line closed for three years of repairs reopened to passengers this
morning, with the first train leaving the central station shortly after dawn.</p>
<p>Officials said the restored route halves travel time between the port and the capital
and will carry freight at night, easing congestion on the highway that runs alongside it.</p>
<p>Commuters on the inaugural service described the journey as smooth, and vendors at the
intermediate stations reported brisk trade as curious travellers stepped off to look around.</p>
</article>
</body></html>`

func rssFeed(base string) string {
	item := func(title, link, desc string, pub time.Time) string {
		return fmt.Sprintf(`<item><title>%s</title><link>%s</link><description><![CDATA[%s]]></description><pubDate>%s</pubDate></item>`,
			title, link, desc, pub.Format(time.RFC1123Z))
	}
	return `<?xml version="1.0"?><rss version="2.0"><channel><title>Wire</title>` +
		item("Coastal rail line reopens", base+"/story/rail", "Short teaser.", fixedNow.Add(-2*time.Hour)) +
		item("Trade bloc drops farm tariffs", base+"/story/trade", longDescription, fixedNow.Add(-5*time.Hour)) +
		item("Coastal rail line reopens", base+"/story/rail", "Short teaser.", fixedNow.Add(-2*time.Hour)) +
		item("Old news", base+"/story/old", "Stale.", fixedNow.AddDate(0, 0, -30)) +
		`</channel></rss>`
}

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFeed(srv.URL))
	})
	mux.HandleFunc("/story/rail", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, storyPage)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(feedURL string) *config.Config {
	return &config.Config{Import: config.Import{
		Feeds:    []config.Feed{{URL: feedURL, Name: "Wire", Category: "africa-news"}},
		DaysBack: 3,
		Author:   "Desk",
		Fetch:    config.FetchConfig{Enabled: true, Timeout: 5 * time.Second, MinBody: 200},
	}}
}

func TestCollectImportsDrafts(t *testing.T) {
	srv := newFeedServer(t)
	db := openTestDB(t)
	svc := cms.New(db)
	c := NewCollector(testConfig(srv.URL+"/feed.xml"), svc)
	c.now = func() time.Time { return fixedNow }
	ctx := context.Background()
	if err := db.Put(ctx, store.Categories, "africa-news", map[string]any{"name": "Africa News"}); err != nil {
		t.Fatalf("Put category: %v", err)
	}

	res, err := c.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.TotalFound != 3 || res.NewArticles != 2 || res.Duplicates != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Fetched != 1 {
		t.Errorf("expected 1 page fetched, got %d", res.Fetched)
	}
	if res.Sources["Wire"] != 2 {
		t.Errorf("expected 2 from Wire, got %v", res.Sources)
	}

	arts, err := aggregate.New(db).FetchOnce(ctx, store.Articles, store.Query{})
	if err != nil {
		t.Fatalf("FetchOnce: %v", err)
	}
	if len(arts) != 2 {
		t.Fatalf("expected 2 stored articles, got %d", len(arts))
	}
	bySlug := map[string]content.Article{}
	for _, a := range arts {
		bySlug[a.Slug] = a
	}

	rail, ok := bySlug["coastal-rail-line-reopens"]
	if !ok {
		t.Fatalf("rail article missing: %v", bySlug)
	}
	if rail.Status != content.StatusDraft {
		t.Errorf("imported article should be draft, got %q", rail.Status)
	}
	if !strings.Contains(rail.Body, "halves travel time") {
		t.Errorf("expected fetched page text, got %q", rail.Body)
	}
	if rail.Author != "Desk" || rail.CategorySlug != "africa-news" {
		t.Errorf("unexpected author/category %q/%q", rail.Author, rail.CategorySlug)
	}

	trade := bySlug["trade-bloc-drops-farm-tariffs"]
	if trade.ImageURL != "https://img.example.com/trade.jpg" {
		t.Errorf("expected image from description, got %q", trade.ImageURL)
	}
	if strings.Contains(trade.Body, "<p>") {
		t.Errorf("body should be plain text, got %q", trade.Body)
	}

	again, err := c.Collect(ctx)
	if err != nil {
		t.Fatalf("second Collect: %v", err)
	}
	if again.NewArticles != 0 || again.Duplicates != 3 {
		t.Errorf("second run should only find duplicates, got %+v", again)
	}
}

type stubFetcher struct {
	calls []string
	err   error
}

func (s *stubFetcher) Page(_ context.Context, u string) (fetch.Page, error) {
	s.calls = append(s.calls, u)
	return fetch.Page{}, s.err
}

func TestFillBodySkipsFailedDomain(t *testing.T) {
	stub := &stubFetcher{err: &fetch.StatusError{Code: http.StatusForbidden}}
	c := &Collector{fetcher: stub, minBody: 100}
	r := &Result{Sources: map[string]int{}}
	failed := map[string]struct{}{}

	for _, u := range []string{"https://paywall.example/a", "https://paywall.example/b", "https://open.example/c"} {
		e := FeedEntry{URL: u, Title: "x"}
		c.fillBody(context.Background(), &e, r, failed)
	}

	if len(stub.calls) != 2 {
		t.Fatalf("expected 2 fetches (second paywall URL skipped), got %v", stub.calls)
	}
	if r.Failed != 3 {
		t.Errorf("expected 3 failures, got %d", r.Failed)
	}
}

func TestFillBodyKeepsLongBodies(t *testing.T) {
	stub := &stubFetcher{}
	c := &Collector{fetcher: stub, minBody: 10}
	e := FeedEntry{URL: "https://x.example/a", Content: "long enough body text"}
	c.fillBody(context.Background(), &e, &Result{}, map[string]struct{}{})
	if len(stub.calls) != 0 {
		t.Errorf("no fetch expected, got %v", stub.calls)
	}
}

func TestNewsAPISearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("q") != "diaspora" || r.URL.Query().Get("language") != "fr" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"status":"ok","articles":[
			{"url":"https://a.example/1","title":"Festival opens","publishedAt":"2025-06-09T08:00:00Z",
			 "description":"<b>Music</b> and food","urlToImage":"https://a.example/1.jpg","source":{"name":"Le Monde"}},
			{"url":"https://removed.com","title":"[Removed]"},
			{"url":"","title":"No link"}]}`)
	}))
	defer srv.Close()

	c := &NewsAPIClient{apiKey: "k", baseURL: srv.URL, language: "fr", client: srv.Client()}
	entries, err := c.Search(context.Background(), "diaspora", 3, 50, fixedNow)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Source != "Le Monde" || e.Summary != "Music and food" || e.ImageURL != "https://a.example/1.jpg" {
		t.Errorf("unexpected entry %+v", e)
	}
	if !e.Published.Equal(time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected published %v", e.Published)
	}

	c.apiKey = "wrong"
	if _, err := c.Search(context.Background(), "diaspora", 3, 50, fixedNow); err == nil {
		t.Error("expected error on 401")
	}
}

func TestNewsAPINotConfigured(t *testing.T) {
	c := &NewsAPIClient{}
	if c.IsConfigured() {
		t.Fatal("client without key should not be configured")
	}
	if _, err := c.Search(context.Background(), "q", 1, 10, fixedNow); err == nil {
		t.Error("expected error without key")
	}
}

func TestHTMLText(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"plain   text\n here", "plain text here"},
		{"<p>Hello <b>world</b> &amp; more</p>", "Hello world & more"},
		{"<div>a<script>var x=1;</script> b</div>", "a b"},
	}
	for _, tc := range cases {
		if got := htmlText(tc.in); got != tc.want {
			t.Errorf("htmlText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractSourceName(t *testing.T) {
	cases := map[string]string{
		"https://feeds.bbci.co.uk/news/rss.xml": "Co",
		"https://www.theverge.com/rss":          "Theverge",
		"https://blog.golang.org/feed.atom":     "Golang",
		"https://localhost/feed":                "Localhost",
	}
	for in, want := range cases {
		if got := extractSourceName(in); got != want {
			t.Errorf("extractSourceName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsWithinWindow(t *testing.T) {
	cutoff := fixedNow.AddDate(0, 0, -3)
	if !isWithinWindow(time.Time{}, cutoff) {
		t.Error("unknown dates should be kept")
	}
	if isWithinWindow(cutoff.Add(-time.Minute), cutoff) {
		t.Error("entry before cutoff should be dropped")
	}
	if !isWithinWindow(cutoff, cutoff) {
		t.Error("entry at cutoff should be kept")
	}
}
