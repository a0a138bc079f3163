// Package fetch downloads article pages and extracts their readable text.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const (
	userAgent   = "newsdesk/1.0 (news importer)"
	maxBodySize = 5 << 20
	minText     = 100
)

// Page is the extracted content of an article page.
type Page struct {
	Title    string
	Byline   string
	Text     string
	ImageURL string
}

// StatusError reports an HTTP error response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, http.StatusText(e.Code))
}

// Fetcher fetches full article text via HTTP + readability extraction.
type Fetcher struct {
	client *http.Client
}

// New creates a fetcher with the given request timeout.
func New(timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Page downloads articleURL and extracts its main content. A page with
// too little extractable text yields an empty Page and no error.
func (f *Fetcher) Page(ctx context.Context, articleURL string) (Page, error) {
	parsedURL, err := url.Parse(articleURL)
	if err != nil {
		return Page{}, fmt.Errorf("parsing url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetching %s: %w", articleURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Page{}, &StatusError{Code: resp.StatusCode}
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBodySize), parsedURL)
	if err != nil {
		return Page{}, nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len([]rune(text)) <= minText {
		return Page{}, nil
	}
	return Page{
		Title:    strings.TrimSpace(article.Title),
		Byline:   strings.TrimSpace(article.Byline),
		Text:     text,
		ImageURL: article.Image,
	}, nil
}
