package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const newsAPIBaseURL = "https://newsapi.org/v2/everything"

// NewsAPIClient fetches articles from NewsAPI.
type NewsAPIClient struct {
	apiKey   string
	baseURL  string
	language string
	client   *http.Client
}

// NewNewsAPIClient creates a new NewsAPI client reading its key from
// the environment variable apiKeyEnv.
func NewNewsAPIClient(apiKeyEnv, language string) *NewsAPIClient {
	if language == "" {
		language = "en"
	}
	return &NewsAPIClient{
		apiKey:   os.Getenv(apiKeyEnv),
		baseURL:  newsAPIBaseURL,
		language: language,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured returns whether the API key is available.
func (c *NewsAPIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Search searches for articles matching a query published within
// daysBack of now.
func (c *NewsAPIClient) Search(ctx context.Context, query string, daysBack, pageSize int, now time.Time) ([]FeedEntry, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("newsapi: no API key configured")
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}

	params := url.Values{
		"q":        {query},
		"from":     {now.AddDate(0, 0, -daysBack).Format("2006-01-02")},
		"to":       {now.Format("2006-01-02")},
		"language": {c.language},
		"pageSize": {fmt.Sprintf("%d", pageSize)},
		"sortBy":   {"publishedAt"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi: http %d", resp.StatusCode)
	}

	var result struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Articles []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			Author      string `json:"author"`
			PublishedAt string `json:"publishedAt"`
			Content     string `json:"content"`
			Description string `json:"description"`
			URLToImage  string `json:"urlToImage"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("newsapi decode: %w", err)
	}
	if result.Status != "ok" {
		return nil, fmt.Errorf("newsapi status %s: %s", result.Status, result.Message)
	}

	var entries []FeedEntry
	for _, a := range result.Articles {
		if a.URL == "" || a.Title == "" {
			continue
		}
		if a.Title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}

		var published time.Time
		if a.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
				published = t.UTC()
			}
		}

		source := "NewsAPI"
		if a.Source.Name != "" {
			source = a.Source.Name
		}

		entries = append(entries, FeedEntry{
			URL:       a.URL,
			Title:     strings.TrimSpace(a.Title),
			Published: published,
			Summary:   htmlText(a.Description),
			Content:   htmlText(a.Content),
			ImageURL:  a.URLToImage,
			Author:    strings.TrimSpace(a.Author),
			Source:    source,
		})
	}

	log.Printf("Fetched %d articles from NewsAPI for query: %s", len(entries), query)
	return entries, nil
}
