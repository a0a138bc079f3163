package cms

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/newsdesk/internal/content"
	"github.com/TobiSchelling/newsdesk/internal/store"
)

//go:embed seed.yaml
var seedYAML []byte

type seedCategory struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type seedArticle struct {
	Title      string `yaml:"title"`
	Excerpt    string `yaml:"excerpt"`
	Content    string `yaml:"content"`
	CategoryID string `yaml:"category_id"`
	Author     string `yaml:"author"`
	ImageURL   string `yaml:"featured_image_url"`
	Status     string `yaml:"status"`
	Featured   bool   `yaml:"is_featured"`
	Trending   bool   `yaml:"is_trending"`
	Breaking   bool   `yaml:"is_breaking"`
	ReadCount  int    `yaml:"read_count"`
}

type seedData struct {
	Categories []seedCategory `yaml:"categories"`
	Articles   []seedArticle  `yaml:"articles"`
}

// SeedResult counts what Seed wrote.
type SeedResult struct {
	Categories int
	Articles   int
}

func loadSeed() (seedData, error) {
	var data seedData
	if err := yaml.Unmarshal(seedYAML, &data); err != nil {
		return seedData{}, fmt.Errorf("parsing seed data: %w", err)
	}
	for _, c := range data.Categories {
		if c.ID == "" || c.Name == "" {
			return seedData{}, fmt.Errorf("seed category %q is incomplete", c.ID)
		}
	}
	for _, a := range data.Articles {
		if a.Title == "" || a.Content == "" || a.CategoryID == "" || a.Author == "" || a.Status == "" {
			return seedData{}, fmt.Errorf("seed article %q is incomplete", a.Title)
		}
	}
	return data, nil
}

// Seed writes the sample categories and articles. Articles are stored
// under their slug, so seeding twice overwrites rather than duplicates.
// Publication times are spread an hour apart, newest first.
func (s *Service) Seed(ctx context.Context) (SeedResult, error) {
	data, err := loadSeed()
	if err != nil {
		return SeedResult{}, err
	}

	var res SeedResult
	for _, c := range data.Categories {
		err := s.store.Put(ctx, store.Categories, c.ID, map[string]any{
			"name":        c.Name,
			"slug":        content.CategorySlug(c.Name),
			"description": c.Description,
		})
		if err != nil {
			return res, fmt.Errorf("seeding category %s: %w", c.ID, err)
		}
		res.Categories++
		log.Printf("Category added: %s", c.Name)
	}

	now := s.now().UTC()
	for i, a := range data.Articles {
		slug := content.Slugify(a.Title, "")
		when := now.Add(-time.Duration(i) * time.Hour)
		fields := map[string]any{
			"title":              a.Title,
			"slug":               slug,
			"excerpt":            a.Excerpt,
			"content":            a.Content,
			"category_id":        a.CategoryID,
			"author":             a.Author,
			"featured_image_url": a.ImageURL,
			"status":             a.Status,
			"is_featured":        a.Featured,
			"is_trending":        a.Trending,
			"is_breaking":        a.Breaking,
			"read_count":         a.ReadCount,
			"created_at":         when,
			"updated_at":         when,
		}
		if content.ParseStatus(a.Status) == content.StatusPublished {
			fields["published_at"] = when
		}
		if err := s.store.Put(ctx, store.Articles, slug, fields); err != nil {
			return res, fmt.Errorf("seeding article %s: %w", slug, err)
		}
		res.Articles++
	}
	log.Printf("Seeding complete: %d categories, %d articles", res.Categories, res.Articles)
	return res, nil
}
