package content

import (
	"sort"
	"strings"
)

// ByCategory returns the articles whose category slug equals slug.
func ByCategory(articles []Article, slug string) []Article {
	return filter(articles, func(a Article) bool { return a.CategorySlug == slug })
}

// Featured returns the featured articles in input order.
func Featured(articles []Article) []Article {
	return filter(articles, func(a Article) bool { return a.IsFeatured })
}

// Trending returns up to limit trending articles, most read first. Ties
// on read count go to the more recently published article. A limit of
// zero or less returns every match.
func Trending(articles []Article, limit int) []Article {
	out := filter(articles, func(a Article) bool { return a.IsTrending })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ReadCount != out[j].ReadCount {
			return out[i].ReadCount > out[j].ReadCount
		}
		return compareDesc(out[i].PublishedAt, out[j].PublishedAt) < 0
	})
	return take(out, limit)
}

// Breaking returns up to limit breaking articles, most recently published
// first.
func Breaking(articles []Article, limit int) []Article {
	out := filter(articles, func(a Article) bool { return a.IsBreaking })
	sortByPublished(out)
	return take(out, limit)
}

// Latest returns up to limit articles, most recently published first.
func Latest(articles []Article, limit int) []Article {
	out := make([]Article, len(articles))
	copy(out, articles)
	sortByPublished(out)
	return take(out, limit)
}

// Published drops every article that is not published.
func Published(articles []Article) []Article {
	return filter(articles, Article.IsPublished)
}

// BySlug finds the article with the given slug.
func BySlug(articles []Article, slug string) (Article, bool) {
	for _, a := range articles {
		if a.Slug == slug {
			return a, true
		}
	}
	return Article{}, false
}

// Search returns the articles containing every whitespace-separated token
// of query, case-insensitively, somewhere in the title, excerpt, body or
// category name. An empty query matches nothing.
func Search(articles []Article, query string) []Article {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return []Article{}
	}
	return filter(articles, func(a Article) bool {
		haystack := strings.ToLower(strings.Join([]string{a.Title, a.Excerpt, a.Body, a.CategoryName}, " "))
		for _, tok := range tokens {
			if !strings.Contains(haystack, tok) {
				return false
			}
		}
		return true
	})
}

// CategoryGroup is one category with its articles.
type CategoryGroup struct {
	Category CategoryRef
	Articles []Article
}

// GroupByCategory buckets articles by category, keeping at most perGroup
// articles in each (all when perGroup <= 0). Groups follow the order of
// categories; articles whose category is not listed land in groups
// appended after them in order of first appearance. Empty groups are
// omitted.
func GroupByCategory(articles []Article, categories []Category, perGroup int) []CategoryGroup {
	index := make(map[string]int)
	var groups []CategoryGroup
	for _, c := range categories {
		ref := refOf(c)
		if _, ok := index[ref.Slug]; ok {
			continue
		}
		index[ref.Slug] = len(groups)
		groups = append(groups, CategoryGroup{Category: ref})
	}
	for _, a := range articles {
		i, ok := index[a.CategorySlug]
		if !ok {
			i = len(groups)
			index[a.CategorySlug] = i
			groups = append(groups, CategoryGroup{Category: CategoryRef{Name: a.CategoryName, Slug: a.CategorySlug}})
		}
		if perGroup > 0 && len(groups[i].Articles) >= perGroup {
			continue
		}
		groups[i].Articles = append(groups[i].Articles, a)
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.Articles) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// ReadingTime estimates minutes needed to read the body, never less than one.
func ReadingTime(a Article) int {
	words := len(strings.Fields(a.Body))
	minutes := (words + readingWordsPerMin - 1) / readingWordsPerMin
	if minutes < 1 {
		return 1
	}
	return minutes
}

func filter(articles []Article, keep func(Article) bool) []Article {
	out := []Article{}
	for _, a := range articles {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func sortByPublished(articles []Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return compareDesc(articles[i].PublishedAt, articles[j].PublishedAt) < 0
	})
}

func take(articles []Article, limit int) []Article {
	if limit > 0 && len(articles) > limit {
		return articles[:limit]
	}
	return articles
}
