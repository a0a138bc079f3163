package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/TobiSchelling/newsdesk/internal/cms"
	"github.com/TobiSchelling/newsdesk/internal/content"
	"github.com/TobiSchelling/newsdesk/internal/store"
)

const relatedCount = 3

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	articles, cats, err := s.source.Snapshot(r.Context())
	if err != nil {
		s.unavailable(w, r, err)
		return
	}

	latest := content.Latest(articles, 0)
	featured := content.Featured(latest)
	hero, sidebarImage := s.hero(r.Context(), latest, featured)

	v := s.newView(w, r, "", cats, map[string]any{
		"Hero":         hero,
		"SidebarImage": sidebarImage,
		"Featured":     limit(featured, s.views.Featured),
		"Latest":       content.Latest(latest, s.views.Latest),
		"Trending":     content.Trending(latest, s.views.Trending),
		"Breaking":     content.Breaking(latest, s.views.Breaking),
		"Groups":       content.GroupByCategory(latest, cats, s.views.PerSection),
		"Notice":       newsletterNotice(r.URL.Query().Get("newsletter")),
	})
	s.render(w, http.StatusOK, "index.html", v)
}

// hero picks the article for the top of the home page: the one chosen in
// the hero settings when it is published, else the newest featured one,
// else the newest.
func (s *Server) hero(ctx context.Context, latest, featured []content.Article) (*content.Article, string) {
	settings, err := cms.LoadHero(ctx, s.reader)
	if err != nil {
		log.Printf("Hero settings unavailable: %v", err)
	}
	if settings.ArticleID != "" {
		for _, a := range latest {
			if a.ID == settings.ArticleID {
				return &a, settings.SidebarImageURL
			}
		}
	}
	switch {
	case len(featured) > 0:
		return &featured[0], settings.SidebarImageURL
	case len(latest) > 0:
		return &latest[0], settings.SidebarImageURL
	}
	return nil, settings.SidebarImageURL
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	articles, cats, err := s.source.Snapshot(r.Context())
	if err != nil {
		s.unavailable(w, r, err)
		return
	}

	article, ok := content.BySlug(articles, r.PathValue("slug"))
	if !ok {
		s.notFound(w, r, cats)
		return
	}

	var related []content.Article
	for _, a := range content.Latest(content.ByCategory(articles, article.CategorySlug), 0) {
		if a.ID != article.ID {
			related = append(related, a)
		}
	}

	if s.cms != nil {
		if err := s.cms.IncrementReads(r.Context(), article.ID); err != nil {
			log.Printf("Could not count read of %s: %v", article.ID, err)
		}
	}

	s.render(w, http.StatusOK, "article.html", s.newView(w, r, article.Title, cats, map[string]any{
		"Article": article,
		"Related": limit(related, relatedCount),
	}))
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	articles, cats, err := s.source.Snapshot(r.Context())
	if err != nil {
		s.unavailable(w, r, err)
		return
	}

	slug := r.PathValue("slug")
	list := content.Latest(content.ByCategory(articles, slug), 0)

	var category *content.CategoryRef
	for _, c := range cats {
		if c.Slug == slug {
			category = &content.CategoryRef{Name: c.Name, Slug: c.Slug}
			break
		}
	}
	if category == nil && len(list) > 0 {
		ref := list[0].Category()
		category = &ref
	}
	if category == nil {
		s.notFound(w, r, cats)
		return
	}

	s.render(w, http.StatusOK, "category.html", s.newView(w, r, category.Name, cats, map[string]any{
		"Category": category,
		"Articles": list,
	}))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	articles, cats, err := s.source.Snapshot(r.Context())
	if err != nil {
		s.unavailable(w, r, err)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	v := s.newView(w, r, "", cats, map[string]any{
		"Query":   query,
		"Results": content.Search(content.Latest(articles, 0), query),
	})
	v.Title = v.T("search.title")
	s.render(w, http.StatusOK, "search.html", v)
}

func (s *Server) handleMedia(kind content.MediaKind) http.HandlerFunc {
	collection, titleKey := store.Videos, "media.videos"
	if kind == content.MediaPodcast {
		collection, titleKey = store.Podcasts, "media.podcasts"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		_, cats, err := s.source.Snapshot(r.Context())
		if err != nil {
			s.unavailable(w, r, err)
			return
		}
		items, err := s.adapter.FetchMedia(r.Context(), collection, kind)
		if err != nil {
			s.unavailable(w, r, err)
			return
		}
		v := s.newView(w, r, "", cats, map[string]any{
			"Kind":  kind,
			"Items": content.PublishedMedia(items),
		})
		v.Title = v.T(titleKey)
		s.render(w, http.StatusOK, "media.html", v)
	}
}

func (s *Server) handleContactForm(w http.ResponseWriter, r *http.Request) {
	s.renderContact(w, r, http.StatusOK, cms.ContactMessage{}, "", r.URL.Query().Get("sent") == "1")
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	if s.cms == nil {
		s.unavailable(w, r, store.ErrReadOnly)
		return
	}
	msg := cms.ContactMessage{
		Name:    r.FormValue("name"),
		Email:   r.FormValue("email"),
		Subject: r.FormValue("subject"),
		Message: r.FormValue("message"),
	}
	_, err := s.cms.AddContactMessage(r.Context(), msg)
	switch {
	case errors.Is(err, cms.ErrIncomplete), errors.Is(err, cms.ErrInvalidEmail):
		s.renderContact(w, r, http.StatusBadRequest, msg, "contact.form.error", false)
		return
	case err != nil:
		s.unavailable(w, r, err)
		return
	}
	http.Redirect(w, r, "/contact?sent=1", http.StatusSeeOther)
}

func (s *Server) renderContact(w http.ResponseWriter, r *http.Request, status int, msg cms.ContactMessage, errKey string, sent bool) {
	_, cats, err := s.source.Snapshot(r.Context())
	if err != nil {
		cats = nil
	}
	v := s.newView(w, r, "", cats, map[string]any{
		"Form":  msg,
		"Error": errKey,
		"Sent":  sent,
	})
	v.Title = v.T("contact.title")
	s.render(w, status, "contact.html", v)
}

func (s *Server) handleNewsletter(w http.ResponseWriter, r *http.Request) {
	if s.cms == nil {
		s.unavailable(w, r, store.ErrReadOnly)
		return
	}
	outcome := "ok"
	_, err := s.cms.SubscribeNewsletter(r.Context(), r.FormValue("email"))
	switch {
	case errors.Is(err, cms.ErrAlreadySubscribed):
		outcome = "exists"
	case errors.Is(err, cms.ErrInvalidEmail):
		outcome = "invalid"
	case err != nil:
		s.unavailable(w, r, err)
		return
	}
	http.Redirect(w, r, "/?newsletter="+url.QueryEscape(outcome)+"#newsletter", http.StatusSeeOther)
}

// newsletterNotice maps a sign-up outcome to its message key.
func newsletterNotice(outcome string) string {
	switch outcome {
	case "ok":
		return "newsletter.thanks"
	case "exists":
		return "newsletter.alreadySubscribed"
	case "invalid":
		return "newsletter.error"
	}
	return ""
}

func limit(articles []content.Article, n int) []content.Article {
	if n > 0 && len(articles) > n {
		return articles[:n]
	}
	return articles
}
