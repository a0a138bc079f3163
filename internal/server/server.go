package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/newsdesk/internal/aggregate"
	"github.com/TobiSchelling/newsdesk/internal/auth"
	"github.com/TobiSchelling/newsdesk/internal/cms"
	"github.com/TobiSchelling/newsdesk/internal/config"
	"github.com/TobiSchelling/newsdesk/internal/content"
	"github.com/TobiSchelling/newsdesk/internal/i18n"
	"github.com/TobiSchelling/newsdesk/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

const dateLayout = "2 Jan 2006"

// Deps are the collaborators of a Server.
type Deps struct {
	Source  Source
	Reader  store.Reader
	CMS     *cms.Service // nil disables forms and admin endpoints
	Guard   *auth.Guard
	Catalog *i18n.Catalog
	Site    config.Site
	Views   config.Views
}

// Server is the HTTP server for the news site.
type Server struct {
	source  Source
	reader  store.Reader
	adapter *aggregate.Adapter
	cms     *cms.Service
	guard   *auth.Guard
	catalog *i18n.Catalog
	site    config.Site
	views   config.Views
	pages   map[string]*template.Template
	mux     *http.ServeMux
}

// New creates a new Server.
func New(d Deps) (*Server, error) {
	if d.Source == nil || d.Reader == nil || d.Catalog == nil {
		return nil, errors.New("server needs a source, a reader and a catalog")
	}
	if d.Guard == nil {
		d.Guard = auth.NewGuard(nil, auth.HeaderIdentity{Header: "X-Forwarded-Email"})
	}

	funcMap := template.FuncMap{
		"markdown":    renderMarkdown,
		"date":        func(ts content.Timestamp) string { return ts.Format(dateLayout) },
		"readingTime": content.ReadingTime,
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html", "templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "article.html", "category.html", "search.html", "media.html", "contact.html", "error.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		source:  d.Source,
		reader:  d.Reader,
		adapter: aggregate.New(d.Reader),
		cms:     d.CMS,
		guard:   d.Guard,
		catalog: d.Catalog,
		site:    d.Site,
		views:   d.Views,
		pages:   pages,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Site
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /article/{slug}", s.handleArticle)
	s.mux.HandleFunc("GET /category/{slug}", s.handleCategory)
	s.mux.HandleFunc("GET /search", s.handleSearch)
	s.mux.HandleFunc("GET /videos", s.handleMedia(content.MediaVideo))
	s.mux.HandleFunc("GET /podcasts", s.handleMedia(content.MediaPodcast))
	s.mux.HandleFunc("GET /contact", s.handleContactForm)
	s.mux.HandleFunc("POST /contact", s.handleContact)
	s.mux.HandleFunc("POST /newsletter", s.handleNewsletter)

	// JSON API
	s.mux.HandleFunc("GET /api/articles", s.handleAPIArticles)
	s.mux.HandleFunc("GET /api/categories", s.handleAPICategories)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// Admin
	admin := func(h http.HandlerFunc) http.Handler { return s.guard.Require(h) }
	s.mux.Handle("POST /admin/articles", admin(s.handleAdminCreate))
	s.mux.Handle("PATCH /admin/articles/{id}", admin(s.handleAdminUpdate))
	s.mux.Handle("POST /admin/articles/{id}/{action}", admin(s.handleAdminAction))
	s.mux.Handle("PUT /admin/hero", admin(s.handleAdminHero))
	s.mux.Handle("POST /admin/media/{kind}", admin(s.handleAdminMedia))
	s.mux.Handle("POST /admin/media/{kind}/{id}/{action}", admin(s.handleAdminMediaAction))
	s.mux.Handle("GET /admin/messages", admin(s.handleAdminMessages))
	s.mux.Handle("POST /admin/messages/{id}/read", admin(s.handleAdminMarkRead))
	s.mux.Handle("GET /admin/subscribers", admin(s.handleAdminSubscribers))

	s.mux.HandleFunc("/", s.handleNotFound)
}

// view is the data every page template receives.
type view struct {
	Title      string
	Locale     string
	Locales    []string
	Site       config.Site
	Categories []content.Category
	Path       string
	Data       map[string]any

	lookup i18n.LookupFunc
}

// T translates key into the page locale.
func (v view) T(key string) string {
	return v.lookup(key, v.Locale)
}

func (s *Server) newView(w http.ResponseWriter, r *http.Request, title string, cats []content.Category, data map[string]any) view {
	locale := s.locale(w, r)
	var locales []string
	for _, l := range s.site.Locales {
		if s.catalog.Has(l) {
			locales = append(locales, l)
		}
	}
	if data == nil {
		data = map[string]any{}
	}
	return view{
		Title:      title,
		Locale:     locale,
		Locales:    locales,
		Site:       s.site,
		Categories: cats,
		Path:       r.URL.Path,
		Data:       data,
		lookup:     s.catalog.Lookup,
	}
}

// locale picks the page language: ?lang=, then the lang cookie, then
// Accept-Language.
func (s *Server) locale(w http.ResponseWriter, r *http.Request) string {
	if l := r.URL.Query().Get("lang"); l != "" && s.catalog.Has(l) {
		http.SetCookie(w, &http.Cookie{Name: "lang", Value: l, Path: "/", MaxAge: 365 * 24 * 3600, SameSite: http.SameSiteLaxMode})
		return l
	}
	if c, err := r.Cookie("lang"); err == nil && s.catalog.Has(c.Value) {
		return c.Value
	}
	return s.catalog.Match(r.Header.Get("Accept-Language"))
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data view) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// unavailable renders the retry page for a store failure.
func (s *Server) unavailable(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("Store unavailable for %s: %v", r.URL.Path, err)
	w.Header().Set("Retry-After", "5")
	v := s.newView(w, r, "", nil, map[string]any{"Status": http.StatusServiceUnavailable, "Retry": r.URL.RequestURI()})
	v.Title = v.T("errors.unavailable")
	s.render(w, http.StatusServiceUnavailable, "error.html", v)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.notFound(w, r, nil)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request, cats []content.Category) {
	v := s.newView(w, r, "", cats, map[string]any{"Status": http.StatusNotFound})
	v.Title = v.T("errors.notFound")
	s.render(w, http.StatusNotFound, "error.html", v)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve runs the HTTP server on the given port until ctx is done.
func Serve(ctx context.Context, srv *Server, port int) error {
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Server listening on http://%s", httpSrv.Addr)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}
}
