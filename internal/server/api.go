package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/newsdesk/internal/auth"
	"github.com/TobiSchelling/newsdesk/internal/cms"
	"github.com/TobiSchelling/newsdesk/internal/content"
	"github.com/TobiSchelling/newsdesk/internal/store"
)

const maxJSONBody = 1 << 20

func (s *Server) handleAPIArticles(w http.ResponseWriter, r *http.Request) {
	articles, _, err := s.source.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	q := r.URL.Query()
	n := 0
	if v := q.Get("limit"); v != "" {
		n, err = strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
	}

	list := content.Latest(articles, 0)
	if cat := q.Get("category"); cat != "" {
		list = content.ByCategory(list, cat)
	}
	if query := q.Get("query"); query != "" {
		list = content.Search(list, query)
	}

	switch q.Get("view") {
	case "", "latest":
		list = limit(list, n)
	case "featured":
		list = limit(content.Featured(list), n)
	case "trending":
		list = content.Trending(list, n)
	case "breaking":
		list = content.Breaking(list, n)
	default:
		writeError(w, http.StatusBadRequest, errors.New("view must be one of latest, featured, trending, breaking"))
		return
	}

	if list == nil {
		list = []content.Article{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": list})
}

func (s *Server) handleAPICategories(w http.ResponseWriter, r *http.Request) {
	_, cats, err := s.source.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if cats == nil {
		cats = []content.Category{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	articles, _, err := s.source.Snapshot(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "articles": len(articles)})
}

// articleRequest is the JSON body of the admin article endpoints.
type articleRequest struct {
	Title      *string `json:"title"`
	Slug       *string `json:"slug"`
	Excerpt    *string `json:"excerpt"`
	Content    *string `json:"content"`
	CategoryID *string `json:"category_id"`
	Author     *string `json:"author"`
	ImageURL   *string `json:"featured_image_url"`
	Status     *string `json:"status"`
	Featured   *bool   `json:"is_featured"`
	Trending   *bool   `json:"is_trending"`
	Breaking   *bool   `json:"is_breaking"`
}

func (a articleRequest) draft() cms.Draft {
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	flag := func(p *bool) bool { return p != nil && *p }
	return cms.Draft{
		Title:      str(a.Title),
		Slug:       str(a.Slug),
		Excerpt:    str(a.Excerpt),
		Body:       str(a.Content),
		CategoryID: str(a.CategoryID),
		Author:     str(a.Author),
		ImageURL:   str(a.ImageURL),
		Status:     str(a.Status),
		Featured:   flag(a.Featured),
		Trending:   flag(a.Trending),
		Breaking:   flag(a.Breaking),
	}
}

func (a articleRequest) patch() cms.Patch {
	var status *content.Status
	if a.Status != nil {
		st := content.ParseStatus(*a.Status)
		status = &st
	}
	return cms.Patch{
		Title:      a.Title,
		Slug:       a.Slug,
		Excerpt:    a.Excerpt,
		Body:       a.Content,
		CategoryID: a.CategoryID,
		Author:     a.Author,
		ImageURL:   a.ImageURL,
		Featured:   a.Featured,
		Trending:   a.Trending,
		Breaking:   a.Breaking,
		Status:     status,
	}
}

func (s *Server) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	var req articleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := s.cms.CreateArticle(r.Context(), req.draft())
	if err != nil {
		writeError(w, writeStatus(err), err)
		return
	}
	editor, _ := auth.Editor(r.Context())
	log.Printf("Article %s created by %s", id, editor)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	var req articleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.cms.UpdateArticle(r.Context(), r.PathValue("id"), req.patch()); err != nil {
		writeError(w, writeStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminAction(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	id := r.PathValue("id")
	ctx := r.Context()

	var err error
	switch r.PathValue("action") {
	case "publish":
		err = s.cms.SetStatus(ctx, id, content.StatusPublished)
	case "unpublish":
		err = s.cms.SetStatus(ctx, id, content.StatusDraft)
	case "delete":
		err = s.cms.DeleteArticle(ctx, id)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, writeStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminHero(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	var req struct {
		ArticleID       string `json:"featuredArticleId"`
		SidebarImageURL string `json:"sidebarImageUrl"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.cms.SetHero(r.Context(), cms.Hero{ArticleID: req.ArticleID, SidebarImageURL: req.SidebarImageURL})
	if err != nil {
		writeError(w, writeStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminMedia(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	kind, ok := mediaKind(r.PathValue("kind"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	var req struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
		Thumbnail   string `json:"thumbnail"`
		Duration    string `json:"duration"`
		Status      string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := s.cms.CreateMedia(r.Context(), kind, cms.MediaDraft{
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
		Thumbnail:   req.Thumbnail,
		Duration:    req.Duration,
		Status:      req.Status,
	})
	if err != nil {
		writeError(w, writeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleAdminMediaAction(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	kind, ok := mediaKind(r.PathValue("kind"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	id := r.PathValue("id")
	ctx := r.Context()

	var err error
	switch r.PathValue("action") {
	case "publish":
		err = s.cms.SetMediaStatus(ctx, kind, id, content.StatusPublished)
	case "unpublish":
		err = s.cms.SetMediaStatus(ctx, kind, id, content.StatusDraft)
	case "delete":
		err = s.cms.DeleteMedia(ctx, kind, id)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, writeStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminMessages(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	msgs, unread, err := s.cms.ContactMessages(r.Context())
	if err != nil {
		writeError(w, writeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "unread": unread})
}

func (s *Server) handleAdminMarkRead(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	if err := s.cms.MarkRead(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, writeStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminSubscribers(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	subs, active, err := s.cms.Subscribers(r.Context())
	if err != nil {
		writeError(w, writeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscribers": subs, "active": active})
}

func mediaKind(segment string) (content.MediaKind, bool) {
	switch segment {
	case "videos":
		return content.MediaVideo, true
	case "podcasts":
		return content.MediaPodcast, true
	}
	return "", false
}

func (s *Server) writable(w http.ResponseWriter) bool {
	if s.cms == nil {
		writeError(w, http.StatusConflict, store.ErrReadOnly)
		return false
	}
	return true
}

// writeStatus maps a write failure to its HTTP status.
func writeStatus(err error) int {
	switch {
	case errors.Is(err, cms.ErrTitleRequired), errors.Is(err, cms.ErrInvalidEmail),
		errors.Is(err, cms.ErrIncomplete), errors.Is(err, store.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrReadOnly), errors.Is(err, cms.ErrAlreadySubscribed):
		return http.StatusConflict
	}
	return http.StatusServiceUnavailable
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body: "+strings.TrimPrefix(err.Error(), "json: ")))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
