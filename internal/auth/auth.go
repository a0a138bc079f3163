// Package auth guards the admin surface with a static allow-list of editor
// emails. Identity itself is asserted elsewhere: by a trusted proxy header
// or by a Supabase access token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/supabase-community/supabase-go"
)

var (
	ErrNoIdentity = errors.New("no identity")
	ErrForbidden  = errors.New("not an allowed editor")
)

// Identifier extracts the caller's email from a request.
type Identifier interface {
	Identify(r *http.Request) (string, error)
}

// HeaderIdentity trusts an email header set by an authenticating proxy.
type HeaderIdentity struct {
	Header string
}

func (h HeaderIdentity) Identify(r *http.Request) (string, error) {
	email := strings.TrimSpace(r.Header.Get(h.Header))
	if email == "" {
		return "", ErrNoIdentity
	}
	return email, nil
}

// SupabaseIdentity resolves a bearer access token to its Supabase user.
type SupabaseIdentity struct {
	client *supabase.Client
}

// NewSupabaseIdentity creates an identifier for the project at url.
func NewSupabaseIdentity(url, key string) (*SupabaseIdentity, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseIdentity{client: client}, nil
}

func (s *SupabaseIdentity) Identify(r *http.Request) (string, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrNoIdentity
	}
	user, err := s.client.Auth.WithToken(strings.TrimSpace(token)).GetUser()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}
	if user.Email == "" {
		return "", ErrNoIdentity
	}
	return user.Email, nil
}

// Chain tries each identifier in turn and returns the first identity.
type Chain []Identifier

func (c Chain) Identify(r *http.Request) (string, error) {
	for _, id := range c {
		if email, err := id.Identify(r); err == nil {
			return email, nil
		}
	}
	return "", ErrNoIdentity
}

// Guard admits allow-listed editors.
type Guard struct {
	allowed map[string]struct{}
	id      Identifier
}

// NewGuard creates a Guard. Emails are compared case-insensitively. An
// empty allow-list admits nobody.
func NewGuard(allowed []string, id Identifier) *Guard {
	g := &Guard{allowed: make(map[string]struct{}), id: id}
	for _, e := range allowed {
		if e = normalize(e); e != "" {
			g.allowed[e] = struct{}{}
		}
	}
	return g
}

// Allowed reports whether email is on the allow-list.
func (g *Guard) Allowed(email string) bool {
	_, ok := g.allowed[normalize(email)]
	return ok
}

// Check identifies the caller and verifies the allow-list.
func (g *Guard) Check(r *http.Request) (string, error) {
	email, err := g.id.Identify(r)
	if err != nil {
		return "", err
	}
	if !g.Allowed(email) {
		return "", fmt.Errorf("%s: %w", email, ErrForbidden)
	}
	return normalize(email), nil
}

// Require wraps next so only allow-listed editors reach it. The editor's
// email is available to next through Editor.
func (g *Guard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, err := g.Check(r)
		switch {
		case errors.Is(err, ErrForbidden):
			log.Printf("Admin access denied: %v", err)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		case err != nil:
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), editorKey{}, email)))
	})
}

type editorKey struct{}

// Editor returns the editor email stored by Require.
func Editor(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(editorKey{}).(string)
	return email, ok
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
