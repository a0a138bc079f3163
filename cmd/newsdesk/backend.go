package main

import (
	"context"
	"fmt"

	"github.com/TobiSchelling/newsdesk/internal/auth"
	"github.com/TobiSchelling/newsdesk/internal/cms"
	"github.com/TobiSchelling/newsdesk/internal/config"
	"github.com/TobiSchelling/newsdesk/internal/database"
	"github.com/TobiSchelling/newsdesk/internal/filestore"
	"github.com/TobiSchelling/newsdesk/internal/mongo"
	"github.com/TobiSchelling/newsdesk/internal/store"
	"github.com/TobiSchelling/newsdesk/internal/supabase"
)

// openStore opens the backend named in the config.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		return database.Open(cfg.SQLitePath(), database.WithPollInterval(cfg.Store.PollInterval))

	case config.BackendMongo:
		uri, err := config.Secret(cfg.Store.Mongo.URIEnv)
		if err != nil {
			return nil, fmt.Errorf("mongo backend: %w", err)
		}
		return mongo.Open(ctx, uri, cfg.Store.Mongo.Database)

	case config.BackendSupabase:
		url, key, err := supabaseCredentials(cfg)
		if err != nil {
			return nil, err
		}
		return supabase.Open(url, key, supabase.WithPollInterval(cfg.Store.PollInterval))

	case config.BackendFiles:
		return filestore.Open(cfg.Store.Files.Dir)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// newCMS returns the write service for st, or nil when the backend is
// read-only.
func newCMS(cfg *config.Config, st store.Store) *cms.Service {
	if cfg.Store.Backend == config.BackendFiles {
		return nil
	}
	return cms.New(st)
}

// newGuard builds the admin guard. The proxy header is always honored;
// Supabase access tokens are accepted when Supabase is the backend.
func newGuard(cfg *config.Config) (*auth.Guard, error) {
	var id auth.Identifier = auth.HeaderIdentity{Header: cfg.Admin.IdentityHeader}
	if cfg.Store.Backend == config.BackendSupabase {
		url, key, err := supabaseCredentials(cfg)
		if err != nil {
			return nil, err
		}
		sb, err := auth.NewSupabaseIdentity(url, key)
		if err != nil {
			return nil, err
		}
		id = auth.Chain{id, sb}
	}
	return auth.NewGuard(cfg.Admin.AllowedEmails, id), nil
}

func supabaseCredentials(cfg *config.Config) (url, key string, err error) {
	url, err = config.Secret(cfg.Store.Supabase.URLEnv)
	if err != nil {
		return "", "", fmt.Errorf("supabase backend: %w", err)
	}
	key, err = config.Secret(cfg.Store.Supabase.KeyEnv)
	if err != nil {
		return "", "", fmt.Errorf("supabase backend: %w", err)
	}
	return url, key, nil
}
