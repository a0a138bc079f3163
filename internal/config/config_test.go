package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Import.Feeds) == 0 {
		t.Error("expected feeds to be populated")
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("expected backend 'sqlite', got %q", cfg.Store.Backend)
	}
	if cfg.Store.PollInterval != 2*time.Second {
		t.Errorf("expected poll interval 2s, got %v", cfg.Store.PollInterval)
	}
	if cfg.Import.Fetch.Timeout != 15*time.Second {
		t.Errorf("expected fetch timeout 15s, got %v", cfg.Import.Fetch.Timeout)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
	if len(cfg.Site.Locales) != 4 || cfg.Site.DefaultLocale != "en" {
		t.Errorf("unexpected locales %v / %q", cfg.Site.Locales, cfg.Site.DefaultLocale)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
store:
  backend: mongo
  mongo:
    database: paper
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Store.Backend != BackendMongo {
		t.Errorf("expected backend 'mongo', got %q", cfg.Store.Backend)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Store.Mongo.URIEnv != "MONGODB_URI" {
		t.Errorf("expected default uri_env, got %q", cfg.Store.Mongo.URIEnv)
	}
	if cfg.Store.Mongo.Database != "paper" {
		t.Errorf("expected database 'paper', got %q", cfg.Store.Mongo.Database)
	}
	if cfg.Views.Trending != 5 {
		t.Errorf("expected default trending limit 5, got %d", cfg.Views.Trending)
	}
	if cfg.Admin.IdentityHeader != "X-Forwarded-Email" {
		t.Errorf("expected default identity header, got %q", cfg.Admin.IdentityHeader)
	}
}

func TestParseRejectsUnknownBackend(t *testing.T) {
	_, err := parse([]byte("store:\n  backend: redis\n"))
	if err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}

func TestParseFilesBackendNeedsDir(t *testing.T) {
	if _, err := parse([]byte("store:\n  backend: files\n")); err == nil {
		t.Fatal("expected error for files backend without dir")
	}
	cfg, err := parse([]byte("store:\n  backend: files\n  files:\n    dir: ./content\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Store.Files.Dir != "./content" {
		t.Errorf("expected dir './content', got %q", cfg.Store.Files.Dir)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Import.Feeds) == 0 {
		t.Error("expected feeds to be populated from file")
	}
}

func TestResolveConfigPathExplicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ResolveConfigPath(path)
	if err != nil || got != path {
		t.Fatalf("ResolveConfigPath = %q, %v", got, err)
	}
	if _, err := ResolveConfigPath(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit path")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
	if cfg.SQLitePath() != filepath.Join("/custom/path", "newsdesk.db") {
		t.Errorf("unexpected sqlite path %q", cfg.SQLitePath())
	}
	cfg.Store.SQLite.Path = "/tmp/x.db"
	if cfg.SQLitePath() != "/tmp/x.db" {
		t.Errorf("explicit sqlite path ignored: %q", cfg.SQLitePath())
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("NEWSDESK_TEST_SECRET=s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NEWSDESK_TEST_SECRET", "")
	os.Unsetenv("NEWSDESK_TEST_SECRET")

	if err := LoadEnv(path, filepath.Join(dir, "absent.env")); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	got, err := Secret("NEWSDESK_TEST_SECRET")
	if err != nil || got != "s3cret" {
		t.Fatalf("Secret = %q, %v", got, err)
	}
	if _, err := Secret("NEWSDESK_TEST_UNSET_VAR"); err == nil {
		t.Error("expected error for unset variable")
	}
	if _, err := Secret(""); err == nil {
		t.Error("expected error for empty variable name")
	}
}
