package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendMongo    = "mongo"
	BackendSupabase = "supabase"
	BackendFiles    = "files"
)

type Config struct {
	Site    Site    `yaml:"site"`
	Store   Store   `yaml:"store"`
	Views   Views   `yaml:"views"`
	Admin   Admin   `yaml:"admin"`
	Import  Import  `yaml:"import"`
	Output  Output  `yaml:"output"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

type Site struct {
	Title         string   `yaml:"title"`
	Locales       []string `yaml:"locales"`
	DefaultLocale string   `yaml:"default_locale"`
}

type Store struct {
	Backend      string         `yaml:"backend"`
	PollInterval time.Duration  `yaml:"poll_interval"`
	SQLite       SQLiteConfig   `yaml:"sqlite"`
	Mongo        MongoConfig    `yaml:"mongo"`
	Supabase     SupabaseConfig `yaml:"supabase"`
	Files        FilesConfig    `yaml:"files"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type MongoConfig struct {
	URIEnv   string `yaml:"uri_env"`
	Database string `yaml:"database"`
}

type SupabaseConfig struct {
	URLEnv string `yaml:"url_env"`
	KeyEnv string `yaml:"key_env"`
}

type FilesConfig struct {
	Dir string `yaml:"dir"`
}

type Views struct {
	Featured   int `yaml:"featured"`
	Trending   int `yaml:"trending"`
	Breaking   int `yaml:"breaking"`
	Latest     int `yaml:"latest"`
	PerSection int `yaml:"per_section"`
}

type Admin struct {
	AllowedEmails  []string `yaml:"allowed_emails"`
	IdentityHeader string   `yaml:"identity_header"`
}

type Import struct {
	Feeds    []Feed        `yaml:"feeds"`
	DaysBack int           `yaml:"days_back"`
	Author   string        `yaml:"author"`
	Fetch    FetchConfig   `yaml:"fetch"`
	NewsAPI  NewsAPIConfig `yaml:"newsapi"`
}

type Feed struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

type FetchConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
	MinBody int           `yaml:"min_body"`
}

type NewsAPIConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKeyEnv string `yaml:"api_key_env"`
	Query     string `yaml:"query"`
	Language  string `yaml:"language"`
	Category  string `yaml:"category"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for newsdesk.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "newsdesk")
}

// DataDir returns the XDG data directory for newsdesk.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "newsdesk")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newsdesk/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newsdesk init' to create a default config",
		xdgConfig,
	)
}

// LoadEnv reads secrets from a .env file into the process environment.
// Variables already set win. A missing file is not an error.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env", filepath.Join(ConfigDir(), ".env")}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Site: Site{
			Title:         "Newsdesk",
			Locales:       []string{"en", "es", "fr", "de"},
			DefaultLocale: "en",
		},
		Store: Store{
			Backend:      BackendSQLite,
			PollInterval: 2 * time.Second,
			Mongo:        MongoConfig{URIEnv: "MONGODB_URI", Database: "newsdesk"},
			Supabase:     SupabaseConfig{URLEnv: "SUPABASE_URL", KeyEnv: "SUPABASE_KEY"},
		},
		Views: Views{Featured: 3, Trending: 5, Breaking: 5, Latest: 10, PerSection: 4},
		Admin: Admin{IdentityHeader: "X-Forwarded-Email"},
		Import: Import{
			DaysBack: 3,
			Author:   "Newsdesk Wire",
			Fetch:    FetchConfig{Enabled: true, Timeout: 15 * time.Second, MinBody: 400},
			NewsAPI:  NewsAPIConfig{APIKeyEnv: "NEWSAPI_KEY", Language: "en"},
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendMongo, BackendSupabase, BackendFiles:
	default:
		return fmt.Errorf("unknown store backend %q (want sqlite, mongo, supabase or files)", c.Store.Backend)
	}
	if c.Store.Backend == BackendFiles && c.Store.Files.Dir == "" {
		return fmt.Errorf("store.files.dir is required for the files backend")
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// SQLitePath returns the database file for the sqlite backend.
func (c *Config) SQLitePath() string {
	if c.Store.SQLite.Path != "" {
		return c.Store.SQLite.Path
	}
	return filepath.Join(c.GetDataDir(), "newsdesk.db")
}

// Secret returns the value of the environment variable named by env.
func Secret(env string) (string, error) {
	if env == "" {
		return "", fmt.Errorf("no environment variable configured")
	}
	v := os.Getenv(env)
	if v == "" {
		return "", fmt.Errorf("environment variable %s is not set", env)
	}
	return v, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
