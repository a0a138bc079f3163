package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/TobiSchelling/newsdesk/internal/aggregate"
	"github.com/TobiSchelling/newsdesk/internal/cms"
	"github.com/TobiSchelling/newsdesk/internal/collect"
	"github.com/TobiSchelling/newsdesk/internal/config"
	"github.com/TobiSchelling/newsdesk/internal/content"
	"github.com/TobiSchelling/newsdesk/internal/i18n"
	"github.com/TobiSchelling/newsdesk/internal/server"
	"github.com/TobiSchelling/newsdesk/internal/store"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "newsdesk",
	Short:   "A live news site over a document store",
	Long:    "Newsdesk serves a multilingual news site from a live document store, with an editorial workflow and feed import.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := config.LoadEnv(); err != nil {
			return err
		}
		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if strings.EqualFold(cfg.Logging.Level, "DEBUG") {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(articlesCmd)
	rootCmd.AddCommand(newsletterCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsdesk", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/newsdesk/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to choose a store backend, feeds and admin editors.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store and content status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Printf("Backend: %s\n\n", cfg.Store.Backend)
		fmt.Println("Collections:")
		for _, name := range []string{store.Articles, store.Categories, store.Videos, store.Podcasts, store.Newsletter, store.ContactMessage} {
			docs, err := st.Fetch(ctx, name, store.Query{})
			if err != nil {
				return fmt.Errorf("reading %s: %w", name, err)
			}
			fmt.Printf("  %-24s %d\n", name+":", len(docs))
		}

		articles, err := aggregate.New(st).FetchOnce(ctx, store.Articles, store.Query{})
		if err != nil {
			return err
		}
		published := 0
		for _, a := range articles {
			if a.Status == content.StatusPublished {
				published++
			}
		}
		fmt.Println("\nArticles:")
		fmt.Printf("  Published: %d\n", published)
		fmt.Printf("  Drafts: %d\n", len(articles)-published)
		fmt.Printf("  Breaking: %d\n", len(content.Breaking(articles, 0)))
		return nil
	},
}

// --- seed command ---

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the sample categories and articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, svc, err := openWriter(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := svc.Seed(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d categories and %d articles.\n", res.Categories, res.Articles)
		return nil
	},
}

// --- import command ---

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import feed and NewsAPI items as draft articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, svc, err := openWriter(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Println("Importing articles from sources...")
		result, err := collect.NewCollector(cfg, svc).Collect(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("\nImport complete:")
		fmt.Printf("  Total found: %d\n", result.TotalFound)
		fmt.Printf("  New drafts: %d\n", result.NewArticles)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)
		fmt.Printf("  Bodies fetched: %d (%d failed)\n", result.Fetched, result.Failed)

		if len(result.Sources) > 0 {
			fmt.Println("\nArticles by source:")
			type kv struct {
				key string
				val int
			}
			var sorted []kv
			for k, v := range result.Sources {
				sorted = append(sorted, kv{k, v})
			}
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].val > sorted[j].val })
			for _, s := range sorted {
				fmt.Printf("  %s: %d\n", s.key, s.val)
			}
		}
		if result.NewArticles > 0 {
			fmt.Println("\nReview them with 'newsdesk articles list --drafts'.")
		}
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		catalog, err := i18n.Load()
		if err != nil {
			return err
		}
		guard, err := newGuard(cfg)
		if err != nil {
			return err
		}

		live := server.NewLive(aggregate.New(st), server.DefaultRetry)
		go live.Run(ctx)

		srv, err := server.New(server.Deps{
			Source:  live,
			Reader:  st,
			CMS:     newCMS(cfg, st),
			Guard:   guard,
			Catalog: catalog,
			Site:    cfg.Site,
			Views:   cfg.Views,
		})
		if err != nil {
			return err
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, srv, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- watch command ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print published articles as they change",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		failed := make(chan error, 1)
		sub, err := aggregate.New(st).Subscribe(ctx, store.Articles, aggregate.PublishedQuery(store.Query{}), aggregate.Handlers{
			OnUpdate: func(articles []content.Article) {
				fmt.Printf("\n%d published articles\n", len(articles))
				for _, a := range content.Latest(articles, 5) {
					fmt.Printf("  %s  %s [%s]\n", a.PublishedAt.Format("2006-01-02 15:04"), a.Title, a.CategoryName)
				}
			},
			OnError: func(err error) { failed <- err },
		})
		if err != nil {
			return err
		}
		defer sub.Cancel()

		fmt.Println("Watching articles, press Ctrl+C to stop")
		select {
		case <-ctx.Done():
			return nil
		case err := <-failed:
			return err
		}
	},
}

// --- articles command ---

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "List and edit articles",
}

var (
	listDrafts   bool
	listCategory string
	listLimit    int
)

var articlesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List articles, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		articles, err := loadArticles(cmd.Context(), listDrafts)
		if err != nil {
			return err
		}
		if listCategory != "" {
			articles = content.ByCategory(articles, listCategory)
		}
		printArticles(content.Latest(articles, listLimit))
		return nil
	},
}

var articlesSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search published articles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		articles, err := loadArticles(cmd.Context(), false)
		if err != nil {
			return err
		}
		printArticles(content.Search(content.Latest(articles, 0), args[0]))
		return nil
	},
}

var articlesShowCmd = &cobra.Command{
	Use:   "show [slug]",
	Short: "Show one article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		articles, err := loadArticles(cmd.Context(), true)
		if err != nil {
			return err
		}
		a, ok := content.BySlug(articles, args[0])
		if !ok {
			return fmt.Errorf("article %q not found", args[0])
		}
		fmt.Println(a.Title)
		fmt.Printf("%s | %s | %s | %d min read | %d reads\n",
			a.CategoryName, a.Author, a.Status, content.ReadingTime(a), a.ReadCount)
		fmt.Printf("Published: %s\n", a.PublishedAt.Format("2006-01-02 15:04"))
		if a.Excerpt != "" {
			fmt.Printf("\n%s\n", a.Excerpt)
		}
		fmt.Printf("\n%s\n", a.Body)
		return nil
	},
}

var createDraft cms.Draft

var articlesCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create an article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, svc, err := openWriter(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		d := createDraft
		d.Title = args[0]
		if d.Body == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading body: %w", err)
			}
			d.Body = string(data)
		}
		id, err := svc.CreateArticle(cmd.Context(), d)
		if err != nil {
			return err
		}
		fmt.Printf("Created article %s\n", id)
		return nil
	},
}

func statusCommand(use, short string, status content.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, svc, err := openWriter(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := svc.SetStatus(cmd.Context(), args[0], status); err != nil {
				return err
			}
			fmt.Printf("Article %s is now %s\n", args[0], status)
			return nil
		},
	}
}

var articlesDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete an article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, svc, err := openWriter(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := svc.DeleteArticle(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted article %s\n", args[0])
		return nil
	},
}

func init() {
	articlesListCmd.Flags().BoolVar(&listDrafts, "drafts", false, "Include drafts")
	articlesListCmd.Flags().StringVar(&listCategory, "category", "", "Only this category slug")
	articlesListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum articles to list (0 for all)")

	f := articlesCreateCmd.Flags()
	f.StringVar(&createDraft.Slug, "slug", "", "URL slug (derived from the title if empty)")
	f.StringVar(&createDraft.Excerpt, "excerpt", "", "Short summary")
	f.StringVar(&createDraft.Body, "body", "", "Markdown body, or - to read stdin")
	f.StringVar(&createDraft.CategoryID, "category", "", "Category document ID")
	f.StringVar(&createDraft.Author, "author", "", "Author name")
	f.StringVar(&createDraft.ImageURL, "image", "", "Featured image URL")
	f.StringVar(&createDraft.Status, "status", string(content.StatusDraft), "draft or published")
	f.BoolVar(&createDraft.Featured, "featured", false, "Mark as featured")
	f.BoolVar(&createDraft.Trending, "trending", false, "Mark as trending")
	f.BoolVar(&createDraft.Breaking, "breaking", false, "Mark as breaking")

	articlesCmd.AddCommand(articlesListCmd)
	articlesCmd.AddCommand(articlesSearchCmd)
	articlesCmd.AddCommand(articlesShowCmd)
	articlesCmd.AddCommand(articlesCreateCmd)
	articlesCmd.AddCommand(statusCommand("publish", "Publish an article", content.StatusPublished))
	articlesCmd.AddCommand(statusCommand("unpublish", "Return an article to draft", content.StatusDraft))
	articlesCmd.AddCommand(articlesDeleteCmd)
}

// --- newsletter command ---

var newsletterCmd = &cobra.Command{
	Use:   "newsletter",
	Short: "Manage newsletter subscribers",
}

var newsletterSubscribeCmd = &cobra.Command{
	Use:   "subscribe [email]",
	Short: "Add a newsletter subscriber",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, svc, err := openWriter(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		_, err = svc.SubscribeNewsletter(cmd.Context(), args[0])
		if errors.Is(err, cms.ErrAlreadySubscribed) {
			fmt.Printf("%s is already subscribed\n", args[0])
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Subscribed %s\n", args[0])
		return nil
	},
}

func init() {
	newsletterCmd.AddCommand(newsletterSubscribeCmd)
}

// loadArticles reads every article once, normalized against the categories.
func loadArticles(ctx context.Context, drafts bool) ([]content.Article, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	q := store.Query{}
	if !drafts {
		q = aggregate.PublishedQuery(q)
	}
	return aggregate.New(st).FetchOnce(ctx, store.Articles, q)
}

func printArticles(articles []content.Article) {
	if len(articles) == 0 {
		fmt.Println("No articles found.")
		return
	}
	for _, a := range articles {
		flags := ""
		if a.IsBreaking {
			flags += "!"
		}
		if a.IsFeatured {
			flags += "*"
		}
		fmt.Printf("  %-2s %-40s %-10s %s\n", flags, a.ID, a.Status, a.Title)
	}
}

// openWriter opens the configured store along with a CMS over it.
func openWriter(ctx context.Context) (store.Store, *cms.Service, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	svc := newCMS(cfg, st)
	if svc == nil {
		st.Close()
		return nil, nil, fmt.Errorf("%s backend: %w", cfg.Store.Backend, store.ErrReadOnly)
	}
	return st, svc, nil
}
