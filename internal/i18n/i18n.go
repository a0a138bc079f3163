// Package i18n holds the site's translation bundles. Bundles are loaded
// once at start and are read-only afterwards; callers receive a LookupFunc
// rather than a mutable registry.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var locales embed.FS

// DefaultLocale is used when no requested locale has a bundle.
const DefaultLocale = "en"

// LookupFunc translates key into locale.
type LookupFunc func(key, locale string) string

// Catalog is an immutable set of translation bundles keyed by locale.
type Catalog struct {
	bundles  map[string]map[string]string
	fallback string
	tags     []language.Tag
	matcher  language.Matcher
}

// Load reads the embedded bundles.
func Load() (*Catalog, error) {
	return LoadFS(locales, "locales", DefaultLocale)
}

// LoadFS reads every <locale>.yaml file under dir. Nested keys are
// flattened with dots ("newsletter.title"). fallback must be one of the
// loaded locales.
func LoadFS(fsys fs.FS, dir, fallback string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading locales: %w", err)
	}

	c := &Catalog{bundles: make(map[string]map[string]string), fallback: fallback}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		locale := strings.TrimSuffix(e.Name(), ".yaml")
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", e.Name(), err)
		}
		bundle := make(map[string]string)
		flatten("", tree, bundle)
		c.bundles[locale] = bundle
	}
	if _, ok := c.bundles[fallback]; !ok {
		return nil, fmt.Errorf("no bundle for fallback locale %q", fallback)
	}

	// The fallback goes first so the matcher prefers it on no match.
	c.tags = []language.Tag{language.Make(fallback)}
	for _, l := range c.Locales() {
		if l != fallback {
			c.tags = append(c.tags, language.Make(l))
		}
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		case nil:
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Locales returns the loaded locales in sorted order.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.bundles))
	for l := range c.bundles {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Has reports whether a bundle exists for locale.
func (c *Catalog) Has(locale string) bool {
	_, ok := c.bundles[locale]
	return ok
}

// Lookup returns the translation of key in locale. Regional variants fall
// back to their base language ("fr-CA" to "fr"), then to the fallback
// locale. An unknown key is returned as is.
func (c *Catalog) Lookup(key, locale string) string {
	for _, l := range []string{locale, baseLanguage(locale), c.fallback} {
		if b, ok := c.bundles[l]; ok {
			if s, ok := b[key]; ok {
				return s
			}
		}
	}
	return key
}

// Func returns Lookup as a LookupFunc.
func (c *Catalog) Func() LookupFunc {
	return c.Lookup
}

// Match picks the best loaded locale for an Accept-Language header value.
func (c *Catalog) Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return c.fallback
	}
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No {
		return c.fallback
	}
	base, _ := c.tags[idx].Base()
	if c.Has(base.String()) {
		return base.String()
	}
	return c.tags[idx].String()
}

func baseLanguage(locale string) string {
	locale = strings.ReplaceAll(locale, "_", "-")
	if i := strings.Index(locale, "-"); i > 0 {
		return strings.ToLower(locale[:i])
	}
	return strings.ToLower(locale)
}
