package i18n

import (
	"testing"
	"testing/fstest"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"de", "en", "es", "fr"}
	got := c.Locales()
	if len(got) != len(want) {
		t.Fatalf("Locales = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Locales = %v, want %v", got, want)
		}
	}

	// Every locale carries every key of the fallback bundle.
	for key := range c.bundles[DefaultLocale] {
		for _, l := range want {
			if _, ok := c.bundles[l][key]; !ok {
				t.Errorf("locale %s is missing key %q", l, key)
			}
		}
	}
}

func TestLookup(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cases := []struct{ key, locale, want string }{
		{"newsletter.subscribe", "en", "Subscribe"},
		{"newsletter.subscribe", "fr", "S'abonner"},
		{"contact.form.labels.email", "es", "Correo electrónico"},
		{"nav.home", "de-AT", "Startseite"},
		{"nav.home", "fr_CA", "Accueil"},
		{"nav.home", "sw", "Home"},
		{"nav.home", "", "Home"},
		{"no.such.key", "de", "no.such.key"},
	}
	for _, tc := range cases {
		if got := c.Lookup(tc.key, tc.locale); got != tc.want {
			t.Errorf("Lookup(%q, %q) = %q, want %q", tc.key, tc.locale, got, tc.want)
		}
	}

	lookup := c.Func()
	if lookup("home.trending", "es") != "Tendencias" {
		t.Errorf("Func lookup mismatch: %q", lookup("home.trending", "es"))
	}
}

func TestFallbackForPartialBundle(t *testing.T) {
	fsys := fstest.MapFS{
		"l/en.yaml": {Data: []byte("greeting: Hello\nfarewell: Bye\ncount: 3\n")},
		"l/de.yaml": {Data: []byte("greeting: Hallo\n")},
		"l/README":  {Data: []byte("ignored")},
	}
	c, err := LoadFS(fsys, "l", "en")
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	if got := c.Lookup("farewell", "de"); got != "Bye" {
		t.Errorf("missing key should fall back, got %q", got)
	}
	if got := c.Lookup("count", "en"); got != "3" {
		t.Errorf("scalar values are stringified, got %q", got)
	}
	if c.Has("README") {
		t.Error("non-yaml files must be ignored")
	}
}

func TestLoadFSRequiresFallback(t *testing.T) {
	fsys := fstest.MapFS{"l/de.yaml": {Data: []byte("a: b\n")}}
	if _, err := LoadFS(fsys, "l", "en"); err == nil {
		t.Fatal("expected error without a fallback bundle")
	}
}

func TestMatch(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cases := map[string]string{
		"":                         "en",
		"fr-FR,fr;q=0.9,en;q=0.8": "fr",
		"de-CH":                    "de",
		"es-419,es;q=0.9":          "es",
		"ja":                       "en",
		"garbage;;q=x":             "en",
	}
	for header, want := range cases {
		if got := c.Match(header); got != want {
			t.Errorf("Match(%q) = %q, want %q", header, got, want)
		}
	}
}
