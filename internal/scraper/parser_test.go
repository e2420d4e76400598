package scraper

import (
	"net/url"
	"slices"
	"strings"
	"testing"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	return u
}

func TestParseHTML(t *testing.T) {
	t.Parallel()

	t.Run("extracts title and resolves links", func(t *testing.T) {
		t.Parallel()

		page := `<html><head><title>  Book
			Store </title></head><body>
			<a href="/catalogue/1.html">one</a>
			<a href="catalogue/2.html#reviews">two</a>
			<a href="https://other.example.org/">other</a>
			<area href="/map">
			<a href="/catalogue/1.html">one again</a>
			</body></html>`

		doc, err := ParseHTML(mustParseURL(t, "https://books.example.com/index.html"), strings.NewReader(page))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.Title != "Book Store" {
			t.Errorf("expected title %q, got %q", "Book Store", doc.Title)
		}
		want := []string{
			"https://books.example.com/catalogue/1.html",
			"https://books.example.com/catalogue/2.html",
			"https://other.example.org/",
			"https://books.example.com/map",
		}
		if !slices.Equal(doc.Links, want) {
			t.Errorf("expected links %v, got %v", want, doc.Links)
		}
	})

	t.Run("skips non-navigable references", func(t *testing.T) {
		t.Parallel()

		page := `<a href="javascript:void(0)">js</a>
			<a href="mailto:admin@example.com">mail</a>
			<a href="tel:+123">tel</a>
			<a href="data:text/plain,hi">data</a>
			<a href="#top">anchor</a>
			<a href="ftp://example.com/file">ftp</a>
			<a href="/private" rel="nofollow">nofollow</a>
			<a>no href</a>`

		doc, err := ParseHTML(mustParseURL(t, "https://example.com/"), strings.NewReader(page))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(doc.Links) != 0 {
			t.Errorf("expected no links, got %v", doc.Links)
		}
	})

	t.Run("honours the base element", func(t *testing.T) {
		t.Parallel()

		page := `<html><head><base href="/docs/"></head><body><a href="intro.html">intro</a></body></html>`

		doc, err := ParseHTML(mustParseURL(t, "https://example.com/index.html"), strings.NewReader(page))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(doc.Links) != 1 || doc.Links[0] != "https://example.com/docs/intro.html" {
			t.Errorf("expected link resolved against base, got %v", doc.Links)
		}
	})

	t.Run("tolerates malformed markup", func(t *testing.T) {
		t.Parallel()

		page := `<p><a href="/x">x<div><a href=/y>y`

		doc, err := ParseHTML(mustParseURL(t, "http://example.com/"), strings.NewReader(page))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Contains(doc.Links, "http://example.com/y") {
			t.Errorf("expected /y to be extracted, got %v", doc.Links)
		}
	})
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{pattern: "/admin/*", path: "/admin", want: true},
		{pattern: "/admin/*", path: "/admin/users/1", want: true},
		{pattern: "/admin/*", path: "/administrator", want: false},
		{pattern: "*.pdf", path: "/docs/manual.pdf", want: true},
		{pattern: "*.pdf", path: "/docs/manual.html", want: false},
		{pattern: "/api/v?", path: "/api/v2", want: true},
		{pattern: "/api/v?", path: "/api/v10", want: false},
		{pattern: "login*", path: "/account/login.php", want: true},
		{pattern: "/catalogue/*.html", path: "/catalogue/page-2.html", want: true},
		{pattern: "[", path: "/anything", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			t.Parallel()

			if got := MatchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("MatchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

func TestPatternsAllows(t *testing.T) {
	t.Parallel()

	t.Run("zero patterns allow everything", func(t *testing.T) {
		t.Parallel()

		var p Patterns
		if !p.IsZero() || !p.Allows("https://example.com/anything") {
			t.Error("expected empty patterns to allow every link")
		}
	})

	t.Run("ignore wins over follow", func(t *testing.T) {
		t.Parallel()

		p := Patterns{Ignore: []string{"/catalogue/private/*"}, Follow: []string{"/catalogue/*"}}
		if p.Allows("https://example.com/catalogue/private/1") {
			t.Error("expected ignored path to be rejected")
		}
		if !p.Allows("https://example.com/catalogue/1") {
			t.Error("expected followed path to be allowed")
		}
		if p.Allows("https://example.com/about") {
			t.Error("expected path outside follow patterns to be rejected")
		}
	})

	t.Run("root path matches slash", func(t *testing.T) {
		t.Parallel()

		p := Patterns{Follow: []string{"/"}}
		if !p.Allows("https://example.com") {
			t.Error("expected empty path to be treated as /")
		}
	})
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "HTTPS://Example.COM", want: "https://example.com/"},
		{in: "https://example.com/a#section", want: "https://example.com/a"},
		{in: "https://example.com/a?q=1", want: "https://example.com/a?q=1"},
	}
	for _, tt := range tests {
		if got := normalizeURL(tt.in); got != tt.want {
			t.Errorf("normalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeHTML(t *testing.T) {
	t.Parallel()

	base, _ := url.Parse("https://example.com/")

	tests := []struct {
		name        string
		body        []byte
		contentType string
		wantTitle   string
	}{
		{
			name:        "header charset",
			body:        []byte("<html><head><title>Caf\xe9</title></head></html>"),
			contentType: "text/html; charset=iso-8859-1",
			wantTitle:   "Café",
		},
		{
			name:        "meta charset",
			body:        []byte("<html><head><meta charset=\"iso-8859-1\"><title>Na\xefve</title></head></html>"),
			contentType: "text/html",
			wantTitle:   "Naïve",
		},
		{
			name:        "utf-8 passes through",
			body:        []byte("<html><head><title>東京</title></head></html>"),
			contentType: "text/html; charset=utf-8",
			wantTitle:   "東京",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc, err := ParseHTML(base, DecodeHTML(tt.body, tt.contentType))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if doc.Title != tt.wantTitle {
				t.Errorf("expected title %q, got %q", tt.wantTitle, doc.Title)
			}
		})
	}
}
