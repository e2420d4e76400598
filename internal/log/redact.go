package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// Mask replaces every redacted value.
const Mask = "***REDACTED***"

// secretKeys are attribute keys whose values are never logged.
var secretKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"password":            true,
	"proxy_password":      true,
	"api_key":             true,
	"access_token":        true,
}

// secretKeywords mark a key as sensitive when they appear anywhere in it.
// A bare "key" is left out: "domain_key" and "cache_key" are not secrets.
var secretKeywords = []string{"password", "passwd", "secret", "token", "auth", "credential", "session"}

// secretValues catch credentials logged under an innocent key.
var secretValues = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
}

// RedactingHandler wraps an slog.Handler and masks credentials before they
// reach the output. Crawl logs are full of URLs, so besides key and value
// matching it rewrites URL-valued strings: userinfo passwords (proxy URLs)
// and sensitive query parameters are masked while the rest of the URL stays
// readable.
//
// Design decision: We redact in a handler rather than at call sites because:
//  1. Every component logs through slog, including the HTTP client wiring
//  2. A forgotten call site cannot leak a proxy password
//  3. It composes with both the text and the JSON handler
type RedactingHandler struct {
	next slog.Handler
}

// NewRedactingHandler wraps next. A nil next wraps slog.Default().Handler().
func NewRedactingHandler(next slog.Handler) *RedactingHandler {
	if next == nil {
		next = slog.Default().Handler()
	}
	return &RedactingHandler{next: next}
}

// Enabled delegates to the wrapped handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle redacts the record's attributes and forwards it.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redact(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs redacts attrs once, up front.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redact(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(redacted)}
}

// WithGroup delegates to the wrapped handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name)}
}

func redact(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, g := range group {
			out[i] = redact(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if IsSecretKey(a.Key) {
		return slog.String(a.Key, Mask)
	}

	var s string
	switch a.Value.Kind() {
	case slog.KindString:
		s = a.Value.String()
	case slog.KindAny:
		u, ok := a.Value.Any().(*url.URL)
		if !ok || u == nil {
			return a
		}
		s = u.String()
	default:
		return a
	}

	if IsSecretValue(s) {
		return slog.String(a.Key, Mask)
	}
	if redacted, changed := RedactURL(s); changed {
		return slog.String(a.Key, redacted)
	}
	return a
}

// IsSecretKey reports whether values logged under key must be masked.
func IsSecretKey(key string) bool {
	key = strings.ToLower(key)
	if secretKeys[key] {
		return true
	}
	for _, kw := range secretKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}

// IsSecretValue reports whether value looks like a credential on its own.
func IsSecretValue(value string) bool {
	for _, re := range secretValues {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// RedactURL masks the userinfo password and sensitive query parameters of
// an absolute URL. It reports whether anything was masked; non-URLs are
// returned unchanged.
func RedactURL(raw string) (string, bool) {
	if !strings.Contains(raw, "://") {
		return raw, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw, false
	}

	changed := false
	if u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), Mask)
			changed = true
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if IsSecretKey(name) || strings.EqualFold(name, "sig") || strings.EqualFold(name, "signature") {
				q.Set(name, Mask)
				changed = true
			}
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}

	if !changed {
		return raw, false
	}
	return u.String(), true
}

// NewLogger returns a text logger that redacts credentials. verbose lowers
// the level from Warn to Debug.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewRedactingHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewJSONLogger is NewLogger with JSON output, for log aggregation.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewRedactingHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
