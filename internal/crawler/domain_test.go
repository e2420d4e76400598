package crawler

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestNewAllowList(t *testing.T) {
	t.Parallel()

	t.Run("splits the global cap evenly", func(t *testing.T) {
		t.Parallel()

		r := NewAllowList[string](100, map[string]DomainConfig{
			"a.test": {},
			"b.test": {},
			"c.test": {},
			"d.test": {MaxConcurrentRequests: 7},
		})

		for _, name := range []string{"a.test", "b.test", "c.test"} {
			cfg, ok := r.Lookup(name)
			if !ok {
				t.Fatalf("expected %s to be registered", name)
			}
			if cfg.MaxConcurrentRequests != 25 {
				t.Errorf("%s: expected cap 25, got %d", name, cfg.MaxConcurrentRequests)
			}
		}
		cfg, _ := r.Lookup("d.test")
		if cfg.MaxConcurrentRequests != 7 {
			t.Errorf("expected explicit cap 7, got %d", cfg.MaxConcurrentRequests)
		}
	})

	t.Run("share never drops below one", func(t *testing.T) {
		t.Parallel()

		r := NewAllowList[string](1, map[string]DomainConfig{"a.test": {}, "b.test": {}})
		cfg, _ := r.Lookup("b.test")
		if cfg.MaxConcurrentRequests != 1 {
			t.Errorf("expected cap 1, got %d", cfg.MaxConcurrentRequests)
		}
	})

	t.Run("normalizes domain names", func(t *testing.T) {
		t.Parallel()

		r := NewAllowList[string](10, map[string]DomainConfig{"Example.COM.": {MaxDepth: 3}})
		cfg, ok := r.Lookup("example.com")
		if !ok {
			t.Fatal("expected normalized lookup to succeed")
		}
		if cfg.MaxDepth != 3 {
			t.Errorf("expected max depth 3, got %d", cfg.MaxDepth)
		}
		if got := r.Domains(); !slices.Equal(got, []string{"example.com"}) {
			t.Errorf("unexpected domains %v", got)
		}
	})
}

func TestRegistryRoute(t *testing.T) {
	t.Parallel()

	t.Run("allow list rejects unknown domains", func(t *testing.T) {
		t.Parallel()

		r := NewAllowList[string](10, map[string]DomainConfig{"allowed.test": {}})
		err := r.Route(newTestRequest(t, "http://other.test/", "seed", 0))

		var cerr *Error[string]
		if !errors.As(err, &cerr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if cerr.Kind != KindDisallowedRequest || cerr.Reason != ReasonUserConfig {
			t.Errorf("expected disallowed(user config), got %v/%v", cerr.Kind, cerr.Reason)
		}
		if cerr.IntoState() != "seed" {
			t.Errorf("expected state to be carried, got %q", cerr.IntoState())
		}
		if r.Pending() != 0 {
			t.Errorf("expected nothing queued, got %d", r.Pending())
		}
	})

	t.Run("allow list queues known domains", func(t *testing.T) {
		t.Parallel()

		r := NewAllowList[string](10, map[string]DomainConfig{"allowed.test": {}})
		if err := r.Route(newTestRequest(t, "http://ALLOWED.test:8080/x", "seed", 0)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Pending() != 1 {
			t.Errorf("expected 1 queued request, got %d", r.Pending())
		}
	})

	t.Run("block list rejects blocked domains and creates the rest lazily", func(t *testing.T) {
		t.Parallel()

		r := NewBlockList[string](10, []string{"x.test"}, DomainConfig{MaxDepth: UnboundedDepth})

		err := r.Route(newTestRequest(t, "http://x.test/", "x", 0))
		if !errors.Is(err, ErrDisallowedRequest) {
			t.Errorf("expected disallowed error, got %v", err)
		}

		if err := r.Route(newTestRequest(t, "http://y.test/", "y", 0)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := r.Domains(); !slices.Equal(got, []string{"y.test"}) {
			t.Errorf("expected y.test registered lazily, got %v", got)
		}
		cfg, _ := r.Lookup("y.test")
		if cfg.MaxConcurrentRequests != 10 {
			t.Errorf("expected shared cap 10, got %d", cfg.MaxConcurrentRequests)
		}
	})

	t.Run("block list hosts do not share a rate bucket", func(t *testing.T) {
		t.Parallel()

		d := RateDelay(1, time.Hour)
		r := NewBlockList[string](10, nil, DomainConfig{MaxDepth: UnboundedDepth, Delay: &d})
		for _, host := range []string{"a.test", "b.test", "c.test"} {
			for _, p := range []string{"/1", "/2"} {
				if err := r.Route(newTestRequest(t, "http://"+host+p, host, 0)); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
		}

		now := time.Now()
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, host := range []string{"a.test", "b.test", "c.test"} {
			if _, _, ok := r.domains[host].queue.PollNext(now); !ok {
				t.Fatalf("%s: expected first release", host)
			}
		}
		// Each host spent only its own token, so every timer expires at once.
		for _, host := range []string{"a.test", "b.test", "c.test"} {
			if _, wait, ok := r.domains[host].queue.PollNext(now); !ok {
				t.Errorf("%s: second request held back for %v by another host", host, wait)
			}
		}
	})

	t.Run("ports are ignored when matching registered domains", func(t *testing.T) {
		t.Parallel()

		r := NewAllowList[string](10, map[string]DomainConfig{"LocalHost:8080": {}, "[::1]:9000": {}})
		if got := r.Domains(); !slices.Equal(got, []string{"::1", "localhost"}) {
			t.Errorf("unexpected domains %v", got)
		}
		for _, raw := range []string{"http://localhost:8080/", "http://[::1]:9000/"} {
			if err := r.Route(newTestRequest(t, raw, "s", 0)); err != nil {
				t.Errorf("%s: unexpected error: %v", raw, err)
			}
		}
		if r.Pending() != 2 {
			t.Errorf("expected 2 queued requests, got %d", r.Pending())
		}
	})

	t.Run("request without host is invalid", func(t *testing.T) {
		t.Parallel()

		r := NewBlockList[string](10, nil, DomainConfig{})
		req := newTestRequest(t, "http://example.com/", "s", 0)
		req.Request.URL.Host = ""

		if err := r.Route(req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("expected invalid request, got %v", err)
		}
	})
}

func TestRegistryMutation(t *testing.T) {
	t.Parallel()

	t.Run("register replaces and keeps queued requests", func(t *testing.T) {
		t.Parallel()

		r := NewAllowList[string](10, map[string]DomainConfig{"a.test": {}})
		_ = r.Route(newTestRequest(t, "http://a.test/1", "1", 0)) //nolint:errcheck
		_ = r.Route(newTestRequest(t, "http://a.test/2", "2", 0)) //nolint:errcheck

		r.Register("a.test", DomainConfig{MaxDepth: 5, MaxConcurrentRequests: 3})

		cfg, _ := r.Lookup("a.test")
		if cfg.MaxDepth != 5 || cfg.MaxConcurrentRequests != 3 {
			t.Errorf("expected replaced config, got %+v", cfg)
		}
		if r.Pending() != 2 {
			t.Errorf("expected 2 carried requests, got %d", r.Pending())
		}
	})

	t.Run("register keeps the remaining wait of an armed timer", func(t *testing.T) {
		t.Parallel()

		d := FixedDelay(time.Hour)
		cfg := DomainConfig{MaxDepth: UnboundedDepth, MaxConcurrentRequests: 1, Delay: &d}
		r := NewAllowList[string](10, map[string]DomainConfig{"a.test": cfg})
		_ = r.Route(newTestRequest(t, "http://a.test/1", "1", 0)) //nolint:errcheck
		_ = r.Route(newTestRequest(t, "http://a.test/2", "2", 0)) //nolint:errcheck

		now := time.Now()
		r.mu.Lock()
		_, _, ok := r.domains["a.test"].queue.PollNext(now)
		r.mu.Unlock()
		if !ok {
			t.Fatal("expected the first request to be released")
		}

		r.Register("a.test", cfg)

		r.mu.Lock()
		_, wait, ok := r.domains["a.test"].queue.PollNext(now.Add(time.Millisecond))
		r.mu.Unlock()
		if ok {
			t.Fatal("replacement queue released a request before the delay elapsed")
		}
		if wait < 59*time.Minute {
			t.Errorf("expected close to an hour left, got %v", wait)
		}
	})

	t.Run("late registration gets a share of the cap", func(t *testing.T) {
		t.Parallel()

		r := NewAllowList[string](12, map[string]DomainConfig{"a.test": {}, "b.test": {}})
		r.Register("c.test", DomainConfig{})

		a, _ := r.Lookup("a.test")
		c, _ := r.Lookup("c.test")
		if a.MaxConcurrentRequests != 6 {
			t.Errorf("existing cap changed to %d", a.MaxConcurrentRequests)
		}
		if c.MaxConcurrentRequests != 4 {
			t.Errorf("expected late cap 4, got %d", c.MaxConcurrentRequests)
		}
	})

	t.Run("unregister returns queued requests", func(t *testing.T) {
		t.Parallel()

		r := NewAllowList[string](10, map[string]DomainConfig{"a.test": {}})
		_ = r.Route(newTestRequest(t, "http://a.test/1", "1", 0)) //nolint:errcheck
		_ = r.Route(newTestRequest(t, "http://a.test/2", "2", 0)) //nolint:errcheck

		left := r.Unregister("a.test")
		if len(left) != 2 || left[0].State != "1" || left[1].State != "2" {
			t.Errorf("unexpected returned requests %+v", left)
		}
		if _, ok := r.Lookup("a.test"); ok {
			t.Error("expected a.test to be gone")
		}
		if err := r.Route(newTestRequest(t, "http://a.test/3", "3", 0)); !errors.Is(err, ErrDisallowedRequest) {
			t.Errorf("expected disallowed after unregister, got %v", err)
		}
	})

	t.Run("unregister in block list mode blocks the domain", func(t *testing.T) {
		t.Parallel()

		r := NewBlockList[string](10, nil, DomainConfig{})
		_ = r.Route(newTestRequest(t, "http://a.test/", "1", 0)) //nolint:errcheck
		r.Unregister("a.test")

		if _, ok := r.Lookup("a.test"); ok {
			t.Error("expected a.test to be blocked")
		}
	})

	t.Run("update changes the queue delay but not the cap", func(t *testing.T) {
		t.Parallel()

		r := NewAllowList[string](10, map[string]DomainConfig{"a.test": {}})
		ok := r.Update("a.test", func(cfg *DomainConfig) {
			d := FixedDelay(time.Second)
			cfg.Delay = &d
			cfg.MaxConcurrentRequests = 99
		})
		if !ok {
			t.Fatal("expected update to find a.test")
		}

		cfg, _ := r.Lookup("a.test")
		if cfg.MaxConcurrentRequests != 10 {
			t.Errorf("expected cap to stay 10, got %d", cfg.MaxConcurrentRequests)
		}
		r.mu.RLock()
		delay, has := r.domains["a.test"].queue.Delay()
		r.mu.RUnlock()
		if !has || delay.NextDelay() != time.Second {
			t.Errorf("expected queue delay fixed(1s), got %v (has=%v)", delay, has)
		}

		if r.Update("missing.test", func(*DomainConfig) {}) {
			t.Error("expected update of unknown domain to fail")
		}
	})
}

func TestNormalizeHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Example.COM", "example.com"},
		{"example.com.", "example.com"},
		{" example.com ", "example.com"},
		{"localhost:8080", "localhost"},
		{"[::1]:443", "::1"},
		{"[::1]", "::1"},
		{"::1", "::1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := normalizeHost(tt.in); got != tt.want {
				t.Errorf("normalizeHost(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeAuthority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Example.COM:8080", "example.com:8080"},
		{"example.com.", "example.com"},
		{"example.com.:80", "example.com:80"},
		{"[::1]:443", "[::1]:443"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := normalizeAuthority(tt.in); got != tt.want {
				t.Errorf("normalizeAuthority(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
