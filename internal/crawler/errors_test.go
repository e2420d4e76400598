package crawler

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestError(t *testing.T) {
	t.Parallel()

	t.Run("matches the sentinel of its kind", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			kind     ErrorKind
			sentinel error
		}{
			{KindNoSuccessResponse, ErrNoSuccessResponse},
			{KindFailedToBuildRequest, ErrFailedToBuildRequest},
			{KindInvalidRequest, ErrInvalidRequest},
			{KindReachedMaxDepth, ErrReachedMaxDepth},
			{KindRobotsTxt, ErrRobotsTxt},
			{KindDisallowedRequest, ErrDisallowedRequest},
			{KindTransport, ErrTransport},
			{KindScrape, ErrScrape},
		}

		for _, tt := range tests {
			var err error = &Error[string]{Kind: tt.kind}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("%s: expected errors.Is to match its sentinel", tt.kind)
			}
			if errors.Is(err, ErrDrained) {
				t.Errorf("%s: unexpectedly matched ErrDrained", tt.kind)
			}
		}
	})

	t.Run("carries the request state", func(t *testing.T) {
		t.Parallel()

		req := newTestRequest(t, "http://example.com/book/1", "book", 2)
		e := newRequestError(KindReachedMaxDepth, req, nil)

		state, ok := e.State()
		if !ok || state != "book" {
			t.Errorf("expected state book, got %q (ok=%v)", state, ok)
		}
		if e.IntoState() != "book" {
			t.Errorf("expected IntoState book, got %q", e.IntoState())
		}
		if e.Depth != 2 {
			t.Errorf("expected depth 2, got %d", e.Depth)
		}
		if !strings.Contains(e.Error(), "reached max depth at 2") {
			t.Errorf("unexpected message %q", e.Error())
		}
	})

	t.Run("robots error carries only the host", func(t *testing.T) {
		t.Parallel()

		e := newRobotsError[string]("example.com", io.ErrUnexpectedEOF)
		if _, ok := e.State(); ok {
			t.Error("expected no state on a robots error")
		}
		if !errors.Is(e, io.ErrUnexpectedEOF) {
			t.Error("expected the cause to be unwrapped")
		}
		if !strings.Contains(e.Error(), "example.com") {
			t.Errorf("expected host in message, got %q", e.Error())
		}
	})

	t.Run("disallowed error reports its reason", func(t *testing.T) {
		t.Parallel()

		req := newTestRequest(t, "http://blocked.test/", "seed", 0)
		e := newDisallowedError(ReasonUserConfig, req)
		if e.Reason != ReasonUserConfig {
			t.Errorf("expected user config reason, got %v", e.Reason)
		}
		if !strings.Contains(e.Error(), "URL blocked by user config") {
			t.Errorf("unexpected message %q", e.Error())
		}
	})

	t.Run("errors.As extracts the typed error", func(t *testing.T) {
		t.Parallel()

		req := newTestRequest(t, "http://example.com/", "listing", 1)
		var err error = newRequestError(KindNoSuccessResponse, req, nil)

		var cerr *Error[string]
		if !errors.As(err, &cerr) {
			t.Fatal("expected errors.As to succeed")
		}
		if cerr.IntoState() != "listing" {
			t.Errorf("expected listing, got %q", cerr.IntoState())
		}
	})
}

func TestErrorKindString(t *testing.T) {
	t.Parallel()

	if got := KindReachedMaxDepth.String(); got != "reached_max_depth" {
		t.Errorf("expected reached_max_depth, got %q", got)
	}
	if got := ErrorKind(0).String(); got != "unknown" {
		t.Errorf("expected unknown, got %q", got)
	}
	if got := ReasonRobotsTxt.String(); got != "URL blocked by robots.txt" {
		t.Errorf("unexpected reason %q", got)
	}
}
