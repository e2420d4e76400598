package crawler

import (
	"net/http"
	"testing"
	"time"
)

func newTestRequest(t *testing.T, rawURL string, state string, depth int) QueuedRequest[string] {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, rawURL, nil) //nolint:noctx // test request
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	return QueuedRequest[string]{Request: req, State: state, HasState: true, Depth: depth}
}

func TestRequestQueue(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("empty queue reports nothing ready", func(t *testing.T) {
		t.Parallel()

		q := NewRequestQueueWithDelay[string](FixedDelay(time.Second))
		_, wait, ok := q.PollNext(base)
		if ok {
			t.Fatal("expected no item from empty queue")
		}
		if wait != 0 {
			t.Errorf("expected zero wait, got %v", wait)
		}
		if !q.IsEmpty() || q.Len() != 0 {
			t.Error("expected empty queue")
		}
	})

	t.Run("unpaced queue releases in FIFO order", func(t *testing.T) {
		t.Parallel()

		q := NewRequestQueue[string]()
		for _, s := range []string{"a", "b", "c"} {
			q.Push(newTestRequest(t, "http://example.com/"+s, s, 0))
		}
		if q.Len() != 3 {
			t.Fatalf("expected 3 items, got %d", q.Len())
		}

		for _, want := range []string{"a", "b", "c"} {
			req, _, ok := q.PollNext(base)
			if !ok {
				t.Fatalf("expected item %q to be ready", want)
			}
			if req.State != want {
				t.Errorf("expected %q, got %q", want, req.State)
			}
		}
	})

	t.Run("first paced release is immediate", func(t *testing.T) {
		t.Parallel()

		q := NewRequestQueueWithDelay[string](FixedDelay(time.Second))
		q.Push(newTestRequest(t, "http://example.com/", "a", 0))

		if _, _, ok := q.PollNext(base); !ok {
			t.Fatal("expected the first request to be released immediately")
		}
	})

	t.Run("paced queue holds the next release for the interval", func(t *testing.T) {
		t.Parallel()

		q := NewRequestQueueWithDelay[string](FixedDelay(time.Second))
		q.Push(newTestRequest(t, "http://example.com/a", "a", 0))
		q.Push(newTestRequest(t, "http://example.com/b", "b", 0))

		if _, _, ok := q.PollNext(base); !ok {
			t.Fatal("expected first release")
		}

		_, wait, ok := q.PollNext(base.Add(400 * time.Millisecond))
		if ok {
			t.Fatal("expected second release to be held")
		}
		if wait != 600*time.Millisecond {
			t.Errorf("expected 600ms wait, got %v", wait)
		}

		req, _, ok := q.PollNext(base.Add(time.Second))
		if !ok {
			t.Fatal("expected second release once the interval elapsed")
		}
		if req.State != "b" {
			t.Errorf("expected b, got %q", req.State)
		}
	})

	t.Run("empty poll does not consume the timer", func(t *testing.T) {
		t.Parallel()

		q := NewRequestQueueWithDelay[string](FixedDelay(time.Second))
		q.Push(newTestRequest(t, "http://example.com/a", "a", 0))
		q.PollNext(base)

		before, _ := q.ReadyAt()
		q.PollNext(base.Add(2 * time.Second))
		after, armed := q.ReadyAt()
		if !armed {
			t.Fatal("expected timer to stay armed")
		}
		if !before.Equal(after) {
			t.Errorf("empty poll moved the timer from %v to %v", before, after)
		}
	})

	t.Run("set delay keeps queued items and armed timer", func(t *testing.T) {
		t.Parallel()

		q := NewRequestQueueWithDelay[string](FixedDelay(time.Second))
		q.Push(newTestRequest(t, "http://example.com/a", "a", 0))
		q.Push(newTestRequest(t, "http://example.com/b", "b", 0))
		q.PollNext(base)

		prev, had := q.SetDelay(FixedDelay(5 * time.Second))
		if !had || prev.NextDelay() != time.Second {
			t.Errorf("expected previous fixed(1s), got %v (had=%v)", prev, had)
		}
		if q.Len() != 1 {
			t.Errorf("expected 1 queued item, got %d", q.Len())
		}

		// The armed timer still expires after the old interval.
		if _, _, ok := q.PollNext(base.Add(time.Second)); !ok {
			t.Error("expected release after the original interval")
		}
		readyAt, _ := q.ReadyAt()
		if want := base.Add(6 * time.Second); !readyAt.Equal(want) {
			t.Errorf("expected timer re-armed with new delay at %v, got %v", want, readyAt)
		}
	})

	t.Run("remove delay lets the armed timer finish then stops pacing", func(t *testing.T) {
		t.Parallel()

		q := NewRequestQueueWithDelay[string](FixedDelay(time.Second))
		for _, s := range []string{"a", "b", "c"} {
			q.Push(newTestRequest(t, "http://example.com/"+s, s, 0))
		}
		q.PollNext(base)

		if _, had := q.RemoveDelay(); !had {
			t.Fatal("expected a previous delay")
		}
		if _, ok := q.Delay(); ok {
			t.Error("expected no delay after removal")
		}
		if _, _, ok := q.PollNext(base); ok {
			t.Fatal("expected armed timer to still gate the release")
		}
		if _, _, ok := q.PollNext(base.Add(time.Second)); !ok {
			t.Fatal("expected release after the armed timer")
		}
		if _, _, ok := q.PollNext(base.Add(time.Second)); !ok {
			t.Fatal("expected unpaced release")
		}
	})

	t.Run("queues built from one rate delay keep separate buckets", func(t *testing.T) {
		t.Parallel()

		d := RateDelay(1, time.Hour)
		qa := NewRequestQueueWithDelay[string](d)
		qb := NewRequestQueueWithDelay[string](d)
		for _, q := range []*RequestQueue[string]{qa, qb} {
			q.Push(newTestRequest(t, "http://example.com/1", "1", 0))
			q.Push(newTestRequest(t, "http://example.com/2", "2", 0))
		}

		if _, _, ok := qa.PollNext(base); !ok {
			t.Fatal("expected first release on qa")
		}
		if _, _, ok := qb.PollNext(base); !ok {
			t.Fatal("expected first release on qb")
		}
		// qb spent its only token on the first release; qa's release must
		// not have taken it.
		if _, wait, ok := qb.PollNext(base); !ok {
			t.Errorf("expected qb's burst token to be its own, got wait %v", wait)
		}
	})

	t.Run("set delay gives a rate policy its own bucket", func(t *testing.T) {
		t.Parallel()

		d := RateDelay(1, time.Hour)
		d.NextDelay() // drain the shared bucket

		q := NewRequestQueue[string]()
		q.SetDelay(d)
		q.Push(newTestRequest(t, "http://example.com/1", "1", 0))
		q.Push(newTestRequest(t, "http://example.com/2", "2", 0))

		if _, _, ok := q.PollNext(base); !ok {
			t.Fatal("expected first release")
		}
		if _, wait, ok := q.PollNext(base); !ok {
			t.Errorf("expected a fresh bucket after SetDelay, got wait %v", wait)
		}
	})

	t.Run("drain returns every item in order", func(t *testing.T) {
		t.Parallel()

		q := NewRequestQueue[string]()
		for i := range 50 {
			q.Push(newTestRequest(t, "http://example.com/", string(rune('a'+i%26)), i))
		}
		for range 40 {
			q.PollNext(base)
		}

		items := q.Drain()
		if len(items) != 10 {
			t.Fatalf("expected 10 drained items, got %d", len(items))
		}
		for i, item := range items {
			if item.Depth != 40+i {
				t.Errorf("item %d: expected depth %d, got %d", i, 40+i, item.Depth)
			}
		}
		if !q.IsEmpty() {
			t.Error("expected empty queue after drain")
		}
	})
}
