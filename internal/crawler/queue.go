package crawler

import "time"

// RequestQueue is a per-domain FIFO that releases at most one request per
// elapsed pacing interval.
//
// The queue is passive. It owns no goroutine and no runtime timer; the
// pacing "timer" is just the instant at which the next release becomes
// possible. The driver polls it and decides how long to sleep, so an idle
// domain costs nothing.
//
// Design decision: We store the FIFO in a slice with a moving head rather
// than container/list because:
//  1. Items are values, so a slice avoids one allocation per push
//  2. Len is the slice length, O(1)
//  3. The backing array is compacted once the consumed prefix dominates
type RequestQueue[S any] struct {
	items []QueuedRequest[S]
	head  int

	// delay is the active pacing policy, nil when the queue is unpaced.
	delay *RequestDelay

	// armed reports whether readyAt gates the next release.
	armed   bool
	readyAt time.Time
}

// NewRequestQueue returns an unpaced queue.
func NewRequestQueue[S any]() *RequestQueue[S] {
	return &RequestQueue[S]{}
}

// NewRequestQueueWithDelay returns a queue paced by delay. The timer starts
// armed and already elapsed, so the first request is released immediately.
// A rate policy gets a token bucket owned by this queue alone.
func NewRequestQueueWithDelay[S any](delay RequestDelay) *RequestQueue[S] {
	delay = delay.private()
	return &RequestQueue[S]{delay: &delay, armed: true}
}

// Push appends a request to the back of the queue.
func (q *RequestQueue[S]) Push(req QueuedRequest[S]) {
	q.items = append(q.items, req)
}

// Len returns the number of queued requests.
func (q *RequestQueue[S]) Len() int {
	return len(q.items) - q.head
}

// IsEmpty reports whether no request is queued.
func (q *RequestQueue[S]) IsEmpty() bool {
	return q.Len() == 0
}

// Delay returns the active pacing policy.
func (q *RequestQueue[S]) Delay() (RequestDelay, bool) {
	if q.delay == nil {
		return RequestDelay{}, false
	}
	return *q.delay, true
}

// SetDelay installs a pacing policy and returns the previous one.
// Queued items and the remaining wait of an armed timer are left alone.
func (q *RequestQueue[S]) SetDelay(delay RequestDelay) (RequestDelay, bool) {
	prev, had := q.Delay()
	delay = delay.private()
	q.delay = &delay
	return prev, had
}

// RemoveDelay clears the pacing policy and returns it. A timer that is
// already armed still gates the next release.
func (q *RequestQueue[S]) RemoveDelay() (RequestDelay, bool) {
	prev, had := q.Delay()
	q.delay = nil
	return prev, had
}

// PollNext releases the front request if the pacing timer allows it.
//
// It returns ok=false when nothing can be released. In that case wait is
// the time left on the armed timer, or zero when the queue is empty. An
// empty poll never consumes the timer; a successful release re-arms it for
// the policy's next interval.
func (q *RequestQueue[S]) PollNext(now time.Time) (req QueuedRequest[S], wait time.Duration, ok bool) {
	if q.IsEmpty() {
		return req, 0, false
	}
	if q.armed && now.Before(q.readyAt) {
		return req, q.readyAt.Sub(now), false
	}

	req = q.pop()
	if q.delay != nil {
		q.armed = true
		q.readyAt = now.Add(q.delay.NextDelay())
	} else {
		q.armed = false
	}
	return req, 0, true
}

// ReadyAt returns the instant the next release becomes possible and whether
// a timer is armed at all.
func (q *RequestQueue[S]) ReadyAt() (time.Time, bool) {
	return q.readyAt, q.armed
}

// takeTimer copies the pacing timer of from, so a replacement queue keeps
// the remaining wait of the queue it replaces.
func (q *RequestQueue[S]) takeTimer(from *RequestQueue[S]) {
	q.armed = from.armed
	q.readyAt = from.readyAt
}

// Drain removes and returns every queued request in FIFO order.
func (q *RequestQueue[S]) Drain() []QueuedRequest[S] {
	out := make([]QueuedRequest[S], q.Len())
	copy(out, q.items[q.head:])
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
	return out
}

func (q *RequestQueue[S]) pop() QueuedRequest[S] {
	req := q.items[q.head]
	var zero QueuedRequest[S]
	q.items[q.head] = zero
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head > 32 && q.head*2 > len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return req
}
