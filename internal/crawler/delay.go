package crawler

import (
	"math/rand/v2"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// delayKind selects how a RequestDelay computes its next interval.
type delayKind int

const (
	delayFixed delayKind = iota
	delayRandom
	delayRate
)

// RequestDelay is the pacing policy of a domain queue.
// NextDelay returns the interval to wait before the queue may release
// its next request.
//
// Design decision: We use a small value type with constructors instead of
// an interface because:
//  1. The set of policies is closed and known up front
//  2. Copies are cheap and safe to share between domain configs
//  3. A zero RequestDelay is a valid "no wait" fixed policy
type RequestDelay struct {
	kind delayKind

	// fixed is the interval of a fixed policy.
	fixed time.Duration

	// min and max bound a random policy (inclusive).
	min time.Duration
	max time.Duration

	// limiter backs a rate policy. Copies share the bucket; a queue takes
	// its own through private, so domains never drain each other's tokens.
	limiter *rate.Limiter
}

// FixedDelay waits exactly d between releases.
func FixedDelay(d time.Duration) RequestDelay {
	if d < 0 {
		d = 0
	}
	return RequestDelay{kind: delayFixed, fixed: d}
}

// RandomDelay waits a uniformly random interval in [0, maxDelay].
func RandomDelay(maxDelay time.Duration) RequestDelay {
	return RandomDelayInRange(0, maxDelay)
}

// RandomDelayInRange waits a uniformly random interval in [minDelay, maxDelay].
// Swapped bounds are accepted; negative bounds are clamped to zero.
func RandomDelayInRange(minDelay, maxDelay time.Duration) RequestDelay {
	if minDelay < 0 {
		minDelay = 0
	}
	if maxDelay < 0 {
		maxDelay = 0
	}
	if minDelay > maxDelay {
		minDelay, maxDelay = maxDelay, minDelay
	}
	return RequestDelay{kind: delayRandom, min: minDelay, max: maxDelay}
}

// RateDelay allows at most requests releases per window, with bursts of up
// to requests. Non-positive arguments fall back to one request per second.
func RateDelay(requests int, window time.Duration) RequestDelay {
	if requests <= 0 || window <= 0 {
		requests, window = 1, time.Second
	}
	interval := window / time.Duration(requests)
	if interval <= 0 {
		interval = time.Millisecond
	}
	return RequestDelay{
		kind:    delayRate,
		limiter: rate.NewLimiter(rate.Every(interval), requests),
	}
}

// NextDelay returns the interval before the next release. The result is
// never negative. Random policies draw a fresh value on every call.
func (d RequestDelay) NextDelay() time.Duration {
	switch d.kind {
	case delayRandom:
		if d.max == d.min {
			return d.min
		}
		return d.min + rand.N(d.max-d.min+1) //nolint:gosec // pacing jitter, not security sensitive
	case delayRate:
		if d.limiter == nil {
			return 0
		}
		return max(d.limiter.Reserve().Delay(), 0)
	default:
		return d.fixed
	}
}

// private returns a copy with its own token bucket. Fixed and random
// policies are stateless and returned unchanged.
func (d RequestDelay) private() RequestDelay {
	if d.kind == delayRate && d.limiter != nil {
		d.limiter = rate.NewLimiter(d.limiter.Limit(), d.limiter.Burst())
	}
	return d
}

// String describes the policy for logs.
func (d RequestDelay) String() string {
	switch d.kind {
	case delayRandom:
		return "random(" + d.min.String() + ".." + d.max.String() + ")"
	case delayRate:
		if d.limiter == nil {
			return "rate(unset)"
		}
		return "rate(burst " + strconv.Itoa(d.limiter.Burst()) + ")"
	default:
		return "fixed(" + d.fixed.String() + ")"
	}
}
