package crawler

import (
	"testing"
	"time"
)

func TestRequestDelay(t *testing.T) {
	t.Parallel()

	t.Run("fixed delay returns the same interval", func(t *testing.T) {
		t.Parallel()

		d := FixedDelay(250 * time.Millisecond)
		for range 5 {
			if got := d.NextDelay(); got != 250*time.Millisecond {
				t.Errorf("expected 250ms, got %v", got)
			}
		}
	})

	t.Run("negative fixed delay is clamped to zero", func(t *testing.T) {
		t.Parallel()

		if got := FixedDelay(-time.Second).NextDelay(); got != 0 {
			t.Errorf("expected 0, got %v", got)
		}
	})

	t.Run("zero value is a zero fixed delay", func(t *testing.T) {
		t.Parallel()

		var d RequestDelay
		if got := d.NextDelay(); got != 0 {
			t.Errorf("expected 0, got %v", got)
		}
	})

	t.Run("random delay stays within range", func(t *testing.T) {
		t.Parallel()

		d := RandomDelayInRange(10*time.Millisecond, 20*time.Millisecond)
		for range 200 {
			got := d.NextDelay()
			if got < 10*time.Millisecond || got > 20*time.Millisecond {
				t.Fatalf("delay %v outside [10ms, 20ms]", got)
			}
		}
	})

	t.Run("random delay swaps inverted bounds", func(t *testing.T) {
		t.Parallel()

		d := RandomDelayInRange(20*time.Millisecond, 10*time.Millisecond)
		for range 50 {
			got := d.NextDelay()
			if got < 10*time.Millisecond || got > 20*time.Millisecond {
				t.Fatalf("delay %v outside [10ms, 20ms]", got)
			}
		}
	})

	t.Run("random delay with equal bounds is constant", func(t *testing.T) {
		t.Parallel()

		d := RandomDelayInRange(time.Second, time.Second)
		if got := d.NextDelay(); got != time.Second {
			t.Errorf("expected 1s, got %v", got)
		}
	})

	t.Run("random delay without minimum is never negative", func(t *testing.T) {
		t.Parallel()

		d := RandomDelay(time.Millisecond)
		for range 50 {
			if got := d.NextDelay(); got < 0 || got > time.Millisecond {
				t.Fatalf("delay %v outside [0, 1ms]", got)
			}
		}
	})

	t.Run("rate delay allows the burst then waits", func(t *testing.T) {
		t.Parallel()

		d := RateDelay(2, time.Second)
		if got := d.NextDelay(); got != 0 {
			t.Errorf("first release: expected 0, got %v", got)
		}
		if got := d.NextDelay(); got != 0 {
			t.Errorf("second release: expected 0, got %v", got)
		}
		if got := d.NextDelay(); got <= 0 {
			t.Errorf("third release: expected a positive wait, got %v", got)
		}
	})

	t.Run("rate delay falls back on invalid arguments", func(t *testing.T) {
		t.Parallel()

		d := RateDelay(0, 0)
		if got := d.String(); got != "rate(burst 1)" {
			t.Errorf("unexpected description %q", got)
		}
	})
}

func TestRequestDelayString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		delay RequestDelay
		want  string
	}{
		{name: "fixed", delay: FixedDelay(time.Second), want: "fixed(1s)"},
		{name: "random", delay: RandomDelayInRange(time.Second, 2*time.Second), want: "random(1s..2s)"},
		{name: "rate", delay: RateDelay(5, time.Second), want: "rate(burst 5)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.delay.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
