package http

import "testing"

func TestRateLimiterBurst(t *testing.T) {
	rl := newRateLimiter(1, 3)
	for i := 0; i < 3; i++ {
		if !rl.allow() {
			t.Fatalf("event %d rejected within burst", i)
		}
	}
	if rl.allow() {
		t.Fatal("expected event past burst to be rejected")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	var nilLimiter *rateLimiter
	for _, rl := range []*rateLimiter{newRateLimiter(0, 0), nilLimiter} {
		for i := 0; i < 100; i++ {
			if !rl.allow() {
				t.Fatal("disabled limiter rejected an event")
			}
		}
	}
}
