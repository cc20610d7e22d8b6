package ratelimit

import (
	"context"
	"testing"
	"time"

	"ledger-exchange/apperr"
	"ledger-exchange/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap store: %v", err)
	}
	return st
}

func TestAdmit_AllowsUpToBurst(t *testing.T) {
	st := newTestStore(t)
	limiter := New(st, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.Admit(ctx, "1.2.3.4"); err != nil {
			t.Fatalf("request %d should be admitted, got %v", i, err)
		}
	}

	err := limiter.Admit(ctx, "1.2.3.4")
	if apperr.KindOf(err) != apperr.RateLimited {
		t.Fatalf("4th request = %v, want apperr.RateLimited", err)
	}
}

func TestAdmit_TracksEachIPSeparately(t *testing.T) {
	st := newTestStore(t)
	limiter := New(st, 1, time.Minute)
	ctx := context.Background()

	if err := limiter.Admit(ctx, "1.1.1.1"); err != nil {
		t.Fatalf("first ip first request: %v", err)
	}
	if err := limiter.Admit(ctx, "2.2.2.2"); err != nil {
		t.Fatalf("second ip first request should be unaffected by the first: %v", err)
	}
	if apperr.KindOf(limiter.Admit(ctx, "1.1.1.1")) != apperr.RateLimited {
		t.Errorf("first ip second request should be rate limited")
	}
}

func TestAdmit_WindowSlidesOpen(t *testing.T) {
	st := newTestStore(t)
	limiter := New(st, 1, time.Minute)
	limiter.since = func() time.Time { return time.Unix(0, 0) }
	ctx := context.Background()

	if err := limiter.Admit(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if apperr.KindOf(limiter.Admit(ctx, "1.2.3.4")) != apperr.RateLimited {
		t.Fatalf("second request within window should be rate limited")
	}

	limiter.since = func() time.Time { return time.Unix(0, 0).Add(2 * time.Minute) }
	if err := limiter.Admit(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("request after window elapsed should be admitted, got %v", err)
	}
}
