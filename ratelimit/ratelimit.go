// Package ratelimit admits or rejects a request per source IP using a
// sliding window stored in the ratelimit table (spec.md §4.4), grounded on
// original_source/db_utils.py's ratelimit table (ip, relative_timestamp).
package ratelimit

import (
	"context"
	"time"

	"ledger-exchange/apperr"
	"ledger-exchange/store"
)

// Limiter admits at most Burst requests from a given ip per Window,
// sliding continuously rather than resetting on fixed boundaries.
type Limiter struct {
	store  store.Store
	burst  int
	window time.Duration
	since  func() time.Time
}

// New builds a Limiter with the given burst (N) and window (W).
func New(st store.Store, burst int, window time.Duration) *Limiter {
	return &Limiter{store: st, burst: burst, window: window, since: time.Now}
}

// Admit records one request from ip and reports whether it is within the
// sliding window's admission limit. Every call both counts and prunes
// inside the same write transaction so the ratelimit table never grows
// past one window's worth of rows per active ip.
func (l *Limiter) Admit(ctx context.Context, ip string) error {
	now := float64(l.since().UnixNano()) / float64(time.Second)
	windowStart := now - l.window.Seconds()

	return l.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.PruneRateLimitEvents(ctx, ip, windowStart); err != nil {
			return err
		}
		count, err := tx.CountSince(ctx, ip, windowStart)
		if err != nil {
			return err
		}
		if count >= l.burst {
			return apperr.New(apperr.RateLimited, "rate limit exceeded")
		}
		return tx.InsertRateLimitEvent(ctx, ip, now)
	})
}
