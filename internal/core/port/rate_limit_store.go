package port

import (
	"context"
	"time"
)

// RateWindow summarizes a client's request log inside the enforcement window.
type RateWindow struct {
	Count  int
	Oldest time.Time
}

// RateLimitStore records request timestamps per client and reports the trailing-window count.
// RecordAndCount must append and count atomically so concurrent requests from the same
// client observe each other.
type RateLimitStore interface {
	RecordAndCount(ctx context.Context, identifier string, at time.Time, window time.Duration) (RateWindow, error)
}
