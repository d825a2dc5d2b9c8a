package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/arklim/user-directory/internal/core/port"
)

// SlidingLogStore keeps an ordered request log per client. A single mutex guards
// the whole map; nothing blocking runs while it is held.
//
// Each call trims the caller's own log from the front. Other clients are purged
// by a full sweep that runs on the request path at most once per sweep
// interval, and by StartJanitor when it is running.
type SlidingLogStore struct {
	mu         sync.Mutex
	logs       map[string][]time.Time
	retention  time.Duration
	sweepEvery time.Duration
	lastSweep  time.Time
	now        func() time.Time
	onSweep    func(tracked int)
}

var _ port.RateLimitStore = (*SlidingLogStore)(nil)

type SlidingLogOption func(*SlidingLogStore)

// WithSweepInterval bounds how often RecordAndCount scans all clients. Zero
// sweeps on every call.
func WithSweepInterval(d time.Duration) SlidingLogOption {
	return func(s *SlidingLogStore) {
		if d >= 0 {
			s.sweepEvery = d
		}
	}
}

// WithStoreClock overrides the clock used by the janitor.
func WithStoreClock(now func() time.Time) SlidingLogOption {
	return func(s *SlidingLogStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweepObserver is told how many clients remain after every sweep. It runs
// under the store lock and must not block.
func WithSweepObserver(fn func(tracked int)) SlidingLogOption {
	return func(s *SlidingLogStore) {
		s.onSweep = fn
	}
}

// NewSlidingLogStore drops timestamps older than retention. Retention must be
// at least the longest window callers count over.
func NewSlidingLogStore(retention time.Duration, opts ...SlidingLogOption) *SlidingLogStore {
	s := &SlidingLogStore{
		logs:       make(map[string][]time.Time),
		retention:  retention,
		sweepEvery: 30 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordAndCount appends at to the identifier's log and returns how many entries
// are strictly newer than at-window, the new one included.
func (s *SlidingLogStore) RecordAndCount(_ context.Context, identifier string, at time.Time, window time.Duration) (port.RateWindow, error) {
	if window <= 0 {
		return port.RateWindow{}, errors.New("sliding log: window must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastSweep.IsZero() || at.Sub(s.lastSweep) >= s.sweepEvery {
		s.sweepLocked(at)
		s.lastSweep = at
	}

	log := trimFront(s.logs[identifier], at.Add(-s.retention))

	// Injected clocks may step backwards; keep the log sorted regardless.
	if n := len(log); n == 0 || !at.Before(log[n-1]) {
		log = append(log, at)
	} else {
		idx := sort.Search(n, func(i int) bool { return log[i].After(at) })
		log = slices.Insert(log, idx, at)
	}
	s.logs[identifier] = log

	windowStart := at.Add(-window)
	first := sort.Search(len(log), func(i int) bool { return log[i].After(windowStart) })

	return port.RateWindow{Count: len(log) - first, Oldest: log[first]}, nil
}

// Sweep purges expired timestamps for every client and drops clients left empty.
// It returns the number of clients removed.
func (s *SlidingLogStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sweepLocked(now)
}

// Len reports how many clients are tracked.
func (s *SlidingLogStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.logs)
}

// StartJanitor sweeps every interval until ctx is cancelled.
func (s *SlidingLogStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(s.now())
			}
		}
	}()
}

func (s *SlidingLogStore) sweepLocked(now time.Time) int {
	horizon := now.Add(-s.retention)
	removed := 0
	for id, log := range s.logs {
		log = trimFront(log, horizon)
		if len(log) == 0 {
			delete(s.logs, id)
			removed++
			continue
		}
		s.logs[id] = log
	}
	if s.onSweep != nil {
		s.onSweep(len(s.logs))
	}
	return removed
}

// trimFront drops entries at or before horizon in place.
func trimFront(log []time.Time, horizon time.Time) []time.Time {
	cut := sort.Search(len(log), func(i int) bool { return log[i].After(horizon) })
	if cut == 0 {
		return log
	}
	return slices.Delete(log, 0, cut)
}
