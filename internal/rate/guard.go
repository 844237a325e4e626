// Package rate serializes requests to devices whose embedded web servers
// cannot absorb bursts. Unlike a budget limiter it never rejects: callers
// block until the minimum inter-request interval has elapsed.
package rate

import (
	"context"
	"sync"
	"time"
)

// Guard enforces a minimum interval between consecutive requests to one
// device. The clock and sleep functions are injectable so tests run
// without wall-clock waits.
type Guard struct {
	device   string
	interval time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	last time.Time
}

// NewGuard creates a guard keyed by device for metrics reporting.
func NewGuard(device string, interval time.Duration) *Guard {
	return NewGuardWithClock(device, interval, time.Now, sleepContext)
}

// NewGuardWithClock injects the clock and sleep functions. Intended for
// tests.
func NewGuardWithClock(device string, interval time.Duration, now func() time.Time, sleep func(context.Context, time.Duration) error) *Guard {
	return &Guard{
		device:   device,
		interval: interval,
		now:      now,
		sleep:    sleep,
	}
}

// Wait blocks until the interval since the last recorded request has
// elapsed, or the context is cancelled.
func (g *Guard) Wait(ctx context.Context) error {
	g.mu.Lock()
	var delay time.Duration
	if !g.last.IsZero() {
		if elapsed := g.now().Sub(g.last); elapsed < g.interval {
			delay = g.interval - elapsed
		}
	}
	g.mu.Unlock()

	if delay <= 0 {
		return nil
	}

	waitsTotal.WithLabelValues(g.device).Inc()
	waitSeconds.WithLabelValues(g.device).Add(delay.Seconds())
	return g.sleep(ctx, delay)
}

// Record marks a request attempt as completed. Called after every attempt,
// successful or not.
func (g *Guard) Record() {
	g.mu.Lock()
	g.last = g.now()
	lastRequestGauge.WithLabelValues(g.device).Set(float64(g.last.Unix()))
	g.mu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
