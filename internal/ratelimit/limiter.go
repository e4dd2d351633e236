// Package ratelimit implements the sliding-window limiter protecting the
// upstream provider, and the per-client-IP variant used by the middleware.
package ratelimit

import (
	"errors"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/epeers/vnmarket/internal/provider"
)

// Config bounds the call rate. Zero values disable the corresponding check.
type Config struct {
	MaxPerMinute int
	MaxPerHour   int
	MinInterval  time.Duration
	MaxQueue     int
	Enabled      bool
}

// DefaultConfig is the provider-protection profile.
func DefaultConfig() Config {
	return Config{
		MaxPerMinute: 30,
		MaxPerHour:   500,
		MinInterval:  500 * time.Millisecond,
		MaxQueue:     50,
		Enabled:      true,
	}
}

// Stats is a snapshot of limiter state.
type Stats struct {
	CallsLastMinute int   `json:"calls_last_minute"`
	CallsLastHour   int   `json:"calls_last_hour"`
	TotalCalls      int64 `json:"total_calls"`
	TotalThrottled  int64 `json:"total_throttled"`
}

// Limiter tracks calls in two sliding FIFO windows (one minute, one hour)
// plus a minimum spacing between consecutive calls. All waiting happens
// outside the lock.
type Limiter struct {
	mu     sync.Mutex
	cfg    Config
	minute []time.Time
	hour   []time.Time

	lastCall  time.Time
	total     int64
	throttled int64

	now   func() time.Time
	sleep func(time.Duration)
}

// NewLimiter creates a limiter with the given config.
func NewLimiter(cfg Config) *Limiter {
	return &Limiter{
		cfg:   cfg,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// pruneLocked drops window entries older than their horizon.
func (l *Limiter) pruneLocked(now time.Time) {
	cutMinute := now.Add(-time.Minute)
	for len(l.minute) > 0 && l.minute[0].Before(cutMinute) {
		l.minute = l.minute[1:]
	}
	cutHour := now.Add(-time.Hour)
	for len(l.hour) > 0 && l.hour[0].Before(cutHour) {
		l.hour = l.hour[1:]
	}
}

// waitNeededLocked computes how long the caller must wait before a slot opens,
// zero when a call is admissible now.
func (l *Limiter) waitNeededLocked(now time.Time) time.Duration {
	var wait time.Duration

	if l.cfg.MinInterval > 0 && !l.lastCall.IsZero() {
		if since := now.Sub(l.lastCall); since < l.cfg.MinInterval {
			wait = l.cfg.MinInterval - since
		}
	}
	if l.cfg.MaxPerMinute > 0 && len(l.minute) >= l.cfg.MaxPerMinute {
		w := l.minute[0].Add(time.Minute).Sub(now)
		if w > 5*time.Second {
			w = 5 * time.Second
		}
		if w > wait {
			wait = w
		}
	}
	if l.cfg.MaxPerHour > 0 && len(l.hour) >= l.cfg.MaxPerHour {
		w := l.hour[0].Add(time.Hour).Sub(now)
		if w > 60*time.Second {
			w = 60 * time.Second
		}
		if w > wait {
			wait = w
		}
	}
	return wait
}

// ShouldThrottle reports whether a call made right now would exceed a window.
func (l *Limiter) ShouldThrottle() bool {
	if !l.cfg.Enabled {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.pruneLocked(now)
	return l.waitNeededLocked(now) > 0
}

// WaitForSlot blocks until a slot is available or the timeout elapses.
// Returns false on timeout; the caller should surface a 503.
func (l *Limiter) WaitForSlot(timeout time.Duration) bool {
	if !l.cfg.Enabled {
		return true
	}
	deadline := l.now().Add(timeout)
	for {
		l.mu.Lock()
		now := l.now()
		l.pruneLocked(now)
		wait := l.waitNeededLocked(now)
		if wait == 0 {
			l.mu.Unlock()
			return true
		}
		l.throttled++
		l.mu.Unlock()

		if now.Add(wait).After(deadline) {
			return false
		}
		l.sleep(wait)
	}
}

// RecordCall registers a call in both windows.
func (l *Limiter) RecordCall() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.pruneLocked(now)
	l.minute = append(l.minute, now)
	l.hour = append(l.hour, now)
	l.lastCall = now
	l.total++
}

// ErrSlotTimeout is returned when no rate slot opened within the allowed wait.
var ErrSlotTimeout = errors.New("rate limiter: timed out waiting for slot")

// ExecuteWithRetry runs fn under the limiter, retrying on transient and
// rate-limited failures. Rate-limited errors sleep the provider's advised wait
// plus a small margin; transient errors back off exponentially, capped at 10s.
// Permanent errors return immediately.
func (l *Limiter) ExecuteWithRetry(fn func() error, maxRetries int) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if !l.WaitForSlot(90 * time.Second) {
			return ErrSlotTimeout
		}
		l.RecordCall()

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		switch provider.Classify(err) {
		case provider.KindPermanent:
			return err
		case provider.KindRateLimited:
			var rl *provider.RateLimitError
			errors.As(err, &rl)
			wait := rl.RetryAfter + time.Second
			log.Warnf("provider rate limited, sleeping %s (attempt %d/%d)", wait, attempt+1, maxRetries)
			l.sleep(wait)
		default:
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
			l.sleep(backoff)
		}
	}
	return lastErr
}

// Stats returns a snapshot of the window counters.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(l.now())
	return Stats{
		CallsLastMinute: len(l.minute),
		CallsLastHour:   len(l.hour),
		TotalCalls:      l.total,
		TotalThrottled:  l.throttled,
	}
}
