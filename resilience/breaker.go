package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker short-circuits a call.
var ErrOpen = fmt.Errorf("circuit breaker is open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// BreakerConfig tunes a Breaker. Zero values fall back to the defaults.
type BreakerConfig struct {
	// ErrorThresholdPct opens the breaker once the rolling error percentage
	// exceeds it (default 50).
	ErrorThresholdPct float64
	// ResetTimeout is how long the breaker stays open before admitting a
	// trial call (default 30s).
	ResetTimeout time.Duration
	// VolumeThreshold is the minimum number of rolling calls before the
	// error percentage is considered (default 10).
	VolumeThreshold int
	// WindowSize bounds the rolling outcome window (default 100).
	WindowSize int
}

// Breaker guards repeated calls to a single flaky dependency. Each logical
// dependency owns its own instance; the rolling counters are never shared.
type Breaker struct {
	config BreakerConfig

	mu       sync.Mutex
	state    breakerState
	openedAt time.Time
	window   []bool // rolling outcomes, true == failure
	now      func() time.Time
}

// NewBreaker creates a closed Breaker with the given config.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.ErrorThresholdPct <= 0 {
		config.ErrorThresholdPct = 50
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.VolumeThreshold <= 0 {
		config.VolumeThreshold = 10
	}
	if config.WindowSize < config.VolumeThreshold {
		config.WindowSize = 100
	}
	return &Breaker{
		config: config,
		now:    time.Now,
	}
}

// Do invokes op unless the breaker is open. While open, calls fail fast with
// ErrOpen until ResetTimeout elapses; then a single trial call is admitted.
// A successful trial closes the breaker, a failed one reopens it.
func (b *Breaker) Do(ctx context.Context, op Operation) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := op(ctx)
	b.record(err != nil)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.config.ResetTimeout {
			return ErrOpen
		}
		b.state = stateHalfOpen
		return nil
	case stateHalfOpen:
		// A trial call is already in flight.
		return ErrOpen
	default:
		return nil
	}
}

func (b *Breaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// a call admitted while closed may finish after the breaker has opened;
	// its outcome must not touch the stale window or restart the open period
	if b.state == stateOpen {
		return
	}

	if b.state == stateHalfOpen {
		if failed {
			b.state = stateOpen
			b.openedAt = b.now()
		} else {
			b.state = stateClosed
			b.window = nil
		}
		return
	}

	b.window = append(b.window, failed)
	if len(b.window) > b.config.WindowSize {
		b.window = b.window[len(b.window)-b.config.WindowSize:]
	}

	if len(b.window) < b.config.VolumeThreshold {
		return
	}
	var failures int
	for _, f := range b.window {
		if f {
			failures++
		}
	}
	pct := float64(failures) / float64(len(b.window)) * 100
	if pct > b.config.ErrorThresholdPct {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}
