// Package resilience guards the remote model behind a circuit breaker.
//
// A [Breaker] counts consecutive failures of calls it runs. After
// MaxFailures it opens and rejects calls with [ErrOpen] until Cooldown has
// passed; then it lets Trials calls through and closes again once all
// of them succeed. Any trial failure re-opens it.
//
// [LLM] and [Live] wrap providers so every generation request and every live
// dial goes through a breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned, wrapped, for calls rejected by an open breaker.
var ErrOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// Closed forwards every call.
	Closed State = iota

	// Open rejects calls until the cooldown has passed.
	Open

	// HalfOpen lets a limited number of trial calls through.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes a [Breaker]. Zero fields take the defaults noted.
type Config struct {
	// Name labels log lines and errors.
	Name string

	// MaxFailures is the consecutive failure count that opens the breaker.
	// Default: 5.
	MaxFailures int

	// Cooldown is how long the breaker stays open. Default: 30s.
	Cooldown time.Duration

	// Trials is the number of successful trial calls needed to close again.
	// Default: 1.
	Trials int

	// Counts reports whether err is a failure of the remote side. Default:
	// every error except context cancellation.
	Counts func(err error) bool

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

// Breaker is a three-state circuit breaker. It is safe for concurrent use.
type Breaker struct {
	cfg Config

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trials   int // trial calls admitted since entering half-open
	passed   int // of which succeeded
}

// New creates a [Breaker].
func New(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Trials <= 0 {
		cfg.Trials = 1
	}
	if cfg.Counts == nil {
		cfg.Counts = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg}
}

// Do runs fn unless the breaker is open.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	trial, err := b.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.record(trial, err)
	return err
}

func (b *Breaker) admit() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open {
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.Cooldown {
			return false, fmt.Errorf("%w: %s", ErrOpen, b.cfg.Name)
		}
		b.state, b.trials, b.passed = HalfOpen, 0, 0
		slog.Info("circuit breaker half-open", "name", b.cfg.Name)
	}
	if b.state == HalfOpen {
		if b.trials >= b.cfg.Trials {
			return false, fmt.Errorf("%w: %s (probing)", ErrOpen, b.cfg.Name)
		}
		b.trials++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) record(trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := err != nil && b.cfg.Counts(err)
	switch {
	case failed && trial:
		b.trip("trial call failed")
	case failed:
		b.failures++
		if b.state == Closed && b.failures >= b.cfg.MaxFailures {
			b.trip("too many consecutive failures")
		}
	case err != nil:
		// Not the remote's fault; a trial slot is handed back.
		if trial {
			b.trials--
		}
	case trial:
		b.passed++
		if b.passed >= b.cfg.Trials {
			b.state, b.failures = Closed, 0
			slog.Info("circuit breaker closed", "name", b.cfg.Name)
		}
	default:
		b.failures = 0
	}
}

// trip opens the breaker. b.mu must be held.
func (b *Breaker) trip(reason string) {
	b.state = Open
	b.openedAt = b.cfg.Now()
	slog.Warn("circuit breaker opened", "name", b.cfg.Name, "reason", reason, "cooldown", b.cfg.Cooldown)
}

// State returns the current state. An open breaker whose cooldown has
// passed reports [HalfOpen].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.cfg.Now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return HalfOpen
	}
	return b.state
}

// Check returns an error while the breaker is open. It fits a readiness
// checker.
func (b *Breaker) Check(context.Context) error {
	if b.State() == Open {
		return fmt.Errorf("%w: %s", ErrOpen, b.cfg.Name)
	}
	return nil
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state, b.failures, b.trials, b.passed = Closed, 0, 0, 0
}
