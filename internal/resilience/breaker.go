// Package resilience provides a circuit breaker for outbound calls to the
// answer provider.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// State is the breaker's current mode.
type State int32

const (
	// StateClosed lets requests through and counts failures.
	StateClosed State = iota
	// StateOpen rejects requests until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets a limited number of probe requests through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Do while the breaker is rejecting requests.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds breaker tuning.
type Config struct {
	// Name identifies the breaker in state-change callbacks.
	Name string
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker open.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
	// HalfOpenMax is the number of concurrent probes allowed half-open.
	HalfOpenMax int
	// OnStateChange, if set, is called outside the lock on transitions.
	OnStateChange func(name string, from, to State)
}

// Breaker is a consecutive-failure circuit breaker. The zero value is not
// usable; construct with New.
type Breaker struct {
	cfg Config

	mu       sync.Mutex
	state    State
	failures int
	probes   int
	openedAt time.Time

	now func() time.Time
}

// New creates a breaker. Zero config fields get conservative defaults.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 1
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// State reports the current state, accounting for cooldown expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// Do runs fn if the breaker allows it and records the outcome. A rejected
// call returns ErrOpen without running fn.
func (b *Breaker) Do(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.record(err == nil)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	state := b.currentState()
	switch state {
	case StateOpen:
		b.mu.Unlock()
		return ErrOpen
	case StateHalfOpen:
		if b.probes >= b.cfg.HalfOpenMax {
			b.mu.Unlock()
			return ErrOpen
		}
		b.probes++
	}
	b.mu.Unlock()
	return nil
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	state := b.currentState()

	var transition func()
	switch {
	case success && state == StateHalfOpen:
		transition = b.setState(StateClosed)
	case success:
		b.failures = 0
	case state == StateHalfOpen:
		transition = b.setState(StateOpen)
	default:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			transition = b.setState(StateOpen)
		}
	}
	b.mu.Unlock()

	if transition != nil {
		transition()
	}
}

// currentState moves open to half-open once the cooldown has elapsed.
// Callers hold b.mu.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.state = StateHalfOpen
		b.probes = 0
	}
	return b.state
}

// setState transitions and returns the deferred callback, so OnStateChange
// runs without the lock held. Callers hold b.mu.
func (b *Breaker) setState(next State) func() {
	prev := b.state
	if prev == next {
		return nil
	}
	b.state = next
	b.failures = 0
	b.probes = 0
	if next == StateOpen {
		b.openedAt = b.now()
	}
	if b.cfg.OnStateChange == nil {
		return nil
	}
	name := b.cfg.Name
	cb := b.cfg.OnStateChange
	return func() { cb(name, prev, next) }
}
