package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the state of the circuit breaker.
type State int

const (
	// Closed lets every call through and counts consecutive failures.
	Closed State = iota
	// Open rejects every call until OpenTimeout has elapsed.
	Open
	// HalfOpen lets one trial call through at a time.
	HalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "Half-Open"
	default:
		return "Unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected without being attempted.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Settings configures a Breaker.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that trips the circuit.
	FailureThreshold uint32
	// SuccessThreshold is the number of consecutive half-open successes that closes it again.
	SuccessThreshold uint32
	// OpenTimeout is how long the circuit stays open before a trial call is allowed.
	OpenTimeout time.Duration
	// OnStateChange, if set, is called after every transition. It must not call back into the Breaker.
	OnStateChange func(from, to State)
}

// Breaker guards calls to an unreliable dependency such as the upstream trend page.
type Breaker struct {
	settings Settings
	now      func() time.Time

	mu        sync.Mutex
	state     State
	failures  uint32
	successes uint32
	openedAt  time.Time
	probing   bool
}

// New creates a closed Breaker. Zero thresholds are treated as 1.
func New(s Settings) *Breaker {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 1
	}
	if s.SuccessThreshold == 0 {
		s.SuccessThreshold = 1
	}
	return &Breaker{settings: s, now: time.Now, state: Closed}
}

// State returns the current state, moving Open to HalfOpen if the timeout has passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	return b.state
}

// Execute runs fn unless the circuit is open. A non-nil error from fn counts as a failure.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err == nil)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeHalfOpen()
	switch b.state {
	case Open:
		return ErrCircuitOpen
	case HalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) after(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.probing = false
		if !ok {
			b.transition(Open)
			return
		}
		b.successes++
		if b.successes >= b.settings.SuccessThreshold {
			b.transition(Closed)
		}
	case Closed:
		if ok {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			b.transition(Open)
		}
	}
}

func (b *Breaker) maybeHalfOpen() {
	if b.state == Open && b.now().Sub(b.openedAt) >= b.settings.OpenTimeout {
		b.transition(HalfOpen)
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	b.probing = false
	if to == Open {
		b.openedAt = b.now()
	}
	if b.settings.OnStateChange != nil && from != to {
		b.settings.OnStateChange(from, to)
	}
}
