package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	// Closed accepts all requests and tracks failures.
	Closed State = iota
	// Open rejects requests until the cool-off period expires.
	Open
	// HalfOpen allows a probe to determine recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker implements a simple failure-ratio circuit breaker. The booking
// service uses it to stop hammering the mail relay while it is down.
type Breaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	successes    int
	minRequests  int
	failureRatio float64
	openedAt     time.Time
	openFor      time.Duration
	logger       *zerolog.Logger
}

// NewBreaker constructs a breaker that opens when the rolling failure ratio
// exceeds the threshold once the minimum number of requests is observed.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	if minRequests <= 0 {
		minRequests = 1
	}
	if failureRatio <= 0 || failureRatio > 1 {
		failureRatio = 0.5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		state:        Closed,
		minRequests:  minRequests,
		failureRatio: failureRatio,
		openFor:      openFor,
	}
}

// WithLogger configures the logger used for transition events.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = &logger
	return b
}

// Allow reports whether a request is permitted in the current state. When the
// breaker is open it only permits a request after the cool-off period and
// moves into half-open to sample the dependency.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open {
		if time.Since(b.openedAt) >= b.openFor {
			b.transitionLocked(HalfOpen)
			return true
		}
		return false
	}
	return true
}

// Report records the outcome of a request and transitions the state machine
// when the thresholds are exceeded.
func (b *Breaker) Report(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		if success {
			b.transitionLocked(Closed)
		} else {
			b.transitionLocked(Open)
		}
		return
	}

	if success {
		b.successes++
	} else {
		b.failures++
	}
	total := b.failures + b.successes
	if total < b.minRequests {
		return
	}
	if float64(b.failures)/float64(total) >= b.failureRatio {
		b.transitionLocked(Open)
	} else if total > b.minRequests*2 {
		// keep the window rolling
		b.successes /= 2
		b.failures /= 2
	}
}

func (b *Breaker) transitionLocked(next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	if next == Open {
		b.openedAt = time.Now()
	}
	b.failures = 0
	b.successes = 0
	if b.logger != nil {
		b.logger.Info().
			Str("from_state", prev.String()).
			Str("to_state", next.String()).
			Msg("breaker_transition")
	}
}
