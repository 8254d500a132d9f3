// Package breaker implements a per-host circuit breaker, grounded in
// the Python prototype's error_handling.py CircuitBreaker: closed,
// open, and half-open states gating calls to a flaky upstream.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// State is one of the three breaker states.
type State int

const (
	Closed State = iota
	Open
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

// ErrOpen is returned by Allow when the breaker is open and the
// recovery timeout has not yet elapsed.
var ErrOpen = errors.New("breaker: circuit open")

// defaults match spec.md §4.B / the Python prototype's CircuitBreaker.
const (
	defaultFailureThreshold = 5
	defaultRecoveryTimeout  = 60 * time.Second
)

// breaker tracks one upstream host's failure history.
type breaker struct {
	mu               sync.Mutex
	state            State
	failureThreshold int
	recoveryTimeout  time.Duration
	failures         int
	openedAt         time.Time
	probeInFlight    bool
}

func newBreaker(failureThreshold int, recoveryTimeout time.Duration) *breaker {
	return &breaker{
		state:            Closed,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
	}
}

// allow reports whether a call may proceed, transitioning Open to
// HalfOpen once the recovery timeout has elapsed. Only the first
// caller to observe that transition is let through as the probe;
// every other caller sees ErrOpen until that probe resolves via
// recordSuccess or recordFailure.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed:
		return nil
	case HalfOpen:
		return ErrOpen
	case Open:
		if time.Since(b.openedAt) >= b.recoveryTimeout {
			b.state = HalfOpen
			b.probeInFlight = true
			return nil
		}
		return ErrOpen
	default:
		return nil
	}
}

// recordSuccess closes the breaker and resets its failure count. A
// success while half-open fully recovers the circuit.
func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = Closed
	b.probeInFlight = false
}

// recordFailure increments the failure count, tripping the breaker
// open once the threshold is reached. A failure while half-open
// immediately reopens it.
func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == HalfOpen {
		b.state = Open
		b.openedAt = time.Now()
		b.probeInFlight = false
		return
	}
	b.failures++
	if b.failures >= b.failureThreshold {
		b.state = Open
		b.openedAt = time.Now()
	}
}

func (b *breaker) currentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Registry holds one breaker per upstream host, created lazily.
type Registry struct {
	mu               sync.Mutex
	breakers         map[string]*breaker
	failureThreshold int
	recoveryTimeout  time.Duration
}

// NewRegistry builds a Registry using spec.md §4.B's defaults
// (failure_threshold=5, recovery_timeout=60s) for every host.
func NewRegistry() *Registry {
	return NewRegistryWithDefaults(defaultFailureThreshold, defaultRecoveryTimeout)
}

// NewRegistryWithDefaults builds a Registry whose per-host breakers use
// failureThreshold/recoveryTimeout, overriding spec.md §4.B's defaults
// per the FAILURE_THRESHOLD/RECOVERY_TIMEOUT environment variables.
// Non-positive values fall back to the spec.md default.
func NewRegistryWithDefaults(failureThreshold int, recoveryTimeout time.Duration) *Registry {
	if failureThreshold <= 0 {
		failureThreshold = defaultFailureThreshold
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = defaultRecoveryTimeout
	}
	return &Registry{
		breakers:         make(map[string]*breaker),
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
	}
}

func (r *Registry) breakerFor(host string) *breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[host]
	if !ok {
		b = newBreaker(r.failureThreshold, r.recoveryTimeout)
		r.breakers[host] = b
	}
	return b
}

// Allow reports whether a call to host may proceed. Returns ErrOpen
// if the circuit is open and hasn't reached its recovery timeout.
func (r *Registry) Allow(host string) error {
	return r.breakerFor(host).allow()
}

// RecordSuccess closes host's breaker.
func (r *Registry) RecordSuccess(host string) {
	r.breakerFor(host).recordSuccess()
}

// RecordFailure counts a failure against host's breaker, tripping it
// open once the threshold is reached.
func (r *Registry) RecordFailure(host string) {
	r.breakerFor(host).recordFailure()
}

// State reports host's current breaker state, for the status tool.
func (r *Registry) State(host string) State {
	return r.breakerFor(host).currentState()
}
