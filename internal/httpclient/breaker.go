package httpclient

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrCircuitOpen is returned for calls attempted while a host's circuit is
// open and its cool-down has not yet elapsed. No network resources are used.
var ErrCircuitOpen = errors.New("circuit breaker open")

type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
	stateHalfOpen
)

func (s circuitState) String() string {
	switch s {
	case stateOpen:
		return "OPEN"
	case stateHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// hostCircuit carries the breaker state of one destination host. Each host
// has its own mutex so calls to independent hosts never contend.
type hostCircuit struct {
	mu          sync.Mutex
	state       circuitState
	failures    int
	nextAttempt time.Time
}

// Breaker tracks one circuit per destination host. The registry lock is held
// only long enough to find or create an entry; state transitions happen under
// the per-host lock.
type Breaker struct {
	mu          sync.Mutex
	hosts       map[string]*hostCircuit
	maxFailures int
	resetAfter  time.Duration
}

func NewBreaker(maxFailures int, resetAfter time.Duration) *Breaker {
	return &Breaker{
		hosts:       make(map[string]*hostCircuit),
		maxFailures: maxFailures,
		resetAfter:  resetAfter,
	}
}

func (b *Breaker) host(host string) *hostCircuit {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.hosts[host]
	if !ok {
		c = &hostCircuit{}
		b.hosts[host] = c
	}
	return c
}

// Allow reports whether a call to host may proceed. An open circuit whose
// cool-down has elapsed moves to HALF_OPEN and the call is let through as the
// single trial; there is no background timer.
func (b *Breaker) Allow(host string) error {
	c := b.host(host)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateOpen {
		if time.Now().Before(c.nextAttempt) {
			return ErrCircuitOpen
		}
		c.state = stateHalfOpen
		log.Debug().Str("host", host).Msg("circuit half-open, allowing trial call")
	}

	return nil
}

// RecordSuccess resets the host's circuit to CLOSED from any state.
func (b *Breaker) RecordSuccess(host string) {
	c := b.host(host)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures = 0
	c.state = stateClosed
}

// RecordFailure counts one failed logical call against the host. Reaching the
// failure threshold trips the circuit OPEN until resetAfter has elapsed. The
// count is not reset on the OPEN transition, so a failed HALF_OPEN trial
// re-opens immediately.
func (b *Breaker) RecordFailure(host string) {
	c := b.host(host)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures++
	if c.failures >= b.maxFailures {
		c.state = stateOpen
		c.nextAttempt = time.Now().Add(b.resetAfter)
		log.Warn().Str("host", host).Int("failures", c.failures).Msg("circuit open")
	}
}

// State returns the current state name for a host, mainly for logging.
func (b *Breaker) State(host string) string {
	c := b.host(host)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.String()
}
