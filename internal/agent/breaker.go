package agent

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

var errCircuitOpen = errors.New("model API circuit breaker is open")

// circuitBreaker wraps model-API calls, opening after consecutive
// failures to fail fast instead of exhausting the iteration budget
// against a downed backend.
type circuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	successThreshold int
	timeout          time.Duration

	state           breakerState
	failureCount    int
	successCount    int
	lastFailure     time.Time
	halfOpenInFlight bool
}

func newCircuitBreaker() *circuitBreaker {
	return &circuitBreaker{
		failureThreshold: 5,
		successThreshold: 2,
		timeout:          30 * time.Second,
		state:            stateClosed,
	}
}

func (cb *circuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		log.Warn().Msg("model API circuit breaker rejected request")
		return errCircuitOpen
	}

	err := fn()
	cb.recordResult(err)
	return err
}

func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateClosed:
		return true
	case stateOpen:
		if time.Since(cb.lastFailure) > cb.timeout {
			cb.state = stateHalfOpen
			cb.successCount = 0
			cb.halfOpenInFlight = true
			return true
		}
		return false
	case stateHalfOpen:
		if cb.halfOpenInFlight {
			return false
		}
		cb.halfOpenInFlight = true
		return true
	}
	return false
}

func (cb *circuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.halfOpenInFlight = false

	if err != nil {
		cb.failureCount++
		cb.successCount = 0
		cb.lastFailure = time.Now()
		if cb.state == stateHalfOpen || cb.failureCount >= cb.failureThreshold {
			cb.state = stateOpen
			log.Warn().Int("failures", cb.failureCount).Msg("model API circuit breaker opened")
		}
		return
	}

	if cb.state == stateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = stateClosed
			cb.failureCount = 0
		}
		return
	}
	cb.failureCount = 0
}
