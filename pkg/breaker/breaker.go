package breaker

import (
	"sync"
	"time"

	errs "tagscraper/pkg/errors"
	"tagscraper/pkg/logger"
)

// State is the circuit breaker state
type State int

const (
	// StateClosed is normal operation, calls pass through
	StateClosed State = iota
	// StateOpen means too many failures, calls fail immediately
	StateOpen
	// StateHalfOpen allows one trial call to probe recovery
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of the breaker state
type Snapshot struct {
	State        State
	FailureCount int
	OpenedAt     time.Time
}

// Breaker is a circuit breaker around one external dependency
type Breaker struct {
	failureThreshold int
	recoveryTimeout  time.Duration
	logger           logger.Logger

	mu           sync.Mutex
	state        State
	failureCount int
	openedAt     time.Time
	probing      bool // a half-open trial call is in flight

	now func() time.Time // injectable for tests
}

// New creates a circuit breaker that opens after failureThreshold
// consecutive failures and probes recovery after recoveryTimeout.
func New(failureThreshold int, recoveryTimeout time.Duration, log logger.Logger) *Breaker {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		logger:           log,
		state:            StateClosed,
		now:              time.Now,
	}
}

// Call executes op under circuit breaker protection. In state open it
// returns a circuit_open error without invoking op.
func (b *Breaker) Call(op func() error) error {
	b.mu.Lock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.recoveryTimeout {
			b.state = StateHalfOpen
			b.probing = true
			b.logger.Info("circuit breaker half-open, probing recovery")
		} else {
			b.mu.Unlock()
			return errs.Newf(errs.ErrorTypeCircuitOpen,
				"circuit open, source considered unhealthy for another %s",
				b.recoveryTimeout-b.now().Sub(b.openedAt))
		}
	case StateHalfOpen:
		// Exactly one trial call is allowed through at a time
		if b.probing {
			b.mu.Unlock()
			return errs.New(errs.ErrorTypeCircuitOpen, "circuit half-open, trial call already in flight")
		}
		b.probing = true
	}
	b.mu.Unlock()

	// The call itself runs outside the lock; a slow fetch must not block
	// other sessions' state checks.
	err := op()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false

	if err == nil {
		// A success from a call admitted before the circuit opened is
		// stale evidence; only the half-open probe may close it.
		if b.state == StateOpen {
			return nil
		}
		if b.state == StateHalfOpen {
			b.logger.Info("circuit breaker closed, source recovered")
		}
		b.state = StateClosed
		b.failureCount = 0
		return nil
	}

	b.failureCount++
	if b.state == StateHalfOpen || b.failureCount >= b.failureThreshold {
		b.state = StateOpen
		b.openedAt = b.now()
		b.logger.WarnWithFields("circuit breaker open", map[string]interface{}{
			"failure_count":    b.failureCount,
			"recovery_timeout": b.recoveryTimeout,
		})
	}

	return err
}

// Reset manually closes the circuit
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failureCount = 0
	b.openedAt = time.Time{}
	b.probing = false
}

// Snapshot returns the current breaker state
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		State:        b.state,
		FailureCount: b.failureCount,
		OpenedAt:     b.openedAt,
	}
}
