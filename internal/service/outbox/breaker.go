package outbox

import (
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrCircuitOpen возвращается, пока брокер считается недоступным.
var ErrCircuitOpen = errors.New("publisher circuit breaker is open")

// CircuitState — состояние circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker размыкается после maxFailures подряд неудачных публикаций и через
// resetTimeout пропускает пробный вызов. Nil-получатель пропускает все вызовы.
type CircuitBreaker struct {
	mu           sync.Mutex
	maxFailures  int
	resetTimeout time.Duration
	failures     int
	openedAt     time.Time
	state        CircuitState
	logger       *log.Entry
	now          func() time.Time
}

// NewCircuitBreaker создаёт circuit breaker для publisher.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if logger == nil {
		logger = log.WithField("component", "outbox-circuit-breaker")
	}
	return &CircuitBreaker{
		maxFailures:  max(maxFailures, 1),
		resetTimeout: resetTimeout,
		state:        CircuitClosed,
		logger:       logger,
		now:          time.Now,
	}
}

// Allow сообщает, можно ли сейчас публиковать. Открытый breaker по истечении
// resetTimeout переходит в half-open.
func (cb *CircuitBreaker) Allow() bool {
	if cb == nil {
		return true
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.allowLocked()
}

func (cb *CircuitBreaker) allowLocked() bool {
	if cb.state != CircuitOpen {
		return true
	}
	if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
		return false
	}
	cb.state = CircuitHalfOpen
	cb.logger.Info("publisher circuit breaker half-open")
	return true
}

// Execute выполняет fn, если breaker замкнут, и учитывает результат.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if cb == nil {
		return fn()
	}

	cb.mu.Lock()
	allowed := cb.allowLocked()
	cb.mu.Unlock()
	if !allowed {
		return ErrCircuitOpen
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
			if cb.state != CircuitOpen {
				cb.logger.WithError(err).WithField("failures", cb.failures).Warn("publisher circuit breaker opened")
			}
			cb.state = CircuitOpen
			cb.openedAt = cb.now()
		}
		return err
	}

	if cb.state == CircuitHalfOpen {
		cb.logger.Info("publisher circuit breaker closed")
	}
	cb.state = CircuitClosed
	cb.failures = 0
	return nil
}

// State возвращает текущее состояние.
func (cb *CircuitBreaker) State() CircuitState {
	if cb == nil {
		return CircuitClosed
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
