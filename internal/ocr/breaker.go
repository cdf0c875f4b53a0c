package ocr

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"
)

// BreakerState is the state of a circuit breaker.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Breaker stops calling a failing service for a cooldown period after
// threshold consecutive failures. After the cooldown a single trial call is
// let through; its outcome closes or re-opens the circuit.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	state     BreakerState
	openedAt  time.Time
	trial     bool
	now       func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// State returns the current state, moving open to half-open once the
// cooldown has elapsed.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	switch b.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.trial {
			return ErrCircuitOpen
		}
		b.trial = true
	}
	return nil
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateClosed {
		slog.Info("OCR circuit closed")
	}
	b.failures = 0
	b.trial = false
	b.setState(StateClosed)
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		if b.state != StateOpen {
			slog.Warn("OCR circuit opened", "consecutive_failures", b.failures, "cooldown", b.cooldown)
		}
		b.openedAt = b.now()
		b.trial = false
		b.setState(StateOpen)
	}
}

// release gives back a half-open trial slot without judging the service.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false
}

func (b *Breaker) advance() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		b.setState(StateHalfOpen)
	}
}

func (b *Breaker) setState(s BreakerState) {
	b.state = s
	breakerState.Set(float64(s))
}

// Wrap guards next with the breaker.
func (b *Breaker) Wrap(next Extractor) Extractor {
	return ExtractorFunc(func(ctx context.Context, img image.Image) (Text, error) {
		if err := b.Allow(); err != nil {
			ocrCallsTotal.WithLabelValues("breaker", "rejected").Inc()
			return Text{}, err
		}
		txt, err := next.Extract(ctx, img)
		if err != nil {
			if ctx.Err() != nil {
				b.release()
			} else {
				b.Failure()
			}
			return Text{}, err
		}
		b.Success()
		return txt, nil
	})
}
