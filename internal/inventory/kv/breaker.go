package kv

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerSettings configures when the breaker trips and how long it stays open.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	ErrorRatePercent    int
	OpenTimeout         time.Duration
}

// Breaker wraps a Backend in a circuit breaker, so that an unreachable
// database fails fast instead of blocking every request until it times out.
type Breaker struct {
	next Backend
	cb   *gobreaker.CircuitBreaker[[]byte]
}

// NewBreaker creates a Breaker in front of next.
func NewBreaker(next Backend, name string, cfg BreakerSettings) *Breaker {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		// caller mistakes and cancellations say nothing about the health of the backend
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrInvalidKey) ||
				errors.Is(err, context.Canceled)
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[[]byte](st)}
}

// State reports the breaker state, e.g. "closed" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var found bool
	value, err := b.cb.Execute(func() ([]byte, error) {
		v, ok, err := b.next.Get(ctx, key)
		found = ok
		return v, err
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

func (b *Breaker) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.next.Set(ctx, key, value)
	})
	return err
}

func (b *Breaker) SetMany(ctx context.Context, entries map[string][]byte) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.next.SetMany(ctx, entries)
	})
	return err
}
