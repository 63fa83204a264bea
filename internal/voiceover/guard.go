// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package voiceover

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/mediamix/internal/resilience"
)

// Guarded fails fast while the wrapped service is down. Unknown voices and
// cancelled calls do not count as service failures.
type Guarded struct {
	next    Synthesizer
	breaker *resilience.CircuitBreaker
}

// NewBreaker returns a breaker classified for synthesis errors.
func NewBreaker(name string, threshold int, resetTimeout time.Duration) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(name, threshold, resetTimeout,
		resilience.WithFailureClassifier(func(err error) bool {
			return !errors.Is(err, ErrVoiceNotFound) && !errors.Is(err, context.Canceled)
		}))
}

// WithBreaker wraps next with breaker.
func WithBreaker(next Synthesizer, breaker *resilience.CircuitBreaker) *Guarded {
	return &Guarded{next: next, breaker: breaker}
}

// Synthesize implements Synthesizer.
func (g *Guarded) Synthesize(ctx context.Context, text, voice, dir string) (string, error) {
	var path string
	err := g.breaker.Execute(func() error {
		var err error
		path, err = g.next.Synthesize(ctx, text, voice, dir)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", fmt.Errorf("text-to-speech unavailable: %w", err)
	}
	return path, err
}
