// Package resolveretry bounds how long content resolution keeps retrying while a
// fresh pin propagates.
package resolveretry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nftcate/internal/domain"

	"github.com/cenkalti/backoff/v5"
)

const defaultInitialDelay = 250 * time.Millisecond

// Policy retries not-found and transient failures with exponential backoff.
// A zero MaxTries means a single attempt; a zero MaxElapsed leaves only
// MaxTries and the caller's context as bounds.
type Policy struct {
	MaxTries     uint
	InitialDelay time.Duration
	MaxElapsed   time.Duration
}

// Resolve calls fetch until it succeeds, fails permanently or the budget runs out.
func (p Policy) Resolve(ctx context.Context, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	tries := p.MaxTries
	if tries == 0 {
		tries = 1
	}
	delay := p.InitialDelay
	if delay <= 0 {
		delay = defaultInitialDelay
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = delay

	opts := []backoff.RetryOption{
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(tries),
	}
	if p.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(p.MaxElapsed))
	}
	data, err := backoff.Retry(ctx, func() ([]byte, error) {
		data, err := fetch(ctx)
		if err != nil && !domain.Retryable(err) && !errors.Is(err, domain.ErrContentNotFound) {
			return nil, backoff.Permanent(err)
		}
		return data, err
	}, opts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		return nil, err
	}
	return data, nil
}
