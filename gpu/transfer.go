package gpu

import (
	"context"
	"fmt"
	"time"

	"fluidsim/core"
)

// TransferPolicy bounds every host<->device copy
type TransferPolicy struct {
	Timeout time.Duration // per attempt, zero means no deadline
	Retries int           // extra attempts after the first failure
	Backoff time.Duration // wait before each retry, doubled every time
}

// DefaultTransferPolicy is used when none is configured
var DefaultTransferPolicy = TransferPolicy{
	Timeout: 2 * time.Second,
	Retries: 2,
	Backoff: 5 * time.Millisecond,
}

// Do runs op until it succeeds, the retries are used up or ctx is done.
// The returned error is the last attempt's error.
func (p TransferPolicy) Do(ctx context.Context, what string, op func(ctx context.Context) error) error {
	backoff := p.Backoff
	var err error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 {
			core.Logger().Warn("retrying transfer", "op", what, "attempt", attempt, "err", err)
			if backoff > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
			}
		}

		err = p.attempt(ctx, op)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (p TransferPolicy) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return op(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return op(actx)
}
