package translator

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
)

// ErrThrottleDeadline is returned when waiting for a rate token would
// outlast the context deadline. It also matches context.DeadlineExceeded.
var ErrThrottleDeadline = errors.New("throttle wait would exceed context deadline")

// Throttle bounds outbound provider calls shared by all pages of a run:
// at most maxInFlight calls at once, started no faster than the rate limit.
// A nil *Throttle does not limit anything.
type Throttle struct {
	slots   chan struct{}
	limiter *rate.Limiter
}

// NewThrottle creates a Throttle. maxInFlight <= 0 means no concurrency
// bound and requestsPerSecond <= 0 means no rate limit.
func NewThrottle(maxInFlight int, requestsPerSecond float64) *Throttle {
	t := &Throttle{}
	if maxInFlight > 0 {
		t.slots = make(chan struct{}, maxInFlight)
	}
	if requestsPerSecond > 0 {
		burst := maxInFlight
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return t
}

// Do waits for a slot and a rate token, then runs fn. Waiting is abandoned
// when ctx is done, in which case fn is not called.
func (t *Throttle) Do(ctx context.Context, fn func() error) error {
	if t == nil {
		return fn()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.slots != nil {
		select {
		case t.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		defer func() { <-t.slots }()
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: %w", ErrThrottleDeadline, context.DeadlineExceeded)
		}
	}
	return fn()
}
