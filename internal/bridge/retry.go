package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrNoResponse is returned when the prompt bounds run out without an answer.
var ErrNoResponse = errors.New("no response from user")

// errEmpty marks a falsy attempt for the retry loop.
var errEmpty = errors.New("empty response")

// RetryPolicy bounds AskUntil. Zero values leave that bound off.
type RetryPolicy struct {
	MaxAttempts uint
	MaxWait     time.Duration
	// Interval is the pause between attempts.
	Interval time.Duration
}

// AskUntil calls ask until it reports a truthy result and returns that
// result. Errors from ask end the loop immediately.
func AskUntil[T any](ctx context.Context, policy RetryPolicy, ask func(context.Context) (T, bool, error)) (T, error) {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if policy.Interval > 0 {
		b = backoff.NewConstantBackOff(policy.Interval)
	}
	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(policy.MaxWait),
	}
	if policy.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(policy.MaxAttempts))
	}

	result, err := backoff.Retry(ctx, func() (T, error) {
		v, ok, err := ask(ctx)
		if err != nil {
			return v, backoff.Permanent(err)
		}
		if !ok {
			return v, errEmpty
		}
		return v, nil
	}, opts...)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	if errors.Is(err, errEmpty) {
		var zero T
		return zero, ErrNoResponse
	}
	return result, err
}
