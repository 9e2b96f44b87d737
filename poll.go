package firefoxdp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/firefoxdp/firefoxdp/bidi"
)

// readyStateJS reports the loading state of the tab's document.
const readyStateJS = `document.readyState`

// waitReady holds the settings of a WaitReady action.
type waitReady struct {
	timeout         time.Duration
	initialInterval time.Duration
	maxInterval     time.Duration
}

// WaitReadyOption is a WaitReady option.
type WaitReadyOption = func(*waitReady)

// WithReadyTimeout sets the longest time WaitReady waits for the page. The
// default is 30 seconds.
func WithReadyTimeout(d time.Duration) WaitReadyOption {
	return func(w *waitReady) { w.timeout = d }
}

// WithReadyInterval sets the first and the longest pause between two polls.
// The defaults are 50ms and 1s.
func WithReadyInterval(initial, max time.Duration) WaitReadyOption {
	return func(w *waitReady) {
		w.initialInterval, w.maxInterval = initial, max
	}
}

// WaitReady is an action that waits until the document of the tab reaches
// the "complete" ready state, polling with exponential backoff. It fails
// with ErrPageNotReady once the timeout is reached.
//
// Errors evaluating the state, such as the context being replaced while the
// page navigates, are retried until the timeout.
func WaitReady(opts ...WaitReadyOption) Action {
	w := &waitReady{
		timeout:         30 * time.Second,
		initialInterval: 50 * time.Millisecond,
		maxInterval:     time.Second,
	}
	for _, o := range opts {
		o(w)
	}
	return ActionFunc(func(ctx context.Context) error {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = w.initialInterval
		b.MaxInterval = w.maxInterval

		var state string
		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			if err := Evaluate(readyStateJS, &state).Do(ctx); err != nil {
				var berr *bidi.Error
				var exp *bidi.ExceptionDetails
				if !errors.As(err, &berr) && !errors.As(err, &exp) {
					return struct{}{}, backoff.Permanent(err)
				}
				return struct{}{}, err
			}
			if state != "complete" {
				return struct{}{}, ErrPageNotReady
			}
			return struct{}{}, nil
		}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(w.timeout))
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrPageNotReady):
			return fmt.Errorf("%w (readyState %q after %v)", ErrPageNotReady, state, w.timeout)
		case ctx.Err() != nil:
			return ctx.Err()
		}
		var berr *bidi.Error
		var exp *bidi.ExceptionDetails
		if errors.As(err, &berr) || errors.As(err, &exp) {
			return fmt.Errorf("%w: %v", ErrPageNotReady, err)
		}
		return err
	})
}
