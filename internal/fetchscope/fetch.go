package fetchscope

import (
	"context"
)

// RequestFunc performs one asynchronous request. It receives the caller's
// context unchanged; deadlines are the caller's responsibility.
type RequestFunc[V any] func(ctx context.Context) (V, error)

// Result is the outcome of a selection-scoped fetch.
//
// Exactly one of these holds:
//   - Superseded: the selection moved on; Value and Err must be ignored.
//   - Err != nil: the request failed while its token was still current.
//   - otherwise Value is fresh and may be applied.
type Result[K comparable, V any] struct {
	Ticket     Ticket[K]
	Value      V
	Err        error
	Superseded bool
}

// Fresh reports whether the result carries a value that may be applied.
func (r Result[K, V]) Fresh() bool {
	return !r.Superseded && r.Err == nil
}

// Fetch runs fn for token and filters its outcome through c.
//
// It fails fast with ErrNoSelection if nothing is selected. If token is not the
// current selection at dispatch, fn is not invoked and the result is superseded.
// Otherwise fn runs to completion and its value or error is returned only if
// token is still current (same selection generation) when fn returns.
//
// Fetch blocks; callers wanting asynchrony run it in a goroutine. Because the
// check happens when Fetch returns, a Select that lands between Fetch returning
// and the caller applying the value is not observed. Use FetchAndApply when the
// apply step runs on a different goroutine from Select.
func Fetch[K comparable, V any](ctx context.Context, c *Coordinator[K], token K, fn RequestFunc[V]) (Result[K, V], error) {
	t, err := c.Issue(token)
	if err != nil {
		return Result[K, V]{}, err
	}
	if !c.Valid(t) {
		c.record(t, false, nil)
		return Result[K, V]{Ticket: t, Superseded: true}, nil
	}

	value, reqErr := fn(ctx)
	if !c.Resolve(t, reqErr) {
		return Result[K, V]{Ticket: t, Superseded: true}, nil
	}
	return Result[K, V]{Ticket: t, Value: value, Err: reqErr}, nil
}

// FetchAndApply is Fetch with the apply step folded in: sink runs under the
// coordinator lock only if token is still current, receiving the value or the
// request error. sink must not call Select or any other coordinator method.
func FetchAndApply[K comparable, V any](ctx context.Context, c *Coordinator[K], token K, fn RequestFunc[V], sink func(V, error)) (Result[K, V], error) {
	t, err := c.Issue(token)
	if err != nil {
		return Result[K, V]{}, err
	}
	if !c.Valid(t) {
		c.record(t, false, nil)
		return Result[K, V]{Ticket: t, Superseded: true}, nil
	}

	value, reqErr := fn(ctx)
	applied := c.Do(t, reqErr, func() {
		if sink != nil {
			sink(value, reqErr)
		}
	})
	if !applied {
		return Result[K, V]{Ticket: t, Superseded: true}, nil
	}
	return Result[K, V]{Ticket: t, Value: value, Err: reqErr}, nil
}

// Go runs FetchAndApply on a new goroutine and delivers the result on the
// returned channel, which receives exactly one value and is then closed.
// Misuse errors (ErrNoSelection) are reported through Result.Err.
func Go[K comparable, V any](ctx context.Context, c *Coordinator[K], token K, fn RequestFunc[V], sink func(V, error)) <-chan Result[K, V] {
	out := make(chan Result[K, V], 1)
	go func() {
		defer close(out)
		res, err := FetchAndApply(ctx, c, token, fn, sink)
		if err != nil {
			res.Err = err
		}
		out <- res
	}()
	return out
}
