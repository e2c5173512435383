package ges

import "context"

// Decider is the public façade of §4.5: a Category resolved to one stream.
type Decider[S, E any] struct {
	category *Category[S, E]
	streamID string
}

// Resolve binds this category to a concrete stream id.
func (c *Category[S, E]) Resolve(streamID string) *Decider[S, E] {
	return &Decider[S, E]{category: c, streamID: streamID}
}

// Transact runs the decide loop to completion, discarding the final state.
// decide receives the current state and returns the events to append (or
// none, for a no-op decision).
func (d *Decider[S, E]) Transact(ctx context.Context, opt LoadOption, md Metadata, decide func(S) ([]E, error)) error {
	_, _, err := d.category.runDecide(ctx, d.streamID, opt, decide, md)
	return err
}

// Query loads current state and projects it, without ever writing.
// It is a package-level function (not a method) because Go methods cannot
// introduce a type parameter beyond their receiver's.
func Query[S, E, R any](ctx context.Context, d *Decider[S, E], opt LoadOption, project func(S) R) (R, error) {
	var zero R
	_, state, err := d.category.Load(ctx, d.streamID, opt)
	if err != nil {
		return zero, err
	}
	return project(state), nil
}

// TransactResult runs the decide loop, threading a result value out of the
// (possibly several times retried) decide call alongside the events to append.
func TransactResult[S, E, R any](ctx context.Context, d *Decider[S, E], opt LoadOption, md Metadata, decide func(S) (R, []E, error)) (R, error) {
	var zero R
	var result R
	_, _, err := d.category.runDecide(ctx, d.streamID, opt, func(s S) ([]E, error) {
		r, events, err := decide(s)
		result = r
		return events, err
	}, md)
	if err != nil {
		return zero, err
	}
	return result, nil
}
