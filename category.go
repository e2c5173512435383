package ges

import (
	"context"
	"errors"
	"time"
)

// LoadOption selects how a Load call treats a cached entry. The zero value
// is DefaultLoad: a cache hit, however old, is returned unconditionally.
type LoadOption struct {
	requireLeader bool
	allowStale    bool
	maxAge        time.Duration
}

// DefaultLoad trusts a cache hit of any age and never forces a store read.
func DefaultLoad() LoadOption { return LoadOption{} }

// RequireLeader bypasses the cache entirely and reads from the store with
// requireLeader=true, for callers that need read-your-writes across processes.
func RequireLeader() LoadOption { return LoadOption{requireLeader: true} }

// AllowStale accepts a cached entry only if it was inserted within maxAge;
// otherwise it is incrementally refreshed from the store before being used.
func AllowStale(maxAge time.Duration) LoadOption {
	return LoadOption{allowStale: true, maxAge: maxAge}
}

// CategoryOption configures a Category at construction.
type CategoryOption[S, E any] func(*Category[S, E])

// WithCache attaches a shared Cache to the category.
func WithCache[S, E any](cache *Cache) CategoryOption[S, E] {
	return func(c *Category[S, E]) { c.cache = cache }
}

// WithObserver overrides the default no-op Observer.
func WithObserver[S, E any](o Observer) CategoryOption[S, E] {
	return func(c *Category[S, E]) { c.observer = o }
}

// WithMaxAttempts overrides the default conflict-retry budget (3).
func WithMaxAttempts[S, E any](n int) CategoryOption[S, E] {
	return func(c *Category[S, E]) { c.maxAttempts = n }
}

// WithBatchSize overrides the default read/compaction batch size (500),
// used for the RollingSnapshots capacity arithmetic.
func WithBatchSize[S, E any](n int) CategoryOption[S, E] {
	return func(c *Category[S, E]) { c.batchSize = n }
}

// Category is the engine of §4.3: given a stream's fold/initial/codec and an
// access strategy, it turns StoreAdapter primitives into Load and TrySync.
type Category[S, E any] struct {
	name        string
	fold        func(S, []E) S
	initial     S
	codec       Codec[E]
	store       StoreAdapter
	strategy    AccessStrategy[S, E]
	cache       *Cache
	observer    Observer
	maxAttempts int
	batchSize   int
}

// NewCategory validates and builds a Category. Construction fails fast
// (§4.4, §7 Misconfiguration) rather than at first use.
func NewCategory[S, E any](
	name string,
	fold func(S, []E) S,
	initial S,
	codec Codec[E],
	store StoreAdapter,
	strategy AccessStrategy[S, E],
	opts ...CategoryOption[S, E],
) (*Category[S, E], error) {
	if name == "" {
		return nil, &ConfigError{Category: name, Reason: "empty category name"}
	}
	if fold == nil {
		return nil, &ConfigError{Category: name, Reason: "nil fold function"}
	}
	if codec == nil {
		return nil, &ConfigError{Category: name, Reason: "nil codec"}
	}
	if store == nil {
		return nil, &ConfigError{Category: name, Reason: "nil store adapter"}
	}

	c := &Category[S, E]{
		name:        name,
		fold:        fold,
		initial:     initial,
		codec:       codec,
		store:       store,
		strategy:    strategy,
		observer:    NoopObserver{},
		maxAttempts: 3,
		batchSize:   500,
	}
	for _, opt := range opts {
		opt(c)
	}

	if strategy.kind == kindLatestKnownEvent && c.cache != nil {
		return nil, &ConfigError{Category: name, Reason: "LatestKnownEvent must not be combined with a cache"}
	}
	if c.batchSize <= 0 {
		return nil, &ConfigError{Category: name, Reason: "batchSize must be positive"}
	}
	return c, nil
}

func (c *Category[S, E]) streamName(streamID string) (StreamName, error) {
	return NewStreamName(c.name, streamID)
}

func (c *Category[S, E]) stalenessPredicate() StalenessPredicate {
	if so, ok := c.store.(StalenessOverrider); ok {
		if p := so.StalenessPredicate(); p != nil {
			return p
		}
	}
	return IsStale
}

// Load returns the current (Token, state) for streamID, honoring opt and
// this category's cache policy.
func (c *Category[S, E]) Load(ctx context.Context, streamID string, opt LoadOption) (Token, S, error) {
	stream, err := c.streamName(streamID)
	if err != nil {
		var zero S
		return Token{}, zero, err
	}

	if c.cache != nil && !opt.requireLeader {
		key := stream.String()
		if entry, found := c.cache.lookup(key); found {
			entry.mu.Lock()
			fresh := !opt.allowStale || time.Since(entry.insertedAt) <= opt.maxAge
			token, state := entry.token, entry.state
			entry.mu.Unlock()
			if fresh {
				c.observer.Loaded(stream, true, 0, token.Version())
				return token, state.(S), nil
			}
			newToken, newState, err := c.incrementalRefresh(ctx, stream, token, state.(S), false)
			if err != nil {
				return token, state.(S), err
			}
			c.cache.publish(key, newToken, newState, c.stalenessPredicate())
			c.observer.Loaded(stream, true, int(newToken.Position.StreamVersion-token.Position.StreamVersion), newToken.Version())
			return newToken, newState, nil
		}

		token, state, err := c.cache.singleFlightLoad(key, func() (Token, any, error) {
			t, s, err := c.loadFromStore(ctx, stream, opt.requireLeader)
			return t, s, err
		})
		if err != nil {
			var zero S
			return Token{}, zero, err
		}
		c.cache.publish(key, token, state, c.stalenessPredicate())
		c.observer.Loaded(stream, false, int(token.Position.StreamVersion+1), token.Version())
		return token, state.(S), nil
	}

	token, state, err := c.loadFromStore(ctx, stream, opt.requireLeader)
	if err != nil {
		var zero S
		return Token{}, zero, err
	}
	c.observer.Loaded(stream, false, int(token.Position.StreamVersion+1), token.Version())
	return token, state, nil
}

// loadFromStore executes the strategy's full load algorithm against the
// store, decoding and folding from this category's initial state.
func (c *Category[S, E]) loadFromStore(ctx context.Context, stream StreamName, requireLeader bool) (Token, S, error) {
	switch c.strategy.kind {
	case kindUnoptimized:
		events, version, err := c.store.LoadForward(ctx, stream, 0, requireLeader)
		if err != nil {
			var zero S
			return Token{}, zero, err
		}
		state := c.fold(c.initial, c.decode(stream, events))
		token := NewToken(stream, Position{StreamVersion: version - 1}, streamBytes(events))
		return token, state, nil

	default:
		isOrigin := c.isOriginPredicate()
		events, version, matched, err := c.store.LoadBackwardUntil(ctx, stream, requireLeader, isOrigin)
		if err != nil {
			var zero S
			return Token{}, zero, err
		}
		state := c.fold(c.initial, c.decode(stream, events))
		pos := Position{StreamVersion: version - 1}
		if c.strategy.tracksCompaction() && matched && len(events) > 0 {
			idx := events[0].Index
			pos.CompactionEventIndex = &idx
		}
		if c.strategy.tracksCompaction() {
			limit := batchCapacityLimit(c.batchSize, 0, pos)
			pos.BatchCapacityLimit = &limit
		}
		token := NewToken(stream, pos, streamBytes(events))
		return token, state, nil
	}
}

// isOriginPredicate builds the raw-event predicate passed to
// LoadBackwardUntil, decoding once per candidate event and delegating to the
// strategy's typed isOrigin. LatestKnownEvent and RollingState both want
// "stop at the very first event scanned", expressed here as "any decodable
// event" and "always true" respectively.
func (c *Category[S, E]) isOriginPredicate() func(TimelineEvent) bool {
	switch c.strategy.kind {
	case kindLatestKnownEvent:
		return func(te TimelineEvent) bool {
			_, ok := c.codec.TryDecode(te)
			return ok
		}
	case kindRollingState:
		return func(TimelineEvent) bool { return true }
	default:
		isOrigin := c.strategy.isOrigin
		return func(te TimelineEvent) bool {
			ev, ok := c.codec.TryDecode(te)
			return ok && isOrigin(ev)
		}
	}
}

// decode turns a batch of timeline events into domain events, skipping (and
// reporting) anything the codec does not recognize.
func (c *Category[S, E]) decode(stream StreamName, events []TimelineEvent) []E {
	out := make([]E, 0, len(events))
	for _, te := range events {
		ev, ok := c.codec.TryDecode(te)
		if !ok {
			c.observer.DecodeSkipped(stream, te.Type, te.Index)
			continue
		}
		out = append(out, ev)
	}
	return out
}

func streamBytes(events []TimelineEvent) int64 {
	var n int64
	for _, e := range events {
		n += int64(e.Size)
	}
	return n
}

// incrementalRefresh performs a forward read from token.Position.StreamVersion+1
// and folds any new events onto state, without re-running the strategy's
// full load algorithm. Used both for AllowStale revalidation and for the
// post-conflict reload of §4.3 step 5.
func (c *Category[S, E]) incrementalRefresh(ctx context.Context, stream StreamName, token Token, state S, requireLeader bool) (Token, S, error) {
	events, version, err := c.store.LoadForward(ctx, stream, token.Position.StreamVersion+1, requireLeader)
	if err != nil {
		return token, state, err
	}
	if len(events) == 0 {
		return token, state, nil
	}
	newState := c.fold(state, c.decode(stream, events))
	pos := token.Position
	pos.StreamVersion = version - 1
	newToken := NewToken(stream, pos, token.Bytes()+streamBytes(events))
	return newToken, newState, nil
}

// trySync is §4.3 TrySync: encode newEvents, possibly append a compaction
// event per the access strategy, attempt the conditional append, and derive
// the resulting token and state. A version conflict is returned as
// *VersionConflictError (errors.Is(err, ErrVersionConflict) holds); the
// caller (runDecide) is responsible for the reload-and-retry.
func (c *Category[S, E]) trySync(ctx context.Context, stream StreamName, token Token, state S, newEvents []E, md Metadata) (Token, S, error) {
	encoded := make([]EventData, 0, len(newEvents)+1)
	for _, e := range newEvents {
		ed, err := c.codec.Encode(ctx, md, e)
		if err != nil {
			return token, state, err
		}
		encoded = append(encoded, ed)
	}

	finalState := c.fold(state, newEvents)
	emittedSnapshot := false

	switch c.strategy.kind {
	case kindRollingState:
		ed, err := c.codec.Encode(ctx, md, c.strategy.toSnapshot(finalState))
		if err != nil {
			return token, state, err
		}
		encoded = []EventData{ed}
		emittedSnapshot = true

	case kindSnapshot:
		ed, err := c.codec.Encode(ctx, md, c.strategy.toSnapshot(finalState))
		if err != nil {
			return token, state, err
		}
		encoded = append(encoded, ed)
		emittedSnapshot = true

	case kindRollingSnapshots:
		limit := int32(0)
		if token.Position.BatchCapacityLimit != nil {
			limit = *token.Position.BatchCapacityLimit
		}
		if int32(len(newEvents)) > limit {
			ed, err := c.codec.Encode(ctx, md, c.strategy.toSnapshot(finalState))
			if err != nil {
				return token, state, err
			}
			encoded = append(encoded, ed)
			emittedSnapshot = true
		}
	}

	newVersion, err := c.store.Append(ctx, stream, token.Position.StreamVersion+1, encoded)
	if err != nil {
		return token, state, err
	}

	pos := Position{StreamVersion: newVersion - 1}
	if emittedSnapshot {
		idx := newVersion - 1
		pos.CompactionEventIndex = &idx
	} else {
		pos.CompactionEventIndex = token.Position.CompactionEventIndex
	}
	if c.strategy.tracksCompaction() {
		limit := batchCapacityLimit(c.batchSize, 0, pos)
		pos.BatchCapacityLimit = &limit
	}

	newToken := NewToken(stream, pos, token.Bytes()+streamBytes(toTimelineSized(encoded)))
	c.observer.Synced(stream, len(encoded), newVersion)
	return newToken, finalState, nil
}

// toTimelineSized is a tiny adapter so trySync can reuse streamBytes'
// Size-summing logic on freshly encoded (not-yet-stored) events.
func toTimelineSized(encoded []EventData) []TimelineEvent {
	out := make([]TimelineEvent, len(encoded))
	for i, ed := range encoded {
		out[i] = TimelineEvent{Size: len(ed.Data) + len(ed.Meta)}
	}
	return out
}

// runDecide is the decide loop of §4.3: Load, call decide, TrySync, and on
// conflict reload-and-retry, making at most maxAttempts attempts in all.
func (c *Category[S, E]) runDecide(ctx context.Context, streamID string, opt LoadOption, decide func(S) ([]E, error), md Metadata) (Token, S, error) {
	token, state, err := c.Load(ctx, streamID, opt)
	if err != nil {
		var zero S
		return Token{}, zero, err
	}
	stream, err := c.streamName(streamID)
	if err != nil {
		return token, state, err
	}

	for attempt := 1; ; attempt++ {
		newEvents, err := decide(state)
		if err != nil {
			return token, state, err
		}
		if len(newEvents) == 0 {
			return token, state, nil
		}

		newToken, newState, err := c.trySync(ctx, stream, token, state, newEvents, md)
		if err == nil {
			if c.cache != nil {
				c.cache.publish(stream.String(), newToken, newState, c.stalenessPredicate())
			}
			return newToken, newState, nil
		}

		var conflict *VersionConflictError
		if !errors.As(err, &conflict) {
			return token, state, err
		}
		c.observer.Conflict(stream, attempt)
		if attempt >= c.maxAttempts {
			return token, state, &MaxResyncsExhaustedError{Stream: stream, Attempts: c.maxAttempts}
		}

		token, state, err = c.incrementalRefresh(ctx, stream, token, state, true)
		if err != nil {
			return token, state, err
		}
	}
}
