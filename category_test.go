package ges_test

import (
	"context"
	"errors"
	"testing"

	"github.com/arclane/ges"
)

type addedEvent struct{ N int }

func (addedEvent) EventType() string { return "Added" }

type snapshotEvent struct{ Total int }

func (snapshotEvent) EventType() string { return "Snapshot" }

type sumCodec struct{}

func (sumCodec) Encode(_ context.Context, md ges.Metadata, e any) (ges.EventData, error) {
	switch ev := e.(type) {
	case addedEvent:
		return ges.EventData{Type: "Added", Data: []byte{byte(ev.N)}}, nil
	case snapshotEvent:
		return ges.EventData{Type: "Snapshot", Data: []byte{byte(ev.Total)}}, nil
	}
	return ges.EventData{}, nil
}

func (sumCodec) TryDecode(te ges.TimelineEvent) (any, bool) {
	switch te.Type {
	case "Added":
		return addedEvent{N: int(te.Data[0])}, true
	case "Snapshot":
		return snapshotEvent{Total: int(te.Data[0])}, true
	default:
		return nil, false
	}
}

func sumFold(total int, events []any) int {
	for _, e := range events {
		switch ev := e.(type) {
		case addedEvent:
			total += ev.N
		case snapshotEvent:
			total = ev.Total
		}
	}
	return total
}

func newSumCategory(t *testing.T, store ges.StoreAdapter, strategy ges.AccessStrategy[int, any], opts ...ges.CategoryOption[int, any]) *ges.Category[int, any] {
	t.Helper()
	cat, err := ges.NewCategory[int, any]("Sum", sumFold, 0, sumCodec{}, store, strategy, opts...)
	if err != nil {
		t.Fatalf("NewCategory failed: %v", err)
	}
	return cat
}

func TestCategory_UnoptimizedLoadAndTransact(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cat := newSumCategory(t, store, ges.Unoptimized[int, any]())

	decide := func(n int) func(int) ([]any, error) {
		return func(int) ([]any, error) { return []any{addedEvent{N: n}}, nil }
	}

	if err := cat.Resolve("s1").Transact(t.Context(), ges.DefaultLoad(), nil, decide(3)); err != nil {
		t.Fatalf("transact failed: %v", err)
	}
	if err := cat.Resolve("s1").Transact(t.Context(), ges.DefaultLoad(), nil, decide(4)); err != nil {
		t.Fatalf("transact failed: %v", err)
	}

	total, err := ges.Query(t.Context(), cat.Resolve("s1"), ges.DefaultLoad(), func(n int) int { return n })
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if total != 7 {
		t.Fatalf("expected total 7, got %d", total)
	}
}

func TestCategory_DecideReturningNoEventsIsANoop(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cat := newSumCategory(t, store, ges.Unoptimized[int, any]())

	noop := func(int) ([]any, error) { return nil, nil }
	if err := cat.Resolve("s1").Transact(t.Context(), ges.DefaultLoad(), nil, noop); err != nil {
		t.Fatalf("transact failed: %v", err)
	}

	stream, _ := ges.NewStreamName("Sum", "s1")
	events, version, err := store.LoadForward(t.Context(), stream, 0, false)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(events) != 0 || version != 0 {
		t.Fatalf("expected no events to have been appended, got %d events version %d", len(events), version)
	}
}

func TestCategory_ConflictIsRetriedTransparently(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cat := newSumCategory(t, store, ges.Unoptimized[int, any]())

	stream, _ := ges.NewStreamName("Sum", "s1")
	if _, err := store.Append(t.Context(), stream, 0, []ges.EventData{{Type: "Added", Data: []byte{1}}}); err != nil {
		t.Fatalf("seed append failed: %v", err)
	}

	attempts := 0
	decide := func(int) ([]any, error) {
		attempts++
		if attempts == 1 {
			// Simulate a concurrent writer landing between this Load and TrySync.
			if _, err := store.Append(t.Context(), stream, 1, []ges.EventData{{Type: "Added", Data: []byte{2}}}); err != nil {
				t.Fatalf("concurrent append failed: %v", err)
			}
		}
		return []any{addedEvent{N: 10}}, nil
	}

	if err := cat.Resolve("s1").Transact(t.Context(), ges.DefaultLoad(), nil, decide); err != nil {
		t.Fatalf("transact failed: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected decide to run twice (initial + retry), ran %d times", attempts)
	}

	total, err := ges.Query(t.Context(), cat.Resolve("s1"), ges.DefaultLoad(), func(n int) int { return n })
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if total != 1+2+10 {
		t.Fatalf("expected total %d, got %d", 1+2+10, total)
	}
}

func TestCategory_MaxAttemptsExhausted(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cat := newSumCategory(t, store, ges.Unoptimized[int, any](), ges.WithMaxAttempts[int, any](2))

	stream, _ := ges.NewStreamName("Sum", "s1")

	decide := func(int) ([]any, error) {
		// Every decide call races its own conflicting writer in, so the
		// engine can never win within the retry budget.
		if _, err := store.Append(t.Context(), stream, int64(mustForwardVersion(t, store, stream)), []ges.EventData{{Type: "Added", Data: []byte{1}}}); err != nil {
			t.Fatalf("racing append failed: %v", err)
		}
		return []any{addedEvent{N: 1}}, nil
	}

	err := cat.Resolve("s1").Transact(t.Context(), ges.DefaultLoad(), nil, decide)
	var exhausted *ges.MaxResyncsExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected MaxResyncsExhaustedError, got %v", err)
	}
}

func mustForwardVersion(t *testing.T, store ges.StoreAdapter, stream ges.StreamName) int64 {
	t.Helper()
	_, version, err := store.LoadForward(t.Context(), stream, 0, false)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return version
}

func TestCategory_RollingSnapshotsCompactsOversizedBatch(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	isSnapshot := func(e any) bool { _, ok := e.(snapshotEvent); return ok }
	toSnapshot := func(n int) any { return snapshotEvent{Total: n} }
	cat := newSumCategory(t, store, ges.RollingSnapshots[int, any](isSnapshot, toSnapshot), ges.WithBatchSize[int, any](10))

	events := make([]any, 12)
	for i := range events {
		events[i] = addedEvent{N: 1}
	}
	decide := func(int) ([]any, error) { return events, nil }
	if err := cat.Resolve("s1").Transact(t.Context(), ges.DefaultLoad(), nil, decide); err != nil {
		t.Fatalf("transact failed: %v", err)
	}

	stream, _ := ges.NewStreamName("Sum", "s1")
	got, version, err := store.LoadForward(t.Context(), stream, 0, false)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if version != 13 {
		t.Fatalf("expected version 13 (12 events + 1 snapshot), got %d", version)
	}
	if len(got) != 13 || got[12].Type != "Snapshot" {
		t.Fatalf("expected a trailing snapshot event at index 12, got %+v", got)
	}

	total, err := ges.Query(t.Context(), cat.Resolve("s1"), ges.DefaultLoad(), func(n int) int { return n })
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if total != 12 {
		t.Fatalf("expected total 12, got %d", total)
	}
}

func TestCategory_LatestKnownEventRejectsCache(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cache := ges.NewCache(ges.CacheSliding)
	_, err := ges.NewCategory[int, any]("Sum", sumFold, 0, sumCodec{}, store, ges.LatestKnownEvent[int, any](), ges.WithCache[int, any](cache))
	var cfg *ges.ConfigError
	if !errors.As(err, &cfg) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestCategory_CacheHitAvoidsStoreRead(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cache := ges.NewCache(ges.CacheSliding)
	cat := newSumCategory(t, store, ges.Unoptimized[int, any](), ges.WithCache[int, any](cache))

	add := func(n int) func(int) ([]any, error) {
		return func(int) ([]any, error) { return []any{addedEvent{N: n}}, nil }
	}
	if err := cat.Resolve("s1").Transact(t.Context(), ges.DefaultLoad(), nil, add(5)); err != nil {
		t.Fatalf("transact failed: %v", err)
	}

	// Write behind the cache's back: a query served from the cache must not see it.
	stream, _ := ges.NewStreamName("Sum", "s1")
	if _, err := store.Append(t.Context(), stream, 1, []ges.EventData{{Type: "Added", Data: []byte{100}}}); err != nil {
		t.Fatalf("out-of-band append failed: %v", err)
	}

	total, err := ges.Query(t.Context(), cat.Resolve("s1"), ges.DefaultLoad(), func(n int) int { return n })
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
}
