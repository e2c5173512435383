package ges_test

import (
	"context"
	"sync"
	"time"

	"github.com/arclane/ges"
)

// fakeStore is a minimal in-memory ges.StoreAdapter used only by this
// package's own unit tests, kept separate from the real reference backends
// (stores/doc, stores/pgx) so the root package never imports its own
// dependents.
type fakeStore struct {
	mu      sync.Mutex
	events  map[string][]ges.TimelineEvent
	batches int
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: map[string][]ges.TimelineEvent{}}
}

func (s *fakeStore) Append(_ context.Context, stream ges.StreamName, expectedVersion int64, events []ges.EventData) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stream.String()
	existing := s.events[key]
	if int64(len(existing)) != expectedVersion {
		return 0, &ges.VersionConflictError{Stream: stream, ExpectedVersion: expectedVersion, ActualVersion: int64(len(existing))}
	}
	idx := int64(len(existing))
	now := time.Now().UTC()
	for _, ed := range events {
		existing = append(existing, ges.NewTimelineEvent(idx, ed, now))
		idx++
	}
	s.events[key] = existing
	return idx, nil
}

func (s *fakeStore) LoadForward(_ context.Context, stream ges.StreamName, fromIndex int64, _ bool) ([]ges.TimelineEvent, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.events[stream.String()]
	if !ok || len(existing) == 0 {
		return nil, 0, nil
	}
	var out []ges.TimelineEvent
	for _, te := range existing {
		if te.Index >= fromIndex {
			out = append(out, te)
		}
	}
	return out, int64(len(existing)), nil
}

func (s *fakeStore) LoadBackwardUntil(_ context.Context, stream ges.StreamName, _ bool, isOrigin func(ges.TimelineEvent) bool) ([]ges.TimelineEvent, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.events[stream.String()]
	if !ok || len(existing) == 0 {
		return nil, 0, false, nil
	}
	for i := len(existing) - 1; i >= 0; i-- {
		if isOrigin(existing[i]) {
			return append([]ges.TimelineEvent{}, existing[i:]...), int64(len(existing)), true, nil
		}
	}
	return append([]ges.TimelineEvent{}, existing...), int64(len(existing)), false, nil
}

func (s *fakeStore) TokenEmpty(stream ges.StreamName) ges.Token {
	return ges.NewToken(stream, ges.Position{StreamVersion: -1}, 0)
}

func (s *fakeStore) MaxBatchReads() int { return s.batches }

var _ ges.StoreAdapter = (*fakeStore)(nil)
