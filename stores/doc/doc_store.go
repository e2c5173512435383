// Package doc is an in-process reference implementation of the document
// store backend described in §6: a "tip" document carrying the most recent
// events plus a small unfolds mirror, with older events migrated into
// immutable "calf" batches on overflow. It satisfies the ges.StoreAdapter
// contract without a network driver, the same way the teacher's own
// stores/mem is an in-process reference for its EventStore contract —
// concrete Cosmos/Dynamo-shaped network clients are explicitly out of scope
// (spec §1).
package doc

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arclane/ges"
)

// Option configures a Store.
type Option func(*Store)

// WithTipMaxEvents overrides the default tip capacity (100).
func WithTipMaxEvents(n int) Option {
	return func(s *Store) { s.tipMaxEvents = n }
}

// WithMaxBatchReads caps how many tip+calf pages a single load may read
// before BatchLimitExceededError is raised. 0 (the default) is unlimited.
func WithMaxBatchReads(n int) Option {
	return func(s *Store) { s.maxBatches = n }
}

// WithUnfoldType marks a wire type tag as an "unfold": when the last event
// of an append batch carries this tag, it is mirrored into the tip's
// unfolds slot so a later LoadBackwardUntil with a matching origin
// predicate can skip straight to it instead of scanning calves.
func WithUnfoldType(tag string) Option {
	return func(s *Store) { s.unfoldTypes[tag] = true }
}

// Store is a concurrency-safe in-process document-store reference adapter.
type Store struct {
	mu           sync.Mutex
	streams      map[string]*streamRecord
	tipMaxEvents int
	maxBatches   int
	unfoldTypes  map[string]bool
}

type streamRecord struct {
	version int64
	tip      []ges.TimelineEvent
	calves   [][]ges.TimelineEvent
	unfolds  []ges.TimelineEvent
	etag     int64
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		streams:      make(map[string]*streamRecord),
		tipMaxEvents: 100,
		unfoldTypes:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) isUnfold(te ges.TimelineEvent) bool {
	return s.unfoldTypes[te.Type]
}

// Append implements ges.StoreAdapter.
func (s *Store) Append(_ context.Context, stream ges.StreamName, expectedVersion int64, events []ges.EventData) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stream.String()
	rec, ok := s.streams[key]
	if !ok {
		rec = &streamRecord{version: 0}
	}

	if rec.version != expectedVersion {
		return 0, &ges.VersionConflictError{Stream: stream, ExpectedVersion: expectedVersion, ActualVersion: rec.version}
	}

	if len(events) == 0 {
		s.streams[key] = rec
		return rec.version, nil
	}

	now := time.Now().UTC()
	idx := rec.version
	var last ges.TimelineEvent
	for _, ed := range events {
		if ed.ID == "" {
			ed.ID = uuid.NewString()
		}
		te := ges.NewTimelineEvent(idx, ed, now)
		rec.tip = append(rec.tip, te)
		last = te
		idx++
	}
	rec.version = idx
	rec.etag++
	if s.isUnfold(last) {
		rec.unfolds = []ges.TimelineEvent{last}
	}

	if overflow := len(rec.tip) - s.tipMaxEvents; overflow > 0 {
		calf := append([]ges.TimelineEvent{}, rec.tip[:overflow]...)
		rec.calves = append(rec.calves, calf)
		rec.tip = append([]ges.TimelineEvent{}, rec.tip[overflow:]...)
	}

	s.streams[key] = rec
	return rec.version, nil
}

// LoadForward implements ges.StoreAdapter.
func (s *Store) LoadForward(_ context.Context, stream ges.StreamName, fromIndex int64, _ bool) ([]ges.TimelineEvent, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.streams[stream.String()]
	if !ok {
		return nil, 0, nil
	}

	pagesRead := 0
	var out []ges.TimelineEvent
	for _, calf := range rec.calves {
		pagesRead++
		if s.maxBatches > 0 && pagesRead > s.maxBatches {
			return nil, 0, &ges.BatchLimitExceededError{Stream: stream, MaxBatches: s.maxBatches}
		}
		out = appendFrom(out, calf, fromIndex)
	}
	pagesRead++
	if s.maxBatches > 0 && pagesRead > s.maxBatches {
		return nil, 0, &ges.BatchLimitExceededError{Stream: stream, MaxBatches: s.maxBatches}
	}
	out = appendFrom(out, rec.tip, fromIndex)

	return out, rec.version, nil
}

// LoadBackwardUntil implements ges.StoreAdapter.
func (s *Store) LoadBackwardUntil(_ context.Context, stream ges.StreamName, _ bool, isOrigin func(ges.TimelineEvent) bool) ([]ges.TimelineEvent, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.streams[stream.String()]
	if !ok {
		return nil, 0, false, nil
	}

	if len(rec.unfolds) > 0 && isOrigin(rec.unfolds[0]) {
		return s.eventsFromLocked(rec, rec.unfolds[0].Index), rec.version, true, nil
	}

	pages := make([][]ges.TimelineEvent, 0, len(rec.calves)+1)
	pages = append(pages, rec.tip)
	for i := len(rec.calves) - 1; i >= 0; i-- {
		pages = append(pages, rec.calves[i])
	}

	for pageNum, page := range pages {
		if s.maxBatches > 0 && pageNum+1 > s.maxBatches {
			return nil, 0, false, &ges.BatchLimitExceededError{Stream: stream, MaxBatches: s.maxBatches}
		}
		for i := len(page) - 1; i >= 0; i-- {
			if isOrigin(page[i]) {
				return s.eventsFromLocked(rec, page[i].Index), rec.version, true, nil
			}
		}
	}

	return s.eventsFromLocked(rec, 0), rec.version, false, nil
}

func (s *Store) eventsFromLocked(rec *streamRecord, fromIndex int64) []ges.TimelineEvent {
	var out []ges.TimelineEvent
	for _, calf := range rec.calves {
		out = appendFrom(out, calf, fromIndex)
	}
	out = appendFrom(out, rec.tip, fromIndex)
	return out
}

func appendFrom(out []ges.TimelineEvent, page []ges.TimelineEvent, fromIndex int64) []ges.TimelineEvent {
	for _, te := range page {
		if te.Index >= fromIndex {
			out = append(out, te)
		}
	}
	return out
}

// TokenEmpty implements ges.StoreAdapter.
func (s *Store) TokenEmpty(stream ges.StreamName) ges.Token {
	return ges.NewToken(stream, ges.Position{StreamVersion: -1}, 0)
}

// MaxBatchReads implements ges.StoreAdapter.
func (s *Store) MaxBatchReads() int { return s.maxBatches }

var _ ges.StoreAdapter = (*Store)(nil)
