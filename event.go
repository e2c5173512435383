package ges

import (
	"fmt"
	"time"
)

// EventData is what a decide function's output becomes once encoded: the
// opaque payload a StoreAdapter writes for a single event.
type EventData struct {
	ID            string
	Type          string
	Data          []byte
	Meta          []byte
	CorrelationID string
	CausationID   string
}

// TimelineEvent is what a StoreAdapter yields on read: a previously
// persisted event plus the bookkeeping the engine needs to fold and to
// evaluate access-strategy origin predicates.
type TimelineEvent struct {
	Index         int64
	Type          string
	Data          []byte
	Meta          []byte
	ID            string
	CorrelationID string
	CausationID   string
	At            time.Time
	Size          int
}

// goTypeName falls back to the Go type name (e.g. "main.AccountOpened") for
// events that do not implement EventTyped.
func goTypeName(e any) string {
	return fmt.Sprintf("%T", e)
}

// NewTimelineEvent stamps Size from Data/Meta, following the rule that size
// is computed once by the adapter at read time and never recomputed by the
// engine.
func NewTimelineEvent(index int64, ed EventData, at time.Time) TimelineEvent {
	return TimelineEvent{
		Index:         index,
		Type:          ed.Type,
		Data:          ed.Data,
		Meta:          ed.Meta,
		ID:            ed.ID,
		CorrelationID: ed.CorrelationID,
		CausationID:   ed.CausationID,
		At:            at,
		Size:          len(ed.Data) + len(ed.Meta),
	}
}
