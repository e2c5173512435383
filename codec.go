package ges

import (
	"context"

	jsoniter "github.com/json-iterator/go"
)

// json is configured to be compatible with encoding/json, the same way the
// reference message-db backend in the wider event-store ecosystem configures
// its own jsoniter instance.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Codec encodes application events of type E to an opaque wire body and
// decodes timeline events back. TryDecode must return ok=false (never an
// error) for event types it does not recognize — an unrecognized event is a
// no-op in the fold, never a terminal failure.
type Codec[E any] interface {
	Encode(ctx context.Context, md Metadata, event E) (EventData, error)
	TryDecode(te TimelineEvent) (event E, ok bool)
}

// EventTyped is implemented by events that know their own wire type tag.
// Events that don't implement it fall back to their Go type name.
type EventTyped interface {
	EventType() string
}

// eventType returns the canonical wire tag for an event value.
func eventType(e any) string {
	if named, ok := e.(EventTyped); ok {
		return named.EventType()
	}
	return goTypeName(e)
}

// JSONCodec builds a Codec[E] that maps a single Go type E to a single wire
// type tag, JSON-encoding the payload via jsoniter. EventIDs are left to the
// caller of Encode's result (the StoreAdapter stamps one if ID is empty).
func JSONCodec[E any]() Codec[E] {
	var zero E
	return jsonCodec[E]{tag: eventType(zero)}
}

type jsonCodec[E any] struct {
	tag string
}

func (c jsonCodec[E]) Encode(_ context.Context, md Metadata, event E) (EventData, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return EventData{}, err
	}
	meta, err := json.Marshal(md)
	if err != nil {
		return EventData{}, err
	}
	return EventData{
		Type:          c.tag,
		Data:          data,
		Meta:          meta,
		CorrelationID: stringMeta(md, "correlation_id"),
		CausationID:   stringMeta(md, "causation_id"),
	}, nil
}

func (c jsonCodec[E]) TryDecode(te TimelineEvent) (E, bool) {
	var v E
	if te.Type != c.tag {
		return v, false
	}
	if err := json.Unmarshal(te.Data, &v); err != nil {
		return v, false
	}
	return v, true
}

func stringMeta(md Metadata, key string) string {
	if md == nil {
		return ""
	}
	if v, ok := md[key].(string); ok {
		return v
	}
	return ""
}
