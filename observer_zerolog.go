package ges

import "github.com/rs/zerolog"

// ZerologObserver reports category activity through a zerolog.Logger,
// mirroring the leveled, structured style of the reference message-db
// backend's own logger package (one global Logger, Debug/Info by event
// kind, fields rather than formatted strings).
type ZerologObserver struct {
	log zerolog.Logger
}

// NewZerologObserver wraps an existing logger. Pass zerolog.Nop() to silence
// a specific category while keeping the same Observer wiring as others.
func NewZerologObserver(log zerolog.Logger) ZerologObserver {
	return ZerologObserver{log: log.With().Str("component", "ges").Logger()}
}

func (o ZerologObserver) Loaded(stream StreamName, fromCache bool, eventsRead int, version int64) {
	o.log.Debug().
		Str("stream", stream.String()).
		Bool("cache_hit", fromCache).
		Int("events_read", eventsRead).
		Int64("version", version).
		Msg("loaded")
}

func (o ZerologObserver) Conflict(stream StreamName, attempt int) {
	o.log.Warn().
		Str("stream", stream.String()).
		Int("attempt", attempt).
		Msg("version conflict, reloading")
}

func (o ZerologObserver) DecodeSkipped(stream StreamName, eventType string, index int64) {
	o.log.Debug().
		Str("stream", stream.String()).
		Str("event_type", eventType).
		Int64("index", index).
		Msg("skipped undecodable event")
}

func (o ZerologObserver) Synced(stream StreamName, eventsWritten int, newVersion int64) {
	o.log.Info().
		Str("stream", stream.String()).
		Int("events_written", eventsWritten).
		Int64("version", newVersion).
		Msg("synced")
}

var _ Observer = ZerologObserver{}
