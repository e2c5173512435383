package ges

// Observer is the logging/metrics collaborator the engine reports to. It
// never influences control flow: every method is fire-and-forget.
type Observer interface {
	// Loaded fires after a successful Category.Load, whether served from
	// cache or from the store.
	Loaded(stream StreamName, fromCache bool, eventsRead int, version int64)

	// Conflict fires each time TrySync observes a version conflict, before
	// the decide loop reloads and retries.
	Conflict(stream StreamName, attempt int)

	// DecodeSkipped fires when the codec could not recognize a stored
	// event's type tag; the event is skipped in the fold, never an error.
	DecodeSkipped(stream StreamName, eventType string, index int64)

	// Synced fires after a successful append, reporting how many events
	// were written including any synthesized compaction event.
	Synced(stream StreamName, eventsWritten int, newVersion int64)
}

// NoopObserver discards every event. It is the default Observer.
type NoopObserver struct{}

func (NoopObserver) Loaded(StreamName, bool, int, int64)    {}
func (NoopObserver) Conflict(StreamName, int)               {}
func (NoopObserver) DecodeSkipped(StreamName, string, int64) {}
func (NoopObserver) Synced(StreamName, int, int64)           {}

var _ Observer = NoopObserver{}
