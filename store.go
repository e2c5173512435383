package ges

import "context"

// StoreAdapter is the per-backend contract a storage implementation must
// satisfy. It knows nothing about application event types: it moves
// EventData in and TimelineEvent out, and leaves decoding to the Codec the
// Category was built with.
type StoreAdapter interface {
	// LoadForward returns every event with index >= fromIndex, ascending,
	// honoring the adapter's configured batch size and MaxBatchReads.
	// version is the count of events in the stream after the read, 0 if empty.
	LoadForward(ctx context.Context, stream StreamName, fromIndex int64, requireLeader bool) (events []TimelineEvent, version int64, err error)

	// LoadBackwardUntil reads backward in batches until isOrigin matches a
	// timeline event, or index 0 is reached. Returns events ascending,
	// starting at the matched origin (inclusive) or at index 0 when no
	// origin matched. matchedOrigin distinguishes the two cases.
	LoadBackwardUntil(ctx context.Context, stream StreamName, requireLeader bool, isOrigin func(TimelineEvent) bool) (events []TimelineEvent, version int64, matchedOrigin bool, err error)

	// Append atomically writes events if the stream's current version
	// equals expectedVersion. expectedVersion 0 means "stream must not yet
	// exist"; on success returns the new version. On a concurrent writer,
	// returns a *VersionConflictError and appends nothing.
	Append(ctx context.Context, stream StreamName, expectedVersion int64, events []EventData) (version int64, err error)

	// TokenEmpty returns the canonical empty-stream token for this stream,
	// sized for the adapter's configured batch size.
	TokenEmpty(stream StreamName) Token

	// MaxBatchReads is the configured cap on read pages per load, or 0 for
	// unlimited.
	MaxBatchReads() int
}

// StalenessOverrider is an optional StoreAdapter extension: a backend whose
// tokens need a staleness rule other than plain version comparison can
// implement it. Neither reference backend in this module needs to.
type StalenessOverrider interface {
	StalenessPredicate() StalenessPredicate
}
