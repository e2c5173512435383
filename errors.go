package ges

import "fmt"

// Sentinel errors. Use errors.Is against these; structured error types below
// carry the detail and satisfy Is(target) so errors.Is still works through
// fmt.Errorf("...: %w", err) wrapping.
var (
	// ErrVersionConflict indicates an append was rejected because the
	// adapter's current version did not match the caller's expected version.
	// Recovered internally by the decide loop; never escapes Decider.Transact.
	ErrVersionConflict = fmt.Errorf("ges: version conflict")

	// ErrStreamTruncated indicates a forward load could not honor fromIndex
	// because the backend has discarded earlier events through compaction.
	ErrStreamTruncated = fmt.Errorf("ges: stream truncated")

	// ErrStoreUnavailable indicates a transient or fatal transport failure
	// after the adapter's own retry policy was exhausted.
	ErrStoreUnavailable = fmt.Errorf("ges: store unavailable")
)

// VersionConflictError carries the detail behind ErrVersionConflict.
type VersionConflictError struct {
	Stream          StreamName
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("ges: version conflict on %q: expected=%d actual=%d", e.Stream, e.ExpectedVersion, e.ActualVersion)
}

func (e *VersionConflictError) Is(target error) bool { return target == ErrVersionConflict }

// MaxResyncsExhaustedError is surfaced when the decide loop exceeds its
// conflict-retry budget.
type MaxResyncsExhaustedError struct {
	Stream   StreamName
	Attempts int
}

func (e *MaxResyncsExhaustedError) Error() string {
	return fmt.Sprintf("ges: max resyncs exhausted on %q after %d attempt(s)", e.Stream, e.Attempts)
}

// BatchLimitExceededError is surfaced when a load would need more batches
// than the adapter's configured maxBatchReads.
type BatchLimitExceededError struct {
	Stream     StreamName
	MaxBatches int
}

func (e *BatchLimitExceededError) Error() string {
	return fmt.Sprintf("ges: batch limit (%d) exceeded loading %q", e.MaxBatches, e.Stream)
}

// StoreUnavailableError carries the detail behind ErrStoreUnavailable.
type StoreUnavailableError struct {
	Stream StreamName
	Op     string
	Err    error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("ges: store unavailable during %s on %q: %v", e.Op, e.Stream, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }
func (e *StoreUnavailableError) Is(target error) bool { return target == ErrStoreUnavailable }

// ConfigError is raised at category construction for misconfigurations that
// can be detected without touching a stream, e.g. pairing LatestKnownEvent
// with a cache.
type ConfigError struct {
	Category string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ges: misconfigured category %q: %s", e.Category, e.Reason)
}
