package ges

// Position is the backend-agnostic bookkeeping a Token carries between
// load, decide, append and reload. StreamVersion is the index of the last
// event the holder has seen (-1 for an empty stream). CompactionEventIndex,
// when known, is the index of the most recent origin/snapshot event.
// BatchCapacityLimit is the number of additional events that may be
// appended before a RollingSnapshots category should compact again.
type Position struct {
	StreamVersion        int64
	CompactionEventIndex *int64
	BatchCapacityLimit   *int32
}

// emptyPosition is the canonical position of a stream that has never been written.
func emptyPosition() Position {
	return Position{StreamVersion: -1}
}

// batchCapacityLimit implements the formula from §4.2: the number of events
// that may still be appended before a fresh load would need more than one
// backward batch to find the next origin.
//
//	with a known compaction index:   batchSize - unstoredPending - (streamVersion - compactionIndex + 1)
//	with no known compaction index:  batchSize - unstoredPending - (streamVersion + 1) - 1
//
// Both branches are floored at zero: a stream that is already over budget
// simply reports no remaining capacity, it is up to the caller to compact.
func batchCapacityLimit(batchSize int, unstoredPending int, pos Position) int32 {
	var limit int64
	if pos.CompactionEventIndex != nil {
		limit = int64(batchSize) - int64(unstoredPending) - (pos.StreamVersion - *pos.CompactionEventIndex + 1)
	} else {
		limit = int64(batchSize) - int64(unstoredPending) - (pos.StreamVersion + 1) - 1
	}
	if limit < 0 {
		limit = 0
	}
	if limit > int64(^uint32(0)>>1) {
		limit = int64(^uint32(0) >> 1)
	}
	return int32(limit)
}
