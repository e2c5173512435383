package ges

// Token is the opaque handle carried through load → decide → append →
// reload. It is only ever compared via the staleness predicate below; never
// inspect Position directly in application code.
type Token struct {
	Stream   StreamName
	Position Position
	version  int64
	bytes    int64
}

// NewToken builds a Token from a stream's position. version is derived as
// StreamVersion+1 (an empty stream has StreamVersion -1 and so Version 0).
func NewToken(stream StreamName, pos Position, bytes int64) Token {
	return Token{
		Stream:   stream,
		Position: pos,
		version:  pos.StreamVersion + 1,
		bytes:    bytes,
	}
}

// Version is the public monotonic counter: last event index + 1.
func (t Token) Version() int64 { return t.version }

// Bytes is an estimate of the stream's on-disk size, used by backends (such
// as the document store) that must decide when a tip document has grown too
// large.
func (t Token) Bytes() int64 { return t.bytes }

// IsStale reports whether candidate must not replace current in a cache,
// per the default staleness predicate: a token is stale with respect to
// another only when the other is strictly newer.
func IsStale(current, candidate Token) bool {
	return current.Version() > candidate.Version()
}

// StalenessPredicate is the type a StoreAdapter may optionally supply to
// override the default version-comparison staleness rule.
type StalenessPredicate func(current, candidate Token) bool
