// Package pgx is the relational backend of §6: a real PostgreSQL adapter
// over jackc/pgx, generalizing the teacher's single append-only events table
// into a message-db-style shape. The write_message and get_stream_messages
// routines are emulated with plain SQL against the messages table (the
// append checks the expected version against the current max index inside
// one transaction); no stored procedure is installed or called, and there is
// no get_last_stream_message equivalent.
package pgx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arclane/ges"
)

// Option configures Store.
type Option func(*Store)

// WithBatchSize overrides the default page size for forward/backward reads (500).
func WithBatchSize(n int) Option {
	return func(s *Store) { s.batchSize = n }
}

// WithMaxBatchReads caps how many pages a single load may read before
// BatchLimitExceededError is raised. 0 (the default) is unlimited.
func WithMaxBatchReads(n int) Option {
	return func(s *Store) { s.maxBatches = n }
}

// WithCompressor compresses Data/Meta before writing and decompresses them
// on read, trading CPU for storage — the same optional hook described for
// backends in the ambient compression stack.
func WithCompressor(c ges.Compressor) Option {
	return func(s *Store) { s.compressor = c }
}

// Store is a PostgreSQL StoreAdapter built on a pgxpool.Pool. It expects a
// table of the shape created by Schema().
type Store struct {
	pool       *pgxpool.Pool
	batchSize  int
	maxBatches int
	compressor ges.Compressor
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, batchSize: 500}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schema is the DDL a deployment must apply before using Store. It is
// exposed as a constant, not run automatically, matching the teacher's own
// stance that migrations are the caller's responsibility.
const Schema = `
CREATE TABLE IF NOT EXISTS messages (
	stream_name   text NOT NULL,
	index         bigint NOT NULL,
	id            uuid NOT NULL,
	type          text NOT NULL,
	data          bytea NOT NULL,
	metadata      bytea,
	correlation_id text,
	causation_id   text,
	"time"        timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (stream_name, index)
);
`

// Append implements ges.StoreAdapter by emulating message-db's
// write_message(id, stream, type, data, meta, expectedVersion) stored
// procedure: one transaction reads the current max index, verifies it
// against expectedVersion, and inserts each event at the next index.
func (s *Store) Append(ctx context.Context, stream ges.StreamName, expectedVersion int64, events []ges.EventData) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, &ges.StoreUnavailableError{Stream: stream, Op: "append", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var currentVersion int64
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(index), -1) + 1 FROM messages WHERE stream_name = $1`,
		stream.String(),
	).Scan(&currentVersion); err != nil {
		return 0, &ges.StoreUnavailableError{Stream: stream, Op: "append", Err: err}
	}

	if currentVersion != expectedVersion {
		return 0, &ges.VersionConflictError{Stream: stream, ExpectedVersion: expectedVersion, ActualVersion: currentVersion}
	}

	if len(events) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return 0, &ges.StoreUnavailableError{Stream: stream, Op: "append", Err: err}
		}
		return currentVersion, nil
	}

	idx := currentVersion
	for _, ed := range events {
		id := ed.ID
		if id == "" {
			id = uuid.NewString()
		}
		data, meta := ed.Data, ed.Meta
		if s.compressor != nil {
			if data, err = s.compressor.Compress(data); err != nil {
				return 0, fmt.Errorf("ges-pgx: could not compress event data: %w", err)
			}
			if meta, err = s.compressor.Compress(meta); err != nil {
				return 0, fmt.Errorf("ges-pgx: could not compress event metadata: %w", err)
			}
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO messages (stream_name, index, id, type, data, metadata, correlation_id, causation_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			stream.String(), idx, id, ed.Type, data, meta, ed.CorrelationID, ed.CausationID,
		); err != nil {
			if isUniqueViolation(err) {
				return 0, &ges.VersionConflictError{Stream: stream, ExpectedVersion: expectedVersion, ActualVersion: idx}
			}
			return 0, &ges.StoreUnavailableError{Stream: stream, Op: "append", Err: err}
		}
		idx++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &ges.StoreUnavailableError{Stream: stream, Op: "append", Err: err}
	}
	return idx, nil
}

// LoadForward implements ges.StoreAdapter by paging through
// get_stream_messages(stream, fromIndex, batchSize)-equivalent queries.
func (s *Store) LoadForward(ctx context.Context, stream ges.StreamName, fromIndex int64, _ bool) ([]ges.TimelineEvent, int64, error) {
	var out []ges.TimelineEvent
	next := fromIndex
	pages := 0
	var lastVersion int64 = 0

	for {
		pages++
		if s.maxBatches > 0 && pages > s.maxBatches {
			return nil, 0, &ges.BatchLimitExceededError{Stream: stream, MaxBatches: s.maxBatches}
		}

		rows, err := s.pool.Query(ctx,
			`SELECT index, id, type, data, metadata, correlation_id, causation_id, "time"
			 FROM messages WHERE stream_name = $1 AND index >= $2
			 ORDER BY index ASC LIMIT $3`,
			stream.String(), next, s.batchSize,
		)
		if err != nil {
			return nil, 0, &ges.StoreUnavailableError{Stream: stream, Op: "load", Err: err}
		}

		page, err := s.scanRows(rows)
		rows.Close()
		if err != nil {
			return nil, 0, &ges.StoreUnavailableError{Stream: stream, Op: "load", Err: err}
		}
		out = append(out, page...)

		if len(page) > 0 {
			lastVersion = page[len(page)-1].Index + 1
			next = page[len(page)-1].Index + 1
		}
		if len(page) < s.batchSize {
			break
		}
	}

	if len(out) == 0 && fromIndex > 0 {
		if err := s.pool.QueryRow(ctx,
			`SELECT COALESCE(MAX(index), -1) + 1 FROM messages WHERE stream_name = $1`,
			stream.String(),
		).Scan(&lastVersion); err != nil {
			return nil, 0, &ges.StoreUnavailableError{Stream: stream, Op: "load", Err: err}
		}
	}

	return out, lastVersion, nil
}

// LoadBackwardUntil reads backward in batchSize-sized pages until isOrigin
// matches a row, or index 0 is reached.
func (s *Store) LoadBackwardUntil(ctx context.Context, stream ges.StreamName, _ bool, isOrigin func(ges.TimelineEvent) bool) ([]ges.TimelineEvent, int64, bool, error) {
	var total int64 = -1
	if err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(index), -1) FROM messages WHERE stream_name = $1`,
		stream.String(),
	).Scan(&total); err != nil {
		return nil, 0, false, &ges.StoreUnavailableError{Stream: stream, Op: "load", Err: err}
	}
	if total < 0 {
		return nil, 0, false, nil
	}
	version := total + 1

	hi := total
	pages := 0
	var later []ges.TimelineEvent
	for hi >= 0 {
		pages++
		if s.maxBatches > 0 && pages > s.maxBatches {
			return nil, 0, false, &ges.BatchLimitExceededError{Stream: stream, MaxBatches: s.maxBatches}
		}
		lo := hi - int64(s.batchSize) + 1
		if lo < 0 {
			lo = 0
		}

		rows, err := s.pool.Query(ctx,
			`SELECT index, id, type, data, metadata, correlation_id, causation_id, "time"
			 FROM messages WHERE stream_name = $1 AND index BETWEEN $2 AND $3
			 ORDER BY index ASC`,
			stream.String(), lo, hi,
		)
		if err != nil {
			return nil, 0, false, &ges.StoreUnavailableError{Stream: stream, Op: "load", Err: err}
		}
		page, err := s.scanRows(rows)
		rows.Close()
		if err != nil {
			return nil, 0, false, &ges.StoreUnavailableError{Stream: stream, Op: "load", Err: err}
		}

		for i := len(page) - 1; i >= 0; i-- {
			if isOrigin(page[i]) {
				return append(page[i:], later...), version, true, nil
			}
		}

		later = append(page, later...)
		if lo == 0 {
			return later, version, false, nil
		}
		hi = lo - 1
	}
	return nil, version, false, nil
}

func (s *Store) scanRows(rows pgx.Rows) ([]ges.TimelineEvent, error) {
	var out []ges.TimelineEvent
	for rows.Next() {
		var (
			index                      int64
			id, typ, corrID, causeID   string
			data, meta                 []byte
			at                         time.Time
		)
		if err := rows.Scan(&index, &id, &typ, &data, &meta, &corrID, &causeID, &at); err != nil {
			return nil, err
		}
		var derr error
		if s.compressor != nil {
			if data, derr = s.compressor.Decompress(data); derr != nil {
				return nil, derr
			}
			if len(meta) > 0 {
				if meta, derr = s.compressor.Decompress(meta); derr != nil {
					return nil, derr
				}
			}
		}
		out = append(out, ges.TimelineEvent{
			Index:         index,
			Type:          typ,
			Data:          data,
			Meta:          meta,
			ID:            id,
			CorrelationID: corrID,
			CausationID:   causeID,
			At:            at,
			Size:          len(data) + len(meta),
		})
	}
	return out, rows.Err()
}

// TokenEmpty implements ges.StoreAdapter.
func (s *Store) TokenEmpty(stream ges.StreamName) ges.Token {
	return ges.NewToken(stream, ges.Position{StreamVersion: -1}, 0)
}

// MaxBatchReads implements ges.StoreAdapter.
func (s *Store) MaxBatchReads() int { return s.maxBatches }

var _ ges.StoreAdapter = (*Store)(nil)
