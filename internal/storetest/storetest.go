// Package storetest is a compliance suite every StoreAdapter implementation
// must pass, generalizing the teacher's own internal/storetest package from
// a single-EventStore-method contract to the richer StoreAdapter contract of
// §4.1 (forward load, backward-until load, conditional append).
package storetest

import (
	"errors"
	"strconv"
	"testing"

	"github.com/arclane/ges"
)

// Factory creates a fresh, isolated StoreAdapter instance for a single test.
type Factory func(t *testing.T) ges.StoreAdapter

func encode(tag string, n int, id string) ges.EventData {
	return ges.EventData{Type: tag, Data: []byte(`{"id":"` + id + `","n":` + strconv.Itoa(n) + `}`)}
}

// Run executes the compliance suite against newStore. Each subtest runs in
// parallel, so adapters must be concurrency-safe.
func Run(t *testing.T, newStore Factory) {
	t.Run("append/load forward", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		s := newStore(t)
		stream, err := ges.NewStreamName("Stream", "1")
		if err != nil {
			t.Fatal(err)
		}

		v, err := s.Append(ctx, stream, 0, []ges.EventData{encode("Opened", 0, "1")})
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
		if v != 1 {
			t.Fatalf("expected version 1, got %d", v)
		}

		v, err = s.Append(ctx, stream, v, []ges.EventData{encode("Added", 5, "")})
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
		if v != 2 {
			t.Fatalf("expected version 2, got %d", v)
		}

		events, version, err := s.LoadForward(ctx, stream, 0, false)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		if version != 2 {
			t.Fatalf("expected last version 2, got %d", version)
		}
		if events[0].Index != 0 || events[1].Index != 1 {
			t.Fatalf("expected dense indices 0,1, got %d,%d", events[0].Index, events[1].Index)
		}
	})

	t.Run("load forward from middle", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		s := newStore(t)
		stream, _ := ges.NewStreamName("Stream", "mid")

		_, err := s.Append(ctx, stream, 0, []ges.EventData{
			encode("Opened", 0, "1"), encode("Added", 1, ""), encode("Added", 2, ""),
		})
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}

		events, version, err := s.LoadForward(ctx, stream, 1, false)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 events from index 1, got %d", len(events))
		}
		if version != 3 {
			t.Fatalf("expected version 3, got %d", version)
		}
	})

	t.Run("version conflict", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		s := newStore(t)
		stream, _ := ges.NewStreamName("Stream", "2")

		if _, err := s.Append(ctx, stream, 0, []ges.EventData{encode("Opened", 0, "2")}); err != nil {
			t.Fatalf("append failed: %v", err)
		}

		_, err := s.Append(ctx, stream, 0, []ges.EventData{encode("Added", 1, "")})
		var vc *ges.VersionConflictError
		if !errors.As(err, &vc) {
			t.Fatalf("expected VersionConflictError, got %v", err)
		}
		if !errors.Is(err, ges.ErrVersionConflict) {
			t.Fatalf("expected errors.Is to match ErrVersionConflict")
		}
	})

	t.Run("empty stream loads as version 0", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		s := newStore(t)
		stream, _ := ges.NewStreamName("Stream", "nonexistent")

		events, version, err := s.LoadForward(ctx, stream, 0, false)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if len(events) != 0 {
			t.Fatalf("expected no events, got %d", len(events))
		}
		if version != 0 {
			t.Fatalf("expected version 0 for empty stream, got %d", version)
		}
	})

	t.Run("load backward until origin", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		s := newStore(t)
		stream, _ := ges.NewStreamName("Stream", "3")

		events := []ges.EventData{
			encode("Opened", 0, "3"),
			encode("Added", 1, ""),
			encode("Snapshot", 2, ""),
			encode("Added", 3, ""),
		}
		if _, err := s.Append(ctx, stream, 0, events); err != nil {
			t.Fatalf("append failed: %v", err)
		}

		isOrigin := func(te ges.TimelineEvent) bool { return te.Type == "Snapshot" }
		got, version, matched, err := s.LoadBackwardUntil(ctx, stream, false, isOrigin)
		if err != nil {
			t.Fatalf("load backward failed: %v", err)
		}
		if !matched {
			t.Fatalf("expected to match the snapshot origin")
		}
		if version != 4 {
			t.Fatalf("expected version 4, got %d", version)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 events from the snapshot onward, got %d", len(got))
		}
		if got[0].Type != "Snapshot" || got[1].Type != "Added" {
			t.Fatalf("unexpected event order: %+v", got)
		}
	})

	t.Run("load backward with no origin returns from zero", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()
		s := newStore(t)
		stream, _ := ges.NewStreamName("Stream", "4")

		if _, err := s.Append(ctx, stream, 0, []ges.EventData{
			encode("Opened", 0, "4"), encode("Added", 1, ""),
		}); err != nil {
			t.Fatalf("append failed: %v", err)
		}

		isOrigin := func(te ges.TimelineEvent) bool { return te.Type == "Snapshot" }
		got, version, matched, err := s.LoadBackwardUntil(ctx, stream, false, isOrigin)
		if err != nil {
			t.Fatalf("load backward failed: %v", err)
		}
		if matched {
			t.Fatalf("expected no origin match")
		}
		if version != 2 {
			t.Fatalf("expected version 2, got %d", version)
		}
		if len(got) != 2 {
			t.Fatalf("expected both events, got %d", len(got))
		}
	})

	t.Run("token empty", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		stream, _ := ges.NewStreamName("Stream", "5")
		tok := s.TokenEmpty(stream)
		if tok.Version() != 0 {
			t.Fatalf("expected empty token version 0, got %d", tok.Version())
		}
		if tok.Position.StreamVersion != -1 {
			t.Fatalf("expected empty token StreamVersion -1, got %d", tok.Position.StreamVersion)
		}
	})
}
