package doc_test

import (
	"testing"

	"github.com/arclane/ges"
	"github.com/arclane/ges/internal/storetest"
	"github.com/arclane/ges/stores/doc"
)

func TestStore_Compliance(t *testing.T) {
	t.Parallel()
	storetest.Run(t, func(t *testing.T) ges.StoreAdapter {
		t.Helper()
		return doc.New(doc.WithTipMaxEvents(2))
	})
}

func TestStore_CalfMigration(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	s := doc.New(doc.WithTipMaxEvents(2))
	stream, err := ges.NewStreamName("Stream", "calf")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if _, err := s.Append(ctx, stream, int64(i), []ges.EventData{{Type: "Added"}}); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	events, version, err := s.LoadForward(ctx, stream, 0, false)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if version != 5 {
		t.Fatalf("expected version 5, got %d", version)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Index != int64(i) {
			t.Fatalf("expected dense index %d, got %d", i, e.Index)
		}
	}
}

func TestStore_UnfoldShortCircuitsBackwardScan(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	s := doc.New(doc.WithTipMaxEvents(2), doc.WithUnfoldType("Snapshot"))
	stream, _ := ges.NewStreamName("Stream", "unfold")

	for i := 0; i < 4; i++ {
		if _, err := s.Append(ctx, stream, int64(i), []ges.EventData{{Type: "Added"}}); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}
	if _, err := s.Append(ctx, stream, 4, []ges.EventData{{Type: "Snapshot"}}); err != nil {
		t.Fatalf("snapshot append failed: %v", err)
	}

	isOrigin := func(te ges.TimelineEvent) bool { return te.Type == "Snapshot" }
	events, version, matched, err := s.LoadBackwardUntil(ctx, stream, false, isOrigin)
	if err != nil {
		t.Fatalf("load backward failed: %v", err)
	}
	if !matched {
		t.Fatalf("expected unfold match")
	}
	if version != 5 {
		t.Fatalf("expected version 5, got %d", version)
	}
	if len(events) != 1 || events[0].Type != "Snapshot" {
		t.Fatalf("expected single snapshot event, got %+v", events)
	}
}
