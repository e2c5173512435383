package ges_test

import (
	"testing"

	"github.com/arclane/ges"
)

func TestToken_VersionIsStreamVersionPlusOne(t *testing.T) {
	t.Parallel()

	stream, err := ges.NewStreamName("Cat", "id")
	if err != nil {
		t.Fatal(err)
	}

	empty := ges.NewToken(stream, ges.Position{StreamVersion: -1}, 0)
	if empty.Version() != 0 {
		t.Fatalf("expected version 0 for empty stream, got %d", empty.Version())
	}

	tok := ges.NewToken(stream, ges.Position{StreamVersion: 4}, 128)
	if tok.Version() != 5 {
		t.Fatalf("expected version 5, got %d", tok.Version())
	}
	if tok.Bytes() != 128 {
		t.Fatalf("expected bytes 128, got %d", tok.Bytes())
	}
}

func TestIsStale(t *testing.T) {
	t.Parallel()

	stream, _ := ges.NewStreamName("Cat", "id")
	older := ges.NewToken(stream, ges.Position{StreamVersion: 1}, 0)
	newer := ges.NewToken(stream, ges.Position{StreamVersion: 3}, 0)

	if ges.IsStale(older, newer) {
		t.Fatal("a strictly newer candidate must not be stale")
	}
	if !ges.IsStale(newer, older) {
		t.Fatal("a strictly older candidate must be stale")
	}
	if ges.IsStale(newer, newer) {
		t.Fatal("an equal-version candidate must not be stale")
	}
}
