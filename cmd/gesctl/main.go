// Command gesctl runs the favorites sample end to end against the
// in-process document-store backend, generalizing the teacher's own
// example/account/main.go driver program to the Category/Decider engine.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/arclane/ges/examples/favorites"
	"github.com/arclane/ges/stores/doc"
)

func main() {
	ctx := context.Background()

	store := doc.New()
	svc, err := favorites.NewService(store)
	if err != nil {
		log.Fatalf("gesctl: could not build favorites service: %v", err)
	}

	clientID := "ClientJ"

	if err := svc.Add(ctx, clientID, "a"); err != nil {
		log.Fatalf("gesctl: add failed: %v", err)
	}
	fmt.Printf("added %q\n", "a")

	if err := svc.Add(ctx, clientID, "b"); err != nil {
		log.Fatalf("gesctl: add failed: %v", err)
	}
	fmt.Printf("added %q\n", "b")

	if err := svc.Add(ctx, clientID, "a"); err != nil {
		log.Fatalf("gesctl: idempotent add failed: %v", err)
	}
	fmt.Println("re-added \"a\" (no-op, already favorited)")

	list, err := svc.List(ctx, clientID)
	if err != nil {
		log.Fatalf("gesctl: list failed: %v", err)
	}
	fmt.Printf("favorites for %s: %v\n", clientID, list)
}
