package redis

import (
	"context"
	"testing"
	"time"

	"focus-session-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestFocusStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	ctx := context.Background()
	store := NewFocusStore(newClient(mr), time.Hour)

	if _, ok, err := store.Get(ctx, "s1", "alice"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	_ = store.Put(ctx, "s1", "alice", domain.FocusReport{Score: 90})
	_ = store.Put(ctx, "s1", "alice", domain.FocusReport{Score: 42, Cause: "no face detected"})
	_ = store.Put(ctx, "s1", "bob", domain.FocusReport{Score: 77, IsLookingAway: true})

	got, ok, err := store.Get(ctx, "s1", "alice")
	if err != nil || !ok || got.Score != 42 || got.Cause != "no face detected" {
		t.Fatalf("unexpected report %+v ok=%v err=%v", got, ok, err)
	}
	if ttl := mr.TTL("focus:{s1}:reports"); ttl <= 0 {
		t.Fatalf("expected ttl on reports hash, got %v", ttl)
	}

	mr.HSet("focus:{s1}:reports", "carol", "not-json")
	all, err := store.All(ctx, "s1")
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 || !all["bob"].IsLookingAway {
		t.Fatalf("unexpected reports %+v", all)
	}

	_ = store.Delete(ctx, "s1", "alice")
	if _, ok, _ := store.Get(ctx, "s1", "alice"); ok {
		t.Fatalf("expected alice removed")
	}
}
