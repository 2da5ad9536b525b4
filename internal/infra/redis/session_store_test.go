package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"focus-session-service/internal/app"
	"focus-session-service/internal/domain"
	"focus-session-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestSessionStoreClaimAndRelease(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(newClient(mr), time.Minute)

	id, err := store.ClaimCurrent(ctx, "session-1")
	if err != nil || id != "session-1" {
		t.Fatalf("expected first claim to win, got %q %v", id, err)
	}
	if got, _ := mr.Get(currentSessionKey); got != "session-1" {
		t.Fatalf("expected marker set, got %q", got)
	}
	if ttl := mr.TTL(currentSessionKey); ttl <= 0 {
		t.Fatalf("expected marker ttl, got %v", ttl)
	}

	mr.FastForward(30 * time.Second)
	if id, _ := store.ClaimCurrent(ctx, "session-2"); id != "session-1" {
		t.Fatalf("expected later claim to adopt session-1, got %q", id)
	}
	if ttl := mr.TTL(currentSessionKey); ttl != time.Minute {
		t.Fatalf("expected adopting claim to refresh the ttl, got %v", ttl)
	}

	if err := store.ReleaseCurrent(ctx, "session-2"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !mr.Exists(currentSessionKey) {
		t.Fatalf("releasing another id must keep the marker")
	}
	if err := store.ReleaseCurrent(ctx, "session-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(currentSessionKey) {
		t.Fatalf("expected marker removed")
	}
}

func TestHubsOnOneRedisShareSessionAndGate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	recorder := memory.NewRecorder()
	newHub := func() *app.Hub {
		client := newClient(mr)
		t.Cleanup(func() { _ = client.Close() })
		return app.NewHub(NewSessionStore(client, time.Minute), app.Deps{
			Gate:     NewQuestionGate(client, time.Minute),
			Focus:    NewFocusStore(client, time.Minute),
			Recorder: recorder,
		}, app.DefaultSettings(), "teacher-1")
	}
	a, b := newHub(), newHub()

	first, err := a.Start(ctx)
	if err != nil {
		t.Fatalf("start a: %v", err)
	}
	second, err := b.Start(ctx)
	if err != nil {
		t.Fatalf("start b: %v", err)
	}
	if first.ID() != second.ID() {
		t.Fatalf("expected one shared session, got %s and %s", first.ID(), second.ID())
	}
	defer a.Shutdown(ctx)
	defer b.Shutdown(ctx)

	for _, c := range []*app.Classroom{first, second} {
		if _, err := c.Join(ctx, "teacher", "Ms. T", domain.RoleTeacher); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	spec := domain.QuestionSpec{Text: "2+2?", Mode: domain.ModeFreeText, CorrectAnswer: "4"}
	if _, err := first.PushQuestion(ctx, "teacher", spec); err != nil {
		t.Fatalf("push on a: %v", err)
	}
	if _, err := second.PushQuestion(ctx, "teacher", spec); !errors.Is(err, domain.ErrQuestionConflict) {
		t.Fatalf("expected conflict from the shared gate, got %v", err)
	}
}
