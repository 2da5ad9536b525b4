package app_test

import (
	"context"
	"errors"
	"testing"

	"focus-session-service/internal/app"
	"focus-session-service/internal/domain"
	"focus-session-service/internal/infra/memory"
)

func newTestHub() (*app.Hub, *memory.Recorder) {
	recorder := memory.NewRecorder()
	hub := app.NewHub(memory.NewSessionStore(), app.Deps{
		Gate:     memory.NewQuestionGate(),
		Focus:    memory.NewFocusStore(),
		Recorder: recorder,
	}, app.DefaultSettings(), "teacher-1")
	return hub, recorder
}

func TestHubLifecycle(t *testing.T) {
	ctx := context.Background()
	hub, recorder := newTestHub()

	if _, err := hub.Current(); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("expected no session before start, got %v", err)
	}
	first, err := hub.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	again, _ := hub.Start(ctx)
	if again != first {
		t.Fatalf("start must be idempotent")
	}
	record, err := recorder.GetSession(ctx, first.ID())
	if err != nil || record.TeacherID != "teacher-1" {
		t.Fatalf("expected persisted session, got %+v %v", record, err)
	}

	if _, err := first.Join(ctx, "t", "Teacher", domain.RoleTeacher); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := first.Join(ctx, "s", "Student", domain.RoleStudent); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := hub.EndSession(ctx, "s"); !errors.Is(err, domain.ErrNotTeacher) {
		t.Fatalf("expected teacher-only end, got %v", err)
	}

	next, err := hub.EndSession(ctx, "t")
	if err != nil {
		t.Fatalf("end session: %v", err)
	}
	if next.ID() == first.ID() {
		t.Fatalf("expected a fresh session")
	}
	ended, _ := recorder.GetSession(ctx, first.ID())
	if ended.EndedAt == nil || ended.TotalStudentsJoined != 1 {
		t.Fatalf("unexpected ended session %+v", ended)
	}

	hub.Shutdown(ctx)
	if _, err := hub.Current(); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("expected no session after shutdown, got %v", err)
	}
}

func TestHubsShareCurrentSession(t *testing.T) {
	ctx := context.Background()
	registry := memory.NewSessionStore()
	recorder := memory.NewRecorder()
	gate := memory.NewQuestionGate()
	newHub := func() *app.Hub {
		return app.NewHub(registry, app.Deps{
			Gate:     gate,
			Focus:    memory.NewFocusStore(),
			Recorder: recorder,
		}, app.DefaultSettings(), "teacher-1")
	}
	a, b := newHub(), newHub()

	first, err := a.Start(ctx)
	if err != nil {
		t.Fatalf("start a: %v", err)
	}
	adopted, err := b.Start(ctx)
	if err != nil {
		t.Fatalf("start b: %v", err)
	}
	if adopted.ID() != first.ID() {
		t.Fatalf("expected both hubs on session %s, got %s", first.ID(), adopted.ID())
	}

	for _, c := range []*app.Classroom{first, adopted} {
		if _, err := c.Join(ctx, "t", "Teacher", domain.RoleTeacher); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	spec := domain.QuestionSpec{Text: "2+2?", Mode: domain.ModeFreeText, CorrectAnswer: "4"}
	if _, err := first.PushQuestion(ctx, "t", spec); err != nil {
		t.Fatalf("push on a: %v", err)
	}
	if _, err := adopted.PushQuestion(ctx, "t", spec); !errors.Is(err, domain.ErrQuestionConflict) {
		t.Fatalf("expected the second hub to hit the shared gate, got %v", err)
	}

	next, err := a.EndSession(ctx, "t")
	if err != nil {
		t.Fatalf("end session: %v", err)
	}
	if next.ID() == first.ID() {
		t.Fatalf("expected a fresh session after ending")
	}
	if _, err := recorder.GetSession(ctx, next.ID()); err != nil {
		t.Fatalf("expected the claiming hub to persist the new session: %v", err)
	}
	b.Shutdown(ctx)
	a.Shutdown(ctx)
}
