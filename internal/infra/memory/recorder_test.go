package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"focus-session-service/internal/domain"
)

func TestRecorderRoundTrip(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder()
	start := time.Unix(1_700_000_000, 0)

	if err := rec.StartSession(ctx, domain.SessionRecord{ID: "s1", TeacherID: "t1", StartedAt: start}); err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = rec.RecordAttendance(ctx, "s1", domain.AttendanceEntry{ParticipantID: "a", Name: "Alice", Action: domain.AttendanceJoin, At: start})
	_ = rec.RecordAttendance(ctx, "s1", domain.AttendanceEntry{ParticipantID: "a", Name: "Alice", Action: domain.AttendanceLeave, At: start})
	_ = rec.SaveQuestion(ctx, domain.QuestionRecord{ID: "q1", SessionID: "s1"})
	_ = rec.SaveAnswer(ctx, "s1", domain.AnswerRecord{QuestionID: "q1", ParticipantID: "a", TotalPoints: 70})
	_ = rec.SaveFocusLog(ctx, domain.FocusLog{SessionID: "s1", Score: 80})
	_ = rec.SaveFocusLog(ctx, domain.FocusLog{SessionID: "s1", Score: 60})
	if err := rec.EndSession(ctx, "s1", start.Add(time.Hour)); err != nil {
		t.Fatalf("end: %v", err)
	}

	session, err := rec.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.TotalStudentsJoined != 1 || session.EndedAt == nil {
		t.Fatalf("unexpected session %+v", session)
	}
	if got := session.ActualDurationSeconds(start); got != 3600 {
		t.Fatalf("expected 3600s, got %d", got)
	}
	attendance, _ := rec.ListAttendance(ctx, "s1")
	if len(attendance) != 2 {
		t.Fatalf("expected 2 attendance entries, got %d", len(attendance))
	}
	answers, _ := rec.ListAnswers(ctx, "s1")
	if len(answers) != 1 || answers[0].TotalPoints != 70 {
		t.Fatalf("unexpected answers %+v", answers)
	}
	summary, _ := rec.FocusSummary(ctx, "s1")
	if summary.Average() != 70 {
		t.Fatalf("expected focus average 70, got %v", summary.Average())
	}
}

func TestRecorderUnknownSession(t *testing.T) {
	rec := NewRecorder()
	if _, err := rec.GetSession(context.Background(), "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := rec.SaveFocusLog(context.Background(), domain.FocusLog{SessionID: "nope"}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
