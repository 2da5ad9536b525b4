package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"focus-session-service/internal/analysis"
	"focus-session-service/internal/app"
	"focus-session-service/internal/domain"
	"focus-session-service/internal/infra/memory"
)

func seedSession(t *testing.T) *memory.Recorder {
	t.Helper()
	ctx := context.Background()
	rec := memory.NewRecorder()
	start := time.Now().Add(-10 * time.Minute)
	_ = rec.StartSession(ctx, domain.SessionRecord{ID: "s1", StartedAt: start})
	for _, who := range []string{"Alice", "Bob"} {
		_ = rec.RecordAttendance(ctx, "s1", domain.AttendanceEntry{ParticipantID: who, Name: who, Action: domain.AttendanceJoin, At: start})
	}
	_ = rec.SaveQuestion(ctx, domain.QuestionRecord{ID: "q1", SessionID: "s1", Spec: domain.QuestionSpec{Text: "2+2?", Mode: domain.ModeMCQ}})
	_ = rec.SaveQuestion(ctx, domain.QuestionRecord{ID: "q2", SessionID: "s1", Spec: domain.QuestionSpec{Text: "Capital?", Mode: domain.ModeFreeText}})
	_ = rec.SaveAnswer(ctx, "s1", domain.AnswerRecord{QuestionID: "q1", ParticipantName: "Alice", IsCorrect: true, TotalPoints: 90, ResponseLatencySeconds: 2})
	_ = rec.SaveAnswer(ctx, "s1", domain.AnswerRecord{QuestionID: "q1", ParticipantName: "Bob", IsCorrect: false, TotalPoints: 8, ResponseLatencySeconds: 4})
	_ = rec.SaveAnswer(ctx, "s1", domain.AnswerRecord{QuestionID: "q2", ParticipantName: "Bob", IsCorrect: true, TotalPoints: 95})
	_ = rec.SaveFocusLog(ctx, domain.FocusLog{SessionID: "s1", Score: 81})
	_ = rec.SaveFocusLog(ctx, domain.FocusLog{SessionID: "s1", Score: 60})
	return rec
}

func TestReportBuilderAggregates(t *testing.T) {
	report, err := app.NewReportBuilder(seedSession(t)).LoadReport(context.Background(), "s1")
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	stats := report.Stats
	if stats.TotalQuestions != 2 || stats.TotalAnswers != 3 || stats.AvgAccuracy != 67 || stats.AvgFocus != 71 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.TopStudent == nil || stats.TopStudent.Name != "Bob" || stats.TopStudent.Score != 103 {
		t.Fatalf("unexpected top student %+v", stats.TopStudent)
	}
	if len(report.Rankings) != 2 || report.Rankings[1].Name != "Alice" {
		t.Fatalf("unexpected rankings %+v", report.Rankings)
	}
	if report.ActualDuration < 590 {
		t.Fatalf("expected duration measured to now, got %d", report.ActualDuration)
	}
	q1 := report.Questions[0]
	if q1.Answers != 2 || q1.Accuracy != 50 || q1.AvgResponseSeconds != 3 || q1.Mode != "MCQ" {
		t.Fatalf("unexpected question summary %+v", q1)
	}
}

func TestReportBuilderEmptySession(t *testing.T) {
	rec := memory.NewRecorder()
	_ = rec.StartSession(context.Background(), domain.SessionRecord{ID: "s1", StartedAt: time.Now()})
	report, err := app.NewReportBuilder(rec).LoadReport(context.Background(), "s1")
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	if report.Stats.TopStudent != nil || report.Stats.AvgAccuracy != 0 || report.Attendance == nil {
		t.Fatalf("unexpected empty report %+v", report)
	}
}

type stubAnalyzer struct {
	got analysis.Context
	err error
}

func (s *stubAnalyzer) Analyze(_ context.Context, in analysis.Context) (analysis.Report, error) {
	s.got = in
	if s.err != nil {
		return analysis.Report{}, s.err
	}
	return analysis.Report{Summary: "fine"}, nil
}

func TestReportServiceAnalyze(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewReportRepository(app.NewReportBuilder(seedSession(t)), time.Minute)

	analyzer := &stubAnalyzer{}
	svc := app.NewReportService(repo, analyzer, nil)
	out, err := svc.Analyze(ctx, "s1")
	if err != nil || out.Summary != "fine" {
		t.Fatalf("unexpected analysis %+v %v", out, err)
	}
	if analyzer.got.Meta.TotalQuestions != 2 || analyzer.got.Meta.ParticipationRate != "100%" {
		t.Fatalf("expected real stats forwarded, got %+v", analyzer.got.Meta)
	}

	analyzer.err = errors.New("upstream down")
	out, err = svc.Analyze(ctx, "s1")
	if err != nil {
		t.Fatalf("analysis failure must not surface: %v", err)
	}
	if out.Summary != analysis.Fallback().Summary {
		t.Fatalf("expected fallback, got %+v", out)
	}

	if _, err := svc.Analyze(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected unknown session, got %v", err)
	}
}
