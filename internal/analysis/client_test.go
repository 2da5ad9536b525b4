package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"focus-session-service/internal/domain"
)

func TestAnalyzeParsesFencedReport(t *testing.T) {
	var (
		got  analyzeRequest
		auth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("```json\n{\"summary\":\"Good session\",\"revision_notes\":[\"a\"],\"recommendations\":[\"b\"]}\n```"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second)
	report, err := c.Analyze(context.Background(), Context{Meta: Meta{TotalQuestions: 3}})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if auth != "Bearer secret" {
		t.Fatalf("expected bearer auth, got %q", auth)
	}
	if report.Summary != "Good session" || !slices.Equal(report.RevisionNotes, []string{"a"}) {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Gaps == nil {
		t.Fatalf("expected missing gaps normalised to an empty list")
	}
	if got.Context.Meta.TotalQuestions != 3 {
		t.Fatalf("expected context forwarded, got %+v", got.Context.Meta)
	}
}

func TestAnalyzeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"summary":"ok"}`))
	}))
	defer srv.Close()

	report, err := NewClient(srv.URL, "", 5*time.Second).Analyze(context.Background(), Context{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.Summary != "ok" {
		t.Fatalf("expected ok summary, got %q", report.Summary)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("expected one retry, got %d calls", n)
	}
}

func TestAnalyzeDoesNotRetryBadPayload(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("I cannot help with that"))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "", time.Second).Analyze(context.Background(), Context{}); err == nil {
		t.Fatalf("expected parse error")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("bad payload must not be retried, got %d calls", n)
	}
}

func TestAnalyzeTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	if _, err := NewClient(srv.URL, "", 50*time.Millisecond).Analyze(context.Background(), Context{}); err == nil {
		t.Fatalf("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed >= time.Second {
		t.Fatalf("timeout not honoured, took %v", elapsed)
	}
}

func TestAnalyzeWithoutURL(t *testing.T) {
	_, err := NewClient("", "", 0).Analyze(context.Background(), Context{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestFallback(t *testing.T) {
	raw, err := json.Marshal(Fallback())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	const want = `{"summary":"AI Analysis failed or timed out.","gaps":[],"revision_notes":["Check server logs."],"recommendations":["Review raw data manually."]}`
	var gotFields, wantFields map[string]any
	if err := json.Unmarshal(raw, &gotFields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	_ = json.Unmarshal([]byte(want), &wantFields)
	gotJSON, _ := json.Marshal(gotFields)
	wantJSON, _ := json.Marshal(wantFields)
	if string(gotJSON) != string(wantJSON) {
		t.Fatalf("unexpected fallback %s", raw)
	}
}

func TestBuildContext(t *testing.T) {
	report := domain.SessionReport{
		Session:        domain.SessionRecord{TotalStudentsJoined: 4},
		ActualDuration: 1800,
		Stats:          domain.ReportStats{TotalQuestions: 2, AvgAccuracy: 50, AvgFocus: 81},
		Rankings:       []domain.RankingEntry{{Name: "A", Score: 90}, {Name: "B", Score: 20}, {Name: "C", Score: 10}},
		Questions: []domain.QuestionSummary{
			{Text: "2+2?", Mode: "MCQ", Answers: 3, Correct: 3, Accuracy: 100, AvgResponseSeconds: 2.34},
			{Text: "Capital of Peru?", Mode: "MANUAL"},
		},
	}
	c := BuildContext(report)
	if c.Meta.DurationMinutes != 30 || c.Meta.ParticipationRate != "75%" || c.Meta.AverageFocus != "81%" {
		t.Fatalf("unexpected meta %+v", c.Meta)
	}
	if len(c.TopicPerformance) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(c.TopicPerformance))
	}
	if c.TopicPerformance[0].Accuracy != "100%" || c.TopicPerformance[0].AvgResponseTime != "2.3s" {
		t.Fatalf("unexpected first topic %+v", c.TopicPerformance[0])
	}
	if c.TopicPerformance[1].AvgResponseTime != "N/A" {
		t.Fatalf("expected N/A for unanswered topic, got %q", c.TopicPerformance[1].AvgResponseTime)
	}
}
