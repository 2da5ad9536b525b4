package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"focus-session-service/internal/domain"
)

type countingLoader struct {
	mu      sync.Mutex
	calls   int
	reports map[string]domain.SessionReport
}

func (l *countingLoader) LoadReport(_ context.Context, sessionID string) (domain.SessionReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	report, ok := l.reports[sessionID]
	if !ok {
		return domain.SessionReport{}, domain.ErrSessionNotFound
	}
	return report, nil
}

func TestReportRepositoryCaches(t *testing.T) {
	loader := &countingLoader{reports: map[string]domain.SessionReport{
		"s1": {Stats: domain.ReportStats{TotalQuestions: 2}},
	}}
	repo := NewReportRepository(loader, time.Minute)

	report, err := repo.GetReport(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if report.Stats.TotalQuestions != 2 {
		t.Fatalf("unexpected report %+v", report.Stats)
	}
	if _, err := repo.GetReport(context.Background(), "s1"); err != nil {
		t.Fatalf("get report 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestReportRepositoryExpires(t *testing.T) {
	loader := &countingLoader{reports: map[string]domain.SessionReport{"s1": {}}}
	repo := NewReportRepository(loader, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetReport(context.Background(), "s1")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetReport(context.Background(), "s1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

func TestReportRepositoryDoesNotCacheErrors(t *testing.T) {
	loader := &countingLoader{reports: map[string]domain.SessionReport{}}
	repo := NewReportRepository(loader, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := repo.GetReport(context.Background(), "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if loader.calls != 2 {
		t.Fatalf("expected errors to bypass the cache, loader calls %d", loader.calls)
	}
}
