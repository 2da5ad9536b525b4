package app

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"focus-session-service/internal/analysis"
	"focus-session-service/internal/domain"
	"go.uber.org/zap"
)

// ReportBuilder computes a session report from the persisted records.
type ReportBuilder struct {
	reader SessionReader
	now    func() time.Time
}

func NewReportBuilder(reader SessionReader) *ReportBuilder {
	return &ReportBuilder{reader: reader, now: time.Now}
}

// LoadReport aggregates a session's questions, answers and focus logs.
func (b *ReportBuilder) LoadReport(ctx context.Context, sessionID string) (domain.SessionReport, error) {
	session, err := b.reader.GetSession(ctx, sessionID)
	if err != nil {
		return domain.SessionReport{}, err
	}
	attendance, err := b.reader.ListAttendance(ctx, sessionID)
	if err != nil {
		return domain.SessionReport{}, err
	}
	questions, err := b.reader.ListQuestions(ctx, sessionID)
	if err != nil {
		return domain.SessionReport{}, err
	}
	answers, err := b.reader.ListAnswers(ctx, sessionID)
	if err != nil {
		return domain.SessionReport{}, err
	}
	focus, err := b.reader.FocusSummary(ctx, sessionID)
	if err != nil {
		return domain.SessionReport{}, err
	}

	report := domain.SessionReport{
		Session:        session,
		ActualDuration: session.ActualDurationSeconds(b.now()),
		Attendance:     attendance,
		Rankings:       rankByName(answers),
		Questions:      summarizeQuestions(questions, answers),
	}
	if report.Attendance == nil {
		report.Attendance = []domain.AttendanceEntry{}
	}

	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}
	report.Stats = domain.ReportStats{
		TotalQuestions: len(questions),
		TotalAnswers:   len(answers),
		AvgAccuracy:    percent(correct, len(answers)),
		AvgFocus:       int(math.Round(focus.Average())),
	}
	if len(report.Rankings) > 0 {
		top := report.Rankings[0]
		report.Stats.TopStudent = &top
	}
	return report, nil
}

// rankByName sums points per display name, highest first.
func rankByName(answers []domain.AnswerRecord) []domain.RankingEntry {
	totals := make(map[string]int)
	order := make([]string, 0)
	for _, a := range answers {
		if _, ok := totals[a.ParticipantName]; !ok {
			order = append(order, a.ParticipantName)
		}
		totals[a.ParticipantName] += a.TotalPoints
	}
	rankings := make([]domain.RankingEntry, 0, len(order))
	for _, name := range order {
		rankings = append(rankings, domain.RankingEntry{Name: name, Score: totals[name]})
	}
	sort.SliceStable(rankings, func(i, j int) bool { return rankings[i].Score > rankings[j].Score })
	return rankings
}

func summarizeQuestions(questions []domain.QuestionRecord, answers []domain.AnswerRecord) []domain.QuestionSummary {
	type tally struct {
		answers, correct int
		latency          float64
	}
	byQuestion := make(map[string]*tally, len(questions))
	for _, a := range answers {
		t, ok := byQuestion[a.QuestionID]
		if !ok {
			t = &tally{}
			byQuestion[a.QuestionID] = t
		}
		t.answers++
		t.latency += a.ResponseLatencySeconds
		if a.IsCorrect {
			t.correct++
		}
	}

	out := make([]domain.QuestionSummary, 0, len(questions))
	for _, q := range questions {
		s := domain.QuestionSummary{ID: q.ID, Text: q.Spec.Text, Mode: q.Spec.Mode.WireName()}
		if t, ok := byQuestion[q.ID]; ok {
			s.Answers = t.answers
			s.Correct = t.correct
			s.Accuracy = percent(t.correct, t.answers)
			s.AvgResponseSeconds = t.latency / float64(t.answers)
		}
		out = append(out, s)
	}
	return out
}

func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

// Analyzer produces a narrative analysis of a session.
type Analyzer interface {
	Analyze(ctx context.Context, in analysis.Context) (analysis.Report, error)
}

// ReportService serves session reports and their narrative analysis.
type ReportService struct {
	reports  ReportRepository
	analyzer Analyzer
	logger   *zap.Logger
}

func NewReportService(reports ReportRepository, analyzer Analyzer, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{reports: reports, analyzer: analyzer, logger: logger.Named("reports")}
}

// Report returns the (possibly cached) report for a session.
func (s *ReportService) Report(ctx context.Context, sessionID string) (domain.SessionReport, error) {
	return s.reports.GetReport(ctx, sessionID)
}

// Analyze asks the analysis service about a session. Any analysis failure
// yields the fixed fallback report; only an unknown session is an error.
func (s *ReportService) Analyze(ctx context.Context, sessionID string) (analysis.Report, error) {
	report, err := s.reports.GetReport(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return analysis.Report{}, err
		}
		s.logger.Warn("load report for analysis failed", zap.String("session_id", sessionID), zap.Error(err))
		return analysis.Fallback(), nil
	}
	if s.analyzer == nil {
		return analysis.Fallback(), nil
	}
	out, err := s.analyzer.Analyze(ctx, analysis.BuildContext(report))
	if err != nil {
		s.logger.Warn("session analysis failed", zap.String("session_id", sessionID), zap.Error(err))
		return analysis.Fallback(), nil
	}
	return out, nil
}
