// Package analysis talks to the generative report service that turns a
// session's numbers into a narrative summary.
package analysis

import (
	"fmt"
	"math"
	"time"

	"focus-session-service/internal/domain"
)

// Context is the structured session data sent for analysis.
type Context struct {
	Meta             Meta               `json:"meta"`
	TopicPerformance []TopicPerformance `json:"topicPerformance"`
}

// Meta holds the session-level numbers.
type Meta struct {
	DurationMinutes   int    `json:"durationMinutes"`
	TotalQuestions    int    `json:"totalQuestions"`
	ParticipationRate string `json:"participationRate"`
	AverageFocus      string `json:"averageFocus"`
	AverageAccuracy   string `json:"averageAccuracy"`
}

// TopicPerformance is one asked question and how the class did on it.
type TopicPerformance struct {
	Topic           string `json:"topic"`
	Type            string `json:"type"`
	Accuracy        string `json:"accuracy"`
	AvgResponseTime string `json:"avgResponseTime"`
}

// Gap is a weak topic the service identified.
type Gap struct {
	Topic    string `json:"topic"`
	Accuracy string `json:"accuracy"`
	Insight  string `json:"insight"`
}

// Report is the narrative analysis returned to teachers.
type Report struct {
	Summary         string   `json:"summary"`
	Gaps            []Gap    `json:"gaps"`
	RevisionNotes   []string `json:"revision_notes"`
	Recommendations []string `json:"recommendations"`
}

// Fallback is served whenever the analysis service fails or times out.
func Fallback() Report {
	return Report{
		Summary:         "AI Analysis failed or timed out.",
		Gaps:            []Gap{},
		RevisionNotes:   []string{"Check server logs."},
		Recommendations: []string{"Review raw data manually."},
	}
}

// BuildContext derives the analysis input from a session report.
func BuildContext(report domain.SessionReport) Context {
	participation := 0
	if joined := report.Session.TotalStudentsJoined; joined > 0 {
		participation = int(math.Round(float64(len(report.Rankings)) / float64(joined) * 100))
	}

	topics := make([]TopicPerformance, 0, len(report.Questions))
	for _, q := range report.Questions {
		avg := "N/A"
		if q.Answers > 0 {
			avg = (time.Duration(q.AvgResponseSeconds * float64(time.Second))).Round(100 * time.Millisecond).String()
		}
		topics = append(topics, TopicPerformance{
			Topic:           q.Text,
			Type:            q.Mode,
			Accuracy:        fmt.Sprintf("%d%%", q.Accuracy),
			AvgResponseTime: avg,
		})
	}

	return Context{
		Meta: Meta{
			DurationMinutes:   int(math.Round(float64(report.ActualDuration) / 60)),
			TotalQuestions:    report.Stats.TotalQuestions,
			ParticipationRate: fmt.Sprintf("%d%%", participation),
			AverageFocus:      fmt.Sprintf("%d%%", report.Stats.AvgFocus),
			AverageAccuracy:   fmt.Sprintf("%d%%", report.Stats.AvgAccuracy),
		},
		TopicPerformance: topics,
	}
}
