package app

import (
	"fmt"
	"math"
	"strings"
	"time"

	"focus-session-service/internal/domain"
)

const (
	accuracyWeight = 50.0
	speedWeight    = 30.0
	focusWeight    = 20.0

	// defaultFocusScore is used when a participant has not reported yet.
	defaultFocusScore = 100.0
)

// Scored is the outcome of scoring one submission.
type Scored struct {
	Correct   bool
	Breakdown domain.ScoreBreakdown
	Total     int
}

// ScoreAnswer blends correctness, speed and focus into points. Speed credit
// falls linearly from 30 at zero latency to 0 at the end of the window and is
// only awarded for correct answers. It is a pure function of its inputs.
func ScoreAnswer(correctAnswer, answer string, latency, window time.Duration, focusScore float64) Scored {
	correct := correctAnswer != "" && normalizeAnswer(answer) == normalizeAnswer(correctAnswer)

	var b domain.ScoreBreakdown
	if correct {
		b.Accuracy = accuracyWeight
		if window > 0 {
			elapsed := math.Max(0, latency.Seconds())
			b.Speed = math.Max(0, speedWeight*(1-elapsed/window.Seconds()))
		}
	}
	b.Focus = math.Max(0, math.Min(100, focusScore)) / 100 * focusWeight

	return Scored{
		Correct:   correct,
		Breakdown: b,
		Total:     int(math.Round(b.Accuracy + b.Speed + b.Focus)),
	}
}

// ResultMessage is the human-readable acknowledgement for a submission.
func (s Scored) ResultMessage() string {
	if s.Correct {
		return fmt.Sprintf("Correct! +%d", s.Total)
	}
	return fmt.Sprintf("Wrong. +%d (Focus)", int(math.Round(s.Breakdown.Focus)))
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
