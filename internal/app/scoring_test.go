package app

import (
	"math"
	"testing"
	"time"
)

func TestScoreCorrectAnswer(t *testing.T) {
	s := ScoreAnswer("Paris", "  paris ", 2*time.Second, 10*time.Second, 80)
	if !s.Correct || s.Breakdown.Accuracy != 50 {
		t.Fatalf("expected correct with full accuracy, got %+v", s)
	}
	if math.Abs(s.Breakdown.Speed-24) > 1e-9 || math.Abs(s.Breakdown.Focus-16) > 1e-9 {
		t.Fatalf("unexpected breakdown %+v", s.Breakdown)
	}
	if s.Total != 90 || s.ResultMessage() != "Correct! +90" {
		t.Fatalf("expected 90 points, got %d %q", s.Total, s.ResultMessage())
	}
}

func TestScoreWrongAnswer(t *testing.T) {
	for _, latency := range []time.Duration{0, 3 * time.Second, 30 * time.Second} {
		s := ScoreAnswer("Paris", "Lyon", latency, 10*time.Second, 40)
		if s.Correct || s.Breakdown.Accuracy != 0 || s.Breakdown.Speed != 0 {
			t.Fatalf("latency %v: wrong answer earned accuracy or speed: %+v", latency, s)
		}
		if math.Abs(s.Breakdown.Focus-8) > 1e-9 || s.Total != 8 {
			t.Fatalf("latency %v: expected 8 focus points, got %+v", latency, s)
		}
		if s.ResultMessage() != "Wrong. +8 (Focus)" {
			t.Fatalf("unexpected message %q", s.ResultMessage())
		}
	}
}

func TestScoreSpeedBounds(t *testing.T) {
	late := ScoreAnswer("a", "A", 15*time.Second, 10*time.Second, 100)
	if late.Breakdown.Speed != 0 || late.Total != 70 {
		t.Fatalf("late answer: %+v", late)
	}

	early := ScoreAnswer("a", "a", -time.Second, 10*time.Second, 100)
	if early.Breakdown.Speed != 30 || early.Total != 100 {
		t.Fatalf("early answer: %+v", early)
	}
}

func TestScoreWithoutCorrectAnswerNeverMatches(t *testing.T) {
	s := ScoreAnswer("", "", 0, 10*time.Second, 100)
	if s.Correct || s.Total != 20 {
		t.Fatalf("empty key must not match: %+v", s)
	}
}

func TestScoreIsPure(t *testing.T) {
	a := ScoreAnswer("42", "42", 3300*time.Millisecond, 20*time.Second, 67)
	b := ScoreAnswer("42", "42", 3300*time.Millisecond, 20*time.Second, 67)
	if a != b {
		t.Fatalf("same inputs scored differently: %+v vs %+v", a, b)
	}
}
