package domain

import (
	"strings"
	"time"
)

// Role identifies what a connected participant is allowed to do.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
)

// ParseRole normalizes a wire role; ok is false for anything unknown.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleTeacher:
		return RoleTeacher, true
	}
	return "", false
}

// QuestionMode is either a multiple-choice or a free-text question.
type QuestionMode string

const (
	ModeMCQ      QuestionMode = "MCQ"
	ModeFreeText QuestionMode = "FREE_TEXT"
)

// ParseQuestionMode accepts the wire names; MANUAL is the legacy name for free text.
func ParseQuestionMode(raw string) (QuestionMode, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "MCQ":
		return ModeMCQ, true
	case "FREE_TEXT", "MANUAL", "":
		return ModeFreeText, true
	}
	return "", false
}

// WireName is the mode name clients expect on new_question.
func (m QuestionMode) WireName() string {
	if m == ModeMCQ {
		return "MCQ"
	}
	return "MANUAL"
}

// Participant is the session-scoped profile of a connected user.
type Participant struct {
	ID              string
	DisplayName     string
	Role            Role
	CumulativeScore int
	JoinedAt        time.Time
	JoinSeq         int // position in join order; breaks leaderboard ties
}

// LeaderboardEntry is one row of the top-N leaderboard.
type LeaderboardEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// QuestionSpec is what a teacher pushes.
type QuestionSpec struct {
	Text                 string
	Mode                 QuestionMode
	Options              []string // only for MCQ
	CorrectAnswer        string
	TimerDurationSeconds int
}

// Duration is the question's answer window.
func (q QuestionSpec) Duration() time.Duration {
	return time.Duration(q.TimerDurationSeconds) * time.Second
}

// ActiveQuestion is the single question currently open for answers.
type ActiveQuestion struct {
	ID        string
	Spec      QuestionSpec
	StartTime time.Time
	EndTime   time.Time
	Answers   map[string]AnswerRecord
	Sealed    bool
}

// ScoreBreakdown carries the three weighted factors of a scored answer.
type ScoreBreakdown struct {
	Accuracy float64 `json:"accuracy"`
	Speed    float64 `json:"speed"`
	Focus    float64 `json:"focus"`
}

// AnswerRecord is created exactly once per participant per question.
type AnswerRecord struct {
	QuestionID             string         `json:"questionId"`
	ParticipantID          string         `json:"participantId"`
	ParticipantName        string         `json:"participantName"`
	RawAnswer              string         `json:"answer"`
	IsCorrect              bool           `json:"isCorrect"`
	ResponseLatencySeconds float64        `json:"responseLatencySeconds"`
	Breakdown              ScoreBreakdown `json:"stats"`
	TotalPoints            int            `json:"points"`
	SubmittedAt            time.Time      `json:"submittedAt"`
}

// AnswerResult is the unicast acknowledgement sent to a submitter.
type AnswerResult struct {
	Correct    bool   `json:"correct"`
	Points     int    `json:"points"`
	Message    string `json:"message"`
	TotalScore int    `json:"totalScore"`
}

// FocusReport is the periodic focus_update a tracking client sends.
type FocusReport struct {
	Timestamp      int64  `json:"timestamp"`
	IsTabActive    bool   `json:"isTabActive"`
	IsFaceDetected bool   `json:"isFaceDetected"`
	IsLookingAway  bool   `json:"isLookingAway"`
	IsEyesClosed   bool   `json:"isEyesClosed"`
	Cause          string `json:"cause"`
	Score          int    `json:"score"`
}

// DerivedCause prefers the client-reported cause and falls back to the flags.
func (r FocusReport) DerivedCause() string {
	if r.Cause != "" {
		return r.Cause
	}
	switch {
	case !r.IsTabActive:
		return "Tab Switch"
	case r.IsEyesClosed:
		return "Eyes Closed"
	case r.IsLookingAway:
		return "Looking Away"
	case !r.IsFaceDetected:
		return "No Face"
	}
	return "Unknown"
}

// ParticipantFocus is one row of the class focus snapshot.
type ParticipantFocus struct {
	StudentID     string `json:"studentId"`
	Name          string `json:"name"`
	Score         int    `json:"score"`
	Cause         string `json:"cause"`
	IsLookingAway bool   `json:"isLookingAway"`
	IsEyesClosed  bool   `json:"isEyesClosed"`
}

// DistractionAlert is sent to teachers when a student's score drops too low.
type DistractionAlert struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Score       int    `json:"score"`
	Cause       string `json:"cause"`
}
