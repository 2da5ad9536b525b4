package domain

import "time"

// SessionRecord is the persisted view of a live classroom session.
type SessionRecord struct {
	ID                  string     `json:"id"`
	TeacherID           string     `json:"teacherId"`
	StartedAt           time.Time  `json:"startTime"`
	EndedAt             *time.Time `json:"endTime,omitempty"`
	TotalStudentsJoined int        `json:"totalStudentsJoined"`
}

// ActualDurationSeconds is the elapsed session time, measured to now while still open.
func (s SessionRecord) ActualDurationSeconds(now time.Time) int {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	if end.Before(s.StartedAt) {
		return 0
	}
	return int(end.Sub(s.StartedAt).Seconds())
}

// AttendanceAction marks whether a participant arrived or left.
type AttendanceAction string

const (
	AttendanceJoin  AttendanceAction = "JOIN"
	AttendanceLeave AttendanceAction = "LEAVE"
)

// AttendanceEntry is one line of the session attendance log.
type AttendanceEntry struct {
	ParticipantID string           `json:"studentId"`
	Name          string           `json:"name"`
	Action        AttendanceAction `json:"action"`
	At            time.Time        `json:"timestamp"`
}

// QuestionRecord is a pushed question as it is persisted.
type QuestionRecord struct {
	ID        string       `json:"id"`
	SessionID string       `json:"sessionId"`
	Spec      QuestionSpec `json:"-"`
	StartTime time.Time    `json:"startTime"`
	EndTime   time.Time    `json:"endTime"`
}

// FocusLog is one persisted focus report.
type FocusLog struct {
	SessionID      string    `json:"sessionId"`
	ParticipantID  string    `json:"studentId"`
	Name           string    `json:"studentName"`
	Score          int       `json:"score"`
	IsTabActive    bool      `json:"isTabActive"`
	IsFaceDetected bool      `json:"isFaceDetected"`
	IsLookingAway  bool      `json:"isLookingAway"`
	IsEyesClosed   bool      `json:"isEyesClosed"`
	Cause          string    `json:"cause"`
	At             time.Time `json:"timestamp"`
}

// FocusSummary aggregates focus logs of a session.
type FocusSummary struct {
	Samples  int
	SumScore int64
}

// Average returns the mean focus score, zero when there are no samples.
func (f FocusSummary) Average() float64 {
	if f.Samples == 0 {
		return 0
	}
	return float64(f.SumScore) / float64(f.Samples)
}

// RankingEntry is a participant's summed points in a session report.
type RankingEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// ReportStats are the headline numbers of a session report.
type ReportStats struct {
	TotalQuestions int           `json:"totalQuestions"`
	TotalAnswers   int           `json:"totalAnswers"`
	AvgAccuracy    int           `json:"avgAccuracy"`
	AvgFocus       int           `json:"avgFocus"`
	TopStudent     *RankingEntry `json:"topStudent"`
}

// SessionReport is the aggregate report served for a session.
type SessionReport struct {
	Session        SessionRecord     `json:"session"`
	ActualDuration int               `json:"actualDuration"`
	Stats          ReportStats       `json:"stats"`
	Attendance     []AttendanceEntry `json:"attendance"`
	Rankings       []RankingEntry    `json:"rankings"`
	Questions      []QuestionSummary `json:"questions"`
}

// QuestionSummary is the per-question accuracy used by reports and analysis.
type QuestionSummary struct {
	ID                 string  `json:"id"`
	Text               string  `json:"text"`
	Mode               string  `json:"mode"`
	Answers            int     `json:"answers"`
	Correct            int     `json:"correct"`
	Accuracy           int     `json:"accuracy"`
	AvgResponseSeconds float64 `json:"avgResponseSeconds"`
}
