package app

import (
	"context"
	"sort"

	"focus-session-service/internal/domain"
	"go.uber.org/zap"
)

// ReportFocus stores a student's latest focus report, alerts teachers when
// the score is below the distraction threshold and republishes the class
// snapshot. Reports from teachers are ignored.
func (c *Classroom) ReportFocus(ctx context.Context, participantID string, report domain.FocusReport) error {
	c.mu.RLock()
	p, ok := c.participants[participantID]
	var student domain.Participant
	if ok {
		student = *p
	}
	c.mu.RUnlock()
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if student.Role != domain.RoleStudent {
		return nil
	}
	report.Score = clampScore(report.Score)

	c.focusMu.Lock()
	defer c.focusMu.Unlock()

	if err := c.focus.Put(ctx, c.id, participantID, report); err != nil {
		c.logger.Warn("store focus failed", zap.String("participant_id", participantID), zap.Error(err))
	}

	if alert, ok := distractionAlert(student, report, c.settings.DistractionThreshold); ok {
		c.mu.Lock()
		c.publishLocked(Event{Type: EventDistractedStudent, Payload: alert, audience: toTeachers})
		c.mu.Unlock()
	}

	if err := c.recorder.SaveFocusLog(ctx, domain.FocusLog{
		SessionID:      c.id,
		ParticipantID:  participantID,
		Name:           student.DisplayName,
		Score:          report.Score,
		IsTabActive:    report.IsTabActive,
		IsFaceDetected: report.IsFaceDetected,
		IsLookingAway:  report.IsLookingAway,
		IsEyesClosed:   report.IsEyesClosed,
		Cause:          report.Cause,
		At:             c.now(),
	}); err != nil {
		c.logger.Warn("persist focus log failed", zap.String("participant_id", participantID), zap.Error(err))
	}

	c.publishSnapshotLocked(ctx)
	return nil
}

// ClassSnapshot returns every student's latest focus in join order.
func (c *Classroom) ClassSnapshot(ctx context.Context) ([]domain.ParticipantFocus, error) {
	students := c.students()
	reports, err := c.focus.All(ctx, c.id)
	if err != nil {
		return nil, err
	}
	return buildSnapshot(students, reports), nil
}

// Leaderboard returns the current top students.
func (c *Classroom) Leaderboard() []domain.LeaderboardEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.leaderboardLocked()
}

func (c *Classroom) publishSnapshot(ctx context.Context) {
	c.focusMu.Lock()
	defer c.focusMu.Unlock()
	c.publishSnapshotLocked(ctx)
}

// publishSnapshotLocked requires focusMu.
func (c *Classroom) publishSnapshotLocked(ctx context.Context) {
	snapshot, err := c.ClassSnapshot(ctx)
	if err != nil {
		c.logger.Warn("build focus snapshot failed", zap.Error(err))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.publishLocked(Event{Type: EventClassFocusSnapshot, Payload: snapshot})
}

func (c *Classroom) students() []domain.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.studentsLocked()
}

func (c *Classroom) studentsLocked() []domain.Participant {
	out := make([]domain.Participant, 0, len(c.participants))
	for _, p := range c.participants {
		if p.Role == domain.RoleStudent {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinSeq < out[j].JoinSeq })
	return out
}

// leaderboardLocked ranks students by cumulative score; equal scores keep
// join order.
func (c *Classroom) leaderboardLocked() []domain.LeaderboardEntry {
	students := c.studentsLocked()
	sort.SliceStable(students, func(i, j int) bool {
		return students[i].CumulativeScore > students[j].CumulativeScore
	})
	if len(students) > c.settings.LeaderboardSize {
		students = students[:c.settings.LeaderboardSize]
	}
	entries := make([]domain.LeaderboardEntry, 0, len(students))
	for _, s := range students {
		entries = append(entries, domain.LeaderboardEntry{ID: s.ID, Name: s.DisplayName, Score: s.CumulativeScore})
	}
	return entries
}

// buildSnapshot lists students in join order. Students that never reported
// show a full score with no cause.
func buildSnapshot(students []domain.Participant, reports map[string]domain.FocusReport) []domain.ParticipantFocus {
	out := make([]domain.ParticipantFocus, 0, len(students))
	for _, s := range students {
		row := domain.ParticipantFocus{StudentID: s.ID, Name: s.DisplayName, Score: int(defaultFocusScore)}
		if r, ok := reports[s.ID]; ok {
			row.Score = r.Score
			row.Cause = r.Cause
			row.IsLookingAway = r.IsLookingAway
			row.IsEyesClosed = r.IsEyesClosed
		}
		out = append(out, row)
	}
	return out
}

func distractionAlert(student domain.Participant, report domain.FocusReport, threshold int) (domain.DistractionAlert, bool) {
	if threshold <= 0 {
		threshold = 50
	}
	if report.Score >= threshold {
		return domain.DistractionAlert{}, false
	}
	return domain.DistractionAlert{
		StudentID:   student.ID,
		StudentName: student.DisplayName,
		Score:       report.Score,
		Cause:       report.DerivedCause(),
	}, true
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
