package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"focus-session-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Recorder persists session history to Postgres. It implements both
// app.Recorder and app.SessionReader.
type Recorder struct {
	pool *pgxpool.Pool
}

func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

func (r *Recorder) StartSession(ctx context.Context, session domain.SessionRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, teacher_id, started_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		session.ID, session.TeacherID, session.StartedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *Recorder) EndSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sessions SET ended_at = $2 WHERE id = $1`, sessionID, endedAt)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *Recorder) RecordAttendance(ctx context.Context, sessionID string, entry domain.AttendanceEntry) error {
	err := r.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO attendance (session_id, participant_id, name, action, at) VALUES ($1, $2, $3, $4, $5)`,
			sessionID, entry.ParticipantID, entry.Name, string(entry.Action), entry.At); err != nil {
			return err
		}
		if entry.Action != domain.AttendanceJoin {
			return nil
		}
		_, err := tx.Exec(ctx,
			`UPDATE sessions SET total_students_joined = total_students_joined + 1 WHERE id = $1`, sessionID)
		return err
	})
	if err != nil {
		return fmt.Errorf("record attendance: %w", err)
	}
	return nil
}

func (r *Recorder) SaveQuestion(ctx context.Context, q domain.QuestionRecord) error {
	options := q.Spec.Options
	if options == nil {
		options = []string{}
	}
	rawOptions, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO questions (id, session_id, text, mode, options, correct_answer, timer_seconds, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		q.ID, q.SessionID, q.Spec.Text, string(q.Spec.Mode), rawOptions, q.Spec.CorrectAnswer,
		q.Spec.TimerDurationSeconds, q.StartTime, q.EndTime)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (r *Recorder) SaveAnswer(ctx context.Context, sessionID string, a domain.AnswerRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO answers (question_id, session_id, participant_id, participant_name, answer, is_correct,
			latency_seconds, accuracy_points, speed_points, focus_points, total_points, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (question_id, participant_id) DO NOTHING`,
		a.QuestionID, sessionID, a.ParticipantID, a.ParticipantName, a.RawAnswer, a.IsCorrect,
		a.ResponseLatencySeconds, a.Breakdown.Accuracy, a.Breakdown.Speed, a.Breakdown.Focus,
		a.TotalPoints, a.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

func (r *Recorder) SaveFocusLog(ctx context.Context, log domain.FocusLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO focus_logs (session_id, participant_id, name, score, is_tab_active, is_face_detected,
			is_looking_away, is_eyes_closed, cause, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		log.SessionID, log.ParticipantID, log.Name, log.Score, log.IsTabActive, log.IsFaceDetected,
		log.IsLookingAway, log.IsEyesClosed, log.Cause, log.At)
	if err != nil {
		return fmt.Errorf("insert focus log: %w", err)
	}
	return nil
}

func (r *Recorder) GetSession(ctx context.Context, sessionID string) (domain.SessionRecord, error) {
	var s domain.SessionRecord
	err := r.pool.QueryRow(ctx,
		`SELECT id, teacher_id, started_at, ended_at, total_students_joined FROM sessions WHERE id = $1`,
		sessionID).Scan(&s.ID, &s.TeacherID, &s.StartedAt, &s.EndedAt, &s.TotalStudentsJoined)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SessionRecord{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("load session: %w", err)
	}
	return s, nil
}

func (r *Recorder) ListAttendance(ctx context.Context, sessionID string) ([]domain.AttendanceEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT participant_id, name, action, at FROM attendance WHERE session_id = $1 ORDER BY at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var out []domain.AttendanceEntry
	for rows.Next() {
		var e domain.AttendanceEntry
		var action string
		if err := rows.Scan(&e.ParticipantID, &e.Name, &action, &e.At); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		e.Action = domain.AttendanceAction(action)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Recorder) ListQuestions(ctx context.Context, sessionID string) ([]domain.QuestionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, text, mode, options, correct_answer, timer_seconds, start_time, end_time
		FROM questions WHERE session_id = $1 ORDER BY start_time`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []domain.QuestionRecord
	for rows.Next() {
		q := domain.QuestionRecord{SessionID: sessionID}
		var mode string
		var rawOptions []byte
		if err := rows.Scan(&q.ID, &q.Spec.Text, &mode, &rawOptions, &q.Spec.CorrectAnswer,
			&q.Spec.TimerDurationSeconds, &q.StartTime, &q.EndTime); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Spec.Mode = domain.QuestionMode(mode)
		if err := json.Unmarshal(rawOptions, &q.Spec.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *Recorder) ListAnswers(ctx context.Context, sessionID string) ([]domain.AnswerRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT question_id, participant_id, participant_name, answer, is_correct, latency_seconds,
			accuracy_points, speed_points, focus_points, total_points, submitted_at
		FROM answers WHERE session_id = $1 ORDER BY submitted_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var out []domain.AnswerRecord
	for rows.Next() {
		var a domain.AnswerRecord
		if err := rows.Scan(&a.QuestionID, &a.ParticipantID, &a.ParticipantName, &a.RawAnswer, &a.IsCorrect,
			&a.ResponseLatencySeconds, &a.Breakdown.Accuracy, &a.Breakdown.Speed, &a.Breakdown.Focus,
			&a.TotalPoints, &a.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Recorder) FocusSummary(ctx context.Context, sessionID string) (domain.FocusSummary, error) {
	var s domain.FocusSummary
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(score), 0) FROM focus_logs WHERE session_id = $1`,
		sessionID).Scan(&s.Samples, &s.SumScore)
	if err != nil {
		return domain.FocusSummary{}, fmt.Errorf("summarize focus: %w", err)
	}
	return s, nil
}
