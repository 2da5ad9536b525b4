package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"focus-session-service/internal/domain"
	"focus-session-service/internal/voice"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Settings tune a classroom's question and alert behaviour.
type Settings struct {
	DefaultTimer         time.Duration
	SubmitGrace          time.Duration
	DiscussionDelay      time.Duration
	DistractionThreshold int
	LeaderboardSize      int
}

// DefaultSettings mirror the values shipped in config/config.yaml.
func DefaultSettings() Settings {
	return Settings{
		DefaultTimer:         30 * time.Second,
		DiscussionDelay:      time.Second,
		DistractionThreshold: 50,
		LeaderboardSize:      5,
	}
}

// Deps are the collaborators a classroom talks to.
type Deps struct {
	Gate     QuestionGate
	Focus    FocusStore
	Recorder Recorder
	Logger   *zap.Logger
	Now      func() time.Time
}

// Submission is a student's answer as received on the wire.
type Submission struct {
	QuestionID string
	Answer     string
	SubmitTime time.Time
}

// Classroom is one live session: roster, the active question and the event
// fan-out to connected clients. All mutation goes through mu.
type Classroom struct {
	id        string
	startedAt time.Time
	now       func() time.Time
	logger    *zap.Logger
	gate      QuestionGate
	focus     FocusStore
	recorder  Recorder
	settings  Settings

	mu              sync.RWMutex
	participants    map[string]*domain.Participant
	joinSeq         int
	active          *domain.ActiveQuestion
	phase           Phase
	discussionTimer *time.Timer
	subscribers     map[*subscriber]struct{}
	closed          bool

	// focusMu serialises focus handling so snapshots go out in report order.
	focusMu sync.Mutex
}

type subscriber struct {
	ch            chan Event
	participantID string
	role          domain.Role
}

// NewClassroom builds an empty classroom. Persistence of the session record
// itself is the hub's job.
func NewClassroom(id string, deps Deps, settings Settings) *Classroom {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.LeaderboardSize <= 0 {
		settings.LeaderboardSize = 5
	}
	if settings.DefaultTimer <= 0 {
		settings.DefaultTimer = 30 * time.Second
	}
	return &Classroom{
		id:           id,
		startedAt:    now(),
		now:          now,
		logger:       logger.With(zap.String("session_id", id)),
		gate:         deps.Gate,
		focus:        deps.Focus,
		recorder:     deps.Recorder,
		settings:     settings,
		participants: make(map[string]*domain.Participant),
		phase:        PhaseIdle,
		subscribers:  make(map[*subscriber]struct{}),
	}
}

// ID returns the session id.
func (c *Classroom) ID() string { return c.id }

// StartedAt returns when the classroom was opened.
func (c *Classroom) StartedAt() time.Time { return c.startedAt }

// Phase returns the current lifecycle phase.
func (c *Classroom) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// ActiveQuestion returns a copy of the active question, if any.
func (c *Classroom) ActiveQuestion() (domain.ActiveQuestion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return domain.ActiveQuestion{}, false
	}
	q := *c.active
	q.Answers = make(map[string]domain.AnswerRecord, len(c.active.Answers))
	for k, v := range c.active.Answers {
		q.Answers[k] = v
	}
	return q, true
}

// Participant returns a copy of a participant's profile.
func (c *Classroom) Participant(participantID string) (domain.Participant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.participants[participantID]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

// Join registers a participant. Joining again with the same id refreshes the
// display name and keeps the score.
func (c *Classroom) Join(ctx context.Context, participantID, name string, role domain.Role) (domain.Participant, error) {
	if role != domain.RoleStudent && role != domain.RoleTeacher {
		return domain.Participant{}, domain.ErrInvalidRole
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Anonymous"
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.Participant{}, domain.ErrNoActiveSession
	}
	now := c.now()
	p, ok := c.participants[participantID]
	if ok {
		p.DisplayName = name
	} else {
		c.joinSeq++
		p = &domain.Participant{
			ID:          participantID,
			DisplayName: name,
			Role:        role,
			JoinedAt:    now,
			JoinSeq:     c.joinSeq,
		}
		c.participants[participantID] = p
	}
	joined := *p
	c.publishLocked(Event{Type: EventUserCount, Payload: UserCountPayload{Count: c.studentCountLocked()}})
	c.mu.Unlock()

	if !ok && role == domain.RoleStudent {
		c.recordAttendance(ctx, joined, domain.AttendanceJoin, now)
	}
	c.logger.Info("participant joined",
		zap.String("participant_id", participantID),
		zap.String("role", string(role)))
	return joined, nil
}

// Leave drops a participant from the roster and the focus store.
func (c *Classroom) Leave(ctx context.Context, participantID string) {
	c.mu.Lock()
	p, ok := c.participants[participantID]
	if !ok {
		c.mu.Unlock()
		return
	}
	left := *p
	delete(c.participants, participantID)
	if !c.closed {
		c.publishLocked(Event{Type: EventUserCount, Payload: UserCountPayload{Count: c.studentCountLocked()}})
	}
	c.mu.Unlock()

	if left.Role != domain.RoleStudent {
		return
	}
	if err := c.focus.Delete(ctx, c.id, participantID); err != nil {
		c.logger.Warn("drop focus record failed", zap.String("participant_id", participantID), zap.Error(err))
	}
	c.recordAttendance(ctx, left, domain.AttendanceLeave, c.now())
	c.publishSnapshot(ctx)
}

// PushQuestion opens a new question and seals the previous one. It returns
// the new active question.
func (c *Classroom) PushQuestion(ctx context.Context, participantID string, spec domain.QuestionSpec) (domain.ActiveQuestion, error) {
	spec, err := c.normalizeSpec(spec)
	if err != nil {
		return domain.ActiveQuestion{}, err
	}

	c.mu.Lock()
	if err := c.requireRoleLocked(participantID, domain.RoleTeacher); err != nil {
		c.mu.Unlock()
		return domain.ActiveQuestion{}, err
	}

	prevID := ""
	if c.active != nil {
		prevID = c.active.ID
	}
	nextID := uuid.NewString()
	if err := c.gate.Open(ctx, c.id, prevID, nextID); err != nil {
		if errors.Is(err, domain.ErrQuestionConflict) {
			c.mu.Unlock()
			return domain.ActiveQuestion{}, err
		}
		c.logger.Warn("question gate open failed, using local state", zap.Error(err))
	}

	start := c.now()
	if c.active != nil {
		c.active.Sealed = true
	}
	c.stopDiscussionTimerLocked()
	q := &domain.ActiveQuestion{
		ID:        nextID,
		Spec:      spec,
		StartTime: start,
		EndTime:   start.Add(spec.Duration()),
		Answers:   make(map[string]domain.AnswerRecord),
	}
	c.active = q
	c.phase = PhaseQuestion

	// Answers reference the question row, so it is stored before any
	// student can see the question.
	if err := c.recorder.SaveQuestion(ctx, domain.QuestionRecord{
		ID:        q.ID,
		SessionID: c.id,
		Spec:      q.Spec,
		StartTime: q.StartTime,
		EndTime:   q.EndTime,
	}); err != nil {
		c.logger.Warn("persist question failed", zap.String("question_id", q.ID), zap.Error(err))
	}

	c.publishLocked(Event{Type: EventNewQuestion, Payload: newQuestionPayload(q, false), audience: toStudents})
	c.publishLocked(Event{Type: EventNewQuestion, Payload: newQuestionPayload(q, true), audience: toTeachers})
	c.publishLocked(Event{Type: EventSessionPhase, Payload: SessionPhasePayload{Phase: PhaseQuestion, QuestionID: q.ID}})
	c.scheduleDiscussionLocked(q.ID, q.EndTime.Sub(start)+c.settings.DiscussionDelay)
	opened := *q
	c.mu.Unlock()

	c.logger.Info("question pushed",
		zap.String("question_id", opened.ID),
		zap.String("mode", string(spec.Mode)),
		zap.Int("timer_seconds", spec.TimerDurationSeconds))
	return opened, nil
}

func (c *Classroom) normalizeSpec(spec domain.QuestionSpec) (domain.QuestionSpec, error) {
	spec.Text = strings.TrimSpace(spec.Text)
	if spec.Text == "" {
		return spec, domain.ErrInvalidQuestion
	}
	switch spec.Mode {
	case domain.ModeMCQ:
		options := make([]string, 0, len(spec.Options))
		for _, o := range spec.Options {
			if o = strings.TrimSpace(o); o != "" {
				options = append(options, o)
			}
		}
		if len(options) == 0 {
			return spec, domain.ErrInvalidQuestion
		}
		spec.Options = options
	case domain.ModeFreeText:
		spec.Options = nil
	default:
		return spec, domain.ErrInvalidQuestion
	}
	if spec.TimerDurationSeconds <= 0 {
		spec.TimerDurationSeconds = int(c.settings.DefaultTimer / time.Second)
	}
	return spec, nil
}

// SubmitAnswer scores a student's single answer to the active question.
func (c *Classroom) SubmitAnswer(ctx context.Context, participantID string, sub Submission) (domain.AnswerResult, error) {
	// The focus store may be remote; read it before taking the lock.
	focusScore := c.focusScore(ctx, participantID)

	c.mu.Lock()
	p, ok := c.participants[participantID]
	if !ok {
		c.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrParticipantNotFound
	}
	if p.Role != domain.RoleStudent {
		c.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrNotStudent
	}
	q := c.active
	if q == nil {
		c.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrNoActiveQuestion
	}
	if q.Sealed || (sub.QuestionID != "" && sub.QuestionID != q.ID) {
		c.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrQuestionSealed
	}
	now := c.now()
	if now.After(q.EndTime.Add(c.settings.SubmitGrace)) {
		c.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrSubmissionClosed
	}
	if _, dup := q.Answers[participantID]; dup {
		c.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrAlreadyAnswered
	}
	if err := c.gate.Claim(ctx, c.id, q.ID, participantID); err != nil {
		if errors.Is(err, domain.ErrAlreadyAnswered) || errors.Is(err, domain.ErrQuestionSealed) {
			c.mu.Unlock()
			return domain.AnswerResult{}, err
		}
		c.logger.Warn("question gate claim failed, using local state", zap.Error(err))
	}

	submitted := sub.SubmitTime
	if submitted.IsZero() || submitted.After(now) {
		submitted = now
	}
	if submitted.Before(q.StartTime) {
		submitted = q.StartTime
	}
	latency := submitted.Sub(q.StartTime)

	scored := ScoreAnswer(q.Spec.CorrectAnswer, sub.Answer, latency, q.Spec.Duration(), focusScore)
	record := domain.AnswerRecord{
		QuestionID:             q.ID,
		ParticipantID:          participantID,
		ParticipantName:        p.DisplayName,
		RawAnswer:              sub.Answer,
		IsCorrect:              scored.Correct,
		ResponseLatencySeconds: latency.Seconds(),
		Breakdown:              scored.Breakdown,
		TotalPoints:            scored.Total,
		SubmittedAt:            now,
	}
	q.Answers[participantID] = record
	p.CumulativeScore += scored.Total

	result := domain.AnswerResult{
		Correct:    scored.Correct,
		Points:     scored.Total,
		Message:    scored.ResultMessage(),
		TotalScore: p.CumulativeScore,
	}
	c.publishLocked(Event{Type: EventAnswerResult, Payload: result, audience: toParticipant, target: participantID})
	c.publishLocked(Event{Type: EventTeacherUpdate, Payload: TeacherUpdatePayload{
		QuestionID:   q.ID,
		TotalAnswers: len(q.Answers),
		LastAnswer:   LastAnswer{StudentID: participantID, IsCorrect: scored.Correct, Points: scored.Total},
	}})
	c.publishLocked(Event{Type: EventLeaderboardUpdate, Payload: c.leaderboardLocked()})
	c.mu.Unlock()

	if err := c.recorder.SaveAnswer(ctx, c.id, record); err != nil {
		c.logger.Warn("persist answer failed", zap.String("question_id", record.QuestionID), zap.Error(err))
	}
	return result, nil
}

// focusScore is the participant's latest reported focus, 100 if none.
func (c *Classroom) focusScore(ctx context.Context, participantID string) float64 {
	report, ok, err := c.focus.Get(ctx, c.id, participantID)
	if err != nil {
		c.logger.Warn("read focus failed, using default", zap.String("participant_id", participantID), zap.Error(err))
		return defaultFocusScore
	}
	if !ok {
		return defaultFocusScore
	}
	return float64(report.Score)
}

// StopQuestion seals the active question ahead of its timer.
func (c *Classroom) StopQuestion(ctx context.Context, participantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireRoleLocked(participantID, domain.RoleTeacher); err != nil {
		return err
	}
	q := c.active
	if q == nil || q.Sealed {
		return domain.ErrNoActiveQuestion
	}
	q.Sealed = true
	if err := c.gate.Close(ctx, c.id, q.ID); err != nil {
		c.logger.Warn("question gate close failed", zap.String("question_id", q.ID), zap.Error(err))
	}
	c.stopDiscussionTimerLocked()
	c.phase = PhaseDiscussion
	c.publishLocked(Event{Type: EventSessionPhase, Payload: SessionPhasePayload{Phase: PhaseDiscussion, QuestionID: q.ID}})
	return nil
}

// VoiceCommand classifies a teacher's transcript. STOP_TIMER is acted on
// here; other commands are returned for the teacher's client to act on.
func (c *Classroom) VoiceCommand(ctx context.Context, participantID, transcript string) (voice.Command, error) {
	if err := c.requireRole(participantID, domain.RoleTeacher); err != nil {
		return voice.Unknown, err
	}
	cmd := voice.Classify(transcript)
	if cmd == voice.StopTimer {
		if err := c.StopQuestion(ctx, participantID); err != nil && !errors.Is(err, domain.ErrNoActiveQuestion) {
			return cmd, err
		}
	}
	return cmd, nil
}

// RelaySignal forwards an opaque signalling payload to one participant.
func (c *Classroom) RelaySignal(senderID, targetID string, payload SignalPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.participants[senderID]; !ok {
		return domain.ErrParticipantNotFound
	}
	if _, ok := c.participants[targetID]; !ok {
		return domain.ErrParticipantNotFound
	}
	payload.Sender = senderID
	c.publishLocked(Event{Type: EventSignal, Payload: payload, audience: toParticipant, target: targetID})
	return nil
}

// RequireTeacher returns domain.ErrNotTeacher unless participantID is a teacher here.
func (c *Classroom) RequireTeacher(participantID string) error {
	return c.requireRole(participantID, domain.RoleTeacher)
}

func (c *Classroom) requireRole(participantID string, role domain.Role) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.requireRoleLocked(participantID, role)
}

func (c *Classroom) requireRoleLocked(participantID string, role domain.Role) error {
	p, ok := c.participants[participantID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if p.Role != role {
		if role == domain.RoleTeacher {
			return domain.ErrNotTeacher
		}
		return domain.ErrNotStudent
	}
	return nil
}

// Subscribe returns the event stream for a joined participant. The first
// events replay the current question and leaderboard for late joiners. The
// channel is closed when the classroom closes or cancel is called.
func (c *Classroom) Subscribe(participantID string) (<-chan Event, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, domain.ErrNoActiveSession
	}
	p, ok := c.participants[participantID]
	if !ok {
		return nil, nil, domain.ErrParticipantNotFound
	}

	sub := &subscriber{ch: make(chan Event, 32), participantID: participantID, role: p.Role}
	c.subscribers[sub] = struct{}{}

	sub.ch <- Event{Type: EventJoined, Payload: JoinedPayload{
		ParticipantID: participantID,
		SessionID:     c.id,
		Role:          p.Role,
		Name:          p.DisplayName,
	}}
	if q := c.active; q != nil && !q.Sealed {
		sub.ch <- Event{Type: EventNewQuestion, Payload: newQuestionPayload(q, p.Role == domain.RoleTeacher)}
	}
	sub.ch <- Event{Type: EventSessionPhase, Payload: c.phasePayloadLocked()}
	sub.ch <- Event{Type: EventLeaderboardUpdate, Payload: c.leaderboardLocked()}

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[sub]; ok {
			delete(c.subscribers, sub)
			close(sub.ch)
		}
		c.mu.Unlock()
	}
	return sub.ch, cancel, nil
}

// Close ends the classroom: timers stop and every subscription channel closes.
func (c *Classroom) Close(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopDiscussionTimerLocked()
	if c.active != nil {
		c.active.Sealed = true
		if err := c.gate.Close(ctx, c.id, c.active.ID); err != nil {
			c.logger.Warn("question gate close failed", zap.String("question_id", c.active.ID), zap.Error(err))
		}
	}
	for sub := range c.subscribers {
		delete(c.subscribers, sub)
		close(sub.ch)
	}
}

func (c *Classroom) phasePayloadLocked() SessionPhasePayload {
	payload := SessionPhasePayload{Phase: c.phase}
	if c.active != nil && c.phase != PhaseIdle {
		payload.QuestionID = c.active.ID
	}
	return payload
}

func (c *Classroom) scheduleDiscussionLocked(questionID string, after time.Duration) {
	c.discussionTimer = time.AfterFunc(after, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || c.active == nil || c.active.ID != questionID || c.phase != PhaseQuestion {
			return
		}
		c.phase = PhaseDiscussion
		c.publishLocked(Event{Type: EventSessionPhase, Payload: SessionPhasePayload{Phase: PhaseDiscussion, QuestionID: questionID}})
	})
}

func (c *Classroom) stopDiscussionTimerLocked() {
	if c.discussionTimer != nil {
		c.discussionTimer.Stop()
		c.discussionTimer = nil
	}
}

// publishLocked fans an event out to matching subscribers. A full buffer
// loses its oldest event rather than blocking the classroom.
func (c *Classroom) publishLocked(e Event) {
	for sub := range c.subscribers {
		if !e.deliverableTo(sub.participantID, sub.role) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- e
		}
	}
}

func (c *Classroom) studentCountLocked() int {
	n := 0
	for _, p := range c.participants {
		if p.Role == domain.RoleStudent {
			n++
		}
	}
	return n
}

func (c *Classroom) recordAttendance(ctx context.Context, p domain.Participant, action domain.AttendanceAction, at time.Time) {
	err := c.recorder.RecordAttendance(ctx, c.id, domain.AttendanceEntry{
		ParticipantID: p.ID,
		Name:          p.DisplayName,
		Action:        action,
		At:            at,
	})
	if err != nil {
		c.logger.Warn("persist attendance failed",
			zap.String("participant_id", p.ID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func newQuestionPayload(q *domain.ActiveQuestion, withAnswer bool) NewQuestionPayload {
	payload := NewQuestionPayload{
		QuestionID:    q.ID,
		QuestionText:  q.Spec.Text,
		Mode:          q.Spec.Mode.WireName(),
		Options:       q.Spec.Options,
		TimerDuration: q.Spec.TimerDurationSeconds,
		StartTime:     q.StartTime.UnixMilli(),
		EndTime:       q.EndTime.UnixMilli(),
	}
	if payload.Options == nil {
		payload.Options = []string{}
	}
	if withAnswer {
		payload.CorrectAnswer = q.Spec.CorrectAnswer
	}
	return payload
}
