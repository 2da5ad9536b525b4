package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoActiveSession is returned when no live session is running.
	ErrNoActiveSession = errors.New("no active session")
	// ErrParticipantNotFound is returned when a user tries to act before joining.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrInvalidRole indicates a join with a role other than STUDENT or TEACHER.
	ErrInvalidRole = errors.New("invalid role")
	// ErrNotTeacher indicates a teacher-only operation from a student.
	ErrNotTeacher = errors.New("operation requires teacher role")
	// ErrNotStudent indicates a student-only operation from a teacher.
	ErrNotStudent = errors.New("operation requires student role")
	// ErrInvalidQuestion indicates a malformed push_question payload.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrNoActiveQuestion is returned when an answer arrives with no open question.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrQuestionSealed indicates an answer for a question that has been superseded or stopped.
	ErrQuestionSealed = errors.New("question is no longer accepting answers")
	// ErrSubmissionClosed indicates an answer received after the question's end time.
	ErrSubmissionClosed = errors.New("submission window closed")
	// ErrAlreadyAnswered indicates a second submission for the same question.
	ErrAlreadyAnswered = errors.New("answer already submitted for this question")
	// ErrQuestionConflict indicates another process replaced the active question first.
	ErrQuestionConflict = errors.New("active question changed concurrently")
)
