package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session id is unknown or has expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrQuizNotFound indicates no stored quiz matches the requested slug.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAlreadySubmitted is returned when a completed session is submitted again.
	ErrAlreadySubmitted = errors.New("already submitted")
	// ErrNoQuizzesFound is returned when an imported document yields zero quizzes.
	ErrNoQuizzesFound = errors.New("no quizzes found")
	// ErrEmptyDocument is returned when an import carries no content at all.
	ErrEmptyDocument = errors.New("no content provided")
	// ErrQuestionOutOfRange indicates a submitted answer references a missing question index.
	ErrQuestionOutOfRange = errors.New("question index out of range")
	// ErrGeneratorUnavailable is returned when question generation is not configured.
	ErrGeneratorUnavailable = errors.New("question generator not configured")
)
