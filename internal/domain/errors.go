package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz definition could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound is returned when a session id does not resolve.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionCompleted rejects answer writes after a session completed.
	ErrSessionCompleted = errors.New("quiz session already completed")
	// ErrAnswerRequired blocks forward navigation past an unanswered required question.
	ErrAnswerRequired = errors.New("answer required")
	// ErrLeadFieldRequired is returned when a required lead-capture field is empty.
	ErrLeadFieldRequired = errors.New("lead field required")
)
