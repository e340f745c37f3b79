package domain

import "errors"

var (
	// ErrPersistenceUnavailable wraps any storage failure crossing the
	// gateway boundary; reads degrade to empty results where possible.
	ErrPersistenceUnavailable = errors.New("persistent store unavailable")
	// ErrCodeExhausted is returned when a unique session code could not be
	// allocated within the retry bound. Fatal to session creation.
	ErrCodeExhausted = errors.New("could not allocate a unique session code")
	// ErrSessionNotFound is returned when no session matches a code or id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotJoinable is returned when joining a session that has
	// already started or closed.
	ErrSessionNotJoinable = errors.New("session is not accepting players")
	// ErrSessionClosed is returned for any operation on a closed session.
	ErrSessionClosed = errors.New("session is closed")
	// ErrNotHost is returned when a non-host player tries to start a session.
	ErrNotHost = errors.New("only the host can start the session")
	// ErrPlayerNotFound is returned when a player id cannot be resolved.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrQuestionNotFound indicates a question id is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidInput rejects malformed codes or empty required fields
	// before any persistence call.
	ErrInvalidInput = errors.New("invalid input")
)
