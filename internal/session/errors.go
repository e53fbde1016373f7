package session

import "errors"

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyQuery      = errors.New("empty query")
)
