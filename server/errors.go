package server

import "errors"

// Sentinel errors surfaced by the registries and the session manager.
var (
	// ErrDuplicateCapability is returned when a tool or resource is
	// registered under an identifier that is already taken. Registration
	// conflicts are a startup-fatal misconfiguration; the first
	// registration stays resolvable.
	ErrDuplicateCapability = errors.New("capability already registered")

	// ErrSessionNotFound is returned for an unknown, expired, or closed
	// session id. Session ids are never reused, so a closed session is
	// irrecoverable.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionRequired is returned when a message other than initialize
	// arrives without a session id.
	ErrSessionRequired = errors.New("session id required")
)
