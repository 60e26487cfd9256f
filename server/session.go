package server

import (
	"sync"
	"sync/atomic"
	"time"
)

// SessionState is a session's lifecycle state.
type SessionState int32

const (
	// StateUninitialized is the state between session creation and a
	// completed initialize handshake. Only initialize is accepted.
	StateUninitialized SessionState = iota
	// StateActive accepts the full capability method surface.
	StateActive
	// StateClosing is the transient state while a close is in progress.
	StateClosing
	// StateClosed is terminal. The id is invalid for all further dispatch
	// and is never reused.
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is a stateful handshake-scoped context identified by an opaque
// id. The session manager owns it exclusively: it is created on
// initialize, resumed by id, and removed on explicit close or idle
// eviction.
//
// Dispatch within one session is serialized: a second concurrent request
// for the same session id queues behind the in-flight one. Requests for
// distinct sessions are fully independent.
type Session struct {
	id        string
	createdAt time.Time

	// dispatchMu serializes request dispatch within the session.
	dispatchMu sync.Mutex

	state        atomic.Int32
	lastActivity atomic.Int64 // unix nanoseconds

	dispatcher *dispatcher
}

func newSession(id string, srv *Server) *Session {
	s := &Session{
		id:        id,
		createdAt: time.Now(),
	}
	s.lastActivity.Store(s.createdAt.UnixNano())
	s.dispatcher = &dispatcher{srv: srv, session: s}
	return s
}

// ID returns the session's opaque id.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// State returns the session's current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// LastActivity returns the time the session last saw a message.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// touch stamps the session's activity clock.
func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// activate transitions the session to Active after a completed
// initialize handshake.
func (s *Session) activate() {
	s.state.CompareAndSwap(int32(StateUninitialized), int32(StateActive))
}

// close transitions the session to Closed. Called with the manager's map
// lock held; an in-flight dispatch that already passed the state gate
// completes and returns its response.
func (s *Session) close() {
	s.state.Store(int32(StateClosing))
	s.state.Store(int32(StateClosed))
}
