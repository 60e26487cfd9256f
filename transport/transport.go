// Package transport provides transport implementations for serving
// sessions over stdio, HTTP, and WebSocket connections.
package transport

import "context"

// Handler is the inbound surface transports deliver messages to. It is
// satisfied by server.Server.
type Handler interface {
	// HandleMessage dispatches one raw message on behalf of the given
	// session. An empty sessionID is valid only for an initialize
	// request, which opens a new session. The returned session id names
	// the session the message ran against; the returned body is a
	// complete wire-level reply, or nil for notifications. The error is
	// advisory for transport-level status mapping and is already
	// reflected in the body when one is returned.
	HandleMessage(ctx context.Context, sessionID string, body []byte) (resp []byte, session string, err error)

	// CloseSession terminates the identified session.
	CloseSession(ctx context.Context, sessionID string) error

	// Status reports the server identity and live session count.
	Status() (name, version string, sessions int)
}

// Transport serves a message stream against a Handler.
type Transport interface {
	// Serve starts serving and blocks until the context is cancelled
	// or a fatal error occurs.
	Serve(ctx context.Context, handler Handler) error

	// Addr returns the transport address.
	Addr() string
}
