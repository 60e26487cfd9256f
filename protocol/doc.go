// Package protocol defines the JSON-RPC 2.0 envelope, the error code
// surface, the method and protocol version constants, and protocol version
// negotiation.
//
// The envelope is the only shape the wire understands: requests carry the
// "2.0" version tag, an optional id, a method, and optional params.
// Responses echo the request id and carry exactly one of result or error.
// Requests without an id are notifications and never produce a response.
package protocol
