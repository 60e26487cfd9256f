// Package server implements the protocol session core: the tool and
// resource registries, the execution pipeline, the per-session protocol
// dispatcher, and the session manager with idle eviction.
//
// A Server owns both registries and the session map. Inbound messages
// arrive through HandleMessage tagged with an optional session id; the
// manager resolves or creates the session and the session's dispatcher
// walks the method state machine. Dispatch within one session is
// serialized; sessions are independent of each other.
package server
