// Package session is the public surface of the H2GIS bridge.
//
// A Session is one client of the shared worker engine: Open adds a
// reference, Release drops it, and the engine shuts the native runtime
// down when the last session releases. Every database call validates
// its handles locally, then runs the corresponding native entry point
// on the worker thread and blocks for the result.
//
// Sessions track the connections, statements and result sets opened
// through them; anything still open at Release time is closed on the
// caller's behalf before the engine reference is dropped.
//
// Methods on a Session are safe for concurrent use. The ordering
// guarantee is global: calls from all sessions land in one FIFO queue
// and execute one at a time.
package session
