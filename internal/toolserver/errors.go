package toolserver

import "errors"

var (
	// ErrConnection is returned when spawning the subprocess or performing
	// the protocol handshake fails.
	ErrConnection = errors.New("toolserver: connection failed")

	// ErrConnectionTimeout is returned when the handshake or a call exceeds
	// its deadline.
	ErrConnectionTimeout = errors.New("toolserver: connection timed out")

	// ErrDisconnected is returned on invoke against a connection that is not
	// in the Connected state.
	ErrDisconnected = errors.New("toolserver: connection disconnected")

	// ErrToolNotFound is returned when the requested tool is absent from the
	// server's cached catalog.
	ErrToolNotFound = errors.New("toolserver: tool not found")

	// ErrToolInvocation is returned when the remote server reports an
	// application-level error for a call.
	ErrToolInvocation = errors.New("toolserver: tool invocation failed")

	// ErrNotConnected is returned by the registry when no live connection
	// exists for the requested server name.
	ErrNotConnected = errors.New("toolserver: no live connection")

	// ErrUnknownServer is returned when no config is registered under the
	// requested name.
	ErrUnknownServer = errors.New("toolserver: unknown server")
)
