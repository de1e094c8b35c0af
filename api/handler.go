// File: api/handler.go
// Package api defines the application-facing collaborator contracts the
// reactor core dispatches into: the request/frame handler, the
// handler-facing connection handle, and the response callback shape.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/kestrelws/kestrel/core/httpwire"
	"github.com/kestrelws/kestrel/core/wswire"
)

// ResponseCallback is invoked by application code with a complete HTTP
// response; invoking it results in tryWrite calls on the owning
// connection. It must be called at most once per request.
type ResponseCallback func(status int, header http.Header, body []byte)

// Handler is the external collaborator the reactor core dispatches into.
// Implementations must not block for long inside any method: the core
// expects handlers to be run on a pool external to the reactor (see
// internal/workerpool), not on the reactor goroutine itself. The exception
// is ClientClose for a connection the loop tears down, which runs on the
// reactor goroutine.
type Handler interface {
	// HandleHTTP is invoked once per complete HTTP request. respond must
	// be called exactly once to produce the response for this request.
	HandleHTTP(req *httpwire.Request, ch Channel, respond ResponseCallback)

	// HandleFrame is invoked once per complete text/binary WebSocket frame.
	HandleFrame(ch Channel, frame *wswire.Frame)

	// ClientClose is invoked exactly once per connection close, with
	// CloseHTTP for HTTP-phase closes or a WebSocket close code otherwise.
	ClientClose(ch Channel, status int)

	// Close is invoked once when the reactor stops.
	Close()
}

// Channel is the opaque, handler-facing handle for a single connection. It
// is phase-independent: the same Channel survives an HTTP->WebSocket
// upgrade.
type Channel interface {
	// ID returns a diagnostic identifier for log correlation; it plays no
	// part in the wire protocol.
	ID() uuid.UUID

	// RemoteAddr reports the peer address.
	RemoteAddr() net.Addr

	// Reset prepares the channel for the next HTTP request/response
	// cycle. Called by the reactor loop between requests; never by a
	// handler goroutine.
	Reset()

	// TryWrite enqueues buffers for delivery to the peer, preserving call
	// order on the wire. Safe to call from any goroutine, including the
	// reactor loop itself. A no-op on an already-closed channel.
	TryWrite(bufs ...[]byte) error
}
