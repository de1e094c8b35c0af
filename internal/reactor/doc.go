// File: internal/reactor/doc.go
// Package reactor implements the single-threaded epoll event loop that
// multiplexes HTTP/1.1 and WebSocket connections, decodes protocol units
// off a loop-owned scratch buffer, and dispatches complete requests and
// frames to an api.Handler running on a worker pool external to the loop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package reactor
