// File: internal/reactor/attachment.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// conn is the per-socket attachment bound to an epoll key. Its phase is a
// tagged variant rather than subclass polymorphism: the HTTP->WebSocket
// upgrade swaps the decoder slot in place and carries the channel across,
// it never replaces the conn itself.

package reactor

import (
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/kestrelws/kestrel/core/httpwire"
	"github.com/kestrelws/kestrel/core/wswire"
)

type phase int

const (
	phaseHTTP phase = iota
	phaseWebSocket
)

type conn struct {
	fd         int
	remoteAddr net.Addr
	id         uuid.UUID
	loop       *Loop

	mu               sync.Mutex
	phase            phase
	httpDec          *httpwire.Decoder
	wsDec            *wswire.Decoder
	outbound         [][]byte
	keepAlive        bool
	awaitingResponse bool
	closed           bool
	closeNotified    bool
}

func newConn(l *Loop, fd int, remoteAddr net.Addr) *conn {
	return &conn{
		fd:         fd,
		remoteAddr: remoteAddr,
		id:         uuid.New(),
		loop:       l,
		phase:      phaseHTTP,
		httpDec:    httpwire.NewDecoder(l.cfg.MaxRequestLine, int64(l.cfg.MaxBody)),
		keepAlive:  true,
	}
}

// upgradeToWebSocket swaps the HTTP decoder for a WebSocket one. The
// channel identity (fd, id, remoteAddr) is untouched, matching the
// "channel handle is phase-independent" rule.
func (c *conn) upgradeToWebSocket() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = phaseWebSocket
	c.httpDec = nil
	c.wsDec = wswire.NewDecoder()
	c.keepAlive = true
}

// notifyClose invokes the handler's ClientClose exactly once for this
// connection, regardless of how many close-triggering events race for it.
func (c *conn) notifyClose(status int) {
	c.mu.Lock()
	if c.closeNotified {
		c.mu.Unlock()
		return
	}
	c.closeNotified = true
	c.mu.Unlock()
	c.loop.handler.ClientClose(c, status)
}
