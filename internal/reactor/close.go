// File: internal/reactor/close.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Component G: the uniform close path. Regardless of which component
// detected the failure, every connection is torn down exactly once here.

package reactor

import "github.com/kestrelws/kestrel/api"

// closeConn must run on the loop goroutine: it mutates the epoll interest
// set and the loop's connection table.
func (l *Loop) closeConn(c *conn, status int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	l.epollDel(c.fd)
	closeFD(c.fd)
	delete(l.conns, c.fd)

	c.mu.Lock()
	ph := c.phase
	c.mu.Unlock()

	if ph == phaseHTTP {
		c.notifyClose(api.CloseHTTP)
	} else {
		c.notifyClose(status)
	}
}

// postClose schedules closeConn on the loop goroutine; safe to call from
// any goroutine.
func (l *Loop) postClose(c *conn, status int) {
	l.wake.Post(func() {
		l.closeConn(c, status)
	})
}
