// File: internal/reactor/write.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Write pipeline: TryWrite is the cross-thread entry point (component D's
// fast path), handleWritable drains the outbound queue on write-readiness.
// Both hold the attachment mutex around outbound/keepAlive. TryWrite posts
// every epoll interest-op change it triggers through the loop's wake
// queue; handleWritable already runs on the loop goroutine and changes
// interest directly, so unix.EpollCtl always runs on the loop goroutine.

package reactor

import (
	"golang.org/x/sys/unix"

	"github.com/kestrelws/kestrel/api"
)

// TryWrite is safe to call from any goroutine, including the loop itself
// (for the 101 upgrade response and 413/414 responses).
func (c *conn) TryWrite(bufs ...[]byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	if len(c.outbound) == 0 {
		n, werr := writevFD(c.fd, bufs)
		if werr != nil && !isWouldBlock(werr) {
			c.mu.Unlock()
			c.loop.postClose(c, api.CloseAway)
			return werr
		}
		remaining := trimWritten(bufs, n)
		if len(remaining) == 0 {
			keepAlive := c.keepAlive
			c.mu.Unlock()
			if keepAlive {
				c.loop.postRearmRead(c)
			} else {
				c.loop.postClose(c, api.CloseNormal)
			}
			return nil
		}
		c.outbound = append(c.outbound, remaining...)
		c.mu.Unlock()
		c.loop.postArmWrite(c)
		return nil
	}

	c.outbound = append(c.outbound, bufs...)
	c.mu.Unlock()
	c.loop.postArmWrite(c)
	return nil
}

// handleWritable runs only on the loop goroutine, in response to
// write-readiness.
func (l *Loop) handleWritable(c *conn) {
	c.mu.Lock()
	bufs := c.outbound
	n, werr := writevFD(c.fd, bufs)
	if werr != nil && !isWouldBlock(werr) {
		c.mu.Unlock()
		l.closeConn(c, api.CloseAway)
		return
	}

	remaining := trimWritten(bufs, n)
	c.outbound = remaining
	if len(remaining) == 0 {
		keepAlive := c.keepAlive
		c.mu.Unlock()
		if keepAlive {
			l.rearmRead(c)
		} else {
			l.closeConn(c, api.CloseNormal)
		}
		return
	}
	c.mu.Unlock()
	// Queue still non-empty: leave write interest armed for the next
	// write-ready event.
}

func writevFD(fd int, bufs [][]byte) (int, error) {
	if len(bufs) == 0 {
		return 0, nil
	}
	n, err := unix.Writev(fd, bufs)
	if n < 0 {
		n = 0
	}
	return n, err
}

func isWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// trimWritten returns the suffix of bufs not yet delivered, given that n
// bytes were written starting at bufs[0][0]. It never mutates bufs.
func trimWritten(bufs [][]byte, n int) [][]byte {
	for i, b := range bufs {
		if n < len(b) {
			rest := make([][]byte, 0, len(bufs)-i)
			rest = append(rest, b[n:])
			rest = append(rest, bufs[i+1:]...)
			return rest
		}
		n -= len(b)
	}
	return nil
}
