// File: internal/reactor/read.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Component C: fills the loop-owned scratch buffer from one socket and
// dispatches decoded protocol units by phase. HTTP decoding stops after
// the first complete request is handed off (resolving the open question
// in favor of pausing read-interest rather than overlapping in-flight
// requests on one connection); WebSocket decoding drains every frame
// already buffered since frames carry no per-connection in-flight limit.

package reactor

import (
	"net/http"

	"golang.org/x/sys/unix"

	"github.com/kestrelws/kestrel/api"
	"github.com/kestrelws/kestrel/core/httpwire"
	"github.com/kestrelws/kestrel/core/wswire"
)

func (l *Loop) handleReadable(c *conn) {
	buf := l.scratch[:cap(l.scratch)]
	n, err := unix.Read(c.fd, buf)
	if err != nil {
		if isWouldBlock(err) {
			return
		}
		l.closeConn(c, api.CloseAway)
		return
	}
	if n == 0 {
		l.closeConn(c, api.CloseAway)
		return
	}

	data := buf[:n]
	c.mu.Lock()
	ph := c.phase
	c.mu.Unlock()

	switch ph {
	case phaseHTTP:
		c.httpDec.Feed(data)
		l.tryDecodeHTTP(c)
	case phaseWebSocket:
		c.wsDec.Feed(data)
		l.drainWS(c)
	}
}

// rearmRead runs on the loop goroutine once a response has fully drained.
// A connection may already hold a second, fully-buffered request from the
// same socket read that produced the first one; decoding resumes on it
// immediately instead of waiting for a socket event that may never come.
func (l *Loop) rearmRead(c *conn) {
	c.mu.Lock()
	closed := c.closed
	ph := c.phase
	c.mu.Unlock()
	if closed {
		return
	}
	if ph == phaseHTTP && c.httpDec.Pending() {
		l.tryDecodeHTTP(c)
		return
	}
	l.setInterest(c.fd, unix.EPOLLIN)
}

// tryDecodeHTTP decodes at most one request out of the decoder's
// accumulator and either dispatches it or re-arms read-interest to wait
// for more bytes. Must run on the loop goroutine.
func (l *Loop) tryDecodeHTTP(c *conn) {
	req, err := c.httpDec.Decode()
	if err != nil {
		apiErr, _ := err.(*api.Error)
		switch {
		case err == api.ErrNeedMore:
			l.setInterest(c.fd, unix.EPOLLIN)
			return
		case apiErr != nil && apiErr.Code == api.ErrCodeBodyTooLarge:
			c.mu.Lock()
			c.keepAlive = false
			c.mu.Unlock()
			c.TryWrite(httpwire.EncodeBodyTooLarge())
			return
		case apiErr != nil && apiErr.Code == api.ErrCodeLineTooLong:
			c.mu.Lock()
			c.keepAlive = false
			c.mu.Unlock()
			c.TryWrite(httpwire.EncodeRequestLineTooLong())
			return
		default:
			l.closeConn(c, api.CloseHTTP)
			return
		}
	}

	c.Reset()

	if req.IsWebSocketUpgrade {
		c.upgradeToWebSocket()
		c.TryWrite(wswire.UpgradeResponse(req.SecWebSocketKey))
		return
	}

	c.mu.Lock()
	c.keepAlive = req.KeepAlive
	c.awaitingResponse = true
	c.mu.Unlock()

	// At-most-one-in-flight: pause read interest until this request's
	// response has fully drained (see rearmRead, reached from write.go's
	// TryWrite and handleWritable).
	l.setInterest(c.fd, 0)

	l.workers.Submit(func() {
		l.handler.HandleHTTP(req, c, func(status int, header http.Header, body []byte) {
			resp := httpwire.EncodeResponse(status, header, body)
			c.mu.Lock()
			c.awaitingResponse = false
			c.mu.Unlock()
			c.TryWrite(resp)
		})
	})
}

func (l *Loop) drainWS(c *conn) {
	for {
		frame, err := c.wsDec.Decode()
		if err != nil {
			if err == api.ErrNeedMore {
				return
			}
			l.closeConn(c, api.CloseMessageTooBig)
			return
		}

		switch frame.Opcode {
		case wswire.OpcodeText, wswire.OpcodeBinary:
			fr := frame
			l.workers.Submit(func() { l.handler.HandleFrame(c, fr) })
		case wswire.OpcodePing:
			payload := frame.Payload
			l.workers.Submit(func() { c.TryWrite(wswire.EncodePong(payload)) })
		case wswire.OpcodeClose:
			status := frame.CloseCode
			if status == 0 {
				status = wswire.CloseNoStatusRcvd
			}
			l.workers.Submit(func() {
				c.notifyClose(status)
				c.TryWrite(wswire.EncodeClose(wswire.CloseNormalClosure))
			})
		}
	}
}
