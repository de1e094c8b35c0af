// File: internal/reactor/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// conn implements api.Channel directly: the handler-facing handle and the
// loop's internal attachment are the same object, since both need to
// reach the same mutex-protected outbound queue.

package reactor

import (
	"net"

	"github.com/google/uuid"

	"github.com/kestrelws/kestrel/api"
)

var _ api.Channel = (*conn)(nil)

func (c *conn) ID() uuid.UUID { return c.id }

func (c *conn) RemoteAddr() net.Addr { return c.remoteAddr }

// Reset prepares the channel for the next HTTP request/response cycle. It
// is called by the loop goroutine between requests. The decoder itself
// needs no explicit reset here: httpwire.Decoder trims its own
// accumulator down to any already-buffered bytes of a following request
// as part of Decode, so a call here must not touch it — doing so would
// discard bytes of a request that arrived in the same read as this one.
func (c *conn) Reset() {}
