// File: core/httpwire/request.go
// Package httpwire implements an incremental HTTP/1.1 request decoder and a
// minimal response encoder for the reactor's read/write pipelines.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The decoder never blocks and never retains a slice of a caller-owned
// buffer past the call that handed it bytes: every Feed copies its input
// into the decoder's own accumulator, which is the only state carried
// across doRead iterations.

package httpwire

import (
	"bufio"
	"bytes"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/kestrelws/kestrel/api"
)

// Request is a fully parsed HTTP/1.1 request.
type Request struct {
	Method             string
	Path               string
	Proto              string
	Header             http.Header
	Body               []byte
	KeepAlive          bool
	IsWebSocketUpgrade bool
	SecWebSocketKey    string
}

// Decoder incrementally parses HTTP/1.1 requests out of a byte stream fed
// in arbitrary-sized chunks. One Decoder serves exactly one connection.
type Decoder struct {
	buf        []byte
	maxLineLen int
	maxBodyLen int64
}

// NewDecoder constructs a Decoder enforcing the given request-line and
// body size limits.
func NewDecoder(maxLineLen int, maxBodyLen int64) *Decoder {
	return &Decoder{maxLineLen: maxLineLen, maxBodyLen: maxBodyLen}
}

// Feed appends chunk to the decoder's internal accumulator. chunk may be a
// view into a buffer the caller reuses immediately after this call
// returns; Feed copies it.
func (d *Decoder) Feed(chunk []byte) {
	d.buf = append(d.buf, chunk...)
}

// Pending reports whether the accumulator still holds unconsumed bytes —
// the read pipeline uses this to decide whether another Decode call might
// yield a pipelined request already fully buffered.
func (d *Decoder) Pending() bool {
	return len(d.buf) > 0
}

// Reset discards every buffered byte, including any bytes of a following
// request. The read pipeline does not call it: Decode already trims the
// bytes of each request it returns.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Decode attempts to parse one complete request out of the accumulator.
// It returns api.ErrNeedMore if the accumulator does not yet hold a full
// request, api.ErrRequestLineTooLong if the request line exceeds the
// configured maximum before a terminator appears, api.ErrBodyTooLarge if
// Content-Length exceeds the configured maximum, or api.ErrMalformed for
// any other parse failure.
func (d *Decoder) Decode() (*Request, error) {
	lineEnd := bytes.Index(d.buf, []byte("\r\n"))
	if lineEnd < 0 {
		if len(d.buf) > d.maxLineLen {
			return nil, api.ErrRequestLineTooLong
		}
		return nil, api.ErrNeedMore
	}
	if lineEnd > d.maxLineLen {
		return nil, api.ErrRequestLineTooLong
	}

	headerEnd := bytes.Index(d.buf, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return nil, api.ErrNeedMore
	}

	parts := strings.SplitN(string(d.buf[:lineEnd]), " ", 3)
	if len(parts) != 3 {
		return nil, api.ErrMalformed
	}
	method, path, proto := parts[0], parts[1], parts[2]
	if !strings.HasPrefix(proto, "HTTP/1.") {
		return nil, api.ErrMalformed
	}

	tpReader := textproto.NewReader(bufio.NewReader(bytes.NewReader(d.buf[lineEnd+2 : headerEnd+2])))
	mimeHeader, err := tpReader.ReadMIMEHeader()
	if err != nil && len(mimeHeader) == 0 {
		return nil, api.ErrMalformed
	}
	header := http.Header(mimeHeader)

	contentLength := int64(0)
	if cl := header.Get("Content-Length"); cl != "" {
		n, perr := strconv.ParseInt(cl, 10, 64)
		if perr != nil || n < 0 {
			return nil, api.ErrMalformed
		}
		contentLength = n
	}
	if contentLength > d.maxBodyLen {
		return nil, api.ErrBodyTooLarge
	}

	bodyStart := headerEnd + 4
	bodyEnd := bodyStart + int(contentLength)
	if len(d.buf) < bodyEnd {
		return nil, api.ErrNeedMore
	}

	body := make([]byte, contentLength)
	copy(body, d.buf[bodyStart:bodyEnd])

	req := &Request{
		Method:             method,
		Path:               path,
		Proto:              proto,
		Header:             header,
		Body:               body,
		KeepAlive:          keepAlive(proto, header),
		IsWebSocketUpgrade: isWebSocketUpgrade(header),
		SecWebSocketKey:    header.Get("Sec-WebSocket-Key"),
	}

	remaining := len(d.buf) - bodyEnd
	copy(d.buf, d.buf[bodyEnd:])
	d.buf = d.buf[:remaining]

	return req, nil
}

func keepAlive(proto string, header http.Header) bool {
	conn := strings.ToLower(header.Get("Connection"))
	switch {
	case strings.Contains(conn, "close"):
		return false
	case strings.Contains(conn, "keep-alive"):
		return true
	default:
		return proto == "HTTP/1.1"
	}
}

func isWebSocketUpgrade(header http.Header) bool {
	return headerContainsToken(header, "Connection", "upgrade") &&
		strings.EqualFold(header.Get("Upgrade"), "websocket")
}

func headerContainsToken(h http.Header, name, token string) bool {
	token = strings.ToLower(token)
	for _, v := range h[http.CanonicalHeaderKey(name)] {
		for _, part := range strings.Split(v, ",") {
			if strings.ToLower(strings.TrimSpace(part)) == token {
				return true
			}
		}
	}
	return false
}
