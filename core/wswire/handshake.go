// File: core/wswire/handshake.go
// Package wswire — server-side RFC 6455 handshake response construction.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Adapted from DoHandshakeCore, which read and validated a request
// straight off an io.Reader; here the request has already been parsed by
// httpwire.Decoder, so only the accept-key computation and response
// header construction remain.

package wswire

import (
	"crypto/sha1"
	"encoding/base64"
	"net/http"
)

const webSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey computes the Sec-WebSocket-Accept value for a client's
// Sec-WebSocket-Key, per RFC 6455 §1.3.
func AcceptKey(clientKey string) string {
	h := sha1.New()
	h.Write([]byte(clientKey + webSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// UpgradeResponse builds the HTTP/1.1 101 Switching Protocols response for
// a validated upgrade request.
func UpgradeResponse(clientKey string) []byte {
	hdr := make(http.Header)
	hdr.Set("Upgrade", "websocket")
	hdr.Set("Connection", "Upgrade")
	hdr.Set("Sec-WebSocket-Accept", AcceptKey(clientKey))

	buf := []byte("HTTP/1.1 101 Switching Protocols\r\n")
	for _, k := range []string{"Upgrade", "Connection", "Sec-WebSocket-Accept"} {
		buf = append(buf, k...)
		buf = append(buf, ": "...)
		buf = append(buf, hdr.Get(k)...)
		buf = append(buf, "\r\n"...)
	}
	buf = append(buf, "\r\n"...)
	return buf
}
