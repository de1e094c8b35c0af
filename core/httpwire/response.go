// File: core/httpwire/response.go
// Package httpwire — response encoding helpers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpwire

import (
	"fmt"
	"net/http"
	"sort"
)

var statusText = map[int]string{
	http.StatusOK:                  "OK",
	http.StatusSwitchingProtocols:  "Switching Protocols",
	http.StatusRequestEntityTooLarge: "Request Entity Too Large",
	http.StatusRequestURITooLong:   "Request-URI Too Long",
}

// EncodeResponse serializes a status line, headers, and body into a single
// gather-writable buffer. Content-Length is set from len(body) unless
// already present in header.
func EncodeResponse(status int, header http.Header, body []byte) []byte {
	if header == nil {
		header = make(http.Header)
	}
	if header.Get("Content-Length") == "" {
		header.Set("Content-Length", fmt.Sprintf("%d", len(body)))
	}

	text, ok := statusText[status]
	if !ok {
		text = http.StatusText(status)
	}

	buf := make([]byte, 0, 256+len(body))
	buf = append(buf, fmt.Sprintf("HTTP/1.1 %d %s\r\n", status, text)...)

	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range header[k] {
			buf = append(buf, fmt.Sprintf("%s: %s\r\n", k, v)...)
		}
	}
	buf = append(buf, "\r\n"...)
	buf = append(buf, body...)
	return buf
}

// EncodeRequestLineTooLong builds a 414 response with no keep-alive.
func EncodeRequestLineTooLong() []byte {
	h := make(http.Header)
	h.Set("Connection", "close")
	return EncodeResponse(http.StatusRequestURITooLong, h, nil)
}

// EncodeBodyTooLarge builds a 413 response with no keep-alive.
func EncodeBodyTooLarge() []byte {
	h := make(http.Header)
	h.Set("Connection", "close")
	return EncodeResponse(http.StatusRequestEntityTooLarge, h, nil)
}
