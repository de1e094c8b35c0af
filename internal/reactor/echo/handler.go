// File: internal/reactor/echo/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package echo implements a minimal api.Handler used by cmd/kestrel and by
// package tests: it answers HTTP requests with their own method and path,
// and WebSocket text/binary frames with their own payload.

package echo

import (
	"log/slog"
	"net/http"

	"github.com/kestrelws/kestrel/api"
	"github.com/kestrelws/kestrel/core/httpwire"
	"github.com/kestrelws/kestrel/core/wswire"
)

// Handler is a trivial api.Handler suitable for demos and smoke tests.
type Handler struct {
	Logger *slog.Logger
}

var _ api.Handler = (*Handler)(nil)

func (h *Handler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// HandleHTTP responds with a plain-text body echoing the request's method
// and path.
func (h *Handler) HandleHTTP(req *httpwire.Request, ch api.Channel, respond api.ResponseCallback) {
	header := make(http.Header)
	header.Set("Content-Type", "text/plain; charset=utf-8")
	body := req.Method + " " + req.Path
	respond(http.StatusOK, header, []byte(body))
}

// HandleFrame echoes a text frame as text and a binary frame as binary.
func (h *Handler) HandleFrame(ch api.Channel, frame *wswire.Frame) {
	switch frame.Opcode {
	case wswire.OpcodeText:
		ch.TryWrite(wswire.EncodeText(frame.Payload))
	case wswire.OpcodeBinary:
		ch.TryWrite(wswire.EncodeBinary(frame.Payload))
	}
}

// ClientClose logs the closing status for diagnostics.
func (h *Handler) ClientClose(ch api.Channel, status int) {
	h.log().Info("connection closed", "channel", ch.ID(), "remote", ch.RemoteAddr(), "status", status)
}

// Close logs shutdown.
func (h *Handler) Close() {
	h.log().Info("handler shutting down")
}
