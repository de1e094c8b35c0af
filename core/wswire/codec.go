// File: core/wswire/codec.go
// Package wswire — incremental frame decoder and frame encoder.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Adapted from a whole-buffer DecodeFrameFromBytes/EncodeFrameToBytes pair:
// the decoder here accumulates bytes across calls instead of erroring on a
// truncated buffer, so it can be fed directly from the reactor's reused
// scratch buffer without ever erroring on a frame that merely hasn't
// arrived in full yet.

package wswire

import (
	"encoding/binary"

	"github.com/kestrelws/kestrel/api"
)

// Decoder incrementally parses WebSocket frames out of a byte stream fed
// in arbitrary-sized chunks. One Decoder serves exactly one connection.
type Decoder struct {
	buf []byte
}

// NewDecoder constructs an empty frame Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// Feed appends chunk to the decoder's internal accumulator; chunk may be
// reused by the caller immediately after Feed returns.
func (d *Decoder) Feed(chunk []byte) {
	d.buf = append(d.buf, chunk...)
}

// Pending reports whether the accumulator still holds unconsumed bytes.
func (d *Decoder) Pending() bool { return len(d.buf) > 0 }

// Reset discards every buffered byte, including any bytes of following
// frames. The read pipeline does not call it: Decode already trims the
// bytes of each frame it returns.
func (d *Decoder) Reset() { d.buf = d.buf[:0] }

// Decode attempts to parse one complete frame out of the accumulator.
// Returns api.ErrNeedMore if the accumulator does not yet hold a full
// frame, api.ErrMalformed if the bytes cannot form a valid frame or the
// payload exceeds MaxFramePayload.
func (d *Decoder) Decode() (*Frame, error) {
	raw := d.buf
	if len(raw) < 2 {
		return nil, api.ErrNeedMore
	}
	fin := raw[0]&0x80 != 0
	opcode := raw[0] & 0x0F
	masked := raw[1]&0x80 != 0
	length := int64(raw[1] & 0x7F)
	offset := 2

	switch length {
	case 126:
		if len(raw) < offset+2 {
			return nil, api.ErrNeedMore
		}
		length = int64(binary.BigEndian.Uint16(raw[offset:]))
		offset += 2
	case 127:
		if len(raw) < offset+8 {
			return nil, api.ErrNeedMore
		}
		length = int64(binary.BigEndian.Uint64(raw[offset:]))
		offset += 8
	}

	if length > MaxFramePayload {
		return nil, api.ErrMalformed
	}

	var maskKey [4]byte
	if masked {
		if len(raw) < offset+4 {
			return nil, api.ErrNeedMore
		}
		copy(maskKey[:], raw[offset:offset+4])
		offset += 4
	}

	total := offset + int(length)
	if len(raw) < total {
		return nil, api.ErrNeedMore
	}

	payload := make([]byte, length)
	if masked {
		for i := int64(0); i < length; i++ {
			payload[i] = raw[offset+int(i)] ^ maskKey[i%4]
		}
	} else {
		copy(payload, raw[offset:total])
	}

	f := &Frame{
		IsFinal:    fin,
		Opcode:     opcode,
		PayloadLen: length,
		Payload:    payload,
	}
	if opcode == OpcodeClose {
		f.CloseCode = CloseNoStatusRcvd
		if length >= 2 {
			f.CloseCode = int(binary.BigEndian.Uint16(payload[:2]))
		}
	}
	if f.IsControl() && length > MaxControlPayloadLen {
		return nil, api.ErrMalformed
	}

	remaining := len(d.buf) - total
	copy(d.buf, d.buf[total:])
	d.buf = d.buf[:remaining]

	return f, nil
}

// EncodeText encodes an unmasked final text frame (server-to-client frames
// are never masked, per RFC 6455 §5.1).
func EncodeText(payload []byte) []byte { return encode(OpcodeText, payload) }

// EncodeBinary encodes an unmasked final binary frame.
func EncodeBinary(payload []byte) []byte { return encode(OpcodeBinary, payload) }

// EncodePong encodes a Pong frame echoing the given payload.
func EncodePong(payload []byte) []byte { return encode(OpcodePong, payload) }

// EncodeClose encodes a Close frame carrying the given close code.
func EncodeClose(code int) []byte {
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, uint16(code))
	return encode(OpcodeClose, payload)
}

func encode(opcode byte, payload []byte) []byte {
	b0 := byte(0x80) | (opcode & 0x0F)
	plen := len(payload)
	var hdr []byte
	switch {
	case plen <= 125:
		hdr = []byte{b0, byte(plen)}
	case plen <= 0xFFFF:
		hdr = make([]byte, 4)
		hdr[0] = b0
		hdr[1] = 126
		binary.BigEndian.PutUint16(hdr[2:], uint16(plen))
	default:
		hdr = make([]byte, 10)
		hdr[0] = b0
		hdr[1] = 127
		binary.BigEndian.PutUint64(hdr[2:], uint64(plen))
	}
	buf := make([]byte, len(hdr)+plen)
	copy(buf, hdr)
	copy(buf[len(hdr):], payload)
	return buf
}
