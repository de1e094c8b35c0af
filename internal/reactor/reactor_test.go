package reactor_test

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/kestrelws/kestrel/api"
	"github.com/kestrelws/kestrel/core/httpwire"
	"github.com/kestrelws/kestrel/core/wswire"
	"github.com/kestrelws/kestrel/internal/reactor"
)

type testHandler struct {
	mu       sync.Mutex
	frames   []*wswire.Frame
	closes   []int
	onHTTP   func(req *httpwire.Request, ch api.Channel, respond api.ResponseCallback)
	onFrame  func(ch api.Channel, frame *wswire.Frame)
	closedCh chan struct{}
}

func newTestHandler() *testHandler {
	return &testHandler{closedCh: make(chan struct{}, 16)}
}

func (h *testHandler) HandleHTTP(req *httpwire.Request, ch api.Channel, respond api.ResponseCallback) {
	if h.onHTTP != nil {
		h.onHTTP(req, ch, respond)
		return
	}
	respond(200, nil, []byte(req.Path))
}

func (h *testHandler) HandleFrame(ch api.Channel, frame *wswire.Frame) {
	h.mu.Lock()
	h.frames = append(h.frames, frame)
	h.mu.Unlock()
	if h.onFrame != nil {
		h.onFrame(ch, frame)
		return
	}
	ch.TryWrite(wswire.EncodeText(frame.Payload))
}

func (h *testHandler) ClientClose(ch api.Channel, status int) {
	h.mu.Lock()
	h.closes = append(h.closes, status)
	h.mu.Unlock()
	h.closedCh <- struct{}{}
}

func (h *testHandler) Close() {}

func (h *testHandler) closeStatuses() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int, len(h.closes))
	copy(out, h.closes)
	return out
}

func startTestReactor(t *testing.T, handler api.Handler, opts ...reactor.Option) (*reactor.Reactor, string) {
	t.Helper()
	allOpts := append([]reactor.Option{reactor.WithAddr("127.0.0.1:0")}, opts...)
	r, err := reactor.New(handler, allOpts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		r.Stop(ctx)
	})
	return r, r.Addr().String()
}

// S1: pipelined requests over one connection are each answered in order
// and the connection stays open.
func TestKeepAliveTwoRequests(t *testing.T) {
	h := newTestHandler()
	_, addr := startTestReactor(t, h)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Both requests land in one TCP write, exercising the decode-resume
	// path: the second request is fully buffered before the first's
	// response has drained.
	conn.Write([]byte("GET /a HTTP/1.1\r\nHost: x\r\n\r\nGET /b HTTP/1.1\r\nHost: x\r\n\r\n"))

	first := readHTTPResponse(t, conn)
	if !bytes.Contains(first, []byte("/a")) {
		t.Fatalf("first response = %q, want body /a", first)
	}

	second := readHTTPResponse(t, conn)
	if !bytes.Contains(second, []byte("/b")) {
		t.Fatalf("second response = %q, want body /b", second)
	}

	select {
	case <-h.closedCh:
		t.Fatal("clientClose fired before connection closed")
	case <-time.After(100 * time.Millisecond):
	}
}

// S2: HTTP/1.0 request closes the connection after the response drains.
func TestHTTP10Closes(t *testing.T) {
	h := newTestHandler()
	h.onHTTP = func(req *httpwire.Request, ch api.Channel, respond api.ResponseCallback) {
		respond(200, nil, []byte("hi"))
	}
	_, addr := startTestReactor(t, h)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("GET /a HTTP/1.0\r\nHost: x\r\n\r\n"))
	resp := readHTTPResponse(t, conn)
	if !bytes.Contains(resp, []byte("hi")) {
		t.Fatalf("response = %q, want body hi", resp)
	}

	waitClose(t, h, api.CloseHTTP)
}

// S3: an oversized body yields a 413 and the connection closes after drain.
func TestBodyTooLarge(t *testing.T) {
	h := newTestHandler()
	_, addr := startTestReactor(t, h, reactor.WithMaxBody(8))

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := "POST /a HTTP/1.1\r\nHost: x\r\nContent-Length: 1024\r\n\r\n" + string(make([]byte, 1024))
	conn.Write([]byte(req))

	resp := readHTTPResponse(t, conn)
	if !bytes.HasPrefix(resp, []byte("HTTP/1.1 413")) {
		t.Fatalf("response = %q, want 413 prefix", resp)
	}

	waitClose(t, h, api.CloseHTTP)
}

// S4: a valid upgrade handshake followed by a text frame is echoed back
// byte-exactly.
func TestWebSocketUpgradeAndEcho(t *testing.T) {
	h := newTestHandler()
	_, addr := startTestReactor(t, h)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	key := "dGhlIHNhbXBsZSBub25jZQ=="
	req := "GET / HTTP/1.1\r\nHost: x\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Key: " + key + "\r\n\r\n"
	conn.Write([]byte(req))

	resp := readHTTPResponse(t, conn)
	if !bytes.HasPrefix(resp, []byte("HTTP/1.1 101")) {
		t.Fatalf("upgrade response = %q, want 101 prefix", resp)
	}
	wantAccept := acceptKey(key)
	if !bytes.Contains(resp, []byte(wantAccept)) {
		t.Fatalf("upgrade response missing accept key %q: %q", wantAccept, resp)
	}

	conn.Write(maskedClientFrame(wswire.OpcodeText, []byte("abc")))
	frame := readFrame(t, conn)
	if frame.Opcode != wswire.OpcodeText || !bytes.Equal(frame.Payload, []byte("abc")) {
		t.Fatalf("echoed frame = %+v, want Text \"abc\"", frame)
	}
}

// S5: a Ping is answered with a Pong carrying the same payload, without
// invoking HandleFrame.
func TestWebSocketPing(t *testing.T) {
	h := newTestHandler()
	_, addr := startTestReactor(t, h)
	conn := dialAndUpgrade(t, addr)
	defer conn.Close()

	conn.Write(maskedClientFrame(wswire.OpcodePing, []byte("P")))
	frame := readFrame(t, conn)
	if frame.Opcode != wswire.OpcodePong || !bytes.Equal(frame.Payload, []byte("P")) {
		t.Fatalf("frame = %+v, want Pong \"P\"", frame)
	}

	h.mu.Lock()
	n := len(h.frames)
	h.mu.Unlock()
	if n != 0 {
		t.Fatalf("HandleFrame invoked %d times for a ping, want 0", n)
	}
}

// S6: a Close frame notifies the handler once and is echoed; the socket
// is not force-closed by the server.
func TestWebSocketClose(t *testing.T) {
	h := newTestHandler()
	_, addr := startTestReactor(t, h)
	conn := dialAndUpgrade(t, addr)
	defer conn.Close()

	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, uint16(wswire.CloseNormalClosure))
	conn.Write(maskedClientFrame(wswire.OpcodeClose, payload))

	frame := readFrame(t, conn)
	if frame.Opcode != wswire.OpcodeClose {
		t.Fatalf("opcode = %d, want Close", frame.Opcode)
	}

	waitClose(t, h, wswire.CloseNormalClosure)
}

func dialAndUpgrade(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	key := "dGhlIHNhbXBsZSBub25jZQ=="
	req := "GET / HTTP/1.1\r\nHost: x\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Key: " + key + "\r\n\r\n"
	conn.Write([]byte(req))
	readHTTPResponse(t, conn)
	return conn
}

func waitClose(t *testing.T, h *testHandler, want int) {
	t.Helper()
	select {
	case <-h.closedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("clientClose not invoked")
	}
	statuses := h.closeStatuses()
	if len(statuses) == 0 || statuses[len(statuses)-1] != want {
		t.Fatalf("close statuses = %v, want last = %d", statuses, want)
	}
}

func readHTTPResponse(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)
	var out bytes.Buffer
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read response: %v", err)
		}
		out.WriteString(line)
		if line == "\r\n" {
			break
		}
	}
	headerText := out.String()
	if n := contentLength(headerText); n > 0 {
		body := make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			t.Fatalf("read body: %v", err)
		}
		out.Write(body)
	}
	return out.Bytes()
}

func contentLength(headerText string) int {
	idx := bytes.Index([]byte(headerText), []byte("Content-Length:"))
	if idx < 0 {
		return 0
	}
	rest := headerText[idx+len("Content-Length:"):]
	end := bytes.IndexByte([]byte(rest), '\r')
	if end < 0 {
		return 0
	}
	n := 0
	for _, ch := range rest[:end] {
		if ch == ' ' {
			continue
		}
		if ch < '0' || ch > '9' {
			break
		}
		n = n*10 + int(ch-'0')
	}
	return n
}

func readFrame(t *testing.T, conn net.Conn) *wswire.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	dec := wswire.NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		dec.Feed(buf[:n])
		frame, err := dec.Decode()
		if err == nil {
			return frame
		}
		if err != api.ErrNeedMore {
			t.Fatalf("decode frame: %v", err)
		}
	}
}

func maskedClientFrame(opcode byte, payload []byte) []byte {
	b0 := byte(0x80) | opcode
	plen := len(payload)
	var hdr []byte
	switch {
	case plen <= 125:
		hdr = []byte{b0, byte(plen) | 0x80}
	default:
		hdr = make([]byte, 4)
		hdr[0] = b0
		hdr[1] = 126 | 0x80
		binary.BigEndian.PutUint16(hdr[2:], uint16(plen))
	}
	mask := [4]byte{0x12, 0x34, 0x56, 0x78}
	masked := make([]byte, plen)
	for i, b := range payload {
		masked[i] = b ^ mask[i%4]
	}
	out := make([]byte, 0, len(hdr)+4+plen)
	out = append(out, hdr...)
	out = append(out, mask[:]...)
	out = append(out, masked...)
	return out
}

func acceptKey(clientKey string) string {
	h := sha1.New()
	h.Write([]byte(clientKey + "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// S7: the peer resetting mid-drain of a large write must close the
// connection with CloseAway and must not crash the loop. Close status
// CloseAway is only reported for WebSocket-phase connections: HTTP-phase
// closes always report CloseHTTP per 4.G, which this scenario's own text
// presupposes does not apply here.
func TestPeerResetDuringLargeWrite(t *testing.T) {
	h := newTestHandler()
	var ch api.Channel
	chReady := make(chan struct{})
	h.onFrame = func(c api.Channel, frame *wswire.Frame) {
		ch = c
		close(chReady)
	}
	_, addr := startTestReactor(t, h)

	conn := dialAndUpgrade(t, addr)
	conn.Write(maskedClientFrame(wswire.OpcodeText, []byte("hi")))

	select {
	case <-chReady:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetLinger(0)
	}
	conn.Close()

	big := make([]byte, 2<<20)
	ch.TryWrite(big)

	waitClose(t, h, api.CloseAway)
}
