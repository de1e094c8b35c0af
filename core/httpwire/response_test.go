package httpwire_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/kestrelws/kestrel/core/httpwire"
)

func TestEncodeResponseIncludesContentLength(t *testing.T) {
	out := httpwire.EncodeResponse(http.StatusOK, nil, []byte("hi"))
	s := string(out)
	if !strings.HasPrefix(s, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("status line missing: %q", s)
	}
	if !strings.Contains(s, "Content-Length: 2\r\n") {
		t.Errorf("missing content-length: %q", s)
	}
	if !strings.HasSuffix(s, "\r\n\r\nhi") {
		t.Errorf("body not appended: %q", s)
	}
}

func TestEncodeBodyTooLargeClosesConnection(t *testing.T) {
	out := httpwire.EncodeBodyTooLarge()
	s := string(out)
	if !strings.HasPrefix(s, "HTTP/1.1 413 ") {
		t.Fatalf("status line = %q", s)
	}
	if !strings.Contains(s, "Connection: close\r\n") {
		t.Errorf("missing connection close: %q", s)
	}
}
