package wswire_test

import (
	"bytes"
	"testing"

	"github.com/kestrelws/kestrel/api"
	"github.com/kestrelws/kestrel/core/wswire"
)

func TestEncodeDecodeFrame(t *testing.T) {
	payload := []byte("hello")
	data := wswire.EncodeText(payload)

	d := wswire.NewDecoder()
	d.Feed(data)
	got, err := d.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Error("payload mismatch")
	}
	if got.Opcode != wswire.OpcodeText {
		t.Errorf("opcode = %d, want %d", got.Opcode, wswire.OpcodeText)
	}
}

func TestDecodeNeedsMoreBytes(t *testing.T) {
	data := wswire.EncodeBinary([]byte("split across two reads"))
	d := wswire.NewDecoder()

	d.Feed(data[:3])
	if _, err := d.Decode(); err != api.ErrNeedMore {
		t.Fatalf("err = %v, want ErrNeedMore", err)
	}

	d.Feed(data[3:])
	got, err := d.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Payload) != "split across two reads" {
		t.Errorf("payload = %q", got.Payload)
	}
}

func TestDecodeMasked(t *testing.T) {
	payload := []byte("abc")
	maskKey := [4]byte{0x01, 0x02, 0x03, 0x04}
	masked := make([]byte, len(payload))
	for i := range payload {
		masked[i] = payload[i] ^ maskKey[i%4]
	}
	frame := []byte{0x80 | wswire.OpcodeText, 0x80 | byte(len(payload))}
	frame = append(frame, maskKey[:]...)
	frame = append(frame, masked...)

	d := wswire.NewDecoder()
	d.Feed(frame)
	got, err := d.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("payload = %q, want %q", got.Payload, payload)
	}
}

func TestDecodePipelinedFrames(t *testing.T) {
	d := wswire.NewDecoder()
	d.Feed(append(wswire.EncodeText([]byte("one")), wswire.EncodeText([]byte("two"))...))

	first, err := d.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if string(first.Payload) != "one" {
		t.Fatalf("first = %q", first.Payload)
	}
	if !d.Pending() {
		t.Fatal("expected pending bytes for second frame")
	}
	second, err := d.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if string(second.Payload) != "two" {
		t.Fatalf("second = %q", second.Payload)
	}
}

func TestDecodeOversizedFrameIsMalformed(t *testing.T) {
	hdr := []byte{0x80 | wswire.OpcodeBinary, 127, 0, 0, 0, 0, 0, 0x20, 0, 0}
	d := wswire.NewDecoder()
	d.Feed(hdr)
	if _, err := d.Decode(); err != api.ErrMalformed {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestCloseFrameCarriesCode(t *testing.T) {
	d := wswire.NewDecoder()
	d.Feed(wswire.EncodeClose(wswire.CloseNormalClosure))
	f, err := d.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if f.CloseCode != wswire.CloseNormalClosure {
		t.Errorf("CloseCode = %d, want %d", f.CloseCode, wswire.CloseNormalClosure)
	}
}
