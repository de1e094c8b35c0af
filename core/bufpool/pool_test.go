package bufpool_test

import (
	"testing"

	"github.com/kestrelws/kestrel/core/bufpool"
)

func TestGetReturnsRequestedLength(t *testing.T) {
	p := bufpool.New()
	buf := p.Get(100)
	if len(buf.Bytes()) != 100 {
		t.Fatalf("len = %d, want 100", len(buf.Bytes()))
	}
}

func TestPutReusesBuffer(t *testing.T) {
	p := bufpool.New()
	buf := p.Get(100)
	data := buf.Bytes()
	data[0] = 0xAB
	buf.Release()

	again := p.Get(100)
	if cap(again.Bytes()) < 100 {
		t.Fatalf("cap = %d, want >= 100", cap(again.Bytes()))
	}
	stats := p.Stats()
	if stats.TotalAlloc != 2 || stats.TotalFree != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestLargeBufferBypassesPool(t *testing.T) {
	p := bufpool.New()
	buf := p.Get(1 << 20)
	if len(buf.Bytes()) != 1<<20 {
		t.Fatalf("len = %d", len(buf.Bytes()))
	}
}
