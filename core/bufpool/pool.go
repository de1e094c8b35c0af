// File: core/bufpool/pool.go
// Package bufpool implements size-classed buffer pooling for the
// reactor's outbound write queues.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Adapted from a NUMA-sharded slab pool manager: this reactor runs a
// single selector loop on one goroutine, so the NUMA-node sharding the
// original used to avoid cross-socket cache traffic has no role here —
// one set of size classes, backed by the same lock-free free-list, is
// enough to keep the write path allocation-free in steady state.

package bufpool

import (
	"sync"

	"github.com/kestrelws/kestrel/api"
	"github.com/kestrelws/kestrel/internal/concurrency"
)

// sizeClasses are the power-of-two buffer classes buffers are rounded up
// to, bounding free-list fragmentation.
var sizeClasses = [...]int{
	1 * 1024,
	2 * 1024,
	4 * 1024,
	8 * 1024,
	16 * 1024,
	32 * 1024,
	64 * 1024,
	128 * 1024,
}

func classFor(size int) int {
	for _, c := range sizeClasses {
		if size <= c {
			return c
		}
	}
	return sizeClasses[len(sizeClasses)-1]
}

const freeListCapacity = 4096

// Pool is a size-classed api.BufferPool. Buffers larger than the biggest
// size class are allocated directly and never pooled.
type Pool struct {
	mu      sync.RWMutex
	classes map[int]*slab

	totalAlloc, totalFree int64
	statsMu               sync.Mutex
}

var _ api.BufferPool = (*Pool)(nil)

// New constructs an empty Pool; size-class free lists are created lazily
// on first use.
func New() *Pool {
	return &Pool{classes: make(map[int]*slab)}
}

func (p *Pool) getOrCreate(class int) *slab {
	p.mu.RLock()
	s, ok := p.classes[class]
	p.mu.RUnlock()
	if ok {
		return s
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok = p.classes[class]; ok {
		return s
	}
	s = &slab{size: class, free: concurrency.NewLockFreeQueue[api.Buffer](freeListCapacity)}
	p.classes[class] = s
	return s
}

// Get returns a Buffer whose capacity is at least size, reused from the
// matching size class's free list when available.
func (p *Pool) Get(size int) api.Buffer {
	if size > sizeClasses[len(sizeClasses)-1] {
		return api.Buffer{Data: make([]byte, size)}
	}
	class := classFor(size)
	s := p.getOrCreate(class)
	if buf, ok := s.free.Dequeue(); ok {
		buf.Data = buf.Data[:size]
		p.statsMu.Lock()
		p.totalAlloc++
		p.statsMu.Unlock()
		return buf
	}
	buf := api.Buffer{Data: make([]byte, size, class), Pool: p, Class: class}
	p.statsMu.Lock()
	p.totalAlloc++
	p.statsMu.Unlock()
	return buf
}

// Put returns buf to its size class's free list. A buffer from outside
// this pool (Class 0, or a class this pool never created), or one arriving
// when its class's free list is full, is dropped.
func (p *Pool) Put(buf api.Buffer) {
	if buf.Class == 0 {
		return
	}
	p.mu.RLock()
	s, ok := p.classes[buf.Class]
	p.mu.RUnlock()
	if !ok {
		return
	}
	buf.Data = buf.Data[:0]
	if s.free.Enqueue(buf) {
		p.statsMu.Lock()
		p.totalFree++
		p.statsMu.Unlock()
	}
}

// Stats reports pool-wide allocation counters.
func (p *Pool) Stats() api.BufferPoolStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return api.BufferPoolStats{
		TotalAlloc: p.totalAlloc,
		TotalFree:  p.totalFree,
		InUse:      p.totalAlloc - p.totalFree,
	}
}

type slab struct {
	size int
	free *concurrency.LockFreeQueue[api.Buffer]
}
