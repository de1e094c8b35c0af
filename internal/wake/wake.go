// File: internal/wake/wake.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package wake lets goroutines outside the reactor's single event-loop
// thread hand work to it without blocking. Callbacks are pushed onto a
// lock-free MPSC queue; a byte written to a pipe wakes the loop out of
// epoll_wait so it can drain the queue on its own thread.

package wake

import (
	"golang.org/x/sys/unix"

	"github.com/kestrelws/kestrel/internal/concurrency"
)

// Callback is a unit of work to run on the reactor's loop goroutine.
type Callback func()

const queueCapacity = 8192

// Queue is a many-producer, single-consumer handoff from arbitrary
// goroutines to the reactor loop. Producers call Post; the loop registers
// ReadFD for EPOLLIN and calls Drain when it fires.
type Queue struct {
	pending *concurrency.LockFreeQueue[Callback]
	readFD  int
	writeFD int
}

// New creates a Queue and its backing self-pipe. The pipe is non-blocking
// on both ends so a full pipe never stalls a producer and a spurious wake
// never stalls the loop.
func New() (*Queue, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &Queue{
		pending: concurrency.NewLockFreeQueue[Callback](queueCapacity),
		readFD:  fds[0],
		writeFD: fds[1],
	}, nil
}

// ReadFD is the end the loop registers with epoll for EPOLLIN.
func (q *Queue) ReadFD() int { return q.readFD }

// Post enqueues cb and wakes the loop. It returns false if the queue is
// full; the caller decides whether to retry or drop.
func (q *Queue) Post(cb Callback) bool {
	if !q.pending.Enqueue(cb) {
		return false
	}
	q.kick()
	return true
}

// kick writes a single byte to the pipe, waking a thread parked in
// epoll_wait. EAGAIN means the pipe is already primed and the loop has
// not drained it yet, which is fine: one wake suffices for any number of
// pending callbacks.
func (q *Queue) kick() {
	var b [1]byte
	for {
		_, err := unix.Write(q.writeFD, b[:])
		if err == unix.EINTR {
			continue
		}
		return
	}
}

// Drain must be called from the loop goroutine after ReadFD signals
// readable. It empties the wake pipe and runs every pending callback.
func (q *Queue) Drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(q.readFD, buf[:])
		if n <= 0 || err != nil {
			break
		}
	}
	for {
		cb, ok := q.pending.Dequeue()
		if !ok {
			return
		}
		cb()
	}
}

// Close releases the pipe file descriptors.
func (q *Queue) Close() error {
	err := unix.Close(q.writeFD)
	if cerr := unix.Close(q.readFD); err == nil {
		err = cerr
	}
	return err
}
