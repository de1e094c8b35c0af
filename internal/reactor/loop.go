// File: internal/reactor/loop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Component F: the single-threaded epoll event loop. All selection-key
// interest-op mutations happen here, either directly (accept/read/write
// handlers, which already run on this goroutine) or via callbacks posted
// through the wake queue from handler goroutines.

package reactor

import (
	"log/slog"
	"net"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/kestrelws/kestrel/api"
	"github.com/kestrelws/kestrel/internal/affinity"
	"github.com/kestrelws/kestrel/internal/wake"
	"github.com/kestrelws/kestrel/internal/workerpool"
)

const scratchSize = 64 * 1024
const maxEpollEvents = 128

// Loop owns the epoll instance, the listening socket, and every accepted
// connection's attachment. It must run on a single dedicated goroutine.
type Loop struct {
	epfd       int
	listenFD   int
	listenAddr net.Addr
	conns      map[int]*conn
	wake       *wake.Queue
	handler    api.Handler
	workers    *workerpool.Executor
	cfg        Config
	scratch    []byte
	logger     *slog.Logger
	stopped    atomic.Bool
	doneCh     chan struct{}
}

func newLoop(cfg Config, handler api.Handler, workers *workerpool.Executor, logger *slog.Logger) (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wq, err := wake.New()
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	return &Loop{
		epfd:    epfd,
		conns:   make(map[int]*conn),
		wake:    wq,
		handler: handler,
		workers: workers,
		cfg:     cfg,
		scratch: make([]byte, scratchSize),
		logger:  logger,
		doneCh:  make(chan struct{}),
	}, nil
}

func (l *Loop) listen() error {
	fd, err := createListener(l.cfg.Addr)
	if err != nil {
		return err
	}
	l.listenFD = fd
	if sa, serr := unix.Getsockname(fd); serr == nil {
		l.listenAddr = sockaddrToAddr(sa)
	}
	return l.epollAdd(fd, unix.EPOLLIN)
}

func (l *Loop) epollAdd(fd int, events uint32) error {
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: events, Fd: int32(fd)})
}

func (l *Loop) setInterest(fd int, events uint32) error {
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: events, Fd: int32(fd)})
}

func (l *Loop) epollDel(fd int) {
	unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// postArmWrite schedules write-interest arming on the loop goroutine.
// Safe to call from any goroutine.
func (l *Loop) postArmWrite(c *conn) {
	l.wake.Post(func() {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		l.setInterest(c.fd, unix.EPOLLOUT)
	})
}

// postRearmRead schedules the post-drain read-interest decision on the
// loop goroutine. Safe to call from any goroutine.
func (l *Loop) postRearmRead(c *conn) {
	l.wake.Post(func() {
		l.rearmRead(c)
	})
}

// run is the event loop body. It must be started on its own goroutine and
// returns only on Stop or an unrecoverable epoll failure.
func (l *Loop) run() {
	defer close(l.doneCh)

	if err := l.epollAdd(l.wake.ReadFD(), unix.EPOLLIN); err != nil {
		l.logger.Error("failed to register wake pipe", "error", err)
		return
	}
	if l.cfg.CPUAffinity >= 0 {
		if err := affinity.Pin(l.cfg.CPUAffinity); err != nil {
			l.logger.Warn("cpu affinity pin failed", "cpu", l.cfg.CPUAffinity, "error", err)
		}
	}

	var events [maxEpollEvents]unix.EpollEvent
	for {
		if l.stopped.Load() {
			return
		}

		n, err := unix.EpollWait(l.epfd, events[:], -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			l.logger.Error("epoll wait failed, terminating loop", "error", err)
			return
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Fd)

			switch {
			case fd == l.wake.ReadFD():
				l.wake.Drain()
			case fd == l.listenFD:
				l.handleAcceptable()
			default:
				c, ok := l.conns[fd]
				if !ok {
					continue
				}
				l.dispatch(c, ev.Events)
			}
		}
	}
}

func (l *Loop) dispatch(c *conn, events uint32) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("recovered panic in connection dispatch", "panic", r)
			l.closeConn(c, api.CloseAway)
		}
	}()

	if events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		l.closeConn(c, api.CloseAway)
		return
	}
	if events&unix.EPOLLOUT != 0 {
		l.handleWritable(c)
		return
	}
	if events&unix.EPOLLIN != 0 {
		l.handleReadable(c)
	}
}

// stop signals the loop to exit and blocks until it has. Safe to call
// exactly once.
func (l *Loop) stop() {
	l.stopped.Store(true)
	l.wake.Post(func() {
		for _, c := range l.conns {
			l.closeConn(c, api.CloseAway)
		}
		if l.listenFD != 0 {
			unix.Close(l.listenFD)
		}
	})
	<-l.doneCh
	l.wake.Close()
	unix.Close(l.epfd)
}
