// File: internal/reactor/acceptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Component B: drains the listening socket on accept-readiness, bounding
// live connections at Config.MaxConnections and registering every
// accepted socket for read-readiness with a fresh HTTP-phase attachment.

package reactor

import "golang.org/x/sys/unix"

func (l *Loop) handleAcceptable() {
	for {
		nfd, sa, err := unix.Accept4(l.listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			l.logger.Warn("accept failed", "error", err)
			return
		}

		if l.cfg.MaxConnections > 0 && len(l.conns) >= l.cfg.MaxConnections {
			unix.Close(nfd)
			continue
		}

		unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

		c := newConn(l, nfd, sockaddrToAddr(sa))
		if err := l.epollAdd(nfd, unix.EPOLLIN); err != nil {
			l.logger.Warn("epoll add failed", "error", err)
			unix.Close(nfd)
			continue
		}
		l.conns[nfd] = c
	}
}
