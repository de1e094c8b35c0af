// File: internal/reactor/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// External interface: Config/Option follow the teacher's
// DefaultConfig()+functional-options shape from server/types.go and
// server/options.go, adapted to this reactor's parameters.

package reactor

import (
	"context"
	"log/slog"
	"net"
	"runtime"

	"github.com/kestrelws/kestrel/api"
	"github.com/kestrelws/kestrel/internal/workerpool"
)

// Config holds construction parameters for a Reactor.
type Config struct {
	Addr            string // "host:port" to listen on
	MaxBody         int    // maximum HTTP request body size, bytes
	MaxRequestLine  int    // maximum HTTP request-line size, bytes
	MaxConnections  int    // 0 means unbounded
	ExecutorWorkers int    // handler thread-pool size
	CPUAffinity     int    // CPU core to pin the reactor thread to, -1 to disable
}

// DefaultConfig returns conservative defaults suitable for local testing.
func DefaultConfig() Config {
	return Config{
		Addr:            ":9000",
		MaxBody:         1 << 20,
		MaxRequestLine:  8 * 1024,
		MaxConnections:  0,
		ExecutorWorkers: runtime.NumCPU(),
		CPUAffinity:     -1,
	}
}

// Option customizes a Config before a Reactor is constructed.
type Option func(*Config)

func WithAddr(addr string) Option { return func(c *Config) { c.Addr = addr } }

func WithMaxBody(n int) Option { return func(c *Config) { c.MaxBody = n } }

func WithMaxRequestLine(n int) Option { return func(c *Config) { c.MaxRequestLine = n } }

func WithMaxConnections(n int) Option { return func(c *Config) { c.MaxConnections = n } }

func WithExecutorWorkers(n int) Option { return func(c *Config) { c.ExecutorWorkers = n } }

func WithCPUAffinity(cpu int) Option { return func(c *Config) { c.CPUAffinity = cpu } }

// Reactor is the external facade over the event loop and its handler
// thread pool.
type Reactor struct {
	cfg     Config
	loop    *Loop
	workers *workerpool.Executor
	handler api.Handler
	started bool
}

// New constructs a Reactor bound to handler. The listening socket is not
// created until Start.
func New(handler api.Handler, opts ...Option) (*Reactor, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := slog.Default()
	workers := workerpool.New(cfg.ExecutorWorkers)
	loop, err := newLoop(cfg, handler, workers, logger)
	if err != nil {
		workers.Close()
		return nil, err
	}

	return &Reactor{cfg: cfg, loop: loop, workers: workers, handler: handler}, nil
}

// Addr reports the listening socket's bound address, valid after Start.
// Useful when Config.Addr binds an ephemeral port (":0").
func (r *Reactor) Addr() net.Addr { return r.loop.listenAddr }

// Start binds the listening socket and launches the reactor goroutine.
func (r *Reactor) Start() error {
	if err := r.loop.listen(); err != nil {
		return err
	}
	r.started = true
	go r.loop.run()
	return nil
}

// Stop closes the listener, forcibly closes every tracked connection,
// notifies the handler once, and waits for the loop goroutine to exit or
// ctx to expire. In-flight handler work is not awaited, per spec.
func (r *Reactor) Stop(ctx context.Context) error {
	if !r.started {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.loop.stop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	go r.workers.Close()
	r.handler.Close()
	return ctx.Err()
}
