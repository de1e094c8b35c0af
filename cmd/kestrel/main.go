// File: cmd/kestrel/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// kestrel boots a single reactor instance bound to the echo demo handler.
// It exists to exercise internal/reactor end to end and as a template for
// wiring a real api.Handler implementation.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kestrelws/kestrel/internal/reactor"
	"github.com/kestrelws/kestrel/internal/reactor/echo"
)

func main() {
	addr := flag.String("addr", ":9000", "address to listen on")
	maxBody := flag.Int("max-body", 1<<20, "maximum HTTP request body size in bytes")
	maxRequestLine := flag.Int("max-request-line", 8*1024, "maximum HTTP request-line size in bytes")
	maxConnections := flag.Int("max-connections", 0, "maximum concurrent connections, 0 for unbounded")
	workers := flag.Int("workers", 0, "handler thread-pool size, 0 for runtime.NumCPU()")
	cpuAffinity := flag.Int("cpu-affinity", -1, "CPU core to pin the reactor thread to, -1 to disable")
	shutdownTimeout := flag.Duration("shutdown-timeout", 10*time.Second, "maximum time to wait for the reactor loop to stop during shutdown")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	opts := []reactor.Option{
		reactor.WithAddr(*addr),
		reactor.WithMaxBody(*maxBody),
		reactor.WithMaxRequestLine(*maxRequestLine),
		reactor.WithMaxConnections(*maxConnections),
		reactor.WithCPUAffinity(*cpuAffinity),
	}
	if *workers > 0 {
		opts = append(opts, reactor.WithExecutorWorkers(*workers))
	}

	handler := &echo.Handler{Logger: logger}
	r, err := reactor.New(handler, opts...)
	if err != nil {
		logger.Error("failed to construct reactor", "error", err)
		os.Exit(1)
	}

	if err := r.Start(); err != nil {
		logger.Error("failed to start reactor", "error", err)
		os.Exit(1)
	}
	logger.Info("kestrel listening", "addr", r.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer cancel()
	if err := r.Stop(ctx); err != nil && err != context.Canceled {
		logger.Warn("shutdown did not complete cleanly", "error", err)
	}

	fmt.Fprintln(os.Stdout, "kestrel stopped")
}
