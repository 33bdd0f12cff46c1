package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownHook is called during graceful shutdown, after the listener stops
// accepting requests.
type ShutdownHook func(ctx context.Context) error

// ShutdownConfig holds graceful shutdown configuration
type ShutdownConfig struct {
	// Timeout is the maximum time to wait for shutdown
	Timeout time.Duration

	// Signals to listen for (default: SIGINT, SIGTERM)
	Signals []os.Signal

	Logger *zap.Logger
}

// DefaultShutdownConfig returns default shutdown configuration
func DefaultShutdownConfig() *ShutdownConfig {
	return &ShutdownConfig{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Logger:  zap.NewNop(),
	}
}

// GracefulShutdown runs a server until a signal arrives or its context ends,
// then stops it and runs the registered hooks.
type GracefulShutdown struct {
	server      *Server
	hooks       []ShutdownHook
	timeout     time.Duration
	signals     []os.Signal
	logger      *zap.Logger
	mu          sync.Mutex
	once        sync.Once
	done        chan struct{}
	shutdownErr error
}

// NewGracefulShutdown creates a new graceful shutdown handler
func NewGracefulShutdown(server *Server, config *ShutdownConfig) *GracefulShutdown {
	if config == nil {
		config = DefaultShutdownConfig()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if len(config.Signals) == 0 {
		config.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &GracefulShutdown{
		server:  server,
		timeout: config.Timeout,
		signals: config.Signals,
		logger:  config.Logger,
		done:    make(chan struct{}),
	}
}

// RegisterHook registers a shutdown hook. Hooks run in registration order.
func (gs *GracefulShutdown) RegisterHook(hook ShutdownHook) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.hooks = append(gs.hooks, hook)
}

// Run serves until ctx is done, a signal arrives or the server fails.
func (gs *GracefulShutdown) Run(ctx context.Context) error {
	if err := gs.server.Listen(); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		gs.logger.Info("server listening", zap.String("address", gs.server.Addr()))
		if err := gs.server.Start(); err != nil {
			errChan <- fmt.Errorf("server failed: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, gs.signals...)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		gs.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case <-ctx.Done():
	case err := <-errChan:
		return err
	}
	return gs.Shutdown()
}

// Shutdown stops the server and runs the hooks once. Later calls wait for
// the first one and return its result.
func (gs *GracefulShutdown) Shutdown() error {
	gs.once.Do(func() {
		defer close(gs.done)
		ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
		defer cancel()

		gs.logger.Info("shutting down", zap.Duration("timeout", gs.timeout))
		if err := gs.server.Shutdown(ctx); err != nil {
			gs.shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			gs.logger.Error("server shutdown failed", zap.Error(err))
		}

		gs.mu.Lock()
		hooks := make([]ShutdownHook, len(gs.hooks))
		copy(hooks, gs.hooks)
		gs.mu.Unlock()

		for i, hook := range hooks {
			if err := hook(ctx); err != nil {
				gs.logger.Warn("shutdown hook failed", zap.Int("hook", i), zap.Error(err))
			}
		}
	})
	<-gs.done
	return gs.shutdownErr
}

// Wait blocks until shutdown is complete
func (gs *GracefulShutdown) Wait() error {
	<-gs.done
	return gs.shutdownErr
}
