// Package shutdown stops the service in order when SIGTERM or SIGINT arrives:
// the API stops accepting requests, running imports finish and the store is
// closed last.
package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// DefaultTimeout is the default graceful shutdown timeout.
const DefaultTimeout = 30 * time.Second

// Component represents a component that can be gracefully shut down.
type Component interface {
	// Name returns the component name for logging.
	Name() string
	// Shutdown gracefully shuts down the component.
	// It should return within the given context deadline.
	Shutdown(ctx context.Context) error
}

// Coordinator shuts components down one at a time, in reverse order of
// registration, under a single deadline.
type Coordinator struct {
	components []Component
	timeout    time.Duration
	logger     *slog.Logger
	mu         sync.Mutex

	signalCh chan os.Signal

	shutdownOnce sync.Once
	shutdownDone chan struct{}
	exitCode     int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout sets the shutdown timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithSignalChannel sets a custom signal channel (for testing).
func WithSignalChannel(ch chan os.Signal) Option {
	return func(c *Coordinator) {
		c.signalCh = ch
	}
}

// NewCoordinator creates a new shutdown coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		timeout:      DefaultTimeout,
		logger:       slog.Default(),
		shutdownDone: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Register adds a component. Components registered first are shut down
// last, so register what others depend on first.
func (c *Coordinator) Register(component Component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components = append(c.components, component)
	c.logger.Debug("registered shutdown component", "name", component.Name())
}

// WaitForSignal blocks until a SIGTERM or SIGINT signal is received or ctx
// is done, then shuts down.
func (c *Coordinator) WaitForSignal(ctx context.Context) {
	sigCh := c.signalCh
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}

	select {
	case sig := <-sigCh:
		c.logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		c.logger.Info("shutdown requested", "reason", ctx.Err())
	}

	c.Shutdown()
}

// Shutdown shuts every registered component down. The exit code is 1 when
// a component failed or the timeout was exceeded.
func (c *Coordinator) Shutdown() {
	c.shutdownOnce.Do(func() {
		defer close(c.shutdownDone)
		c.logger.Info("initiating graceful shutdown", "timeout", c.timeout)

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		c.mu.Lock()
		components := make([]Component, len(c.components))
		copy(components, c.components)
		c.mu.Unlock()

		failed := false
		for i := len(components) - 1; i >= 0; i-- {
			if !c.shutdownComponent(ctx, components[i]) {
				failed = true
			}
		}

		switch {
		case ctx.Err() != nil:
			c.logger.Warn("shutdown timeout exceeded, forcing termination")
			c.exitCode = 1
		case failed:
			c.exitCode = 1
		default:
			c.logger.Info("all components shut down successfully")
		}
	})
}

// shutdownComponent stops comp, giving up when ctx expires even if comp
// ignores it.
func (c *Coordinator) shutdownComponent(ctx context.Context, comp Component) bool {
	c.logger.Info("shutting down component", "name", comp.Name())

	errCh := make(chan error, 1)
	go func() {
		errCh <- comp.Shutdown(ctx)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("component did not stop in time", "name", comp.Name())
		} else {
			c.logger.Error("component shutdown error", "name", comp.Name(), "error", err)
		}
		return false
	}
	c.logger.Info("component shutdown complete", "name", comp.Name())
	return true
}

// Wait blocks until shutdown is complete.
func (c *Coordinator) Wait() {
	<-c.shutdownDone
}

// ExitCode returns the exit code after shutdown.
func (c *Coordinator) ExitCode() int {
	return c.exitCode
}
