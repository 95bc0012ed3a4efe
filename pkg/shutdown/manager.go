package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownFunc represents a function that shuts down a component
type ShutdownFunc func(context.Context) error

type component struct {
	name string
	fn   ShutdownFunc
}

// Manager coordinates graceful shutdown of all service components.
// Components shut down in REVERSE registration order (LIFO), so servers
// registered after the database stop accepting work before the pool closes.
type Manager struct {
	logger     *zap.Logger
	components []component
	mu         sync.Mutex
	timeout    time.Duration
}

// NewManager creates a new shutdown manager
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a shutdown function to be called during graceful shutdown
func (sm *Manager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.components = append(sm.components, component{name: name, fn: fn})
}

// RegisterHTTPServer registers an HTTP server for graceful shutdown
func (sm *Manager) RegisterHTTPServer(name string, server interface{ Shutdown(context.Context) error }) {
	sm.Register(name, server.Shutdown)
}

// RegisterNoErr registers a shutdown function that cannot fail
func (sm *Manager) RegisterNoErr(name string, fn func()) {
	sm.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then runs all registered
// shutdown functions
func (sm *Manager) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	sm.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	sm.Shutdown()
}

// Shutdown runs all registered shutdown functions in reverse order within
// the manager's timeout
func (sm *Manager) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	sm.mu.Lock()
	components := make([]component, len(sm.components))
	copy(components, sm.components)
	sm.mu.Unlock()

	start := time.Now()
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if err := c.fn(ctx); err != nil {
			sm.logger.Error("component shutdown failed",
				zap.String("component", c.name),
				zap.Error(err))
			continue
		}
		sm.logger.Info("component shut down", zap.String("component", c.name))
	}
	sm.logger.Info("shutdown complete", zap.Duration("elapsed", time.Since(start)))
}
