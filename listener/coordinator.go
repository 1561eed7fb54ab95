// Package listener owns the two long-running ingestion connections (EventSub
// push events and IRC chat) and the coordinator that starts and stops them as
// a unit. The two connections use unrelated transports; either may be down
// without invalidating the other, so failures are isolated per listener.
package listener

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Dinir/TTV-Toaster/auth"
	"github.com/Dinir/TTV-Toaster/telemetry"
)

// Listener is one long-running ingestion connection.
type Listener interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// ErrNoListeners means every listener failed to start; the coordinator stays
// stopped and the operator can fix credentials and call Start again.
var ErrNoListeners = errors.New("no listener could be started")

// Coordinator drives the listener set through its stopped/running states.
// Start and Stop are safe to call at any time, including concurrently.
type Coordinator struct {
	auth      *auth.Manager
	listeners []Listener

	mu      sync.Mutex
	running bool
}

// NewCoordinator returns a stopped coordinator over the given listeners.
func NewCoordinator(mgr *auth.Manager, listeners ...Listener) *Coordinator {
	return &Coordinator{auth: mgr, listeners: listeners}
}

// Start initializes credentials and starts each listener. A listener that
// fails to start is logged and skipped; one success is enough to mark the
// coordinator running. Credential initialization failure aborts the start.
// No-op when already running.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		slog.Info("listeners already running")
		return nil
	}
	if err := c.auth.Initialize(ctx); err != nil {
		return err
	}

	started := 0
	for _, l := range c.listeners {
		if err := l.Start(ctx); err != nil {
			telemetry.ListenerStartErrors.Inc()
			slog.Error("listener failed to start", slog.String("listener", l.Name()), slog.Any("err", err))
			continue
		}
		slog.Info("listener started", slog.String("listener", l.Name()))
		started++
	}
	if started == 0 {
		return ErrNoListeners
	}
	c.running = true
	telemetry.SetRunning(true)
	return nil
}

// Stop stops every listener, each failure logged independently, and
// transitions to stopped unconditionally once all attempts completed.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.listeners {
		if err := l.Stop(); err != nil {
			slog.Error("error stopping listener", slog.String("listener", l.Name()), slog.Any("err", err))
		}
	}
	c.running = false
	telemetry.SetRunning(false)
	slog.Info("all listeners stopped")
}

// Restart is stop-then-start, used after re-authentication.
func (c *Coordinator) Restart(ctx context.Context) error {
	c.Stop()
	return c.Start(ctx)
}

// Running reports the coordinator state.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
