package poll

import (
	"context"
	"sync"
	"time"
)

// Logger defines the logging interface used by coordinators.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// UpdateFunc fetches fresh data from a device or remote service.
type UpdateFunc[T any] func(ctx context.Context) (T, error)

// Coordinator polls an UpdateFunc on a fixed interval and notifies
// listeners after every attempt, success or failure.
//
// All public methods are thread-safe.
type Coordinator[T any] struct {
	name     string
	interval time.Duration
	update   UpdateFunc[T]
	logger   Logger

	mu          sync.Mutex
	data        T
	hasData     bool
	lastSuccess bool
	lastErr     error
	listeners   map[int]func()
	nextID      int
	closed      bool
	cancel      context.CancelFunc

	wg sync.WaitGroup
}

// NewCoordinator creates a coordinator. The name appears in log lines
// only; the interval governs the background loop started by Start.
func NewCoordinator[T any](name string, interval time.Duration, update UpdateFunc[T]) *Coordinator[T] {
	return &Coordinator[T]{
		name:      name,
		interval:  interval,
		update:    update,
		logger:    noopLogger{},
		listeners: make(map[int]func()),
	}
}

// SetLogger sets the logger for the coordinator.
func (c *Coordinator[T]) SetLogger(logger Logger) {
	c.logger = logger
}

// Start performs the first refresh synchronously, then begins the
// polling loop. If the first refresh fails the loop is not started and
// the error is returned, so the caller can defer setup and try again.
func (c *Coordinator[T]) Start(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return ErrClosed
	}
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.loop(loopCtx)
	return nil
}

func (c *Coordinator[T]) loop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Debug("refresh failed", "coordinator", c.name, "error", err)
			}
		}
	}
}

// Refresh runs the update function once and notifies listeners. On
// failure the previous data is kept but LastUpdateSuccess flips false.
func (c *Coordinator[T]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	data, err := c.update(ctx)

	c.mu.Lock()
	if err != nil {
		if c.lastSuccess {
			c.logger.Warn("update failed", "coordinator", c.name, "error", err)
		}
		c.lastSuccess = false
		c.lastErr = err
	} else {
		if !c.lastSuccess && c.hasData {
			c.logger.Info("update recovered", "coordinator", c.name)
		}
		c.data = data
		c.hasData = true
		c.lastSuccess = true
		c.lastErr = nil
	}
	fns := c.listenersLocked()
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return err
}

// AddListener registers a callback invoked after every refresh attempt.
// The returned function removes the listener.
func (c *Coordinator[T]) AddListener(fn func()) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Data returns the most recent successful result. The bool is false
// until the first success.
func (c *Coordinator[T]) Data() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data, c.hasData
}

// LastUpdateSuccess reports whether the most recent refresh succeeded.
func (c *Coordinator[T]) LastUpdateSuccess() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccess
}

// LastError returns the error from the most recent failed refresh, or
// nil after a success.
func (c *Coordinator[T]) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close stops the polling loop and waits for it to exit. Idempotent.
func (c *Coordinator[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

func (c *Coordinator[T]) listenersLocked() []func() {
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	return fns
}
