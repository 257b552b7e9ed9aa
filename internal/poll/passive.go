package poll

import "sync"

// Passive holds the latest pushed value for integrations whose data
// arrives unsolicited rather than by polling.
//
// Updates fed before Start are stored but not delivered. This gives
// the owning integration a window to register every entity before the
// first notification, so no listener misses the initial state.
type Passive[T any] struct {
	mu        sync.Mutex
	data      T
	hasData   bool
	available bool
	lastErr   error
	started   bool
	listeners map[int]func()
	nextID    int
}

// NewPassive creates a passive coordinator.
func NewPassive[T any]() *Passive[T] {
	return &Passive[T]{listeners: make(map[int]func())}
}

// Start releases notifications. If a value arrived before Start, the
// listeners are notified of it immediately.
func (p *Passive[T]) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	pending := p.hasData
	fns := p.listenersLocked()
	p.mu.Unlock()

	if pending {
		for _, fn := range fns {
			fn()
		}
	}
}

// Set stores a new value and notifies listeners.
func (p *Passive[T]) Set(data T) {
	p.mu.Lock()
	p.data = data
	p.hasData = true
	p.available = true
	p.lastErr = nil
	fns := p.notifiableLocked()
	p.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// SetUnavailable marks the source lost (device out of range) and
// notifies listeners. The last value is kept for inspection.
func (p *Passive[T]) SetUnavailable(err error) {
	p.mu.Lock()
	p.available = false
	p.lastErr = err
	fns := p.notifiableLocked()
	p.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// AddListener registers a callback invoked on every update. The
// returned function removes the listener.
func (p *Passive[T]) AddListener(fn func()) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Data returns the most recent value. The bool is false until the
// first Set.
func (p *Passive[T]) Data() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data, p.hasData
}

// Available reports whether the source delivered data more recently
// than it was marked lost.
func (p *Passive[T]) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// LastError returns the error from SetUnavailable, or nil.
func (p *Passive[T]) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Passive[T]) notifiableLocked() []func() {
	if !p.started {
		return nil
	}
	return p.listenersLocked()
}

func (p *Passive[T]) listenersLocked() []func() {
	fns := make([]func(), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	return fns
}
