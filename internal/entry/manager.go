package entry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger defines the logging interface used by the Manager.
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

// UnloadFunc releases everything an integration allocated for one entry:
// coordinators, transports, entities. Called at most once per setup.
type UnloadFunc func(ctx context.Context) error

// Integration is implemented by each integration's runtime adapter.
type Integration interface {
	// Domain returns the integration domain ("roborock", "southern_company").
	Domain() string

	// Setup loads one config entry. A transient failure (device asleep,
	// cloud unreachable) is reported by wrapping ErrSetupRetry; the
	// manager will retry on an interval. Any other error is final until
	// an explicit reload.
	Setup(ctx context.Context, e *Entry) (UnloadFunc, error)
}

// Manager drives config-entry lifecycle: setup on start, background
// retry for transient failures, unload/reload/delete on demand.
//
// All public methods are thread-safe.
type Manager struct {
	repo          Repository
	retryInterval time.Duration

	mu           sync.Mutex
	integrations map[string]Integration
	states       map[string]State
	unloaders    map[string]UnloadFunc
	retryCancels map[string]context.CancelFunc

	// settingUp marks entries with a Setup call in flight, so a retry
	// tick racing an API reload can't run Integration.Setup twice and
	// leak the loser's unloader.
	settingUp map[string]struct{}

	logger Logger

	// onStateChange, when set, is invoked after every lifecycle state
	// transition (for MQTT event publishing). Set before SetupAll.
	onStateChange func(e *Entry, state State)
}

// NewManager creates a config-entry manager.
func NewManager(repo Repository, retryInterval time.Duration) *Manager {
	return &Manager{
		repo:          repo,
		retryInterval: retryInterval,
		integrations:  make(map[string]Integration),
		states:        make(map[string]State),
		unloaders:     make(map[string]UnloadFunc),
		retryCancels:  make(map[string]context.CancelFunc),
		settingUp:     make(map[string]struct{}),
		logger:        noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetOnStateChange sets the lifecycle event callback.
func (m *Manager) SetOnStateChange(fn func(e *Entry, state State)) {
	m.onStateChange = fn
}

// Register adds an integration. Entries for unregistered domains stay
// not_loaded.
func (m *Manager) Register(in Integration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.integrations[in.Domain()] = in
}

// SetupAll sets up every persisted entry. Individual setup failures are
// logged, not returned; a hub with one dead vacuum still starts.
func (m *Manager) SetupAll(ctx context.Context) error {
	entries, err := m.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("listing entries: %w", err)
	}

	for i := range entries {
		if err := m.Setup(ctx, entries[i].ID); err != nil {
			m.logger.Warn("entry setup failed",
				"entry_id", entries[i].ID,
				"domain", entries[i].Domain,
				"error", err,
			)
		}
	}
	return nil
}

// Setup loads one entry. Idempotent: an already-loaded entry is a
// no-op, and a Setup racing another Setup for the same entry yields to
// the attempt already in flight.
func (m *Manager) Setup(ctx context.Context, id string) error {
	e, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.states[id] == StateLoaded {
		m.mu.Unlock()
		return nil
	}
	if _, inFlight := m.settingUp[id]; inFlight {
		m.mu.Unlock()
		return nil
	}
	in, ok := m.integrations[e.Domain]
	if !ok {
		m.states[id] = StateNotLoaded
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownDomain, e.Domain)
	}
	// Cancel any pending retry loop; this attempt supersedes it.
	m.cancelRetryLocked(id)
	m.settingUp[id] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.settingUp, id)
		m.mu.Unlock()
	}()

	unload, err := in.Setup(ctx, e)
	if err != nil {
		state := StateSetupError
		if errors.Is(err, ErrSetupRetry) {
			state = StateSetupRetry
		}

		m.mu.Lock()
		m.states[id] = state
		m.mu.Unlock()
		m.notify(e, state)

		if state == StateSetupRetry {
			m.scheduleRetry(id)
			m.logger.Info("entry setup will retry",
				"entry_id", id, "domain", e.Domain, "in", m.retryInterval)
		}
		return err
	}

	m.mu.Lock()
	m.states[id] = StateLoaded
	m.unloaders[id] = unload
	m.mu.Unlock()

	m.notify(e, StateLoaded)
	m.logger.Info("entry loaded", "entry_id", id, "domain", e.Domain, "title", e.Title)
	return nil
}

// Unload releases one entry's integration resources. Idempotent:
// unloading an entry that is not loaded is a no-op.
func (m *Manager) Unload(ctx context.Context, id string) error {
	m.mu.Lock()
	m.cancelRetryLocked(id)
	unload := m.unloaders[id]
	delete(m.unloaders, id)
	m.states[id] = StateNotLoaded
	m.mu.Unlock()

	if unload == nil {
		return nil
	}

	if err := unload(ctx); err != nil {
		return fmt.Errorf("unloading entry %s: %w", id, err)
	}

	if e, err := m.repo.GetByID(ctx, id); err == nil {
		m.notify(e, StateNotLoaded)
	}
	m.logger.Info("entry unloaded", "entry_id", id)
	return nil
}

// Reload unloads and re-sets-up one entry.
func (m *Manager) Reload(ctx context.Context, id string) error {
	if err := m.Unload(ctx, id); err != nil {
		return err
	}
	return m.Setup(ctx, id)
}

// Delete unloads an entry and removes it from persistence.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.Unload(ctx, id); err != nil {
		m.logger.Warn("unload during delete failed", "entry_id", id, "error", err)
	}

	m.mu.Lock()
	delete(m.states, id)
	m.mu.Unlock()

	return m.repo.Delete(ctx, id)
}

// Close unloads every loaded entry and stops retry loops.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.unloaders))
	for id := range m.unloaders {
		ids = append(ids, id)
	}
	for id := range m.retryCancels {
		m.cancelRetryLocked(id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Unload(ctx, id); err != nil {
			m.logger.Warn("unload during shutdown failed", "entry_id", id, "error", err)
		}
	}
}

// State returns the runtime state of one entry.
func (m *Manager) State(id string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.states[id]; ok {
		return s
	}
	return StateNotLoaded
}

// Snapshots returns all entries with their runtime state.
func (m *Manager) Snapshots(ctx context.Context) ([]Snapshot, error) {
	entries, err := m.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := make([]Snapshot, 0, len(entries))
	for i := range entries {
		snapshots = append(snapshots, Snapshot{
			Entry: entries[i],
			State: m.State(entries[i].ID),
		})
	}
	return snapshots, nil
}

// HasUniqueID implements the flow engine's store interface.
func (m *Manager) HasUniqueID(ctx context.Context, domain, uniqueID string) (bool, error) {
	return m.repo.HasUniqueID(ctx, domain, uniqueID)
}

// CreateEntry persists a new entry from a finished flow and sets it up.
// Setup failure does not fail creation: the entry exists and will be
// retried or reloaded later.
func (m *Manager) CreateEntry(ctx context.Context, domain, title, uniqueID string, data map[string]any) (string, error) {
	now := time.Now()
	e := &Entry{
		ID:        uuid.NewString(),
		Domain:    domain,
		Title:     title,
		UniqueID:  uniqueID,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.repo.Create(ctx, e); err != nil {
		return "", err
	}

	if err := m.Setup(ctx, e.ID); err != nil {
		m.logger.Warn("setup after create failed", "entry_id", e.ID, "error", err)
	}
	return e.ID, nil
}

// UpdateData replaces an entry's stored data (token refresh, reauth).
func (m *Manager) UpdateData(ctx context.Context, id string, data map[string]any) error {
	return m.repo.UpdateData(ctx, id, data)
}

// notify invokes the state-change callback if set.
func (m *Manager) notify(e *Entry, state State) {
	if m.onStateChange != nil {
		m.onStateChange(e, state)
	}
}

// scheduleRetry starts a background loop re-attempting setup until it
// succeeds, fails permanently, or the entry is unloaded/deleted.
func (m *Manager) scheduleRetry(id string) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	// A retry loop may already exist from a previous failure.
	m.cancelRetryLocked(id)
	m.retryCancels[id] = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.retryInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			// Setup cancels this loop's context as part of superseding the
			// retry, so the attempt itself runs on a fresh context.
			err := m.Setup(context.Background(), id)
			if err == nil || !errors.Is(err, ErrSetupRetry) {
				return
			}
			m.logger.Debug("entry setup retry failed", "entry_id", id, "error", err)
		}
	}()
}

// cancelRetryLocked stops a pending retry loop. Caller must hold m.mu.
func (m *Manager) cancelRetryLocked(id string) {
	if cancel, ok := m.retryCancels[id]; ok {
		cancel()
		delete(m.retryCancels, id)
	}
}
