package flow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sessionTTL is how long an idle flow session survives before being pruned.
// Pairing wizards are interactive; a session untouched for this long is
// abandoned.
const sessionTTL = 15 * time.Minute

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

// session is one live pairing attempt.
type session struct {
	flow     Flow
	fc       *Context
	domain   string
	lastSeen time.Time
}

// Manager owns flow factories and live sessions.
//
// All public methods are thread-safe.
type Manager struct {
	store     EntryStore
	factories map[string]Factory
	sessions  map[string]*session
	mu        sync.Mutex
	logger    Logger
}

// NewManager creates a flow manager backed by the given entry store.
func NewManager(store EntryStore) *Manager {
	return &Manager{
		store:     store,
		factories: make(map[string]Factory),
		sessions:  make(map[string]*session),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Register adds a flow factory for an integration domain.
// Registering the same domain twice replaces the factory.
func (m *Manager) Register(domain string, factory Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[domain] = factory
}

// Domains returns the registered integration domains, sorted.
func (m *Manager) Domains() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	domains := make([]string, 0, len(m.factories))
	for d := range m.factories {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// Start begins a new flow for the domain and runs its initial step.
// Returns ErrUnknownDomain if no factory is registered.
func (m *Manager) Start(ctx context.Context, domain string) (Result, error) {
	m.mu.Lock()
	factory, ok := m.factories[domain]
	if !ok {
		m.mu.Unlock()
		return Result{}, ErrUnknownDomain
	}

	m.pruneStaleLocked()

	s := &session{
		flow: factory(),
		fc: &Context{
			flowID: uuid.NewString(),
			domain: domain,
			store:  m.store,
		},
		domain:   domain,
		lastSeen: time.Now(),
	}
	m.sessions[s.fc.flowID] = s
	m.mu.Unlock()

	m.logger.Debug("flow started", "domain", domain, "flow_id", s.fc.flowID)
	return m.step(ctx, s, StepUser, nil), nil
}

// Submit advances a live flow with user input.
// Returns ErrFlowNotFound if the flow ID does not match a live session.
func (m *Manager) Submit(ctx context.Context, flowID, stepID string, input map[string]string) (Result, error) {
	m.mu.Lock()
	s, ok := m.sessions[flowID]
	if !ok {
		m.mu.Unlock()
		return Result{}, ErrFlowNotFound
	}
	s.lastSeen = time.Now()
	m.mu.Unlock()

	return m.step(ctx, s, stepID, input), nil
}

// Cancel discards a live flow session.
func (m *Manager) Cancel(flowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[flowID]; !ok {
		return ErrFlowNotFound
	}
	delete(m.sessions, flowID)
	return nil
}

// SessionCount returns the number of live flow sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// step runs one flow step and retires the session on a terminal result.
func (m *Manager) step(ctx context.Context, s *session, stepID string, input map[string]string) Result {
	result := s.flow.Step(ctx, s.fc, stepID, input)

	switch result.Type {
	case TypeCreateEntry, TypeAbort:
		m.mu.Lock()
		delete(m.sessions, s.fc.flowID)
		m.mu.Unlock()

		if result.Type == TypeCreateEntry {
			m.logger.Info("flow finished", "domain", s.domain, "entry_id", result.EntryID)
		} else {
			m.logger.Info("flow aborted", "domain", s.domain, "reason", result.Reason)
		}
	case TypeForm, TypeExternal:
		// Session stays live for the next submission.
	}

	return result
}

// pruneStaleLocked drops sessions idle past sessionTTL.
// Caller must hold m.mu.
func (m *Manager) pruneStaleLocked() {
	cutoff := time.Now().Add(-sessionTTL)
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
