package entry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// mockRepo is an in-memory Repository for manager tests.
type mockRepo struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func newMockRepo() *mockRepo {
	return &mockRepo{entries: make(map[string]*Entry)}
}

func (r *mockRepo) GetByID(_ context.Context, id string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	copy := *e
	return &copy, nil
}

func (r *mockRepo) List(context.Context) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out, nil
}

func (r *mockRepo) ListByDomain(_ context.Context, domain string) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if e.Domain == domain {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *mockRepo) HasUniqueID(_ context.Context, domain, uniqueID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if uniqueID == "" {
		return false, nil
	}
	for _, e := range r.entries {
		if e.Domain == domain && e.UniqueID == uniqueID {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockRepo) Create(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.UniqueID != "" {
		for _, other := range r.entries {
			if other.Domain == e.Domain && other.UniqueID == e.UniqueID {
				return ErrUniqueIDTaken
			}
		}
	}
	copy := *e
	r.entries[e.ID] = &copy
	return nil
}

func (r *mockRepo) UpdateData(_ context.Context, id string, data map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	e.Data = data
	return nil
}

func (r *mockRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(r.entries, id)
	return nil
}

// mockIntegration counts setup/unload calls and fails per a script.
type mockIntegration struct {
	domain string

	mu       sync.Mutex
	setups   int
	unloads  int
	failures []error // errors returned by successive Setup calls, then success
}

func (m *mockIntegration) Domain() string { return m.domain }

func (m *mockIntegration) Setup(context.Context, *Entry) (UnloadFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setups++
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return nil, err
	}
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.unloads++
		return nil
	}, nil
}

func (m *mockIntegration) counts() (setups, unloads int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setups, m.unloads
}

func seedEntry(t *testing.T, repo Repository, id, domain string) {
	t.Helper()
	now := time.Now()
	err := repo.Create(context.Background(), &Entry{
		ID: id, Domain: domain, Title: "Test", Data: map[string]any{},
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seeding entry: %v", err)
	}
}

func TestManager_SetupIdempotent(t *testing.T) {
	repo := newMockRepo()
	in := &mockIntegration{domain: "roborock"}
	m := NewManager(repo, time.Hour)
	m.Register(in)
	seedEntry(t, repo, "e1", "roborock")
	ctx := context.Background()

	if err := m.Setup(ctx, "e1"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := m.Setup(ctx, "e1"); err != nil {
		t.Fatalf("second Setup() error = %v", err)
	}

	if setups, _ := in.counts(); setups != 1 {
		t.Errorf("integration set up %d times, want 1", setups)
	}
	if got := m.State("e1"); got != StateLoaded {
		t.Errorf("State() = %v, want %v", got, StateLoaded)
	}
}

// blockingIntegration parks Setup until released, modelling a slow
// device handshake.
type blockingIntegration struct {
	domain  string
	entered chan struct{}
	release chan struct{}

	mu     sync.Mutex
	setups int
}

func (b *blockingIntegration) Domain() string { return b.domain }

func (b *blockingIntegration) Setup(context.Context, *Entry) (UnloadFunc, error) {
	b.mu.Lock()
	b.setups++
	b.mu.Unlock()
	b.entered <- struct{}{}
	<-b.release
	return func(context.Context) error { return nil }, nil
}

func TestManager_ConcurrentSetupRunsOnce(t *testing.T) {
	repo := newMockRepo()
	in := &blockingIntegration{
		domain:  "roborock",
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	m := NewManager(repo, time.Hour)
	m.Register(in)
	seedEntry(t, repo, "e1", "roborock")
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() { firstDone <- m.Setup(ctx, "e1") }()
	<-in.entered // first attempt is inside Integration.Setup

	// A second Setup while the first is in flight must yield without
	// invoking Integration.Setup again.
	if err := m.Setup(ctx, "e1"); err != nil {
		t.Fatalf("concurrent Setup() error = %v", err)
	}

	close(in.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	in.mu.Lock()
	setups := in.setups
	in.mu.Unlock()
	if setups != 1 {
		t.Errorf("integration set up %d times, want 1", setups)
	}
	if got := m.State("e1"); got != StateLoaded {
		t.Errorf("State() = %v, want %v", got, StateLoaded)
	}
}

func TestManager_SetupUnknownDomain(t *testing.T) {
	repo := newMockRepo()
	m := NewManager(repo, time.Hour)
	seedEntry(t, repo, "e1", "ghost")

	err := m.Setup(context.Background(), "e1")
	if !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("Setup() error = %v, want ErrUnknownDomain", err)
	}
	if got := m.State("e1"); got != StateNotLoaded {
		t.Errorf("State() = %v, want %v", got, StateNotLoaded)
	}
}

func TestManager_SetupPermanentFailure(t *testing.T) {
	repo := newMockRepo()
	in := &mockIntegration{domain: "roborock", failures: []error{errors.New("bad credentials")}}
	m := NewManager(repo, time.Hour)
	m.Register(in)
	seedEntry(t, repo, "e1", "roborock")

	if err := m.Setup(context.Background(), "e1"); err == nil {
		t.Fatal("Setup() succeeded, want error")
	}
	if got := m.State("e1"); got != StateSetupError {
		t.Errorf("State() = %v, want %v", got, StateSetupError)
	}
}

func TestManager_SetupRetrySucceedsEventually(t *testing.T) {
	repo := newMockRepo()
	in := &mockIntegration{
		domain: "roborock",
		failures: []error{
			fmt.Errorf("device asleep: %w", ErrSetupRetry),
			fmt.Errorf("device asleep: %w", ErrSetupRetry),
		},
	}
	m := NewManager(repo, 10*time.Millisecond)
	m.Register(in)
	seedEntry(t, repo, "e1", "roborock")

	if err := m.Setup(context.Background(), "e1"); !errors.Is(err, ErrSetupRetry) {
		t.Fatalf("Setup() error = %v, want ErrSetupRetry", err)
	}
	if got := m.State("e1"); got != StateSetupRetry {
		t.Fatalf("State() = %v, want %v", got, StateSetupRetry)
	}

	deadline := time.After(2 * time.Second)
	for m.State("e1") != StateLoaded {
		select {
		case <-deadline:
			t.Fatalf("entry never loaded, state = %v", m.State("e1"))
		case <-time.After(5 * time.Millisecond):
		}
	}

	if setups, _ := in.counts(); setups != 3 {
		t.Errorf("integration set up %d times, want 3", setups)
	}

	m.Close(context.Background())
}

func TestManager_UnloadStopsRetry(t *testing.T) {
	repo := newMockRepo()
	in := &mockIntegration{
		domain:   "roborock",
		failures: []error{fmt.Errorf("asleep: %w", ErrSetupRetry)},
	}
	m := NewManager(repo, 20*time.Millisecond)
	m.Register(in)
	seedEntry(t, repo, "e1", "roborock")
	ctx := context.Background()

	if err := m.Setup(ctx, "e1"); !errors.Is(err, ErrSetupRetry) {
		t.Fatalf("Setup() error = %v, want ErrSetupRetry", err)
	}
	if err := m.Unload(ctx, "e1"); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}

	// Give a cancelled retry loop time to misbehave if it were going to.
	time.Sleep(60 * time.Millisecond)

	if setups, _ := in.counts(); setups != 1 {
		t.Errorf("integration set up %d times after unload, want 1", setups)
	}
	if got := m.State("e1"); got != StateNotLoaded {
		t.Errorf("State() = %v, want %v", got, StateNotLoaded)
	}
}

func TestManager_UnloadIdempotent(t *testing.T) {
	repo := newMockRepo()
	in := &mockIntegration{domain: "roborock"}
	m := NewManager(repo, time.Hour)
	m.Register(in)
	seedEntry(t, repo, "e1", "roborock")
	ctx := context.Background()

	if err := m.Setup(ctx, "e1"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := m.Unload(ctx, "e1"); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}
	if err := m.Unload(ctx, "e1"); err != nil {
		t.Fatalf("second Unload() error = %v", err)
	}

	if _, unloads := in.counts(); unloads != 1 {
		t.Errorf("integration unloaded %d times, want 1", unloads)
	}
}

func TestManager_Reload(t *testing.T) {
	repo := newMockRepo()
	in := &mockIntegration{domain: "roborock"}
	m := NewManager(repo, time.Hour)
	m.Register(in)
	seedEntry(t, repo, "e1", "roborock")
	ctx := context.Background()

	if err := m.Setup(ctx, "e1"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := m.Reload(ctx, "e1"); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	setups, unloads := in.counts()
	if setups != 2 || unloads != 1 {
		t.Errorf("counts = (%d setups, %d unloads), want (2, 1)", setups, unloads)
	}
	if got := m.State("e1"); got != StateLoaded {
		t.Errorf("State() = %v, want %v", got, StateLoaded)
	}
}

func TestManager_Delete(t *testing.T) {
	repo := newMockRepo()
	in := &mockIntegration{domain: "roborock"}
	m := NewManager(repo, time.Hour)
	m.Register(in)
	seedEntry(t, repo, "e1", "roborock")
	ctx := context.Background()

	if err := m.Setup(ctx, "e1"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := m.Delete(ctx, "e1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, unloads := in.counts(); unloads != 1 {
		t.Errorf("integration unloaded %d times, want 1", unloads)
	}
	if _, err := repo.GetByID(ctx, "e1"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("entry still persisted after delete: %v", err)
	}
}

func TestManager_CreateEntrySurvivesSetupFailure(t *testing.T) {
	repo := newMockRepo()
	in := &mockIntegration{domain: "roborock", failures: []error{errors.New("boom")}}
	m := NewManager(repo, time.Hour)
	m.Register(in)
	ctx := context.Background()

	id, err := m.CreateEntry(ctx, "roborock", "My Vacuum", "user@example.com", map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}

	e, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("entry not persisted: %v", err)
	}
	if e.UniqueID != "user@example.com" || e.Title != "My Vacuum" {
		t.Errorf("persisted entry = %+v", e)
	}
	if got := m.State(id); got != StateSetupError {
		t.Errorf("State() = %v, want %v", got, StateSetupError)
	}
}

func TestManager_StateChangeCallback(t *testing.T) {
	repo := newMockRepo()
	in := &mockIntegration{domain: "roborock"}
	m := NewManager(repo, time.Hour)
	m.Register(in)
	seedEntry(t, repo, "e1", "roborock")

	var mu sync.Mutex
	var transitions []State
	m.SetOnStateChange(func(_ *Entry, s State) {
		mu.Lock()
		transitions = append(transitions, s)
		mu.Unlock()
	})

	ctx := context.Background()
	if err := m.Setup(ctx, "e1"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := m.Unload(ctx, "e1"); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateLoaded, StateNotLoaded}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %v, want %v", i, transitions[i], want[i])
		}
	}
}
