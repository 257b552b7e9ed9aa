package southernco

import (
	"context"
	"sync"
	"testing"

	"github.com/Lash-L/hubcore/internal/flow"
)

type fakeAuth struct {
	err    error
	called bool
}

func (f *fakeAuth) Authenticate(context.Context) error {
	f.called = true
	return f.err
}

type flowStore struct {
	mu      sync.Mutex
	unique  map[string]bool
	title   string
	data    map[string]any
	created bool
}

func newFlowStore() *flowStore {
	return &flowStore{unique: make(map[string]bool)}
}

func (s *flowStore) HasUniqueID(_ context.Context, domain, uniqueID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unique[domain+"/"+uniqueID], nil
}

func (s *flowStore) CreateEntry(_ context.Context, domain, title, uniqueID string, data map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unique[domain+"/"+uniqueID] = true
	s.title = title
	s.data = data
	s.created = true
	return "entry-1", nil
}

func newFlowManager(auth *fakeAuth, store flow.EntryStore) *flow.Manager {
	m := flow.NewManager(store)
	m.Register(Domain, func() flow.Flow {
		return NewConfigFlow(func(string, string) Authenticator { return auth })
	})
	return m
}

func TestConfigFlow_ValidCredentials(t *testing.T) {
	auth := &fakeAuth{}
	store := newFlowStore()
	m := newFlowManager(auth, store)
	ctx := context.Background()

	res, err := m.Start(ctx, Domain)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.Type != flow.TypeForm {
		t.Fatalf("initial result = %+v", res)
	}

	res, err = m.Submit(ctx, res.FlowID, flow.StepUser, map[string]string{
		"username": "Power.User",
		"password": "hunter2",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Type != flow.TypeCreateEntry {
		t.Fatalf("result = %+v", res)
	}

	if !auth.called {
		t.Error("credentials were not validated")
	}
	if !store.unique[Domain+"/power.user"] {
		t.Error("unique id not lowercased username")
	}
	if store.data["password"] != "hunter2" {
		t.Errorf("entry data = %v", store.data)
	}
}

func TestConfigFlow_CredentialErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rejected", ErrAuth, "invalid_auth"},
		{"unreachable", ErrConnect, "cannot_connect"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newFlowManager(&fakeAuth{err: tt.err}, newFlowStore())
			ctx := context.Background()

			res, _ := m.Start(ctx, Domain)
			res, err := m.Submit(ctx, res.FlowID, flow.StepUser, map[string]string{
				"username": "user",
				"password": "pass",
			})
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if res.Type != flow.TypeForm || res.Errors["base"] != tt.want {
				t.Errorf("result = %+v, want form with %s", res, tt.want)
			}
		})
	}
}

func TestConfigFlow_DuplicateUsername(t *testing.T) {
	store := newFlowStore()
	store.unique[Domain+"/user"] = true
	m := newFlowManager(&fakeAuth{}, store)
	ctx := context.Background()

	res, _ := m.Start(ctx, Domain)
	res, err := m.Submit(ctx, res.FlowID, flow.StepUser, map[string]string{
		"username": "USER",
		"password": "pass",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Type != flow.TypeAbort || res.Reason != flow.ReasonAlreadyConfigured {
		t.Errorf("result = %+v, want already_configured abort", res)
	}
}
