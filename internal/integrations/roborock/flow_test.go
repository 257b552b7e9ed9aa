package roborock

import (
	"context"
	"sync"
	"testing"

	"github.com/Lash-L/hubcore/internal/flow"
)

// fakeAccount scripts the vendor account API.
type fakeAccount struct {
	resolveErr error
	requestErr error
	loginErr   error
	user       *UserData

	requestedFor string
	loggedInWith string
}

func (f *fakeAccount) ResolveBaseURL(context.Context, string) error { return f.resolveErr }

func (f *fakeAccount) RequestCode(_ context.Context, email string) error {
	f.requestedFor = email
	return f.requestErr
}

func (f *fakeAccount) CodeLogin(_ context.Context, email, code string) (*UserData, error) {
	f.loggedInWith = code
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.user, nil
}

func (f *fakeAccount) BaseURL() string { return "https://euiot.roborock.com" }

// flowStore is an in-memory flow.EntryStore.
type flowStore struct {
	mu      sync.Mutex
	unique  map[string]bool // domain+uniqueID
	created []string        // titles
	data    map[string]any
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
	s.created = append(s.created, title)
	s.data = data
	return "entry-1", nil
}

func newFlowManager(account *fakeAccount, store flow.EntryStore) *flow.Manager {
	m := flow.NewManager(store)
	m.Register(Domain, func() flow.Flow { return NewConfigFlow(account) })
	return m
}

func TestConfigFlow_FullPairing(t *testing.T) {
	account := &fakeAccount{user: &UserData{UID: 1, Token: "tok"}}
	store := newFlowStore()
	m := newFlowManager(account, store)
	ctx := context.Background()

	res, err := m.Start(ctx, Domain)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.Type != flow.TypeForm || res.StepID != flow.StepUser {
		t.Fatalf("initial result = %+v", res)
	}

	res, err = m.Submit(ctx, res.FlowID, flow.StepUser, map[string]string{"email": "User@Example.com"})
	if err != nil {
		t.Fatalf("Submit(user) error = %v", err)
	}
	if res.Type != flow.TypeForm || res.StepID != stepCode {
		t.Fatalf("after email, result = %+v", res)
	}
	if account.requestedFor != "User@Example.com" {
		t.Errorf("code requested for %q", account.requestedFor)
	}

	res, err = m.Submit(ctx, res.FlowID, stepCode, map[string]string{"code": "123456"})
	if err != nil {
		t.Fatalf("Submit(code) error = %v", err)
	}
	if res.Type != flow.TypeCreateEntry {
		t.Fatalf("after code, result = %+v", res)
	}

	// Unique ID is the lowercased email
	if !store.unique[Domain+"/user@example.com"] {
		t.Error("unique id not lowercased email")
	}
	if store.data["username"] != "User@Example.com" {
		t.Errorf("entry username = %v", store.data["username"])
	}
	if store.data["base_url"] != "https://euiot.roborock.com" {
		t.Errorf("entry base_url = %v", store.data["base_url"])
	}
	if _, ok := store.data["user_data"].(map[string]any); !ok {
		t.Errorf("entry user_data = %T", store.data["user_data"])
	}
}

func TestConfigFlow_AlreadyConfigured(t *testing.T) {
	account := &fakeAccount{}
	store := newFlowStore()
	store.unique[Domain+"/user@example.com"] = true
	m := newFlowManager(account, store)
	ctx := context.Background()

	res, _ := m.Start(ctx, Domain)
	res, err := m.Submit(ctx, res.FlowID, flow.StepUser, map[string]string{"email": "USER@example.com"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Type != flow.TypeAbort || res.Reason != flow.ReasonAlreadyConfigured {
		t.Errorf("result = %+v, want already_configured abort", res)
	}
}

func TestConfigFlow_ErrorTranslation(t *testing.T) {
	tests := []struct {
		name       string
		account    *fakeAccount
		email      string
		wantError  string
		wantStepID string
	}{
		{
			name:       "malformed email",
			account:    &fakeAccount{},
			email:      "not-an-email",
			wantError:  "invalid_email",
			wantStepID: flow.StepUser,
		},
		{
			name:       "vendor rejects email",
			account:    &fakeAccount{requestErr: ErrAuth},
			email:      "user@example.com",
			wantError:  "invalid_email",
			wantStepID: flow.StepUser,
		},
		{
			name:       "vendor unreachable",
			account:    &fakeAccount{requestErr: ErrConnect},
			email:      "user@example.com",
			wantError:  "unknown",
			wantStepID: flow.StepUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newFlowManager(tt.account, newFlowStore())
			ctx := context.Background()

			res, _ := m.Start(ctx, Domain)
			res, err := m.Submit(ctx, res.FlowID, flow.StepUser, map[string]string{"email": tt.email})
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if res.Type != flow.TypeForm || res.StepID != tt.wantStepID {
				t.Fatalf("result = %+v", res)
			}
			got := res.Errors["base"]
			if res.Errors["email"] != "" {
				got = res.Errors["email"]
			}
			if got != tt.wantError {
				t.Errorf("error code = %q, want %q", got, tt.wantError)
			}
		})
	}
}

func TestConfigFlow_InvalidCode(t *testing.T) {
	account := &fakeAccount{loginErr: ErrAuth}
	m := newFlowManager(account, newFlowStore())
	ctx := context.Background()

	res, _ := m.Start(ctx, Domain)
	res, err := m.Submit(ctx, res.FlowID, flow.StepUser, map[string]string{"email": "user@example.com"})
	if err != nil {
		t.Fatalf("Submit(user) error = %v", err)
	}

	res, err = m.Submit(ctx, res.FlowID, stepCode, map[string]string{"code": "000000"})
	if err != nil {
		t.Fatalf("Submit(code) error = %v", err)
	}
	if res.Type != flow.TypeForm || res.StepID != stepCode || res.Errors["base"] != "invalid_code" {
		t.Errorf("result = %+v, want code form with invalid_code", res)
	}
}

func TestUserData_EntryRoundTrip(t *testing.T) {
	user := &UserData{
		UID:    42,
		Token:  "tok",
		RRUID:  "rr-1",
		Region: "eu",
	}
	user.RRIoT.UserID = "u1"
	user.RRIoT.Reference.MQTT = "ssl://mqtt-eu.example.com:8883"

	data := toEntryData(user)
	got, err := userDataFromEntry(data)
	if err != nil {
		t.Fatalf("userDataFromEntry() error = %v", err)
	}
	if got.UID != 42 || got.Token != "tok" || got.RRIoT.Reference.MQTT != user.RRIoT.Reference.MQTT {
		t.Errorf("round trip = %+v", got)
	}

	if _, err := userDataFromEntry(nil); err == nil {
		t.Error("userDataFromEntry(nil) succeeded")
	}
}
