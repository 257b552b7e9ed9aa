package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Lash-L/hubcore/internal/entity"
	"github.com/Lash-L/hubcore/internal/entry"
	"github.com/Lash-L/hubcore/internal/flow"
	"github.com/Lash-L/hubcore/internal/infrastructure/config"
	"github.com/Lash-L/hubcore/internal/infrastructure/logging"
)

// demoIntegration is a minimal integration so entries created through
// flows reach the loaded state.
type demoIntegration struct{}

func (demoIntegration) Domain() string { return "demo" }

func (demoIntegration) Setup(context.Context, *entry.Entry) (entry.UnloadFunc, error) {
	return func(context.Context) error { return nil }, nil
}

// demoFlow asks for a name and creates an entry with it.
type demoFlow struct{}

func (demoFlow) Step(ctx context.Context, fc *flow.Context, stepID string, input map[string]string) flow.Result {
	schema := []flow.Field{{Name: "name", Required: true}}
	if input == nil {
		return fc.ShowForm(flow.StepUser, schema, nil)
	}
	name := input["name"]
	if name == "" {
		return fc.ShowForm(flow.StepUser, schema, map[string]string{"name": "required"})
	}
	if err := fc.SetUniqueID(ctx, strings.ToLower(name)); err != nil {
		return fc.Abort(flow.ReasonAlreadyConfigured)
	}
	return fc.CreateEntry(ctx, name, map[string]any{"name": name})
}

// lampEntity is a commandable test entity.
type lampEntity struct {
	on bool
}

func (l *lampEntity) UniqueID() string { return "demo_lamp_1" }
func (l *lampEntity) Name() string     { return "Demo Lamp" }
func (l *lampEntity) Available() bool  { return true }

func (l *lampEntity) DeviceInfo() entity.DeviceInfo {
	return entity.DeviceInfo{Identifiers: []string{"demo:lamp-1"}, Manufacturer: "Demo"}
}

func (l *lampEntity) State() entity.State {
	value := "off"
	if l.on {
		value = "on"
	}
	return entity.State{Value: value}
}

func (l *lampEntity) Command(_ context.Context, name string, _ map[string]any) error {
	switch name {
	case "turn_on":
		l.on = true
		return nil
	case "turn_off":
		l.on = false
		return nil
	default:
		return fmt.Errorf("%w: %s", entity.ErrUnknownCommand, name)
	}
}

// gaugeEntity is a read-only test entity.
type gaugeEntity struct{}

func (gaugeEntity) UniqueID() string              { return "demo_gauge_1" }
func (gaugeEntity) Name() string                  { return "Demo Gauge" }
func (gaugeEntity) Available() bool               { return true }
func (gaugeEntity) DeviceInfo() entity.DeviceInfo { return entity.DeviceInfo{} }
func (gaugeEntity) State() entity.State           { return entity.State{Value: "42"} }

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

// testServer wires a Server against in-memory persistence and demo
// integrations.
func testServer(t *testing.T) (*Server, *entity.Registry, *entry.Manager) {
	t.Helper()

	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "test.db")+"?_foreign_keys=on")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE config_entries (
			id         TEXT PRIMARY KEY,
			domain     TEXT NOT NULL,
			title      TEXT NOT NULL,
			unique_id  TEXT NOT NULL DEFAULT '',
			data       TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`)
	if err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	entries := entry.NewManager(entry.NewSQLiteRepository(db), 10*time.Millisecond)
	entries.Register(demoIntegration{})
	t.Cleanup(func() { entries.Close(context.Background()) })

	flows := flow.NewManager(entries)
	flows.Register("demo", func() flow.Flow { return demoFlow{} })

	registry := entity.NewRegistry(nil, nil, nil)

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{
				Secret:         testJWTSecret,
				AccessTokenTTL: 15,
			},
			Operator: config.OperatorConfig{
				Username: "operator",
				Password: "hunter2",
			},
		},
		Logger:   log,
		Flows:    flows,
		Entries:  entries,
		Entities: registry,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv.startedAt = time.Now()
	srv.Hub()

	return srv, registry, entries
}

// doJSON performs a request against the router and decodes the JSON response.
func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
		}
	}
	return rec
}

// login returns a valid token for the test operator.
func login(t *testing.T, handler http.Handler) string {
	t.Helper()

	var resp loginResponse
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "",
		loginRequest{Username: "operator", Password: "hunter2"}, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if resp.AccessToken == "" {
		t.Fatal("login returned empty access token")
	}
	return resp.AccessToken
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	var resp map[string]any
	rec := doJSON(t, router, http.MethodGet, "/api/v1/health", "", nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("unexpected health payload: %v", resp)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "",
		loginRequest{Username: "operator", Password: "wrong"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	// No token at all.
	rec := doJSON(t, router, http.MethodGet, "/api/v1/entities", "", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	// Garbage token.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/entities", "not-a-jwt", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", rec.Code)
	}

	// Real token.
	token := login(t, router)
	rec = doJSON(t, router, http.MethodGet, "/api/v1/entities", token, nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}
}

func TestFlowLifecycle(t *testing.T) {
	srv, _, entries := testServer(t)
	router := srv.buildRouter()
	token := login(t, router)

	// Domain listing includes our demo flow.
	var domains struct {
		Domains []string `json:"domains"`
	}
	rec := doJSON(t, router, http.MethodGet, "/api/v1/flows", token, nil, &domains)
	if rec.Code != http.StatusOK {
		t.Fatalf("list domains: status = %d", rec.Code)
	}
	if len(domains.Domains) != 1 || domains.Domains[0] != "demo" {
		t.Fatalf("domains = %v, want [demo]", domains.Domains)
	}

	// Unknown domain is a 404.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/flows", token,
		startFlowRequest{Domain: "nope"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown domain: status = %d, want 404", rec.Code)
	}

	// Start the flow; expect the user form.
	var form flow.Result
	rec = doJSON(t, router, http.MethodPost, "/api/v1/flows", token,
		startFlowRequest{Domain: "demo"}, &form)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start flow: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if form.Type != flow.TypeForm || form.StepID != flow.StepUser {
		t.Fatalf("unexpected first step: %+v", form)
	}

	// Submit it and get a created entry.
	var done flow.Result
	rec = doJSON(t, router, http.MethodPost, "/api/v1/flows/"+form.FlowID, token,
		submitFlowRequest{StepID: form.StepID, Input: map[string]string{"name": "Living Room"}}, &done)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit flow: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if done.Type != flow.TypeCreateEntry || done.EntryID == "" {
		t.Fatalf("unexpected final result: %+v", done)
	}

	// The entry is visible and loaded.
	var listing struct {
		Entries []entry.Snapshot `json:"entries"`
		Count   int              `json:"count"`
	}
	rec = doJSON(t, router, http.MethodGet, "/api/v1/entries", token, nil, &listing)
	if rec.Code != http.StatusOK {
		t.Fatalf("list entries: status = %d", rec.Code)
	}
	if listing.Count != 1 || listing.Entries[0].ID != done.EntryID {
		t.Fatalf("unexpected entries: %+v", listing)
	}
	if state := entries.State(done.EntryID); state != entry.StateLoaded {
		t.Errorf("entry state = %q, want loaded", state)
	}

	// Submitting against a finished flow is a 404.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/flows/"+form.FlowID, token,
		submitFlowRequest{StepID: form.StepID, Input: map[string]string{"name": "x"}}, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("finished flow: status = %d, want 404", rec.Code)
	}
}

func TestCancelFlow(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()
	token := login(t, router)

	var form flow.Result
	doJSON(t, router, http.MethodPost, "/api/v1/flows", token,
		startFlowRequest{Domain: "demo"}, &form)

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/flows/"+form.FlowID, token, nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel: status = %d, want 204", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/flows/"+form.FlowID, token, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cancel again: status = %d, want 404", rec.Code)
	}
}

func TestEntityEndpoints(t *testing.T) {
	srv, registry, _ := testServer(t)
	router := srv.buildRouter()
	token := login(t, router)

	lamp := &lampEntity{}
	if err := registry.Add("demo", "entry-1", lamp, gaugeEntity{}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Listing returns both, sorted by ID.
	var listing struct {
		Entities []entity.Snapshot `json:"entities"`
		Count    int               `json:"count"`
	}
	rec := doJSON(t, router, http.MethodGet, "/api/v1/entities", token, nil, &listing)
	if rec.Code != http.StatusOK || listing.Count != 2 {
		t.Fatalf("list: status = %d, count = %d", rec.Code, listing.Count)
	}
	if listing.Entities[0].ID != "demo_gauge_1" || listing.Entities[1].ID != "demo_lamp_1" {
		t.Errorf("unexpected order: %s, %s", listing.Entities[0].ID, listing.Entities[1].ID)
	}

	// Single entity fetch.
	var snap entity.Snapshot
	rec = doJSON(t, router, http.MethodGet, "/api/v1/entities/demo_lamp_1", token, nil, &snap)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}
	if snap.State.Value != "off" || !snap.Commandable {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/entities/missing", token, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing entity: status = %d, want 404", rec.Code)
	}

	// Commands.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/entities/demo_lamp_1/command", token,
		commandRequest{Command: "turn_on"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("command: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !lamp.on {
		t.Error("command did not reach the entity")
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/entities/demo_lamp_1/command", token,
		commandRequest{Command: "explode"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown command: status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/entities/demo_gauge_1/command", token,
		commandRequest{Command: "turn_on"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("read-only entity: status = %d, want 400", rec.Code)
	}
}

func TestDeleteEntry(t *testing.T) {
	srv, _, entries := testServer(t)
	router := srv.buildRouter()
	token := login(t, router)

	id, err := entries.CreateEntry(context.Background(), "demo", "Demo", "u1", nil)
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/entries/"+id, token, nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d, want 204", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/entries/"+id, token, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete again: status = %d, want 404", rec.Code)
	}
}

func TestReloadEntry(t *testing.T) {
	srv, _, entries := testServer(t)
	router := srv.buildRouter()
	token := login(t, router)

	id, err := entries.CreateEntry(context.Background(), "demo", "Demo", "u1", nil)
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	var resp map[string]any
	rec := doJSON(t, router, http.MethodPost, "/api/v1/entries/"+id+"/reload", token, nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("reload: status = %d", rec.Code)
	}
	if resp["state"] != string(entry.StateLoaded) {
		t.Errorf("state after reload = %v, want loaded", resp["state"])
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/entries/missing/reload", token, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing entry: status = %d, want 404", rec.Code)
	}
}

func TestFactoryReset(t *testing.T) {
	srv, _, entries := testServer(t)
	router := srv.buildRouter()
	token := login(t, router)

	if _, err := entries.CreateEntry(context.Background(), "demo", "One", "u1", nil); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if _, err := entries.CreateEntry(context.Background(), "demo", "Two", "u2", nil); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	// Wrong confirmation string is rejected.
	rec := doJSON(t, router, http.MethodPost, "/api/v1/system/factory-reset", token,
		FactoryResetRequest{Confirm: "yes please"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad confirm: status = %d, want 400", rec.Code)
	}

	var resp FactoryResetResponse
	rec = doJSON(t, router, http.MethodPost, "/api/v1/system/factory-reset", token,
		FactoryResetRequest{Confirm: "FACTORY RESET"}, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if resp.EntriesDeleted != 2 {
		t.Errorf("entries_deleted = %d, want 2", resp.EntriesDeleted)
	}

	snapshots, err := entries.Snapshots(context.Background())
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snapshots) != 0 {
		t.Errorf("%d entries remain after reset", len(snapshots))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, registry, _ := testServer(t)
	router := srv.buildRouter()

	if err := registry.Add("demo", "entry-1", &lampEntity{}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	var metrics SystemMetrics
	rec := doJSON(t, router, http.MethodGet, "/api/v1/metrics", "", nil, &metrics)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if metrics.Entities.Total != 1 || metrics.Entities.ByDomain["demo"] != 1 {
		t.Errorf("unexpected entity metrics: %+v", metrics.Entities)
	}
	if metrics.Runtime.Goroutines == 0 {
		t.Error("runtime metrics missing")
	}
}

func TestWebSocket_TicketAndBroadcast(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()
	token := login(t, router)

	ts := httptest.NewServer(router)
	defer ts.Close()

	// Connecting without a ticket fails.
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	if _, _, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatal("dial without ticket should fail")
	}

	// Fetch a ticket over the authenticated REST API.
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/auth/ws-ticket", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("ws-ticket request: %v", err)
	}
	defer resp.Body.Close()
	var ticketResp struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ticketResp); err != nil {
		t.Fatalf("decoding ticket: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?ticket="+ticketResp.Ticket, nil)
	if err != nil {
		t.Fatalf("dial with ticket: %v", err)
	}
	defer conn.Close()

	// Subscribe to entity state changes.
	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{entity.ChannelStateChanged}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("reading subscribe ack: %v", err)
	}
	if ack.Type != WSTypeResponse {
		t.Fatalf("ack type = %q, want response", ack.Type)
	}

	// A hub broadcast reaches the subscribed client.
	srv.Hub().Broadcast(entity.ChannelStateChanged, map[string]any{"id": "demo_lamp_1"})

	var event WSMessage
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != entity.ChannelStateChanged {
		t.Errorf("unexpected event: %+v", event)
	}

	// Tickets are single-use.
	if _, _, err := websocket.DefaultDialer.Dial(wsURL+"?ticket="+ticketResp.Ticket, nil); err == nil {
		t.Error("reused ticket should be rejected")
	}
}
