package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/vhtoggle/internal/auth"
	"github.com/nerrad567/vhtoggle/internal/controller"
	"github.com/nerrad567/vhtoggle/internal/device"
	"github.com/nerrad567/vhtoggle/internal/infrastructure/config"
	"github.com/nerrad567/vhtoggle/internal/infrastructure/database"
	"github.com/nerrad567/vhtoggle/internal/infrastructure/logging"
	"github.com/nerrad567/vhtoggle/internal/notify"
	"github.com/nerrad567/vhtoggle/migrations"
)

const (
	testDeviceID = "keyboard"
	testSecret   = "test-secret-key-at-least-32-characters-long"
)

// fakeOutcomes is a settable OutcomeSource.
type fakeOutcomes struct {
	mu      sync.Mutex
	outcome *controller.Outcome
}

func (f *fakeOutcomes) LastOutcome() (controller.Outcome, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcome == nil {
		return controller.Outcome{}, false
	}
	return *f.outcome, true
}

type testEnv struct {
	srv      *Server
	store    *device.MemoryStateStore
	history  *device.SQLiteStateHistoryRepository
	outcomes *fakeOutcomes
	triggers chan controller.Mode
}

// newTestEnv creates a Server backed by a memory store and in-memory SQLite history.
func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	log := logging.Discard()
	wsCfg := config.WebSocketConfig{MaxMessageSize: 4096, PingInterval: 30, PongTimeout: 10}
	hub := NewHub(wsCfg, log)
	hubCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(hubCtx)

	env := &testEnv{
		store:    device.NewMemoryStateStore(),
		history:  device.NewSQLiteStateHistoryRepository(db.DB),
		outcomes: &fakeOutcomes{},
		triggers: make(chan controller.Mode, 1),
	}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:      "127.0.0.1",
			Port:      0,
			JWTSecret: secret,
			Timeouts:  config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:         wsCfg,
		Logger:     log,
		DeviceID:   testDeviceID,
		DeviceName: "Wooting 60HE+",
		Outcomes:   env.outcomes,
		Store:      env.store,
		History:    env.history,
		Triggers:   env.triggers,
		Hub:        hub,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	env.srv = srv
	return env
}

func (e *testEnv) do(t *testing.T, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.srv.buildRouter().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v (body %q)", err, w.Body.String())
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{DeviceID: "x", Outcomes: &fakeOutcomes{}, Store: device.NewMemoryStateStore()}},
		{"no device id", Deps{Logger: logging.Discard(), Outcomes: &fakeOutcomes{}, Store: device.NewMemoryStateStore()}},
		{"no outcomes", Deps{Logger: logging.Discard(), DeviceID: "x", Store: device.NewMemoryStateStore()}},
		{"no store", Deps{Logger: logging.Discard(), DeviceID: "x", Outcomes: &fakeOutcomes{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testSecret)

	// Health is reachable without a token even when auth is on.
	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]any
	decode(t, w, &body)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-id")
	rec := httptest.NewRecorder()
	env.srv.buildRouter().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-id" {
		t.Errorf("X-Request-ID = %q, want client-id", got)
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/v1/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetDevice_Empty(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/v1/device", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	decode(t, w, &body)
	if body["device_id"] != testDeviceID {
		t.Errorf("device_id = %v, want %q", body["device_id"], testDeviceID)
	}
	if body["stored_state"] != nil {
		t.Errorf("stored_state = %v, want null", body["stored_state"])
	}
	if _, ok := body["last_outcome"]; ok {
		t.Error("last_outcome should be omitted before any cycle")
	}
}

func TestGetDevice_WithStateAndOutcome(t *testing.T) {
	env := newTestEnv(t, "")
	if err := env.store.Save(context.Background(), device.StateConnected); err != nil {
		t.Fatalf("Save: %v", err)
	}
	env.outcomes.outcome = &controller.Outcome{
		CycleID: "cycle-1",
		Mode:    "background",
		Device:  device.Connected("192.168.1.2.11"),
	}

	w := env.do(t, http.MethodGet, "/api/v1/device", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body struct {
		StoredState string `json:"stored_state"`
		Label       string `json:"label"`
		LastOutcome struct {
			CycleID string `json:"cycle_id"`
			Device  struct {
				State   string `json:"state"`
				Address string `json:"address"`
			} `json:"device"`
		} `json:"last_outcome"`
	}
	decode(t, w, &body)

	if body.StoredState != "CONNECTED" || body.Label != "Connected" {
		t.Errorf("stored = %q/%q, want CONNECTED/Connected", body.StoredState, body.Label)
	}
	if body.LastOutcome.CycleID != "cycle-1" {
		t.Errorf("cycle_id = %q, want cycle-1", body.LastOutcome.CycleID)
	}
	if body.LastOutcome.Device.Address != "192.168.1.2.11" {
		t.Errorf("address = %q", body.LastOutcome.Device.Address)
	}
}

func TestToggle(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/api/v1/device/toggle", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusAccepted, w.Body.String())
	}
	select {
	case mode := <-env.triggers:
		if mode != controller.ModeInteractive {
			t.Errorf("queued mode = %v, want interactive", mode)
		}
	default:
		t.Fatal("no trigger queued")
	}

	w = env.do(t, http.MethodPost, "/api/v1/device/toggle?mode=refresh", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("refresh status = %d, want %d", w.Code, http.StatusAccepted)
	}
	if mode := <-env.triggers; mode != controller.ModeBackground {
		t.Errorf("queued mode = %v, want background", mode)
	}
}

func TestToggle_QueueFull(t *testing.T) {
	env := newTestEnv(t, "")
	env.triggers <- controller.ModeBackground

	w := env.do(t, http.MethodPost, "/api/v1/device/toggle", "")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
}

func TestToggle_BadMode(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/api/v1/device/toggle?mode=sideways", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestToggle_NoTriggerChannel(t *testing.T) {
	env := newTestEnv(t, "")
	env.srv.triggers = nil

	w := env.do(t, http.MethodPost, "/api/v1/device/toggle", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestGetHistory(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	prev := device.StateDisconnected
	if err := env.history.RecordStateChange(ctx, testDeviceID, nil, device.Disconnected("a.1"), device.StateHistorySourceBackground); err != nil {
		t.Fatalf("RecordStateChange: %v", err)
	}
	if err := env.history.RecordStateChange(ctx, testDeviceID, &prev, device.Connected("a.1"), device.StateHistorySourceInteractive); err != nil {
		t.Fatalf("RecordStateChange: %v", err)
	}

	w := env.do(t, http.MethodGet, "/api/v1/history?limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body struct {
		Count   int                        `json:"count"`
		Entries []device.StateHistoryEntry `json:"entries"`
	}
	decode(t, w, &body)
	if body.Count != 2 || len(body.Entries) != 2 {
		t.Fatalf("count = %d, entries = %d; want 2", body.Count, len(body.Entries))
	}
	if body.Entries[0].State != device.StateConnected {
		t.Errorf("newest entry state = %v, want CONNECTED", body.Entries[0].State)
	}
}

func TestGetHistory_InvalidLimit(t *testing.T) {
	env := newTestEnv(t, "")

	for _, limit := range []string{"0", "-1", "abc", "201"} {
		w := env.do(t, http.MethodGet, "/api/v1/history?limit="+limit, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want %d", limit, w.Code, http.StatusBadRequest)
		}
	}
}

func TestGetHistory_NotConfigured(t *testing.T) {
	env := newTestEnv(t, "")
	env.srv.history = nil

	w := env.do(t, http.MethodGet, "/api/v1/history", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, testSecret)

	readToken, err := auth.GenerateToken("panel", auth.ScopeRead, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	controlToken, err := auth.GenerateToken("waybar", auth.ScopeControl, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/api/v1/device", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/v1/device", "not-a-jwt", http.StatusUnauthorized},
		{"read token reads", http.MethodGet, "/api/v1/device", readToken, http.StatusOK},
		{"read token cannot toggle", http.MethodPost, "/api/v1/device/toggle", readToken, http.StatusForbidden},
		{"control token toggles", http.MethodPost, "/api/v1/device/toggle", controlToken, http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.token)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestWebSocket_ReceivesEvents(t *testing.T) {
	env := newTestEnv(t, testSecret)
	ts := httptest.NewServer(env.srv.buildRouter())
	defer ts.Close()

	token, err := auth.GenerateToken("browser", auth.ScopeRead, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	// Registration happens after the upgrade completes.
	deadline := time.Now().Add(2 * time.Second)
	for env.srv.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if env.srv.hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", env.srv.hub.ClientCount())
	}

	state := device.StateConnected
	ev := notify.Event{
		ID:       "ev-1",
		Kind:     notify.KindStateChanged,
		DeviceID: testDeviceID,
		Message:  "Wooting 60HE+ connected",
		State:    &state,
		Time:     time.Now(),
	}
	if err := env.srv.hub.Notify(context.Background(), ev); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}

	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type      string       `json:"type"`
		EventType string       `json:"event_type"`
		Payload   notify.Event `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error: %v", err)
	}
	if msg.Type != WSTypeEvent || msg.EventType != string(notify.KindStateChanged) {
		t.Errorf("message = %+v", msg)
	}
	if msg.Payload.Message != "Wooting 60HE+ connected" {
		t.Errorf("payload message = %q", msg.Payload.Message)
	}
}

func TestWebSocket_RequiresToken(t *testing.T) {
	env := newTestEnv(t, testSecret)
	ts := httptest.NewServer(env.srv.buildRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("Dial() should fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}

func TestStartClose(t *testing.T) {
	env := newTestEnv(t, "")

	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() should fail before Start")
	}
	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := env.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error: %v", err)
	}

	resp, err := http.Get("http://" + env.srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestHub_ReplaysLastStateToNewClients(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 4096, PingInterval: 30, PongTimeout: 10}, logging.Discard())

	state := device.StateDisconnected
	//nolint:errcheck // Hub.Notify never fails
	hub.Notify(context.Background(), notify.Event{Kind: notify.KindProgress, Message: "Disconnecting kbd..."})
	//nolint:errcheck // Hub.Notify never fails
	hub.Notify(context.Background(), notify.Event{Kind: notify.KindStateChanged, Message: "kbd disconnected", State: &state})

	client := newWSClient(hub, nil, "")
	hub.Register(client)
	defer hub.Unregister(client)

	select {
	case data := <-client.send:
		var msg struct {
			EventType string       `json:"event_type"`
			Payload   notify.Event `json:"payload"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Unmarshal() error: %v", err)
		}
		if msg.EventType != string(notify.KindStateChanged) || msg.Payload.Message != "kbd disconnected" {
			t.Errorf("replayed message = %+v", msg)
		}
	default:
		t.Fatal("new client received no state snapshot")
	}

	select {
	case data := <-client.send:
		t.Errorf("unexpected extra message: %s", data)
	default:
	}
}
