package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	apiws "github.com/sensei-project/sensei-bridged/internal/api/websocket"
	"github.com/sensei-project/sensei-bridged/internal/auth"
	"github.com/sensei-project/sensei-bridged/internal/hardware"
	"github.com/sensei-project/sensei-bridged/internal/mapping"
	"github.com/sensei-project/sensei-bridged/internal/queue"
	"github.com/sensei-project/sensei-bridged/internal/types"
)

type fakeFrontend struct {
	hardware.StateHolder
	q *queue.Queue[types.Command]
}

func (f *fakeFrontend) Run()                                         {}
func (f *fakeFrontend) Stop()                                        {}
func (f *fakeFrontend) Connected() bool                              { return true }
func (f *fakeFrontend) Mute(bool)                                    {}
func (f *fakeFrontend) VerifyAcks(bool)                              {}
func (f *fakeFrontend) ToFrontendQueue() *queue.Queue[types.Command] { return f.q }

type fakeStatus struct{}

func (fakeStatus) Status() map[string]any { return map[string]any{"state": "running"} }

type fakeReloader struct{ err error }

func (r *fakeReloader) ReloadConfig() error { return r.err }

const testSecret = "a-test-secret-at-least-32-bytes-long"

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	hasher := auth.NewPasswordHasher()
	hash, err := hasher.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	creds := auth.NewCredentialStore([]auth.Credential{
		{Username: "alice", PasswordHash: hash, Role: "admin"},
	})
	jwt := auth.NewJWTHandler(testSecret, time.Hour)
	hub := apiws.NewHub(zap.NewNop())
	processor := mapping.NewProcessor(8, zap.NewNop())
	frontend := &fakeFrontend{q: queue.New[types.Command]()}

	s := NewServer(0, zap.NewNop(), queue.NewEventQueue(), processor, frontend, hub, creds, jwt, fakeStatus{}, &fakeReloader{})

	token, err := jwt.GenerateToken("alice", "admin")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return s, token
}

func doRequest(s *Server, method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheckReturnsOK(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestLoginSucceedsWithValidCredentials(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/v1/auth/login", loginRequest{Username: "alice", Password: "s3cret"}, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.AccessToken == "" || resp.TokenType != "Bearer" {
		t.Errorf("unexpected login response: %+v", resp)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/v1/auth/login", loginRequest{Username: "alice", Password: "wrong"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestStatusRequiresAuthentication(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/v1/status", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestStatusReturnsSourceSnapshotWhenAuthenticated(t *testing.T) {
	s, token := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/v1/status", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if decoded["state"] != "running" {
		t.Errorf("status payload = %v, want state=running", decoded)
	}
}

func TestSubmitPinCommandAcceptsKnownTag(t *testing.T) {
	s, token := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/v1/pins/4/command",
		commandRequest{Tag: "SET_PIN_TYPE", PinType: "analog_input"}, token)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}

	cmd, ok := s.eventQueue.Pop()
	if !ok {
		t.Fatal("submitted command never reached the event queue")
	}
	c, ok := cmd.(types.Command)
	if !ok {
		t.Fatalf("queue entry has type %T, want types.Command", cmd)
	}
	if c.PinIndex != 4 || c.Tag != types.SetPinType || c.PinType != types.PinTypeAnalogInput {
		t.Errorf("queued command = %+v, want pin 4 SET_PIN_TYPE analog_input", c)
	}
}

func TestSubmitPinCommandRejectsUnknownTag(t *testing.T) {
	s, token := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/v1/pins/0/command", commandRequest{Tag: "NOT_A_REAL_TAG"}, token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSubmitPinCommandRejectsNonNumericIndex(t *testing.T) {
	s, token := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/v1/pins/not-a-number/command", commandRequest{Tag: "SET_PIN_TYPE"}, token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestListPinsReportsOnlyInitializedPins(t *testing.T) {
	s, token := newTestServer(t)
	s.processor.ApplyCommand(types.Command{Tag: types.SetPinType, PinIndex: 2, PinType: types.PinTypeDigitalInput})

	rec := doRequest(s, http.MethodGet, "/api/v1/pins", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var decoded struct {
		Pins []pinSummary `json:"pins"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(decoded.Pins) != 1 || decoded.Pins[0].Index != 2 || decoded.Pins[0].PinType != "digital_input" {
		t.Errorf("listPins() = %+v, want exactly pin 2 as digital_input", decoded.Pins)
	}
}

func TestReloadConfigSurfacesReloaderError(t *testing.T) {
	hasher := auth.NewPasswordHasher()
	hash, _ := hasher.HashPassword("s3cret")
	creds := auth.NewCredentialStore([]auth.Credential{{Username: "alice", PasswordHash: hash, Role: "admin"}})
	jwt := auth.NewJWTHandler(testSecret, time.Hour)
	hub := apiws.NewHub(zap.NewNop())
	processor := mapping.NewProcessor(8, zap.NewNop())
	frontend := &fakeFrontend{q: queue.New[types.Command]()}
	s := NewServer(0, zap.NewNop(), queue.NewEventQueue(), processor, frontend, hub, creds, jwt, fakeStatus{}, &fakeReloader{err: errors.New("reload failed")})

	token, _ := jwt.GenerateToken("alice", "admin")
	rec := doRequest(s, http.MethodPost, "/api/v1/config/reload", nil, token)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestConfigReloadRequiresAdminPermission(t *testing.T) {
	hasher := auth.NewPasswordHasher()
	hash, _ := hasher.HashPassword("s3cret")
	creds := auth.NewCredentialStore([]auth.Credential{{Username: "bob", PasswordHash: hash, Role: "viewer"}})
	jwt := auth.NewJWTHandler(testSecret, time.Hour)
	hub := apiws.NewHub(zap.NewNop())
	processor := mapping.NewProcessor(8, zap.NewNop())
	frontend := &fakeFrontend{q: queue.New[types.Command]()}
	s := NewServer(0, zap.NewNop(), queue.NewEventQueue(), processor, frontend, hub, creds, jwt, fakeStatus{}, &fakeReloader{})

	token, _ := jwt.GenerateToken("bob", "viewer")
	rec := doRequest(s, http.MethodPost, "/api/v1/config/reload", nil, token)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestWsLiveRejectsMissingToken(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/v1/ws/live", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
