package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"session-service/internal/auth"
	"session-service/internal/handler"
	"session-service/internal/models"
	"session-service/internal/repository/postgres"
	"session-service/internal/service"
	"session-service/internal/util"
)

// memRepo is an in-memory SessionRepository for handler tests.
type memRepo struct {
	sessions []*models.ActiveSession
	nextID   int64
}

func (m *memRepo) Create(ctx context.Context, session *models.ActiveSession) error {
	for _, s := range m.sessions {
		if s.SessionID == session.SessionID {
			return postgres.ErrDuplicateSession
		}
	}
	m.nextID++
	session.ID = m.nextID
	session.LoggedInAt = time.Now().UTC()
	copied := *session
	m.sessions = append(m.sessions, &copied)
	return nil
}

func (m *memRepo) ListByUser(ctx context.Context, userID string) ([]*models.ActiveSession, error) {
	var out []*models.ActiveSession
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRepo) Exists(ctx context.Context, userID, sessionID string) (bool, error) {
	for _, s := range m.sessions {
		if s.UserID == userID && s.SessionID == sessionID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) Delete(ctx context.Context, userID, sessionID string) (bool, error) {
	for i, s := range m.sessions {
		if s.UserID == userID && s.SessionID == sessionID {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// staticVerifier accepts tokens of the form "token-<user>".
type staticVerifier struct{}

func (staticVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	user, ok := strings.CutPrefix(rawToken, "token-")
	if !ok {
		return "", auth.ErrInvalidCredential
	}
	return user, nil
}

func newServerForTest(t *testing.T, deviceLimit int) *httptest.Server {
	t.Helper()

	svc := service.NewSessionService(
		&memRepo{}, service.NoopNotifier{}, service.NewAuditEmitter(nil),
		deviceLimit, util.Get())

	router := handler.NewRouter(
		handler.NewSessionHandler(svc, util.Get()),
		staticVerifier{},
		[]string{"http://localhost:3000"},
		nil,
		util.Get(),
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, token, body string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var payload map[string]json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func fieldString(t *testing.T, payload map[string]json.RawMessage, key string) string {
	t.Helper()
	var s string
	if raw, ok := payload[key]; ok {
		if err := json.Unmarshal(raw, &s); err != nil {
			t.Fatalf("field %s: %v", key, err)
		}
	}
	return s
}

func TestHealthProbeNeedsNoAuth(t *testing.T) {
	srv := newServerForTest(t, 3)

	resp, payload := doRequest(t, srv, http.MethodGet, "/", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := fieldString(t, payload, "status"); got != "ok" {
		t.Fatalf("status field = %q, want ok", got)
	}
}

func TestComponentHealthReportsDegraded(t *testing.T) {
	svc := service.NewSessionService(
		&memRepo{}, service.NoopNotifier{}, service.NewAuditEmitter(nil), 3, util.Get())

	failing := func(ctx context.Context) map[string]error {
		return map[string]error{"postgres": errors.New("connection refused")}
	}
	router := handler.NewRouter(
		handler.NewSessionHandler(svc, util.Get()),
		staticVerifier{},
		[]string{"http://localhost:3000"},
		failing,
		util.Get(),
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	resp, payload := doRequest(t, srv, http.MethodGet, "/health", "", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if got := fieldString(t, payload, "status"); got != "degraded" {
		t.Fatalf("status field = %q, want degraded", got)
	}
}

func TestProtectedRoutesRejectMissingOrBadCredential(t *testing.T) {
	srv := newServerForTest(t, 3)

	resp, _ := doRequest(t, srv, http.MethodGet, "/api/sessions", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", resp.StatusCode)
	}

	resp, _ = doRequest(t, srv, http.MethodGet, "/api/sessions", "garbage", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", resp.StatusCode)
	}
}

func TestRegisterAndLimitFlow(t *testing.T) {
	srv := newServerForTest(t, 3)

	for _, id := range []string{"s1", "s2", "s3"} {
		resp, payload := doRequest(t, srv, http.MethodPost, "/api/session/register",
			"token-u1", `{"session_id":"`+id+`","device_info":"Chrome on Mac"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("register %s: status = %d", id, resp.StatusCode)
		}
		if got := fieldString(t, payload, "status"); got != "success" {
			t.Fatalf("register %s: status field = %q", id, got)
		}
	}

	resp, payload := doRequest(t, srv, http.MethodPost, "/api/session/register",
		"token-u1", `{"session_id":"s4"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register s4: status = %d", resp.StatusCode)
	}
	if got := fieldString(t, payload, "status"); got != "limit_reached" {
		t.Fatalf("register s4: status field = %q, want limit_reached", got)
	}

	var devices []models.ActiveSession
	if err := json.Unmarshal(payload["active_devices"], &devices); err != nil {
		t.Fatalf("decode active_devices: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("active_devices = %d entries, want 3", len(devices))
	}
}

func TestListSessionsReturnsRecords(t *testing.T) {
	srv := newServerForTest(t, 3)

	doRequest(t, srv, http.MethodPost, "/api/session/register",
		"token-u1", `{"session_id":"s1","device_info":"Phone"}`)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer token-u1")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var sessions []models.ActiveSession
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
	if sessions[0].SessionID != "s1" || sessions[0].DeviceInfo != "Phone" {
		t.Fatalf("unexpected session record: %+v", sessions[0])
	}
}

func TestLogoutIsIdempotentOverHTTP(t *testing.T) {
	srv := newServerForTest(t, 3)

	doRequest(t, srv, http.MethodPost, "/api/session/register",
		"token-u1", `{"session_id":"s1"}`)

	for i := 0; i < 2; i++ {
		resp, payload := doRequest(t, srv, http.MethodPost, "/api/session/logout",
			"token-u1", `{"session_id":"s1"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("logout #%d: status = %d, want 200", i+1, resp.StatusCode)
		}
		if got := fieldString(t, payload, "status"); got != "ok" {
			t.Fatalf("logout #%d: status field = %q", i+1, got)
		}
	}
}

func TestForceLogoutFlow(t *testing.T) {
	srv := newServerForTest(t, 3)

	for _, id := range []string{"s1", "s2"} {
		doRequest(t, srv, http.MethodPost, "/api/session/register",
			"token-u1", `{"session_id":"`+id+`"}`)
	}

	// Unknown target
	resp, _ := doRequest(t, srv, http.MethodDelete, "/api/session/missing", "token-u1", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown target: status = %d, want 404", resp.StatusCode)
	}

	// A session owned by another user is indistinguishable from a missing one.
	resp, _ = doRequest(t, srv, http.MethodDelete, "/api/session/s1", "token-u2", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign target: status = %d, want 404", resp.StatusCode)
	}

	resp, payload := doRequest(t, srv, http.MethodDelete, "/api/session/s2", "token-u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("force logout: status = %d, want 200", resp.StatusCode)
	}
	if got := fieldString(t, payload, "status"); got != "ok" {
		t.Fatalf("force logout: status field = %q", got)
	}

	resp, payload = doRequest(t, srv, http.MethodGet, "/api/session/status?session_id=s2", "token-u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status s2: status = %d", resp.StatusCode)
	}
	if got := fieldString(t, payload, "status"); got != "inactive" {
		t.Fatalf("status s2 = %q, want inactive", got)
	}

	resp, payload = doRequest(t, srv, http.MethodGet, "/api/session/status?session_id=s1", "token-u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status s1: status = %d", resp.StatusCode)
	}
	if got := fieldString(t, payload, "status"); got != "active" {
		t.Fatalf("status s1 = %q, want active", got)
	}
}

func TestDuplicateSessionIDConflicts(t *testing.T) {
	srv := newServerForTest(t, 3)

	doRequest(t, srv, http.MethodPost, "/api/session/register",
		"token-u1", `{"session_id":"s1"}`)

	resp, _ := doRequest(t, srv, http.MethodPost, "/api/session/register",
		"token-u2", `{"session_id":"s1"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate session_id: status = %d, want 409", resp.StatusCode)
	}
}
