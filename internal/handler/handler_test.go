package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/caixa-pos/api/internal/auth"
	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/enum"
	"github.com/caixa-pos/api/internal/service"
	"github.com/google/uuid"
)

const testJWTSecret = "test-jwt-secret-for-handlers"

// --- Request helpers ---

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	// Generate a real JWT token from claims
	token, err := auth.GenerateToken(testJWTSecret, claims.OperatorID, claims.AccessID, claims.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v; body: %s", err, rr.Body.String())
	}
	return resp
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v; body: %s", err, rr.Body.String())
	}
	return resp
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	resp := decodeMap(t, rr)
	if resp["error"] != want {
		t.Errorf("error: got %q, want %q", resp["error"], want)
	}
}

func caixaClaims() *auth.Claims {
	return &auth.Claims{OperatorID: uuid.New(), AccessID: "007", Role: string(enum.RoleCaixa)}
}

// --- Mock PIN gate ---

// mockPins accepts "1234" as the PIN of operator "042".
type mockPins struct {
	err error
}

func (m *mockPins) Authorize(_ context.Context, pin string, _ ...enum.OperatorRole) (database.Operator, error) {
	if m.err != nil {
		return database.Operator{}, m.err
	}
	if pin != "1234" {
		return database.Operator{}, service.ErrInvalidPin
	}
	return database.Operator{ID: uuid.New(), AccessID: "042", Role: enum.RoleCaixa, Active: true}, nil
}

// --- Recording notifier ---

type capturedEvent struct {
	topic, eventType string
	payload          any
}

type captureNotifier struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (c *captureNotifier) Notify(topic, eventType string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, capturedEvent{topic, eventType, payload})
}
