package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/caixa-pos/api/internal/auth"
	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/enum"
	"github.com/caixa-pos/api/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// --- Mock AuthStore ---

type mockAuthStore struct {
	operators map[string]database.Operator
}

func (m *mockAuthStore) GetOperatorByAccessID(_ context.Context, accessID string) (database.Operator, error) {
	op, ok := m.operators[accessID]
	if !ok {
		return database.Operator{}, pgx.ErrNoRows
	}
	return op, nil
}

func (m *mockAuthStore) GetOperatorByID(_ context.Context, id uuid.UUID) (database.Operator, error) {
	for _, op := range m.operators {
		if op.ID == id {
			return op, nil
		}
	}
	return database.Operator{}, pgx.ErrNoRows
}

func setupAuthRouter(t *testing.T) (*chi.Mux, database.Operator) {
	t.Helper()
	hash, err := auth.HashPin("4821")
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}
	op := database.Operator{
		ID:       uuid.New(),
		AccessID: "007",
		Name:     "Joana",
		Role:     enum.RoleCaixa,
		PinHash:  hash,
		Active:   true,
	}
	store := &mockAuthStore{operators: map[string]database.Operator{op.AccessID: op}}
	r := chi.NewRouter()
	handler.NewAuthHandler(store, testJWTSecret).RegisterRoutes(r)
	return r, op
}

// --- Tests ---

func TestPinLogin(t *testing.T) {
	router, op := setupAuthRouter(t)

	rr := doRequest(t, router, "POST", "/auth/pin-login", map[string]string{"accessId": "007", "pin": "4821"})
	assertStatus(t, rr, http.StatusOK)

	resp := decodeMap(t, rr)
	claims, err := auth.ValidateToken(testJWTSecret, resp["accessToken"].(string))
	if err != nil {
		t.Fatalf("access token: %v", err)
	}
	if claims.OperatorID != op.ID || claims.AccessID != "007" || claims.Role != "CAIXA" {
		t.Errorf("unexpected claims %+v", claims)
	}
	operator := resp["operator"].(map[string]interface{})
	if operator["name"] != "Joana" {
		t.Errorf("name: got %v", operator["name"])
	}
	if _, ok := operator["pinHash"]; ok {
		t.Error("pin hash must not be exposed")
	}
}

func TestPinLogin_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]string
		status int
		err    string
	}{
		{"wrong pin", map[string]string{"accessId": "007", "pin": "0000"}, http.StatusUnauthorized, "invalid credentials"},
		{"unknown operator", map[string]string{"accessId": "999", "pin": "4821"}, http.StatusUnauthorized, "invalid credentials"},
		{"missing pin", map[string]string{"accessId": "007"}, http.StatusBadRequest, "pin is required"},
		{"missing access id", map[string]string{"pin": "4821"}, http.StatusBadRequest, "accessId is required"},
	}
	router, _ := setupAuthRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, router, "POST", "/auth/pin-login", tt.body)
			assertStatus(t, rr, tt.status)
			assertError(t, rr, tt.err)
		})
	}
}

func TestRefresh(t *testing.T) {
	router, op := setupAuthRouter(t)

	refresh, err := auth.GenerateRefreshToken(testJWTSecret, op.ID)
	if err != nil {
		t.Fatalf("generate refresh: %v", err)
	}
	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{"refreshToken": refresh})
	assertStatus(t, rr, http.StatusOK)
	if resp := decodeMap(t, rr); resp["accessToken"] == "" {
		t.Error("expected a new access token")
	}

	rr = doRequest(t, router, "POST", "/auth/refresh", map[string]string{"refreshToken": "garbage"})
	assertStatus(t, rr, http.StatusUnauthorized)
	assertError(t, rr, "invalid refresh token")

	stranger, _ := auth.GenerateRefreshToken(testJWTSecret, uuid.New())
	rr = doRequest(t, router, "POST", "/auth/refresh", map[string]string{"refreshToken": stranger})
	assertStatus(t, rr, http.StatusUnauthorized)
	assertError(t, rr, "operator not found")
}
