package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/caixa-pos/api/internal/auth"
	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/enum"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// AuthStore defines the database methods needed by auth handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AuthStore interface {
	GetOperatorByAccessID(ctx context.Context, accessID string) (database.Operator, error)
	GetOperatorByID(ctx context.Context, id uuid.UUID) (database.Operator, error)
}

// AuthHandler handles terminal login.
type AuthHandler struct {
	store     AuthStore
	jwtSecret string
	verify    func(pin, hash string) bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(store AuthStore, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: jwtSecret, verify: auth.VerifyPin}
}

// RegisterRoutes registers auth endpoints on the given Chi router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/pin-login", h.PinLogin)
	r.Post("/auth/refresh", h.Refresh)
}

// --- Request / Response types ---

type pinLoginRequest struct {
	AccessID string `json:"accessId" validate:"required"`
	Pin      string `json:"pin" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type tokenResponse struct {
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	Operator     operatorResponse `json:"operator"`
}

type operatorResponse struct {
	ID       uuid.UUID         `json:"id"`
	AccessID string            `json:"accessId"`
	Name     string            `json:"name"`
	Role     enum.OperatorRole `json:"role"`
}

// --- Handlers ---

// PinLogin handles accessId + PIN authentication for terminals.
// An unknown access id and a wrong PIN get the same answer.
func (h *AuthHandler) PinLogin(w http.ResponseWriter, r *http.Request) {
	var req pinLoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	op, err := h.store.GetOperatorByAccessID(r.Context(), req.AccessID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Error().Err(err).Msg("pin login: get operator")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !h.verify(req.Pin, op.PinHash) {
		log.Warn().Str("access_id", req.AccessID).Msg("pin login rejected")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.respondWithTokens(w, op)
}

// Refresh exchanges a valid refresh token for a new access + refresh token pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	operatorID, err := auth.ValidateRefreshToken(h.jwtSecret, req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	op, err := h.store.GetOperatorByID(r.Context(), operatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "operator not found")
			return
		}
		log.Error().Err(err).Msg("refresh: get operator")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.respondWithTokens(w, op)
}

// --- Helpers ---

func (h *AuthHandler) respondWithTokens(w http.ResponseWriter, op database.Operator) {
	accessToken, err := auth.GenerateToken(h.jwtSecret, op.ID, op.AccessID, string(op.Role))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	refreshToken, err := auth.GenerateRefreshToken(h.jwtSecret, op.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Operator: operatorResponse{
			ID:       op.ID,
			AccessID: op.AccessID,
			Name:     op.Name,
			Role:     op.Role,
		},
	})
}
