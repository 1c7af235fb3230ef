package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/caixa-pos/api/internal/auth"
	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/enum"
	"github.com/caixa-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
)

// OperatorStore defines the database methods needed by operator handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OperatorStore interface {
	ListOperators(ctx context.Context) ([]database.Operator, error)
	CreateOperator(ctx context.Context, arg database.CreateOperatorParams) (database.Operator, error)
	UpdateOperator(ctx context.Context, arg database.UpdateOperatorParams) (database.Operator, error)
	DeactivateOperator(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// allRoles is every role a PIN could collide with.
var allRoles = []enum.OperatorRole{enum.RoleAdmin, enum.RoleGerente, enum.RoleCaixa, enum.RoleCozinha, enum.RoleEntregador}

// OperatorHandler manages the operators who can log in and sign caixa
// actions. Mount behind RequireRole(ADMIN, GERENTE).
type OperatorHandler struct {
	store OperatorStore
	pins  PinAuthorizer
}

// NewOperatorHandler creates a new OperatorHandler. pins is used to keep
// PINs unique, since a PIN alone identifies who signs an action.
func NewOperatorHandler(store OperatorStore, pins PinAuthorizer) *OperatorHandler {
	return &OperatorHandler{store: store, pins: pins}
}

// RegisterRoutes registers operator endpoints on the given Chi router.
func (h *OperatorHandler) RegisterRoutes(r chi.Router) {
	r.Get("/operadores", h.List)
	r.Post("/operadores", h.Create)
	r.Put("/operadores/{id}", h.Update)
	r.Delete("/operadores/{id}", h.Delete)
}

// --- Request / Response types ---

type createOperatorRequest struct {
	AccessID string `json:"accessId" validate:"required,max=20"`
	Name     string `json:"name" validate:"required,max=120"`
	Role     string `json:"role" validate:"required,oneof=ADMIN GERENTE CAIXA COZINHA ENTREGADOR"`
	Pin      string `json:"pin" validate:"required"`
}

type updateOperatorRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	Role string `json:"role" validate:"required,oneof=ADMIN GERENTE CAIXA COZINHA ENTREGADOR"`
	Pin  string `json:"pin"`
}

type operatorDetailResponse struct {
	ID        uuid.UUID         `json:"id"`
	AccessID  string            `json:"accessId"`
	Name      string            `json:"name"`
	Role      enum.OperatorRole `json:"role"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"createdAt"`
}

func toOperatorDetailResponse(op database.Operator) operatorDetailResponse {
	return operatorDetailResponse{
		ID:        op.ID,
		AccessID:  op.AccessID,
		Name:      op.Name,
		Role:      op.Role,
		Active:    op.Active,
		CreatedAt: op.CreatedAt,
	}
}

// --- Handlers ---

// List returns all active operators.
func (h *OperatorHandler) List(w http.ResponseWriter, r *http.Request) {
	ops, err := h.store.ListOperators(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list operators")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]operatorDetailResponse, len(ops))
	for i, op := range ops {
		resp[i] = toOperatorDetailResponse(op)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create adds an operator.
func (h *OperatorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOperatorRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	hash, ok := h.hashNewPin(w, r, req.Pin, uuid.Nil)
	if !ok {
		return
	}

	op, err := h.store.CreateOperator(r.Context(), database.CreateOperatorParams{
		AccessID: req.AccessID,
		Name:     req.Name,
		Role:     enum.OperatorRole(req.Role),
		PinHash:  hash,
	})
	if err != nil {
		if isDuplicate(err) {
			writeError(w, http.StatusConflict, "access id already exists")
			return
		}
		log.Error().Err(err).Msg("create operator")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toOperatorDetailResponse(op))
}

// Update changes an operator's name and role, and the PIN when one is sent.
func (h *OperatorHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid operator ID")
		return
	}

	var req updateOperatorRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	pinHash := pgtype.Text{}
	if req.Pin != "" {
		hash, ok := h.hashNewPin(w, r, req.Pin, id)
		if !ok {
			return
		}
		pinHash = pgtype.Text{String: hash, Valid: true}
	}

	op, err := h.store.UpdateOperator(r.Context(), database.UpdateOperatorParams{
		ID:      id,
		Name:    req.Name,
		Role:    enum.OperatorRole(req.Role),
		PinHash: pinHash,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "operator not found")
			return
		}
		log.Error().Err(err).Msg("update operator")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toOperatorDetailResponse(op))
}

// Delete deactivates an operator. Their access id stays on past sessions.
func (h *OperatorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid operator ID")
		return
	}

	if _, err := h.store.DeactivateOperator(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "operator not found")
			return
		}
		log.Error().Err(err).Msg("deactivate operator")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

// hashNewPin validates pin, rejects it when another active operator already
// uses it, and returns its hash. self is the operator being updated.
func (h *OperatorHandler) hashNewPin(w http.ResponseWriter, r *http.Request, pin string, self uuid.UUID) (string, bool) {
	hash, err := auth.HashPin(pin)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}

	owner, err := h.pins.Authorize(r.Context(), pin, allRoles...)
	switch {
	case err == nil && owner.ID != self:
		writeError(w, http.StatusConflict, "pin already in use")
		return "", false
	case err != nil && !errors.Is(err, service.ErrInvalidPin):
		writeServiceError(w, r, "check pin", err)
		return "", false
	}
	return hash, true
}

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
