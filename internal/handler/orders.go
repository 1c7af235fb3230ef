package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/enum"
	"github.com/caixa-pos/api/internal/middleware"
	"github.com/caixa-pos/api/internal/money"
	"github.com/caixa-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService.
type OrderServicer interface {
	Create(ctx context.Context, req service.CreateOrderRequest) (database.Order, error)
	Transition(ctx context.Context, id string, next enum.OrderStatus) (database.Order, error)
	Get(ctx context.Context, id string) (database.Order, error)
	List(ctx context.Context, f service.ListOrdersFilter) ([]database.Order, error)
	Track(ctx context.Context, id, code string) (database.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc OrderServicer
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterRoutes registers staff order endpoints. Expects Authenticate to
// run first.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/pedidos", h.Create)
	r.Get("/pedidos", h.List)
	r.Get("/pedidos/{id}", h.Get)
	r.Put("/pedidos/{id}", h.UpdateStatus)
}

// RegisterPublicRoutes registers the customer tracking endpoint.
func (h *OrderHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/rastreio/{id}", h.Track)
}

// --- Request types ---

type createOrderRequest struct {
	Cliente    string                   `json:"cliente" validate:"max=120"`
	Itens      []createOrderItemRequest `json:"itens" validate:"required,min=1,dive"`
	Pagamento  string                   `json:"pagamento" validate:"omitempty,oneof=PENDENTE DINHEIRO CARTAO PIX ONLINE"`
	Troco      string                   `json:"troco"`
	Endereco   string                   `json:"endereco" validate:"max=300"`
	Observacao string                   `json:"observacao" validate:"max=500"`
}

type createOrderItemRequest struct {
	Nome       string `json:"nome" validate:"required,max=120"`
	Quantidade int64  `json:"quantidade" validate:"gt=0,max=10000"`
	Preco      string `json:"preco" validate:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// --- Handlers ---

// Create handles POST /pedidos.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createOrderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	svcItems := make([]service.CreateOrderItemRequest, len(req.Itens))
	for i, it := range req.Itens {
		preco, err := money.FromDecimalString(it.Preco)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("itens[%d]: %v", i, err))
			return
		}
		svcItems[i] = service.CreateOrderItemRequest{Nome: it.Nome, Quantidade: it.Quantidade, Preco: preco}
	}

	svcReq := service.CreateOrderRequest{
		Cliente:    req.Cliente,
		Items:      svcItems,
		Pagamento:  enum.PaymentMethod(req.Pagamento),
		Endereco:   req.Endereco,
		Observacao: req.Observacao,
		CreatedBy:  claims.AccessID,
	}
	if req.Troco != "" {
		troco, err := money.FromDecimalString(req.Troco)
		if err != nil {
			writeServiceError(w, r, "create order", err)
			return
		}
		svcReq.Troco = &troco
	}

	order, err := h.svc.Create(r.Context(), svcReq)
	if err != nil {
		writeServiceError(w, r, "create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, dbOrderToResponse(order))
}

// List handles GET /pedidos?status=&session=&limit=&offset=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePage(r, 50, 200)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit or offset")
		return
	}
	f := service.ListOrdersFilter{
		Status: enum.OrderStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	if v := r.URL.Query().Get("session"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid session id")
			return
		}
		f.SessionID = &id
	}

	orders, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, "list orders", err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, dbOrderToResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /pedidos/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// UpdateStatus handles PUT /pedidos/{id}.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	next, err := enum.ParseOrderStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	updated, err := h.svc.Transition(r.Context(), chi.URLParam(r, "id"), next)
	if err != nil {
		writeServiceError(w, r, "update order status", err)
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(updated))
}

// Track handles GET /rastreio/{id}?code=1234. A wrong code answers 404.
func (h *OrderHandler) Track(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	order, err := h.svc.Track(r.Context(), chi.URLParam(r, "id"), code)
	if err != nil {
		writeServiceError(w, r, "track order", err)
		return
	}
	writeJSON(w, http.StatusOK, trackingResponse{
		ID:         order.ID,
		Status:     order.Status,
		Timestamps: order.Timestamps,
	})
}
