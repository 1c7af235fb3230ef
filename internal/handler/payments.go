package handler

import (
	"context"
	"net/http"

	"github.com/caixa-pos/api/internal/enum"
	"github.com/caixa-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
)

// PaymentConfirmer marks an order paid and records the sale.
// Satisfied by *service.Reconciler.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, orderID string, method enum.PaymentMethod, by string) (*service.ConfirmResult, error)
}

// PaymentHandler handles payment confirmation.
type PaymentHandler struct {
	reconciler PaymentConfirmer
	pins       PinAuthorizer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(reconciler PaymentConfirmer, pins PinAuthorizer) *PaymentHandler {
	return &PaymentHandler{reconciler: reconciler, pins: pins}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/pedidos/{id}/pagamento", h.Confirm)
}

type confirmPaymentRequest struct {
	Method string `json:"method" validate:"required,oneof=DINHEIRO CARTAO PIX ONLINE"`
	Pin    string `json:"pin" validate:"required"`
}

type confirmPaymentResponse struct {
	Pedido      orderResponse    `json:"pedido"`
	Caixa       *sessionResponse `json:"caixa,omitempty"`
	AlreadyPaid bool             `json:"alreadyPaid"`
}

// Confirm handles POST /pedidos/{id}/pagamento. Confirming an order that is
// already paid answers 200 with alreadyPaid set.
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	op, err := h.pins.Authorize(r.Context(), req.Pin, enum.CashRoles...)
	if err != nil {
		writeServiceError(w, r, "authorize pin", err)
		return
	}

	res, err := h.reconciler.Confirm(r.Context(), chi.URLParam(r, "id"), enum.PaymentMethod(req.Method), op.AccessID)
	if err != nil {
		writeServiceError(w, r, "confirm payment", err)
		return
	}

	resp := confirmPaymentResponse{Pedido: dbOrderToResponse(res.Order), AlreadyPaid: res.AlreadyPaid}
	if res.Session != nil {
		view := toSessionResponse(res.Session)
		resp.Caixa = &view
	}
	writeJSON(w, http.StatusOK, resp)
}
