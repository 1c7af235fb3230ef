package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/enum"
	"github.com/caixa-pos/api/internal/handler"
	"github.com/caixa-pos/api/internal/money"
	"github.com/caixa-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// --- Mock reconciler ---

type mockReconciler struct {
	orders  map[string]database.Order
	session *service.CashSession
	lastBy  string
}

func (m *mockReconciler) Confirm(_ context.Context, orderID string, method enum.PaymentMethod, by string) (*service.ConfirmResult, error) {
	if !method.Settles() {
		return nil, service.ErrInvalidMethod
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, service.ErrOrderNotFound
	}
	if o.PagamentoStatus == enum.PaymentStatusPago {
		return &service.ConfirmResult{Order: o, AlreadyPaid: true}, nil
	}
	if m.session == nil {
		return nil, service.ErrNoActiveSession
	}
	m.lastBy = by
	o.Pagamento = method
	o.PagamentoStatus = enum.PaymentStatusPago
	m.orders[orderID] = o
	m.session.Totals.Vendas = m.session.Totals.Vendas.Add(money.Cents(o.TotalCents))
	return &service.ConfirmResult{Order: o, Session: m.session}, nil
}

func setupPaymentRouter(rec *mockReconciler, pins *mockPins) *chi.Mux {
	h := handler.NewPaymentHandler(rec, pins)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func newPaymentFixture() *mockReconciler {
	return &mockReconciler{
		orders: map[string]database.Order{
			"ABC234": {ID: "ABC234", TotalCents: 4250, Status: enum.OrderStatusEmAguardo, Pagamento: enum.PaymentMethodPendente, PagamentoStatus: enum.PaymentStatusPendente},
		},
		session: &service.CashSession{ID: uuid.New(), Base: 10000},
	}
}

// --- Tests ---

func TestConfirmPayment(t *testing.T) {
	rec := newPaymentFixture()
	router := setupPaymentRouter(rec, &mockPins{})

	rr := doRequest(t, router, "POST", "/pedidos/ABC234/pagamento", map[string]string{"method": "DINHEIRO", "pin": "1234"})
	assertStatus(t, rr, http.StatusOK)
	resp := decodeMap(t, rr)
	if resp["alreadyPaid"] != false {
		t.Errorf("alreadyPaid: got %v, want false", resp["alreadyPaid"])
	}
	pedido := resp["pedido"].(map[string]interface{})
	if pedido["pagamentoStatus"] != "PAGO" || pedido["pagamento"] != "DINHEIRO" {
		t.Errorf("unexpected pedido %v", pedido)
	}
	caixa := resp["caixa"].(map[string]interface{})
	if caixa["saldo"] != "142.50" {
		t.Errorf("saldo: got %v, want 142.50", caixa["saldo"])
	}
	if rec.lastBy != "042" {
		t.Errorf("by: got %q, want PIN owner 042", rec.lastBy)
	}

	// Idempotent re-confirm answers 200.
	rr = doRequest(t, router, "POST", "/pedidos/ABC234/pagamento", map[string]string{"method": "PIX", "pin": "1234"})
	assertStatus(t, rr, http.StatusOK)
	resp = decodeMap(t, rr)
	if resp["alreadyPaid"] != true {
		t.Errorf("alreadyPaid: got %v, want true", resp["alreadyPaid"])
	}
	if _, ok := resp["caixa"]; ok {
		t.Error("caixa should be omitted when nothing was recorded")
	}
	if got := rec.session.Totals.Vendas; got != 4250 {
		t.Errorf("vendas: got %d, want 4250", got)
	}
}

func TestConfirmPayment_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		body      map[string]string
		noSession bool
		status    int
		err       string
	}{
		{"bad pin", "/pedidos/ABC234/pagamento", map[string]string{"method": "PIX", "pin": "0000"}, false, http.StatusForbidden, "invalid pin"},
		{"pending method", "/pedidos/ABC234/pagamento", map[string]string{"method": "PENDENTE", "pin": "1234"}, false, http.StatusBadRequest, "method must be one of: DINHEIRO CARTAO PIX ONLINE"},
		{"missing pin", "/pedidos/ABC234/pagamento", map[string]string{"method": "PIX"}, false, http.StatusBadRequest, "pin is required"},
		{"unknown order", "/pedidos/NOPE99/pagamento", map[string]string{"method": "PIX", "pin": "1234"}, false, http.StatusNotFound, "order not found"},
		{"no session", "/pedidos/ABC234/pagamento", map[string]string{"method": "PIX", "pin": "1234"}, true, http.StatusConflict, "no active session"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newPaymentFixture()
			if tt.noSession {
				rec.session = nil
			}
			router := setupPaymentRouter(rec, &mockPins{})
			rr := doRequest(t, router, "POST", tt.path, tt.body)
			assertStatus(t, rr, tt.status)
			assertError(t, rr, tt.err)
			if rec.orders["ABC234"].PagamentoStatus != enum.PaymentStatusPendente {
				t.Error("order must stay unpaid")
			}
		})
	}
}
