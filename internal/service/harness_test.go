package service

import (
	"context"
	"testing"
	"time"

	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/enum"
	"github.com/caixa-pos/api/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRetry = RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

type harness struct {
	db         *memDB
	notifier   *recordingNotifier
	sessions   *SessionService
	ledger     *Ledger
	orders     *OrderService
	reconciler *Reconciler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := newMemDB()
	n := &recordingNotifier{}
	return &harness{
		db:         db,
		notifier:   n,
		sessions:   NewSessionService(db, newMemSessionStore, n),
		ledger:     NewLedger(db, newMemLedgerStore, n, testRetry),
		orders:     NewOrderService(db, newMemOrderStore, n),
		reconciler: NewReconciler(db, newMemOrderStore, n, testRetry),
	}
}

func (h *harness) open(t *testing.T, base money.Cents) *CashSession {
	t.Helper()
	s, err := h.sessions.Open(context.Background(), base, "000")
	require.NoError(t, err)
	return s
}

func (h *harness) active(t *testing.T) *CashSession {
	t.Helper()
	s, err := h.sessions.GetActive(context.Background())
	require.NoError(t, err)
	return s
}

// burgerOrder totals 4250: two X-Burger at 15.00 and one Refri at 12.50.
func burgerOrder() CreateOrderRequest {
	return CreateOrderRequest{
		Cliente: "Maria",
		Items: []CreateOrderItemRequest{
			{Nome: "X-Burger", Quantidade: 2, Preco: 1500},
			{Nome: "Refri", Quantidade: 1, Preco: 1250},
		},
		CreatedBy: "000",
	}
}

func (h *harness) createOrder(t *testing.T, req CreateOrderRequest) database.Order {
	t.Helper()
	o, err := h.orders.Create(context.Background(), req)
	require.NoError(t, err)
	return o
}

func (h *harness) advance(t *testing.T, id string, to ...enum.OrderStatus) database.Order {
	t.Helper()
	var o database.Order
	var err error
	for _, st := range to {
		o, err = h.orders.Transition(context.Background(), id, st)
		require.NoError(t, err, "transition to %s", st)
	}
	return o
}

var toCompleto = []enum.OrderStatus{
	enum.OrderStatusEmPreparo,
	enum.OrderStatusPronto,
	enum.OrderStatusEmRota,
	enum.OrderStatusCompleto,
}

// checkInvariants asserts the ledger invariants that must hold after every
// operation.
func checkInvariants(t *testing.T, s *CashSession) {
	t.Helper()

	var completos money.Cents
	for _, c := range s.Completos {
		assert.False(t, c.Total.IsNegative(), "completo %s negative", c.OrderID)
		completos = completos.Add(c.Total)
	}
	assert.Equal(t, completos, s.Totals.Vendas, "vendas must equal sum of completos")

	var byMethod money.Cents
	for m, v := range s.Totals.PorPagamento {
		assert.True(t, m.Settles(), "unexpected method %s", m)
		assert.False(t, v.IsNegative())
		byMethod = byMethod.Add(v)
	}
	assert.Equal(t, s.Totals.Vendas, byMethod, "porPagamento must sum to vendas")

	assert.Equal(t, len(s.Completos), s.VendasCount)
	assert.False(t, s.Base.IsNegative())
	assert.False(t, s.Totals.Entradas.IsNegative())
	assert.False(t, s.Totals.Saidas.IsNegative())

	seen := map[string]bool{}
	for _, c := range s.Completos {
		assert.False(t, seen[c.OrderID], "order %s counted twice", c.OrderID)
		seen[c.OrderID] = true
	}
}
