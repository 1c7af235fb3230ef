package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/enum"
	"github.com/caixa-pos/api/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
)

const (
	maxOrderIDRetries = 3
	ordersPkey        = "orders_pkey"

	orderIDLength  = 6
	orderIDChars   = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	orderCodeRange = 10000
)

// Per-line ceilings. A full order must also keep its unit count within the
// int32 item_count column and its total within int64 cents.
const (
	MaxItemQuantity             = 10000
	MaxItemPrice    money.Cents = 10_000_000
)

// OrderStore defines the DB methods needed by the order lifecycle.
// It includes LedgerStore because prepaid orders record their sale in the
// same transaction that creates them.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	LedgerStore
	GetActiveCashSessionForShare(ctx context.Context) (database.CashSession, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id string) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id string) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	Cliente string
	Items   []CreateOrderItemRequest
	// Pagamento is PENDENTE (or empty) for pay-later orders. Any other
	// method creates the order already paid.
	Pagamento  enum.PaymentMethod
	Troco      *money.Cents
	Endereco   string
	Observacao string
	CreatedBy  string
}

// CreateOrderItemRequest is a single line of the order.
type CreateOrderItemRequest struct {
	Nome       string
	Quantidade int64
	Preco      money.Cents
}

// ListOrdersFilter narrows List. Zero values mean "any".
type ListOrdersFilter struct {
	Status    enum.OrderStatus
	SessionID *uuid.UUID
	Limit     int32
	Offset    int32
}

// OrderService handles order business logic.
type OrderService struct {
	db       DB
	newStore NewOrderStore
	notifier Notifier
	now      func() time.Time
	newID    func() (string, error)
	newCode  func() (string, error)
}

// NewOrderService creates a new OrderService.
func NewOrderService(db DB, newStore NewOrderStore, notifier Notifier) *OrderService {
	return &OrderService{
		db:       db,
		newStore: newStore,
		notifier: orNop(notifier),
		now:      time.Now,
		newID:    randomOrderID,
		newCode:  randomOrderCode,
	}
}

// Create validates and stores a new order in EM_AGUARDO, bound to the open
// session. Retries up to maxOrderIDRetries times when the random short id
// collides with an existing order.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (database.Order, error) {
	items, total, err := validateItems(req.Items)
	if err != nil {
		return database.Order{}, err
	}
	if req.Pagamento == "" {
		req.Pagamento = enum.PaymentMethodPendente
	}
	if !req.Pagamento.Valid() {
		return database.Order{}, ErrInvalidMethod
	}
	if req.Troco != nil && req.Troco.IsNegative() {
		return database.Order{}, ErrInvalidTroco
	}
	if strings.TrimSpace(req.CreatedBy) == "" {
		return database.Order{}, ErrInvalidOperator
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderIDRetries; attempt++ {
		order, session, err := s.createOrderTx(ctx, req, items, total)
		if err == nil {
			log.Info().
				Str("order_id", order.ID).
				Str("session_id", order.SessionID.String()).
				Int64("total_cents", order.TotalCents).
				Str("pagamento", string(order.Pagamento)).
				Msg("order created")
			s.notifier.Notify(TopicPedidos, EventPedidoCreated, order)
			if session != nil {
				s.notifier.Notify(TopicCaixa, EventCaixaUpdated, session)
			}
			return order, nil
		}
		if isUniqueViolation(err, ordersPkey) {
			lastErr = err
			continue
		}
		return database.Order{}, err
	}
	return database.Order{}, storageErr("create order", lastErr)
}

// createOrderTx inserts the order, and for prepaid orders its sale, in one
// transaction. The returned session is non-nil only when a sale was recorded.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest, items []database.OrderItem, total money.Cents) (database.Order, *CashSession, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return database.Order{}, nil, storageErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// FOR SHARE blocks a concurrent Close until this order is committed,
	// so Close always sees it in its pending count.
	active, err := store.GetActiveCashSessionForShare(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, nil, ErrNoActiveSession
		}
		return database.Order{}, nil, storageErr("get active session", err)
	}
	if active.Paused {
		return database.Order{}, nil, ErrSessionPaused
	}

	id, err := s.newID()
	if err != nil {
		return database.Order{}, nil, fmt.Errorf("generate order id: %w", err)
	}
	code, err := s.newCode()
	if err != nil {
		return database.Order{}, nil, fmt.Errorf("generate order code: %w", err)
	}

	now := s.now()
	paymentStatus := enum.PaymentStatusPendente
	if req.Pagamento.Settles() {
		paymentStatus = enum.PaymentStatusPago
	}

	troco := pgtype.Int8{}
	if req.Troco != nil {
		troco = pgtype.Int8{Int64: req.Troco.Int64(), Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		ID:              id,
		Code:            code,
		SessionID:       active.ID,
		Status:          enum.OrderStatusEmAguardo,
		Cliente:         strings.TrimSpace(req.Cliente),
		Items:           items,
		TotalCents:      total.Int64(),
		Pagamento:       req.Pagamento,
		PagamentoStatus: paymentStatus,
		TrocoCents:      troco,
		Endereco:        optionalText(req.Endereco),
		Observacao:      optionalText(req.Observacao),
		Timestamps:      map[enum.OrderStatus]time.Time{enum.OrderStatusEmAguardo: now.UTC()},
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		if isUniqueViolation(err, ordersPkey) {
			return database.Order{}, nil, err
		}
		return database.Order{}, nil, storageErr("insert order", err)
	}

	var session *CashSession
	if paymentStatus == enum.PaymentStatusPago {
		if err := recordSale(ctx, store, active.ID, saleFromOrder(order, now)); err != nil {
			return database.Order{}, nil, err
		}
		if session, err = loadSession(ctx, store, active.ID); err != nil {
			return database.Order{}, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, nil, storageErr("commit tx", err)
	}
	return order, session, nil
}

// Transition moves an order to next. The write is conditional on the status
// read, so a concurrent transition makes this one fail instead of
// overwriting it.
func (s *OrderService) Transition(ctx context.Context, id string, next enum.OrderStatus) (database.Order, error) {
	if !next.Valid() {
		return database.Order{}, ErrInvalidStatus
	}

	store := s.newStore(s.db)
	current, err := store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, storageErr("get order", err)
	}
	if current.Status.Terminal() {
		return database.Order{}, ErrAlreadyTerminal
	}
	if err := validateStatusTransition(current.Status, next); err != nil {
		return database.Order{}, err
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:             id,
		Status:         next,
		PreviousStatus: current.Status,
		At:             s.now(),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, fmt.Errorf("%w: order status changed, please retry", ErrInvalidTransition)
		}
		return database.Order{}, storageErr("update order status", err)
	}

	log.Info().
		Str("order_id", id).
		Str("from", string(current.Status)).
		Str("to", string(next)).
		Msg("order status changed")
	s.notifier.Notify(TopicPedidos, EventPedidoUpdated, updated)
	return updated, nil
}

// Get returns one order.
func (s *OrderService) Get(ctx context.Context, id string) (database.Order, error) {
	order, err := s.newStore(s.db).GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, storageErr("get order", err)
	}
	return order, nil
}

// List returns orders newest first.
func (s *OrderService) List(ctx context.Context, f ListOrdersFilter) ([]database.Order, error) {
	params := database.ListOrdersParams{Limit: f.Limit, Offset: f.Offset}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		params.Status = pgtype.Text{String: string(f.Status), Valid: true}
	}
	if f.SessionID != nil {
		params.SessionID = pgtype.UUID{Bytes: *f.SessionID, Valid: true}
	}
	orders, err := s.newStore(s.db).ListOrders(ctx, params)
	if err != nil {
		return nil, storageErr("list orders", err)
	}
	return orders, nil
}

// Track is the customer-facing lookup. A wrong code is reported exactly
// like a missing order.
func (s *OrderService) Track(ctx context.Context, id, code string) (database.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return database.Order{}, err
	}
	if subtle.ConstantTimeCompare([]byte(order.Code), []byte(code)) != 1 {
		return database.Order{}, ErrInvalidCode
	}
	return order, nil
}

// confirmPayment marks a pending order paid inside the caller's transaction.
// It returns the current order with ErrAlreadyPaid when there is nothing to do.
func confirmPayment(ctx context.Context, store OrderStore, id string, method enum.PaymentMethod) (database.Order, error) {
	if !method.Settles() {
		return database.Order{}, ErrInvalidMethod
	}

	current, err := store.GetOrderForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, storageErr("get order", err)
	}
	if err := checkPayable(current); err != nil {
		return current, err
	}

	updated, err := store.MarkOrderPaid(ctx, database.MarkOrderPaidParams{ID: id, Pagamento: method})
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, storageErr("mark order paid", err)
		}
		// The conditional update lost a race. Fetch to classify.
		again, fetchErr := store.GetOrder(ctx, id)
		if fetchErr != nil {
			if errors.Is(fetchErr, pgx.ErrNoRows) {
				return database.Order{}, ErrOrderNotFound
			}
			return database.Order{}, storageErr("get order", fetchErr)
		}
		if err := checkPayable(again); err != nil {
			return again, err
		}
		return database.Order{}, fmt.Errorf("%w: order changed, please retry", ErrInvalidTransition)
	}
	return updated, nil
}

func checkPayable(o database.Order) error {
	switch o.PagamentoStatus {
	case enum.PaymentStatusPago:
		return ErrAlreadyPaid
	case enum.PaymentStatusCancelado:
		return fmt.Errorf("%w: order is cancelled", ErrInvalidTransition)
	case enum.PaymentStatusPendente:
	}
	if o.Status == enum.OrderStatusCancelado {
		return fmt.Errorf("%w: order is cancelled", ErrInvalidTransition)
	}
	return nil
}

// --- Helpers ---

// allowedTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
var allowedTransitions = map[enum.OrderStatus][]enum.OrderStatus{
	enum.OrderStatusEmAguardo: {enum.OrderStatusEmPreparo, enum.OrderStatusCancelado},
	enum.OrderStatusEmPreparo: {enum.OrderStatusPronto, enum.OrderStatusCancelado},
	enum.OrderStatusPronto:    {enum.OrderStatusEmRota, enum.OrderStatusCancelado},
	enum.OrderStatusEmRota:    {enum.OrderStatusCompleto, enum.OrderStatusCancelado},
}

// validateStatusTransition checks if the transition from current to next is allowed.
func validateStatusTransition(current, next enum.OrderStatus) error {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("%w: cannot transition from %s", ErrInvalidTransition, current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, current, next)
}

func validateItems(reqs []CreateOrderItemRequest) ([]database.OrderItem, money.Cents, error) {
	if len(reqs) == 0 {
		return nil, 0, ErrEmptyItems
	}
	items := make([]database.OrderItem, 0, len(reqs))
	subtotals := make([]money.Cents, 0, len(reqs))
	var units int64
	for i, it := range reqs {
		name := strings.TrimSpace(it.Nome)
		if name == "" {
			return nil, 0, fmt.Errorf("itens[%d]: %w", i, ErrInvalidItemName)
		}
		if it.Quantidade <= 0 {
			return nil, 0, fmt.Errorf("itens[%d]: %w", i, ErrInvalidQuantity)
		}
		if it.Quantidade > MaxItemQuantity {
			return nil, 0, fmt.Errorf("itens[%d]: %w", i, ErrQuantityTooLarge)
		}
		if it.Preco.IsNegative() {
			return nil, 0, fmt.Errorf("itens[%d]: %w", i, ErrInvalidPrice)
		}
		if it.Preco > MaxItemPrice {
			return nil, 0, fmt.Errorf("itens[%d]: %w", i, ErrPriceTooLarge)
		}
		units += it.Quantidade
		if units > math.MaxInt32 {
			return nil, 0, ErrTooManyUnits
		}
		sub, err := it.Preco.MulChecked(it.Quantidade)
		if err != nil {
			return nil, 0, fmt.Errorf("itens[%d]: %w", i, ErrTotalOutOfRange)
		}
		subtotals = append(subtotals, sub)
		items = append(items, database.OrderItem{
			Nome:       name,
			Quantidade: it.Quantidade,
			PrecoCents: it.Preco.Int64(),
		})
	}
	total, err := money.Sum(subtotals...)
	if err != nil {
		return nil, 0, ErrTotalOutOfRange
	}
	return items, total, nil
}

func optionalText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func randomOrderID() (string, error) {
	limit := big.NewInt(int64(len(orderIDChars)))
	b := make([]byte, orderIDLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = orderIDChars[n.Int64()]
	}
	return string(b), nil
}

func randomOrderCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(orderCodeRange))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}
