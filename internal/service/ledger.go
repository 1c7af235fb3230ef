package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
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

// DB is the pool: a DBTX for plain reads that can also begin transactions.
// Satisfied by *pgxpool.Pool.
type DB interface {
	database.DBTX
	TxBeginner
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LedgerStore defines the DB methods needed to mutate session totals.
// Satisfied by *database.Queries; narrow interface for testability.
type LedgerStore interface {
	sessionReader
	InsertSessionSale(ctx context.Context, arg database.InsertSessionSaleParams) (database.SessionSale, error)
	IncrementSessionSales(ctx context.Context, arg database.IncrementSessionTotalParams) (database.CashSession, error)
	AddSessionPaymentTotal(ctx context.Context, arg database.AddSessionPaymentTotalParams) error
	AddSessionItemTotal(ctx context.Context, arg database.AddSessionItemTotalParams) error
	InsertCashMovement(ctx context.Context, arg database.InsertCashMovementParams) (database.CashMovement, error)
	GetCashMovementByRequestID(ctx context.Context, requestID string) (database.CashMovement, error)
	IncrementSessionEntradas(ctx context.Context, arg database.IncrementSessionTotalParams) (database.CashSession, error)
	IncrementSessionSaidas(ctx context.Context, arg database.IncrementSessionTotalParams) (database.CashSession, error)
}

// NewLedgerStore creates a LedgerStore from a DBTX (pool or tx).
type NewLedgerStore func(db database.DBTX) LedgerStore

// Sale is one completed order as the ledger sees it.
type Sale struct {
	OrderID string
	Total   money.Cents
	Method  enum.PaymentMethod
	Cliente string
	// Tally maps product name to quantity sold.
	Tally map[string]int64
	At    time.Time
}

// ItemCount is the number of units sold. It fails when a quantity is
// negative or the total does not fit the item_count column.
func (s Sale) ItemCount() (int32, error) {
	var n int64
	for _, q := range s.Tally {
		if q < 0 {
			return 0, ErrInvalidQuantity
		}
		n += q
		if n > math.MaxInt32 {
			return 0, ErrTooManyUnits
		}
	}
	return int32(n), nil
}

// MovementRequest is a manual entrada or saida.
type MovementRequest struct {
	Value money.Cents
	By    string
	Desc  string
	// RequestID makes a retried call a no-op. Generated when empty.
	RequestID string
}

// Ledger records money against the open session.
type Ledger struct {
	db       DB
	newStore NewLedgerStore
	notifier Notifier
	retry    RetryPolicy
	now      func() time.Time
}

// NewLedger creates a new Ledger.
func NewLedger(db DB, newStore NewLedgerStore, notifier Notifier, retry RetryPolicy) *Ledger {
	return &Ledger{
		db:       db,
		newStore: newStore,
		notifier: orNop(notifier),
		retry:    retry,
		now:      time.Now,
	}
}

// RecordSale adds a completed order to the session in its own transaction.
// ErrAlreadyRecorded is returned when the order was already counted.
func (l *Ledger) RecordSale(ctx context.Context, sessionID uuid.UUID, sale Sale) (*CashSession, error) {
	var snapshot *CashSession
	err := retryStorage(ctx, l.retry, "record sale", func() error {
		tx, err := l.db.Begin(ctx)
		if err != nil {
			return storageErr("begin tx", err)
		}
		defer tx.Rollback(ctx) //nolint:errcheck

		store := l.newStore(tx)
		if sale.At.IsZero() {
			sale.At = l.now()
		}
		if err := recordSale(ctx, store, sessionID, sale); err != nil {
			return err
		}
		s, err := loadSession(ctx, store, sessionID)
		if err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return storageErr("commit tx", err)
		}
		snapshot = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.notifier.Notify(TopicCaixa, EventCaixaUpdated, snapshot)
	return snapshot, nil
}

// RecordEntrada adds a manual cash-in to the open session.
func (l *Ledger) RecordEntrada(ctx context.Context, req MovementRequest) (*CashSession, error) {
	return l.recordMovement(ctx, enum.MovementEntrada, req)
}

// RecordSaida adds a manual cash-out to the open session. It is not capped
// at the current balance.
func (l *Ledger) RecordSaida(ctx context.Context, req MovementRequest) (*CashSession, error) {
	return l.recordMovement(ctx, enum.MovementSaida, req)
}

// CurrentBalance returns the open session's balance.
func (l *Ledger) CurrentBalance(ctx context.Context) (money.Cents, error) {
	s, err := loadActive(ctx, l.newStore(l.db))
	if err != nil {
		return 0, err
	}
	return s.Balance(), nil
}

func (l *Ledger) recordMovement(ctx context.Context, kind enum.MovementKind, req MovementRequest) (*CashSession, error) {
	if !req.Value.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(req.By) == "" {
		return nil, ErrInvalidOperator
	}
	// One id per logical call, so every retry below hits the same row.
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	var snapshot *CashSession
	err := retryStorage(ctx, l.retry, "record "+strings.ToLower(string(kind)), func() error {
		s, err := l.recordMovementTx(ctx, kind, req)
		if err != nil {
			return err
		}
		snapshot = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", snapshot.ID.String()).
		Str("kind", string(kind)).
		Int64("value_cents", req.Value.Int64()).
		Str("by", req.By).
		Msg("cash movement recorded")
	l.notifier.Notify(TopicCaixa, EventCaixaUpdated, snapshot)
	return snapshot, nil
}

func (l *Ledger) recordMovementTx(ctx context.Context, kind enum.MovementKind, req MovementRequest) (*CashSession, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, storageErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := l.newStore(tx)

	active, err := store.GetActiveCashSession(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, storageErr("get active session", err)
	}

	desc := pgtype.Text{}
	if d := strings.TrimSpace(req.Desc); d != "" {
		desc = pgtype.Text{String: d, Valid: true}
	}
	_, err = store.InsertCashMovement(ctx, database.InsertCashMovementParams{
		ID:          uuid.New(),
		RequestID:   req.RequestID,
		SessionID:   active.ID,
		Kind:        kind,
		ValueCents:  req.Value.Int64(),
		CreatedBy:   req.By,
		Description: desc,
	})
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		prev, err := store.GetCashMovementByRequestID(ctx, req.RequestID)
		if err != nil {
			return nil, storageErr("get movement", err)
		}
		if prev.SessionID != active.ID || prev.Kind != kind || prev.ValueCents != req.Value.Int64() {
			return nil, ErrRequestIDReused
		}
		// Replay of an applied request; return the session as it stands.
		return loadSession(ctx, store, active.ID)
	case err != nil:
		return nil, storageErr("insert movement", err)
	}

	inc := database.IncrementSessionTotalParams{ID: active.ID, AmountCents: req.Value.Int64()}
	switch kind {
	case enum.MovementEntrada:
		_, err = store.IncrementSessionEntradas(ctx, inc)
	case enum.MovementSaida:
		_, err = store.IncrementSessionSaidas(ctx, inc)
	default:
		return nil, fmt.Errorf("unknown movement kind %q", kind)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionClosed
		}
		return nil, storageErr("increment session", err)
	}

	s, err := loadSession(ctx, store, active.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr("commit tx", err)
	}
	return s, nil
}

// recordSale applies a sale inside the caller's transaction. Item totals are
// upserted in name order so concurrent sales lock rows in the same order.
func recordSale(ctx context.Context, store LedgerStore, sessionID uuid.UUID, sale Sale) error {
	if !sale.Method.Settles() {
		return ErrInvalidMethod
	}
	if sale.Total.IsNegative() {
		return ErrInvalidPrice
	}
	count, err := sale.ItemCount()
	if err != nil {
		return err
	}
	if sale.At.IsZero() {
		sale.At = time.Now()
	}

	cliente := pgtype.Text{}
	if sale.Cliente != "" {
		cliente = pgtype.Text{String: sale.Cliente, Valid: true}
	}
	_, err = store.InsertSessionSale(ctx, database.InsertSessionSaleParams{
		OrderID:    sale.OrderID,
		SessionID:  sessionID,
		Method:     sale.Method,
		ItemCount:  count,
		TotalCents: sale.Total.Int64(),
		Cliente:    cliente,
		RecordedAt: pgtype.Timestamptz{Time: sale.At, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyRecorded
		}
		return storageErr("insert sale", err)
	}

	if _, err := store.IncrementSessionSales(ctx, database.IncrementSessionTotalParams{
		ID:          sessionID,
		AmountCents: sale.Total.Int64(),
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSessionClosed
		}
		return storageErr("increment sales", err)
	}

	if err := store.AddSessionPaymentTotal(ctx, database.AddSessionPaymentTotalParams{
		SessionID:   sessionID,
		Method:      sale.Method,
		AmountCents: sale.Total.Int64(),
	}); err != nil {
		return storageErr("add payment total", err)
	}

	names := make([]string, 0, len(sale.Tally))
	for name := range sale.Tally {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := store.AddSessionItemTotal(ctx, database.AddSessionItemTotalParams{
			SessionID:   sessionID,
			ProductName: name,
			Quantity:    sale.Tally[name],
		}); err != nil {
			return storageErr("add item total", err)
		}
	}
	return nil
}

// saleFromOrder builds the ledger entry for a paid order.
func saleFromOrder(o database.Order, at time.Time) Sale {
	tally := make(map[string]int64, len(o.Items))
	for _, it := range o.Items {
		tally[it.Nome] += it.Quantidade
	}
	return Sale{
		OrderID: o.ID,
		Total:   money.Cents(o.TotalCents),
		Method:  o.Pagamento,
		Cliente: o.Cliente,
		Tally:   tally,
		At:      at,
	}
}
