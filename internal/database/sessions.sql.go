// source: sessions.sql

package database

import (
	"context"

	"github.com/caixa-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const cashSessionColumns = `id, opened_at, opened_by, base_cents, paused, vendas_cents, entradas_cents, saidas_cents, vendas_count, closed_at, closed_by, updated_at`

func scanCashSession(row pgx.Row) (CashSession, error) {
	var i CashSession
	err := row.Scan(
		&i.ID,
		&i.OpenedAt,
		&i.OpenedBy,
		&i.BaseCents,
		&i.Paused,
		&i.VendasCents,
		&i.EntradasCents,
		&i.SaidasCents,
		&i.VendasCount,
		&i.ClosedAt,
		&i.ClosedBy,
		&i.UpdatedAt,
	)
	return i, err
}

const createCashSession = `-- name: CreateCashSession :one
INSERT INTO cash_sessions (id, opened_by, base_cents)
VALUES ($1, $2, $3)
RETURNING ` + cashSessionColumns

type CreateCashSessionParams struct {
	ID        uuid.UUID `json:"id"`
	OpenedBy  string    `json:"opened_by"`
	BaseCents int64     `json:"base_cents"`
}

func (q *Queries) CreateCashSession(ctx context.Context, arg CreateCashSessionParams) (CashSession, error) {
	row := q.db.QueryRow(ctx, createCashSession, arg.ID, arg.OpenedBy, arg.BaseCents)
	return scanCashSession(row)
}

const getActiveCashSession = `-- name: GetActiveCashSession :one
SELECT ` + cashSessionColumns + `
FROM cash_sessions
WHERE closed_at IS NULL`

func (q *Queries) GetActiveCashSession(ctx context.Context) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, getActiveCashSession))
}

const getActiveCashSessionForUpdate = `-- name: GetActiveCashSessionForUpdate :one
SELECT ` + cashSessionColumns + `
FROM cash_sessions
WHERE closed_at IS NULL
FOR UPDATE`

// GetActiveCashSessionForUpdate locks the open session against concurrent
// order creation (which holds FOR SHARE) until the transaction ends.
func (q *Queries) GetActiveCashSessionForUpdate(ctx context.Context) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, getActiveCashSessionForUpdate))
}

const getActiveCashSessionForShare = `-- name: GetActiveCashSessionForShare :one
SELECT ` + cashSessionColumns + `
FROM cash_sessions
WHERE closed_at IS NULL
FOR SHARE`

func (q *Queries) GetActiveCashSessionForShare(ctx context.Context) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, getActiveCashSessionForShare))
}

const getCashSession = `-- name: GetCashSession :one
SELECT ` + cashSessionColumns + `
FROM cash_sessions
WHERE id = $1`

func (q *Queries) GetCashSession(ctx context.Context, id uuid.UUID) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, getCashSession, id))
}

const listClosedCashSessions = `-- name: ListClosedCashSessions :many
SELECT ` + cashSessionColumns + `
FROM cash_sessions
WHERE closed_at IS NOT NULL
ORDER BY closed_at DESC
LIMIT $1 OFFSET $2`

type ListClosedCashSessionsParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListClosedCashSessions(ctx context.Context, arg ListClosedCashSessionsParams) ([]CashSession, error) {
	rows, err := q.db.Query(ctx, listClosedCashSessions, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CashSession{}
	for rows.Next() {
		i, err := scanCashSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setCashSessionPaused = `-- name: SetCashSessionPaused :one
UPDATE cash_sessions
SET paused = $1, updated_at = now()
WHERE closed_at IS NULL AND paused = NOT $1
RETURNING ` + cashSessionColumns

// SetCashSessionPaused flips the pause flag on the open session. It returns
// pgx.ErrNoRows when no session is open or the flag already has that value.
func (q *Queries) SetCashSessionPaused(ctx context.Context, paused bool) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, setCashSessionPaused, paused))
}

const closeCashSession = `-- name: CloseCashSession :one
UPDATE cash_sessions
SET closed_at = now(), closed_by = $2, paused = false, updated_at = now()
WHERE id = $1 AND closed_at IS NULL
RETURNING ` + cashSessionColumns

type CloseCashSessionParams struct {
	ID       uuid.UUID `json:"id"`
	ClosedBy string    `json:"closed_by"`
}

func (q *Queries) CloseCashSession(ctx context.Context, arg CloseCashSessionParams) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, closeCashSession, arg.ID, arg.ClosedBy))
}

const countPendingOrdersBySession = `-- name: CountPendingOrdersBySession :one
SELECT count(*)
FROM orders
WHERE session_id = $1
  AND status IN ('EM_AGUARDO', 'EM_PREPARO', 'PRONTO', 'EM_ROTA')`

func (q *Queries) CountPendingOrdersBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countPendingOrdersBySession, sessionID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

// --- Sales ---

const insertSessionSale = `-- name: InsertSessionSale :one
INSERT INTO session_sales (order_id, session_id, method, item_count, total_cents, cliente, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (order_id) DO NOTHING
RETURNING order_id, session_id, method, item_count, total_cents, cliente, recorded_at`

type InsertSessionSaleParams struct {
	OrderID    string             `json:"order_id"`
	SessionID  uuid.UUID          `json:"session_id"`
	Method     enum.PaymentMethod `json:"method"`
	ItemCount  int32              `json:"item_count"`
	TotalCents int64              `json:"total_cents"`
	Cliente    pgtype.Text        `json:"cliente"`
	RecordedAt pgtype.Timestamptz `json:"recorded_at"`
}

// InsertSessionSale returns pgx.ErrNoRows when the order already has a sale.
func (q *Queries) InsertSessionSale(ctx context.Context, arg InsertSessionSaleParams) (SessionSale, error) {
	row := q.db.QueryRow(ctx, insertSessionSale,
		arg.OrderID,
		arg.SessionID,
		arg.Method,
		arg.ItemCount,
		arg.TotalCents,
		arg.Cliente,
		arg.RecordedAt,
	)
	var i SessionSale
	err := row.Scan(
		&i.OrderID,
		&i.SessionID,
		&i.Method,
		&i.ItemCount,
		&i.TotalCents,
		&i.Cliente,
		&i.RecordedAt,
	)
	return i, err
}

const incrementSessionSales = `-- name: IncrementSessionSales :one
UPDATE cash_sessions
SET vendas_cents = vendas_cents + $2, vendas_count = vendas_count + 1, updated_at = now()
WHERE id = $1 AND closed_at IS NULL
RETURNING ` + cashSessionColumns

type IncrementSessionTotalParams struct {
	ID          uuid.UUID `json:"id"`
	AmountCents int64     `json:"amount_cents"`
}

func (q *Queries) IncrementSessionSales(ctx context.Context, arg IncrementSessionTotalParams) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, incrementSessionSales, arg.ID, arg.AmountCents))
}

const addSessionPaymentTotal = `-- name: AddSessionPaymentTotal :exec
INSERT INTO session_payment_totals (session_id, method, total_cents)
VALUES ($1, $2, $3)
ON CONFLICT (session_id, method)
DO UPDATE SET total_cents = session_payment_totals.total_cents + EXCLUDED.total_cents`

type AddSessionPaymentTotalParams struct {
	SessionID   uuid.UUID          `json:"session_id"`
	Method      enum.PaymentMethod `json:"method"`
	AmountCents int64              `json:"amount_cents"`
}

func (q *Queries) AddSessionPaymentTotal(ctx context.Context, arg AddSessionPaymentTotalParams) error {
	_, err := q.db.Exec(ctx, addSessionPaymentTotal, arg.SessionID, arg.Method, arg.AmountCents)
	return err
}

const addSessionItemTotal = `-- name: AddSessionItemTotal :exec
INSERT INTO session_item_totals (session_id, product_name, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (session_id, product_name)
DO UPDATE SET quantity = session_item_totals.quantity + EXCLUDED.quantity`

type AddSessionItemTotalParams struct {
	SessionID   uuid.UUID `json:"session_id"`
	ProductName string    `json:"product_name"`
	Quantity    int64     `json:"quantity"`
}

func (q *Queries) AddSessionItemTotal(ctx context.Context, arg AddSessionItemTotalParams) error {
	_, err := q.db.Exec(ctx, addSessionItemTotal, arg.SessionID, arg.ProductName, arg.Quantity)
	return err
}

const listSessionPaymentTotals = `-- name: ListSessionPaymentTotals :many
SELECT session_id, method, total_cents
FROM session_payment_totals
WHERE session_id = $1
ORDER BY method`

func (q *Queries) ListSessionPaymentTotals(ctx context.Context, sessionID uuid.UUID) ([]SessionPaymentTotal, error) {
	rows, err := q.db.Query(ctx, listSessionPaymentTotals, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SessionPaymentTotal{}
	for rows.Next() {
		var i SessionPaymentTotal
		if err := rows.Scan(&i.SessionID, &i.Method, &i.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listSessionItemTotals = `-- name: ListSessionItemTotals :many
SELECT session_id, product_name, quantity
FROM session_item_totals
WHERE session_id = $1
ORDER BY quantity DESC, product_name`

func (q *Queries) ListSessionItemTotals(ctx context.Context, sessionID uuid.UUID) ([]SessionItemTotal, error) {
	rows, err := q.db.Query(ctx, listSessionItemTotals, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SessionItemTotal{}
	for rows.Next() {
		var i SessionItemTotal
		if err := rows.Scan(&i.SessionID, &i.ProductName, &i.Quantity); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listSessionSales = `-- name: ListSessionSales :many
SELECT order_id, session_id, method, item_count, total_cents, cliente, recorded_at
FROM session_sales
WHERE session_id = $1
ORDER BY recorded_at, order_id`

func (q *Queries) ListSessionSales(ctx context.Context, sessionID uuid.UUID) ([]SessionSale, error) {
	rows, err := q.db.Query(ctx, listSessionSales, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SessionSale{}
	for rows.Next() {
		var i SessionSale
		if err := rows.Scan(
			&i.OrderID,
			&i.SessionID,
			&i.Method,
			&i.ItemCount,
			&i.TotalCents,
			&i.Cliente,
			&i.RecordedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// --- Movements ---

const cashMovementColumns = `id, request_id, session_id, kind, value_cents, created_by, description, created_at`

func scanCashMovement(row pgx.Row) (CashMovement, error) {
	var i CashMovement
	err := row.Scan(
		&i.ID,
		&i.RequestID,
		&i.SessionID,
		&i.Kind,
		&i.ValueCents,
		&i.CreatedBy,
		&i.Description,
		&i.CreatedAt,
	)
	return i, err
}

const insertCashMovement = `-- name: InsertCashMovement :one
INSERT INTO cash_movements (id, request_id, session_id, kind, value_cents, created_by, description)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (request_id) DO NOTHING
RETURNING ` + cashMovementColumns

type InsertCashMovementParams struct {
	ID          uuid.UUID         `json:"id"`
	RequestID   string            `json:"request_id"`
	SessionID   uuid.UUID         `json:"session_id"`
	Kind        enum.MovementKind `json:"kind"`
	ValueCents  int64             `json:"value_cents"`
	CreatedBy   string            `json:"created_by"`
	Description pgtype.Text       `json:"description"`
}

// InsertCashMovement returns pgx.ErrNoRows when request_id was already used.
func (q *Queries) InsertCashMovement(ctx context.Context, arg InsertCashMovementParams) (CashMovement, error) {
	row := q.db.QueryRow(ctx, insertCashMovement,
		arg.ID,
		arg.RequestID,
		arg.SessionID,
		arg.Kind,
		arg.ValueCents,
		arg.CreatedBy,
		arg.Description,
	)
	return scanCashMovement(row)
}

const incrementSessionEntradas = `-- name: IncrementSessionEntradas :one
UPDATE cash_sessions
SET entradas_cents = entradas_cents + $2, updated_at = now()
WHERE id = $1 AND closed_at IS NULL
RETURNING ` + cashSessionColumns

func (q *Queries) IncrementSessionEntradas(ctx context.Context, arg IncrementSessionTotalParams) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, incrementSessionEntradas, arg.ID, arg.AmountCents))
}

const incrementSessionSaidas = `-- name: IncrementSessionSaidas :one
UPDATE cash_sessions
SET saidas_cents = saidas_cents + $2, updated_at = now()
WHERE id = $1 AND closed_at IS NULL
RETURNING ` + cashSessionColumns

func (q *Queries) IncrementSessionSaidas(ctx context.Context, arg IncrementSessionTotalParams) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, incrementSessionSaidas, arg.ID, arg.AmountCents))
}

const getCashMovementByRequestID = `-- name: GetCashMovementByRequestID :one
SELECT ` + cashMovementColumns + `
FROM cash_movements
WHERE request_id = $1`

func (q *Queries) GetCashMovementByRequestID(ctx context.Context, requestID string) (CashMovement, error) {
	return scanCashMovement(q.db.QueryRow(ctx, getCashMovementByRequestID, requestID))
}

const listCashMovements = `-- name: ListCashMovements :many
SELECT ` + cashMovementColumns + `
FROM cash_movements
WHERE session_id = $1
ORDER BY created_at, id`

func (q *Queries) ListCashMovements(ctx context.Context, sessionID uuid.UUID) ([]CashMovement, error) {
	rows, err := q.db.Query(ctx, listCashMovements, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CashMovement{}
	for rows.Next() {
		i, err := scanCashMovement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
